package web

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// pumpFlowLitersPerMinute is the installed pump's nominal flow, used to
// estimate delivered volumes from runtimes.
const pumpFlowLitersPerMinute = 0.3

// Alert thresholds over the latest reading and the watering history.
const (
	alertTempHighC     = 35.0
	alertTempLowC      = 5.0
	alertSoilDryPct    = 10.0
	alertSoilSoakedPct = 90.0
	alertStaleWatering = 7 * 24 * time.Hour
	trendWindow        = 24 * time.Hour
)

const historyTimeLayout = "2006-01-02 15:04:05"

func (s *Server) getWateringHistory(c *gin.Context) {
	records, err := s.logs.ReadWaterings(time.Time{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, 0, len(records))
	// Newest first.
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		out = append(out, gin.H{
			"date":             r.Timestamp.Format(historyTimeLayout),
			"duration_seconds": r.DurationSeconds,
			"duration":         formatDuration(r.DurationSeconds),
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": out})
}

func (s *Server) getSensorHistory(c *gin.Context) {
	records, err := s.logs.ReadSensorSamples(time.Time{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		out = append(out, gin.H{
			"date":        r.Timestamp.Format(historyTimeLayout),
			"temperature": r.Temperature,
			"humidity":    r.Humidity,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": out})
}

func (s *Server) getAlerts(c *gin.Context) {
	alerts := []gin.H{}
	reading := s.ctrl.ReadNow()

	if reading.SoilMoisture == nil {
		alerts = append(alerts, alert("sensor", "soil moisture sensor not responding"))
	} else {
		switch {
		case *reading.SoilMoisture < alertSoilDryPct:
			alerts = append(alerts, alert("soil", fmt.Sprintf("soil very dry (%.1f%%)", *reading.SoilMoisture)))
		case *reading.SoilMoisture > alertSoilSoakedPct:
			alerts = append(alerts, alert("soil", fmt.Sprintf("soil waterlogged (%.1f%%)", *reading.SoilMoisture)))
		}
	}

	if reading.AirTemperature == nil || reading.AirHumidity == nil {
		alerts = append(alerts, alert("sensor", "temperature/humidity sensor not responding"))
	} else {
		switch {
		case *reading.AirTemperature > alertTempHighC:
			alerts = append(alerts, alert("temperature", fmt.Sprintf("temperature too high (%.1f°C)", *reading.AirTemperature)))
		case *reading.AirTemperature < alertTempLowC:
			alerts = append(alerts, alert("temperature", fmt.Sprintf("temperature too low (%.1f°C)", *reading.AirTemperature)))
		}
	}

	if records, err := s.logs.ReadWaterings(time.Time{}); err == nil && len(records) > 0 {
		last := records[len(records)-1].Timestamp
		if s.now().Sub(last) > alertStaleWatering {
			alerts = append(alerts, alert("watering", fmt.Sprintf("no watering since %s", last.Format("2006-01-02"))))
		}
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func alert(kind, message string) gin.H {
	return gin.H{"type": kind, "message": message}
}

func (s *Server) getTrends(c *gin.Context) {
	since := s.now().Add(-trendWindow)

	air, err := s.logs.ReadSensorSamples(since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	soil, err := s.logs.ReadSoilSamples(since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	temps := make([]float64, 0, len(air))
	hums := make([]float64, 0, len(air))
	for _, r := range air {
		temps = append(temps, r.Temperature)
		hums = append(hums, r.Humidity)
	}
	moistures := make([]float64, 0, len(soil))
	for _, r := range soil {
		moistures = append(moistures, r.Moisture)
	}

	c.JSON(http.StatusOK, gin.H{
		"window_hours":  trendWindow.Hours(),
		"temperature":   summarize(temps),
		"humidity":      summarize(hums),
		"soil_moisture": summarize(moistures),
	})
}

// summarize reduces a series to min/max/avg, nil when the series is empty.
func summarize(values []float64) gin.H {
	if len(values) == 0 {
		return nil
	}
	min, max, sum := values[0], values[0], 0.0
	for _, v := range values {
		min = math.Min(min, v)
		max = math.Max(max, v)
		sum += v
	}
	return gin.H{
		"min": min,
		"max": max,
		"avg": math.Round(sum/float64(len(values))*100) / 100,
	}
}

func (s *Server) getStatistics(c *gin.Context) {
	records, err := s.logs.ReadWaterings(time.Time{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := now.Add(-7 * 24 * time.Hour)

	var totalSeconds float64
	var today, thisWeek int
	for _, r := range records {
		totalSeconds += r.DurationSeconds
		if !r.Timestamp.Before(dayStart) {
			today++
		}
		if !r.Timestamp.Before(weekStart) {
			thisWeek++
		}
	}

	stats := gin.H{
		"total_waterings":      len(records),
		"waterings_today":      today,
		"waterings_this_week":  thisWeek,
		"total_water_liters":   math.Round(totalSeconds/60*pumpFlowLitersPerMinute*100) / 100,
		"avg_duration_seconds": 0.0,
	}
	if len(records) > 0 {
		stats["avg_duration_seconds"] = math.Round(totalSeconds/float64(len(records))*10) / 10
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) exportData(c *gin.Context) {
	kind := c.DefaultQuery("type", "watering")
	format := c.DefaultQuery("format", "csv")

	switch format {
	case "csv":
		raw := s.logs.RawExport(kind)
		if raw == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "no data for type " + kind})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_export.csv", kind))
		c.Data(http.StatusOK, "text/csv", []byte(raw))
	case "json":
		s.exportJSON(c, kind)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be \"csv\" or \"json\""})
	}
}

func (s *Server) exportJSON(c *gin.Context, kind string) {
	switch kind {
	case "watering":
		records, err := s.logs.ReadWaterings(time.Time{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	case "sensors":
		records, err := s.logs.ReadSensorSamples(time.Time{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	case "soil":
		records, err := s.logs.ReadSoilSamples(time.Time{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown type " + kind})
	}
}

// formatDuration renders a runtime the way the history page shows it.
func formatDuration(seconds float64) string {
	s := int(math.Round(seconds))
	switch {
	case s < 60:
		return fmt.Sprintf("%d s", s)
	case s%60 == 0:
		return fmt.Sprintf("%d min", s/60)
	default:
		return fmt.Sprintf("%d min %d s", s/60, s%60)
	}
}
