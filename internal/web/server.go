// Package web is the HTTP collaborator: live data, histories, analytics,
// settings, scenario selection, manual pump control and the remote-node API.
// It never drives the pump directly; every command goes through the engine's
// manual-control entry points so all guards apply.
package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plateforme/homegarden/internal/config"
	"github.com/plateforme/homegarden/internal/engine"
	"github.com/plateforme/homegarden/internal/logstore"
	"github.com/plateforme/homegarden/internal/model"
	"github.com/plateforme/homegarden/internal/nodes"
	"github.com/plateforme/homegarden/internal/pump"
)

// Controller is the slice of the engine the handlers need.
type Controller interface {
	ManualStart(durationMinutes float64) error
	ManualStop() (model.WateringEvent, bool)
	ReadNow() model.Reading
	PumpState() pump.State
}

// Server holds the handler dependencies.
type Server struct {
	ctrl     Controller
	store    *config.Store
	logs     *logstore.Store
	registry *nodes.Registry
	metrics  http.Handler

	now func() time.Time
}

// New wires the server. registry and metrics may be nil; their routes are
// then not mounted.
func New(ctrl Controller, store *config.Store, logs *logstore.Store, registry *nodes.Registry, metrics http.Handler) *Server {
	return &Server{
		ctrl:     ctrl,
		store:    store,
		logs:     logs,
		registry: registry,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/data", s.getData)
	r.GET("/arrosage_history", s.getWateringHistory)
	r.GET("/temperature_humidity_history", s.getSensorHistory)

	r.GET("/get_scenarios", s.getScenarios)
	r.GET("/get_scenario_details", s.getScenarioDetails)
	r.POST("/set_scenario", s.setScenario)

	r.GET("/get_settings", s.getSettings)
	r.POST("/update_settings", s.updateSettings)

	r.POST("/manual_pump_control", s.manualPumpControl)

	r.GET("/alerts", s.getAlerts)
	r.GET("/trends", s.getTrends)
	r.GET("/statistics", s.getStatistics)
	r.GET("/export_data", s.exportData)

	if s.registry != nil {
		api := r.Group("/api/nodes")
		api.GET("", s.listNodes)
		api.POST("/register", s.registerNode)
		api.POST("/push", s.nodePush)
		api.PATCH("/:id", s.updateNode)
		api.DELETE("/:id", s.removeNode)
	}
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	return r
}

func (s *Server) getData(c *gin.Context) {
	cfg, err := s.store.Get()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	reading := s.ctrl.ReadNow()
	st := s.ctrl.PumpState()

	resp := gin.H{
		"soil_moisture":    reading.SoilMoisture,
		"temperature":      reading.AirTemperature,
		"humidity":         reading.AirHumidity,
		"pump_running":     st.Running,
		"current_scenario": cfg.CurrentProfile,
		"maintenance_mode": cfg.MaintenanceMode,
		"vacation_mode":    cfg.VacationMode,
	}
	if !st.LastWateringAt.IsZero() {
		resp["last_watering"] = st.LastWateringAt.Format("2006-01-02 15:04:05")
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getScenarios(c *gin.Context) {
	cfg, err := s.store.Get()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	c.JSON(http.StatusOK, gin.H{
		"scenarios":        names,
		"current_scenario": cfg.CurrentProfile,
	})
}

func (s *Server) getScenarioDetails(c *gin.Context) {
	name := c.Query("name")
	cfg, err := s.store.Get()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	rules, ok := cfg.Profiles[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown scenario"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "rules": rules})
}

func (s *Server) setScenario(c *gin.Context) {
	var req struct {
		Scenario string `json:"scenario" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := s.store.Get()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if _, ok := cfg.Profiles[req.Scenario]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown scenario"})
		return
	}
	if _, err := s.store.Set(config.Patch{CurrentProfile: &req.Scenario}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"current_scenario": req.Scenario})
}

func (s *Server) getSettings(c *gin.Context) {
	cfg, err := s.store.Get()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"maintenance_mode":      cfg.MaintenanceMode,
		"vacation_mode":         cfg.VacationMode,
		"min_watering_interval": cfg.MinWateringIntervalMinutes,
		"scheduled_waterings":   cfg.Schedules,
	})
}

func (s *Server) updateSettings(c *gin.Context) {
	var req struct {
		MaintenanceMode     *bool                  `json:"maintenance_mode"`
		VacationMode        *bool                  `json:"vacation_mode"`
		MinWateringInterval *float64               `json:"min_watering_interval"`
		Schedules           *[]model.ScheduleEntry `json:"scheduled_waterings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MinWateringInterval != nil && *req.MinWateringInterval < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_watering_interval must not be negative"})
		return
	}
	cfg, err := s.store.Set(config.Patch{
		MaintenanceMode:            req.MaintenanceMode,
		VacationMode:               req.VacationMode,
		MinWateringIntervalMinutes: req.MinWateringInterval,
		Schedules:                  req.Schedules,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"maintenance_mode":      cfg.MaintenanceMode,
		"vacation_mode":         cfg.VacationMode,
		"min_watering_interval": cfg.MinWateringIntervalMinutes,
		"scheduled_waterings":   cfg.Schedules,
	})
}

func (s *Server) manualPumpControl(c *gin.Context) {
	var req struct {
		Action          string  `json:"action" binding:"required"`
		DurationMinutes float64 `json:"duration_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Action {
	case "on":
		minutes := req.DurationMinutes
		if minutes <= 0 {
			minutes = 1
		}
		if err := s.ctrl.ManualStart(minutes); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, engine.ErrMaintenance) {
				status = http.StatusConflict
			} else if _, ok := pump.IsRefusal(err); ok {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pump_running": true, "duration_minutes": minutes})
	case "off":
		_, stopped := s.ctrl.ManualStop()
		c.JSON(http.StatusOK, gin.H{"pump_running": false, "stopped": stopped})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be \"on\" or \"off\""})
	}
}

func (s *Server) listNodes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"nodes": s.registry.List()})
}

func (s *Server) registerNode(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Location string `json:"location"`
		Scenario string `json:"scenario"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := s.registry.Register(req.Name, req.Location, req.Scenario)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (s *Server) updateNode(c *gin.Context) {
	var req struct {
		Name     *string `json:"name"`
		Location *string `json:"location"`
		Scenario *string `json:"scenario"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := s.registry.Update(c.Param("id"), nodes.Patch{
		Name:     req.Name,
		Location: req.Location,
		Profile:  req.Scenario,
	})
	if errors.Is(err, nodes.ErrUnknownNode) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) removeNode(c *gin.Context) {
	err := s.registry.Remove(c.Param("id"))
	if errors.Is(err, nodes.ErrUnknownNode) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

func (s *Server) nodePush(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := s.registry.HandlePush(raw)
	if errors.Is(err, nodes.ErrUnknownNode) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}
