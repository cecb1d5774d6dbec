package logstore

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// WateringRecord is one parsed line of the watering history.
type WateringRecord struct {
	Timestamp       time.Time
	DurationSeconds float64
}

// SensorRecord is one parsed air sample.
type SensorRecord struct {
	Timestamp   time.Time
	Temperature float64
	Humidity    float64
}

// SoilRecord is one parsed soil-moisture sample.
type SoilRecord struct {
	Timestamp time.Time
	Moisture  float64
}

// ReadWaterings parses the watering history, skipping malformed lines.
// A zero since reads everything.
func (s *Store) ReadWaterings(since time.Time) ([]WateringRecord, error) {
	lines, err := s.readLines(wateringFile)
	if err != nil {
		return nil, err
	}
	var out []WateringRecord
	for _, line := range lines {
		parts := strings.SplitN(line, ", ", 2)
		if len(parts) < 2 {
			continue
		}
		ts, ok := parseTimestamp(parts[0])
		if !ok || (!since.IsZero() && ts.Before(since)) {
			continue
		}
		dur, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}
		out = append(out, WateringRecord{Timestamp: ts, DurationSeconds: dur})
	}
	return out, nil
}

// ReadSensorSamples parses the air samples, skipping malformed lines.
func (s *Store) ReadSensorSamples(since time.Time) ([]SensorRecord, error) {
	lines, err := s.readLines(airFile)
	if err != nil {
		return nil, err
	}
	var out []SensorRecord
	for _, line := range lines {
		parts := strings.SplitN(line, ", ", 3)
		if len(parts) < 3 {
			continue
		}
		ts, ok := parseTimestamp(parts[0])
		if !ok || (!since.IsZero() && ts.Before(since)) {
			continue
		}
		temp, errT := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		hum, errH := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if errT != nil || errH != nil {
			continue
		}
		out = append(out, SensorRecord{Timestamp: ts, Temperature: temp, Humidity: hum})
	}
	return out, nil
}

// ReadSoilSamples parses the soil-moisture samples, skipping malformed
// lines.
func (s *Store) ReadSoilSamples(since time.Time) ([]SoilRecord, error) {
	lines, err := s.readLines(soilFile)
	if err != nil {
		return nil, err
	}
	var out []SoilRecord
	for _, line := range lines {
		parts := strings.SplitN(line, ", ", 2)
		if len(parts) < 2 {
			continue
		}
		ts, ok := parseTimestamp(parts[0])
		if !ok || (!since.IsZero() && ts.Before(since)) {
			continue
		}
		m, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}
		out = append(out, SoilRecord{Timestamp: ts, Moisture: m})
	}
	return out, nil
}

// RawExport returns a log file's raw contents for the export endpoint.
func (s *Store) RawExport(kind string) string {
	var name string
	switch kind {
	case "watering":
		name = wateringFile
	case "sensors":
		name = airFile
	case "soil":
		name = soilFile
	default:
		return ""
	}
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return ""
	}
	return string(b)
}

func (s *Store) readLines(name string) ([]string, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return splitLines(string(b)), nil
}

// parseTimestamp accepts second precision, sub-second precision and ISO
// variants, since older installations mixed all three.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		timeLayout,
		"2006-01-02 15:04:05.999999",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
