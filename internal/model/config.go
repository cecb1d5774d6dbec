package model

// ScheduleEntry is a fixed-time watering window, independent of scenarios.
type ScheduleEntry struct {
	Time            string   `json:"time"` // "HH:MM"
	Days            []string `json:"days"` // lowercase english weekday names
	DurationMinutes float64  `json:"duration"`
	Enabled         bool     `json:"enabled"`
}

// OnDay reports whether the entry fires on the given lowercase weekday name.
func (e ScheduleEntry) OnDay(day string) bool {
	for _, d := range e.Days {
		if d == day {
			return true
		}
	}
	return false
}

// DefaultMinWateringIntervalMinutes applies when the persisted config carries
// no interval of its own.
const DefaultMinWateringIntervalMinutes = 30

// SystemConfig is the process-wide configuration, persisted as data.json.
// The config store is the sole arbiter of consistency between the control
// loop (reader) and the request handlers (writers).
type SystemConfig struct {
	Profiles                   map[string]PlantProfile `json:"scenarios"`
	CurrentProfile             string                  `json:"current_scenario"`
	MaintenanceMode            bool                    `json:"maintenance_mode"`
	VacationMode               bool                    `json:"vacation_mode"`
	Schedules                  []ScheduleEntry         `json:"scheduled_waterings"`
	MinWateringIntervalMinutes float64                 `json:"min_watering_interval"`
}

// CurrentRules returns the rule table of the currently selected profile,
// or nil when the selection names no known profile.
func (c SystemConfig) CurrentRules() PlantProfile {
	return c.Profiles[c.CurrentProfile]
}
