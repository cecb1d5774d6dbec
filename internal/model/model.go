// Package model holds the domain entities shared by the irrigation engine
// and its collaborators: sensor readings, scenario rules, plant profiles,
// schedules, the system configuration and watering events.
package model

import "time"

// Reading is a snapshot of sensed values at a point in time. A nil field
// means the sensor faulted on this cycle; it is never defaulted to zero.
type Reading struct {
	SoilMoisture   *float64  `json:"soil_moisture,omitempty"`   // percent [0,100]
	AirTemperature *float64  `json:"air_temperature,omitempty"` // °C
	AirHumidity    *float64  `json:"air_humidity,omitempty"`    // percent [0,100]
	Timestamp      time.Time `json:"timestamp"`
}

// Float is a convenience for building optional reading fields.
func Float(v float64) *float64 { return &v }

// Action is what a matched scenario rule asks of the pump.
type Action string

const (
	ActionNoWater    Action = "no_water"
	ActionWater      Action = "water"
	ActionLightWater Action = "light_water"
)

// Waters reports whether the action starts the pump.
func (a Action) Waters() bool { return a == ActionWater || a == ActionLightWater }

// ScenarioRule is one row of a plant profile's rule table. The soil condition
// is the mandatory gate; the air conditions are evaluated for observability
// but do not affect selection.
type ScenarioRule struct {
	Soil            Condition `json:"soil"`
	AirTemperature  Condition `json:"air_temperature"`
	AirHumidity     Condition `json:"air_humidity"`
	Action          Action    `json:"action"`
	DurationMinutes float64   `json:"duration_minutes"`
	WaterVolumeL    float64   `json:"water_volume_l,omitempty"`
}

// PlantProfile is an ordered rule table for one plant species. Evaluation
// order matters: the first rule whose soil condition matches wins.
type PlantProfile []ScenarioRule
