// Package scenario selects the irrigation action for a plant profile given
// the current sensor reading. Both the local control loop and the remote
// node relay go through Decide, so there is a single decision path.
package scenario

import (
	"log"

	"github.com/plateforme/homegarden/internal/model"
)

// Match returns the first rule, in declaration order, whose soil condition is
// satisfied by the reading, or nil when none matches. Soil moisture is the
// sole mandatory gate: an absent soil reading matches no rule. The air
// conditions are evaluated and logged but do not affect selection.
func Match(rules model.PlantProfile, r model.Reading) *model.ScenarioRule {
	if r.SoilMoisture == nil {
		return nil
	}
	for i := range rules {
		rule := &rules[i]
		if !rule.Soil.Eval(r.SoilMoisture) {
			continue
		}
		tempOK := rule.AirTemperature.Eval(r.AirTemperature)
		humOK := rule.AirHumidity.Eval(r.AirHumidity)
		if !tempOK || !humOK {
			log.Printf("scenario: soil rule %q matched with air conditions unmet (temp=%v humidity=%v)",
				rule.Soil.String(), tempOK, humOK)
		}
		return rule
	}
	return nil
}

// Decision is the outcome of matching a reading against the current profile.
type Decision struct {
	Rule            *model.ScenarioRule
	Action          model.Action
	DurationMinutes float64
}

// Matched reports whether any rule was selected.
func (d Decision) Matched() bool { return d.Rule != nil }

// ShouldStart reports whether the decision asks for the pump to run. A
// watering action with zero duration is a no-op by construction.
func (d Decision) ShouldStart() bool {
	return d.Action.Waters() && d.DurationMinutes > 0
}

// Decide matches the reading and applies the vacation-mode adjustment:
// watering durations are halved while vacation mode is active.
func Decide(rules model.PlantProfile, r model.Reading, vacation bool) Decision {
	rule := Match(rules, r)
	if rule == nil {
		return Decision{}
	}
	d := Decision{Rule: rule, Action: rule.Action, DurationMinutes: rule.DurationMinutes}
	if vacation && d.Action.Waters() && d.DurationMinutes > 0 {
		d.DurationMinutes *= 0.5
	}
	return d
}
