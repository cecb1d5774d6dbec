// Package schedule evaluates fixed-time watering windows, independent of the
// scenario rules.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/plateforme/homegarden/internal/model"
)

// minGapMinutes is the scheduler's own guard between waterings. It is fixed
// and independent of the configurable interval enforced by the pump on every
// start.
const minGapMinutes = 5

// toleranceMinutes is the match window around an entry's time of day. The
// loop polls every few seconds but ticks are not minute-aligned, so an exact
// equality would skip entries.
const toleranceMinutes = 1

// Due returns the first enabled entry scheduled for now's weekday whose
// time of day is within the tolerance window, provided at least minGapMinutes
// have passed since the last watering. It returns nil while the pump runs.
func Due(now time.Time, entries []model.ScheduleEntry, lastWateringAt time.Time, pumpRunning bool) *model.ScheduleEntry {
	if pumpRunning || len(entries) == 0 {
		return nil
	}

	day := strings.ToLower(now.Weekday().String())
	nowMin := now.Hour()*60 + now.Minute()

	for i := range entries {
		e := &entries[i]
		if !e.Enabled || !e.OnDay(day) {
			continue
		}
		entryMin, ok := parseTimeOfDay(e.Time)
		if !ok {
			continue
		}
		dist := nowMin - entryMin
		if dist < 0 {
			dist = -dist
		}
		if dist > toleranceMinutes {
			continue
		}
		if !lastWateringAt.IsZero() && now.Sub(lastWateringAt).Minutes() < minGapMinutes {
			continue
		}
		return e
	}
	return nil
}

// parseTimeOfDay parses "HH:MM" into a minute-of-day.
func parseTimeOfDay(s string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
