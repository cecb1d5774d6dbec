package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateforme/homegarden/internal/model"
)

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)

func mondayEntry() model.ScheduleEntry {
	return model.ScheduleEntry{
		Time:            "06:00",
		Days:            []string{"monday"},
		DurationMinutes: 2,
		Enabled:         true,
	}
}

func TestDueWithinToleranceWindow(t *testing.T) {
	entries := []model.ScheduleEntry{mondayEntry()}
	last := monday.Add(-10 * time.Minute)

	got := Due(monday.Add(1*time.Minute), entries, last, false)
	require.NotNil(t, got)
	assert.Equal(t, 2.0, got.DurationMinutes)

	// One minute early also falls inside the +-1 minute window.
	assert.NotNil(t, Due(monday.Add(-1*time.Minute), entries, last, false))
}

func TestDueOutsideToleranceWindow(t *testing.T) {
	entries := []model.ScheduleEntry{mondayEntry()}
	last := monday.Add(-10 * time.Minute)

	assert.Nil(t, Due(monday.Add(3*time.Minute), entries, last, false))
	assert.Nil(t, Due(monday.Add(-2*time.Minute), entries, last, false))
}

func TestDueWrongDay(t *testing.T) {
	tuesday := monday.Add(24 * time.Hour)
	assert.Nil(t, Due(tuesday, []model.ScheduleEntry{mondayEntry()}, time.Time{}, false))
}

func TestDueDisabledEntry(t *testing.T) {
	e := mondayEntry()
	e.Enabled = false
	assert.Nil(t, Due(monday, []model.ScheduleEntry{e}, time.Time{}, false))
}

func TestDueMinimumGapSinceLastWatering(t *testing.T) {
	entries := []model.ScheduleEntry{mondayEntry()}

	// Watered 3 minutes ago: the scheduler's own 5-minute gap blocks it.
	assert.Nil(t, Due(monday, entries, monday.Add(-3*time.Minute), false))

	// 10 minutes ago: allowed.
	assert.NotNil(t, Due(monday, entries, monday.Add(-10*time.Minute), false))

	// Never watered: allowed.
	assert.NotNil(t, Due(monday, entries, time.Time{}, false))
}

func TestDueSkippedWhilePumpRunning(t *testing.T) {
	assert.Nil(t, Due(monday, []model.ScheduleEntry{mondayEntry()}, time.Time{}, true))
}

func TestDueFirstMatchWins(t *testing.T) {
	first := mondayEntry()
	first.DurationMinutes = 1
	second := mondayEntry()
	second.DurationMinutes = 7

	got := Due(monday, []model.ScheduleEntry{first, second}, time.Time{}, false)
	require.NotNil(t, got)
	assert.Equal(t, 1.0, got.DurationMinutes)
}

func TestDueMalformedTimeSkipped(t *testing.T) {
	bad := mondayEntry()
	bad.Time = "6 o'clock"
	good := mondayEntry()

	got := Due(monday, []model.ScheduleEntry{bad, good}, time.Time{}, false)
	require.NotNil(t, got)
	assert.Equal(t, "06:00", got.Time)
}
