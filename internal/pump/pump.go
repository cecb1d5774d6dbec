// Package pump owns the pump's on/off state machine. All transitions go
// through Start/Tick/Stop under one mutex, so concurrent callers (the control
// loop and the manual-control handlers) observe linearizable state and every
// watering produces exactly one event.
package pump

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plateforme/homegarden/internal/model"
)

// Actuator drives the physical pump output. Driver-level failures are out of
// the core's scope: the actuator is assumed infallible here.
type Actuator interface {
	SetPump(on bool)
}

// leakFactor is the maximum-runtime heuristic: a watering running 50% longer
// than planned is presumed a stuck valve or a leak and is force-stopped.
const leakFactor = 1.5

// StopReason says why a watering ended.
type StopReason string

const (
	StopDurationReached StopReason = "duration_reached"
	StopLeakDetected    StopReason = "leak_detected"
	StopManual          StopReason = "manual"
	StopRuleNoWater     StopReason = "rule_no_water"
	StopShutdown        StopReason = "shutdown"
)

// Refusal explains why a start was rejected. Expected and non-fatal: the
// caller is informed and no state changes.
type Refusal struct {
	Reason string // "too_soon" or "already_running"
	Detail string
}

func (r *Refusal) Error() string { return fmt.Sprintf("pump start refused (%s): %s", r.Reason, r.Detail) }

const (
	RefusedTooSoon        = "too_soon"
	RefusedAlreadyRunning = "already_running"
)

// IsRefusal reports whether err is a start refusal and returns its reason.
func IsRefusal(err error) (string, bool) {
	var r *Refusal
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return "", false
}

// State is a read-only snapshot of the machine for status pages.
type State struct {
	Running        bool
	StartedAt      time.Time
	PlannedMinutes float64
	LastWateringAt time.Time
}

// Machine is the single pump state machine. It starts Idle and forces the
// hardware output off, whatever state a previous process left it in.
type Machine struct {
	mu sync.Mutex

	act Actuator

	running        bool
	startedAt      time.Time
	plannedMinutes float64
	lastWateringAt time.Time // zero means never watered
}

// New returns an Idle machine and drives the actuator to its off level.
func New(act Actuator) *Machine {
	act.SetPump(false)
	return &Machine{act: act}
}

// Start turns the pump on for the planned duration. It refuses when the pump
// is already running, or when less than minIntervalMinutes have elapsed since
// the last watering (anti-over-watering guard). Scheduled, scenario and
// manual starts all honor the guard: there is no silent bypass anywhere.
func (m *Machine) Start(now time.Time, plannedMinutes, minIntervalMinutes float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return &Refusal{
			Reason: RefusedAlreadyRunning,
			Detail: fmt.Sprintf("watering since %s", m.startedAt.Format(time.RFC3339)),
		}
	}
	if !m.lastWateringAt.IsZero() {
		since := now.Sub(m.lastWateringAt).Minutes()
		if since < minIntervalMinutes {
			return &Refusal{
				Reason: RefusedTooSoon,
				Detail: fmt.Sprintf("last watering %.1f min ago, minimum %.0f min", since, minIntervalMinutes),
			}
		}
	}

	m.act.SetPump(true)
	m.running = true
	m.startedAt = now
	m.plannedMinutes = plannedMinutes
	m.lastWateringAt = now
	log.Printf("pump: ON at %s for %.2f min", now.Format(time.RFC3339), plannedMinutes)
	return nil
}

// Tick checks the running watering against its planned duration. It returns
// a stop reason when the watering should end: LeakDetected once the runtime
// reaches 1.5x the plan, DurationReached once it reaches the plan. The
// caller is expected to follow up with Stop.
func (m *Machine) Tick(now time.Time) (StopReason, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return "", false
	}
	elapsed := now.Sub(m.startedAt).Minutes()
	switch {
	case elapsed >= m.plannedMinutes*leakFactor:
		return StopLeakDetected, true
	case elapsed >= m.plannedMinutes:
		return StopDurationReached, true
	default:
		return "", false
	}
}

// Stop turns the pump off and returns the watering event to log. Calling
// Stop on an Idle machine is a harmless no-op that returns no event, so a
// tick-triggered stop racing a manual stop can never double-log. Stop is
// always accepted regardless of the interval guard: operators may always
// stop the pump.
func (m *Machine) Stop(now time.Time, reason StopReason) (model.WateringEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return model.WateringEvent{}, false
	}

	m.act.SetPump(false)
	evt := model.WateringEvent{
		ID:              uuid.New().String(),
		StartTime:       m.startedAt,
		DurationSeconds: now.Sub(m.startedAt).Seconds(),
		Reason:          string(reason),
	}
	m.running = false
	m.plannedMinutes = 0
	m.lastWateringAt = now
	log.Printf("pump: OFF at %s after %.0fs (%s)", now.Format(time.RFC3339), evt.DurationSeconds, reason)
	return evt, true
}

// ForceOff drives the actuator to its off level without emitting an event.
// Used once at process shutdown, after the final Stop, as a hardware safety
// net.
func (m *Machine) ForceOff() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.act.SetPump(false)
	m.running = false
}

// Running reports whether a watering is in progress.
func (m *Machine) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LastWateringAt returns when the pump last started or stopped, zero if
// never.
func (m *Machine) LastWateringAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastWateringAt
}

// Snapshot returns the machine state for status reporting.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Running:        m.running,
		StartedAt:      m.startedAt,
		PlannedMinutes: m.plannedMinutes,
		LastWateringAt: m.lastWateringAt,
	}
}
