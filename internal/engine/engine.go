// Package engine runs the irrigation control loop: it reads the sensors,
// keeps the pump safety checks alive, fires scheduled waterings and applies
// the scenario decision, every tick. It is the only writer of pump commands
// besides the manual-control entry points it exposes itself.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/plateforme/homegarden/internal/config"
	"github.com/plateforme/homegarden/internal/hw"
	"github.com/plateforme/homegarden/internal/model"
	"github.com/plateforme/homegarden/internal/pump"
	"github.com/plateforme/homegarden/internal/scenario"
	"github.com/plateforme/homegarden/internal/schedule"
)

const (
	// DefaultTickInterval is the normal loop period.
	DefaultTickInterval = 5 * time.Second
	// DefaultMaintenanceInterval is the loop period while maintenance mode
	// is on and decisions are suspended.
	DefaultMaintenanceInterval = 30 * time.Second
)

// ErrMaintenance rejects manual starts while maintenance mode is on.
var ErrMaintenance = errors.New("maintenance mode active")

// EventLog persists watering events and sensor samples. Satisfied by
// logstore.Store.
type EventLog interface {
	AppendWatering(model.WateringEvent) error
	AppendSensorSample(t time.Time, temperature, humidity float64) error
	AppendSoilSample(t time.Time, moisture float64) error
}

// Telemetry receives engine events for the observability plane. Satisfied by
// telemetry.Recorder; all methods are best-effort and must not block the
// loop.
type Telemetry interface {
	TickStarted()
	WateringStarted(source string, at time.Time, durationMinutes float64)
	WateringStopped(evt model.WateringEvent)
	Decision(action model.Action, durationMinutes float64, soil *float64)
	StartRefused(reason string)
	SensorFault(sensor string)
	Sample(t time.Time, soil, temperature, humidity *float64)
	Alert(kind, message string)
}

// NopTelemetry discards all events.
type NopTelemetry struct{}

func (NopTelemetry) TickStarted()                                   {}
func (NopTelemetry) WateringStarted(string, time.Time, float64)     {}
func (NopTelemetry) WateringStopped(model.WateringEvent)            {}
func (NopTelemetry) Decision(model.Action, float64, *float64)       {}
func (NopTelemetry) StartRefused(string)                            {}
func (NopTelemetry) SensorFault(string)                             {}
func (NopTelemetry) Sample(time.Time, *float64, *float64, *float64) {}
func (NopTelemetry) Alert(string, string)                           {}

// Engine is the control loop over one pump and one sensor pair.
type Engine struct {
	store *config.Store
	soil  hw.SoilSensor
	air   hw.AirSensor
	pump  *pump.Machine
	logs  EventLog
	tel   Telemetry

	now                 func() time.Time
	tickInterval        time.Duration
	maintenanceInterval time.Duration
	airRetries          uint64
	airRetryDelay       time.Duration
}

// New wires the loop. A nil tel disables telemetry.
func New(store *config.Store, soil hw.SoilSensor, air hw.AirSensor, pm *pump.Machine, logs EventLog, tel Telemetry) *Engine {
	if tel == nil {
		tel = NopTelemetry{}
	}
	return &Engine{
		store:               store,
		soil:                soil,
		air:                 air,
		pump:                pm,
		logs:                logs,
		tel:                 tel,
		now:                 time.Now,
		tickInterval:        DefaultTickInterval,
		maintenanceInterval: DefaultMaintenanceInterval,
		airRetries:          2,
		airRetryDelay:       200 * time.Millisecond,
	}
}

// Run drives the loop until the context is canceled, then stops any running
// watering and forces the pump output off.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("engine: control loop started (tick %s)", e.tickInterval)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			if evt, ok := e.pump.Stop(e.now(), pump.StopShutdown); ok {
				e.recordStop(evt)
			}
			e.pump.ForceOff()
			log.Printf("engine: control loop stopped")
			return
		case <-timer.C:
			timer.Reset(e.runOnce())
		}
	}
}

// runOnce executes one tick under a panic guard. A panicking tick is logged
// and the loop resumes at the normal period.
func (e *Engine) runOnce() (delay time.Duration) {
	delay = e.tickInterval
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: tick panic recovered: %v", r)
		}
	}()
	return e.tick()
}

func (e *Engine) tick() time.Duration {
	now := e.now()
	e.tel.TickStarted()

	cfg, err := e.store.Get()
	if err != nil {
		log.Printf("engine: config unavailable, skipping decisions: %v", err)
		return e.tickInterval
	}

	if cfg.MaintenanceMode {
		// Decisions are suspended but the runtime guards stay live: a
		// watering in flight when maintenance was switched on still stops
		// at its planned duration.
		e.pumpTick(now)
		return e.maintenanceInterval
	}

	reading := e.readSensors(now)
	if reading.SoilMoisture != nil {
		if err := e.logs.AppendSoilSample(now, *reading.SoilMoisture); err != nil {
			log.Printf("engine: soil log: %v", err)
		}
	}
	e.tel.Sample(now, reading.SoilMoisture, reading.AirTemperature, reading.AirHumidity)

	e.pumpTick(now)

	if entry := schedule.Due(now, cfg.Schedules, e.pump.LastWateringAt(), e.pump.Running()); entry != nil {
		e.startWatering(now, "schedule", entry.DurationMinutes, cfg.MinWateringIntervalMinutes)
	}

	d := scenario.Decide(cfg.CurrentRules(), reading, cfg.VacationMode)
	if d.Matched() {
		e.tel.Decision(d.Action, d.DurationMinutes, reading.SoilMoisture)
	}
	switch {
	case !d.Matched():
	case d.Action == model.ActionNoWater:
		if evt, ok := e.pump.Stop(now, pump.StopRuleNoWater); ok {
			e.recordStop(evt)
		}
	case d.ShouldStart():
		e.startWatering(now, "scenario", d.DurationMinutes, cfg.MinWateringIntervalMinutes)
	}

	if reading.AirTemperature != nil && reading.AirHumidity != nil {
		if err := e.logs.AppendSensorSample(now, *reading.AirTemperature, *reading.AirHumidity); err != nil {
			log.Printf("engine: air log: %v", err)
		}
	}
	return e.tickInterval
}

// readSensors reads both sensors with independent fault tolerance. The DHT
// air sensor misreads routinely, so its read is retried a bounded number of
// times within the tick.
func (e *Engine) readSensors(now time.Time) model.Reading {
	r := model.Reading{Timestamp: now}

	if v, err := e.soil.ReadSoilMoisture(); err != nil {
		log.Printf("engine: soil sensor: %v", err)
		e.tel.SensorFault("soil")
	} else {
		r.SoilMoisture = &v
	}

	var temp, hum float64
	read := func() error {
		var err error
		temp, hum, err = e.air.ReadAir()
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(e.airRetryDelay), e.airRetries)
	if err := backoff.Retry(read, bo); err != nil {
		log.Printf("engine: air sensor: %v", err)
		e.tel.SensorFault("air")
	} else {
		r.AirTemperature = &temp
		r.AirHumidity = &hum
	}
	return r
}

// pumpTick applies the runtime guards and stops the watering when due.
func (e *Engine) pumpTick(now time.Time) {
	reason, due := e.pump.Tick(now)
	if !due {
		return
	}
	evt, ok := e.pump.Stop(now, reason)
	if !ok {
		return
	}
	e.recordStop(evt)
	if reason == pump.StopLeakDetected {
		e.tel.Alert("leak", fmt.Sprintf("watering ran %.0fs, stopped by the runtime guard", evt.DurationSeconds))
	}
}

func (e *Engine) startWatering(now time.Time, source string, minutes, minIntervalMinutes float64) bool {
	if minutes <= 0 {
		return false
	}
	if err := e.pump.Start(now, minutes, minIntervalMinutes); err != nil {
		if reason, ok := pump.IsRefusal(err); ok {
			log.Printf("engine: %s start refused: %v", source, err)
			e.tel.StartRefused(reason)
		} else {
			log.Printf("engine: %s start: %v", source, err)
		}
		return false
	}
	e.tel.WateringStarted(source, now, minutes)
	return true
}

func (e *Engine) recordStop(evt model.WateringEvent) {
	if err := e.logs.AppendWatering(evt); err != nil {
		log.Printf("engine: watering log: %v", err)
	}
	e.tel.WateringStopped(evt)
}

// ManualStart starts a watering on behalf of an operator. It is blocked in
// maintenance mode and honors the same interval guard as every other start.
func (e *Engine) ManualStart(durationMinutes float64) error {
	if durationMinutes <= 0 {
		return errors.New("duration must be positive")
	}
	cfg, err := e.store.Get()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	if cfg.MaintenanceMode {
		return ErrMaintenance
	}
	now := e.now()
	if err := e.pump.Start(now, durationMinutes, cfg.MinWateringIntervalMinutes); err != nil {
		if reason, ok := pump.IsRefusal(err); ok {
			e.tel.StartRefused(reason)
		}
		return err
	}
	e.tel.WateringStarted("manual", now, durationMinutes)
	return nil
}

// ManualStop stops the running watering. Always accepted; stopping an idle
// pump reports ok=false and logs nothing.
func (e *Engine) ManualStop() (model.WateringEvent, bool) {
	evt, ok := e.pump.Stop(e.now(), pump.StopManual)
	if ok {
		e.recordStop(evt)
	}
	return evt, ok
}

// ReadNow performs an on-demand sensor read outside the tick cadence, for
// the live-data endpoint.
func (e *Engine) ReadNow() model.Reading {
	return e.readSensors(e.now())
}

// PumpState snapshots the pump for status reporting.
func (e *Engine) PumpState() pump.State {
	return e.pump.Snapshot()
}
