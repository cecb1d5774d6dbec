package telemetry

import (
	"log"
	"time"

	"github.com/plateforme/homegarden/internal/model"
)

// Recorder fans engine events out to the configured sinks. Any sink may be
// nil (broker or Influx not configured); the rest keep working.
type Recorder struct {
	pub     *Publisher
	influx  *InfluxSink
	Metrics *Metrics
}

// NewRecorder builds a recorder; pub and influx may be nil.
func NewRecorder(pub *Publisher, influx *InfluxSink, metrics *Metrics) *Recorder {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Recorder{pub: pub, influx: influx, Metrics: metrics}
}

func (r *Recorder) publish(kind string, event any) {
	if r.pub == nil {
		return
	}
	if err := r.pub.Publish(kind, event); err != nil {
		log.Printf("telemetry: publish %s: %v", kind, err)
	}
}

// TickStarted counts one control-loop iteration.
func (r *Recorder) TickStarted() {
	r.Metrics.Ticks.Inc()
}

// WateringStarted records a pump start and its source ("scenario",
// "schedule", "manual", "remote").
func (r *Recorder) WateringStarted(source string, at time.Time, durationMinutes float64) {
	r.Metrics.WateringsStarted.WithLabelValues(source).Inc()
	r.Metrics.PumpOn.Set(1)
	r.publish("wateringStarted", map[string]any{
		"source":           source,
		"started_at":       at.UTC().Format(time.RFC3339),
		"duration_minutes": durationMinutes,
	})
	if r.influx != nil {
		r.influx.WritePoint("watering.started", map[string]string{"source": source},
			map[string]any{"duration_minutes": durationMinutes}, at)
	}
}

// WateringStopped records the event emitted by the pump state machine.
func (r *Recorder) WateringStopped(evt model.WateringEvent) {
	r.Metrics.WateringsStopped.WithLabelValues(evt.Reason).Inc()
	r.Metrics.PumpOn.Set(0)
	if evt.Reason == "leak_detected" {
		r.Metrics.LeakAlerts.Inc()
	}
	r.publish("wateringStopped", evt)
	if r.influx != nil {
		r.influx.WritePoint("watering.stopped", map[string]string{"reason": evt.Reason},
			map[string]any{"duration_seconds": evt.DurationSeconds}, evt.StartTime)
	}
}

// Decision publishes the matched rule's outcome for downstream consumers.
func (r *Recorder) Decision(action model.Action, durationMinutes float64, soil *float64) {
	event := map[string]any{
		"action":           action,
		"duration_minutes": durationMinutes,
	}
	if soil != nil {
		event["soil_moisture"] = *soil
	}
	r.publish("decision", event)
}

// StartRefused counts a refused pump start.
func (r *Recorder) StartRefused(reason string) {
	r.Metrics.StartsRefused.WithLabelValues(reason).Inc()
}

// SensorFault counts a failed read of the named sensor.
func (r *Recorder) SensorFault(sensor string) {
	r.Metrics.SensorFaults.WithLabelValues(sensor).Inc()
}

// Sample updates the reading gauges and mirrors the sample to Influx. Nil
// fields (sensor faults) leave their gauges untouched.
func (r *Recorder) Sample(t time.Time, soil, temperature, humidity *float64) {
	fields := map[string]any{}
	if soil != nil {
		r.Metrics.SoilMoisture.Set(*soil)
		fields["soil_moisture"] = *soil
	}
	if temperature != nil {
		r.Metrics.AirTemperature.Set(*temperature)
		fields["air_temperature"] = *temperature
	}
	if humidity != nil {
		r.Metrics.AirHumidity.Set(*humidity)
		fields["air_humidity"] = *humidity
	}
	if len(fields) > 0 && r.influx != nil {
		r.influx.WritePoint("sensor.sample", nil, fields, t)
	}
}

// Alert publishes a prominent condition (leak, repeated sensor failure).
func (r *Recorder) Alert(kind, message string) {
	log.Printf("telemetry: ALERT %s: %s", kind, message)
	r.publish("alert", map[string]string{"kind": kind, "message": message})
	if r.influx != nil {
		r.influx.WritePoint("alert", map[string]string{"kind": kind},
			map[string]any{"message": message}, time.Now())
	}
}
