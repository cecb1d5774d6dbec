package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the engine's counters and gauges for scraping.
type Metrics struct {
	registry *prometheus.Registry

	Ticks            prometheus.Counter
	WateringsStarted *prometheus.CounterVec
	WateringsStopped *prometheus.CounterVec
	StartsRefused    *prometheus.CounterVec
	LeakAlerts       prometheus.Counter
	SensorFaults     *prometheus.CounterVec

	SoilMoisture   prometheus.Gauge
	AirTemperature prometheus.Gauge
	AirHumidity    prometheus.Gauge
	PumpOn         prometheus.Gauge
}

// NewMetrics registers the garden metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garden_control_ticks_total",
			Help: "Control loop iterations.",
		}),
		WateringsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garden_waterings_started_total",
			Help: "Pump starts by source.",
		}, []string{"source"}),
		WateringsStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garden_waterings_stopped_total",
			Help: "Pump stops by reason.",
		}, []string{"reason"}),
		StartsRefused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garden_pump_starts_refused_total",
			Help: "Refused pump starts by reason.",
		}, []string{"reason"}),
		LeakAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garden_leak_alerts_total",
			Help: "Emergency stops triggered by the runtime overrun heuristic.",
		}),
		SensorFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garden_sensor_faults_total",
			Help: "Failed sensor reads by sensor.",
		}, []string{"sensor"}),
		SoilMoisture: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "garden_soil_moisture_percent",
			Help: "Latest soil moisture reading.",
		}),
		AirTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "garden_air_temperature_celsius",
			Help: "Latest air temperature reading.",
		}),
		AirHumidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "garden_air_humidity_percent",
			Help: "Latest air humidity reading.",
		}),
		PumpOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "garden_pump_on",
			Help: "1 while the pump is running.",
		}),
	}
	reg.MustRegister(
		m.Ticks, m.WateringsStarted, m.WateringsStopped, m.StartsRefused,
		m.LeakAlerts, m.SensorFaults,
		m.SoilMoisture, m.AirTemperature, m.AirHumidity, m.PumpOn,
	)
	return m
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
