// Package hw abstracts the sensors and the pump output. Real
// implementations talk to the Linux IIO and GPIO character devices; fakes
// return scripted values for tests.
package hw

import "errors"

// ErrSensorFault marks a failed sensor read. The engine degrades the
// affected reading to absent and keeps running.
var ErrSensorFault = errors.New("sensor fault")

// SoilSensor reads the soil-moisture probe.
type SoilSensor interface {
	// ReadSoilMoisture returns the soil moisture as a percentage in [0,100].
	ReadSoilMoisture() (float64, error)
}

// AirSensor reads the combined temperature/humidity sensor.
type AirSensor interface {
	// ReadAir returns air temperature (°C) and relative humidity (%).
	ReadAir() (temperature, humidity float64, err error)
}

// PumpOutput drives the pump relay.
type PumpOutput interface {
	SetPump(on bool)
	Close() error
}
