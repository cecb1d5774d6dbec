package hw

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// referenceVoltage is the supply of the resistive soil probe. The probe
// reads high when dry and low when wet, so the percentage is the inverted
// voltage ratio.
const referenceVoltage = 3.3

// IIOSoilSensor reads an ADS1115 channel through the Linux IIO sysfs
// interface (in_voltageN_raw scaled by in_voltageN_scale, millivolts).
type IIOSoilSensor struct {
	device  string // e.g. /sys/bus/iio/devices/iio:device0
	channel int
}

// NewIIOSoilSensor validates that the IIO device exposes the channel.
func NewIIOSoilSensor(device string, channel int) (*IIOSoilSensor, error) {
	s := &IIOSoilSensor{device: device, channel: channel}
	if _, err := os.Stat(s.rawPath()); err != nil {
		return nil, fmt.Errorf("soil sensor channel %d on %s: %w", channel, device, err)
	}
	return s, nil
}

func (s *IIOSoilSensor) rawPath() string {
	return filepath.Join(s.device, fmt.Sprintf("in_voltage%d_raw", s.channel))
}

func (s *IIOSoilSensor) scalePath() string {
	return filepath.Join(s.device, fmt.Sprintf("in_voltage%d_scale", s.channel))
}

// ReadSoilMoisture converts the probe voltage into a percentage. Negative
// voltages (loose wiring) are floored to zero; the result is clamped to
// [0,100] and rounded to two decimals.
func (s *IIOSoilSensor) ReadSoilMoisture() (float64, error) {
	raw, err := readSysfsFloat(s.rawPath())
	if err != nil {
		return 0, fmt.Errorf("%w: read soil raw: %v", ErrSensorFault, err)
	}
	scale, err := readSysfsFloat(s.scalePath())
	if err != nil {
		return 0, fmt.Errorf("%w: read soil scale: %v", ErrSensorFault, err)
	}
	voltage := raw * scale / 1000.0 // scale is mV per LSB
	if voltage < 0 {
		voltage = 0
	}
	pct := (1 - voltage/referenceVoltage) * 100
	pct = math.Max(0, math.Min(100, pct))
	return math.Round(pct*100) / 100, nil
}

// IIOAirSensor reads a DHT11/DHT22 through the kernel's dht11 IIO driver
// (in_temp_input in millidegrees, in_humidityrelative_input in
// millipercent).
type IIOAirSensor struct {
	device string
}

func NewIIOAirSensor(device string) (*IIOAirSensor, error) {
	s := &IIOAirSensor{device: device}
	if _, err := os.Stat(filepath.Join(device, "in_temp_input")); err != nil {
		return nil, fmt.Errorf("air sensor on %s: %w", device, err)
	}
	return s, nil
}

// ReadAir returns temperature (°C) and relative humidity (%). DHT reads
// fail routinely mid-transfer; callers retry with short pauses.
func (s *IIOAirSensor) ReadAir() (float64, float64, error) {
	temp, err := readSysfsFloat(filepath.Join(s.device, "in_temp_input"))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: read temperature: %v", ErrSensorFault, err)
	}
	hum, err := readSysfsFloat(filepath.Join(s.device, "in_humidityrelative_input"))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: read humidity: %v", ErrSensorFault, err)
	}
	return temp / 1000.0, hum / 1000.0, nil
}

func readSysfsFloat(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
}
