package hw

import "sync"

// FakeSoilSensor returns scripted moisture values. Each read consumes the
// next sample; when exhausted, the last sample repeats. A nil entry scripts
// a sensor fault.
type FakeSoilSensor struct {
	mu      sync.Mutex
	Samples []*float64
	index   int
}

// NewFakeSoilSensor scripts the given samples; use nil for a fault.
func NewFakeSoilSensor(samples ...*float64) *FakeSoilSensor {
	return &FakeSoilSensor{Samples: samples}
}

func (f *FakeSoilSensor) ReadSoilMoisture() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Samples) == 0 {
		return 0, ErrSensorFault
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	if s == nil {
		return 0, ErrSensorFault
	}
	return *s, nil
}

// AirSample is one scripted temperature/humidity pair.
type AirSample struct {
	Temperature float64
	Humidity    float64
	Fault       bool
}

// FakeAirSensor returns scripted air samples, repeating the last one when
// exhausted.
type FakeAirSensor struct {
	mu      sync.Mutex
	Samples []AirSample
	index   int
	Reads   int
}

func NewFakeAirSensor(samples ...AirSample) *FakeAirSensor {
	return &FakeAirSensor{Samples: samples}
}

func (f *FakeAirSensor) ReadAir() (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if len(f.Samples) == 0 {
		return 0, 0, ErrSensorFault
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	if s.Fault {
		return 0, 0, ErrSensorFault
	}
	return s.Temperature, s.Humidity, nil
}

// FakePump records output transitions for assertions.
type FakePump struct {
	mu          sync.Mutex
	On          bool
	Transitions []bool
	Closed      bool
}

func (f *FakePump) SetPump(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.On = on
	f.Transitions = append(f.Transitions, on)
}

func (f *FakePump) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsOn reports the current output level.
func (f *FakePump) IsOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.On
}
