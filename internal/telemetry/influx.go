package telemetry

import (
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxSink writes garden events as points through the async WriteAPI. It
// listens on the API's error channel so broker hiccups show up in the log
// and in LastErrorAge.
type InfluxSink struct {
	api api.WriteAPI

	mu      sync.RWMutex
	lastErr time.Time
}

// NewInfluxSink wraps the write API and starts the error listener.
func NewInfluxSink(w api.WriteAPI) *InfluxSink {
	s := &InfluxSink{
		api:     w,
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				s.mu.Lock()
				s.lastErr = time.Now()
				s.mu.Unlock()
				log.Printf("telemetry: influx write error: %v", err)
			}
		}
	}()
	return s
}

// WritePoint queues one point under the garden_event measurement.
func (s *InfluxSink) WritePoint(eventType string, tags map[string]string, fields map[string]any, ts time.Time) {
	allTags := map[string]string{"event_type": eventType}
	for k, v := range tags {
		allTags[k] = v
	}
	if len(fields) == 0 {
		fields = map[string]any{"count": int64(1)}
	}
	s.api.WritePoint(influxdb2.NewPoint("garden_event", allTags, fields, ts))
}

// LastErrorAge returns how long the sink has gone without a write error.
func (s *InfluxSink) LastErrorAge() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastErr)
}
