// Package telemetry mirrors engine events onto the observability plane: MQTT
// topics for downstream consumers, InfluxDB points for dashboards and
// Prometheus counters for scraping. Every sink is best-effort; telemetry
// failures never reach the control loop.
package telemetry

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"
)

var errPublishTimeout = errors.New("publish timeout")

// Topic templates, {kind} is the event family.
const topicTemplate = "event/{kind}/garden"

// Publisher pushes JSON events to MQTT behind a circuit breaker: when the
// broker is unreachable, the breaker opens and publishes are dropped cheaply
// instead of stalling on timed-out tokens every tick.
type Publisher struct {
	client  mqtt.Client
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewPublisher wraps the connected client. The breaker opens after five
// consecutive failures and probes again after 30 seconds.
func NewPublisher(client mqtt.Client) *Publisher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mqtt-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("telemetry: breaker %s %s -> %s", name, from, to)
		},
	})
	return &Publisher{client: client, breaker: cb, timeout: 2 * time.Second}
}

// Publish marshals the event and publishes it at QoS 1 under
// event/<kind>/garden. Errors are returned for logging but carry no retry
// obligation.
func (p *Publisher) Publish(kind string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	topic := strings.Replace(topicTemplate, "{kind}", kind, 1)

	_, err = p.breaker.Execute(func() (any, error) {
		token := p.client.Publish(topic, 1, false, payload)
		if !token.WaitTimeout(p.timeout) {
			return nil, errPublishTimeout
		}
		return nil, token.Error()
	})
	return err
}
