// Package notify fans committed session revocations out of the process:
// to the MQTT broker for other Neogend instances and game-server plugins,
// and to InfluxDB as metrics. It also relays revocations published by
// other instances back into local handlers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nerrad567/neogend-core/internal/auth"
	"github.com/nerrad567/neogend-core/internal/infrastructure/mqtt"
)

// Publisher is the subset of *mqtt.Client used to publish.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Subscriber is the subset of *mqtt.Client used to receive.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// RevocationWriter is the subset of *influxdb.Client used for metrics.
type RevocationWriter interface {
	WriteRevocation(reason string, global bool, affected int64, at time.Time)
}

// Message is the wire form of a revocation on the broker.
type Message struct {
	Origin string `json:"origin"`
	auth.SessionEvent
}

// MQTTSink publishes every revocation to the site's revocation topic.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
	origin string
}

// NewMQTTSink creates a sink. origin identifies this instance so its own
// messages can be told apart when they come back.
func NewMQTTSink(pub Publisher, topics mqtt.Topics, origin string) *MQTTSink {
	return &MQTTSink{pub: pub, topics: topics, origin: origin}
}

// SessionRevoked implements auth.EventSink.
func (s *MQTTSink) SessionRevoked(_ context.Context, ev auth.SessionEvent) error {
	if err := s.pub.PublishJSON(s.topics.SessionRevoked(ev.AccountID), Message{Origin: s.origin, SessionEvent: ev}); err != nil {
		return fmt.Errorf("publishing revocation: %w", err)
	}
	return nil
}

// MetricsSink writes every revocation as an InfluxDB point.
type MetricsSink struct {
	w RevocationWriter
}

// NewMetricsSink creates a sink over w.
func NewMetricsSink(w RevocationWriter) *MetricsSink {
	return &MetricsSink{w: w}
}

// SessionRevoked implements auth.EventSink. Writes are asynchronous and
// never fail here.
func (s *MetricsSink) SessionRevoked(_ context.Context, ev auth.SessionEvent) error {
	s.w.WriteRevocation(string(ev.Reason), ev.Global(), ev.Affected, ev.At)
	return nil
}

// Relay subscribes to revocations published by other instances and hands
// each one to handle. Messages carrying origin are skipped since the local
// ledger already delivered them. The returned stop func drops the
// subscription.
func Relay(sub Subscriber, topics mqtt.Topics, origin string, handle auth.EventSink, logger *slog.Logger) (stop func() error, err error) {
	topic := topics.AllSessionRevocations()
	err = sub.Subscribe(topic, 1, func(topic string, payload []byte) error {
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decoding revocation on %s: %w", topic, err)
		}
		if msg.Origin == origin {
			return nil
		}
		logger.Debug("remote revocation received",
			"origin", msg.Origin,
			"account_id", msg.AccountID,
			"reason", msg.Reason,
		)
		return handle.SessionRevoked(context.Background(), msg.SessionEvent)
	})
	if err != nil {
		return nil, err
	}
	return func() error { return sub.Unsubscribe(topic) }, nil
}
