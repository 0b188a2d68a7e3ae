package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/nerrad567/neogend-core/internal/auth"
	"github.com/nerrad567/neogend-core/internal/infrastructure/mqtt"
)

type fakeBroker struct {
	published map[string][]byte
	handlers  map[string]mqtt.MessageHandler
	err       error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: map[string][]byte{}, handlers: map[string]mqtt.MessageHandler{}}
}

func (b *fakeBroker) PublishJSON(topic string, v any) error {
	if b.err != nil {
		return b.err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.published[topic] = payload
	return nil
}

func (b *fakeBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if b.err != nil {
		return b.err
	}
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBroker) Unsubscribe(topic string) error {
	delete(b.handlers, topic)
	return nil
}

type fakeWriter struct {
	reason   string
	global   bool
	affected int64
}

func (w *fakeWriter) WriteRevocation(reason string, global bool, affected int64, _ time.Time) {
	w.reason, w.global, w.affected = reason, global, affected
}

var topics = mqtt.Topics{Site: "fr-1"}

func TestMQTTSink(t *testing.T) {
	broker := newFakeBroker()
	sink := NewMQTTSink(broker, topics, "node-a")

	ev := auth.SessionEvent{AccountID: 42, ActorID: 1, Reason: auth.ReasonForcedDisconnect, NewVersion: 3, Affected: 1}
	if err := sink.SessionRevoked(context.Background(), ev); err != nil {
		t.Fatalf("SessionRevoked() error = %v", err)
	}

	payload, ok := broker.published["neogend/fr-1/sessions/revoked/42"]
	if !ok {
		t.Fatalf("nothing published on the account topic: %v", broker.published)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if msg.Origin != "node-a" || msg.AccountID != 42 || msg.NewVersion != 3 || msg.Reason != auth.ReasonForcedDisconnect {
		t.Errorf("message = %+v", msg)
	}
}

func TestMQTTSink_Global(t *testing.T) {
	broker := newFakeBroker()
	sink := NewMQTTSink(broker, topics, "node-a")

	if err := sink.SessionRevoked(context.Background(), auth.SessionEvent{Reason: auth.ReasonForcedDisconnectAll, Affected: 9}); err != nil {
		t.Fatalf("SessionRevoked() error = %v", err)
	}
	if _, ok := broker.published["neogend/fr-1/sessions/revoked/all"]; !ok {
		t.Errorf("global event not published on the all topic: %v", broker.published)
	}
}

func TestMQTTSink_PublishError(t *testing.T) {
	broker := newFakeBroker()
	broker.err = mqtt.ErrNotConnected
	sink := NewMQTTSink(broker, topics, "node-a")

	err := sink.SessionRevoked(context.Background(), auth.SessionEvent{AccountID: 1})
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("SessionRevoked() error = %v, want ErrNotConnected", err)
	}
}

func TestMetricsSink(t *testing.T) {
	w := &fakeWriter{}
	sink := NewMetricsSink(w)

	if err := sink.SessionRevoked(context.Background(), auth.SessionEvent{Reason: auth.ReasonForcedDisconnectAll, Affected: 12}); err != nil {
		t.Fatalf("SessionRevoked() error = %v", err)
	}
	if w.reason != "forced_disconnect_all" || !w.global || w.affected != 12 {
		t.Errorf("writer got %+v", w)
	}
}

func TestRelay(t *testing.T) {
	broker := newFakeBroker()
	var got []auth.SessionEvent
	handle := auth.EventSinkFunc(func(_ context.Context, ev auth.SessionEvent) error {
		got = append(got, ev)
		return nil
	})

	stop, err := Relay(broker, topics, "node-a", handle, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	handler, ok := broker.handlers[topics.AllSessionRevocations()]
	if !ok {
		t.Fatal("Relay() did not subscribe to the revocation wildcard")
	}

	own, _ := json.Marshal(Message{Origin: "node-a", SessionEvent: auth.SessionEvent{AccountID: 1}})       //nolint:errcheck // test data
	remote, _ := json.Marshal(Message{Origin: "node-b", SessionEvent: auth.SessionEvent{AccountID: 2}}) //nolint:errcheck // test data

	if err := handler(topics.SessionRevoked(1), own); err != nil {
		t.Fatalf("handler(own) error = %v", err)
	}
	if err := handler(topics.SessionRevoked(2), remote); err != nil {
		t.Fatalf("handler(remote) error = %v", err)
	}
	if err := handler(topics.SessionRevoked(3), []byte("{not json")); err == nil {
		t.Error("handler should reject malformed payloads")
	}

	if len(got) != 1 || got[0].AccountID != 2 {
		t.Errorf("relayed = %+v, want only the remote event", got)
	}

	if err := stop(); err != nil {
		t.Fatalf("stop() error = %v", err)
	}
	if _, ok := broker.handlers[topics.AllSessionRevocations()]; ok {
		t.Error("stop() should drop the revocation subscription")
	}
}

func TestRelay_SubscribeError(t *testing.T) {
	broker := newFakeBroker()
	broker.err = mqtt.ErrNotConnected
	handle := auth.EventSinkFunc(func(context.Context, auth.SessionEvent) error { return nil })

	stop, err := Relay(broker, topics, "node-a", handle, slog.New(slog.DiscardHandler))
	if !errors.Is(err, mqtt.ErrNotConnected) || stop != nil {
		t.Errorf("Relay() = %v, %v; want ErrNotConnected and no stop func", stop != nil, err)
	}
}
