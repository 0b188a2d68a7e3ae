package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/neogend-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "neogend-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// disconnectedClient is a Client that never dialled a broker.
func disconnectedClient() *Client {
	return &Client{
		cfg:           testConfig(),
		topics:        Topics{Site: "test"},
		subscriptions: make(map[string]subscription),
	}
}

func TestTopicBuilders(t *testing.T) {
	site := Topics{Site: "fr-1"}
	bare := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status", site.SystemStatus(), "neogend/fr-1/system/status"},
		{"status without site", bare.SystemStatus(), "neogend/system/status"},
		{"revoked", site.SessionRevoked(42), "neogend/fr-1/sessions/revoked/42"},
		{"revoked all", site.SessionRevoked(0), "neogend/fr-1/sessions/revoked/all"},
		{"revocations wildcard", site.AllSessionRevocations(), "neogend/fr-1/sessions/revoked/+"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestStatusPayloads(t *testing.T) {
	for _, tc := range []struct {
		payload string
		status  string
		reason  string
	}{
		{buildOnlinePayload("neogend-1"), "online", ""},
		{buildOfflinePayload("neogend-1"), "offline", "graceful_shutdown"},
	} {
		var p statusPayload
		if err := json.Unmarshal([]byte(tc.payload), &p); err != nil {
			t.Fatalf("payload %q is not JSON: %v", tc.payload, err)
		}
		if p.Status != tc.status || p.Reason != tc.reason || p.ClientID != "neogend-1" || p.Timestamp == "" {
			t.Errorf("payload = %+v", p)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth = config.MQTTAuthConfig{Username: "neogend", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.Username != "neogend" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("auto-reconnect and clean session should be on")
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config should enforce the minimum version")
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := disconnectedClient()
	noop := func(string, []byte) error { return nil }

	if c.IsConnected() {
		t.Fatal("client without broker reports connected")
	}
	if err := c.Publish("neogend/x", []byte("{}"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := c.PublishJSON("neogend/x", map[string]int{"a": 1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishJSON() error = %v, want ErrNotConnected", err)
	}
	if err := c.Subscribe("neogend/x", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if c.HasSubscription("neogend/x") {
		t.Error("failed subscribe should not be tracked")
	}
	if err := c.Unsubscribe("neogend/x"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on never-connected client error = %v", err)
	}
}

func TestInputValidation(t *testing.T) {
	c := disconnectedClient()
	noop := func(string, []byte) error { return nil }

	if err := c.Publish("", nil, 0, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(empty topic) error = %v", err)
	}
	if err := c.Publish("t", nil, 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish(qos 3) error = %v", err)
	}
	if err := c.Publish("t", make([]byte, maxPayloadSize+1), 0, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish(oversized) error = %v", err)
	}
	if err := c.PublishJSON("t", make(chan int)); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON(unencodable) error = %v", err)
	}
	if err := c.Subscribe("", 0, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty topic) error = %v", err)
	}
	if err := c.Subscribe("t", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v", err)
	}
	if err := c.Subscribe("t", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v", err)
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty topic) error = %v", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := disconnectedClient().HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.add(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add(msg) }

func (l *recordingLogger) add(msg string) {
	l.mu.Lock()
	l.lines = append(l.lines, msg)
	l.mu.Unlock()
}

func TestWrapHandler(t *testing.T) {
	c := disconnectedClient()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	var got string
	ok := c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})
	ok(nil, fakeMessage{topic: "neogend/t", payload: []byte("1")})
	if got != "neogend/t=1" {
		t.Errorf("handler saw %q", got)
	}

	failing := c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })
	failing(nil, fakeMessage{topic: "neogend/t"})

	panicking := c.wrapHandler(func(string, []byte) error { panic("boom") })
	panicking(nil, fakeMessage{topic: "neogend/t"})

	if len(logger.lines) != 2 {
		t.Fatalf("logged %v, want handler error and panic", logger.lines)
	}
}

func TestConnectionCallbacks(t *testing.T) {
	c := disconnectedClient()

	var lost error
	c.SetOnDisconnect(func(err error) { lost = err })
	c.handleDisconnect(errors.New("network down"))

	if lost == nil || lost.Error() != "network down" {
		t.Errorf("disconnect callback got %v", lost)
	}
	if c.IsConnected() {
		t.Error("client should be disconnected after connection loss")
	}
}
