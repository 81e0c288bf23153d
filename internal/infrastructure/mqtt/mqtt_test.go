package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/dealerdesk-core/internal/cardroom"
	"github.com/nerrad567/dealerdesk-core/internal/infrastructure/config"
	"github.com/nerrad567/dealerdesk-core/internal/relay"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Prefix: "dealerdesk"}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"system status", topics.SystemStatus(), "dealerdesk/system/status"},
		{"relay state", topics.RelayState("t-100"), "dealerdesk/t-100/relay/state"},
		{"namespaced event", topics.Event("t-100", relay.EventPurchase), "dealerdesk/t-100/events/PurchaseEvent"},
		{"plain event", topics.Event("t-100", "custom"), "dealerdesk/t-100/events/custom"},
		{"delivery", topics.Delivery("t-100", "GameData"), "dealerdesk/t-100/delivery/GameData"},
		{"all tenant", topics.AllTenant("t-100"), "dealerdesk/t-100/#"},
		{"wildcards escaped", topics.RelayState("a+b/#"), "dealerdesk/a_b__/relay/state"},
		{"empty tenant", topics.RelayState(""), "dealerdesk/_/relay/state"},
		{"default prefix", Topics{}.SystemStatus(), "dealerdesk/system/status"},
		{"trailing slash", Topics{Prefix: "floor/"}.SystemStatus(), "floor/system/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("topic = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 8883, TLS: true, ClientID: "desk-1"},
		Auth:   config.MQTTAuthConfig{Username: "desk", Password: "pw"},
		QoS:    1,
	}
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://broker.local:8883" {
		t.Errorf("Servers = %v, want ssl://broker.local:8883", opts.Servers)
	}
	if opts.ClientID != "desk-1" {
		t.Errorf("ClientID = %q, want desk-1", opts.ClientID)
	}
	if opts.Username != "desk" || opts.Password != "pw" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Errorf("AutoReconnect = %v, CleanSession = %v, want both true", opts.AutoReconnect, opts.CleanSession)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config should be set with minimum version")
	}

	plain := buildClientOptions(config.MQTTConfig{Broker: config.MQTTBrokerConfig{Host: "localhost", Port: 1883}})
	if plain.Servers[0].String() != "tcp://localhost:1883" {
		t.Errorf("Servers = %v, want tcp://localhost:1883", plain.Servers)
	}
	if plain.Username != "" {
		t.Errorf("Username = %q, want empty", plain.Username)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(config.MQTTConfig{Broker: config.MQTTBrokerConfig{Host: "localhost", Port: 1883}})
	configureLWT(opts, Topics{Prefix: "dd"}, "desk-1")

	if !opts.WillEnabled || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will enabled=%v retained=%v qos=%d", opts.WillEnabled, opts.WillRetained, opts.WillQos)
	}
	if opts.WillTopic != "dd/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	var msg statusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if msg.Status != "offline" || msg.Reason != reasonUnexpected || msg.ClientID != "desk-1" {
		t.Errorf("will payload = %+v", msg)
	}
}

func TestClientNotConnected(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true, want false")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		want    error
	}{
		{"empty topic", "", 1, nil, ErrInvalidTopic},
		{"bad qos", "a/b", 3, nil, ErrInvalidQoS},
		{"too large", "a/b", 1, make([]byte, maxPayloadSize+1), ErrPublishFailed},
		{"disconnected", "a/b", 1, []byte("x"), ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, payload, qos, retained})
	return f.err
}

func (f *fakePublisher) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestMirror_PublishesRelayActivity(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMirror(pub, Topics{Prefix: "dd"}, 1, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	var obs relay.Observer = m
	obs.StateChanged("t-1", relay.StateSubscribed)
	obs.Delivered("t-1", relay.DataGameCreated, relay.OutcomeQueued)
	obs.Received("t-1", relay.CustomerJoined{Customer: cardroom.Customer{UUID: "c-1", Name: "Kim"}})
	obs.Received("t-1", nil)

	waitFor(t, func() bool { return len(pub.snapshot()) == 3 })
	msgs := pub.snapshot()

	if msgs[0].topic != "dd/t-1/relay/state" || !msgs[0].retained || msgs[0].qos != 1 {
		t.Errorf("state message = %+v", msgs[0])
	}
	var st map[string]any
	if err := json.Unmarshal(msgs[0].payload, &st); err != nil {
		t.Fatalf("state payload: %v", err)
	}
	if st["state"] != "subscribed" || st["tenant_id"] != "t-1" {
		t.Errorf("state payload = %v", st)
	}

	if msgs[1].topic != "dd/t-1/delivery/GameData" || msgs[1].retained {
		t.Errorf("delivery message = %+v", msgs[1])
	}
	var dl map[string]any
	if err := json.Unmarshal(msgs[1].payload, &dl); err != nil {
		t.Fatalf("delivery payload: %v", err)
	}
	if dl["outcome"] != "queued" || dl["dataType"] != "GameData" {
		t.Errorf("delivery payload = %v", dl)
	}

	if msgs[2].topic != "dd/t-1/events/RegisterEvent" {
		t.Errorf("event topic = %q", msgs[2].topic)
	}
	var ev struct {
		Event string `json:"event"`
		Data  struct {
			Customer cardroom.Customer `json:"customer"`
		} `json:"data"`
	}
	if err := json.Unmarshal(msgs[2].payload, &ev); err != nil {
		t.Fatalf("event payload: %v", err)
	}
	if ev.Event != relay.EventRegister || ev.Data.Customer.UUID != "c-1" {
		t.Errorf("event payload = %+v", ev)
	}
}

func TestMirror_DropsWhenFull(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMirror(pub, Topics{}, 5, nil)
	if m.qos != 1 {
		t.Errorf("qos = %d, want clamp to 1", m.qos)
	}

	// Run not started: the queue fills and further calls must not block.
	done := make(chan struct{})
	go func() {
		for range mirrorQueueSize + 10 {
			m.Delivered("t-1", relay.DataTableData, relay.OutcomeSent)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer calls blocked on a full queue")
	}
	if got := len(m.queue); got != mirrorQueueSize {
		t.Errorf("queued = %d, want %d", got, mirrorQueueSize)
	}
}

func TestMirror_PublishErrorsDoNotStop(t *testing.T) {
	pub := &fakePublisher{err: ErrNotConnected}
	m := NewMirror(pub, Topics{}, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.StateChanged("t-1", relay.StateConnecting)
	m.StateChanged("t-1", relay.StateOfflineMode)
	waitFor(t, func() bool { return len(pub.snapshot()) == 2 })
}
