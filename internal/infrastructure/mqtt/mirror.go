package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/dealerdesk-core/internal/relay"
)

// mirrorQueueSize bounds messages waiting for the broker.
const mirrorQueueSize = 256

// Publisher is the subset of *Client the mirror needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Mirror republishes relay activity on the local broker. It implements
// relay.Observer. Observer calls only enqueue and Run does the publishing.
// Messages are dropped when the queue is full.
type Mirror struct {
	pub    Publisher
	topics Topics
	qos    byte
	logger Logger
	now    func() time.Time
	queue  chan message
}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

// NewMirror creates a mirror publishing through pub. logger may be nil.
func NewMirror(pub Publisher, topics Topics, qos byte, logger Logger) *Mirror {
	if qos > maxQoS {
		qos = 1
	}
	return &Mirror{
		pub:    pub,
		topics: topics,
		qos:    qos,
		logger: logger,
		now:    time.Now,
		queue:  make(chan message, mirrorQueueSize),
	}
}

// Run publishes queued messages until ctx is done.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.queue:
			if err := m.pub.Publish(msg.topic, msg.payload, m.qos, msg.retained); err != nil && m.logger != nil {
				m.logger.Warn("mirror publish failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

type stateMessage struct {
	TenantID  string                `json:"tenant_id"`
	State     relay.ConnectionState `json:"state"`
	Timestamp time.Time             `json:"timestamp"`
}

type eventMessage struct {
	TenantID  string        `json:"tenant_id"`
	Event     string        `json:"event"`
	Data      relay.Inbound `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
}

type deliveryMessage struct {
	TenantID  string         `json:"tenant_id"`
	DataType  relay.DataType `json:"dataType"`
	Outcome   relay.Outcome  `json:"outcome"`
	Timestamp time.Time      `json:"timestamp"`
}

// StateChanged publishes the tenant's connection state, retained.
func (m *Mirror) StateChanged(tenantID string, state relay.ConnectionState) {
	m.enqueue(m.topics.RelayState(tenantID), stateMessage{
		TenantID:  tenantID,
		State:     state,
		Timestamp: m.now().UTC(),
	}, true)
}

// Delivered publishes the outcome of one outbound domain event.
func (m *Mirror) Delivered(tenantID string, dataType relay.DataType, outcome relay.Outcome) {
	m.enqueue(m.topics.Delivery(tenantID, string(dataType)), deliveryMessage{
		TenantID:  tenantID,
		DataType:  dataType,
		Outcome:   outcome,
		Timestamp: m.now().UTC(),
	}, false)
}

// Received publishes an inbound hub event.
func (m *Mirror) Received(tenantID string, ev relay.Inbound) {
	if ev == nil {
		return
	}
	m.enqueue(m.topics.Event(tenantID, ev.EventName()), eventMessage{
		TenantID:  tenantID,
		Event:     ev.EventName(),
		Data:      ev,
		Timestamp: m.now().UTC(),
	}, false)
}

func (m *Mirror) enqueue(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		if m.logger != nil {
			m.logger.Error("mirror encoding failed", "topic", topic, "error", err)
		}
		return
	}
	select {
	case m.queue <- message{topic: topic, payload: payload, retained: retained}:
	default:
		if m.logger != nil {
			m.logger.Warn("mirror queue full, message dropped", "topic", topic)
		}
	}
}

var _ relay.Observer = (*Mirror)(nil)
