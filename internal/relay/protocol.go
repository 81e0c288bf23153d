package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/dealerdesk-core/internal/hubauth"
)

// Pusher protocol event names.
const (
	EventPing                  = "pusher:ping"
	EventPong                  = "pusher:pong"
	EventConnectionEstablished = "pusher:connection_established"
	EventSubscribe             = "pusher:subscribe"
	EventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
	EventError                 = "pusher:error"
)

const (
	// DefaultRelayEvent is the event name outbound domain frames are sent under.
	DefaultRelayEvent = `App\Events\WebSocketMessageListener`

	// DefaultChannelPrefix is prepended to a tenant id to form its private channel.
	DefaultChannelPrefix = "private-admin_penal_"

	// CodeAuthInvalid is the pusher:error code for a rejected authentication.
	CodeAuthInvalid = 4009
)

var pongFrame = []byte(`{"event":"pusher:pong","data":{}}`)

// Frame is one pusher message. Data is kept raw; pusher servers send it
// either as an object or as a JSON-encoded string.
type Frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ChannelName returns the private channel for tenantID.
func ChannelName(prefix, tenantID string) string {
	return prefix + tenantID
}

func decodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	if f.Event == "" {
		return Frame{}, errors.New("decoding frame: missing event")
	}
	return f, nil
}

// unwrapData returns the frame data as a JSON document, decoding one level
// of string encoding when present.
func unwrapData(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.New("frame has no data")
	}
	if raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding string data: %w", err)
	}
	return json.RawMessage(s), nil
}

// decodeData unwraps and decodes a frame's data into v.
func decodeData(raw json.RawMessage, v any) error {
	data, err := unwrapData(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

type connectionEstablished struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

type hubError struct {
	Code    *int   `json:"code"`
	Message string `json:"message"`
}

func (e hubError) authInvalid() bool {
	return e.Code != nil && *e.Code == CodeAuthInvalid
}

type subscribeData struct {
	Channel     string `json:"channel"`
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

func encodeSubscribe(channel string, auth *hubauth.ChannelAuth) ([]byte, error) {
	data, err := json.Marshal(subscribeData{Channel: channel, Auth: auth.Auth, ChannelData: auth.ChannelData})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: EventSubscribe, Data: data})
}

// Envelope is the data of an outbound relay frame.
type Envelope struct {
	TenantID  string          `json:"tenant_id"`
	DataType  DataType        `json:"dataType"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// envelopeTimeLayout matches the hub's ISO-8601 timestamps with microseconds.
const envelopeTimeLayout = "2006-01-02T15:04:05.000000"

// EncodeRelayFrame builds the complete outbound frame for p.
func EncodeRelayFrame(event, channel, tenantID string, p Payload, now time.Time) ([]byte, error) {
	body, err := p.encode()
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", p.DataType(), err)
	}
	env, err := json.Marshal(Envelope{
		TenantID:  tenantID,
		DataType:  p.DataType(),
		Data:      body,
		Timestamp: now.Format(envelopeTimeLayout),
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Channel: channel, Data: env})
}
