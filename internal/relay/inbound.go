package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/dealerdesk-core/internal/cardroom"
)

// Inbound domain event names published by the hub on a tenant channel.
const (
	EventPurchase   = `App\Events\ToAdminPanel\PurchaseEvent`
	EventRegister   = `App\Events\ToAdminPanel\RegisterEvent`
	EventPointUsage = `App\Events\ToAdminPanel\PointUsageEvent`
	EventPlayerExit = `App\Events\ToAdminPanel\PlayerExitEvent`
)

// Inbound is a decoded hub to desk domain event.
type Inbound interface {
	EventName() string
	validate() error
}

// PurchaseRecorded is a purchase made through the hub, such as an online
// buy-in.
type PurchaseRecorded struct {
	Purchase cardroom.Purchase `json:"purchaseLog"`
}

// CustomerJoined is a player who registered through the hub.
type CustomerJoined struct {
	Customer cardroom.Customer `json:"customer"`
}

// PointDebited is a point usage recorded by the hub.
type PointDebited struct {
	Entry cardroom.PointEntry `json:"pointHistory"`
}

// PlayerLeft is a player leaving a running game.
type PlayerLeft struct {
	Exit cardroom.PlayerExit `json:"playerExit"`
}

func (PurchaseRecorded) EventName() string { return EventPurchase }
func (CustomerJoined) EventName() string   { return EventRegister }
func (PointDebited) EventName() string     { return EventPointUsage }
func (PlayerLeft) EventName() string       { return EventPlayerExit }

func (e PurchaseRecorded) validate() error {
	if e.Purchase.UUID == "" {
		return fmt.Errorf("purchaseLog: %w", cardroom.ErrMissingUUID)
	}
	return nil
}

func (e CustomerJoined) validate() error {
	if e.Customer.UUID == "" {
		return fmt.Errorf("customer: %w", cardroom.ErrMissingUUID)
	}
	return nil
}

func (e PointDebited) validate() error {
	if e.Entry.UUID == "" {
		return fmt.Errorf("pointHistory: %w", cardroom.ErrMissingUUID)
	}
	return nil
}

func (e PlayerLeft) validate() error {
	if e.Exit.GameID == 0 || e.Exit.CustomerID == 0 {
		return errors.New("playerExit: game_id and customer_id are required")
	}
	if e.Exit.ExitedAt.IsZero() {
		return errors.New("playerExit: exited_at is required")
	}
	return nil
}

var inboundDecoders = map[string]func(json.RawMessage) (Inbound, error){
	EventPurchase:   decodeInbound[PurchaseRecorded],
	EventRegister:   decodeInbound[CustomerJoined],
	EventPointUsage: decodeInbound[PointDebited],
	EventPlayerExit: decodeInbound[PlayerLeft],
}

func decodeInbound[T Inbound](data json.RawMessage) (Inbound, error) {
	var v T
	if err := decodeData(data, &v); err != nil {
		return nil, err
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeInbound decodes a domain frame. ok is false for event names this
// desk does not consume.
func DecodeInbound(event string, data json.RawMessage) (ev Inbound, ok bool, err error) {
	decode, known := inboundDecoders[event]
	if !known {
		return nil, false, nil
	}
	ev, err = decode(data)
	if err != nil {
		return nil, true, fmt.Errorf("decoding %s: %w", event, err)
	}
	return ev, true, nil
}
