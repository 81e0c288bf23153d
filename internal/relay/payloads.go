package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/dealerdesk-core/internal/cardroom"
)

// DataType is the wire discriminator of an outbound relay payload.
type DataType string

const (
	DataGameCreated         DataType = "GameData"
	DataGameUpdated         DataType = "GameUpdate"
	DataPaymentSucceeded    DataType = "PaymentSuccess"
	DataChipSucceeded       DataType = "ChipSuccess"
	DataCustomerRegistered  DataType = "CustomerData"
	DataPointSaved          DataType = "PointHistoryData"
	DataTableData           DataType = "TableData"
	DataPresetSaved         DataType = "PresetData"
	DataPresetDeleted       DataType = "PresetDelete"
	DataAwardingRecorded    DataType = "AwardingHistoryData"
	DataLocalPurchaseLogged DataType = "LocalPurchaseData"
)

// DataTypes lists every known dataType in wire order.
func DataTypes() []DataType {
	return []DataType{
		DataGameCreated, DataGameUpdated, DataPaymentSucceeded, DataChipSucceeded,
		DataCustomerRegistered, DataPointSaved, DataTableData, DataPresetSaved,
		DataPresetDeleted, DataAwardingRecorded, DataLocalPurchaseLogged,
	}
}

// Payload is an outbound domain event body. The set of implementations is
// closed; each variant serialises itself explicitly.
type Payload interface {
	DataType() DataType
	encode() ([]byte, error)
}

// GameCreated announces a new game.
type GameCreated struct{ Game cardroom.Game }

// GameUpdated carries the full state of a changed game.
type GameUpdated struct{ Game cardroom.Game }

// PaymentSucceeded marks a purchase as paid. The wire data is the bare uuid.
type PaymentSucceeded struct{ PurchaseUUID string }

// ChipSucceeded marks a purchase's chips as handed out.
type ChipSucceeded struct{ PurchaseUUID string }

// CustomerRegistered carries a player registered at the desk.
type CustomerRegistered struct{ Customer cardroom.Customer }

// PointSaved carries one point ledger entry.
type PointSaved struct{ Entry cardroom.PointEntry }

// TableData carries the complete floor layout.
type TableData struct{ Tables []cardroom.Table }

// PresetSaved carries a created or edited preset.
type PresetSaved struct{ Preset cardroom.Preset }

// PresetDeleted names a removed preset.
type PresetDeleted struct{ PresetID int64 }

// AwardingRecorded carries a prize payout.
type AwardingRecorded struct{ Awarding cardroom.Awarding }

// LocalPurchaseLogged carries a purchase made at the desk.
type LocalPurchaseLogged struct{ Purchase cardroom.Purchase }

func (GameCreated) DataType() DataType         { return DataGameCreated }
func (GameUpdated) DataType() DataType         { return DataGameUpdated }
func (PaymentSucceeded) DataType() DataType    { return DataPaymentSucceeded }
func (ChipSucceeded) DataType() DataType       { return DataChipSucceeded }
func (CustomerRegistered) DataType() DataType  { return DataCustomerRegistered }
func (PointSaved) DataType() DataType          { return DataPointSaved }
func (TableData) DataType() DataType           { return DataTableData }
func (PresetSaved) DataType() DataType         { return DataPresetSaved }
func (PresetDeleted) DataType() DataType       { return DataPresetDeleted }
func (AwardingRecorded) DataType() DataType    { return DataAwardingRecorded }
func (LocalPurchaseLogged) DataType() DataType { return DataLocalPurchaseLogged }

func (p GameCreated) encode() ([]byte, error) { return json.Marshal(p.Game) }
func (p GameUpdated) encode() ([]byte, error) { return json.Marshal(p.Game) }

func (p PaymentSucceeded) encode() ([]byte, error) { return encodeUUID(p.PurchaseUUID) }
func (p ChipSucceeded) encode() ([]byte, error)    { return encodeUUID(p.PurchaseUUID) }

func (p CustomerRegistered) encode() ([]byte, error) {
	if p.Customer.UUID == "" {
		return nil, cardroom.ErrMissingUUID
	}
	return json.Marshal(p.Customer)
}

func (p PointSaved) encode() ([]byte, error) {
	if p.Entry.UUID == "" {
		return nil, cardroom.ErrMissingUUID
	}
	return json.Marshal(p.Entry)
}

func (p TableData) encode() ([]byte, error) {
	if p.Tables == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.Tables)
}

func (p PresetSaved) encode() ([]byte, error) { return json.Marshal(p.Preset) }

type presetRef struct {
	ID int64 `json:"id"`
}

func (p PresetDeleted) encode() ([]byte, error) { return json.Marshal(presetRef{ID: p.PresetID}) }

func (p AwardingRecorded) encode() ([]byte, error) { return json.Marshal(p.Awarding) }

func (p LocalPurchaseLogged) encode() ([]byte, error) {
	if p.Purchase.UUID == "" {
		return nil, cardroom.ErrMissingUUID
	}
	return json.Marshal(p.Purchase)
}

func encodeUUID(id string) ([]byte, error) {
	if id == "" {
		return nil, cardroom.ErrMissingUUID
	}
	return json.Marshal(id)
}

// payloadDecoders is the dispatch table from wire dataType to variant.
var payloadDecoders = map[DataType]func(json.RawMessage) (Payload, error){
	DataGameCreated: func(raw json.RawMessage) (Payload, error) {
		return decodeInto(raw, func(g cardroom.Game) Payload { return GameCreated{Game: g} })
	},
	DataGameUpdated: func(raw json.RawMessage) (Payload, error) {
		return decodeInto(raw, func(g cardroom.Game) Payload { return GameUpdated{Game: g} })
	},
	DataPaymentSucceeded: func(raw json.RawMessage) (Payload, error) {
		id, err := decodeUUID(raw)
		if err != nil {
			return nil, err
		}
		return PaymentSucceeded{PurchaseUUID: id}, nil
	},
	DataChipSucceeded: func(raw json.RawMessage) (Payload, error) {
		id, err := decodeUUID(raw)
		if err != nil {
			return nil, err
		}
		return ChipSucceeded{PurchaseUUID: id}, nil
	},
	DataCustomerRegistered: func(raw json.RawMessage) (Payload, error) {
		return decodeInto(raw, func(c cardroom.Customer) Payload { return CustomerRegistered{Customer: c} })
	},
	DataPointSaved: func(raw json.RawMessage) (Payload, error) {
		return decodeInto(raw, func(e cardroom.PointEntry) Payload { return PointSaved{Entry: e} })
	},
	DataTableData: func(raw json.RawMessage) (Payload, error) {
		return decodeInto(raw, func(t []cardroom.Table) Payload { return TableData{Tables: t} })
	},
	DataPresetSaved: func(raw json.RawMessage) (Payload, error) {
		return decodeInto(raw, func(p cardroom.Preset) Payload { return PresetSaved{Preset: p} })
	},
	DataPresetDeleted: func(raw json.RawMessage) (Payload, error) {
		return decodeInto(raw, func(r presetRef) Payload { return PresetDeleted{PresetID: r.ID} })
	},
	DataAwardingRecorded: func(raw json.RawMessage) (Payload, error) {
		return decodeInto(raw, func(a cardroom.Awarding) Payload { return AwardingRecorded{Awarding: a} })
	},
	DataLocalPurchaseLogged: func(raw json.RawMessage) (Payload, error) {
		return decodeInto(raw, func(p cardroom.Purchase) Payload { return LocalPurchaseLogged{Purchase: p} })
	},
}

func decodeInto[T any](raw json.RawMessage, wrap func(T) Payload) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return wrap(v), nil
}

// DecodePayload builds the variant for dt from its JSON body.
func DecodePayload(dt DataType, raw json.RawMessage) (Payload, error) {
	decode, ok := payloadDecoders[dt]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataType, dt)
	}
	if len(raw) == 0 {
		return nil, errors.New("relay: empty payload")
	}
	p, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", dt, err)
	}
	// encode enforces the same required fields a send would.
	if _, err := p.encode(); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", dt, err)
	}
	return p, nil
}

func decodeUUID(raw json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		// Accept {"uuid": "..."} as well as the bare string.
		var obj struct {
			UUID string `json:"uuid"`
		}
		if err2 := json.Unmarshal(raw, &obj); err2 != nil {
			return "", err
		}
		id = obj.UUID
	}
	if id == "" {
		return "", cardroom.ErrMissingUUID
	}
	return id, nil
}
