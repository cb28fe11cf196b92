package ledger

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"tinysubs/pkg/address"
	"tinysubs/pkg/amount"
)

type EventType string

const (
	EventCreatorRegistered     EventType = "CreatorRegistered"
	EventPlanUpdated           EventType = "PlanUpdated"
	EventPlanStatusToggled     EventType = "PlanStatusToggled"
	EventSubscriptionCreated   EventType = "SubscriptionCreated"
	EventSubscriptionRenewed   EventType = "SubscriptionRenewed"
	EventSubscriptionCancelled EventType = "SubscriptionCancelled"
	EventFundsWithdrawn        EventType = "FundsWithdrawn"
	EventPlatformFeeUpdated    EventType = "PlatformFeeUpdated"
	EventPlatformFeeWithdrawn  EventType = "PlatformFeeWithdrawn"
	EventOwnershipTransferred  EventType = "OwnershipTransferred"
)

// EventData is the payload of one event type. Payload field sets and their
// order are read by external indexers and must stay stable.
type EventData interface {
	EventType() EventType
}

// Event is a committed, sequenced record emitted by a ledger operation.
type Event struct {
	Seq  uint64    `json:"seq"`
	ID   uuid.UUID `json:"id"`
	Type EventType `json:"type"`
	Time time.Time `json:"time"`
	Data EventData `json:"data"`
}

func NewEvent(seq uint64, at time.Time, data EventData) Event {
	return Event{
		Seq:  seq,
		ID:   uuid.New(),
		Type: data.EventType(),
		Time: at,
		Data: data,
	}
}

type CreatorRegistered struct {
	Creator  address.Address `json:"creator"`
	PlanName string          `json:"plan_name"`
	Price    amount.Amount   `json:"price"`
	AssetID  address.Address `json:"asset_id"`
}

type PlanUpdated struct {
	Creator  address.Address `json:"creator"`
	PlanName string          `json:"plan_name"`
	Price    amount.Amount   `json:"price"`
}

type PlanStatusToggled struct {
	Creator  address.Address `json:"creator"`
	IsActive bool            `json:"is_active"`
}

type SubscriptionCreated struct {
	Subscriber address.Address `json:"subscriber"`
	Creator    address.Address `json:"creator"`
	Amount     amount.Amount   `json:"amount"`
	ExpiryTime int64           `json:"expiry_time"` // unix seconds
}

type SubscriptionRenewed struct {
	Subscriber address.Address `json:"subscriber"`
	Creator    address.Address `json:"creator"`
	Amount     amount.Amount   `json:"amount"`
	ExpiryTime int64           `json:"expiry_time"`
}

type SubscriptionCancelled struct {
	Subscriber address.Address `json:"subscriber"`
	Creator    address.Address `json:"creator"`
}

type FundsWithdrawn struct {
	Creator address.Address `json:"creator"`
	Amount  amount.Amount   `json:"amount"`
	AssetID address.Address `json:"asset_id"`
}

type PlatformFeeUpdated struct {
	OldFee uint64 `json:"old_fee"`
	NewFee uint64 `json:"new_fee"`
}

type PlatformFeeWithdrawn struct {
	Owner   address.Address `json:"owner"`
	Amount  amount.Amount   `json:"amount"`
	AssetID address.Address `json:"asset_id"`
}

type OwnershipTransferred struct {
	PreviousOwner address.Address `json:"previous_owner"`
	NewOwner      address.Address `json:"new_owner"`
}

func (CreatorRegistered) EventType() EventType     { return EventCreatorRegistered }
func (PlanUpdated) EventType() EventType           { return EventPlanUpdated }
func (PlanStatusToggled) EventType() EventType     { return EventPlanStatusToggled }
func (SubscriptionCreated) EventType() EventType   { return EventSubscriptionCreated }
func (SubscriptionRenewed) EventType() EventType   { return EventSubscriptionRenewed }
func (SubscriptionCancelled) EventType() EventType { return EventSubscriptionCancelled }
func (FundsWithdrawn) EventType() EventType        { return EventFundsWithdrawn }
func (PlatformFeeUpdated) EventType() EventType    { return EventPlatformFeeUpdated }
func (PlatformFeeWithdrawn) EventType() EventType  { return EventPlatformFeeWithdrawn }
func (OwnershipTransferred) EventType() EventType  { return EventOwnershipTransferred }

// DecodeEventData rebuilds a typed payload from its stored JSON.
func DecodeEventData(t EventType, raw []byte) (EventData, error) {
	var data EventData
	switch t {
	case EventCreatorRegistered:
		data = &CreatorRegistered{}
	case EventPlanUpdated:
		data = &PlanUpdated{}
	case EventPlanStatusToggled:
		data = &PlanStatusToggled{}
	case EventSubscriptionCreated:
		data = &SubscriptionCreated{}
	case EventSubscriptionRenewed:
		data = &SubscriptionRenewed{}
	case EventSubscriptionCancelled:
		data = &SubscriptionCancelled{}
	case EventFundsWithdrawn:
		data = &FundsWithdrawn{}
	case EventPlatformFeeUpdated:
		data = &PlatformFeeUpdated{}
	case EventPlatformFeeWithdrawn:
		data = &PlatformFeeWithdrawn{}
	case EventOwnershipTransferred:
		data = &OwnershipTransferred{}
	default:
		return nil, errors.Newf("unknown event type %q", t)
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, errors.Wrapf(err, "decode %s", t)
	}
	return deref(data), nil
}

func deref(d EventData) EventData {
	switch v := d.(type) {
	case *CreatorRegistered:
		return *v
	case *PlanUpdated:
		return *v
	case *PlanStatusToggled:
		return *v
	case *SubscriptionCreated:
		return *v
	case *SubscriptionRenewed:
		return *v
	case *SubscriptionCancelled:
		return *v
	case *FundsWithdrawn:
		return *v
	case *PlatformFeeUpdated:
		return *v
	case *PlatformFeeWithdrawn:
		return *v
	case *OwnershipTransferred:
		return *v
	}
	return d
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var raw struct {
		Seq  uint64          `json:"seq"`
		ID   uuid.UUID       `json:"id"`
		Type EventType       `json:"type"`
		Time time.Time       `json:"time"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := DecodeEventData(raw.Type, raw.Data)
	if err != nil {
		return err
	}
	*e = Event{Seq: raw.Seq, ID: raw.ID, Type: raw.Type, Time: raw.Time, Data: data}
	return nil
}
