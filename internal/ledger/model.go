package ledger

import (
	"time"

	"tinysubs/pkg/address"
	"tinysubs/pkg/amount"
)

const (
	MonthDuration = 30 * 24 * time.Hour
	Day           = 24 * time.Hour

	BasisPointsDenominator = 10000
	MaxFeeBasisPoints      = 1000 // 10%
	DefaultFeeBasisPoints  = 250  // 2.5%
)

type CreatorPlan struct {
	Creator         address.Address `json:"creator"`
	PlanName        string          `json:"plan_name"`
	Description     string          `json:"description"`
	PricePerMonth   amount.Amount   `json:"price_per_month"`
	AssetID         address.Address `json:"asset_id"` // address.Zero = native asset
	IsActive        bool            `json:"is_active"`
	SubscriberCount uint64          `json:"subscriber_count"`
	TotalEarned     amount.Amount   `json:"total_earned"` // withdrawable, net of fee
	CreatedAt       time.Time       `json:"created_at"`
}

// Subscription is the single slot for a (subscriber, creator) pair. IsActive
// is cleared only by cancellation; time expiry is derived from ExpiryTime.
type Subscription struct {
	Subscriber      address.Address `json:"subscriber"`
	Creator         address.Address `json:"creator"`
	StartTime       time.Time       `json:"start_time"`
	LastPaymentTime time.Time       `json:"last_payment_time"`
	ExpiryTime      time.Time       `json:"expiry_time"`
	IsActive        bool            `json:"is_active"`
	TotalPaid       amount.Amount   `json:"total_paid"`
}

// ExpiredAt reports whether the paid period has run out at now, independent of
// IsActive. An absent subscription (zero ExpiryTime) counts as expired.
func (s Subscription) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiryTime)
}

// RemainingDaysAt is ceil((expiry-now)/day), never negative.
func (s Subscription) RemainingDaysAt(now time.Time) uint64 {
	if !now.Before(s.ExpiryTime) {
		return 0
	}
	left := s.ExpiryTime.Sub(now)
	days := left / Day
	if left%Day != 0 {
		days++
	}
	return uint64(days)
}

type SubscriptionKey struct {
	Subscriber address.Address
	Creator    address.Address
}

// Settings are the process-wide owner and fee rate.
type Settings struct {
	Owner          address.Address `json:"owner"`
	FeeBasisPoints uint64          `json:"fee_basis_points"`
}

// Balance is an amount held for an account in one asset. With Account empty it
// is a platform fee pool entry.
type Balance struct {
	Account address.Address `json:"account,omitempty"`
	AssetID address.Address `json:"asset_id"`
	Amount  amount.Amount   `json:"amount"`
}

type BalanceKey struct {
	Account address.Address
	AssetID address.Address
}

// IndexEntry places a subscriber in a creator's subscriber index. Position
// orders the listing; it is the sequence of the event that added the entry.
type IndexEntry struct {
	Creator    address.Address
	Subscriber address.Address
	Position   uint64
	Removed    bool
}

// Changeset carries the absolute post-operation values of every record an
// operation touched. It is committed as one storage transaction.
type Changeset struct {
	Settings      *Settings
	NewCreators   []RegistryEntry
	Plans         []CreatorPlan
	Subscriptions []Subscription
	Index         []IndexEntry
	Fees          []Balance
	Balances      []Balance
	Events        []Event
}

type RegistryEntry struct {
	Creator  address.Address
	Position uint64
}

// Snapshot is the full durable entity graph, as loaded at startup.
type Snapshot struct {
	Settings      Settings
	Creators      []address.Address // registry order
	Plans         []CreatorPlan
	Subscriptions []Subscription
	Index         []IndexEntry // ordered by Position
	Fees          []Balance
	Balances      []Balance
	LastEventSeq  uint64
	Initialized   bool
}
