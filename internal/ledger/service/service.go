// Package service is the subscription ledger and escrow engine. All state
// lives in one Service; every mutating call is serialized, committed to the
// Store as a single transaction, and only then applied in memory.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"tinysubs/internal/ledger"
	"tinysubs/internal/metrics"
	"tinysubs/pkg/address"
	"tinysubs/pkg/amount"
)

type Store interface {
	Load(ctx context.Context) (*ledger.Snapshot, error)
	Commit(ctx context.Context, cs *ledger.Changeset) error
	Events(ctx context.Context, afterSeq uint64, limit int) ([]ledger.Event, error)
}

// Publisher receives committed events in sequence order. Publish is called
// with the ledger lock held and must not block.
type Publisher interface {
	Publish(events []ledger.Event)
}

// Genesis seeds a ledger that has never been initialized in the store.
type Genesis struct {
	Owner          address.Address
	FeeBasisPoints uint64
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

type Service struct {
	mu        sync.RWMutex
	store     Store
	state     *state
	now       func() time.Time
	publisher Publisher
	log       *zap.Logger
}

// NewService loads the ledger from store, initializing it from genesis on
// first start. Genesis is ignored once the store holds settings.
func NewService(ctx context.Context, store Store, genesis Genesis, opts ...Option) (*Service, error) {
	s := &Service{
		store: store,
		now:   time.Now,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load ledger")
	}
	s.state = newState(snap)

	if !snap.Initialized {
		if err := s.initialize(ctx, genesis); err != nil {
			return nil, err
		}
	}

	metrics.LedgerCreators.Set(float64(len(s.state.creators)))
	metrics.LedgerActiveSubscriptions.Set(float64(s.state.active))
	s.log.Info("ledger loaded",
		zap.String("owner", s.state.settings.Owner.Checksum()),
		zap.Uint64("fee_bps", s.state.settings.FeeBasisPoints),
		zap.Int("creators", len(s.state.creators)),
		zap.Uint64("last_event_seq", s.state.lastSeq),
	)
	return s, nil
}

func (s *Service) initialize(ctx context.Context, g Genesis) error {
	if g.Owner == "" || g.Owner.IsZero() {
		return errors.Wrap(ErrInvalidAddress, "genesis owner")
	}
	if g.FeeBasisPoints > ledger.MaxFeeBasisPoints {
		return errors.Wrap(ErrFeeTooHigh, "genesis fee")
	}
	return s.mutate(ctx, "initialize", func(t *txn) error {
		t.setSettings(ledger.Settings{Owner: g.Owner, FeeBasisPoints: g.FeeBasisPoints})
		t.emit(ledger.OwnershipTransferred{PreviousOwner: address.Zero, NewOwner: g.Owner})
		return nil
	})
}

// mutate runs fn against a staging transaction, commits the resulting
// changeset, and applies it. A rejection or commit failure leaves both memory
// and storage untouched.
func (s *Service) mutate(ctx context.Context, op string, fn func(t *txn) error) error {
	start := time.Now()
	defer func() {
		metrics.LedgerOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txn{
		st:  s.state,
		now: s.now().UTC().Truncate(time.Second),
		seq: s.state.lastSeq,
		cs:  &ledger.Changeset{},
	}
	if err := fn(t); err != nil {
		result := "error"
		if le, ok := AsError(err); ok {
			result = string(le.Kind)
		}
		metrics.LedgerOperationsTotal.WithLabelValues(op, result).Inc()
		return err
	}

	if err := s.store.Commit(ctx, t.cs); err != nil {
		metrics.LedgerOperationsTotal.WithLabelValues(op, "error").Inc()
		s.log.Error("ledger commit failed", zap.String("operation", op), zap.Error(err))
		return errors.Wrapf(err, "commit %s", op)
	}

	s.state.apply(t.cs)
	for _, hook := range t.committed {
		hook()
	}
	metrics.LedgerOperationsTotal.WithLabelValues(op, "ok").Inc()
	for _, ev := range t.cs.Events {
		metrics.LedgerEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	}
	metrics.LedgerCreators.Set(float64(len(s.state.creators)))
	metrics.LedgerActiveSubscriptions.Set(float64(s.state.active))

	if s.publisher != nil && len(t.cs.Events) > 0 {
		s.publisher.Publish(t.cs.Events)
	}
	s.log.Info("ledger commit", zap.String("operation", op), zap.Int("events", len(t.cs.Events)), zap.Uint64("seq", s.state.lastSeq))
	return nil
}

func validCaller(a address.Address) error {
	if a == "" || a.IsZero() {
		return ErrInvalidAddress
	}
	return nil
}

func validPlanFields(planName string, price amount.Amount) error {
	if price.IsZero() {
		return ErrInvalidPrice
	}
	if planName == "" {
		return ErrInvalidPlanName
	}
	return nil
}

// splitPayment returns the platform fee floor(payment*bps/10000) and the
// creator's share.
func splitPayment(payment amount.Amount, feeBasisPoints uint64) (fee, share amount.Amount) {
	fee = payment.MulDiv(feeBasisPoints, ledger.BasisPointsDenominator)
	share, _ = payment.Sub(fee) // fee <= payment while bps <= 10000
	return fee, share
}

func (s *Service) RegisterCreator(ctx context.Context, caller address.Address, planName, description string, pricePerMonth amount.Amount, assetID address.Address) error {
	return s.mutate(ctx, "register_creator", func(t *txn) error {
		if err := validCaller(caller); err != nil {
			return err
		}
		if assetID == "" {
			assetID = address.Zero
		}
		if _, ok := t.st.plans[caller]; ok {
			return ErrAlreadyRegistered
		}
		if err := validPlanFields(planName, pricePerMonth); err != nil {
			return err
		}

		plan := ledger.CreatorPlan{
			Creator:       caller,
			PlanName:      planName,
			Description:   description,
			PricePerMonth: pricePerMonth,
			AssetID:       assetID,
			IsActive:      true,
			TotalEarned:   amount.Zero,
			CreatedAt:     t.now,
		}
		t.putPlan(plan)
		t.registerCreator(caller)
		t.emit(ledger.CreatorRegistered{Creator: caller, PlanName: planName, Price: pricePerMonth, AssetID: assetID})
		return nil
	})
}

func (s *Service) UpdatePlan(ctx context.Context, caller address.Address, planName, description string, pricePerMonth amount.Amount) error {
	return s.mutate(ctx, "update_plan", func(t *txn) error {
		plan, ok := t.st.plans[caller]
		if !ok {
			return ErrNotACreator
		}
		if err := validPlanFields(planName, pricePerMonth); err != nil {
			return err
		}
		plan.PlanName = planName
		plan.Description = description
		plan.PricePerMonth = pricePerMonth
		t.putPlan(plan)
		t.emit(ledger.PlanUpdated{Creator: caller, PlanName: planName, Price: pricePerMonth})
		return nil
	})
}

func (s *Service) TogglePlanStatus(ctx context.Context, caller address.Address) error {
	return s.mutate(ctx, "toggle_plan_status", func(t *txn) error {
		plan, ok := t.st.plans[caller]
		if !ok {
			return ErrNotACreator
		}
		plan.IsActive = !plan.IsActive
		t.putPlan(plan)
		t.emit(ledger.PlanStatusToggled{Creator: caller, IsActive: plan.IsActive})
		return nil
	})
}

// Subscribe opens (or reopens after cancellation) the caller's subscription
// to creator. payment must equal the plan price exactly.
func (s *Service) Subscribe(ctx context.Context, caller, creator address.Address, payment amount.Amount) error {
	return s.mutate(ctx, "subscribe", func(t *txn) error {
		if err := validCaller(caller); err != nil {
			return err
		}
		plan, ok := t.st.plans[creator]
		if !ok || !plan.IsActive {
			return ErrNotActivePlan
		}
		if caller == creator {
			return ErrSelfSubscription
		}
		key := ledger.SubscriptionKey{Subscriber: caller, Creator: creator}
		if t.st.subs[key].IsActive {
			return ErrAlreadySubscribed
		}
		if !payment.Equal(plan.PricePerMonth) {
			return ErrIncorrectPayment
		}

		fee, share := splitPayment(payment, t.st.settings.FeeBasisPoints)
		sub := ledger.Subscription{
			Subscriber:      caller,
			Creator:         creator,
			StartTime:       t.now,
			LastPaymentTime: t.now,
			ExpiryTime:      t.now.Add(ledger.MonthDuration),
			IsActive:        true,
			TotalPaid:       payment,
		}
		t.putSubscription(sub)

		plan.SubscriberCount++
		plan.TotalEarned = plan.TotalEarned.Add(share)
		t.putPlan(plan)
		t.addFee(plan.AssetID, fee)

		seq := t.emit(ledger.SubscriptionCreated{Subscriber: caller, Creator: creator, Amount: payment, ExpiryTime: sub.ExpiryTime.Unix()})
		t.index(ledger.IndexEntry{Creator: creator, Subscriber: caller, Position: seq})

		t.onCommit(func() { metrics.LedgerPaymentsTotal.WithLabelValues("subscribe", plan.AssetID.String()).Inc() })
		return nil
	})
}

// RenewSubscription extends an active subscription by one month from the
// later of its current expiry and now, so no paid time is lost. The plan's
// active flag does not matter for renewals.
func (s *Service) RenewSubscription(ctx context.Context, caller, creator address.Address, payment amount.Amount) error {
	return s.mutate(ctx, "renew_subscription", func(t *txn) error {
		key := ledger.SubscriptionKey{Subscriber: caller, Creator: creator}
		sub, ok := t.st.subs[key]
		if !ok || !sub.IsActive {
			return ErrNoActiveSubscription
		}
		plan := t.st.plans[creator]
		if !payment.Equal(plan.PricePerMonth) {
			return ErrIncorrectPayment
		}

		fee, share := splitPayment(payment, t.st.settings.FeeBasisPoints)
		base := sub.ExpiryTime
		if t.now.After(base) {
			base = t.now
		}
		sub.ExpiryTime = base.Add(ledger.MonthDuration)
		sub.LastPaymentTime = t.now
		sub.TotalPaid = sub.TotalPaid.Add(payment)
		t.putSubscription(sub)

		plan.TotalEarned = plan.TotalEarned.Add(share)
		t.putPlan(plan)
		t.addFee(plan.AssetID, fee)

		t.emit(ledger.SubscriptionRenewed{Subscriber: caller, Creator: creator, Amount: payment, ExpiryTime: sub.ExpiryTime.Unix()})
		t.onCommit(func() { metrics.LedgerPaymentsTotal.WithLabelValues("renew", plan.AssetID.String()).Inc() })
		return nil
	})
}

// CancelSubscription deactivates the slot. Paid amounts stay escrowed.
func (s *Service) CancelSubscription(ctx context.Context, caller, creator address.Address) error {
	return s.mutate(ctx, "cancel_subscription", func(t *txn) error {
		key := ledger.SubscriptionKey{Subscriber: caller, Creator: creator}
		sub, ok := t.st.subs[key]
		if !ok || !sub.IsActive {
			return ErrNoActiveSubscription
		}
		sub.IsActive = false
		t.putSubscription(sub)

		plan := t.st.plans[creator]
		plan.SubscriberCount--
		t.putPlan(plan)

		t.index(ledger.IndexEntry{Creator: creator, Subscriber: caller, Removed: true})
		t.emit(ledger.SubscriptionCancelled{Subscriber: caller, Creator: creator})
		return nil
	})
}

// WithdrawFunds moves the creator's whole earned balance to their external
// balance. The earned balance is zeroed before the credit is recorded.
func (s *Service) WithdrawFunds(ctx context.Context, caller address.Address) error {
	return s.mutate(ctx, "withdraw_funds", func(t *txn) error {
		plan, ok := t.st.plans[caller]
		if !ok {
			return ErrNotACreator
		}
		if plan.TotalEarned.IsZero() {
			return ErrNoFundsToWithdraw
		}
		paid := plan.TotalEarned
		plan.TotalEarned = amount.Zero
		t.putPlan(plan)
		t.credit(caller, plan.AssetID, paid)
		t.emit(ledger.FundsWithdrawn{Creator: caller, Amount: paid, AssetID: plan.AssetID})
		t.onCommit(func() { metrics.LedgerPaymentsTotal.WithLabelValues("withdraw_funds", plan.AssetID.String()).Inc() })
		return nil
	})
}

func (s *Service) UpdatePlatformFee(ctx context.Context, caller address.Address, newBasisPoints uint64) error {
	return s.mutate(ctx, "update_platform_fee", func(t *txn) error {
		if caller != t.st.settings.Owner {
			return ErrNotOwner
		}
		if newBasisPoints > ledger.MaxFeeBasisPoints {
			return ErrFeeTooHigh
		}
		old := t.st.settings.FeeBasisPoints
		settings := t.st.settings
		settings.FeeBasisPoints = newBasisPoints
		t.setSettings(settings)
		t.emit(ledger.PlatformFeeUpdated{OldFee: old, NewFee: newBasisPoints})
		return nil
	})
}

// WithdrawPlatformFees moves the accumulated fees for assetID to the owner's
// external balance. An empty pool withdraws zero.
func (s *Service) WithdrawPlatformFees(ctx context.Context, caller, assetID address.Address) error {
	return s.mutate(ctx, "withdraw_platform_fees", func(t *txn) error {
		if caller != t.st.settings.Owner {
			return ErrNotOwner
		}
		if assetID == "" {
			assetID = address.Zero
		}
		paid := t.st.fees[assetID]
		if !paid.IsZero() {
			t.setFee(assetID, amount.Zero)
			t.credit(caller, assetID, paid)
		}
		t.emit(ledger.PlatformFeeWithdrawn{Owner: caller, Amount: paid, AssetID: assetID})
		t.onCommit(func() { metrics.LedgerPaymentsTotal.WithLabelValues("withdraw_platform_fees", assetID.String()).Inc() })
		return nil
	})
}

func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner address.Address) error {
	return s.mutate(ctx, "transfer_ownership", func(t *txn) error {
		if caller != t.st.settings.Owner {
			return ErrNotOwner
		}
		if err := validCaller(newOwner); err != nil {
			return err
		}
		settings := t.st.settings
		settings.Owner = newOwner
		t.setSettings(settings)
		t.emit(ledger.OwnershipTransferred{PreviousOwner: caller, NewOwner: newOwner})
		return nil
	})
}
