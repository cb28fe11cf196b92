package service

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"

	"tinysubs/internal/ledger"
	"tinysubs/pkg/address"
	"tinysubs/pkg/amount"
)

const maxEventPage = 1000

// GetCreatorPlan returns the creator's plan, or the zero plan if the address
// never registered.
func (s *Service) GetCreatorPlan(creator address.Address) ledger.CreatorPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.plans[creator]
}

func (s *Service) IsCreator(addr address.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.plans[addr]
	return ok
}

// GetSubscription returns the slot for the pair, or the zero subscription.
func (s *Service) GetSubscription(subscriber, creator address.Address) ledger.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.subs[ledger.SubscriptionKey{Subscriber: subscriber, Creator: creator}]
}

// GetAllCreators lists creators in registration order.
func (s *Service) GetAllCreators() []address.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]address.Address{}, s.state.creators...)
}

func (s *Service) GetCreatorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.creators)
}

// GetCreatorSubscribers lists the creator's actively subscribed addresses in
// the order they (last) subscribed.
func (s *Service) GetCreatorSubscribers(creator address.Address) []address.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.state.index[creator]
	out := make([]address.Address, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Subscriber)
	}
	return out
}

// GetSubscriberCreators lists, in registry order, the creators the subscriber
// holds an active subscription with.
func (s *Service) GetSubscriberCreators(subscriber address.Address) []address.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []address.Address{}
	for _, c := range s.state.creators {
		if s.state.subs[ledger.SubscriptionKey{Subscriber: subscriber, Creator: c}].IsActive {
			out = append(out, c)
		}
	}
	return out
}

// GetRemainingDays is ceil((expiry-now)/1 day), clamped to zero.
func (s *Service) GetRemainingDays(subscriber, creator address.Address) uint64 {
	sub := s.GetSubscription(subscriber, creator)
	return sub.RemainingDaysAt(s.now())
}

// IsSubscriptionExpired reports now >= expiry. It does not consult IsActive.
func (s *Service) IsSubscriptionExpired(subscriber, creator address.Address) bool {
	sub := s.GetSubscription(subscriber, creator)
	return sub.ExpiredAt(s.now())
}

// SubscriptionStatus returns the slot with its remaining days and expiry
// flag, all taken from one read of the state at one instant.
func (s *Service) SubscriptionStatus(subscriber, creator address.Address) (sub ledger.Subscription, remainingDays uint64, expired bool) {
	now := s.now()
	s.mu.RLock()
	sub = s.state.subs[ledger.SubscriptionKey{Subscriber: subscriber, Creator: creator}]
	s.mu.RUnlock()
	return sub, sub.RemainingDaysAt(now), sub.ExpiredAt(now)
}

func (s *Service) Owner() address.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.settings.Owner
}

func (s *Service) PlatformFeeBasisPoints() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.settings.FeeBasisPoints
}

func (s *Service) AccumulatedFees(assetID address.Address) amount.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.fees[assetID]
}

// AllAccumulatedFees returns every fee pool entry, including emptied ones,
// ordered by asset.
func (s *Service) AllAccumulatedFees() []ledger.Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Balance, 0, len(s.state.fees))
	for asset, v := range s.state.fees {
		out = append(out, ledger.Balance{AssetID: asset, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// BalanceOf is the external balance credited to account by withdrawals.
func (s *Service) BalanceOf(account, assetID address.Address) amount.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.balances[ledger.BalanceKey{Account: account, AssetID: assetID}]
}

// Events replays committed events with Seq > afterSeq from the store.
func (s *Service) Events(ctx context.Context, afterSeq uint64, limit int) ([]ledger.Event, error) {
	if limit <= 0 || limit > maxEventPage {
		limit = maxEventPage
	}
	events, err := s.store.Events(ctx, afterSeq, limit)
	if err != nil {
		return nil, errors.Wrap(err, "load events")
	}
	return events, nil
}

// LastEventSeq is the sequence number of the newest committed event.
func (s *Service) LastEventSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.lastSeq
}
