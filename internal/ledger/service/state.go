package service

import (
	"time"

	"tinysubs/internal/ledger"
	"tinysubs/pkg/address"
	"tinysubs/pkg/amount"
)

// state is the in-memory ledger aggregate. It is only written by apply, with
// the service lock held.
type state struct {
	settings ledger.Settings
	creators []address.Address
	plans    map[address.Address]ledger.CreatorPlan
	subs     map[ledger.SubscriptionKey]ledger.Subscription
	index    map[address.Address][]ledger.IndexEntry
	fees     map[address.Address]amount.Amount
	balances map[ledger.BalanceKey]amount.Amount
	lastSeq  uint64
	active   int
}

func newState(snap *ledger.Snapshot) *state {
	st := &state{
		settings: snap.Settings,
		creators: append([]address.Address(nil), snap.Creators...),
		plans:    make(map[address.Address]ledger.CreatorPlan, len(snap.Plans)),
		subs:     make(map[ledger.SubscriptionKey]ledger.Subscription, len(snap.Subscriptions)),
		index:    make(map[address.Address][]ledger.IndexEntry),
		fees:     make(map[address.Address]amount.Amount, len(snap.Fees)),
		balances: make(map[ledger.BalanceKey]amount.Amount, len(snap.Balances)),
		lastSeq:  snap.LastEventSeq,
	}
	for _, p := range snap.Plans {
		st.plans[p.Creator] = p
	}
	for _, s := range snap.Subscriptions {
		st.subs[ledger.SubscriptionKey{Subscriber: s.Subscriber, Creator: s.Creator}] = s
		if s.IsActive {
			st.active++
		}
	}
	for _, e := range snap.Index {
		if !e.Removed {
			st.index[e.Creator] = append(st.index[e.Creator], e)
		}
	}
	for _, f := range snap.Fees {
		st.fees[f.AssetID] = f.Amount
	}
	for _, b := range snap.Balances {
		st.balances[ledger.BalanceKey{Account: b.Account, AssetID: b.AssetID}] = b.Amount
	}
	return st
}

func (st *state) apply(cs *ledger.Changeset) {
	if cs.Settings != nil {
		st.settings = *cs.Settings
	}
	for _, r := range cs.NewCreators {
		st.creators = append(st.creators, r.Creator)
	}
	for _, p := range cs.Plans {
		st.plans[p.Creator] = p
	}
	for _, s := range cs.Subscriptions {
		key := ledger.SubscriptionKey{Subscriber: s.Subscriber, Creator: s.Creator}
		if st.subs[key].IsActive {
			st.active--
		}
		if s.IsActive {
			st.active++
		}
		st.subs[key] = s
	}
	for _, e := range cs.Index {
		entries := st.index[e.Creator]
		if e.Removed {
			for i := range entries {
				if entries[i].Subscriber == e.Subscriber {
					entries = append(entries[:i:i], entries[i+1:]...)
					break
				}
			}
			st.index[e.Creator] = entries
			continue
		}
		st.index[e.Creator] = append(entries, e)
	}
	for _, f := range cs.Fees {
		st.fees[f.AssetID] = f.Amount
	}
	for _, b := range cs.Balances {
		st.balances[ledger.BalanceKey{Account: b.Account, AssetID: b.AssetID}] = b.Amount
	}
	if n := len(cs.Events); n > 0 {
		st.lastSeq = cs.Events[n-1].Seq
	}
}

// txn stages one operation. Reads go to the committed state; writes are
// recorded as absolute values in the changeset. An operation writes each
// record at most once.
type txn struct {
	st        *state
	now       time.Time
	seq       uint64
	cs        *ledger.Changeset
	committed []func()
}

func (t *txn) setSettings(s ledger.Settings) {
	t.cs.Settings = &s
}

func (t *txn) registerCreator(creator address.Address) {
	t.cs.NewCreators = append(t.cs.NewCreators, ledger.RegistryEntry{
		Creator:  creator,
		Position: uint64(len(t.st.creators) + len(t.cs.NewCreators)),
	})
}

func (t *txn) putPlan(p ledger.CreatorPlan) {
	t.cs.Plans = append(t.cs.Plans, p)
}

func (t *txn) putSubscription(s ledger.Subscription) {
	t.cs.Subscriptions = append(t.cs.Subscriptions, s)
}

func (t *txn) index(e ledger.IndexEntry) {
	t.cs.Index = append(t.cs.Index, e)
}

func (t *txn) addFee(asset address.Address, fee amount.Amount) {
	t.setFee(asset, t.st.fees[asset].Add(fee))
}

func (t *txn) setFee(asset address.Address, v amount.Amount) {
	t.cs.Fees = append(t.cs.Fees, ledger.Balance{AssetID: asset, Amount: v})
}

func (t *txn) credit(account, asset address.Address, v amount.Amount) {
	key := ledger.BalanceKey{Account: account, AssetID: asset}
	t.cs.Balances = append(t.cs.Balances, ledger.Balance{
		Account: account,
		AssetID: asset,
		Amount:  t.st.balances[key].Add(v),
	})
}

// emit appends an event and returns its sequence number.
func (t *txn) emit(data ledger.EventData) uint64 {
	t.seq++
	t.cs.Events = append(t.cs.Events, ledger.NewEvent(t.seq, t.now, data))
	return t.seq
}

func (t *txn) onCommit(fn func()) {
	t.committed = append(t.committed, fn)
}
