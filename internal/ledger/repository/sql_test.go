package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinysubs/internal/ledger"
	"tinysubs/internal/ledger/service"
	"tinysubs/pkg/address"
	"tinysubs/pkg/amount"
	"tinysubs/pkg/db"
)

var (
	owner      = address.MustParse("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	creator    = address.MustParse("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	subscriber = address.MustParse("0x90f79bf6eb2c4f870365e785982e1f101e93b906")
	fan        = address.MustParse("0x15d34aaf54267db7d7c367839aaf71a00a2c6a65")
	token      = address.MustParse("0x5fbdb2315678afecb367f032d93f642f64180aa3")
)

func newStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Connect(ctx, db.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := NewStore(conn)
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestLoadEmpty(t *testing.T) {
	store := newStore(t)
	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Initialized)
	assert.Zero(t, snap.LastEventSeq)
	assert.Empty(t, snap.Creators)
}

func TestCommitAndLoad(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	price := amount.New(1000)

	cs := &ledger.Changeset{
		Settings:    &ledger.Settings{Owner: owner, FeeBasisPoints: 250},
		NewCreators: []ledger.RegistryEntry{{Creator: creator, Position: 0}},
		Plans: []ledger.CreatorPlan{{
			Creator: creator, PlanName: "Gold", Description: "d", PricePerMonth: price,
			AssetID: token, IsActive: true, SubscriberCount: 1, TotalEarned: amount.New(975), CreatedAt: now,
		}},
		Subscriptions: []ledger.Subscription{{
			Subscriber: subscriber, Creator: creator, StartTime: now, LastPaymentTime: now,
			ExpiryTime: now.Add(ledger.MonthDuration), IsActive: true, TotalPaid: price,
		}},
		Index:    []ledger.IndexEntry{{Creator: creator, Subscriber: subscriber, Position: 3}},
		Fees:     []ledger.Balance{{AssetID: token, Amount: amount.New(25)}},
		Balances: []ledger.Balance{{Account: owner, AssetID: token, Amount: amount.New(7)}},
		Events: []ledger.Event{
			ledger.NewEvent(1, now, ledger.OwnershipTransferred{PreviousOwner: address.Zero, NewOwner: owner}),
			ledger.NewEvent(2, now, ledger.CreatorRegistered{Creator: creator, PlanName: "Gold", Price: price, AssetID: token}),
		},
	}
	require.NoError(t, store.Commit(ctx, cs))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Initialized)
	assert.Equal(t, ledger.Settings{Owner: owner, FeeBasisPoints: 250}, snap.Settings)
	assert.Equal(t, []address.Address{creator}, snap.Creators)
	require.Len(t, snap.Plans, 1)
	assert.Equal(t, "Gold", snap.Plans[0].PlanName)
	assert.Equal(t, token, snap.Plans[0].AssetID)
	assert.Equal(t, now, snap.Plans[0].CreatedAt)
	assert.True(t, snap.Plans[0].TotalEarned.Equal(amount.New(975)))
	require.Len(t, snap.Subscriptions, 1)
	assert.Equal(t, now.Add(ledger.MonthDuration), snap.Subscriptions[0].ExpiryTime)
	assert.Equal(t, []ledger.IndexEntry{{Creator: creator, Subscriber: subscriber, Position: 3}}, snap.Index)
	require.Len(t, snap.Fees, 1)
	assert.True(t, snap.Fees[0].Amount.Equal(amount.New(25)))
	require.Len(t, snap.Balances, 1)
	assert.Equal(t, owner, snap.Balances[0].Account)
	assert.Equal(t, uint64(2), snap.LastEventSeq)

	events, err := store.Events(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, cs.Events[1].ID, events[1].ID)
	assert.Equal(t, cs.Events[1].Data, events[1].Data)
	assert.Equal(t, now, events[1].Time)

	events, err = store.Events(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(2), events[0].Seq)
}

func TestCommitIsAtomic(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	first := &ledger.Changeset{
		Settings: &ledger.Settings{Owner: owner, FeeBasisPoints: 250},
		Events:   []ledger.Event{ledger.NewEvent(1, now, ledger.OwnershipTransferred{PreviousOwner: address.Zero, NewOwner: owner})},
	}
	require.NoError(t, store.Commit(ctx, first))

	// Reusing seq 1 violates the events primary key after the settings write.
	bad := &ledger.Changeset{
		Settings: &ledger.Settings{Owner: fan, FeeBasisPoints: 100},
		Events:   []ledger.Event{ledger.NewEvent(1, now, ledger.OwnershipTransferred{PreviousOwner: owner, NewOwner: fan})},
	}
	require.Error(t, store.Commit(ctx, bad))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, owner, snap.Settings.Owner)
	assert.Equal(t, uint64(250), snap.Settings.FeeBasisPoints)
	assert.Equal(t, uint64(1), snap.LastEventSeq)
}

func TestServiceSurvivesRestart(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	clock := func() time.Time { return now }
	price := amount.New(10000)

	svc, err := service.NewService(ctx, store, service.Genesis{Owner: owner, FeeBasisPoints: 250}, service.WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, svc.RegisterCreator(ctx, creator, "Gold", "all posts", price, address.Zero))
	require.NoError(t, svc.Subscribe(ctx, subscriber, creator, price))
	require.NoError(t, svc.Subscribe(ctx, fan, creator, price))
	require.NoError(t, svc.CancelSubscription(ctx, subscriber, creator))
	require.NoError(t, svc.Subscribe(ctx, subscriber, creator, price))
	require.NoError(t, svc.WithdrawPlatformFees(ctx, owner, address.Zero))

	reloaded, err := service.NewService(ctx, store, service.Genesis{Owner: fan}, service.WithClock(clock))
	require.NoError(t, err)

	assert.Equal(t, owner, reloaded.Owner())
	assert.Equal(t, svc.GetCreatorPlan(creator), reloaded.GetCreatorPlan(creator))
	assert.Equal(t, svc.GetSubscription(subscriber, creator), reloaded.GetSubscription(subscriber, creator))
	assert.Equal(t, []address.Address{fan, subscriber}, reloaded.GetCreatorSubscribers(creator))
	assert.Equal(t, []address.Address{creator}, reloaded.GetAllCreators())
	assert.True(t, reloaded.BalanceOf(owner, address.Zero).Equal(amount.New(750)))
	assert.True(t, reloaded.AccumulatedFees(address.Zero).IsZero())
	assert.Equal(t, svc.LastEventSeq(), reloaded.LastEventSeq())

	require.NoError(t, reloaded.RenewSubscription(ctx, fan, creator, price))
	events, err := reloaded.Events(ctx, svc.LastEventSeq(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ledger.EventSubscriptionRenewed, events[0].Type)
}
