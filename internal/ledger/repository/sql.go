package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"tinysubs/internal/ledger"
	"tinysubs/pkg/address"
	"tinysubs/pkg/amount"
)

const settingsRowID = 1

// Store persists the ledger in PostgreSQL or SQLite through sqlx.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type settingsRow struct {
	ID             int64           `db:"id"`
	Owner          address.Address `db:"owner"`
	FeeBasisPoints int64           `db:"fee_basis_points"`
}

type creatorRow struct {
	Creator  address.Address `db:"creator"`
	Position int64           `db:"position"`
}

type planRow struct {
	Creator         address.Address `db:"creator"`
	PlanName        string          `db:"plan_name"`
	Description     string          `db:"description"`
	PricePerMonth   amount.Amount   `db:"price_per_month"`
	AssetID         address.Address `db:"asset_id"`
	IsActive        bool            `db:"is_active"`
	SubscriberCount int64           `db:"subscriber_count"`
	TotalEarned     amount.Amount   `db:"total_earned"`
	CreatedAt       int64           `db:"created_at"`
}

type subscriptionRow struct {
	Subscriber      address.Address `db:"subscriber"`
	Creator         address.Address `db:"creator"`
	StartTime       int64           `db:"start_time"`
	LastPaymentTime int64           `db:"last_payment_time"`
	ExpiryTime      int64           `db:"expiry_time"`
	IsActive        bool            `db:"is_active"`
	TotalPaid       amount.Amount   `db:"total_paid"`
}

type indexRow struct {
	Creator    address.Address `db:"creator"`
	Subscriber address.Address `db:"subscriber"`
	Position   int64           `db:"position"`
}

type feeRow struct {
	AssetID address.Address `db:"asset_id"`
	Amount  amount.Amount   `db:"amount"`
}

type balanceRow struct {
	Account address.Address `db:"account"`
	AssetID address.Address `db:"asset_id"`
	Amount  amount.Amount   `db:"amount"`
}

type eventRow struct {
	Seq       int64     `db:"seq"`
	ID        uuid.UUID `db:"id"`
	Type      string    `db:"type"`
	CreatedAt int64     `db:"created_at"`
	Data      string    `db:"data"`
}

func unix(v int64) time.Time { return time.Unix(v, 0).UTC() }

func (s *Store) Load(ctx context.Context) (*ledger.Snapshot, error) {
	snap := &ledger.Snapshot{}

	var settings settingsRow
	err := s.db.GetContext(ctx, &settings, s.db.Rebind(`SELECT id, owner, fee_basis_points FROM ledger_settings WHERE id = ?`), settingsRowID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, errors.Wrap(err, "load settings")
	default:
		snap.Initialized = true
		snap.Settings = ledger.Settings{Owner: settings.Owner, FeeBasisPoints: uint64(settings.FeeBasisPoints)}
	}

	var creators []creatorRow
	if err := s.db.SelectContext(ctx, &creators, `SELECT creator, position FROM creators ORDER BY position`); err != nil {
		return nil, errors.Wrap(err, "load creators")
	}
	for _, c := range creators {
		snap.Creators = append(snap.Creators, c.Creator)
	}

	var plans []planRow
	if err := s.db.SelectContext(ctx, &plans, `SELECT creator, plan_name, description, price_per_month, asset_id,
		is_active, subscriber_count, total_earned, created_at FROM creator_plans`); err != nil {
		return nil, errors.Wrap(err, "load plans")
	}
	for _, p := range plans {
		snap.Plans = append(snap.Plans, ledger.CreatorPlan{
			Creator:         p.Creator,
			PlanName:        p.PlanName,
			Description:     p.Description,
			PricePerMonth:   p.PricePerMonth,
			AssetID:         p.AssetID,
			IsActive:        p.IsActive,
			SubscriberCount: uint64(p.SubscriberCount),
			TotalEarned:     p.TotalEarned,
			CreatedAt:       unix(p.CreatedAt),
		})
	}

	var subs []subscriptionRow
	if err := s.db.SelectContext(ctx, &subs, `SELECT subscriber, creator, start_time, last_payment_time,
		expiry_time, is_active, total_paid FROM subscriptions`); err != nil {
		return nil, errors.Wrap(err, "load subscriptions")
	}
	for _, r := range subs {
		snap.Subscriptions = append(snap.Subscriptions, ledger.Subscription{
			Subscriber:      r.Subscriber,
			Creator:         r.Creator,
			StartTime:       unix(r.StartTime),
			LastPaymentTime: unix(r.LastPaymentTime),
			ExpiryTime:      unix(r.ExpiryTime),
			IsActive:        r.IsActive,
			TotalPaid:       r.TotalPaid,
		})
	}

	var index []indexRow
	if err := s.db.SelectContext(ctx, &index, `SELECT creator, subscriber, position FROM creator_subscribers ORDER BY position`); err != nil {
		return nil, errors.Wrap(err, "load subscriber index")
	}
	for _, r := range index {
		snap.Index = append(snap.Index, ledger.IndexEntry{Creator: r.Creator, Subscriber: r.Subscriber, Position: uint64(r.Position)})
	}

	var fees []feeRow
	if err := s.db.SelectContext(ctx, &fees, `SELECT asset_id, amount FROM platform_fees`); err != nil {
		return nil, errors.Wrap(err, "load platform fees")
	}
	for _, f := range fees {
		snap.Fees = append(snap.Fees, ledger.Balance{AssetID: f.AssetID, Amount: f.Amount})
	}

	var balances []balanceRow
	if err := s.db.SelectContext(ctx, &balances, `SELECT account, asset_id, amount FROM balances`); err != nil {
		return nil, errors.Wrap(err, "load balances")
	}
	for _, b := range balances {
		snap.Balances = append(snap.Balances, ledger.Balance{Account: b.Account, AssetID: b.AssetID, Amount: b.Amount})
	}

	var last sql.NullInt64
	if err := s.db.GetContext(ctx, &last, `SELECT MAX(seq) FROM ledger_events`); err != nil {
		return nil, errors.Wrap(err, "load last event seq")
	}
	snap.LastEventSeq = uint64(last.Int64)

	return snap, nil
}

const (
	upsertSettings = `INSERT INTO ledger_settings (id, owner, fee_basis_points) VALUES (:id, :owner, :fee_basis_points)
		ON CONFLICT (id) DO UPDATE SET owner = excluded.owner, fee_basis_points = excluded.fee_basis_points`
	insertCreator = `INSERT INTO creators (creator, position) VALUES (:creator, :position)`
	upsertPlan    = `INSERT INTO creator_plans (creator, plan_name, description, price_per_month, asset_id,
			is_active, subscriber_count, total_earned, created_at)
		VALUES (:creator, :plan_name, :description, :price_per_month, :asset_id,
			:is_active, :subscriber_count, :total_earned, :created_at)
		ON CONFLICT (creator) DO UPDATE SET plan_name = excluded.plan_name, description = excluded.description,
			price_per_month = excluded.price_per_month, is_active = excluded.is_active,
			subscriber_count = excluded.subscriber_count, total_earned = excluded.total_earned`
	upsertSubscription = `INSERT INTO subscriptions (subscriber, creator, start_time, last_payment_time,
			expiry_time, is_active, total_paid)
		VALUES (:subscriber, :creator, :start_time, :last_payment_time, :expiry_time, :is_active, :total_paid)
		ON CONFLICT (subscriber, creator) DO UPDATE SET start_time = excluded.start_time,
			last_payment_time = excluded.last_payment_time, expiry_time = excluded.expiry_time,
			is_active = excluded.is_active, total_paid = excluded.total_paid`
	upsertIndex = `INSERT INTO creator_subscribers (creator, subscriber, position) VALUES (:creator, :subscriber, :position)
		ON CONFLICT (creator, subscriber) DO UPDATE SET position = excluded.position`
	deleteIndex = `DELETE FROM creator_subscribers WHERE creator = :creator AND subscriber = :subscriber`
	upsertFee   = `INSERT INTO platform_fees (asset_id, amount) VALUES (:asset_id, :amount)
		ON CONFLICT (asset_id) DO UPDATE SET amount = excluded.amount`
	upsertBalance = `INSERT INTO balances (account, asset_id, amount) VALUES (:account, :asset_id, :amount)
		ON CONFLICT (account, asset_id) DO UPDATE SET amount = excluded.amount`
	insertEvent = `INSERT INTO ledger_events (seq, id, type, created_at, data) VALUES (:seq, :id, :type, :created_at, :data)`
)

// Commit writes the changeset in one transaction.
func (s *Store) Commit(ctx context.Context, cs *ledger.Changeset) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	exec := func(what, query string, arg interface{}) error {
		if _, err := tx.NamedExecContext(ctx, query, arg); err != nil {
			return errors.Wrap(err, what)
		}
		return nil
	}

	if cs.Settings != nil {
		row := settingsRow{ID: settingsRowID, Owner: cs.Settings.Owner, FeeBasisPoints: int64(cs.Settings.FeeBasisPoints)}
		if err = exec("save settings", upsertSettings, row); err != nil {
			return err
		}
	}
	for _, c := range cs.NewCreators {
		if err = exec("insert creator", insertCreator, creatorRow{Creator: c.Creator, Position: int64(c.Position)}); err != nil {
			return err
		}
	}
	for _, p := range cs.Plans {
		row := planRow{
			Creator:         p.Creator,
			PlanName:        p.PlanName,
			Description:     p.Description,
			PricePerMonth:   p.PricePerMonth,
			AssetID:         p.AssetID,
			IsActive:        p.IsActive,
			SubscriberCount: int64(p.SubscriberCount),
			TotalEarned:     p.TotalEarned,
			CreatedAt:       p.CreatedAt.Unix(),
		}
		if err = exec("save plan", upsertPlan, row); err != nil {
			return err
		}
	}
	for _, r := range cs.Subscriptions {
		row := subscriptionRow{
			Subscriber:      r.Subscriber,
			Creator:         r.Creator,
			StartTime:       r.StartTime.Unix(),
			LastPaymentTime: r.LastPaymentTime.Unix(),
			ExpiryTime:      r.ExpiryTime.Unix(),
			IsActive:        r.IsActive,
			TotalPaid:       r.TotalPaid,
		}
		if err = exec("save subscription", upsertSubscription, row); err != nil {
			return err
		}
	}
	for _, e := range cs.Index {
		row := indexRow{Creator: e.Creator, Subscriber: e.Subscriber, Position: int64(e.Position)}
		if e.Removed {
			err = exec("remove subscriber index entry", deleteIndex, row)
		} else {
			err = exec("save subscriber index entry", upsertIndex, row)
		}
		if err != nil {
			return err
		}
	}
	for _, f := range cs.Fees {
		if err = exec("save platform fee", upsertFee, feeRow{AssetID: f.AssetID, Amount: f.Amount}); err != nil {
			return err
		}
	}
	for _, b := range cs.Balances {
		if err = exec("save balance", upsertBalance, balanceRow{Account: b.Account, AssetID: b.AssetID, Amount: b.Amount}); err != nil {
			return err
		}
	}
	for _, e := range cs.Events {
		data, merr := json.Marshal(e.Data)
		if merr != nil {
			err = errors.Wrapf(merr, "encode %s", e.Type)
			return err
		}
		row := eventRow{Seq: int64(e.Seq), ID: e.ID, Type: string(e.Type), CreatedAt: e.Time.Unix(), Data: string(data)}
		if err = exec("insert event", insertEvent, row); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Events returns up to limit events with seq > afterSeq, oldest first.
func (s *Store) Events(ctx context.Context, afterSeq uint64, limit int) ([]ledger.Event, error) {
	var rows []eventRow
	query := s.db.Rebind(`SELECT seq, id, type, created_at, data FROM ledger_events WHERE seq > ? ORDER BY seq LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, int64(afterSeq), limit); err != nil {
		return nil, errors.Wrap(err, "select events")
	}

	events := make([]ledger.Event, 0, len(rows))
	for _, r := range rows {
		t := ledger.EventType(r.Type)
		data, err := ledger.DecodeEventData(t, []byte(r.Data))
		if err != nil {
			return nil, errors.Wrapf(err, "event %d", r.Seq)
		}
		events = append(events, ledger.Event{
			Seq:  uint64(r.Seq),
			ID:   r.ID,
			Type: t,
			Time: unix(r.CreatedAt),
			Data: data,
		})
	}
	return events, nil
}
