package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinysubs/pkg/address"
	"tinysubs/pkg/amount"
)

func TestEventJSONKeepsPayloadFieldOrder(t *testing.T) {
	sub := address.MustParse("0x1111111111111111111111111111111111111111")
	creator := address.MustParse("0x2222222222222222222222222222222222222222")
	ev := NewEvent(7, time.Unix(1700000000, 0).UTC(), SubscriptionCreated{
		Subscriber: sub,
		Creator:    creator,
		Amount:     amount.New(100),
		ExpiryTime: 1702592000,
	})

	b, err := json.Marshal(ev.Data)
	require.NoError(t, err)
	assert.Equal(t,
		`{"subscriber":"0x1111111111111111111111111111111111111111","creator":"0x2222222222222222222222222222222222222222","amount":"100","expiry_time":1702592000}`,
		string(b))

	full, err := json.Marshal(ev)
	require.NoError(t, err)

	var back Event
	require.NoError(t, json.Unmarshal(full, &back))
	assert.Equal(t, ev.Seq, back.Seq)
	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, EventSubscriptionCreated, back.Type)
	assert.Equal(t, ev.Data, back.Data)
}

func TestDecodeEventDataUnknownType(t *testing.T) {
	_, err := DecodeEventData("Bogus", []byte(`{}`))
	assert.Error(t, err)
}

func TestRemainingDays(t *testing.T) {
	start := time.Unix(1700000000, 0)
	s := Subscription{ExpiryTime: start.Add(MonthDuration), IsActive: true}

	assert.Equal(t, uint64(30), s.RemainingDaysAt(start))
	assert.Equal(t, uint64(30), s.RemainingDaysAt(start.Add(time.Second)))
	assert.Equal(t, uint64(1), s.RemainingDaysAt(start.Add(MonthDuration-time.Second)))
	assert.Equal(t, uint64(0), s.RemainingDaysAt(start.Add(MonthDuration)))
	assert.Equal(t, uint64(0), s.RemainingDaysAt(start.Add(2*MonthDuration)))

	prev := s.RemainingDaysAt(start)
	for at := start; at.Before(start.Add(MonthDuration + Day)); at = at.Add(7 * time.Hour) {
		got := s.RemainingDaysAt(at)
		assert.LessOrEqual(t, got, prev)
		prev = got
	}
}

func TestExpiredFlipsExactlyAtExpiry(t *testing.T) {
	expiry := time.Unix(1700000000, 0)
	s := Subscription{ExpiryTime: expiry}
	assert.False(t, s.ExpiredAt(expiry.Add(-time.Second)))
	assert.True(t, s.ExpiredAt(expiry))
	assert.True(t, Subscription{}.ExpiredAt(expiry))
}
