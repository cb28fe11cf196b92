package amount

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEther(t *testing.T) {
	a, err := Ether("0.01")
	require.NoError(t, err)
	assert.Equal(t, "10000000000000000", a.String())
	assert.Equal(t, "0.01", a.FormatUnits(18))

	_, err = ParseUnits("0.0000001", 6)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Ether("-1")
	assert.ErrorIs(t, err, ErrNegative)
}

func TestMulDivFloors(t *testing.T) {
	price, err := Ether("0.01")
	require.NoError(t, err)

	fee := price.MulDiv(250, 10000)
	assert.Equal(t, "250000000000000", fee.String())

	assert.Equal(t, "0", New(39).MulDiv(250, 10000).String())
	assert.Equal(t, "1", New(40).MulDiv(250, 10000).String())
	assert.Equal(t, "2", New(99).MulDiv(250, 10000).String())
}

func TestSub(t *testing.T) {
	r, err := New(10).Sub(New(4))
	require.NoError(t, err)
	assert.True(t, r.Equal(New(6)))

	_, err = New(4).Sub(New(10))
	assert.ErrorIs(t, err, ErrNegative)
}

func TestImmutability(t *testing.T) {
	a := New(5)
	b := a.Add(New(1))
	assert.Equal(t, "5", a.String())
	assert.Equal(t, "6", b.String())

	big := a.Big()
	big.SetInt64(100)
	assert.Equal(t, "5", a.String())
}

func TestZeroValue(t *testing.T) {
	var a Amount
	assert.True(t, a.IsZero())
	assert.Equal(t, "0", a.String())
	assert.True(t, a.Add(New(3)).Equal(New(3)))
}

func TestJSONAndScan(t *testing.T) {
	b, err := json.Marshal(map[string]Amount{"v": New(42)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"42"}`, string(b))

	var a Amount
	require.NoError(t, a.Scan("12345678901234567890123"))
	assert.Equal(t, "12345678901234567890123", a.String())
	require.NoError(t, a.Scan([]byte("7")))
	assert.Equal(t, "7", a.String())
	require.NoError(t, a.Scan(int64(9)))
	assert.Equal(t, "9", a.String())
	assert.Error(t, a.Scan(1.5))
}
