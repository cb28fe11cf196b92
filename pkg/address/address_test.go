package address

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	a, err := Parse("0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED")
	require.NoError(t, err)
	assert.Equal(t, Address("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"), a)

	for _, bad := range []string{"", "0x", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0xzzaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1bea"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, bad)
	}
}

func TestChecksum(t *testing.T) {
	// reference vectors from EIP-55
	for _, want := range []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	} {
		assert.Equal(t, want, MustParse(want).Checksum())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	in := struct {
		A Address `json:"a"`
	}{A: MustParse("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"}`, string(b))

	var out struct {
		A Address `json:"a"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in.A, out.A)
}

func TestZero(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, MustParse("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359").IsZero())
}
