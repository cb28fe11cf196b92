// Package address handles 20-byte account identifiers in their 0x-hex form.
package address

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Address is a lowercase 0x-prefixed 20-byte hex string. The zero value "" is
// not a valid address; use Zero for the native asset sentinel.
type Address string

// Zero identifies the native asset when used as an asset id.
const Zero Address = "0x0000000000000000000000000000000000000000"

var ErrInvalidAddress = errors.New("invalid address")

// Parse normalizes s and returns ErrInvalidAddress if it is not 40 hex digits.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return "", ErrInvalidAddress
	}
	body := strings.ToLower(s[2:])
	if _, err := hex.DecodeString(body); err != nil {
		return "", ErrInvalidAddress
	}
	return Address("0x" + body), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return string(a) }

func (a Address) IsZero() bool { return a == Zero }

// Checksum renders the address with EIP-55 mixed-case checksum.
func (a Address) Checksum() string {
	body := strings.TrimPrefix(string(a), "0x")
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(body))
	digest := h.Sum(nil)

	out := make([]byte, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if c >= 'a' && c <= 'f' && nibble&0x0f >= 8 {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}

// MarshalText renders the checksummed form.
func (a Address) MarshalText() ([]byte, error) {
	if a == "" {
		return []byte{}, nil
	}
	return []byte(a.Checksum()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*a = ""
		return nil
	}
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = p
	return nil
}
