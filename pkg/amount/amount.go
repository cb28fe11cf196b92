// Package amount provides an immutable unsigned integer amount in the smallest
// unit of an asset (wei for the native asset).
package amount

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative arbitrary-precision integer. The zero value is 0.
// Operations never mutate the receiver.
type Amount struct {
	v *big.Int
}

var (
	ErrNegative = errors.New("amount must not be negative")
	ErrInvalid  = errors.New("invalid amount")
)

// Zero is the zero amount.
var Zero = Amount{}

func New(u uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(u)}
}

// FromBig copies b. Negative values are rejected.
func FromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Zero, nil
	}
	if b.Sign() < 0 {
		return Zero, ErrNegative
	}
	return Amount{v: new(big.Int).Set(b)}, nil
}

// Parse reads a base-10 integer string.
func Parse(s string) (Amount, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Zero, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return FromBig(b)
}

// ParseUnits converts a human decimal ("0.01") into the smallest unit for an
// asset with the given number of decimals. Fractions finer than one unit are
// rejected.
func ParseUnits(s string, decimals int32) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return Zero, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalid, s, decimals)
	}
	return FromBig(scaled.BigInt())
}

// Ether parses a decimal ether amount into wei.
func Ether(s string) (Amount, error) {
	return ParseUnits(s, 18)
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// Big returns a copy of the underlying integer.
func (a Amount) Big() *big.Int {
	return new(big.Int).Set(a.big())
}

func (a Amount) IsZero() bool { return a.big().Sign() == 0 }

func (a Amount) Cmp(b Amount) int { return a.big().Cmp(b.big()) }

func (a Amount) Equal(b Amount) bool { return a.Cmp(b) == 0 }

func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.big(), b.big())}
}

// Sub returns a-b, or ErrNegative when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Cmp(b) < 0 {
		return Zero, ErrNegative
	}
	return Amount{v: new(big.Int).Sub(a.big(), b.big())}, nil
}

// MulDiv returns floor(a*num/den). den must be non-zero.
func (a Amount) MulDiv(num, den uint64) Amount {
	r := new(big.Int).Mul(a.big(), new(big.Int).SetUint64(num))
	r.Quo(r, new(big.Int).SetUint64(den))
	return Amount{v: r}
}

func (a Amount) String() string { return a.big().String() }

// FormatUnits renders a in whole units with the given decimals, trimming
// trailing zeros ("10000000000000000", 18 -> "0.01").
func (a Amount) FormatUnits(decimals int32) string {
	return decimal.NewFromBigInt(a.big(), -decimals).String()
}

// MarshalText encodes as a decimal string so JSON consumers never lose
// precision.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = p
	return nil
}

// Value stores amounts as TEXT.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Zero
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		if v < 0 {
			return ErrNegative
		}
		*a = New(uint64(v))
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T", src)
	}
}
