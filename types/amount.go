// Package types provides common types used across the token ledger.
package types

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"strings"
)

// Amount is an arbitrary-precision unsigned integer used for balances,
// allowances, fees and total supplies. All arithmetic is integer-only and
// overflow-free; subtraction is checked and reports failure instead of
// wrapping below zero.
//
// Amount is immutable: every operation returns a new value and never mutates
// the receiver. The zero value is ready to use and equals 0.
type Amount struct {
	n *big.Int
}

// NewAmount creates an Amount from a uint64.
func NewAmount(v uint64) Amount {
	return Amount{n: new(big.Int).SetUint64(v)}
}

// Zero returns the zero Amount.
func Zero() Amount { return Amount{} }

// ParseAmount parses a base-10 string into an Amount.
// Negative values and non-numeric input are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("amount: parse %q: empty string", s)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("amount: parse %q: not a base-10 integer", s)
	}
	if n.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount: parse %q: negative", s)
	}
	return Amount{n: n}, nil
}

// MustAmount is like ParseAmount but panics on error. Use for hardcoded values.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// big returns the underlying integer, treating the zero value as 0.
// Callers must never mutate the result.
func (a Amount) big() *big.Int {
	if a.n == nil {
		return zeroInt
	}
	return a.n
}

var zeroInt = new(big.Int)

// Arithmetic operations

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{n: new(big.Int).Add(a.big(), b.big())}
}

// Sub returns a - b and true, or the zero Amount and false when b > a.
// The failure return is how overdrafts are detected before any state changes.
func (a Amount) Sub(b Amount) (Amount, bool) {
	if a.big().Cmp(b.big()) < 0 {
		return Amount{}, false
	}
	return Amount{n: new(big.Int).Sub(a.big(), b.big())}, true
}

// Comparison methods

// Cmp compares a and b, returning -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.big().Cmp(b.big()) }

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a.big().Sign() == 0 }

// Equal returns true if both amounts are equal.
func (a Amount) Equal(b Amount) bool { return a.Cmp(b) == 0 }

// LessThan returns true if a < b.
func (a Amount) LessThan(b Amount) bool { return a.Cmp(b) < 0 }

// GreaterThan returns true if a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.Cmp(b) > 0 }

// Formatting methods

// String returns the base-10 representation.
func (a Amount) String() string { return a.big().String() }

// FormatUnits renders the amount in whole-token units for the given number
// of decimals: FormatUnits(8) on 123456789 yields "1.23456789".
// For decimals == 0 the plain integer string is returned.
func (a Amount) FormatUnits(decimals uint8) string {
	if decimals == 0 {
		return a.String()
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	major, minor := new(big.Int).QuoRem(a.big(), divisor, new(big.Int))
	frac := minor.String()
	if pad := int(decimals) - len(frac); pad > 0 {
		frac = strings.Repeat("0", pad) + frac
	}
	return major.String() + "." + frac
}

// Float64 returns a best-effort float64 conversion for metrics and display.
// Precision is lost above 2^53.
func (a Amount) Float64() float64 {
	f, _ := new(big.Float).SetInt(a.big()).Float64()
	return f
}

// Uint64 returns the amount as a uint64 and true, or 0 and false when it
// does not fit.
func (a Amount) Uint64() (uint64, bool) {
	if !a.big().IsUint64() {
		return 0, false
	}
	return a.big().Uint64(), true
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON implements json.Marshaler. Amounts are encoded as base-10
// strings so that JSON consumers never round them through float64.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler. Both string and bare integer
// encodings are accepted.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	return a.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer for database storage.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("amount: cannot scan negative value %d", v)
		}
		*a = Amount{n: big.NewInt(v)}
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T into Amount", src)
	}
}

// Sum calculates the sum of multiple amounts.
func Sum(values ...Amount) Amount {
	total := new(big.Int)
	for _, v := range values {
		total.Add(total, v.big())
	}
	return Amount{n: total}
}
