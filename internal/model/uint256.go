package model

import (
	"errors"
	"math/big"
)

// ErrOverflow is returned when an arithmetic operation would exceed the
// 256-bit balance bound (spec.md §3, §4.4, §7 code 7).
var ErrOverflow = errors.New("arithmetic overflow")

// ErrNegative is returned when a subtraction would produce a negative
// balance.
var ErrNegative = errors.New("negative balance")

var uint256Max = func() *big.Int {
	one := big.NewInt(1)
	max := new(big.Int).Lsh(one, 256)
	return max.Sub(max, one)
}()

// Uint256 is a non-negative integer bounded to 256 bits, used for
// account-asset balances. The zero value is zero.
type Uint256 struct {
	v big.Int
}

// NewUint256 builds a Uint256 from a uint64.
func NewUint256(v uint64) Uint256 {
	var u Uint256
	u.v.SetUint64(v)
	return u
}

// ParseUint256 parses a base-10 string.
func ParseUint256(s string) (Uint256, error) {
	var u Uint256
	if _, ok := u.v.SetString(s, 10); !ok {
		return Uint256{}, errors.New("invalid uint256 literal")
	}
	if u.v.Sign() < 0 || u.v.Cmp(uint256Max) > 0 {
		return Uint256{}, ErrOverflow
	}
	return u, nil
}

func (u Uint256) String() string { return u.v.String() }

// Cmp compares u to o: -1, 0, 1.
func (u Uint256) Cmp(o Uint256) int { return u.v.Cmp(&o.v) }

// IsZero reports whether the value is zero.
func (u Uint256) IsZero() bool { return u.v.Sign() == 0 }

// Add returns u+o, or ErrOverflow if the result exceeds the 256-bit bound.
func (u Uint256) Add(o Uint256) (Uint256, error) {
	var r Uint256
	r.v.Add(&u.v, &o.v)
	if r.v.Cmp(uint256Max) > 0 {
		return Uint256{}, ErrOverflow
	}
	return r, nil
}

// Sub returns u-o, or ErrNegative if o > u.
func (u Uint256) Sub(o Uint256) (Uint256, error) {
	if u.v.Cmp(&o.v) < 0 {
		return Uint256{}, ErrNegative
	}
	var r Uint256
	r.v.Sub(&u.v, &o.v)
	return r, nil
}

// MarshalJSON renders the value as a base-10 JSON string so balances never
// lose precision going through encoding/json.
func (u Uint256) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.v.String() + `"`), nil
}

// UnmarshalJSON parses a base-10 JSON string.
func (u *Uint256) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseUint256(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
