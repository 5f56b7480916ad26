// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asset

import (
	"errors"
	"math/big"
)

// ErrZeroDenominator is returned whenever a Ratio would be constructed or
// compared with d == 0; spec.md §3 forbids this for any on-chain price.
var ErrZeroDenominator = errors.New("asset: zero denominator")

// Ratio is a rational price or exchange rate, kept as (n, d) rather than
// collapsed to a float so on-chain comparisons stay exact.
type Ratio struct {
	N *big.Int
	D *big.Int
}

// NewRatio builds a Ratio, rejecting a zero or negative denominator.
func NewRatio(n, d *big.Int) (Ratio, error) {
	if d.Sign() <= 0 {
		return Ratio{}, ErrZeroDenominator
	}
	return Ratio{N: new(big.Int).Set(n), D: new(big.Int).Set(d)}, nil
}

// RatioFromUint64 is a convenience constructor for literal prices in tests
// and seed data.
func RatioFromUint64(n, d uint64) Ratio {
	return Ratio{N: new(big.Int).SetUint64(n), D: new(big.Int).SetUint64(d)}
}

// Mul returns r * other as a new, unreduced Ratio (callers compare
// cross-multiplied, not via float, so reduction would be cosmetic only).
func (r Ratio) Mul(other Ratio) Ratio {
	return Ratio{
		N: new(big.Int).Mul(r.N, other.N),
		D: new(big.Int).Mul(r.D, other.D),
	}
}

// Div returns r / other.
func (r Ratio) Div(other Ratio) (Ratio, error) {
	if other.N.Sign() == 0 {
		return Ratio{}, ErrZeroDenominator
	}
	return Ratio{
		N: new(big.Int).Mul(r.N, other.D),
		D: new(big.Int).Mul(r.D, other.N),
	}, nil
}

// Reciprocal returns 1/r.
func (r Ratio) Reciprocal() Ratio {
	return Ratio{N: new(big.Int).Set(r.D), D: new(big.Int).Set(r.N)}
}

// Cmp compares r to other without collapsing either to a float, by
// cross-multiplication: r.N*other.D vs other.N*r.D.
func (r Ratio) Cmp(other Ratio) int {
	lhs := new(big.Int).Mul(r.N, other.D)
	rhs := new(big.Int).Mul(other.N, r.D)
	return lhs.Cmp(rhs)
}

// AbsDiffScaled returns |a*pa - b*pb| for the ICE price-consistency check
// (spec.md §8): a and b are executed amounts, pa and pb their respective
// clearing prices. Because pa, pb are rationals the comparison is done by
// clearing denominators: (a*pa.N*pb.D - b*pb.N*pa.D) / (pa.D*pb.D), and the
// caller compares the absolute numerator against a tolerance scaled by the
// shared denominator.
func AbsDiffScaled(a *big.Int, pa Ratio, b *big.Int, pb Ratio) (numerator, denominator *big.Int) {
	lhs := new(big.Int).Mul(a, pa.N)
	lhs.Mul(lhs, pb.D)
	rhs := new(big.Int).Mul(b, pb.N)
	rhs.Mul(rhs, pa.D)
	diff := new(big.Int).Sub(lhs, rhs)
	diff.Abs(diff)
	den := new(big.Int).Mul(pa.D, pb.D)
	return diff, den
}
