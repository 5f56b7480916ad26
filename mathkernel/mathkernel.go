// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mathkernel implements the saturating/checked fixed-point
// arithmetic used throughout the Omnipool, the secondary AMMs, and the
// liquidity-mining accumulators. All intermediate products are computed at
// 512-bit precision via math/big and only narrowed back to a 256-bit
// holiman/uint256 value once the result is known not to overflow, so
// overflow is always a returned error and never a silent wraparound.
package mathkernel

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// Balance is the 128/256-bit unsigned integer used for reserves, shares,
// and trade amounts everywhere in this module.
type Balance = uint256.Int

var (
	ErrOverflow        = errors.New("mathkernel: overflow")
	ErrDivisionByZero  = errors.New("mathkernel: division by zero")
	ErrNegativeOperand = errors.New("mathkernel: negative operand")
)

// Ray is the 10^27 fixed-point scale used by ray_mul.
var Ray = big.NewInt(0).Exp(big.NewInt(10), big.NewInt(27), nil)

// Wad is the 10^18 fixed-point scale used by wad_div.
var Wad = big.NewInt(0).Exp(big.NewInt(10), big.NewInt(18), nil)

var rayHalf = new(big.Int).Div(Ray, big.NewInt(2))

// maxUint256 bounds the narrowing step shared by every helper below.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func toBig(b *Balance) *big.Int {
	return b.ToBig()
}

func fromBig(v *big.Int) (*Balance, error) {
	if v.Sign() < 0 {
		return nil, ErrNegativeOperand
	}
	if v.Cmp(maxUint256) > 0 {
		return nil, ErrOverflow
	}
	out := new(Balance)
	out.SetFromBig(v)
	return out, nil
}

// RayMul computes (a*b + RAY/2) / RAY at 512-bit precision, rounding
// half-up, and reports overflow rather than wrapping.
func RayMul(a, b *Balance) (*Balance, error) {
	prod := new(big.Int).Mul(toBig(a), toBig(b))
	prod.Add(prod, rayHalf)
	prod.Quo(prod, Ray)
	return fromBig(prod)
}

// WadDiv computes (a*WAD + b/2) / b at 512-bit precision, rounding
// half-up. Division by zero is returned as a distinct error from overflow.
func WadDiv(a, b *Balance) (*Balance, error) {
	if b.IsZero() {
		return nil, ErrDivisionByZero
	}
	num := new(big.Int).Mul(toBig(a), Wad)
	bb := toBig(b)
	num.Add(num, new(big.Int).Div(bb, big.NewInt(2)))
	num.Quo(num, bb)
	return fromBig(num)
}

// PercentMul computes (v*p + 5000) / 10000 where p is expressed in basis
// points (10000 = 100%).
func PercentMul(v *Balance, bps uint32) (*Balance, error) {
	prod := new(big.Int).Mul(toBig(v), big.NewInt(int64(bps)))
	prod.Add(prod, big.NewInt(5000))
	prod.Quo(prod, big.NewInt(10000))
	return fromBig(prod)
}

// CeilDiv divides two big.Int operands rounding toward positive infinity:
// the pool-favourable rounding direction on Omnipool trade legs (§4.2),
// which apply the same rule through omnipool's own CeilDiv. Rounding the
// pool's retained hub/reserve up, never down, keeps the
// "reserve*hub_reserve never decreases" invariant intact under integer
// truncation.
func CeilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// FloorDiv divides two big.Int operands rounding toward zero, the
// direction in which the user, not the pool, absorbs truncation
// (omnipool's remove_liquidity applies it with a plain big.Int Quo).
func FloorDiv(num, den *big.Int) *big.Int {
	return new(big.Int).Quo(num, den)
}

// NewBalance constructs a Balance from a uint64, a convenience used
// throughout tests and seed data.
func NewBalance(v uint64) *Balance {
	return new(Balance).SetUint64(v)
}

// MustBalanceFromBig narrows a big.Int into a Balance, panicking on
// overflow or a negative operand. Reserved for test fixtures and constant
// seed data where the value is known in advance to fit.
func MustBalanceFromBig(v *big.Int) *Balance {
	b, err := fromBig(v)
	if err != nil {
		panic(err)
	}
	return b
}

// BalanceFromBig narrows a big.Int into a Balance, reporting overflow or a
// negative operand as an error rather than panicking. Every pallet that
// computes intermediate invariant arithmetic at big.Int precision uses this
// to narrow the final result back to a Balance.
func BalanceFromBig(v *big.Int) (*Balance, error) {
	return fromBig(v)
}
