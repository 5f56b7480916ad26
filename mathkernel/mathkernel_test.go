// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mathkernel

import (
	"math/big"
	"testing"
)

func TestRayMulRoundsHalfUp(t *testing.T) {
	a := NewBalance(3)
	b, _ := fromBig(new(big.Int).Mul(Ray, big.NewInt(2)))
	got, err := RayMul(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 6 {
		t.Fatalf("got %v, want 6", got)
	}

	// 1 * (RAY/2) is exactly half a unit: half-up gives 1, truncation 0.
	half, _ := fromBig(rayHalf)
	got, err = RayMul(NewBalance(1), half)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}

func TestWadDivDivisionByZero(t *testing.T) {
	_, err := WadDiv(NewBalance(1), NewBalance(0))
	if err != ErrDivisionByZero {
		t.Fatalf("got %v, want ErrDivisionByZero", err)
	}
}

func TestPercentMulBasisPoints(t *testing.T) {
	got, err := PercentMul(NewBalance(10_000), 30) // 0.3%
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 30 {
		t.Fatalf("got %v, want 30", got)
	}
}

func TestRayMulOverflow(t *testing.T) {
	huge := MustBalanceFromBig(maxUint256)
	_, err := RayMul(huge, huge)
	if err != ErrOverflow {
		t.Fatalf("got %v, want ErrOverflow", err)
	}
}

func TestCeilDivVsFloorDiv(t *testing.T) {
	num := big.NewInt(10)
	den := big.NewInt(3)
	if got := CeilDiv(num, den); got.Int64() != 4 {
		t.Fatalf("CeilDiv got %v, want 4", got)
	}
	if got := FloorDiv(num, den); got.Int64() != 3 {
		t.Fatalf("FloorDiv got %v, want 3", got)
	}
	// exact division: both directions agree
	if got := CeilDiv(big.NewInt(9), den); got.Int64() != 3 {
		t.Fatalf("CeilDiv exact got %v, want 3", got)
	}
}
