// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asset

import (
	"math/big"
	"testing"
)

func TestRouteValid(t *testing.T) {
	r := Route{
		{Pool: PoolTypeOmnipool, AssetIn: 100, AssetOut: Hub},
		{Pool: PoolTypeOmnipool, AssetIn: Hub, AssetOut: 300},
	}
	if !r.Valid() {
		t.Fatal("expected valid route")
	}
	if r.AssetIn() != 100 || r.AssetOut() != 300 {
		t.Fatalf("unexpected endpoints: %+v", r)
	}
}

func TestRouteInvalidChain(t *testing.T) {
	r := Route{
		{Pool: PoolTypeOmnipool, AssetIn: 100, AssetOut: Hub},
		{Pool: PoolTypeOmnipool, AssetIn: 200, AssetOut: 300}, // doesn't chain
	}
	if r.Valid() {
		t.Fatal("expected invalid route")
	}
}

func TestRouteEmpty(t *testing.T) {
	if (Route{}).Valid() {
		t.Fatal("expected empty route to be invalid")
	}
}

func TestRouteKeyStable(t *testing.T) {
	r1 := Route{{Pool: PoolTypeXYK, AssetIn: 1, AssetOut: 2}}
	r2 := Route{{Pool: PoolTypeXYK, AssetIn: 1, AssetOut: 2}}
	if r1.Key() != r2.Key() {
		t.Fatal("identical routes must hash identically")
	}
	r3 := Route{{Pool: PoolTypeXYK, AssetIn: 1, AssetOut: 3}}
	if r1.Key() == r3.Key() {
		t.Fatal("different routes must not collide trivially")
	}
}

func TestRatioCmp(t *testing.T) {
	a := RatioFromUint64(1, 2)
	b := RatioFromUint64(2, 4)
	if a.Cmp(b) != 0 {
		t.Fatal("1/2 should equal 2/4")
	}
	c := RatioFromUint64(3, 4)
	if a.Cmp(c) >= 0 {
		t.Fatal("1/2 should be less than 3/4")
	}
}

func TestNewRatioZeroDenominator(t *testing.T) {
	if _, err := NewRatio(big.NewInt(1), big.NewInt(0)); err != ErrZeroDenominator {
		t.Fatalf("got %v, want ErrZeroDenominator", err)
	}
}
