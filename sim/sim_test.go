// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sim

import (
	"math/big"
	"testing"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/stableswap"
	"github.com/luxfi/icedex/xyk"
)

func bal(n int64) *mathkernel.Balance { return mathkernel.MustBalanceFromBig(big.NewInt(n)) }

// TestSetDispatchesToFirstMatchingSimulator checks that a composite Set
// routes a trade to the first registered simulator that CanTrade the
// pair, leaving every other slot untouched.
func TestSetDispatchesToFirstMatchingSimulator(t *testing.T) {
	xykState := &xyk.PoolState{
		AssetA: 100, AssetB: 200,
		ReserveA: bal(10_000), ReserveB: bal(10_000),
		Shares: bal(10_000), FeeBps: 30,
	}
	stablePool := &stableswap.Pool{
		ID:            1,
		Assets:        []asset.Id{300, 400},
		Balances:      []*mathkernel.Balance{bal(10_000), bal(10_000)},
		Amplification: 100,
		FeeBps:        4,
		Shares:        bal(20_000),
	}

	set := NewSet(SnapshotXYK(xykState), SnapshotStableswap(stablePool))

	poolType, ok := set.CanTrade(100, 200)
	if !ok || poolType != asset.PoolTypeXYK {
		t.Fatalf("CanTrade(100, 200) = (%v, %v), want (PoolTypeXYK, true)", poolType, ok)
	}
	poolType, ok = set.CanTrade(300, 400)
	if !ok || poolType != asset.PoolTypeStableswap {
		t.Fatalf("CanTrade(300, 400) = (%v, %v), want (PoolTypeStableswap, true)", poolType, ok)
	}
	if _, ok := set.CanTrade(100, 400); ok {
		t.Fatal("CanTrade(100, 400) should be false, no simulator spans both assets")
	}
}

// TestSetSellReplacesOnlyDispatchedSlot verifies the positional-immutability
// contract: selling through the XYK slot must not mutate the Stableswap
// slot's snapshot in the resulting Set.
func TestSetSellReplacesOnlyDispatchedSlot(t *testing.T) {
	xykState := &xyk.PoolState{
		AssetA: 100, AssetB: 200,
		ReserveA: bal(10_000), ReserveB: bal(10_000),
		Shares: bal(10_000), FeeBps: 30,
	}
	stablePool := &stableswap.Pool{
		ID:            1,
		Assets:        []asset.Id{300, 400},
		Balances:      []*mathkernel.Balance{bal(10_000), bal(10_000)},
		Amplification: 100,
		FeeBps:        4,
		Shares:        bal(20_000),
	}
	stableSim := SnapshotStableswap(stablePool)
	set := NewSet(SnapshotXYK(xykState), stableSim)

	next, result, err := set.Sell(100, 200, bal(1_000), nil)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if result.AmountOut.IsZero() {
		t.Fatal("amount_out should not be zero")
	}

	sims := next.Simulators()
	if sims[1] != stableSim {
		t.Fatal("stableswap slot was replaced despite the trade dispatching to xyk")
	}
	if sims[0] == Simulator(SnapshotXYK(xykState)) {
		t.Fatal("xyk slot should be a fresh snapshot reflecting the trade")
	}
}

func TestSetBuyAndSpotPriceReturnNotSupportedWhenNoSimulatorMatches(t *testing.T) {
	set := NewSet(SnapshotXYK(&xyk.PoolState{
		AssetA: 100, AssetB: 200,
		ReserveA: bal(10_000), ReserveB: bal(10_000),
		Shares: bal(10_000), FeeBps: 30,
	}))

	if _, _, err := set.Sell(100, 999, bal(10), nil); err != ErrNotSupported {
		t.Fatalf("got %v, want ErrNotSupported", err)
	}
	if _, _, err := set.Buy(100, 999, bal(10), nil); err != ErrNotSupported {
		t.Fatalf("buy: got %v, want ErrNotSupported", err)
	}
	if _, err := set.SpotPrice(100, 999); err != ErrNotSupported {
		t.Fatalf("got %v, want ErrNotSupported", err)
	}
}
