// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sim

import (
	"math/big"
	"testing"

	"github.com/luxfi/icedex/lbp"
)

func testLBPPool() *lbp.Pool {
	return &lbp.Pool{
		AssetA: 100, AssetB: 200,
		ReserveA: bal(10_000), ReserveB: bal(10_000),
		Start: 100, End: 200,
		InitialWeightA: 50_000_000, FinalWeightA: 50_000_000,
		RepayFeeBps: 2000, FeeBps: 30,
		RepayTarget:   bal(1_000_000),
		CollectedFees: bal(0),
	}
}

func TestLBPSimRejectsTradesOutsideTheSaleWindow(t *testing.T) {
	s := SnapshotLBP(testLBPPool(), 50)
	if s.CanTrade(100, 200) {
		t.Fatal("CanTrade before Start should be false")
	}
	s = SnapshotLBP(testLBPPool(), 250)
	if s.CanTrade(100, 200) {
		t.Fatal("CanTrade after End should be false")
	}
}

func TestLBPSimSellDoesNotMutateTheSourceSnapshot(t *testing.T) {
	pool := testLBPPool()
	s := SnapshotLBP(pool, 150)

	next, result, err := s.SimulateSell(100, 200, bal(1_000))
	if err != nil {
		t.Fatalf("simulate_sell: %v", err)
	}
	if result.AmountOut.IsZero() {
		t.Fatal("expected a positive amount_out")
	}
	// the original pool snapshot passed to SnapshotLBP must be untouched.
	if !pool.ReserveA.Eq(bal(10_000)) || !pool.ReserveB.Eq(bal(10_000)) {
		t.Fatal("SimulateSell mutated the source pool in place")
	}

	nextLBP := next.(*LBPSim)
	if nextLBP.pool.ReserveA.Eq(bal(10_000)) {
		t.Fatal("the returned snapshot should reflect the trade")
	}
}

func TestLBPSimBuyApproximatelyInvertsSell(t *testing.T) {
	s := SnapshotLBP(testLBPPool(), 150)
	_, sellResult, err := s.SimulateSell(100, 200, bal(1_000))
	if err != nil {
		t.Fatalf("simulate_sell: %v", err)
	}

	_, buyResult, err := s.SimulateBuy(100, 200, sellResult.AmountOut)
	if err != nil {
		t.Fatalf("simulate_buy: %v", err)
	}
	// the big.Float-based weighted solve is not exact, but buying back the
	// same amount sold should require close to the same input.
	diff := new(big.Int).Sub(buyResult.AmountIn.ToBig(), sellResult.AmountIn.ToBig())
	diff.Abs(diff)
	if diff.Cmp(big.NewInt(50)) > 0 {
		t.Fatalf("buy amount_in %s diverges too far from sell amount_in %s", buyResult.AmountIn.ToBig(), sellResult.AmountIn.ToBig())
	}
}
