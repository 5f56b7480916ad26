// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package solver

import (
	"math/big"
	"testing"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/intent"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/oracle"
	"github.com/luxfi/icedex/sim"
	"github.com/luxfi/icedex/xyk"
)

func bal(n int64) *mathkernel.Balance { return mathkernel.MustBalanceFromBig(big.NewInt(n)) }

func newXykCompositor(t *testing.T) (*sim.Set, ledger.Ledger) {
	t.Helper()
	lg := ledger.NewMemory()
	vault := ledger.AccountId{0xAA}
	owner := ledger.AccountId{0xBB}
	lg.SeedFree(owner, 100, bal(1_000_000))
	lg.SeedFree(owner, 200, bal(1_000_000))

	reg := xyk.NewRegistry(vault, lg)
	pool, err := reg.CreatePool(owner, 100, 200, bal(1_000_000), bal(1_000_000), 0)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return sim.NewSet(sim.SnapshotXYK(pool)), lg
}

// TestSolveNetsDirectlyOpposingExactInIntentsAtOneToOnePrice mirrors
// spec.md §8 scenario 4's shape: two opposing ExactIn intents on a 1:1
// pair, both fully matched without touching the AMM at all.
func TestSolveNetsDirectlyOpposingExactInIntentsAtOneToOnePrice(t *testing.T) {
	compositor, lg := newXykCompositor(t)

	alice := ledger.AccountId{0x1}
	bob := ledger.AccountId{0x2}
	lg.SeedFree(alice, 100, bal(10_000))
	lg.SeedFree(bob, 200, bal(10_000))

	intents := intent.NewRegistry(lg)
	idA, err := intents.Submit(alice, intent.KindSwap, &intent.Swap{
		AssetIn: 100, AssetOut: 200, AmountIn: bal(1_000), AmountOut: bal(1_000),
		SwapType: intent.ExactIn, Partial: true,
	}, 10_000)
	if err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	idB, err := intents.Submit(bob, intent.KindSwap, &intent.Swap{
		AssetIn: 200, AssetOut: 100, AmountIn: bal(1_000), AmountOut: bal(1_000),
		SwapType: intent.ExactIn, Partial: true,
	}, 10_000)
	if err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	live := intents.IterLive(0)
	sol, err := Solve(live, compositor, 41, nil)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.ValidForBlock != 42 {
		t.Fatalf("valid_for_block = %d, want 42", sol.ValidForBlock)
	}
	if len(sol.Trades) != 0 {
		t.Fatalf("expected zero AMM trades for a fully netted pair, got %d", len(sol.Trades))
	}
	if len(sol.Resolved) != 2 {
		t.Fatalf("resolved = %d, want 2", len(sol.Resolved))
	}
	byId := map[intent.Id]Resolution{}
	for _, r := range sol.Resolved {
		byId[r.Id] = r
	}
	ra, ok := byId[idA]
	if !ok {
		t.Fatalf("alice's intent not resolved")
	}
	if ra.AmountIn.ToBig().Cmp(big.NewInt(1000)) != 0 || ra.AmountOut.ToBig().Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("alice resolution = in %s out %s, want 1000/1000", ra.AmountIn.ToBig(), ra.AmountOut.ToBig())
	}
	rb, ok := byId[idB]
	if !ok {
		t.Fatalf("bob's intent not resolved")
	}
	if rb.AmountIn.ToBig().Cmp(big.NewInt(1000)) != 0 || rb.AmountOut.ToBig().Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("bob resolution = in %s out %s, want 1000/1000", rb.AmountIn.ToBig(), rb.AmountOut.ToBig())
	}
	if price, ok := sol.ClearingPrices[asset.Id(100)]; !ok || price.Cmp(asset.RatioFromUint64(1, 1)) != 0 {
		t.Fatalf("clearing price for 100 = %v, want 1/1", price)
	}
}

func TestSolveRoutesResidualThroughAMMWhenOneSideIsLarger(t *testing.T) {
	compositor, lg := newXykCompositor(t)

	alice := ledger.AccountId{0x1}
	bob := ledger.AccountId{0x2}
	lg.SeedFree(alice, 100, bal(10_000))
	lg.SeedFree(bob, 200, bal(10_000))

	intents := intent.NewRegistry(lg)
	if _, err := intents.Submit(alice, intent.KindSwap, &intent.Swap{
		AssetIn: 100, AssetOut: 200, AmountIn: bal(2_000), AmountOut: bal(1),
		SwapType: intent.ExactIn, Partial: true,
	}, 10_000); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if _, err := intents.Submit(bob, intent.KindSwap, &intent.Swap{
		AssetIn: 200, AssetOut: 100, AmountIn: bal(1_000), AmountOut: bal(1),
		SwapType: intent.ExactIn, Partial: true,
	}, 10_000); err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	live := intents.IterLive(0)
	sol, err := Solve(live, compositor, 5, nil)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if len(sol.Resolved) != 2 {
		t.Fatalf("resolved = %d, want 2 (both sides, one partly via AMM)", len(sol.Resolved))
	}
	if len(sol.Trades) == 0 {
		t.Fatalf("expected at least one AMM trade for the unmatched residual")
	}
}

// TestSolveNetsDirectlyAtOracleFallbackPriceWhenNoPoolListsThePair covers
// the oracleSrc fallback path of spotPrice: a pair with no live pool in
// the compositor still nets two opposing ExactIn intents directly, using
// the oracle's price instead of an AMM spot price.
func TestSolveNetsDirectlyAtOracleFallbackPriceWhenNoPoolListsThePair(t *testing.T) {
	lg := ledger.NewMemory()
	alice := ledger.AccountId{0x1}
	bob := ledger.AccountId{0x2}
	lg.SeedFree(alice, 300, bal(10_000))
	lg.SeedFree(bob, 400, bal(10_000))

	intents := intent.NewRegistry(lg)
	if _, err := intents.Submit(alice, intent.KindSwap, &intent.Swap{
		AssetIn: 300, AssetOut: 400, AmountIn: bal(1_000), AmountOut: bal(1_000),
		SwapType: intent.ExactIn, Partial: true,
	}, 10_000); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if _, err := intents.Submit(bob, intent.KindSwap, &intent.Swap{
		AssetIn: 400, AssetOut: 300, AmountIn: bal(1_000), AmountOut: bal(1_000),
		SwapType: intent.ExactIn, Partial: true,
	}, 10_000); err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	src := oracle.NewInMemory()
	src.SetPrice(300, 400, oracle.PeriodShort, asset.RatioFromUint64(1, 1))

	compositor := sim.NewSet() // no pool lists (300, 400) at all
	live := intents.IterLive(0)
	sol, err := Solve(live, compositor, 5, src)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if len(sol.Trades) != 0 {
		t.Fatalf("expected zero AMM trades (no pool exists for this pair), got %d", len(sol.Trades))
	}
	if len(sol.Resolved) != 2 {
		t.Fatalf("resolved = %d, want 2 (netted via the oracle fallback price)", len(sol.Resolved))
	}
}

func TestSolveReturnsErrNoLiveIntentsWhenNothingResolves(t *testing.T) {
	compositor, _ := newXykCompositor(t)
	if _, err := Solve(nil, compositor, 5, nil); err != ErrNoLiveIntents {
		t.Fatalf("got %v, want ErrNoLiveIntents", err)
	}
}
