// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"math/big"
	"testing"

	"github.com/luxfi/icedex/intent"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/sim"
	"github.com/luxfi/icedex/solver"
	"github.com/luxfi/icedex/xyk"
)

func bal(n int64) *mathkernel.Balance { return mathkernel.MustBalanceFromBig(big.NewInt(n)) }

// TestExecuteSettlesDirectlyNettedIntentsPeerToPeer mirrors spec.md §8
// scenario 4: two opposing ExactIn intents fully net against each other,
// with no AMM trade at all.
func TestExecuteSettlesDirectlyNettedIntentsPeerToPeer(t *testing.T) {
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
	compositor := sim.NewSet(sim.SnapshotXYK(pool))

	alice := ledger.AccountId{0x1}
	bob := ledger.AccountId{0x2}
	lg.SeedFree(alice, 100, bal(10_000))
	lg.SeedFree(bob, 200, bal(10_000))

	intents := intent.NewRegistry(lg)
	if _, err := intents.Submit(alice, intent.KindSwap, &intent.Swap{
		AssetIn: 100, AssetOut: 200, AmountIn: bal(1_000), AmountOut: bal(1_000),
		SwapType: intent.ExactIn, Partial: true,
	}, 10_000); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if _, err := intents.Submit(bob, intent.KindSwap, &intent.Swap{
		AssetIn: 200, AssetOut: 100, AmountIn: bal(1_000), AmountOut: bal(1_000),
		SwapType: intent.ExactIn, Partial: true,
	}, 10_000); err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	live := intents.IterLive(0)
	sol, err := solver.Solve(live, compositor, 41, nil)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if len(sol.Trades) != 0 {
		t.Fatalf("expected a pure netting solution with no AMM trades, got %d", len(sol.Trades))
	}

	router := NewRouter(&XYKExecutor{Registry: reg})
	events, err := Execute(sol, intents, lg, router)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one SolutionExecuted event, got %d", len(events))
	}

	if got := lg.FreeBalance(alice, 200); got.Cmp(bal(1_000)) != 0 {
		t.Fatalf("alice free balance of 200 = %v, want 1000", got)
	}
	if got := lg.FreeBalance(bob, 100); got.Cmp(bal(1_000)) != 0 {
		t.Fatalf("bob free balance of 100 = %v, want 1000", got)
	}
	if _, err := intents.Get(sol.Resolved[0].Id); err == nil {
		t.Fatalf("resolved intent should have been removed from the registry")
	}
}

// TestExecuteRoutesResidualThroughTheLiveAMMPool checks that an unmatched
// residual is routed through the pool the solver chose, and the live
// pool's reserves move accordingly.
func TestExecuteRoutesResidualThroughTheLiveAMMPool(t *testing.T) {
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
	compositor := sim.NewSet(sim.SnapshotXYK(pool))

	alice := ledger.AccountId{0x1}
	lg.SeedFree(alice, 100, bal(10_000))

	intents := intent.NewRegistry(lg)
	if _, err := intents.Submit(alice, intent.KindSwap, &intent.Swap{
		AssetIn: 100, AssetOut: 200, AmountIn: bal(2_000), AmountOut: bal(1),
		SwapType: intent.ExactIn, Partial: true,
	}, 10_000); err != nil {
		t.Fatalf("submit alice: %v", err)
	}

	live := intents.IterLive(0)
	sol, err := solver.Solve(live, compositor, 41, nil)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if len(sol.Trades) != 1 {
		t.Fatalf("expected exactly one routed AMM trade, got %d", len(sol.Trades))
	}

	vaultBefore := lg.FreeBalance(vault, 100)
	router := NewRouter(&XYKExecutor{Registry: reg})
	if _, err := Execute(sol, intents, lg, router); err != nil {
		t.Fatalf("execute: %v", err)
	}

	vaultAfter := lg.FreeBalance(vault, 100)
	if vaultAfter.Cmp(vaultBefore) <= 0 {
		t.Fatalf("vault's asset-100 balance should have grown after the routed sell")
	}
	if got := lg.FreeBalance(alice, 200); got.IsZero() {
		t.Fatalf("alice should have received some asset-200 output")
	}
}
