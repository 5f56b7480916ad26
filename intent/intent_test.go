// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package intent

import (
	"math/big"
	"testing"

	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
)

func bal(n int64) *mathkernel.Balance { return mathkernel.MustBalanceFromBig(big.NewInt(n)) }

func newTestRegistry(t *testing.T) (*Registry, ledger.AccountId) {
	t.Helper()
	lg := ledger.NewMemory()
	account := ledger.AccountId{0x1}
	lg.SeedFree(account, 100, bal(1_000_000))
	return NewRegistry(lg), account
}

func TestSubmitReservesDeclaredInput(t *testing.T) {
	r, account := newTestRegistry(t)
	id, err := r.Submit(account, KindSwap, &Swap{
		AssetIn: 100, AssetOut: 200,
		AmountIn: bal(1_000), AmountOut: bal(900),
		SwapType: ExactIn, Partial: false,
	}, 1000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, err := r.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Swap.AmountIn.ToBig().Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("amount_in = %s, want 1000", got.Swap.AmountIn.ToBig())
	}
	if free := r.ledger.FreeBalance(account, 100).Uint64(); free != 999_000 {
		t.Fatalf("free balance after submit = %d, want 999000", free)
	}
}

func TestIdsEncodeDeadlineBucketInHighBits(t *testing.T) {
	r, account := newTestRegistry(t)
	idEarly, err := r.Submit(account, KindSwap, &Swap{AssetIn: 100, AssetOut: 200, AmountIn: bal(10), AmountOut: bal(1)}, 100)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	idLate, err := r.Submit(account, KindSwap, &Swap{AssetIn: 100, AssetOut: 200, AmountIn: bal(10), AmountOut: bal(1)}, 100_000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// idEarly's deadline bucket is smaller than idLate's, so the 16-byte
	// id (big-endian bucket in the high half) must compare smaller too.
	less := false
	for i := 0; i < 16; i++ {
		if idEarly[i] != idLate[i] {
			less = idEarly[i] < idLate[i]
			break
		}
	}
	if !less {
		t.Fatalf("expected idEarly < idLate by deadline bucket ordering")
	}
}

func TestCancelRejectsNonOwnerAndRefundsReserve(t *testing.T) {
	r, account := newTestRegistry(t)
	other := ledger.AccountId{0x2}
	id, err := r.Submit(account, KindSwap, &Swap{AssetIn: 100, AssetOut: 200, AmountIn: bal(1_000), AmountOut: bal(1)}, 1000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := r.Cancel(other, id, 0); err != ErrNotOwner {
		t.Fatalf("got %v, want ErrNotOwner", err)
	}
	if err := r.Cancel(account, id, 0); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := r.Get(id); err != ErrIntentNotFound {
		t.Fatalf("got %v, want ErrIntentNotFound after cancel", err)
	}
	if free := r.ledger.FreeBalance(account, 100).Uint64(); free != 1_000_000 {
		t.Fatalf("free balance after cancel = %d, want 1000000", free)
	}
}

func TestCancelRejectsAfterDeadline(t *testing.T) {
	r, account := newTestRegistry(t)
	id, err := r.Submit(account, KindSwap, &Swap{AssetIn: 100, AssetOut: 200, AmountIn: bal(1_000), AmountOut: bal(1)}, 500)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := r.Cancel(account, id, 500); err != ErrIntentExpired {
		t.Fatalf("got %v, want ErrIntentExpired", err)
	}
}

func TestExpireSweepIsIdempotentAndRemovesOnlyExpired(t *testing.T) {
	r, account := newTestRegistry(t)
	expiring, err := r.Submit(account, KindSwap, &Swap{AssetIn: 100, AssetOut: 200, AmountIn: bal(100), AmountOut: bal(1)}, 500)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	surviving, err := r.Submit(account, KindSwap, &Swap{AssetIn: 100, AssetOut: 200, AmountIn: bal(100), AmountOut: bal(1)}, 5_000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	swept, err := r.ExpireSweep(500)
	if err != nil {
		t.Fatalf("expire_sweep: %v", err)
	}
	if len(swept) != 1 || swept[0] != expiring {
		t.Fatalf("swept = %v, want exactly [expiring]", swept)
	}
	if _, err := r.Get(surviving); err != nil {
		t.Fatalf("surviving intent should remain: %v", err)
	}

	swept2, err := r.ExpireSweep(500)
	if err != nil {
		t.Fatalf("expire_sweep (second): %v", err)
	}
	if len(swept2) != 0 {
		t.Fatalf("second sweep should be a no-op, got %v", swept2)
	}
}

func TestIterLiveExcludesExpired(t *testing.T) {
	r, account := newTestRegistry(t)
	if _, err := r.Submit(account, KindSwap, &Swap{AssetIn: 100, AssetOut: 200, AmountIn: bal(100), AmountOut: bal(1)}, 500); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := r.Submit(account, KindSwap, &Swap{AssetIn: 100, AssetOut: 200, AmountIn: bal(100), AmountOut: bal(1)}, 5_000); err != nil {
		t.Fatalf("submit: %v", err)
	}
	live := r.IterLive(1_000)
	if len(live) != 1 {
		t.Fatalf("live = %d, want 1", len(live))
	}
}
