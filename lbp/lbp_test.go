// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lbp

import (
	"math/big"
	"testing"

	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
)

func bal(n int64) *mathkernel.Balance { return mathkernel.MustBalanceFromBig(big.NewInt(n)) }

// TestWeightAtMidpoint reproduces spec.md §8 scenario 3 exactly: a pool
// running from block 100 to 200 with weight_a moving 90_000_000 ->
// 10_000_000 must show (50_000_000, 50_000_000) at block 150.
func TestWeightAtMidpoint(t *testing.T) {
	pool := &Pool{
		Start: 100, End: 200,
		InitialWeightA: 90_000_000,
		FinalWeightA:   10_000_000,
	}
	wa, wb := pool.WeightAt(150)
	if wa != 50_000_000 || wb != 50_000_000 {
		t.Fatalf("weights at 150 = (%d, %d), want (50000000, 50000000)", wa, wb)
	}
}

func TestWeightClampedBeforeStartAndAfterEnd(t *testing.T) {
	pool := &Pool{Start: 100, End: 200, InitialWeightA: 90_000_000, FinalWeightA: 10_000_000}
	if wa, _ := pool.WeightAt(50); wa != 90_000_000 {
		t.Fatalf("weight before start = %d, want 90000000", wa)
	}
	if wa, _ := pool.WeightAt(250); wa != 10_000_000 {
		t.Fatalf("weight after end = %d, want 10000000", wa)
	}
}

func newTestRegistry(t *testing.T) (*Registry, ledger.AccountId, ledger.AccountId) {
	t.Helper()
	lg := ledger.NewMemory()
	owner := ledger.AccountId{0x1}
	trader := ledger.AccountId{0x2}
	vault := ledger.AccountId{0xFF}
	lg.SeedFree(owner, 100, bal(1_000_000))
	lg.SeedFree(owner, 200, bal(1_000_000))
	lg.SeedFree(trader, 100, bal(1_000_000))
	return NewRegistry(vault, lg), owner, trader
}

func TestSellRejectsBeforeSaleStart(t *testing.T) {
	r, owner, trader := newTestRegistry(t)
	_, err := r.CreatePool(owner, 100, 200, bal(10_000), bal(10_000), 100, 200, 90_000_000, 10_000_000, 200, 30, bal(1000))
	if err != nil {
		t.Fatalf("create_pool: %v", err)
	}
	_, err = r.Sell(trader, 100, 200, bal(100), bal(0), 50)
	if err != ErrBeforeSaleStart {
		t.Fatalf("got %v, want ErrBeforeSaleStart", err)
	}
}

func TestBuyInvertsSell(t *testing.T) {
	r, owner, trader := newTestRegistry(t)
	if _, err := r.CreatePool(owner, 100, 200, bal(10_000), bal(10_000), 100, 200, 50_000_000, 50_000_000, 2000, 0, bal(1_000_000)); err != nil {
		t.Fatalf("create_pool: %v", err)
	}
	sold, err := r.Sell(trader, 100, 200, bal(1_000), bal(0), 150)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	trader2 := ledger.AccountId{0x3}
	if err := r.ledger.Transfer(owner, trader2, 200, bal(100_000)); err != nil {
		t.Fatalf("seed trader2: %v", err)
	}
	amountIn, err := r.Buy(trader2, 200, 100, sold, bal(100_000), 150)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if amountIn.IsZero() {
		t.Fatal("buy should require a positive amount_in")
	}
}

func TestAddLiquidityThenRemoveLiquidityReturnsProRataReserves(t *testing.T) {
	r, owner, _ := newTestRegistry(t)
	if _, err := r.CreatePool(owner, 100, 200, bal(10_000), bal(10_000), 100, 200, 50_000_000, 50_000_000, 2000, 30, bal(1_000_000)); err != nil {
		t.Fatalf("create_pool: %v", err)
	}

	second := ledger.AccountId{0x3}
	if err := r.ledger.Transfer(owner, second, 100, bal(5_000)); err != nil {
		t.Fatalf("seed second lp: %v", err)
	}
	if err := r.ledger.Transfer(owner, second, 200, bal(5_000)); err != nil {
		t.Fatalf("seed second lp: %v", err)
	}

	shares, err := r.AddLiquidity(second, 100, 200, bal(1_000), bal(0))
	if err != nil {
		t.Fatalf("add_liquidity: %v", err)
	}
	if shares.IsZero() {
		t.Fatal("add_liquidity should mint a positive number of shares")
	}

	amountA, amountB, err := r.RemoveLiquidity(second, 100, 200, shares, bal(0), bal(0))
	if err != nil {
		t.Fatalf("remove_liquidity: %v", err)
	}
	if amountA.IsZero() || amountB.IsZero() {
		t.Fatal("remove_liquidity should return a positive amount of both reserves")
	}

	if _, _, err := r.RemoveLiquidity(second, 100, 200, bal(1), bal(0), bal(0)); err != ErrInsufficientShares {
		t.Fatalf("got %v, want ErrInsufficientShares after fully withdrawing", err)
	}
}

func TestSellUsesRepayFeeUntilTargetMet(t *testing.T) {
	r, owner, trader := newTestRegistry(t)
	_, err := r.CreatePool(owner, 100, 200, bal(10_000), bal(10_000), 100, 200, 50_000_000, 50_000_000, 2000, 30, bal(1_000_000))
	if err != nil {
		t.Fatalf("create_pool: %v", err)
	}
	if _, err := r.Sell(trader, 100, 200, bal(100), bal(0), 150); err != nil {
		t.Fatalf("sell: %v", err)
	}
	pool, err := r.Pool(100, 200)
	if err != nil {
		t.Fatal(err)
	}
	if pool.CollectedFees.IsZero() {
		t.Fatal("expected repay fee to have been collected")
	}
	if pool.currentFeeBps() != 2000 {
		t.Fatalf("fee = %d bps, want repay fee 2000 bps (target not yet met)", pool.currentFeeBps())
	}
}
