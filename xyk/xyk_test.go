// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xyk

import (
	"math/big"
	"testing"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/oracle"
)

func bal(n int64) *mathkernel.Balance { return mathkernel.MustBalanceFromBig(big.NewInt(n)) }

func newTestRegistry(t *testing.T) (*Registry, ledger.AccountId, ledger.AccountId) {
	t.Helper()
	lg := ledger.NewMemory()
	lp := ledger.AccountId{0x1}
	trader := ledger.AccountId{0x2}
	vault := ledger.AccountId{0xFF}
	lg.SeedFree(lp, 100, bal(1_000_000))
	lg.SeedFree(lp, 200, bal(1_000_000))
	lg.SeedFree(trader, 100, bal(1_000_000))
	return NewRegistry(vault, lg), lp, trader
}

func TestCreatePoolMintsGeometricMeanShares(t *testing.T) {
	r, lp, _ := newTestRegistry(t)
	state, err := r.CreatePool(lp, 100, 200, bal(10_000), bal(40_000), 30)
	if err != nil {
		t.Fatalf("create_pool: %v", err)
	}
	// sqrt(10_000 * 40_000) = sqrt(400_000_000) = 20_000
	if got := state.Shares.Uint64(); got != 20_000 {
		t.Fatalf("shares = %d, want 20000", got)
	}
}

func TestSellRespectsConstantProduct(t *testing.T) {
	r, lp, trader := newTestRegistry(t)
	if _, err := r.CreatePool(lp, 100, 200, bal(10_000), bal(10_000), 0); err != nil {
		t.Fatalf("create_pool: %v", err)
	}

	out, err := r.Sell(trader, 100, 200, bal(1_000), bal(0))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	// zero-fee constant product: out = R_out - R_in*R_out/(R_in+in)
	// = 10000 - 10000*10000/11000 = 10000 - 9090.9... = 909 (floor)
	if got := out.Uint64(); got != 909 {
		t.Fatalf("amount_out = %d, want 909", got)
	}

	pool, err := r.Pool(100, 200)
	if err != nil {
		t.Fatal(err)
	}
	prodBefore := big.NewInt(10_000 * 10_000)
	prodAfter := new(big.Int).Mul(pool.ReserveA.ToBig(), pool.ReserveB.ToBig())
	if prodAfter.Cmp(prodBefore) < 0 {
		t.Fatalf("invariant decreased: before %s after %s", prodBefore, prodAfter)
	}
}

func TestSellRejectsPoolNotFound(t *testing.T) {
	r, _, trader := newTestRegistry(t)
	_, err := r.Sell(trader, 100, 200, bal(1), bal(0))
	if err != ErrPoolNotFound {
		t.Fatalf("got %v, want ErrPoolNotFound", err)
	}
}

func TestAddLiquidityMintsSharesProRataAndKeepsRatio(t *testing.T) {
	r, lp, _ := newTestRegistry(t)
	if _, err := r.CreatePool(lp, 100, 200, bal(10_000), bal(10_000), 0); err != nil {
		t.Fatal(err)
	}

	second := ledger.AccountId{0x3}
	// fund the second LP directly through the registry's own ledger.
	if err := r.ledger.Transfer(lp, second, 100, bal(5_000)); err != nil {
		t.Fatalf("seed second lp: %v", err)
	}
	if err := r.ledger.Transfer(lp, second, 200, bal(5_000)); err != nil {
		t.Fatalf("seed second lp: %v", err)
	}

	shares, err := r.AddLiquidity(second, 100, 200, bal(1_000), bal(0))
	if err != nil {
		t.Fatalf("add_liquidity: %v", err)
	}
	// depositing 1000 into a 10000/10000/10000-shares pool should mint
	// 1000 * 10000 / 10000 = 1000 shares.
	if got := shares.Uint64(); got != 1_000 {
		t.Fatalf("shares minted = %d, want 1000", got)
	}

	pool, err := r.Pool(100, 200)
	if err != nil {
		t.Fatal(err)
	}
	if pool.ReserveA.Uint64() != 11_000 || pool.ReserveB.Uint64() != 11_000 {
		t.Fatalf("reserves = %d/%d, want 11000/11000", pool.ReserveA.Uint64(), pool.ReserveB.Uint64())
	}
}

func TestRemoveLiquidityReturnsProRataReservesAndRejectsOverdraw(t *testing.T) {
	r, lp, _ := newTestRegistry(t)
	if _, err := r.CreatePool(lp, 100, 200, bal(10_000), bal(10_000), 0); err != nil {
		t.Fatal(err)
	}

	amountA, amountB, err := r.RemoveLiquidity(lp, 100, 200, bal(5_000), bal(0), bal(0))
	if err != nil {
		t.Fatalf("remove_liquidity: %v", err)
	}
	// lp owns all 10000 shares; removing half should return half of each
	// reserve (5000 * 10000 / 10000 = 5000).
	if amountA.Uint64() != 5_000 || amountB.Uint64() != 5_000 {
		t.Fatalf("amounts = %d/%d, want 5000/5000", amountA.Uint64(), amountB.Uint64())
	}

	if _, _, err := r.RemoveLiquidity(lp, 100, 200, bal(1_000_000), bal(0), bal(0)); err != ErrInsufficientShares {
		t.Fatalf("got %v, want ErrInsufficientShares", err)
	}
}

func TestBuyIsInverseOfSell(t *testing.T) {
	r, lp, trader := newTestRegistry(t)
	if _, err := r.CreatePool(lp, 100, 200, bal(10_000), bal(10_000), 0); err != nil {
		t.Fatal(err)
	}
	amountOut := bal(909)
	amountIn, err := r.Buy(trader, 100, 200, amountOut, bal(1_000_000))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if amountIn.Uint64() < 1_000 {
		t.Fatalf("amount_in = %d, want >= 1000 (inverse of the 1000-in/909-out sell)", amountIn.Uint64())
	}
}

func TestSellAppliesNativeDiscountFee(t *testing.T) {
	lg := ledger.NewMemory()
	lp := ledger.AccountId{0x1}
	trader := ledger.AccountId{0x2}
	vault := ledger.AccountId{0xFF}
	lg.SeedFree(lp, 100, bal(1_000_000))
	lg.SeedFree(lp, 200, bal(1_000_000))
	lg.SeedFree(lp, asset.Native, bal(1_000_000))
	lg.SeedFree(trader, 100, bal(1_000_000))
	lg.SeedFree(trader, asset.Native, bal(1_000_000))

	src := oracle.NewInMemory()
	src.SetPrice(100, asset.Native, oracle.PeriodShort, asset.RatioFromUint64(2, 1)) // 1 of asset 100 = 2 NATIVE

	r := NewRegistryWithDiscount(vault, lg, asset.Native, src)
	if _, err := r.CreatePool(lp, 100, 200, bal(10_000), bal(10_000), 100); err != nil {
		t.Fatalf("create_pool(100,200): %v", err)
	}
	if _, err := r.CreatePool(lp, 100, asset.Native, bal(10_000), bal(10_000), 100); err != nil {
		t.Fatalf("create_pool(100,native): %v", err)
	}

	nativeBefore := lg.FreeBalance(trader, asset.Native)
	if _, err := r.Sell(trader, 100, 200, bal(1_000), bal(0)); err != nil {
		t.Fatalf("sell: %v", err)
	}
	nativeAfter := lg.FreeBalance(trader, asset.Native)
	if !nativeAfter.Lt(nativeBefore) {
		t.Fatalf("expected the discount-swap leg to debit NATIVE from the trader, before=%d after=%d", nativeBefore.Uint64(), nativeAfter.Uint64())
	}

	// amount_in(1000) * foregone_fee(50 bps) / 10000 = 5, priced at 2 NATIVE
	// per asset-100 = 10 NATIVE.
	want := new(big.Int).Sub(nativeBefore.ToBig(), big.NewInt(10))
	if nativeAfter.ToBig().Cmp(want) != 0 {
		t.Fatalf("native debited = %s, want %s", new(big.Int).Sub(nativeBefore.ToBig(), nativeAfter.ToBig()), big.NewInt(10))
	}
}

func TestSellNoDiscountWithoutNativePairedPool(t *testing.T) {
	r, lp, trader := newTestRegistry(t)
	if _, err := r.CreatePool(lp, 100, 200, bal(10_000), bal(10_000), 100); err != nil {
		t.Fatal(err)
	}
	// plain NewRegistry never enables the discount path regardless of pool shape.
	if feeBps, discount := r.sellFee(100, 200, r.pools[newPairKey(100, 200)]); discount || feeBps != 100 {
		t.Fatalf("sellFee = (%d, %v), want (100, false) for a registry with no native configured", feeBps, discount)
	}
	if _, err := r.Sell(trader, 100, 200, bal(1_000), bal(0)); err != nil {
		t.Fatalf("sell: %v", err)
	}
}
