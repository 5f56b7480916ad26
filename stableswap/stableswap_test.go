// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stableswap

import (
	"math/big"
	"testing"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
)

func bal(n int64) *mathkernel.Balance { return mathkernel.MustBalanceFromBig(big.NewInt(n)) }

func newTestRegistry(t *testing.T) (*Registry, ledger.AccountId, ledger.AccountId) {
	t.Helper()
	lg := ledger.NewMemory()
	owner := ledger.AccountId{0x1}
	trader := ledger.AccountId{0x2}
	vault := ledger.AccountId{0xFF}
	lg.SeedFree(owner, 100, bal(1_000_000))
	lg.SeedFree(owner, 200, bal(1_000_000))
	lg.SeedFree(owner, 300, bal(1_000_000))
	lg.SeedFree(trader, 100, bal(1_000_000))
	return NewRegistry(vault, lg), owner, trader
}

// TestCreatePoolMintsDSharesForBalancedDeposit checks that a perfectly
// balanced three-asset deposit mints shares equal to the sum of balances:
// D collapses to sum(x_i) exactly when every balance is equal, regardless
// of amplification.
func TestCreatePoolMintsDSharesForBalancedDeposit(t *testing.T) {
	r, owner, _ := newTestRegistry(t)
	assets := []asset.Id{100, 200, 300}
	amounts := []*mathkernel.Balance{bal(10_000), bal(10_000), bal(10_000)}
	pool, err := r.CreatePool(owner, assets, amounts, 100, 4)
	if err != nil {
		t.Fatalf("create_pool: %v", err)
	}
	if pool.Shares.ToBig().Cmp(big.NewInt(30_000)) != 0 {
		t.Fatalf("shares = %s, want 30000", pool.Shares.ToBig())
	}
}

func TestSellNearParityYieldsCloseToOneForOne(t *testing.T) {
	r, owner, trader := newTestRegistry(t)
	assets := []asset.Id{100, 200}
	amounts := []*mathkernel.Balance{bal(1_000_000), bal(1_000_000)}
	pool, err := r.CreatePool(owner, assets, amounts, 200, 4)
	if err != nil {
		t.Fatalf("create_pool: %v", err)
	}

	out, err := r.Sell(trader, pool.ID, 100, 200, bal(1_000), bal(0))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	// High amplification near balanced reserves should quote very close to
	// 1:1, well within a 1% band even after the flat trading fee.
	outI := out.ToBig().Int64()
	if outI < 980 || outI > 1000 {
		t.Fatalf("amount_out = %d, want within [980, 1000] for a near-parity swap", outI)
	}
}

func TestSellRejectsUnknownAsset(t *testing.T) {
	r, owner, trader := newTestRegistry(t)
	assets := []asset.Id{100, 200}
	amounts := []*mathkernel.Balance{bal(10_000), bal(10_000)}
	pool, err := r.CreatePool(owner, assets, amounts, 100, 4)
	if err != nil {
		t.Fatalf("create_pool: %v", err)
	}
	_, err = r.Sell(trader, pool.ID, 100, 999, bal(10), bal(0))
	if err != ErrAssetNotInPool {
		t.Fatalf("got %v, want ErrAssetNotInPool", err)
	}
}

func TestSellGrowsPoolBalancesByNetAmounts(t *testing.T) {
	r, owner, trader := newTestRegistry(t)
	assets := []asset.Id{100, 200}
	amounts := []*mathkernel.Balance{bal(50_000), bal(50_000)}
	pool, err := r.CreatePool(owner, assets, amounts, 100, 0)
	if err != nil {
		t.Fatalf("create_pool: %v", err)
	}

	out, err := r.Sell(trader, pool.ID, 100, 200, bal(5_000), bal(0))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	after, err := r.Pool(pool.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Balances[0].ToBig().Cmp(big.NewInt(55_000)) != 0 {
		t.Fatalf("balance_in after sell = %s, want 55000", after.Balances[0].ToBig())
	}
	wantOut := new(big.Int).Sub(big.NewInt(50_000), out.ToBig())
	if after.Balances[1].ToBig().Cmp(wantOut) != 0 {
		t.Fatalf("balance_out after sell = %s, want %s", after.Balances[1].ToBig(), wantOut)
	}
}
