// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"math/big"
	"testing"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
)

func bal(n int64) *mathkernel.Balance { return mathkernel.MustBalanceFromBig(big.NewInt(n)) }

const (
	rewardCurrency = 900
	shareAsset     = 901
	incentivized   = 100
)

func newTestRegistry(t *testing.T) (*Registry, ledger.AccountId, ledger.AccountId) {
	t.Helper()
	lg := ledger.NewMemory()
	owner := ledger.AccountId{0x1}
	staker := ledger.AccountId{0x2}
	vault := ledger.AccountId{0xFF}
	lg.SeedFree(owner, rewardCurrency, bal(1_000_000))
	lg.SeedFree(staker, shareAsset, bal(1_000_000))
	return NewRegistry(vault, lg), owner, staker
}

func TestCreateGlobalFarmFundsVault(t *testing.T) {
	r, owner, _ := newTestRegistry(t)
	g, err := r.CreateGlobalFarm(owner, bal(100_000), rewardCurrency, incentivized, bal(100), bal(100), 1000, 10, 0)
	if err != nil {
		t.Fatalf("create_global_farm: %v", err)
	}
	if g.State != Active {
		t.Fatalf("state = %v, want Active", g.State)
	}
	if !g.TotalRewardsEmitted.IsZero() {
		t.Fatal("a freshly created farm should not have emitted anything yet")
	}
}

func TestDepositAccruesAndClaimRewardsProportionalToShares(t *testing.T) {
	r, owner, staker := newTestRegistry(t)
	g, err := r.CreateGlobalFarm(owner, bal(1_000_000), rewardCurrency, incentivized, bal(100), bal(100), 1000, 10, 0)
	if err != nil {
		t.Fatalf("create_global_farm: %v", err)
	}
	y, err := r.CreateYieldFarm(owner, g.Id, 1 /* poolId */, 10_000, 0)
	if err != nil {
		t.Fatalf("create_yield_farm: %v", err)
	}

	d, err := r.DepositShares(staker, shareAsset, bal(1_000), y.Id, 0)
	if err != nil {
		t.Fatalf("deposit_shares: %v", err)
	}

	// Ten periods elapse with this deposit as the farm's only stake; the
	// deposit should be entitled to the full emission: 10 periods * 100
	// reward per period = 1000.
	reward, err := r.ClaimRewards(staker, d.Id, y.Id, 100)
	if err != nil {
		t.Fatalf("claim_rewards: %v", err)
	}
	if reward.ToBig().Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("reward = %s, want 1000", reward.ToBig())
	}

	// A second claim with no further periods elapsed should pay nothing.
	reward2, err := r.ClaimRewards(staker, d.Id, y.Id, 100)
	if err != nil {
		t.Fatalf("claim_rewards (second): %v", err)
	}
	if !reward2.IsZero() {
		t.Fatalf("second claim at the same block should be zero, got %s", reward2.ToBig())
	}
}

func TestWithdrawSharesUnreservesOnLastEntry(t *testing.T) {
	r, owner, staker := newTestRegistry(t)
	g, err := r.CreateGlobalFarm(owner, bal(1_000_000), rewardCurrency, incentivized, bal(100), bal(100), 1000, 10, 0)
	if err != nil {
		t.Fatalf("create_global_farm: %v", err)
	}
	y, err := r.CreateYieldFarm(owner, g.Id, 1, 10_000, 0)
	if err != nil {
		t.Fatalf("create_yield_farm: %v", err)
	}
	d, err := r.DepositShares(staker, shareAsset, bal(1_000), y.Id, 0)
	if err != nil {
		t.Fatalf("deposit_shares: %v", err)
	}

	if _, err := r.WithdrawShares(staker, d.Id, y.Id, 50); err != nil {
		t.Fatalf("withdraw_shares: %v", err)
	}
	if _, err := r.Deposit(d.Id); err != ErrDepositNotFound {
		t.Fatalf("deposit should be gone after its last entry is withdrawn, got %v", err)
	}

	free := r.ledgerFreeForTest(staker, shareAsset)
	if free.ToBig().Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("free balance after withdrawal = %s, want 1000000 (fully unreserved)", free.ToBig())
	}
}

func TestRedepositSharesRejectsDoubleLockAndMaxEntries(t *testing.T) {
	r, owner, staker := newTestRegistry(t)
	g, err := r.CreateGlobalFarm(owner, bal(1_000_000), rewardCurrency, incentivized, bal(100), bal(100), 1000, 10, 0)
	if err != nil {
		t.Fatalf("create_global_farm: %v", err)
	}
	y1, _ := r.CreateYieldFarm(owner, g.Id, 1, 10_000, 0)
	d, err := r.DepositShares(staker, shareAsset, bal(1_000), y1.Id, 0)
	if err != nil {
		t.Fatalf("deposit_shares: %v", err)
	}

	if err := r.RedepositShares(staker, d.Id, y1.Id, 0); err != ErrDoubleLock {
		t.Fatalf("got %v, want ErrDoubleLock", err)
	}

	for i := 0; i < MaxEntriesPerDeposit-1; i++ {
		yi, err := r.CreateYieldFarm(owner, g.Id, uint32(i+2), 10_000, 0)
		if err != nil {
			t.Fatalf("create_yield_farm[%d]: %v", i, err)
		}
		if err := r.RedepositShares(staker, d.Id, yi.Id, 0); err != nil {
			t.Fatalf("redeposit_shares[%d]: %v", i, err)
		}
	}

	overflow, err := r.CreateYieldFarm(owner, g.Id, 999, 10_000, 0)
	if err != nil {
		t.Fatalf("create_yield_farm(overflow): %v", err)
	}
	if err := r.RedepositShares(staker, d.Id, overflow.Id, 0); err != ErrMaxEntriesPerDeposit {
		t.Fatalf("got %v, want ErrMaxEntriesPerDeposit", err)
	}
}

// ledgerFreeForTest reaches into the registry's ledger to assert on free
// balance without exposing a production getter for it.
func (r *Registry) ledgerFreeForTest(who ledger.AccountId, a asset.Id) *mathkernel.Balance {
	return r.ledger.FreeBalance(who, a)
}
