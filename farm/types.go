// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package farm implements the liquidity-mining accumulator math (spec.md
// §3, §4, C8): a two-level GlobalFarm/YieldFarm reward schedule, ray-
// precision "reward per share" accumulators in the MasterChef/HydraDX
// mould, and per-deposit entry checkpoints so a staker's claimable reward
// is always (current_accumulator - entry_checkpoint) * valued_shares,
// computed lazily on whichever operation touches the farm next. Grounded
// on the teacher's two-slope accumulator idiom in dex/interest_rate.go
// (ray-scaled rates, an explicit "accrue since last touch" step) adapted
// from a borrow/supply curve to a periods-elapsed reward emission curve,
// since the teacher has no liquidity-mining pallet of its own.
package farm

import (
	"sync"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
)

// FarmState mirrors spec.md §3's Active -> (Stopped | Terminated)
// lifecycle, shared by both GlobalFarm and YieldFarm.
type FarmState uint8

const (
	Active FarmState = iota
	Stopped
	Terminated
)

func (s FarmState) String() string {
	switch s {
	case Active:
		return "Active"
	case Stopped:
		return "Stopped"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// GlobalFarm funds one or more YieldFarms out of a single reward
// currency, emitting up to YieldPerPeriod (capped by MaxRewardPerPeriod)
// every BlocksPerPeriod blocks for PlannedYieldingPeriods periods.
type GlobalFarm struct {
	Id                     uint32
	Owner                  ledger.AccountId
	RewardCurrency         asset.Id
	IncentivizedAsset      asset.Id
	YieldPerPeriod         *mathkernel.Balance
	MaxRewardPerPeriod     *mathkernel.Balance
	PlannedYieldingPeriods uint64
	BlocksPerPeriod        uint64

	// AccumulatedRpz is the ray-scaled cumulative reward per unit of
	// TotalSharesZ (the sum, across every living yield farm, of
	// total_valued_shares * multiplier).
	AccumulatedRpz      *mathkernel.Balance
	TotalRewardsFunded  *mathkernel.Balance // funded by the owner at creation
	TotalRewardsEmitted *mathkernel.Balance // cumulative, monotone; never decreases
	TotalSharesZ        *mathkernel.Balance

	RanPeriods       uint64
	UpdatedAtBlock   uint64
	LivingYieldFarms uint32
	State            FarmState
}

func (g *GlobalFarm) clone() *GlobalFarm {
	cp := *g
	cp.YieldPerPeriod = new(mathkernel.Balance).Set(g.YieldPerPeriod)
	cp.MaxRewardPerPeriod = new(mathkernel.Balance).Set(g.MaxRewardPerPeriod)
	cp.AccumulatedRpz = new(mathkernel.Balance).Set(g.AccumulatedRpz)
	cp.TotalRewardsFunded = new(mathkernel.Balance).Set(g.TotalRewardsFunded)
	cp.TotalRewardsEmitted = new(mathkernel.Balance).Set(g.TotalRewardsEmitted)
	cp.TotalSharesZ = new(mathkernel.Balance).Set(g.TotalSharesZ)
	return &cp
}

// YieldFarm distributes a slice of its GlobalFarm's emission to deposits
// staked against a single incentivized pool (identified by PoolId, an
// opaque id the caller assigns to an AMM pool or share token).
type YieldFarm struct {
	Id                uint32
	GlobalFarmId      uint32
	PoolId            uint32
	Multiplier        uint32 // fixed point, 10_000 == 1x
	TotalShares       *mathkernel.Balance
	TotalValuedShares *mathkernel.Balance
	AccumulatedRpvs   *mathkernel.Balance // ray-scaled reward per valued share
	AccumulatedRpz    *mathkernel.Balance // global rpz checkpoint at last accrue
	EntriesCount      uint32
	State             FarmState
}

func (y *YieldFarm) clone() *YieldFarm {
	cp := *y
	cp.TotalShares = new(mathkernel.Balance).Set(y.TotalShares)
	cp.TotalValuedShares = new(mathkernel.Balance).Set(y.TotalValuedShares)
	cp.AccumulatedRpvs = new(mathkernel.Balance).Set(y.AccumulatedRpvs)
	cp.AccumulatedRpz = new(mathkernel.Balance).Set(y.AccumulatedRpz)
	return &cp
}

// DepositEntry is one deposit's stake into a single yield farm: its
// valued shares (set equal to the raw shares at entry; no loyalty
// multiplier is applied) and the accumulator checkpoint used to
// compute claimable rewards since the last claim.
type DepositEntry struct {
	YieldFarmId     uint32
	Shares          *mathkernel.Balance
	ValuedShares    *mathkernel.Balance
	AccumulatedRpvs *mathkernel.Balance
	EnteredAtBlock  uint64
}

// Deposit is a locked stake of LP share tokens that may be staked into
// multiple yield farms simultaneously (spec.md §8's "Deposit (liquidity
// mining)"), bounded by MaxEntriesPerDeposit.
type Deposit struct {
	Id        uint64
	Owner     ledger.AccountId
	ShareAsset asset.Id
	Shares    *mathkernel.Balance
	Entries   map[uint32]*DepositEntry // keyed by YieldFarmId
}

func (d *Deposit) clone() *Deposit {
	cp := *d
	cp.Shares = new(mathkernel.Balance).Set(d.Shares)
	cp.Entries = make(map[uint32]*DepositEntry, len(d.Entries))
	for id, e := range d.Entries {
		ec := *e
		ec.Shares = new(mathkernel.Balance).Set(e.Shares)
		ec.ValuedShares = new(mathkernel.Balance).Set(e.ValuedShares)
		ec.AccumulatedRpvs = new(mathkernel.Balance).Set(e.AccumulatedRpvs)
		cp.Entries[id] = &ec
	}
	return &cp
}

// MaxEntriesPerDeposit bounds how many yield farms a single deposit may
// be staked into at once (spec.md §7's MaxEntriesPerDeposit error exists
// precisely to enforce this).
const MaxEntriesPerDeposit = 5

// Registry holds every global farm, yield farm, and deposit.
type Registry struct {
	mu sync.RWMutex

	ledger ledger.Ledger
	vault  ledger.AccountId

	globalFarms map[uint32]*GlobalFarm
	yieldFarms  map[uint32]*YieldFarm
	deposits    map[uint64]*Deposit

	nextGlobalFarmId uint32
	nextYieldFarmId  uint32
	nextDepositId    uint64
}

func NewRegistry(vault ledger.AccountId, lg ledger.Ledger) *Registry {
	return &Registry{
		ledger:      lg,
		vault:       vault,
		globalFarms: make(map[uint32]*GlobalFarm),
		yieldFarms:  make(map[uint32]*YieldFarm),
		deposits:    make(map[uint64]*Deposit),
	}
}
