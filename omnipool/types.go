// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package omnipool implements the canonical single-vault, multi-asset
// constant-function market maker (spec.md §4.2, C6): every listed asset
// trades against a synthetic HUB accounting unit rather than directly
// against every other asset, so liquidity pooled for any one asset benefits
// every trading pair. It is grounded on the teacher's dex/pool_manager.go
// (a sync.RWMutex-guarded map of pool state keyed by a composite id,
// mutated only through validate-then-execute methods) generalized from a
// two-asset constant-product pool to the hub-routed multi-asset design
// original_source/pallets/omnipool describes.
package omnipool

import (
	"math/big"
	"sync"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/obs"
	"github.com/luxfi/icedex/txn"
)

var logger = obs.NewLogger("omnipool")

// metrics is nil until SetMetrics installs one; emit's HubRoutedToNative
// counter increment is a no-op until then.
var metrics *obs.Metrics

// SetMetrics installs the process-wide metrics registry this package
// reports HUB-routed-to-NATIVE volume to.
func SetMetrics(m *obs.Metrics) { metrics = m }

// Tradable is a bitset over the four permissions an asset can hold
// independently (spec.md §3): SELL, BUY, ADD_LIQUIDITY, REMOVE_LIQUIDITY.
// The zero value is FROZEN.
type Tradable uint8

const (
	CanSell Tradable = 1 << iota
	CanBuy
	CanAddLiquidity
	CanRemoveLiquidity

	Frozen Tradable = 0
	AllowAll = CanSell | CanBuy | CanAddLiquidity | CanRemoveLiquidity
)

func (t Tradable) Has(flag Tradable) bool { return t&flag != 0 }

// AssetReserveState is the per-asset ledger entry the pool maintains: its
// token reserve, its share of the synthetic HUB, total and
// protocol-owned LP shares, its liquidity cap (as a unit-interval fraction
// of total HUB), and its tradability bitset.
type AssetReserveState struct {
	Asset          asset.Id
	Reserve        *mathkernel.Balance
	HubReserve     *mathkernel.Balance
	Shares         *mathkernel.Balance
	ProtocolShares *mathkernel.Balance
	Cap            asset.Ratio // unit-interval fraction, Cap.N <= Cap.D
	Tradable       Tradable
}

func (s *AssetReserveState) clone() *AssetReserveState {
	cp := *s
	cp.Reserve = new(mathkernel.Balance).Set(s.Reserve)
	cp.HubReserve = new(mathkernel.Balance).Set(s.HubReserve)
	cp.Shares = new(mathkernel.Balance).Set(s.Shares)
	cp.ProtocolShares = new(mathkernel.Balance).Set(s.ProtocolShares)
	return &cp
}

// Position is an Omnipool LP position: the asset it was opened against,
// the underlying token amount it represents, the LP shares it owns, and
// the spot price in effect at entry (used by remove_liquidity to charge a
// price-adjustment fee proportional to drift since entry).
type Position struct {
	Id           uint64
	Owner        ledger.AccountId
	Asset        asset.Id
	Amount       *mathkernel.Balance
	Shares       *mathkernel.Balance
	PriceAtEntry asset.Ratio
}

func (p *Position) clone() *Position {
	cp := *p
	cp.Amount = new(mathkernel.Balance).Set(p.Amount)
	cp.Shares = new(mathkernel.Balance).Set(p.Shares)
	return &cp
}

// FeePolicy holds the three fee knobs spec.md §4.2 names, in the fixed
// application order protocol → slip → asset.
type FeePolicy struct {
	ProtocolFeeBps    uint32
	AssetFeeBps       uint32
	MaxSlipFeeBps     uint32
	MinWithdrawalFeeBps uint32
	MaxInRatio        uint64
	MaxOutRatio       uint64
	MinTradeAmount    *mathkernel.Balance
}

// DefaultFeePolicy mirrors the zero-fee, ratio-3 configuration spec.md §8's
// scenario 1 seeds its pool with.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		ProtocolFeeBps:      0,
		AssetFeeBps:         0,
		MaxSlipFeeBps:       0,
		MinWithdrawalFeeBps: 0,
		MaxInRatio:          3,
		MaxOutRatio:         3,
		MinTradeAmount:      mathkernel.NewBalance(1000),
	}
}

// Pool is the canonical Omnipool instance: one per runtime, holding every
// listed asset's AssetReserveState and every open Position, guarded by a
// single mutex exactly as dex/pool_manager.go guards its pool map.
type Pool struct {
	mu        sync.RWMutex
	vault     ledger.AccountId
	ledger    ledger.Ledger
	fees      FeePolicy
	assets    map[asset.Id]*AssetReserveState
	positions map[uint64]*Position
	nextPosID uint64
	events    []Event
}

// NewPool constructs an empty Omnipool vaulted at vaultAccount and backed
// by lg for all token movement.
func NewPool(vaultAccount ledger.AccountId, lg ledger.Ledger, fees FeePolicy) *Pool {
	return &Pool{
		vault:     vaultAccount,
		ledger:    lg,
		fees:      fees,
		assets:    make(map[asset.Id]*AssetReserveState),
		positions: make(map[uint64]*Position),
	}
}

// Events drains and returns every event emitted since the last call,
// mirroring the teacher's per-call event-log convention.
func (p *Pool) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev := p.events
	p.events = nil
	return ev
}

func (p *Pool) emit(e Event) {
	p.events = append(p.events, e)
	if hub, ok := e.(HubRoutedToNative); ok {
		logger.Debug("omnipool: fee routed to native hub reserve", "amount", hub.Amount.ToBig().String())
		if metrics != nil {
			metrics.HubRoutedToNative.Add(float64(hub.Amount.Uint64()))
		}
	}
}

// AssetState returns a defensive copy of a's reserve state, or
// ErrAssetNotFound.
func (p *Pool) AssetState(a asset.Id) (*AssetReserveState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.assets[a]
	if !ok {
		return nil, ErrAssetNotFound
	}
	return s.clone(), nil
}

// Checkpoint deep-clones every asset reserve state and position so a
// later Restore can undo Sell/Buy/AddLiquidity/RemoveLiquidity's in-place
// mutations (package txn's transactional-boundary contract).
func (p *Pool) Checkpoint() txn.Restorer {
	p.mu.RLock()
	defer p.mu.RUnlock()

	assets := make(map[asset.Id]*AssetReserveState, len(p.assets))
	for id, s := range p.assets {
		assets[id] = s.clone()
	}
	positions := make(map[uint64]*Position, len(p.positions))
	for id, pos := range p.positions {
		positions[id] = pos.clone()
	}
	return &poolSnapshot{p: p, assets: assets, positions: positions, nextPosID: p.nextPosID}
}

type poolSnapshot struct {
	p         *Pool
	assets    map[asset.Id]*AssetReserveState
	positions map[uint64]*Position
	nextPosID uint64
}

func (s *poolSnapshot) Restore() {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.assets = s.assets
	s.p.positions = s.positions
	s.p.nextPosID = s.nextPosID
}

var _ txn.Checkpointer = (*Pool)(nil)

// totalHubLocked sums hub_reserve across every listed asset; callers must hold
// at least a read lock.
func (p *Pool) totalHubLocked() *big.Int {
	total := new(big.Int)
	for _, s := range p.assets {
		total.Add(total, s.HubReserve.ToBig())
	}
	return total
}
