// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sim

import (
	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/mathkernel"
)

// Set is the composite snapshot over every registered Simulator, held in
// the fixed order the runtime dispatches them. A trade is routed to the
// first simulator whose CanTrade reports true; every other slot is
// carried through to the resulting Set unchanged and un-copied.
type Set struct {
	sims []Simulator
}

// NewSet builds a Set from an ordered list of simulators. Order matters:
// it is the dispatch priority a pair resolves against, e.g. Omnipool
// before XYK before LBP before Stableswap.
func NewSet(sims ...Simulator) *Set {
	cp := make([]Simulator, len(sims))
	copy(cp, sims)
	return &Set{sims: cp}
}

// Simulators returns the Set's current simulators in dispatch order.
func (s *Set) Simulators() []Simulator {
	out := make([]Simulator, len(s.sims))
	copy(out, s.sims)
	return out
}

// dispatch finds the first simulator whose CanTrade(in, out) is true,
// returning its index or -1.
func (s *Set) dispatch(in, out asset.Id, poolType *asset.PoolType) int {
	for i, sim := range s.sims {
		if poolType != nil && sim.PoolType() != *poolType {
			continue
		}
		if sim.CanTrade(in, out) {
			return i
		}
	}
	return -1
}

// Sell dispatches a sell to the first simulator that supports (in, out),
// optionally constrained to a specific PoolType, returning a new Set with
// only that slot replaced and the realised TradeResult.
func (s *Set) Sell(in, out asset.Id, amountIn *mathkernel.Balance, poolType *asset.PoolType) (*Set, TradeResult, error) {
	idx := s.dispatch(in, out, poolType)
	if idx < 0 {
		return nil, TradeResult{}, ErrNotSupported
	}
	next, result, err := s.sims[idx].SimulateSell(in, out, amountIn)
	if err != nil {
		return nil, TradeResult{}, err
	}
	return s.replacing(idx, next), result, nil
}

// Buy dispatches a buy symmetrically to Sell.
func (s *Set) Buy(in, out asset.Id, amountOut *mathkernel.Balance, poolType *asset.PoolType) (*Set, TradeResult, error) {
	idx := s.dispatch(in, out, poolType)
	if idx < 0 {
		return nil, TradeResult{}, ErrNotSupported
	}
	next, result, err := s.sims[idx].SimulateBuy(in, out, amountOut)
	if err != nil {
		return nil, TradeResult{}, err
	}
	return s.replacing(idx, next), result, nil
}

// CanTrade reports whether any registered simulator supports (in, out).
func (s *Set) CanTrade(in, out asset.Id) (asset.PoolType, bool) {
	idx := s.dispatch(in, out, nil)
	if idx < 0 {
		return 0, false
	}
	return s.sims[idx].PoolType(), true
}

// SpotPrice returns the spot price from the first simulator supporting
// (in, out).
func (s *Set) SpotPrice(in, out asset.Id) (asset.Ratio, error) {
	idx := s.dispatch(in, out, nil)
	if idx < 0 {
		return asset.Ratio{}, ErrNotSupported
	}
	return s.sims[idx].SpotPrice(in, out)
}

// replacing returns a new Set whose slice header is freshly allocated but
// whose entries (other than idx) are the same Simulator values — the
// positional-immutability contract the compositor requires.
func (s *Set) replacing(idx int, next Simulator) *Set {
	out := make([]Simulator, len(s.sims))
	copy(out, s.sims)
	out[idx] = next
	return &Set{sims: out}
}
