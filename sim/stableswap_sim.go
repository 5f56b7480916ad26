// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sim

import (
	"math/big"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/stableswap"
)

// StableswapSim snapshots a single N-asset Stableswap pool for simulation.
// It prices a trade through stableswap.SimulateSellPure, the same
// lock-free, ledger-free math Registry.Sell uses, and returns a copy of
// the snapshot carrying the new balances.
type StableswapSim struct {
	pool *stableswap.Pool
}

func SnapshotStableswap(pool *stableswap.Pool) *StableswapSim {
	return &StableswapSim{pool: pool}
}

func (s *StableswapSim) PoolType() asset.PoolType { return asset.PoolTypeStableswap }

func (s *StableswapSim) GetPoolAssets() []asset.Id {
	return append([]asset.Id(nil), s.pool.Assets...)
}

func (s *StableswapSim) CanTrade(in, out asset.Id) bool {
	return in != out && s.pool.IndexOf(in) >= 0 && s.pool.IndexOf(out) >= 0
}

func (s *StableswapSim) SimulateSell(in, out asset.Id, amountIn *mathkernel.Balance) (Simulator, TradeResult, error) {
	if !s.CanTrade(in, out) {
		return nil, TradeResult{}, ErrNotSupported
	}
	amountOut, newBalances, err := stableswap.SimulateSellPure(s.pool, in, out, amountIn)
	if err != nil {
		return nil, TradeResult{}, err
	}
	nextPool := *s.pool
	nextPool.Balances = newBalances
	return &StableswapSim{pool: &nextPool}, TradeResult{AmountIn: amountIn, AmountOut: amountOut}, nil
}

// SimulateBuy is not supported: Stableswap's invertible solve (exact-out
// given in) is a documented gap, same as Omnipool's — the solver only
// issues ExactIn legs through the compositor today.
func (s *StableswapSim) SimulateBuy(in, out asset.Id, amountOut *mathkernel.Balance) (Simulator, TradeResult, error) {
	return nil, TradeResult{}, ErrNotSupported
}

func (s *StableswapSim) SpotPrice(in, out asset.Id) (asset.Ratio, error) {
	iIdx, jIdx := s.pool.IndexOf(in), s.pool.IndexOf(out)
	if iIdx < 0 || jIdx < 0 {
		return asset.Ratio{}, ErrNotSupported
	}
	// Near the invariant's balanced point the marginal price of a
	// Stableswap pool is close to 1:1; a tiny probe trade gives a usable
	// spot-price estimate without needing the invariant's derivative.
	probe := mathkernel.NewBalance(1)
	amountOut, _, err := stableswap.SimulateSellPure(s.pool, in, out, probe)
	if err != nil {
		return asset.Ratio{}, err
	}
	return asset.NewRatio(amountOut.ToBig(), big.NewInt(1))
}

var _ Simulator = (*StableswapSim)(nil)
