// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/lbp"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/omnipool"
	"github.com/luxfi/icedex/stableswap"
	"github.com/luxfi/icedex/txn"
	"github.com/luxfi/icedex/xyk"
)

// XYKExecutor adapts xyk.Registry to PoolExecutor; it delegates to the
// registry's own already-validated Sell/Buy rather than reimplementing
// the constant-product math.
type XYKExecutor struct{ Registry *xyk.Registry }

func (x *XYKExecutor) PoolType() asset.PoolType { return asset.PoolTypeXYK }

func (x *XYKExecutor) CanTrade(in, out asset.Id) bool {
	_, err := x.Registry.Pool(in, out)
	return err == nil
}

func (x *XYKExecutor) ExecuteSell(who ledger.AccountId, in, out asset.Id, amountIn, minOut *mathkernel.Balance) (*mathkernel.Balance, error) {
	return x.Registry.Sell(who, in, out, amountIn, minOut)
}

func (x *XYKExecutor) ExecuteBuy(who ledger.AccountId, in, out asset.Id, amountOut, maxIn *mathkernel.Balance) (*mathkernel.Balance, error) {
	return x.Registry.Buy(who, in, out, amountOut, maxIn)
}

// Checkpoint delegates to the wrapped registry, so Router's participant
// list can checkpoint every distinct pool store reachable through it.
func (x *XYKExecutor) Checkpoint() txn.Restorer { return x.Registry.Checkpoint() }

var _ PoolExecutor = (*XYKExecutor)(nil)
var _ txn.Checkpointer = (*XYKExecutor)(nil)

// OmnipoolExecutor adapts a live omnipool.Pool to PoolExecutor.
type OmnipoolExecutor struct{ Pool *omnipool.Pool }

func (o *OmnipoolExecutor) PoolType() asset.PoolType { return asset.PoolTypeOmnipool }

func (o *OmnipoolExecutor) CanTrade(in, out asset.Id) bool {
	_, inErr := o.Pool.AssetState(in)
	_, outErr := o.Pool.AssetState(out)
	return in != out && inErr == nil && outErr == nil
}

func (o *OmnipoolExecutor) ExecuteSell(who ledger.AccountId, in, out asset.Id, amountIn, minOut *mathkernel.Balance) (*mathkernel.Balance, error) {
	return o.Pool.Sell(who, in, out, amountIn, minOut)
}

func (o *OmnipoolExecutor) ExecuteBuy(who ledger.AccountId, in, out asset.Id, amountOut, maxIn *mathkernel.Balance) (*mathkernel.Balance, error) {
	return o.Pool.Buy(who, in, out, amountOut, maxIn)
}

// Checkpoint delegates to the wrapped pool.
func (o *OmnipoolExecutor) Checkpoint() txn.Restorer { return o.Pool.Checkpoint() }

var _ PoolExecutor = (*OmnipoolExecutor)(nil)
var _ txn.Checkpointer = (*OmnipoolExecutor)(nil)

// LBPExecutor adapts lbp.Registry to PoolExecutor. LBP's weight curve is
// a function of the current block, so the adapter is handed a BlockNow
// accessor rather than a fixed block at construction time.
type LBPExecutor struct {
	Registry *lbp.Registry
	BlockNow func() uint64
}

func (l *LBPExecutor) PoolType() asset.PoolType { return asset.PoolTypeLBP }

func (l *LBPExecutor) CanTrade(in, out asset.Id) bool {
	_, err := l.Registry.Pool(in, out)
	return err == nil
}

func (l *LBPExecutor) ExecuteSell(who ledger.AccountId, in, out asset.Id, amountIn, minOut *mathkernel.Balance) (*mathkernel.Balance, error) {
	return l.Registry.Sell(who, in, out, amountIn, minOut, l.BlockNow())
}

func (l *LBPExecutor) ExecuteBuy(who ledger.AccountId, in, out asset.Id, amountOut, maxIn *mathkernel.Balance) (*mathkernel.Balance, error) {
	return l.Registry.Buy(who, in, out, amountOut, maxIn, l.BlockNow())
}

// Checkpoint delegates to the wrapped registry.
func (l *LBPExecutor) Checkpoint() txn.Restorer { return l.Registry.Checkpoint() }

var _ PoolExecutor = (*LBPExecutor)(nil)
var _ txn.Checkpointer = (*LBPExecutor)(nil)

// StableswapExecutor adapts a single stableswap.Pool (by its ID) to
// PoolExecutor, mirroring sim.StableswapSim's one-pool-per-adapter shape.
type StableswapExecutor struct {
	Registry *stableswap.Registry
	PoolID   uint32
}

func (s *StableswapExecutor) PoolType() asset.PoolType { return asset.PoolTypeStableswap }

func (s *StableswapExecutor) CanTrade(in, out asset.Id) bool {
	pool, err := s.Registry.Pool(s.PoolID)
	if err != nil {
		return false
	}
	return in != out && pool.IndexOf(in) >= 0 && pool.IndexOf(out) >= 0
}

func (s *StableswapExecutor) ExecuteSell(who ledger.AccountId, in, out asset.Id, amountIn, minOut *mathkernel.Balance) (*mathkernel.Balance, error) {
	return s.Registry.Sell(who, s.PoolID, in, out, amountIn, minOut)
}

// ExecuteBuy is unsupported: stableswap.Registry has no exact-output Buy
// path yet, the same documented gap as its sim.Simulator adapter's
// SimulateBuy.
func (s *StableswapExecutor) ExecuteBuy(ledger.AccountId, asset.Id, asset.Id, *mathkernel.Balance, *mathkernel.Balance) (*mathkernel.Balance, error) {
	return nil, ErrUnsupportedBuy
}

// Checkpoint delegates to the wrapped registry.
func (s *StableswapExecutor) Checkpoint() txn.Restorer { return s.Registry.Checkpoint() }

var _ PoolExecutor = (*StableswapExecutor)(nil)
var _ txn.Checkpointer = (*StableswapExecutor)(nil)
