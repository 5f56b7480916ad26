// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sim

import (
	"math/big"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/lbp"
	"github.com/luxfi/icedex/mathkernel"
)

// LBPSim snapshots a single LBP pool for simulation at a fixed block — the
// weight curve is block-dependent, so the block a snapshot was taken at
// travels with it rather than being read live at simulate time, keeping
// SimulateSell/SimulateBuy pure (spec.md §4.4's snapshot->snapshot
// transition contract).
type LBPSim struct {
	pool  *lbp.Pool
	block uint64
}

// SnapshotLBP captures a simulator snapshot of pool as of block.
func SnapshotLBP(pool *lbp.Pool, block uint64) *LBPSim {
	return &LBPSim{pool: pool, block: block}
}

func (l *LBPSim) PoolType() asset.PoolType { return asset.PoolTypeLBP }

func (l *LBPSim) GetPoolAssets() []asset.Id {
	return []asset.Id{l.pool.AssetA, l.pool.AssetB}
}

func (l *LBPSim) CanTrade(in, out asset.Id) bool {
	pair := map[asset.Id]bool{l.pool.AssetA: true, l.pool.AssetB: true}
	if in == out || !pair[in] || !pair[out] {
		return false
	}
	return l.block >= l.pool.Start && l.block <= l.pool.End
}

func (l *LBPSim) weights(in asset.Id) (wIn, wOut uint64, reserveIn, reserveOut *big.Int) {
	weightA, weightB := l.pool.WeightAt(l.block)
	if in == l.pool.AssetA {
		return weightA, weightB, l.pool.ReserveA.ToBig(), l.pool.ReserveB.ToBig()
	}
	return weightB, weightA, l.pool.ReserveB.ToBig(), l.pool.ReserveA.ToBig()
}

func (l *LBPSim) currentFeeBps() uint32 {
	if l.pool.CollectedFees.Lt(l.pool.RepayTarget) {
		return l.pool.RepayFeeBps
	}
	return l.pool.FeeBps
}

func (l *LBPSim) SimulateSell(in, out asset.Id, amountIn *mathkernel.Balance) (Simulator, TradeResult, error) {
	if !l.CanTrade(in, out) {
		return nil, TradeResult{}, ErrNotSupported
	}
	wIn, wOut, reserveIn, reserveOut := l.weights(in)

	feeBps := l.currentFeeBps()
	amountInAfterFee := new(big.Int).Mul(amountIn.ToBig(), big.NewInt(int64(10000-feeBps)))
	amountInAfterFee.Quo(amountInAfterFee, big.NewInt(10000))
	fee := new(big.Int).Sub(amountIn.ToBig(), amountInAfterFee)

	amountOutBig := lbp.WeightedOutGivenIn(reserveIn, reserveOut, amountInAfterFee, wIn, wOut)
	outBal, err := mathkernel.BalanceFromBig(amountOutBig)
	if err != nil {
		return nil, TradeResult{}, err
	}

	next := *l.pool
	feeBal, _ := mathkernel.BalanceFromBig(fee)
	next.CollectedFees = new(mathkernel.Balance).Add(l.pool.CollectedFees, feeBal)

	newIn := new(big.Int).Add(reserveIn, amountIn.ToBig())
	newOut := new(big.Int).Sub(reserveOut, amountOutBig)
	newInBal, _ := mathkernel.BalanceFromBig(newIn)
	newOutBal, _ := mathkernel.BalanceFromBig(newOut)
	if in == l.pool.AssetA {
		next.ReserveA, next.ReserveB = newInBal, newOutBal
	} else {
		next.ReserveB, next.ReserveA = newInBal, newOutBal
	}

	return &LBPSim{pool: &next, block: l.block}, TradeResult{AmountIn: amountIn, AmountOut: outBal}, nil
}

func (l *LBPSim) SimulateBuy(in, out asset.Id, amountOut *mathkernel.Balance) (Simulator, TradeResult, error) {
	if !l.CanTrade(in, out) {
		return nil, TradeResult{}, ErrNotSupported
	}
	wIn, wOut, reserveIn, reserveOut := l.weights(in)

	amountInAfterFee := lbp.WeightedInGivenOut(reserveIn, reserveOut, amountOut.ToBig(), wIn, wOut)

	feeBps := l.currentFeeBps()
	amountInBig := new(big.Int).Mul(amountInAfterFee, big.NewInt(10000))
	amountInBig.Quo(amountInBig, big.NewInt(int64(10000-feeBps)))
	fee := new(big.Int).Sub(amountInBig, amountInAfterFee)

	inBal, err := mathkernel.BalanceFromBig(amountInBig)
	if err != nil {
		return nil, TradeResult{}, err
	}

	next := *l.pool
	feeBal, _ := mathkernel.BalanceFromBig(fee)
	next.CollectedFees = new(mathkernel.Balance).Add(l.pool.CollectedFees, feeBal)

	newIn := new(big.Int).Add(reserveIn, amountInBig)
	newOut := new(big.Int).Sub(reserveOut, amountOut.ToBig())
	newInBal, _ := mathkernel.BalanceFromBig(newIn)
	newOutBal, _ := mathkernel.BalanceFromBig(newOut)
	if in == l.pool.AssetA {
		next.ReserveA, next.ReserveB = newInBal, newOutBal
	} else {
		next.ReserveB, next.ReserveA = newInBal, newOutBal
	}

	return &LBPSim{pool: &next, block: l.block}, TradeResult{AmountIn: inBal, AmountOut: amountOut}, nil
}

func (l *LBPSim) SpotPrice(in, out asset.Id) (asset.Ratio, error) {
	wIn, wOut, reserveIn, reserveOut := l.weights(in)
	// weighted spot price = (reserve_out / weight_out) / (reserve_in / weight_in)
	num := new(big.Int).Mul(reserveOut, big.NewInt(int64(wIn)))
	den := new(big.Int).Mul(reserveIn, big.NewInt(int64(wOut)))
	return asset.NewRatio(num, den)
}

var _ Simulator = (*LBPSim)(nil)
