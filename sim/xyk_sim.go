// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sim

import (
	"math/big"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/xyk"
)

// XYKSim snapshots a single XYK pool for simulation.
type XYKSim struct {
	state *xyk.PoolState
}

func SnapshotXYK(state *xyk.PoolState) *XYKSim {
	return &XYKSim{state: state}
}

func (x *XYKSim) PoolType() asset.PoolType { return asset.PoolTypeXYK }

func (x *XYKSim) GetPoolAssets() []asset.Id {
	return []asset.Id{x.state.AssetA, x.state.AssetB}
}

func (x *XYKSim) CanTrade(in, out asset.Id) bool {
	pair := map[asset.Id]bool{x.state.AssetA: true, x.state.AssetB: true}
	return in != out && pair[in] && pair[out]
}

func (x *XYKSim) reserves(in, out asset.Id) (*big.Int, *big.Int) {
	if in == x.state.AssetA {
		return x.state.ReserveA.ToBig(), x.state.ReserveB.ToBig()
	}
	return x.state.ReserveB.ToBig(), x.state.ReserveA.ToBig()
}

func (x *XYKSim) SimulateSell(in, out asset.Id, amountIn *mathkernel.Balance) (Simulator, TradeResult, error) {
	if !x.CanTrade(in, out) {
		return nil, TradeResult{}, ErrNotSupported
	}
	reserveIn, reserveOut := x.reserves(in, out)
	amountOut := xyk.SellOutGivenIn(reserveIn, reserveOut, amountIn.ToBig(), x.state.FeeBps)
	outBal, err := mathkernel.BalanceFromBig(amountOut)
	if err != nil {
		return nil, TradeResult{}, err
	}

	next := *x.state
	newIn := new(big.Int).Add(reserveIn, amountIn.ToBig())
	newOut := new(big.Int).Sub(reserveOut, amountOut)
	newInBal, _ := mathkernel.BalanceFromBig(newIn)
	newOutBal, _ := mathkernel.BalanceFromBig(newOut)
	if in == x.state.AssetA {
		next.ReserveA, next.ReserveB = newInBal, newOutBal
	} else {
		next.ReserveB, next.ReserveA = newInBal, newOutBal
	}

	return &XYKSim{state: &next}, TradeResult{AmountIn: amountIn, AmountOut: outBal}, nil
}

func (x *XYKSim) SimulateBuy(in, out asset.Id, amountOut *mathkernel.Balance) (Simulator, TradeResult, error) {
	if !x.CanTrade(in, out) {
		return nil, TradeResult{}, ErrNotSupported
	}
	reserveIn, reserveOut := x.reserves(in, out)
	amountIn := xyk.BuyInGivenOut(reserveIn, reserveOut, amountOut.ToBig(), x.state.FeeBps)
	inBal, err := mathkernel.BalanceFromBig(amountIn)
	if err != nil {
		return nil, TradeResult{}, err
	}

	next := *x.state
	newIn := new(big.Int).Add(reserveIn, amountIn)
	newOut := new(big.Int).Sub(reserveOut, amountOut.ToBig())
	newInBal, _ := mathkernel.BalanceFromBig(newIn)
	newOutBal, _ := mathkernel.BalanceFromBig(newOut)
	if in == x.state.AssetA {
		next.ReserveA, next.ReserveB = newInBal, newOutBal
	} else {
		next.ReserveB, next.ReserveA = newInBal, newOutBal
	}

	return &XYKSim{state: &next}, TradeResult{AmountIn: inBal, AmountOut: amountOut}, nil
}

func (x *XYKSim) SpotPrice(in, out asset.Id) (asset.Ratio, error) {
	reserveIn, reserveOut := x.reserves(in, out)
	return asset.NewRatio(reserveOut, reserveIn)
}

var _ Simulator = (*XYKSim)(nil)
