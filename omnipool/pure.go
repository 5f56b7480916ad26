// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package omnipool

import (
	"math/big"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/mathkernel"
)

// SimResult is the outcome of a pure (no-ledger, no-lock) trade
// simulation: the two asset legs' post-trade state and the HUB fee
// routed to NATIVE, if any. The sim package's OmnipoolSnapshot drives
// these directly so the solver can explore candidate trades without
// touching a live Pool's mutex or ledger.
type SimResult struct {
	StateIn, StateOut *AssetReserveState
	AmountOut         *mathkernel.Balance
	FeeToNative       *mathkernel.Balance
}

// SimulateSellAssetForAsset runs the general two-leg sell math against
// detached AssetReserveState copies, with no ledger or lock interaction.
// Pool.sellAssetForAssetLocked and the sim package's snapshot dispatch
// both reduce to this.
func SimulateSellAssetForAsset(stateIn, stateOut *AssetReserveState, amountIn *mathkernel.Balance, fees FeePolicy) (*SimResult, error) {
	if !stateIn.Tradable.Has(CanSell) || !stateOut.Tradable.Has(CanBuy) {
		return nil, ErrNotAllowed
	}
	in := amountIn.ToBig()
	if err := checkMaxInRatioPure(stateIn, in, fees.MaxInRatio); err != nil {
		return nil, err
	}

	newReserveIn, newHubIn, deltaHub := hubLegOut(stateIn.Reserve.ToBig(), stateIn.HubReserve.ToBig(), in)
	netHub, feeHub := splitHubFee(deltaHub, stateOut.HubReserve.ToBig(), fees.ProtocolFeeBps, fees.MaxSlipFeeBps)
	newReserveOut, newHubOut, deltaOutGross := assetLegOut(stateOut.Reserve.ToBig(), stateOut.HubReserve.ToBig(), netHub)

	if err := checkMaxOutRatioPure(stateOut, deltaOutGross, fees.MaxOutRatio); err != nil {
		return nil, err
	}
	amountOut, feeOut := assetFee(deltaOutGross, fees.AssetFeeBps)

	nextIn := stateIn.clone()
	nextIn.Reserve, _ = mathkernel.BalanceFromBig(newReserveIn)
	nextIn.HubReserve, _ = mathkernel.BalanceFromBig(newHubIn)

	nextOut := stateOut.clone()
	nextOut.Reserve, _ = mathkernel.BalanceFromBig(new(big.Int).Add(newReserveOut, feeOut))
	nextOut.HubReserve, _ = mathkernel.BalanceFromBig(newHubOut)

	outBal, err := mathkernel.BalanceFromBig(amountOut)
	if err != nil {
		return nil, err
	}
	feeBal, _ := mathkernel.BalanceFromBig(feeHub)

	return &SimResult{StateIn: nextIn, StateOut: nextOut, AmountOut: outBal, FeeToNative: feeBal}, nil
}

func checkMaxInRatioPure(state *AssetReserveState, amountIn *big.Int, maxInRatio uint64) error {
	if maxInRatio == 0 {
		return nil
	}
	limit := new(big.Int).Quo(state.Reserve.ToBig(), big.NewInt(int64(maxInRatio)))
	if amountIn.Cmp(limit) > 0 {
		return ErrMaxInRatioExceeded
	}
	return nil
}

func checkMaxOutRatioPure(state *AssetReserveState, amountOut *big.Int, maxOutRatio uint64) error {
	if maxOutRatio == 0 {
		return nil
	}
	limit := new(big.Int).Quo(state.Reserve.ToBig(), big.NewInt(int64(maxOutRatio)))
	if amountOut.Cmp(limit) > 0 {
		return ErrMaxOutRatioExceeded
	}
	return nil
}

// SpotPriceOf returns (hub_reserve/reserve) for a detached
// AssetReserveState, the same ratio Pool.SpotPrice derives per asset.
func SpotPriceOf(state *AssetReserveState) (asset.Ratio, error) {
	return asset.NewRatio(state.HubReserve.ToBig(), state.Reserve.ToBig())
}

// CloneState returns a defensive copy of state, exported for the sim
// package's snapshot bookkeeping.
func CloneState(state *AssetReserveState) *AssetReserveState {
	return state.clone()
}
