// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sim

import (
	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/omnipool"
)

// OmnipoolSim is an immutable snapshot of an Omnipool's per-asset reserve
// states, driven through omnipool's pure (no-ledger, no-lock) trade math
// so the solver can explore candidate Omnipool trades without holding the
// live Pool's mutex.
type OmnipoolSim struct {
	assets map[asset.Id]*omnipool.AssetReserveState
	fees   omnipool.FeePolicy
}

// SnapshotOmnipool captures a simulator snapshot from a live pool's
// current per-asset states, the shape spec.md §4.4's snapshot() names.
func SnapshotOmnipool(states map[asset.Id]*omnipool.AssetReserveState, fees omnipool.FeePolicy) *OmnipoolSim {
	cp := make(map[asset.Id]*omnipool.AssetReserveState, len(states))
	for id, s := range states {
		cp[id] = omnipool.CloneState(s)
	}
	return &OmnipoolSim{assets: cp, fees: fees}
}

func (o *OmnipoolSim) PoolType() asset.PoolType { return asset.PoolTypeOmnipool }

func (o *OmnipoolSim) GetPoolAssets() []asset.Id {
	out := make([]asset.Id, 0, len(o.assets))
	for id := range o.assets {
		out = append(out, id)
	}
	return out
}

func (o *OmnipoolSim) CanTrade(in, out asset.Id) bool {
	if in == out {
		return false
	}
	sIn, okIn := o.assets[in]
	sOut, okOut := o.assets[out]
	if in != asset.Hub && (!okIn || !sIn.Tradable.Has(omnipool.CanSell)) {
		return false
	}
	if out != asset.Hub && (!okOut || !sOut.Tradable.Has(omnipool.CanBuy)) {
		return false
	}
	return in == asset.Hub || out == asset.Hub || (okIn && okOut)
}

func (o *OmnipoolSim) clone() *OmnipoolSim {
	cp := make(map[asset.Id]*omnipool.AssetReserveState, len(o.assets))
	for id, s := range o.assets {
		cp[id] = s
	}
	return &OmnipoolSim{assets: cp, fees: o.fees}
}

// SimulateSell supports the general asset-for-asset leg only; a leg with
// HUB on either side returns ErrNotSupported, since within this snapshot
// HUB carries no reserve state of its own.
func (o *OmnipoolSim) SimulateSell(in, out asset.Id, amountIn *mathkernel.Balance) (Simulator, TradeResult, error) {
	if !o.CanTrade(in, out) {
		return nil, TradeResult{}, ErrNotSupported
	}
	stateIn, okIn := o.assets[in]
	stateOut, okOut := o.assets[out]
	if !okIn || !okOut {
		return nil, TradeResult{}, ErrNotSupported
	}

	result, err := omnipool.SimulateSellAssetForAsset(stateIn, stateOut, amountIn, o.fees)
	if err != nil {
		return nil, TradeResult{}, err
	}

	next := o.clone()
	next.assets[in] = result.StateIn
	next.assets[out] = result.StateOut
	if native, ok := next.assets[asset.Native]; ok && !result.FeeToNative.IsZero() {
		nativeNext := omnipool.CloneState(native)
		nativeNext.HubReserve = addBalance(native.HubReserve, result.FeeToNative)
		next.assets[asset.Native] = nativeNext
	}

	return next, TradeResult{AmountIn: amountIn, AmountOut: result.AmountOut}, nil
}

// SimulateBuy is not yet supported by the solver's candidate search (the
// solver only issues ExactIn legs through the compositor today); it
// returns ErrNotSupported rather than a half-correct inverse.
func (o *OmnipoolSim) SimulateBuy(in, out asset.Id, amountOut *mathkernel.Balance) (Simulator, TradeResult, error) {
	return nil, TradeResult{}, ErrNotSupported
}

func (o *OmnipoolSim) SpotPrice(in, out asset.Id) (asset.Ratio, error) {
	stateIn, okIn := o.assets[in]
	if !okIn {
		return asset.Ratio{}, omnipool.ErrAssetNotFound
	}
	priceIn, err := omnipool.SpotPriceOf(stateIn)
	if err != nil {
		return asset.Ratio{}, err
	}
	if out == asset.Hub {
		return priceIn, nil
	}
	stateOut, okOut := o.assets[out]
	if !okOut {
		return asset.Ratio{}, omnipool.ErrAssetNotFound
	}
	priceOut, err := omnipool.SpotPriceOf(stateOut)
	if err != nil {
		return asset.Ratio{}, err
	}
	return priceIn.Div(priceOut)
}

func addBalance(a, b *mathkernel.Balance) *mathkernel.Balance {
	return new(mathkernel.Balance).Add(a, b)
}

var _ Simulator = (*OmnipoolSim)(nil)
