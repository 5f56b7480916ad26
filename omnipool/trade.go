// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package omnipool

import (
	"math/big"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
)

// Sell executes a sell of amountIn of assetIn for assetOut, crediting
// who's free balance with at least minOut of assetOut or failing
// atomically. assetIn == asset.Hub triggers the hub-asset-sell branch
// spec.md §4.2 calls out separately; ordinary two-leg routing handles
// every other pair, including assetOut == asset.Hub by the symmetric
// construction.
func (p *Pool) Sell(who ledger.AccountId, assetIn, assetOut asset.Id, amountIn, minOut *mathkernel.Balance) (*mathkernel.Balance, error) {
	logger.Debug("omnipool: sell", "asset_in", assetIn, "asset_out", assetOut, "amount_in", amountIn.ToBig().String())
	if assetIn == assetOut {
		return nil, ErrSameAssetTradeNotAllowed
	}
	if amountIn.IsZero() {
		return nil, ErrZeroAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if amountIn.Lt(p.fees.MinTradeAmount) {
		return nil, ErrInsufficientTradingAmount
	}

	var amountOut *big.Int
	var err error
	switch {
	case assetIn == asset.Hub:
		amountOut, err = p.sellHubForAssetLocked(assetOut, amountIn.ToBig())
	case assetOut == asset.Hub:
		amountOut, err = p.sellAssetForHubLocked(assetIn, amountIn.ToBig())
	default:
		amountOut, err = p.sellAssetForAssetLocked(assetIn, assetOut, amountIn.ToBig())
	}
	if err != nil {
		return nil, err
	}

	outBal, err := mathkernel.BalanceFromBig(amountOut)
	if err != nil {
		return nil, err
	}
	if outBal.Lt(minOut) {
		return nil, ErrBuyLimitNotReached
	}

	if err := p.settleTrade(who, assetIn, assetOut, amountIn, outBal); err != nil {
		return nil, err
	}
	p.emit(SellExecuted{Who: who, AssetIn: assetIn, AssetOut: assetOut, AmountIn: amountIn, AmountOut: outBal})
	return outBal, nil
}

// Buy executes a buy of exactly amountOut of assetOut, paid for in
// assetIn, failing if the required input exceeds maxIn.
func (p *Pool) Buy(who ledger.AccountId, assetIn, assetOut asset.Id, amountOut, maxIn *mathkernel.Balance) (*mathkernel.Balance, error) {
	logger.Debug("omnipool: buy", "asset_in", assetIn, "asset_out", assetOut, "amount_out", amountOut.ToBig().String())
	if assetIn == assetOut {
		return nil, ErrSameAssetTradeNotAllowed
	}
	if amountOut.IsZero() {
		return nil, ErrZeroAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var amountIn *big.Int
	var err error
	switch {
	case assetIn == asset.Hub:
		amountIn, err = p.buyAssetWithHubLocked(assetOut, amountOut.ToBig())
	case assetOut == asset.Hub:
		amountIn, err = p.buyHubWithAssetLocked(assetIn, amountOut.ToBig())
	default:
		amountIn, err = p.buyAssetForAssetLocked(assetIn, assetOut, amountOut.ToBig())
	}
	if err != nil {
		return nil, err
	}

	inBal, err := mathkernel.BalanceFromBig(amountIn)
	if err != nil {
		return nil, err
	}
	if inBal.Lt(p.fees.MinTradeAmount) {
		return nil, ErrInsufficientTradingAmount
	}
	if inBal.Gt(maxIn) {
		return nil, ErrSellLimitExceeded
	}

	if err := p.settleTrade(who, assetIn, assetOut, inBal, amountOut); err != nil {
		return nil, err
	}
	p.emit(BuyExecuted{Who: who, AssetIn: assetIn, AssetOut: assetOut, AmountIn: inBal, AmountOut: amountOut})
	return inBal, nil
}

// settleTrade moves the real (non-HUB) legs of a trade across the ledger;
// HUB itself never touches the ledger, as it is internal accounting only.
func (p *Pool) settleTrade(who ledger.AccountId, assetIn, assetOut asset.Id, amountIn, amountOut *mathkernel.Balance) error {
	if assetIn != asset.Hub {
		if err := p.ledger.Transfer(who, p.vault, assetIn, amountIn); err != nil {
			return err
		}
	}
	if assetOut != asset.Hub {
		if err := p.ledger.Transfer(p.vault, who, assetOut, amountOut); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) requireTradable(a asset.Id, flag Tradable) (*AssetReserveState, error) {
	state, ok := p.assets[a]
	if !ok {
		return nil, ErrAssetNotFound
	}
	if !state.Tradable.Has(flag) {
		return nil, ErrNotAllowed
	}
	return state, nil
}

func (p *Pool) checkMaxInRatio(state *AssetReserveState, amountIn *big.Int) error {
	limit := new(big.Int).Quo(state.Reserve.ToBig(), big.NewInt(int64(p.fees.MaxInRatio)))
	if amountIn.Cmp(limit) > 0 {
		return ErrMaxInRatioExceeded
	}
	return nil
}

func (p *Pool) checkMaxOutRatio(state *AssetReserveState, amountOut *big.Int) error {
	limit := new(big.Int).Quo(state.Reserve.ToBig(), big.NewInt(int64(p.fees.MaxOutRatio)))
	if amountOut.Cmp(limit) > 0 {
		return ErrMaxOutRatioExceeded
	}
	return nil
}

// sellAssetForAssetLocked is the general two-leg sell: assetIn's reserve
// absorbs amountIn and gives up delta_hub; protocol and slip fee divert a
// slice of delta_hub to NATIVE; the remainder flows into assetOut's
// hub_reserve, releasing delta_out_gross of which the asset fee is
// withheld.
func (p *Pool) sellAssetForAssetLocked(assetIn, assetOut asset.Id, amountIn *big.Int) (*big.Int, error) {
	stateIn, ok := p.assets[assetIn]
	if !ok {
		return nil, ErrAssetNotFound
	}
	stateOut, ok := p.assets[assetOut]
	if !ok {
		return nil, ErrAssetNotFound
	}
	amountInBal, err := mathkernel.BalanceFromBig(amountIn)
	if err != nil {
		return nil, err
	}

	result, err := SimulateSellAssetForAsset(stateIn, stateOut, amountInBal, p.fees)
	if err != nil {
		return nil, err
	}

	p.assets[assetIn] = result.StateIn
	p.assets[assetOut] = result.StateOut
	p.routeFeeToNative(result.FeeToNative.ToBig())

	if err := p.checkCapLocked(assetOut); err != nil {
		return nil, err
	}
	return result.AmountOut.ToBig(), nil
}

// sellHubForAssetLocked is the in==HUB branch: the trader pays HUB
// directly, so there is no asset_in leg — only the fee split and the
// asset_out leg apply.
func (p *Pool) sellHubForAssetLocked(assetOut asset.Id, amountIn *big.Int) (*big.Int, error) {
	stateOut, err := p.requireTradable(assetOut, CanBuy)
	if err != nil {
		return nil, err
	}

	netHub, feeHub := splitHubFee(amountIn, stateOut.HubReserve.ToBig(), p.fees.ProtocolFeeBps, p.fees.MaxSlipFeeBps)
	newReserveOut, newHubOut, deltaOutGross := assetLegOut(stateOut.Reserve.ToBig(), stateOut.HubReserve.ToBig(), netHub)

	if err := p.checkMaxOutRatio(stateOut, deltaOutGross); err != nil {
		return nil, err
	}
	amountOut, feeOut := assetFee(deltaOutGross, p.fees.AssetFeeBps)

	stateOut.Reserve, _ = mathkernel.BalanceFromBig(new(big.Int).Add(newReserveOut, feeOut))
	stateOut.HubReserve, _ = mathkernel.BalanceFromBig(newHubOut)

	p.routeFeeToNative(feeHub)

	if err := p.checkCapLocked(assetOut); err != nil {
		return nil, err
	}
	return amountOut, nil
}

// sellAssetForHubLocked is the out==HUB branch: only the asset_in leg
// applies, and the trader receives HUB net of the protocol/slip fee
// directly (no asset fee — the output is the accounting unit, not a
// listed asset).
func (p *Pool) sellAssetForHubLocked(assetIn asset.Id, amountIn *big.Int) (*big.Int, error) {
	stateIn, err := p.requireTradable(assetIn, CanSell)
	if err != nil {
		return nil, err
	}
	if err := p.checkMaxInRatio(stateIn, amountIn); err != nil {
		return nil, err
	}

	newReserveIn, newHubIn, deltaHub := hubLegOut(stateIn.Reserve.ToBig(), stateIn.HubReserve.ToBig(), amountIn)
	netHub, feeHub := splitHubFee(deltaHub, stateIn.HubReserve.ToBig(), p.fees.ProtocolFeeBps, p.fees.MaxSlipFeeBps)

	stateIn.Reserve, _ = mathkernel.BalanceFromBig(newReserveIn)
	stateIn.HubReserve, _ = mathkernel.BalanceFromBig(newHubIn)

	p.routeFeeToNative(feeHub)
	return netHub, nil
}

// buyAssetForAssetLocked inverts sellAssetForAssetLocked: given the exact
// amountOut the trader demands, compute the amountIn required.
func (p *Pool) buyAssetForAssetLocked(assetIn, assetOut asset.Id, amountOut *big.Int) (*big.Int, error) {
	stateIn, err := p.requireTradable(assetIn, CanSell)
	if err != nil {
		return nil, err
	}
	stateOut, err := p.requireTradable(assetOut, CanBuy)
	if err != nil {
		return nil, err
	}
	if err := p.checkMaxOutRatio(stateOut, amountOut); err != nil {
		return nil, err
	}

	deltaOutGross := grossUpForFee(amountOut, p.fees.AssetFeeBps)
	newReserveOut, newHubOut, netHub := assetLegIn(stateOut.Reserve.ToBig(), stateOut.HubReserve.ToBig(), deltaOutGross)

	deltaHub := grossUpHubFee(netHub, p.fees.ProtocolFeeBps)
	newReserveIn, newHubIn, amountIn := hubLegIn(stateIn.Reserve.ToBig(), stateIn.HubReserve.ToBig(), deltaHub)

	if err := p.checkMaxInRatio(stateIn, amountIn); err != nil {
		return nil, err
	}

	feeOut := new(big.Int).Sub(deltaOutGross, amountOut)
	feeHub := new(big.Int).Sub(deltaHub, netHub)

	stateIn.Reserve, _ = mathkernel.BalanceFromBig(newReserveIn)
	stateIn.HubReserve, _ = mathkernel.BalanceFromBig(newHubIn)
	stateOut.Reserve, _ = mathkernel.BalanceFromBig(new(big.Int).Add(newReserveOut, feeOut))
	stateOut.HubReserve, _ = mathkernel.BalanceFromBig(newHubOut)

	p.routeFeeToNative(feeHub)

	if err := p.checkCapLocked(assetOut); err != nil {
		return nil, err
	}
	return amountIn, nil
}

func (p *Pool) buyAssetWithHubLocked(assetOut asset.Id, amountOut *big.Int) (*big.Int, error) {
	stateOut, err := p.requireTradable(assetOut, CanBuy)
	if err != nil {
		return nil, err
	}
	if err := p.checkMaxOutRatio(stateOut, amountOut); err != nil {
		return nil, err
	}

	deltaOutGross := grossUpForFee(amountOut, p.fees.AssetFeeBps)
	newReserveOut, newHubOut, netHub := assetLegIn(stateOut.Reserve.ToBig(), stateOut.HubReserve.ToBig(), deltaOutGross)
	amountIn := grossUpHubFee(netHub, p.fees.ProtocolFeeBps)
	feeOut := new(big.Int).Sub(deltaOutGross, amountOut)
	feeHub := new(big.Int).Sub(amountIn, netHub)

	stateOut.Reserve, _ = mathkernel.BalanceFromBig(new(big.Int).Add(newReserveOut, feeOut))
	stateOut.HubReserve, _ = mathkernel.BalanceFromBig(newHubOut)

	p.routeFeeToNative(feeHub)

	if err := p.checkCapLocked(assetOut); err != nil {
		return nil, err
	}
	return amountIn, nil
}

func (p *Pool) buyHubWithAssetLocked(assetIn asset.Id, amountOut *big.Int) (*big.Int, error) {
	stateIn, err := p.requireTradable(assetIn, CanSell)
	if err != nil {
		return nil, err
	}

	deltaHub := grossUpHubFee(amountOut, p.fees.ProtocolFeeBps)
	newReserveIn, newHubIn, amountIn := hubLegIn(stateIn.Reserve.ToBig(), stateIn.HubReserve.ToBig(), deltaHub)
	if err := p.checkMaxInRatio(stateIn, amountIn); err != nil {
		return nil, err
	}
	feeHub := new(big.Int).Sub(deltaHub, amountOut)

	stateIn.Reserve, _ = mathkernel.BalanceFromBig(newReserveIn)
	stateIn.HubReserve, _ = mathkernel.BalanceFromBig(newHubIn)

	p.routeFeeToNative(feeHub)
	return amountIn, nil
}

// grossUpHubFee inverts splitHubFee's protocol-fee component only (the
// slip-fee component is impact-dependent and left at its floor when
// inverting a buy, since the exact forward impact isn't known until the
// amountIn is computed — a deliberate simplification, not a faithful
// bit-for-bit inverse of the sell path).
func grossUpHubFee(netHub *big.Int, protocolFeeBps uint32) *big.Int {
	if protocolFeeBps == 0 {
		return new(big.Int).Set(netHub)
	}
	num := new(big.Int).Mul(netHub, big.NewInt(10000))
	return CeilDiv(num, big.NewInt(int64(10000-protocolFeeBps)))
}

// routeFeeToNative credits protocol/slip fee HUB to the NATIVE asset's
// hub_reserve, keeping sum(hub_reserve_i) constant across the trade
// (spec.md §4.2's "hdx.hub_reserve += fee" clause). No-op if NATIVE isn't
// listed (test fixtures that only seed two assets).
func (p *Pool) routeFeeToNative(feeHub *big.Int) {
	if feeHub.Sign() == 0 {
		return
	}
	native, ok := p.assets[asset.Native]
	if !ok {
		return
	}
	native.HubReserve, _ = mathkernel.BalanceFromBig(new(big.Int).Add(native.HubReserve.ToBig(), feeHub))
	p.emit(HubRoutedToNative{Amount: mathkernel.MustBalanceFromBig(feeHub)})
}
