// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package omnipool

import (
	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
)

// Event is the sealed set of facts the pool reports after a mutating
// call, mirroring the teacher's append-only event-log convention
// (dex/pool_manager.go emits a typed event per state transition rather
// than returning only an error).
type Event interface{ isEvent() }

type TokenAdded struct {
	Asset   asset.Id
	Owner   ledger.AccountId
	Reserve *mathkernel.Balance
	Hub     *mathkernel.Balance
}

type TradableStateUpdated struct {
	Asset asset.Id
	State Tradable
}

type LiquidityAdded struct {
	Who        ledger.AccountId
	Asset      asset.Id
	Amount     *mathkernel.Balance
	SharesMint *mathkernel.Balance
	PositionID uint64
}

type LiquidityRemoved struct {
	Who        ledger.AccountId
	PositionID uint64
	SharesBurnt *mathkernel.Balance
	AmountOut   *mathkernel.Balance
	HubOut      *mathkernel.Balance
}

type SellExecuted struct {
	Who       ledger.AccountId
	AssetIn   asset.Id
	AssetOut  asset.Id
	AmountIn  *mathkernel.Balance
	AmountOut *mathkernel.Balance
}

type BuyExecuted struct {
	Who       ledger.AccountId
	AssetIn   asset.Id
	AssetOut  asset.Id
	AmountIn  *mathkernel.Balance
	AmountOut *mathkernel.Balance
}

// HubRoutedToNative is emitted whenever protocol or slip fee HUB is
// diverted into the NATIVE subpool's hub_reserve rather than following the
// trade through to the asset_out leg (spec.md §4.2's "hdx.hub_reserve +=
// fee" clause).
type HubRoutedToNative struct {
	Amount *mathkernel.Balance
}

func (TokenAdded) isEvent()           {}
func (TradableStateUpdated) isEvent() {}
func (LiquidityAdded) isEvent()       {}
func (LiquidityRemoved) isEvent()     {}
func (SellExecuted) isEvent()         {}
func (BuyExecuted) isEvent()          {}
func (HubRoutedToNative) isEvent()    {}
