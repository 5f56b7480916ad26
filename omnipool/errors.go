// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package omnipool

import "errors"

// Error groups follow spec.md §7's taxonomy; each is a distinct
// package-level error value, grounded on the teacher's flat
// errors.New-per-condition convention (dex/perpetuals.go's
// ErrExcessiveLeverage and siblings) rather than a generic error code enum.
var (
	// Authorisation
	ErrBadOrigin = errors.New("omnipool: bad origin")
	ErrNotOwner  = errors.New("omnipool: not position owner")
	ErrNotAllowed = errors.New("omnipool: operation not allowed by tradable flags")

	// Input validity
	ErrZeroAmount               = errors.New("omnipool: zero amount")
	ErrInsufficientTradingAmount = errors.New("omnipool: amount below min_trade_amount")
	ErrSameAssetTradeNotAllowed = errors.New("omnipool: asset_in equals asset_out")
	ErrAssetAlreadyExists       = errors.New("omnipool: asset already present")
	ErrZeroPrice                = errors.New("omnipool: initial price is zero")
	ErrInvalidCap               = errors.New("omnipool: cap exceeds 1.0")

	// Capacity
	ErrInsufficientBalance  = errors.New("omnipool: insufficient balance")
	ErrInsufficientLiquidity = errors.New("omnipool: insufficient liquidity")
	ErrMaxInRatioExceeded   = errors.New("omnipool: amount_in exceeds reserve_in / max_in_ratio")
	ErrMaxOutRatioExceeded  = errors.New("omnipool: amount_out exceeds reserve_out / max_out_ratio")
	ErrBuyLimitNotReached   = errors.New("omnipool: amount_out below min_out")
	ErrSellLimitExceeded    = errors.New("omnipool: amount_in above max_in")
	ErrCapExceeded          = errors.New("omnipool: cap_i * sum(hub_reserve) < hub_reserve_i")

	// Lifecycle
	ErrAssetNotFound = errors.New("omnipool: asset not found")
	ErrPositionNotFound = errors.New("omnipool: position not found")

	// Arithmetic / consistency
	ErrOverflow        = errors.New("omnipool: overflow")
	ErrDivisionByZero  = errors.New("omnipool: division by zero")
	ErrInvariantBroken = errors.New("omnipool: reserve*hub_reserve invariant would decrease")
)
