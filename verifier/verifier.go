// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package verifier implements the ICE solution verifier (spec.md §4.7,
// C11): the ValidateUnsigned-style re-check every submitted Solution must
// pass before the executor (C12) is allowed to touch it. Grounded on the
// teacher's validate-then-execute split (dex/pool_manager.go's
// validate_sell/execute_sell pairing, generalized here to validate a whole
// batch rather than one pool call): every check here is pure and
// side-effect-free, exactly mirroring that the teacher's validate path
// never mutates PoolManager state.
package verifier

import (
	"errors"
	"math/big"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/intent"
	"github.com/luxfi/icedex/obs"
	"github.com/luxfi/icedex/sim"
	"github.com/luxfi/icedex/solver"
)

var logger = obs.NewLogger("verifier")

// metrics is nil until SetMetrics installs one; reject/Validate's counter
// increments are no-ops until then.
var metrics *obs.Metrics

// SetMetrics installs the process-wide metrics registry Validate reports
// acceptances and rejections (by Reason) to.
func SetMetrics(m *obs.Metrics) { metrics = m }

// ErrInvalid is the single error class §4.7 maps every rejection reason to
// for the transaction pool ("Invalid::Call" in the original); Reason
// preserves which specific check failed for logging and tests.
var ErrInvalid = errors.New("verifier: invalid call")

// Reason enumerates the ICE-specific error kinds spec.md §7 names.
type Reason uint8

const (
	ReasonWrongBlock Reason = iota
	ReasonDuplicateIntent
	ReasonIntentNotFound
	ReasonIntentExpired
	ReasonInvalidClearingPrice
	ReasonPriceInconsistent
	ReasonAmountBoundViolated
	ReasonPartialNotAllowed
	ReasonReplayMismatch
	ReasonScoreMismatch
)

func (r Reason) String() string {
	switch r {
	case ReasonWrongBlock:
		return "SolutionForWrongBlock"
	case ReasonDuplicateIntent:
		return "DuplicateIntent"
	case ReasonIntentNotFound:
		return "IntentNotFound"
	case ReasonIntentExpired:
		return "IntentExpired"
	case ReasonInvalidClearingPrice:
		return "InvalidClearingPrice"
	case ReasonPriceInconsistent:
		return "SolutionPriceInconsistent"
	case ReasonAmountBoundViolated:
		return "AmountBoundViolated"
	case ReasonPartialNotAllowed:
		return "PartialNotAllowed"
	case ReasonReplayMismatch:
		return "ReplayMismatch"
	case ReasonScoreMismatch:
		return "SolutionScoreMismatch"
	default:
		return "Unknown"
	}
}

// RejectedError is ErrInvalid with its specific Reason attached; callers
// that only need the pool-rejection behaviour can compare against
// ErrInvalid with errors.Is, callers that need detail can type-assert.
type RejectedError struct {
	Reason Reason
	Detail string
}

func (e *RejectedError) Error() string { return "verifier: " + e.Reason.String() + ": " + e.Detail }
func (e *RejectedError) Unwrap() error { return ErrInvalid }

func reject(reason Reason, detail string) error {
	logger.Warn("verifier: solution rejected", "reason", reason.String(), "detail", detail)
	if metrics != nil {
		metrics.VerifierRejections.WithLabelValues(reason.String()).Inc()
	}
	return &RejectedError{Reason: reason, Detail: detail}
}

// priceTolerance is the "within tolerance 1" ULP bound spec.md §8 names
// for the price-consistency check.
var priceTolerance = big.NewInt(1)

// Validate re-executes sol against a fresh intent.Registry and a fresh
// sim.Set snapshot (neither is mutated), and reports a *RejectedError
// wrapping ErrInvalid on the first check sol fails. currentBlock is the
// block the call is being validated in; sol.ValidForBlock must equal
// currentBlock+1.
func Validate(sol *solver.Solution, intents *intent.Registry, compositor *sim.Set, currentBlock uint64, atTimestamp uint64) error {
	logger.Debug("verifier: validate starting", "resolved", len(sol.Resolved), "trades", len(sol.Trades), "current_block", currentBlock)
	if sol.ValidForBlock != currentBlock+1 {
		return reject(ReasonWrongBlock, "valid_for_block must equal current_block+1")
	}

	seen := make(map[intent.Id]bool, len(sol.Resolved))
	liveIntents := make(map[intent.Id]*intent.Intent, len(sol.Resolved))
	for _, res := range sol.Resolved {
		if seen[res.Id] {
			return reject(ReasonDuplicateIntent, "duplicate resolved intent id")
		}
		seen[res.Id] = true

		it, err := intents.Get(res.Id)
		if err != nil {
			return reject(ReasonIntentNotFound, "resolved id not present in the intent registry")
		}
		if it.Deadline <= atTimestamp {
			return reject(ReasonIntentExpired, "resolved intent has already expired")
		}
		liveIntents[res.Id] = it
	}

	if err := validateClearingPrices(sol); err != nil {
		return err
	}

	for _, res := range sol.Resolved {
		it := liveIntents[res.Id]
		if it.Kind != intent.KindSwap {
			continue
		}
		if err := validateAmountBounds(it.Swap, res); err != nil {
			return err
		}
		if err := validatePriceConsistency(sol, it.Swap.AssetIn, it.Swap.AssetOut, res); err != nil {
			return err
		}
	}

	if err := replayTrades(sol, compositor); err != nil {
		return err
	}

	recomputed := recomputeScore(sol, liveIntents)
	if sol.Score == nil || recomputed.Cmp(sol.Score) != 0 {
		return reject(ReasonScoreMismatch, "recomputed score does not equal the claimed score")
	}

	logger.Info("verifier: solution accepted", "resolved", len(sol.Resolved))
	if metrics != nil {
		metrics.VerifierAccepted.Inc()
	}
	return nil
}

// validateClearingPrices checks every clearing price carries a positive
// denominator; spec.md §4.7's "every asset used has exactly one clearing
// price with d > 0" is satisfied structurally by ClearingPrices being a
// map (one entry per key), so only the denominator sign needs checking
// here.
func validateClearingPrices(sol *solver.Solution) error {
	for _, price := range sol.ClearingPrices {
		if price.D == nil || price.D.Sign() <= 0 {
			return reject(ReasonInvalidClearingPrice, "clearing price for asset has non-positive denominator")
		}
	}
	return nil
}

// validateAmountBounds checks amount_in <= intent.amount_in, the
// direction-appropriate bound (ExactIn: amount_out >= declared min;
// ExactOut: amount_in <= declared max, already covered by the general
// bound since ExactOut's AmountIn field is that max), and exact-fill when
// partial=false.
func validateAmountBounds(swap *intent.Swap, res solver.Resolution) error {
	if res.AmountIn.Gt(swap.AmountIn) {
		return reject(ReasonAmountBoundViolated, "executed amount_in exceeds the intent's declared amount_in")
	}
	if swap.SwapType == intent.ExactIn && res.AmountOut.Lt(swap.AmountOut) {
		return reject(ReasonAmountBoundViolated, "executed amount_out is below the intent's declared minimum")
	}
	if !swap.Partial {
		switch swap.SwapType {
		case intent.ExactIn:
			if res.AmountIn.Cmp(swap.AmountIn) != 0 {
				return reject(ReasonPartialNotAllowed, "non-partial ExactIn intent was not filled with its full declared input")
			}
		case intent.ExactOut:
			if res.AmountOut.Cmp(swap.AmountOut) != 0 {
				return reject(ReasonPartialNotAllowed, "non-partial ExactOut intent did not realise its exact declared output")
			}
		}
	}
	return nil
}

// validatePriceConsistency checks |amount_in*price_in - amount_out*price_out| <= 1
// using asset.AbsDiffScaled's cross-multiplied comparison.
func validatePriceConsistency(sol *solver.Solution, assetIn, assetOut asset.Id, res solver.Resolution) error {
	priceIn, ok := sol.ClearingPrices[assetIn]
	if !ok {
		return reject(ReasonInvalidClearingPrice, "no clearing price for a resolved intent's input asset")
	}
	priceOut, ok := sol.ClearingPrices[assetOut]
	if !ok {
		return reject(ReasonInvalidClearingPrice, "no clearing price for a resolved intent's output asset")
	}
	numerator, denominator := asset.AbsDiffScaled(res.AmountIn.ToBig(), priceIn, res.AmountOut.ToBig(), priceOut)
	// Compare numerator/denominator <= 1 without a float division:
	// numerator <= denominator * tolerance.
	bound := new(big.Int).Mul(denominator, priceTolerance)
	if numerator.Cmp(bound) > 0 {
		return reject(ReasonPriceInconsistent, "resolved amounts are not consistent with the claimed clearing prices")
	}
	return nil
}

// replayTrades re-simulates every trade sol claims against a fresh clone
// of compositor, in order, and checks each reproduces exactly the claimed
// amounts.
func replayTrades(sol *solver.Solution, compositor *sim.Set) error {
	state := compositor
	for _, trade := range sol.Trades {
		poolType := trade.PoolType
		var err error
		var got sim.TradeResult
		switch trade.SwapType {
		case intent.ExactIn:
			state, got, err = state.Sell(trade.AssetIn, trade.AssetOut, trade.AmountIn, &poolType)
		case intent.ExactOut:
			state, got, err = state.Buy(trade.AssetIn, trade.AssetOut, trade.AmountOut, &poolType)
		}
		if err != nil {
			return reject(ReasonReplayMismatch, "claimed trade could not be replayed: "+err.Error())
		}
		if got.AmountIn.Cmp(trade.AmountIn) != 0 || got.AmountOut.Cmp(trade.AmountOut) != 0 {
			return reject(ReasonReplayMismatch, "replayed trade amounts differ from the claimed trade")
		}
	}
	return nil
}

// recomputeScore mirrors solver.surplus exactly: the sum, over every
// resolved intent, of its realised-over-declared-minimum surplus.
func recomputeScore(sol *solver.Solution, liveIntents map[intent.Id]*intent.Intent) *big.Int {
	total := new(big.Int)
	for _, res := range sol.Resolved {
		it, ok := liveIntents[res.Id]
		if !ok || it.Kind != intent.KindSwap {
			continue
		}
		var d *big.Int
		switch it.Swap.SwapType {
		case intent.ExactIn:
			d = new(big.Int).Sub(res.AmountOut.ToBig(), it.Swap.AmountOut.ToBig())
		case intent.ExactOut:
			d = new(big.Int).Sub(it.Swap.AmountIn.ToBig(), res.AmountIn.ToBig())
		}
		if d != nil && d.Sign() > 0 {
			total.Add(total, d)
		}
	}
	return total
}
