// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package solver implements the off-chain worker (spec.md §4.6, C10): it
// reads a snapshot of the intent registry and every AMM's simulator state,
// nets opposing intents directly at a clearing price where possible, routes
// residual volume through the simulation compositor, and produces a
// Solution tagged for unsigned-extrinsic submission. Grounded on the
// teacher's PoolManager-driven settle loop (dex/pool_manager.go) generalized
// from "settle one pool's pending delta" to "settle many intents against a
// cloned compositor, accepting only improving candidates".
package solver

import (
	"errors"
	"math/big"
	"sort"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/intent"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/obs"
	"github.com/luxfi/icedex/oracle"
	"github.com/luxfi/icedex/sim"
)

var logger = obs.NewLogger("solver")

// metrics is nil until SetMetrics installs one; Solve's counter increments
// are no-ops until then, matching obs.Metrics' registration-is-optional
// contract for a package with no long-lived struct to hold a field on.
var metrics *obs.Metrics

// SetMetrics installs the process-wide metrics registry Solve reports
// solver-run and candidate counts to (see cmd/icesolverd/main.go). Safe to
// call once at process start before the first Solve.
func SetMetrics(m *obs.Metrics) { metrics = m }

// OCWTagPrefix and OCWProvides are the unsigned-extrinsic tag spec.md §4.6
// requires every submitted solution to carry; Longevity and Propagate are
// the fixed transaction-pool parameters of that submission.
const (
	OCWTagPrefix = "ice"
	OCWProvides  = "submit_solution"
	Longevity    = 1
	Propagate    = false
)

var (
	// ErrNoLiveIntents is returned when there is nothing to solve for;
	// callers should simply skip submission this block rather than treat
	// it as a failure.
	ErrNoLiveIntents = errors.New("solver: no live intents to resolve")
)

// Trade is one AMM leg the solution's executor must replay on-chain,
// mirroring the on-chain trade event shape closely enough that the
// verifier can re-simulate it without re-deriving units.
type Trade struct {
	IntentId  intent.Id // the resolved intent this AMM leg was routed for
	PoolType  asset.PoolType
	SwapType  intent.SwapType
	AssetIn   asset.Id
	AssetOut  asset.Id
	AmountIn  *mathkernel.Balance
	AmountOut *mathkernel.Balance
}

// Resolution is one intent's realised execution: the amounts actually
// moved, which may differ from the intent's declared bound (e.g. partial
// fills, or a better-than-minimum clearing price). CounterpartyId is set
// when this intent was settled by direct netting against another intent
// rather than routed through an AMM (in which case a matching Trade
// carries this Id as its IntentId instead).
type Resolution struct {
	Id             intent.Id
	CounterpartyId *intent.Id
	AmountIn       *mathkernel.Balance
	AmountOut      *mathkernel.Balance
}

// Solution is the off-chain worker's output (spec.md §3's Solution type):
// the intents it resolved, the AMM trades required to realise them, the
// per-asset clearing prices tying amounts together, a monotone-in-surplus
// score, and the block it is valid for.
type Solution struct {
	Resolved       []Resolution
	Trades         []Trade
	ClearingPrices map[asset.Id]asset.Ratio
	Score          *big.Int
	ValidForBlock  uint64
}

// pairKey canonicalizes an unordered asset pair for grouping.
type pairKey struct{ a, b asset.Id }

func newPairKey(a, b asset.Id) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Solve builds a Solution for block currentBlock+1 out of live intents
// (current_block == atTimestamp is the registry's liveness cutoff the
// caller already applied via intent.Registry.IterLive). Direct netting
// between opposing ExactIn intents is tried first for every pair; whatever
// doesn't net routes through the compositor individually, ExactIn via
// SimulateSell and ExactOut via SimulateBuy. Some simulator adapters
// (Omnipool, Stableswap) don't implement SimulateBuy yet, a documented gap;
// an ExactOut intent routed to one of those pools is simply left
// unresolved rather than failing the whole solve.
//
// oracleSrc is consulted only when the compositor itself carries no live
// pool for a pair (state.SpotPrice fails): a pair with an oracle price but
// no pool can still net directly, even though neither side has anywhere
// to route a residual. A nil oracleSrc disables this fallback and leaves
// such a pair unpriced, as if no oracle were configured at all.
func Solve(live []*intent.Intent, compositor *sim.Set, currentBlock uint64, oracleSrc oracle.Source) (*Solution, error) {
	logger.Debug("solver: solve starting", "live_intents", len(live), "current_block", currentBlock)
	if metrics != nil {
		metrics.SolverRuns.Inc()
	}

	swaps := make([]*intent.Intent, 0, len(live))
	for _, it := range live {
		if it.Kind == intent.KindSwap {
			swaps = append(swaps, it)
		}
	}
	if metrics != nil {
		metrics.SolverCandidatesSeen.Add(float64(len(swaps)))
	}
	if len(swaps) == 0 {
		logger.Debug("solver: no live swap intents, nothing to solve")
		return nil, ErrNoLiveIntents
	}

	groups := make(map[pairKey][]*intent.Intent)
	for _, it := range swaps {
		k := newPairKey(it.Swap.AssetIn, it.Swap.AssetOut)
		groups[k] = append(groups[k], it)
	}

	sol := &Solution{ClearingPrices: make(map[asset.Id]asset.Ratio)}
	state := compositor
	var score = new(big.Int)

	// Deterministic iteration: sort pair keys so solving is reproducible
	// across runs (Go map order is not).
	keys := make([]pairKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	for _, k := range keys {
		group := groups[k]
		var forward, reverse []*intent.Intent
		for _, it := range group {
			if it.Swap.AssetIn == k.a {
				forward = append(forward, it)
			} else {
				reverse = append(reverse, it)
			}
		}

		price, havePrice := spotPrice(state, k.a, k.b, oracleSrc)

		// Net direct opposing ExactIn pairs first, at the compositor's
		// current spot price for the pair (spec.md §4.6 step 3: "direct
		// opposing intents netted at a clearing price").
		if havePrice {
			forward, reverse = netPair(sol, &score, k.a, k.b, price, forward, reverse)
		}

		// Residual volume on either side routes through the AMM
		// individually; an ExactOut residual on a pool whose adapter lacks
		// SimulateBuy is left unresolved (documented gap above).
		var nextState *sim.Set
		var err error
		nextState, err = routeResidual(state, sol, &score, forward)
		if err != nil {
			return nil, err
		}
		state = nextState
		nextState, err = routeResidual(state, sol, &score, reverse)
		if err != nil {
			return nil, err
		}
		state = nextState

		if havePrice && (len(forward) > 0 || len(reverse) > 0 || len(group) > 0) {
			recordClearingPrice(sol, k.a, k.b, price)
		}
	}

	if len(sol.Resolved) == 0 {
		logger.Debug("solver: no candidate resolved after netting and routing")
		return nil, ErrNoLiveIntents
	}
	sol.Score = score
	sol.ValidForBlock = currentBlock + 1
	logger.Info("solver: solve complete", "resolved", len(sol.Resolved), "trades", len(sol.Trades), "score", score.String())
	return sol, nil
}

// spotPrice prices a pair from the compositor's live pool state, falling
// back to oracleSrc (if configured) when no pool lists the pair directly.
func spotPrice(state *sim.Set, a, b asset.Id, oracleSrc oracle.Source) (asset.Ratio, bool) {
	price, err := state.SpotPrice(a, b)
	if err == nil {
		return price, true
	}
	if oracleSrc == nil {
		return asset.Ratio{}, false
	}
	price, err = oracleSrc.Price(a, b, oracle.PeriodShort)
	if err != nil {
		return asset.Ratio{}, false
	}
	return price, true
}

// recordClearingPrice stores the price of a in terms of b, keyed by a, and
// its reciprocal keyed by b, so every asset the solution touches carries
// exactly one clearing price regardless of which direction later lookups
// use (spec.md §4.7's "every asset used has exactly one clearing price").
func recordClearingPrice(sol *Solution, a, b asset.Id, priceAOverB asset.Ratio) {
	if _, ok := sol.ClearingPrices[a]; !ok {
		sol.ClearingPrices[a] = priceAOverB
	}
	if _, ok := sol.ClearingPrices[b]; !ok {
		sol.ClearingPrices[b] = priceAOverB.Reciprocal()
	}
}

// netPair matches forward (in=a) against reverse (in=b) ExactIn intents at
// priceAOverB (out_b = in_a * priceAOverB), greedily in declared order,
// returning the unmatched remainder of each side.
func netPair(sol *Solution, score **big.Int, a, b asset.Id, priceAOverB asset.Ratio, forward, reverse []*intent.Intent) ([]*intent.Intent, []*intent.Intent) {
	fi, ri := 0, 0
	var remainingForward, remainingReverse []*intent.Intent

	// fRemIn/rRemIn track the still-unmatched amount_in of the intent
	// currently at the head of each queue, since a match may only consume
	// part of one side.
	var fRemIn, rRemIn *big.Int
	for fi < len(forward) && ri < len(reverse) {
		f, r := forward[fi], reverse[ri]
		if f.Swap.SwapType != intent.ExactIn || r.Swap.SwapType != intent.ExactIn {
			break
		}
		if fRemIn == nil {
			fRemIn = f.Swap.AmountIn.ToBig()
		}
		if rRemIn == nil {
			rRemIn = r.Swap.AmountIn.ToBig()
		}

		// equivAIn is how much of asset a the reverse side's remaining
		// input is worth at the clearing price (in_b / priceAOverB).
		equivAIn := new(big.Int).Mul(rRemIn, priceAOverB.D)
		equivAIn.Quo(equivAIn, priceAOverB.N)

		matchedAIn := fRemIn
		if equivAIn.Cmp(matchedAIn) < 0 {
			matchedAIn = equivAIn
		}
		if matchedAIn.Sign() == 0 {
			break
		}

		matchedBOut := new(big.Int).Mul(matchedAIn, priceAOverB.N)
		matchedBOut.Quo(matchedBOut, priceAOverB.D)
		if matchedBOut.Sign() == 0 {
			break
		}

		fOutBal := mathkernel.MustBalanceFromBig(matchedBOut)
		rOutBal := mathkernel.MustBalanceFromBig(matchedAIn)
		if fOutBal.Lt(f.Swap.AmountOut) || rOutBal.Lt(r.Swap.AmountOut) {
			// This pairing doesn't clear either side's declared minimum;
			// stop netting and let both fall through to AMM routing.
			break
		}
		if !f.Swap.Partial && matchedAIn.Cmp(fRemIn) != 0 {
			break
		}
		if !r.Swap.Partial && matchedBOut.Cmp(rRemIn) != 0 {
			break
		}

		fId, rId := f.Id, r.Id
		sol.Resolved = append(sol.Resolved, Resolution{Id: f.Id, CounterpartyId: &rId, AmountIn: mathkernel.MustBalanceFromBig(matchedAIn), AmountOut: fOutBal})
		sol.Resolved = append(sol.Resolved, Resolution{Id: r.Id, CounterpartyId: &fId, AmountIn: mathkernel.MustBalanceFromBig(matchedBOut), AmountOut: rOutBal})
		*score = (*score).Add(*score, surplus(fOutBal, f.Swap.AmountOut))
		*score = (*score).Add(*score, surplus(rOutBal, r.Swap.AmountOut))

		fRemIn = new(big.Int).Sub(fRemIn, matchedAIn)
		rRemIn = new(big.Int).Sub(rRemIn, matchedBOut)

		if fRemIn.Sign() == 0 {
			fi++
			fRemIn = nil
		}
		if rRemIn.Sign() == 0 {
			ri++
			rRemIn = nil
		}
	}
	remainingForward = forward[fi:]
	remainingReverse = reverse[ri:]
	return remainingForward, remainingReverse
}

// routeResidual sends every still-unresolved intent in legs through the
// compositor individually (ExactIn via Sell, ExactOut via Buy), accepting
// it only if the realised amounts satisfy its declared bound. Intents the
// compositor can't route (ErrNotSupported, no listed pair, or a pool whose
// adapter lacks SimulateBuy) are left unresolved rather than failing the
// whole solve.
func routeResidual(state *sim.Set, sol *Solution, score **big.Int, legs []*intent.Intent) (*sim.Set, error) {
	for _, it := range legs {
		poolType, _ := state.CanTrade(it.Swap.AssetIn, it.Swap.AssetOut)
		switch it.Swap.SwapType {
		case intent.ExactIn:
			next, result, err := state.Sell(it.Swap.AssetIn, it.Swap.AssetOut, it.Swap.AmountIn, nil)
			if err != nil || result.AmountOut.Lt(it.Swap.AmountOut) {
				continue
			}
			sol.Trades = append(sol.Trades, Trade{
				IntentId: it.Id, PoolType: poolType, SwapType: intent.ExactIn, AssetIn: it.Swap.AssetIn, AssetOut: it.Swap.AssetOut,
				AmountIn: result.AmountIn, AmountOut: result.AmountOut,
			})
			sol.Resolved = append(sol.Resolved, Resolution{Id: it.Id, AmountIn: result.AmountIn, AmountOut: result.AmountOut})
			*score = (*score).Add(*score, surplus(result.AmountOut, it.Swap.AmountOut))
			state = next
		case intent.ExactOut:
			next, result, err := state.Buy(it.Swap.AssetIn, it.Swap.AssetOut, it.Swap.AmountOut, nil)
			if err != nil || result.AmountIn.Gt(it.Swap.AmountIn) {
				continue
			}
			sol.Trades = append(sol.Trades, Trade{
				IntentId: it.Id, PoolType: poolType, SwapType: intent.ExactOut, AssetIn: it.Swap.AssetIn, AssetOut: it.Swap.AssetOut,
				AmountIn: result.AmountIn, AmountOut: result.AmountOut,
			})
			sol.Resolved = append(sol.Resolved, Resolution{Id: it.Id, AmountIn: result.AmountIn, AmountOut: result.AmountOut})
			*score = (*score).Add(*score, surplus(it.Swap.AmountIn, result.AmountIn))
			state = next
		}
	}
	return state, nil
}

// surplus is the non-negative excess of realised over declared-minimum
// output; score is the sum of every resolved intent's surplus, a monotone
// function of total surplus as spec.md §4.6 leaves as a policy choice.
func surplus(realised, declaredMin *mathkernel.Balance) *big.Int {
	d := new(big.Int).Sub(realised.ToBig(), declaredMin.ToBig())
	if d.Sign() < 0 {
		return new(big.Int)
	}
	return d
}
