// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package executor implements the solution executor (spec.md §4.8, C12):
// the only component that actually moves ledger balances and pool reserves
// on behalf of an accepted Solution. It assumes Validate (package verifier)
// has already accepted the solution; Execute itself re-derives nothing and
// trusts the solution's shape. Grounded on the teacher's settle-then-commit
// shape in dex/pool_manager.go, generalized from "settle one pool call" to
// "settle every resolved intent in a batch, aborting the whole batch on any
// single failure" (spec.md §4.8's "single top-level transaction").
package executor

import (
	"errors"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/intent"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/obs"
	"github.com/luxfi/icedex/solver"
	"github.com/luxfi/icedex/txn"
)

var logger = obs.NewLogger("executor")

// metrics is nil until SetMetrics installs one; Execute's counter
// increments are no-ops until then.
var metrics *obs.Metrics

// SetMetrics installs the process-wide metrics registry Execute reports
// executed trade legs to.
func SetMetrics(m *obs.Metrics) { metrics = m }

var (
	// ErrTradeNotRouted is returned when a resolved intent names no
	// counterparty and no matching Trade was found among sol.Trades —
	// the solution is malformed (verifier should have already caught this
	// upstream; Execute double-checks rather than trusting blindly).
	ErrTradeNotRouted = errors.New("executor: resolved intent has neither a counterparty nor a routed trade")
	// ErrUnsupportedBuy is returned by a PoolExecutor adapter whose
	// underlying AMM has no exact-output execution path yet (Stableswap
	// today — the same documented gap as its sim.Simulator adapter's
	// SimulateBuy).
	ErrUnsupportedBuy = errors.New("executor: this pool does not support exact-output execution")
)

// PoolExecutor is the mutating counterpart to sim.Simulator: it performs a
// trade against real, ledger-backed pool state rather than a snapshot.
// Implementations wrap one of the four AMM registries (Omnipool, XYK, LBP,
// Stableswap), each of which already owns validate-then-execute semantics
// (spec.md §4.3); these adapters add nothing but capability-dispatch.
type PoolExecutor interface {
	PoolType() asset.PoolType
	CanTrade(in, out asset.Id) bool
	ExecuteSell(who ledger.AccountId, in, out asset.Id, amountIn, minOut *mathkernel.Balance) (*mathkernel.Balance, error)
	ExecuteBuy(who ledger.AccountId, in, out asset.Id, amountOut, maxIn *mathkernel.Balance) (*mathkernel.Balance, error)
}

// Router dispatches a resolved trade to the first PoolExecutor whose
// PoolType and CanTrade match, the same stop-at-first-match discipline the
// compositor (package sim) uses for simulation.
type Router struct {
	executors []PoolExecutor
}

func NewRouter(executors ...PoolExecutor) *Router {
	cp := make([]PoolExecutor, len(executors))
	copy(cp, executors)
	return &Router{executors: cp}
}

func (r *Router) find(poolType asset.PoolType, in, out asset.Id) PoolExecutor {
	for _, e := range r.executors {
		if e.PoolType() == poolType && e.CanTrade(in, out) {
			return e
		}
	}
	return nil
}

// checkpointers returns every executor that exposes txn.Checkpointer,
// so Execute can enlist the pool stores it might mutate as transactional
// participants alongside the ledger and intent registry. Two adapters
// wrapping the same underlying registry simply checkpoint it twice,
// which is redundant but harmless (the second restore is a no-op
// overwrite of the first).
func (r *Router) checkpointers() []txn.Checkpointer {
	out := make([]txn.Checkpointer, 0, len(r.executors))
	for _, e := range r.executors {
		if cp, ok := e.(txn.Checkpointer); ok {
			out = append(out, cp)
		}
	}
	return out
}

// Outcome is one resolved intent's realised settlement, reported in
// SolutionExecuted.
type Outcome struct {
	Id        intent.Id
	Account   ledger.AccountId
	AssetIn   asset.Id
	AssetOut  asset.Id
	AmountIn  *mathkernel.Balance
	AmountOut *mathkernel.Balance
}

// Event is the typed event surface for the executor.
type Event interface{ isEvent() }

// SolutionExecuted lists every resolved intent id and its realised
// amounts, spec.md §6's required event shape.
type SolutionExecuted struct{ Outcomes []Outcome }

func (SolutionExecuted) isEvent() {}

// Execute applies sol in the order spec.md §4.8 names:
//  1. debit each resolved intent's reserved input,
//  2. run every AMM trade sol claims, aborting the whole batch on failure,
//  3. credit each resolved intent's output,
//  4. remove resolved intents from the registry.
// Direct-netted pairs (Resolution.CounterpartyId set) settle peer-to-peer
// via ledger.SlashReserved + ledger.Mint without touching any pool,
// since there is no AMM leg to route for them; every other resolution is
// routed through router using its matching solver.Trade.
//
// The whole batch runs inside a single txn.Run boundary over the ledger,
// the intent registry, and every pool store router can reach: if any
// resolved intent fails partway through, every mutation made so far in
// this call is rolled back, so a solution either lands in full or not at
// all (spec.md §4.8's "single top-level transaction").
func Execute(sol *solver.Solution, intents *intent.Registry, lg ledger.Ledger, router *Router) ([]Event, error) {
	logger.Debug("executor: execute starting", "resolved", len(sol.Resolved), "trades", len(sol.Trades))
	tradeByIntent := make(map[intent.Id]solver.Trade, len(sol.Trades))
	for _, tr := range sol.Trades {
		tradeByIntent[tr.IntentId] = tr
	}
	resByIntent := make(map[intent.Id]solver.Resolution, len(sol.Resolved))
	for _, res := range sol.Resolved {
		resByIntent[res.Id] = res
	}

	handled := make(map[intent.Id]bool, len(sol.Resolved))
	outcomes := make([]Outcome, 0, len(sol.Resolved))

	participants := []txn.Checkpointer{intents}
	if cp, ok := lg.(txn.Checkpointer); ok {
		participants = append(participants, cp)
	}
	participants = append(participants, router.checkpointers()...)
	runErr := txn.Run(func() error {
		for _, res := range sol.Resolved {
			if handled[res.Id] {
				continue
			}

			it, err := intents.Get(res.Id)
			if err != nil {
				return err
			}

			switch {
			case res.CounterpartyId != nil:
				revRes, ok := resByIntent[*res.CounterpartyId]
				if !ok {
					return ErrTradeNotRouted
				}
				out, err := settleNetted(intents, lg, it, res, revRes)
				if err != nil {
					return err
				}
				handled[res.Id] = true
				handled[*res.CounterpartyId] = true
				outcomes = append(outcomes, out...)
			default:
				trade, ok := tradeByIntent[res.Id]
				if !ok {
					return ErrTradeNotRouted
				}
				out, err := settleRouted(intents, lg, router, it, res, trade)
				if err != nil {
					return err
				}
				handled[res.Id] = true
				outcomes = append(outcomes, out)
			}
		}
		return nil
	}, participants...)
	if runErr != nil {
		logger.Warn("executor: execute failed, batch rolled back", "error", runErr)
		return nil, runErr
	}

	if metrics != nil {
		metrics.TradesExecuted.Add(float64(len(tradeByIntent)))
	}
	logger.Info("executor: execute committed", "outcomes", len(outcomes))
	return []Event{SolutionExecuted{Outcomes: outcomes}}, nil
}

// settleNetted resolves a directly-matched pair of intents without
// touching any AMM: each side's realised input is slashed straight out of
// its reserve and minted to the other party's free balance. Mint (not
// Transfer) is used because the source leg is reserved, not free, and the
// ledger has no reserved-to-another-account's-free primitive; the two
// legs' Slash/Mint amounts conserve total value across the pair.
func settleNetted(intents *intent.Registry, lg ledger.Ledger, forward *intent.Intent, fwdRes, revRes solver.Resolution) ([]Outcome, error) {
	reverse, err := intents.Get(revRes.Id)
	if err != nil {
		return nil, err
	}

	if _, err := intents.Resolve(forward.Id, fwdRes.AmountIn); err != nil {
		return nil, err
	}
	if _, err := intents.Resolve(reverse.Id, revRes.AmountIn); err != nil {
		return nil, err
	}

	if err := lg.SlashReserved(forward.Account, forward.Swap.AssetIn, fwdRes.AmountIn); err != nil {
		return nil, err
	}
	if err := lg.Mint(reverse.Account, forward.Swap.AssetIn, fwdRes.AmountIn); err != nil {
		return nil, err
	}
	if err := lg.SlashReserved(reverse.Account, reverse.Swap.AssetIn, revRes.AmountIn); err != nil {
		return nil, err
	}
	if err := lg.Mint(forward.Account, reverse.Swap.AssetIn, revRes.AmountIn); err != nil {
		return nil, err
	}

	return []Outcome{
		{Id: forward.Id, Account: forward.Account, AssetIn: forward.Swap.AssetIn, AssetOut: forward.Swap.AssetOut, AmountIn: fwdRes.AmountIn, AmountOut: fwdRes.AmountOut},
		{Id: reverse.Id, Account: reverse.Account, AssetIn: reverse.Swap.AssetIn, AssetOut: reverse.Swap.AssetOut, AmountIn: revRes.AmountIn, AmountOut: revRes.AmountOut},
	}, nil
}

// settleRouted executes trade against router on behalf of account, then
// credits/debits the ledger to match its realised amounts.
func settleRouted(intents *intent.Registry, lg ledger.Ledger, router *Router, it *intent.Intent, res solver.Resolution, trade solver.Trade) (Outcome, error) {
	executor := router.find(trade.PoolType, trade.AssetIn, trade.AssetOut)
	if executor == nil {
		return Outcome{}, ErrTradeNotRouted
	}

	if _, err := intents.Resolve(res.Id, res.AmountIn); err != nil {
		return Outcome{}, err
	}
	// The intent's input is reserved, not free; unreserve exactly the
	// executed portion so the pool's own execute_sell/execute_buy path
	// (which debits free balance) can move it normally.
	if err := lg.Unreserve(it.Account, trade.AssetIn, res.AmountIn); err != nil {
		return Outcome{}, err
	}

	var err error
	switch trade.SwapType {
	case intent.ExactIn:
		_, err = executor.ExecuteSell(it.Account, trade.AssetIn, trade.AssetOut, res.AmountIn, res.AmountOut)
	case intent.ExactOut:
		_, err = executor.ExecuteBuy(it.Account, trade.AssetIn, trade.AssetOut, res.AmountOut, res.AmountIn)
	}
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Id: it.Id, Account: it.Account, AssetIn: trade.AssetIn, AssetOut: trade.AssetOut, AmountIn: res.AmountIn, AmountOut: res.AmountOut}, nil
}
