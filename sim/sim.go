// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sim implements the heterogeneous pool-simulator compositor the
// solver drives to evaluate candidate routes without touching chain state
// (spec.md §4.4, C4+C5). It is grounded on the teacher's PoolManager
// (dex/pool_manager.go): a registry of pool state the caller queries and
// mutates only through validate-then-execute methods, generalized here
// from a single pool kind to a dispatch-by-capability registry over
// several AMM variants, each snapshotting and simulating purely.
//
// The Rust original generates the compositor for tuple arities 2..6 via a
// macro; Go has no equivalent tuple-arity generics, so this package uses
// the idiomatic substitute — a slice of Simulator held in fixed dispatch
// order — which keeps positional state immutability for simulators a
// trade doesn't touch. Dispatch picks the first simulator whose CanTrade
// reports true and returns that simulator's result or error as is; an
// ErrNotSupported from its Simulate* call does not fall through to later
// simulators.
package sim

import (
	"errors"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/mathkernel"
)

// ErrNotSupported is returned by a Simulator whose CanTrade is false for
// the requested pair or that lacks the requested direction, and by a Set
// when no simulator's CanTrade matches the pair; a Set passes it back to
// the caller without trying later simulators.
var ErrNotSupported = errors.New("sim: pair not supported by this simulator")

// TradeResult mirrors the on-chain trade event shape closely enough that
// the solver can price a candidate route without re-deriving units.
type TradeResult struct {
	AmountIn  *mathkernel.Balance
	AmountOut *mathkernel.Balance
}

// Simulator is the pure snapshot-transition capability every AMM variant
// exposes to the compositor. Implementations must be immutable value
// types: Simulate* methods return a new Simulator rather than mutating
// the receiver, so unaffected simulators in a SimulatorSet can be cloned
// through by reference with no risk of aliasing a trade's side effects.
type Simulator interface {
	PoolType() asset.PoolType
	CanTrade(in, out asset.Id) bool
	GetPoolAssets() []asset.Id
	SimulateSell(in, out asset.Id, amountIn *mathkernel.Balance) (Simulator, TradeResult, error)
	SimulateBuy(in, out asset.Id, amountOut *mathkernel.Balance) (Simulator, TradeResult, error)
	SpotPrice(in, out asset.Id) (asset.Ratio, error)
}
