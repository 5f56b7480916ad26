// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package asset defines the asset identifier, pool-type, and route types
// shared by every pallet in this module. It is grounded on the teacher's
// Currency/PoolKey types (dex/types.go): a small value type plus a
// blake3-hashed composite key, generalized here from an EVM token address
// to the 32-bit opaque AssetId spec.md §3 requires.
package asset

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Id is a 32-bit opaque asset identifier.
type Id uint32

const (
	// Hub is the synthetic intra-pool accounting unit (LRNA in the
	// original protocol). It never appears as a tradable leaf asset.
	Hub Id = 1

	// Native is the chain's native token; Omnipool routes all protocol
	// fee HUB into its asset slot.
	Native Id = 0
)

// PoolType identifies which AMM variant a Trade leg executes against.
type PoolType uint8

const (
	PoolTypeOmnipool PoolType = iota
	PoolTypeXYK
	PoolTypeLBP
	PoolTypeStableswap
)

func (t PoolType) String() string {
	switch t {
	case PoolTypeOmnipool:
		return "omnipool"
	case PoolTypeXYK:
		return "xyk"
	case PoolTypeLBP:
		return "lbp"
	case PoolTypeStableswap:
		return "stableswap"
	default:
		return "unknown"
	}
}

// Trade is a single leg of a Route: swap AssetIn for AssetOut on Pool.
type Trade struct {
	Pool     PoolType
	AssetIn  Id
	AssetOut Id
}

// Route is a bounded sequence of Trades executed in order. The bound
// (MaxRouteLength) keeps the solver's search space and the verifier's
// re-simulation cost predictable.
const MaxRouteLength = 6

type Route []Trade

// Valid reports whether r is non-empty, within the length bound, and
// chains correctly (leg i's AssetOut equals leg i+1's AssetIn).
func (r Route) Valid() bool {
	if len(r) == 0 || len(r) > MaxRouteLength {
		return false
	}
	for i := 1; i < len(r); i++ {
		if r[i-1].AssetOut != r[i].AssetIn {
			return false
		}
	}
	return true
}

// AssetIn is the route's first input asset.
func (r Route) AssetIn() Id { return r[0].AssetIn }

// AssetOut is the route's last output asset.
func (r Route) AssetOut() Id { return r[len(r)-1].AssetOut }

// Key deterministically hashes a Route, used to dedupe or cache candidate
// routes in the solver, mirroring the teacher's PoolKey.ID() construction.
func (r Route) Key() [32]byte {
	h := blake3.New()
	var buf [9]byte
	for _, leg := range r {
		buf[0] = byte(leg.Pool)
		binary.BigEndian.PutUint32(buf[1:5], uint32(leg.AssetIn))
		binary.BigEndian.PutUint32(buf[5:9], uint32(leg.AssetOut))
		h.Write(buf[:])
	}
	var out [32]byte
	h.Digest().Read(out[:])
	return out
}

// RouteProvider is the capability a solver uses to discover candidate
// routes between two assets without coupling it to any one pool's
// internals; implementations typically walk a precomputed adjacency graph
// the way dex/gpu/routing.go's PoolGraph does, but that full
// concentrated-liquidity path-cache is overkill for the bounded,
// small-arity routes this runtime needs, so this interface only commits to
// the shape, not a particular search strategy.
type RouteProvider interface {
	// Routes returns every known Route from `in` to `out` no longer than
	// MaxRouteLength, most-liquid first.
	Routes(in, out Id) []Route
}
