// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package runtime implements the node wiring / pallet registry (spec.md
// §4.13, C13): a deterministic, order-preserving registry that composes
// the ICE/Omnipool components into one runtime. Grounded directly on the
// teacher's modules/registerer.go: the teacher reserves a common.Address
// range per precompile and sorts registeredModules by address for
// deterministic iteration; this runtime has no EVM address space to
// reserve, so it substitutes a compact PalletIndex uint8 carrying the
// same "reject a duplicate key, sort for deterministic execution order"
// discipline as RegisterModule/insertSortedByAddress.
package runtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDuplicateIndex = errors.New("runtime: pallet index already registered")
	ErrDuplicateName  = errors.New("runtime: pallet name already registered")
)

// PalletIndex is this runtime's analogue of the teacher's reserved
// common.Address range: a small integer namespace pallets are registered
// into, fixed per component so block-execution order never depends on
// registration order.
type PalletIndex uint8

const (
	PalletOmnipool PalletIndex = iota
	PalletXYK
	PalletLBP
	PalletStableswap
	PalletFarm
	PalletIntent
	PalletSolver
	PalletVerifier
	PalletExecutor
	PalletOracle
)

// Pallet is one registered component. Handle is the component's own
// exported type (e.g. *omnipool.Pool, *intent.Registry); runtime never
// inspects it, it only tracks identity and execution order, exactly as
// the teacher's Module carries an opaque contract interface{}.
type Pallet struct {
	Index  PalletIndex
	Name   string
	Handle interface{}
}

// Registry is the runtime's pallet table.
type Registry struct {
	mu      sync.Mutex
	pallets []Pallet
}

func New() *Registry { return &Registry{} }

// Register adds p to the registry, rejecting a duplicate Index or Name
// exactly as the teacher's RegisterModule rejects a duplicate address or
// ConfigKey.
func (r *Registry) Register(p Pallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.pallets {
		if existing.Index == p.Index {
			return fmt.Errorf("%w: %d", ErrDuplicateIndex, p.Index)
		}
		if existing.Name == p.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
		}
	}

	r.pallets = append(r.pallets, p)
	sort.Slice(r.pallets, func(i, j int) bool { return r.pallets[i].Index < r.pallets[j].Index })
	return nil
}

// Pallets returns every registered pallet, index-sorted for deterministic
// block-execution order (mirroring the teacher's RegisteredModules).
func (r *Registry) Pallets() []Pallet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Pallet, len(r.pallets))
	copy(out, r.pallets)
	return out
}

// ByIndex looks up a registered pallet by its PalletIndex.
func (r *Registry) ByIndex(idx PalletIndex) (Pallet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pallets {
		if p.Index == idx {
			return p, true
		}
	}
	return Pallet{}, false
}

// ByName looks up a registered pallet by its Name.
func (r *Registry) ByName(name string) (Pallet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pallets {
		if p.Name == name {
			return p, true
		}
	}
	return Pallet{}, false
}
