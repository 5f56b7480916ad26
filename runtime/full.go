// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/config"
	"github.com/luxfi/icedex/farm"
	"github.com/luxfi/icedex/intent"
	"github.com/luxfi/icedex/lbp"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/omnipool"
	"github.com/luxfi/icedex/oracle"
	"github.com/luxfi/icedex/stableswap"
	"github.com/luxfi/icedex/xyk"
)

// Handles is the set of long-lived pallet instances NewFullRuntime
// constructs and registers, returned alongside the Registry so a caller
// doesn't have to recover them from Pallet.Handle via a type assertion.
//
// Solver, Verifier and Executor (PalletSolver/PalletVerifier/
// PalletExecutor) have no entry here and are never registered: spec.md
// models them as stateless batch operations (Solve/Validate/Execute),
// and this module implements each as a free function over a
// package-level logger/metrics pair (declared in each package's main
// source file) rather
// than as a struct instance, so there is no Handle to compose. cmd/
// calls them directly; the runtime only composes the stateful pallets
// that hold ledger-backed reserves.
type Handles struct {
	Omnipool   *omnipool.Pool
	XYK        *xyk.Registry
	LBP        *lbp.Registry
	Stableswap *stableswap.Registry
	Farm       *farm.Registry
	Intent     *intent.Registry
	Oracle     oracle.Source
}

// NewFullRuntime composes every stateful pallet spec.md names into one
// Registry, vaulted at a single account and backed by a single ledger —
// the Go analogue of the teacher's cmd/ wiring every precompile into one
// registeredModules table via RegisterModule at process start.
//
// cfg's Omnipool fee knobs (C6) become the Omnipool pallet's FeePolicy
// at construction time. Its XYK/LBP/Stableswap knobs (C7) are NOT
// consumed here: those registries apply fee/amplification per-pool, at
// CreatePool time, not at registry construction. cmd/icesolverd's
// snapshot loader reads XYKFeeBps off cfg when it creates an XYK pool;
// no caller reads LBPRepayFeeBps or StableAmplification. oracleSrc backs
// both the Oracle pallet and XYK's
// NATIVE discount-swap leg (spec.md §4.14, C14).
func NewFullRuntime(cfg *config.Config, lg ledger.Ledger, vault ledger.AccountId, oracleSrc oracle.Source) (*Registry, *Handles, error) {
	fees := omnipool.FeePolicy{
		MaxSlipFeeBps:       cfg.MaxSlipFeeBps,
		MinWithdrawalFeeBps: cfg.MinWithdrawalFeeBps,
		MaxInRatio:          cfg.MaxInRatio,
		MaxOutRatio:         cfg.MaxOutRatio,
		MinTradeAmount:      mathkernel.NewBalance(cfg.MinTradeAmount),
	}

	h := &Handles{
		Omnipool:   omnipool.NewPool(vault, lg, fees),
		XYK:        xyk.NewRegistryWithDiscount(vault, lg, asset.Native, oracleSrc),
		LBP:        lbp.NewRegistry(vault, lg),
		Stableswap: stableswap.NewRegistry(vault, lg),
		Farm:       farm.NewRegistry(vault, lg),
		Intent:     intent.NewRegistry(lg),
		Oracle:     oracleSrc,
	}

	reg := New()
	pallets := []Pallet{
		{Index: PalletOmnipool, Name: "omnipool", Handle: h.Omnipool},
		{Index: PalletXYK, Name: "xyk", Handle: h.XYK},
		{Index: PalletLBP, Name: "lbp", Handle: h.LBP},
		{Index: PalletStableswap, Name: "stableswap", Handle: h.Stableswap},
		{Index: PalletFarm, Name: "farm", Handle: h.Farm},
		{Index: PalletIntent, Name: "intent", Handle: h.Intent},
		{Index: PalletOracle, Name: "oracle", Handle: h.Oracle},
	}
	for _, p := range pallets {
		if err := reg.Register(p); err != nil {
			return nil, nil, err
		}
	}
	return reg, h, nil
}
