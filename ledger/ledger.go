// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger specifies the multi-currency balance contract every
// pallet in this module treats as an external dependency (spec.md §2, C3).
// It is grounded on the teacher's StateDB interface (dex/pool_manager.go):
// the same "narrow interface the pallet depends on, never the concrete
// chain state" shape, generalized from a single EVM account/storage model
// to a multi-currency balance ledger with reserve/lock semantics.
package ledger

import (
	"errors"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/mathkernel"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrInsufficientReserve = errors.New("ledger: insufficient reserved balance")
	ErrBelowExistentialDeposit = errors.New("ledger: below existential deposit")
)

// AccountId identifies a ledger account. The runtime is agnostic to its
// concrete encoding (SS58, H160, ...); it is only ever compared for
// equality and used as a map key.
type AccountId [32]byte

// Ledger is the multi-currency balance contract. Every pallet that moves
// value (Omnipool, XYK, LBP, Stableswap, the intent registry, the
// executor) depends on this interface rather than a concrete
// implementation, exactly as the teacher's precompiles depend on StateDB
// rather than a concrete trie.
type Ledger interface {
	// FreeBalance returns the spendable (non-reserved) balance of who in
	// asset a.
	FreeBalance(who AccountId, a asset.Id) *mathkernel.Balance

	// Transfer moves amount of asset a from `from`'s free balance to
	// `to`'s free balance. Existential-deposit rules on `from` are
	// enforced per asset.Id-specific ExistentialDeposit.
	Transfer(from, to AccountId, a asset.Id, amount *mathkernel.Balance) error

	// Reserve moves amount out of who's free balance into their reserved
	// balance (used by the intent registry to lock an intent's declared
	// input, spec.md §4.5).
	Reserve(who AccountId, a asset.Id, amount *mathkernel.Balance) error

	// Unreserve moves amount back from who's reserved balance into their
	// free balance (cancellation or refund on expiry).
	Unreserve(who AccountId, a asset.Id, amount *mathkernel.Balance) error

	// SlashReserved removes amount from who's reserved balance without
	// crediting anyone (used when the executor debits a resolved
	// intent's reserved input directly into a trade).
	SlashReserved(who AccountId, a asset.Id, amount *mathkernel.Balance) error

	// Mint credits amount of asset a to who's free balance out of thin
	// air; the executor's direct-netting settlement pairs each Mint with a
	// SlashReserved on the counterparty (LP share issuance is tracked by
	// the pools themselves, not the ledger).
	Mint(who AccountId, a asset.Id, amount *mathkernel.Balance) error

	// ExistentialDeposit returns the minimum free balance an account must
	// retain in asset a once touched.
	ExistentialDeposit(a asset.Id) *mathkernel.Balance
}
