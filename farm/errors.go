// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import "errors"

var (
	// Authorisation
	ErrBadOrigin = errors.New("farm: bad origin")
	ErrNotOwner  = errors.New("farm: not the farm owner")

	// Input validity
	ErrZeroAmount      = errors.New("farm: zero amount")
	ErrNothingToUpdate = errors.New("farm: nothing to update")

	// Capacity
	ErrMaxEntriesPerDeposit = errors.New("farm: max entries per deposit reached")

	// Lifecycle
	ErrFarmNotFound            = errors.New("farm: global farm not found")
	ErrYieldFarmNotFound       = errors.New("farm: yield farm not found")
	ErrYieldFarmEntryNotFound  = errors.New("farm: yield farm entry not found")
	ErrDepositNotFound         = errors.New("farm: deposit not found")
	ErrDoubleLock              = errors.New("farm: deposit already locked into this yield farm")
	ErrYieldFarmNotActive      = errors.New("farm: yield farm is not active")
	ErrYieldFarmAlreadyStopped = errors.New("farm: yield farm already stopped")
	ErrGlobalFarmHasYieldFarms = errors.New("farm: global farm still has living yield farms")
	ErrFarmNotTerminated       = errors.New("farm: farm is not terminated")
	ErrFarmHasEntries          = errors.New("farm: farm still has deposit entries")

	// Arithmetic / consistency
	ErrOverflow             = errors.New("farm: overflow")
	ErrInvalidFarmId        = errors.New("farm: invalid farm id")
	ErrInvalidPeriod        = errors.New("farm: invalid period")
	ErrInvalidTotalSharesZ  = errors.New("farm: invalid total shares z")
)
