// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"sync"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/txn"
)

type balanceKey struct {
	who AccountId
	a   asset.Id
}

// Memory is an in-process Ledger implementation used by tests, the
// simulation compositor, and the standalone solver daemon. It holds no
// chain connection; production deployments wire a real multi-currency
// pallet behind the same Ledger interface instead.
type Memory struct {
	mu       sync.RWMutex
	free     map[balanceKey]*mathkernel.Balance
	reserved map[balanceKey]*mathkernel.Balance
	eds      map[asset.Id]*mathkernel.Balance
}

// NewMemory constructs an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		free:     make(map[balanceKey]*mathkernel.Balance),
		reserved: make(map[balanceKey]*mathkernel.Balance),
		eds:      make(map[asset.Id]*mathkernel.Balance),
	}
}

// SetExistentialDeposit configures the minimum balance for asset a.
func (m *Memory) SetExistentialDeposit(a asset.Id, amount *mathkernel.Balance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eds[a] = amount
}

// SeedFree credits who's free balance directly, bypassing Transfer/Mint
// checks. Used only to set up test and simulation fixtures.
func (m *Memory) SeedFree(who AccountId, a asset.Id, amount *mathkernel.Balance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.free[balanceKey{who, a}] = new(mathkernel.Balance).Set(amount)
}

func (m *Memory) FreeBalance(who AccountId, a asset.Id) *mathkernel.Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.free[balanceKey{who, a}]; ok {
		return new(mathkernel.Balance).Set(b)
	}
	return mathkernel.NewBalance(0)
}

func (m *Memory) ReservedBalance(who AccountId, a asset.Id) *mathkernel.Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.reserved[balanceKey{who, a}]; ok {
		return new(mathkernel.Balance).Set(b)
	}
	return mathkernel.NewBalance(0)
}

func (m *Memory) ExistentialDeposit(a asset.Id) *mathkernel.Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ed, ok := m.eds[a]; ok {
		return new(mathkernel.Balance).Set(ed)
	}
	return mathkernel.NewBalance(0)
}

func (m *Memory) Transfer(from, to AccountId, a asset.Id, amount *mathkernel.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fromKey := balanceKey{from, a}
	fromBal := m.free[fromKey]
	if fromBal == nil {
		fromBal = mathkernel.NewBalance(0)
	}
	if fromBal.Lt(amount) {
		return ErrInsufficientBalance
	}
	remaining := new(mathkernel.Balance).Sub(fromBal, amount)
	if ed, ok := m.eds[a]; ok && !remaining.IsZero() && remaining.Lt(ed) {
		return ErrBelowExistentialDeposit
	}
	m.free[fromKey] = remaining

	toKey := balanceKey{to, a}
	toBal := m.free[toKey]
	if toBal == nil {
		toBal = mathkernel.NewBalance(0)
	}
	m.free[toKey] = new(mathkernel.Balance).Add(toBal, amount)
	return nil
}

func (m *Memory) Reserve(who AccountId, a asset.Id, amount *mathkernel.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := balanceKey{who, a}
	freeBal := m.free[key]
	if freeBal == nil {
		freeBal = mathkernel.NewBalance(0)
	}
	if freeBal.Lt(amount) {
		return ErrInsufficientBalance
	}
	m.free[key] = new(mathkernel.Balance).Sub(freeBal, amount)

	resBal := m.reserved[key]
	if resBal == nil {
		resBal = mathkernel.NewBalance(0)
	}
	m.reserved[key] = new(mathkernel.Balance).Add(resBal, amount)
	return nil
}

func (m *Memory) Unreserve(who AccountId, a asset.Id, amount *mathkernel.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := balanceKey{who, a}
	resBal := m.reserved[key]
	if resBal == nil || resBal.Lt(amount) {
		return ErrInsufficientReserve
	}
	m.reserved[key] = new(mathkernel.Balance).Sub(resBal, amount)

	freeBal := m.free[key]
	if freeBal == nil {
		freeBal = mathkernel.NewBalance(0)
	}
	m.free[key] = new(mathkernel.Balance).Add(freeBal, amount)
	return nil
}

func (m *Memory) SlashReserved(who AccountId, a asset.Id, amount *mathkernel.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := balanceKey{who, a}
	resBal := m.reserved[key]
	if resBal == nil || resBal.Lt(amount) {
		return ErrInsufficientReserve
	}
	m.reserved[key] = new(mathkernel.Balance).Sub(resBal, amount)
	return nil
}

func (m *Memory) Mint(who AccountId, a asset.Id, amount *mathkernel.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := balanceKey{who, a}
	bal := m.free[key]
	if bal == nil {
		bal = mathkernel.NewBalance(0)
	}
	m.free[key] = new(mathkernel.Balance).Add(bal, amount)
	return nil
}

// Checkpoint snapshots every balance so a later Restore can undo whatever
// Transfer/Reserve/Unreserve/SlashReserved/Mint calls happen in between
// (package txn's transactional-boundary contract).
func (m *Memory) Checkpoint() txn.Restorer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	free := make(map[balanceKey]*mathkernel.Balance, len(m.free))
	for k, v := range m.free {
		free[k] = new(mathkernel.Balance).Set(v)
	}
	reserved := make(map[balanceKey]*mathkernel.Balance, len(m.reserved))
	for k, v := range m.reserved {
		reserved[k] = new(mathkernel.Balance).Set(v)
	}
	return &memorySnapshot{m: m, free: free, reserved: reserved}
}

type memorySnapshot struct {
	m              *Memory
	free, reserved map[balanceKey]*mathkernel.Balance
}

func (s *memorySnapshot) Restore() {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.free = s.free
	s.m.reserved = s.reserved
}

var _ Ledger = (*Memory)(nil)
var _ txn.Checkpointer = (*Memory)(nil)
