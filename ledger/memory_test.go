// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"testing"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/mathkernel"
)

func TestReserveUnreserveRoundTrip(t *testing.T) {
	m := NewMemory()
	alice := AccountId{1}
	m.SeedFree(alice, 100, mathkernel.NewBalance(1000))

	if err := m.Reserve(alice, 100, mathkernel.NewBalance(400)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := m.FreeBalance(alice, 100).Uint64(); got != 600 {
		t.Fatalf("free balance = %d, want 600", got)
	}
	if got := m.ReservedBalance(alice, 100).Uint64(); got != 400 {
		t.Fatalf("reserved balance = %d, want 400", got)
	}

	if err := m.Unreserve(alice, 100, mathkernel.NewBalance(400)); err != nil {
		t.Fatalf("unreserve: %v", err)
	}
	if got := m.FreeBalance(alice, 100).Uint64(); got != 1000 {
		t.Fatalf("free balance after unreserve = %d, want 1000", got)
	}
}

func TestReserveInsufficientBalance(t *testing.T) {
	m := NewMemory()
	alice := AccountId{1}
	m.SeedFree(alice, 100, mathkernel.NewBalance(10))
	if err := m.Reserve(alice, 100, mathkernel.NewBalance(20)); err != ErrInsufficientBalance {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestTransferBelowExistentialDeposit(t *testing.T) {
	m := NewMemory()
	m.SetExistentialDeposit(100, mathkernel.NewBalance(50))
	alice := AccountId{1}
	bob := AccountId{2}
	m.SeedFree(alice, 100, mathkernel.NewBalance(60))
	if err := m.Transfer(alice, bob, 100, mathkernel.NewBalance(20)); err != ErrBelowExistentialDeposit {
		t.Fatalf("got %v, want ErrBelowExistentialDeposit", err)
	}
}

func TestSlashReserved(t *testing.T) {
	m := NewMemory()
	alice := AccountId{1}
	m.SeedFree(alice, asset.Hub, mathkernel.NewBalance(100))
	if err := m.Reserve(alice, asset.Hub, mathkernel.NewBalance(100)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := m.SlashReserved(alice, asset.Hub, mathkernel.NewBalance(100)); err != nil {
		t.Fatalf("slash: %v", err)
	}
	if got := m.ReservedBalance(alice, asset.Hub).Uint64(); got != 0 {
		t.Fatalf("reserved balance = %d, want 0", got)
	}
}
