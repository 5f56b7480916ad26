// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"
	"testing"
)

func TestRegisterSortsPalletsByIndexRegardlessOfRegistrationOrder(t *testing.T) {
	reg := New()
	if err := reg.Register(Pallet{Index: PalletSolver, Name: "solver"}); err != nil {
		t.Fatalf("register solver: %v", err)
	}
	if err := reg.Register(Pallet{Index: PalletOmnipool, Name: "omnipool"}); err != nil {
		t.Fatalf("register omnipool: %v", err)
	}
	if err := reg.Register(Pallet{Index: PalletIntent, Name: "intent"}); err != nil {
		t.Fatalf("register intent: %v", err)
	}

	got := reg.Pallets()
	want := []string{"omnipool", "intent", "solver"}
	if len(got) != len(want) {
		t.Fatalf("len(Pallets()) = %d, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("Pallets()[%d].Name = %q, want %q", i, got[i].Name, name)
		}
	}
}

func TestRegisterRejectsDuplicateIndex(t *testing.T) {
	reg := New()
	if err := reg.Register(Pallet{Index: PalletXYK, Name: "xyk"}); err != nil {
		t.Fatalf("register xyk: %v", err)
	}
	err := reg.Register(Pallet{Index: PalletXYK, Name: "xyk-again"})
	if !errors.Is(err, ErrDuplicateIndex) {
		t.Fatalf("expected ErrDuplicateIndex, got %v", err)
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	reg := New()
	if err := reg.Register(Pallet{Index: PalletLBP, Name: "lbp"}); err != nil {
		t.Fatalf("register lbp: %v", err)
	}
	err := reg.Register(Pallet{Index: PalletStableswap, Name: "lbp"})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestByIndexAndByNameLookup(t *testing.T) {
	reg := New()
	handle := struct{ marker int }{marker: 7}
	if err := reg.Register(Pallet{Index: PalletOracle, Name: "oracle", Handle: &handle}); err != nil {
		t.Fatalf("register oracle: %v", err)
	}

	p, ok := reg.ByIndex(PalletOracle)
	if !ok || p.Name != "oracle" {
		t.Fatalf("ByIndex(PalletOracle) = %+v, %v", p, ok)
	}
	p, ok = reg.ByName("oracle")
	if !ok || p.Index != PalletOracle {
		t.Fatalf("ByName(\"oracle\") = %+v, %v", p, ok)
	}
	if _, ok := reg.ByName("missing"); ok {
		t.Fatalf("ByName(\"missing\") should not be found")
	}
}
