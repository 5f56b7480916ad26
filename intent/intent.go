// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package intent implements the intent registry (spec.md §4.5, C9): an
// append-only store of unmatched user intents, each with its declared
// input reserved on the ledger for as long as the intent lives. Grounded
// on the teacher's position-bookkeeping shape in dex/pool_manager.go
// (a guarded map plus a monotone id counter), generalized here from LP
// positions to intents whose id additionally encodes a deadline bucket
// so expired intents sort and sweep together.
package intent

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/txn"
)

var (
	ErrNotOwner             = errors.New("intent: not the intent's account")
	ErrIntentNotFound       = errors.New("intent: not found")
	ErrIntentExpired        = errors.New("intent: deadline has passed, use expire_sweep")
	ErrDuplicateIntent      = errors.New("intent: duplicate id")
	ErrZeroAmount           = errors.New("intent: zero amount")
	ErrUnknownKind          = errors.New("intent: unknown kind")
	ErrAmountExceedsReserve = errors.New("intent: executed amount exceeds the intent's reserved input")
)

// Kind discriminates an Intent's payload. spec.md §3 declares kind
// extensible ("Swap | <extensible>"); Swap is the only concrete kind this
// module implements end to end, so Kind carries a single value today
// rather than a second kind with no solver/verifier/executor completion
// path.
type Kind uint8

const (
	KindSwap Kind = iota
)

// SwapType distinguishes an exact-input from an exact-output swap.
type SwapType uint8

const (
	ExactIn SwapType = iota
	ExactOut
)

// Swap is the payload of a KindSwap intent.
type Swap struct {
	AssetIn, AssetOut asset.Id
	AmountIn          *mathkernel.Balance // exact input (ExactIn) or max input willing to pay (ExactOut)
	AmountOut         *mathkernel.Balance // min acceptable output (ExactIn) or exact desired output (ExactOut)
	SwapType          SwapType
	Partial           bool
}

// Callback is an opaque, pallet-defined selector a solution's execution
// result is dispatched to; it is a stored tag rather than a Go function
// value, since on-chain state must stay plainly representable and
// replayable, never carry a closure.
type Callback uint64

// Id is spec.md's 128-bit monotone intent id: a deadline-bucket high half
// so expired intents compare and sort together, and a strictly
// increasing sequence low half so ids are never reused.
type Id [16]byte

func newId(deadlineBucket, seq uint64) Id {
	var id Id
	binary.BigEndian.PutUint64(id[:8], deadlineBucket)
	binary.BigEndian.PutUint64(id[8:], seq)
	return id
}

// DeadlineBucketSpan buckets absolute timestamps into coarse windows so
// that intents sharing a deadline window carry adjacent ids.
const DeadlineBucketSpan = 600

func deadlineBucket(deadline uint64) uint64 { return deadline / DeadlineBucketSpan }

// Intent is a user's declaration to trade subject to
// a bound and an absolute deadline (spec.md §8's "Intent").
type Intent struct {
	Id           Id
	Account      ledger.AccountId
	Kind         Kind
	Swap         *Swap
	Deadline     uint64
	OnSuccess    Callback
	OnFailure    Callback
	HasCallbacks bool
}

func (i *Intent) clone() *Intent {
	cp := *i
	if i.Swap != nil {
		s := *i.Swap
		s.AmountIn = new(mathkernel.Balance).Set(i.Swap.AmountIn)
		s.AmountOut = new(mathkernel.Balance).Set(i.Swap.AmountOut)
		cp.Swap = &s
	}
	return &cp
}

// reservedLeg returns the asset and amount this intent has locked on the
// ledger, used both to reserve on submit and to refund on
// cancel/expire/withdraw.
func (i *Intent) reservedLeg() (asset.Id, *mathkernel.Balance) {
	return i.Swap.AssetIn, i.Swap.AmountIn
}

// Event is the typed event surface for intent-registry mutations.
type Event interface{ isEvent() }

type IntentSubmitted struct {
	Id      Id
	Account ledger.AccountId
}
type IntentCancelled struct{ Id Id }
type IntentsExpired struct{ Ids []Id }

func (IntentSubmitted) isEvent() {}
func (IntentCancelled) isEvent() {}
func (IntentsExpired) isEvent()  {}

// Registry is the append-only intent store.
type Registry struct {
	mu      sync.RWMutex
	ledger  ledger.Ledger
	intents map[Id]*Intent
	nextSeq uint64
	events  []Event
}

func NewRegistry(lg ledger.Ledger) *Registry {
	return &Registry{ledger: lg, intents: make(map[Id]*Intent)}
}

func (r *Registry) emit(e Event) { r.events = append(r.events, e) }

// Events drains and returns every event recorded since the last call.
func (r *Registry) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

// Submit assigns a monotone id, reserves the intent's declared input on
// the ledger, and records the intent.
func (r *Registry) Submit(account ledger.AccountId, kind Kind, swap *Swap, deadline uint64) (Id, error) {
	if kind != KindSwap || swap == nil {
		return Id{}, ErrUnknownKind
	}
	amount := swap.AmountIn
	if amount.IsZero() {
		return Id{}, ErrZeroAmount
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ledger.Reserve(account, swap.AssetIn, amount); err != nil {
		return Id{}, err
	}

	r.nextSeq++
	id := newId(deadlineBucket(deadline), r.nextSeq)
	if _, exists := r.intents[id]; exists {
		return Id{}, ErrDuplicateIntent
	}

	intent := &Intent{
		Id: id, Account: account, Kind: kind,
		Swap:     swap,
		Deadline: deadline,
	}
	r.intents[id] = intent
	r.emit(IntentSubmitted{Id: id, Account: account})
	return id, nil
}

// Cancel releases an intent's reserve and removes it. Owner-only, and
// only before its deadline — once expired, expire_sweep is the only
// path to removal (spec.md §4.5).
func (r *Registry) Cancel(account ledger.AccountId, id Id, atTimestamp uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, ok := r.intents[id]
	if !ok {
		return ErrIntentNotFound
	}
	if intent.Account != account {
		return ErrNotOwner
	}
	if atTimestamp >= intent.Deadline {
		return ErrIntentExpired
	}

	leg, amount := intent.reservedLeg()
	if err := r.ledger.Unreserve(account, leg, amount); err != nil {
		return err
	}
	delete(r.intents, id)
	r.emit(IntentCancelled{Id: id})
	return nil
}

// ExpireSweep releases reserves and removes every intent whose deadline
// is at or before upToTimestamp. Idempotent: a second call with the same
// or smaller timestamp finds nothing left to sweep.
func (r *Registry) ExpireSweep(upToTimestamp uint64) ([]Id, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var swept []Id
	for id, intent := range r.intents {
		if intent.Deadline > upToTimestamp {
			continue
		}
		leg, amount := intent.reservedLeg()
		if err := r.ledger.Unreserve(intent.Account, leg, amount); err != nil {
			return swept, err
		}
		delete(r.intents, id)
		swept = append(swept, id)
	}
	if len(swept) > 0 {
		r.emit(IntentsExpired{Ids: swept})
	}
	return swept, nil
}

// Resolve removes an executed intent from the registry: any portion of its
// reserve the executor did not end up spending (executedAmountIn short of
// the full reserved input, e.g. a partial fill) is released back to the
// owner's free balance; the executed portion is left reserved for the
// caller (the executor, spec.md §4.8 step 1) to settle: it slashes that
// portion for a directly netted pair, and unreserves it before running
// the AMM trade for a routed one.
func (r *Registry) Resolve(id Id, executedAmountIn *mathkernel.Balance) (*Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	leg, reserved := it.reservedLeg()
	if executedAmountIn.Gt(reserved) {
		return nil, ErrAmountExceedsReserve
	}
	remainder := new(mathkernel.Balance).Sub(reserved, executedAmountIn)
	if !remainder.IsZero() {
		if err := r.ledger.Unreserve(it.Account, leg, remainder); err != nil {
			return nil, err
		}
	}
	delete(r.intents, id)
	return it.clone(), nil
}

// Get returns a defensive copy of the intent with the given id.
func (r *Registry) Get(id Id) (*Intent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	intent, ok := r.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return intent.clone(), nil
}

// Checkpoint snapshots the registry's intent set so a later Restore can
// undo whatever Resolve/Cancel/ExpireSweep calls happen in between
// (package txn's transactional-boundary contract). Existing *Intent
// values are never mutated in place once stored, only removed, so a
// shallow copy of the map is enough to undo a deletion.
func (r *Registry) Checkpoint() txn.Restorer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[Id]*Intent, len(r.intents))
	for id, it := range r.intents {
		cp[id] = it
	}
	return &registrySnapshot{r: r, intents: cp}
}

type registrySnapshot struct {
	r       *Registry
	intents map[Id]*Intent
}

func (s *registrySnapshot) Restore() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.intents = s.intents
}

var _ txn.Checkpointer = (*Registry)(nil)

// IterLive returns every intent whose deadline is strictly after
// atTimestamp, in no particular order (callers that need deadline order
// should sort by Id, whose high bits are the deadline bucket).
func (r *Registry) IterLive(atTimestamp uint64) []*Intent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Intent, 0, len(r.intents))
	for _, intent := range r.intents {
		if intent.Deadline > atTimestamp {
			out = append(out, intent.clone())
		}
	}
	return out
}
