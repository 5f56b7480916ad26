// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package xyk implements the constant-product secondary AMM (spec.md
// §4.3, C7): a conventional two-asset `reserve_in * reserve_out` pool
// with a single flat fee, LP shares minted proportional to
// sqrt(reserve_a * reserve_b) on first deposit and pro rata thereafter,
// and an optional discount-swap path through a NATIVE-paired pool. It is
// grounded on the teacher's dex/pool_manager.go pool registry shape,
// generalized from Uniswap-v4-style concentrated liquidity ticks down to
// the simpler unticked constant-product pool original_source's XYK pallet
// implements.
package xyk

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/oracle"
	"github.com/luxfi/icedex/txn"
)

var (
	ErrPoolExists         = errors.New("xyk: pool already exists for this asset pair")
	ErrPoolNotFound       = errors.New("xyk: pool not found")
	ErrZeroAmount         = errors.New("xyk: zero amount")
	ErrInsufficientOut    = errors.New("xyk: amount_out below min_out")
	ErrExcessiveIn        = errors.New("xyk: amount_in above max_in")
	ErrSameAsset          = errors.New("xyk: asset_a equals asset_b")
	ErrInsufficientShares = errors.New("xyk: shares_to_remove exceeds lp's balance")
	ErrMinLiquidityNotMet = errors.New("xyk: minted shares below min_shares")
)

// PoolState is a single XYK pool's reserves and share issuance.
type PoolState struct {
	AssetA, AssetB asset.Id
	ReserveA       *mathkernel.Balance
	ReserveB       *mathkernel.Balance
	Shares         *mathkernel.Balance
	FeeBps         uint32
	LpShares       map[ledger.AccountId]*mathkernel.Balance
}

func (s *PoolState) clone() *PoolState {
	cp := *s
	cp.ReserveA = new(mathkernel.Balance).Set(s.ReserveA)
	cp.ReserveB = new(mathkernel.Balance).Set(s.ReserveB)
	cp.Shares = new(mathkernel.Balance).Set(s.Shares)
	cp.LpShares = make(map[ledger.AccountId]*mathkernel.Balance, len(s.LpShares))
	for who, amt := range s.LpShares {
		cp.LpShares[who] = new(mathkernel.Balance).Set(amt)
	}
	return &cp
}

func (s *PoolState) reserveOf(a asset.Id) *mathkernel.Balance {
	if a == s.AssetA {
		return s.ReserveA
	}
	return s.ReserveB
}

// pairKey orders (a, b) so (100, 200) and (200, 100) hash to the same
// pool, mirroring dex/types.go's PoolKey canonicalisation.
type pairKey struct{ a, b asset.Id }

func newPairKey(a, b asset.Id) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Registry holds every XYK pool, guarded the way dex/pool_manager.go
// guards its pool map.
type Registry struct {
	mu     sync.RWMutex
	vault  ledger.AccountId
	ledger ledger.Ledger
	pools  map[pairKey]*PoolState

	hasNative bool
	native    asset.Id
	oracleSrc oracle.Source
}

func NewRegistry(vault ledger.AccountId, lg ledger.Ledger) *Registry {
	return &Registry{vault: vault, ledger: lg, pools: make(map[pairKey]*PoolState)}
}

// NewRegistryWithDiscount behaves like NewRegistry but additionally enables
// the discount-swap leg: a Sell against a pool whose traded asset also has
// a NATIVE-paired pool in this same registry pays half that pool's flat
// fee, with the foregone half collected from the trader in NATIVE instead,
// priced through src. Callers with no NATIVE pool and no oracle feed keep
// using the plain NewRegistry constructor; the discount never activates
// without both present.
func NewRegistryWithDiscount(vault ledger.AccountId, lg ledger.Ledger, native asset.Id, src oracle.Source) *Registry {
	r := NewRegistry(vault, lg)
	r.hasNative = true
	r.native = native
	r.oracleSrc = src
	return r
}

// sellFee returns the fee actually charged for a sell of `in` for `out`
// against state, and whether that fee reflects the NATIVE discount: half
// of state.FeeBps applies whenever this registry has a native asset and
// oracle configured and a NATIVE-paired pool exists for `in`.
func (r *Registry) sellFee(in, out asset.Id, state *PoolState) (feeBps uint32, discount bool) {
	if !r.hasNative || r.oracleSrc == nil || in == r.native || out == r.native {
		return state.FeeBps, false
	}
	if _, ok := r.pools[newPairKey(in, r.native)]; !ok {
		return state.FeeBps, false
	}
	return state.FeeBps / 2, true
}

// chargeNativeDiscountFee collects the portion of state.FeeBps a
// discounted sell foregoes, converted into NATIVE at oracleSrc's short-
// period price and transferred from who to the vault. A sell whose
// foregone fee rounds to zero NATIVE (dust amountIn) charges nothing,
// matching SellOutGivenIn's own floor-rounding of the in-asset fee.
func (r *Registry) chargeNativeDiscountFee(who ledger.AccountId, in asset.Id, amountIn *mathkernel.Balance, fullFeeBps, discountFeeBps uint32) error {
	foregoneBps := fullFeeBps - discountFeeBps
	if foregoneBps == 0 {
		return nil
	}
	feeInAsset := new(big.Int).Mul(amountIn.ToBig(), big.NewInt(int64(foregoneBps)))
	feeInAsset.Quo(feeInAsset, big.NewInt(10000))
	if feeInAsset.Sign() == 0 {
		return nil
	}

	price, err := r.oracleSrc.Price(in, r.native, oracle.PeriodShort)
	if err != nil {
		return err
	}
	nativeAmount := new(big.Int).Mul(feeInAsset, price.N)
	nativeAmount.Quo(nativeAmount, price.D)
	nativeBal, err := mathkernel.BalanceFromBig(nativeAmount)
	if err != nil {
		return err
	}
	if nativeBal.IsZero() {
		return nil
	}
	return r.ledger.Transfer(who, r.vault, r.native, nativeBal)
}

// CreatePool opens a new pool seeded by who's initial deposit, minting
// sqrt(amountA * amountB) shares (the Uniswap-v2-style convention
// original_source's XYK pallet itself follows).
func (r *Registry) CreatePool(who ledger.AccountId, a, b asset.Id, amountA, amountB *mathkernel.Balance, feeBps uint32) (*PoolState, error) {
	if a == b {
		return nil, ErrSameAsset
	}
	if amountA.IsZero() || amountB.IsZero() {
		return nil, ErrZeroAmount
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := newPairKey(a, b)
	if _, exists := r.pools[key]; exists {
		return nil, ErrPoolExists
	}

	if err := r.ledger.Transfer(who, r.vault, a, amountA); err != nil {
		return nil, err
	}
	if err := r.ledger.Transfer(who, r.vault, b, amountB); err != nil {
		return nil, err
	}

	product := new(big.Int).Mul(amountA.ToBig(), amountB.ToBig())
	shares := new(big.Int).Sqrt(product)
	sharesBal, err := mathkernel.BalanceFromBig(shares)
	if err != nil {
		return nil, err
	}

	state := &PoolState{
		AssetA: a, AssetB: b,
		ReserveA: new(mathkernel.Balance).Set(amountA),
		ReserveB: new(mathkernel.Balance).Set(amountB),
		Shares:   sharesBal,
		FeeBps:   feeBps,
		LpShares: map[ledger.AccountId]*mathkernel.Balance{who: new(mathkernel.Balance).Set(sharesBal)},
	}
	r.pools[key] = state
	return state.clone(), nil
}

// AddLiquidity deposits amountADesired of a (and the matching proportional
// amount of b, computed from the pool's current reserve ratio) on who's
// behalf, minting shares pro rata to the pool's existing issuance — the
// same deposit convention CreatePool's geometric-mean mint generalizes to
// every deposit after the first (original_source's XYK pallet's own
// add_liquidity rule).
func (r *Registry) AddLiquidity(who ledger.AccountId, a, b asset.Id, amountADesired, minShares *mathkernel.Balance) (*mathkernel.Balance, error) {
	if amountADesired.IsZero() {
		return nil, ErrZeroAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.get(a, b)
	if err != nil {
		return nil, err
	}
	reserveA := state.reserveOf(a).ToBig()
	reserveB := state.reserveOf(b).ToBig()

	// amount_b = amount_a_desired * reserve_b / reserve_a, keeping the
	// deposit proportional to the pool's current ratio.
	amountBBig := new(big.Int).Mul(amountADesired.ToBig(), reserveB)
	amountBBig.Quo(amountBBig, reserveA)
	amountB, err := mathkernel.BalanceFromBig(amountBBig)
	if err != nil {
		return nil, err
	}

	// shares = amount_a_desired * total_shares / reserve_a
	sharesBig := new(big.Int).Mul(amountADesired.ToBig(), state.Shares.ToBig())
	sharesBig.Quo(sharesBig, reserveA)
	sharesBal, err := mathkernel.BalanceFromBig(sharesBig)
	if err != nil {
		return nil, err
	}
	if sharesBal.Lt(minShares) {
		return nil, ErrMinLiquidityNotMet
	}

	if err := r.ledger.Transfer(who, r.vault, a, amountADesired); err != nil {
		return nil, err
	}
	if err := r.ledger.Transfer(who, r.vault, b, amountB); err != nil {
		return nil, err
	}

	r.setReserves(state, a, b, new(big.Int).Add(reserveA, amountADesired.ToBig()), new(big.Int).Add(reserveB, amountBBig))
	state.Shares = new(mathkernel.Balance).Add(state.Shares, sharesBal)
	existing := state.LpShares[who]
	if existing == nil {
		existing = mathkernel.NewBalance(0)
	}
	state.LpShares[who] = new(mathkernel.Balance).Add(existing, sharesBal)
	return sharesBal, nil
}

// RemoveLiquidity burns sharesToRemove of who's LP position in pool (a, b),
// returning the pro-rata share of both reserves.
func (r *Registry) RemoveLiquidity(who ledger.AccountId, a, b asset.Id, sharesToRemove, minAmountA, minAmountB *mathkernel.Balance) (*mathkernel.Balance, *mathkernel.Balance, error) {
	if sharesToRemove.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.get(a, b)
	if err != nil {
		return nil, nil, err
	}
	owned := state.LpShares[who]
	if owned == nil || owned.Lt(sharesToRemove) {
		return nil, nil, ErrInsufficientShares
	}

	reserveA := state.reserveOf(a).ToBig()
	reserveB := state.reserveOf(b).ToBig()
	totalShares := state.Shares.ToBig()

	amountABig := new(big.Int).Mul(sharesToRemove.ToBig(), reserveA)
	amountABig.Quo(amountABig, totalShares)
	amountBBig := new(big.Int).Mul(sharesToRemove.ToBig(), reserveB)
	amountBBig.Quo(amountBBig, totalShares)

	amountA, err := mathkernel.BalanceFromBig(amountABig)
	if err != nil {
		return nil, nil, err
	}
	amountB, err := mathkernel.BalanceFromBig(amountBBig)
	if err != nil {
		return nil, nil, err
	}
	if amountA.Lt(minAmountA) || amountB.Lt(minAmountB) {
		return nil, nil, ErrInsufficientOut
	}

	if err := r.ledger.Transfer(r.vault, who, a, amountA); err != nil {
		return nil, nil, err
	}
	if err := r.ledger.Transfer(r.vault, who, b, amountB); err != nil {
		return nil, nil, err
	}

	r.setReserves(state, a, b, new(big.Int).Sub(reserveA, amountABig), new(big.Int).Sub(reserveB, amountBBig))
	state.Shares = new(mathkernel.Balance).Sub(state.Shares, sharesToRemove)
	state.LpShares[who] = new(mathkernel.Balance).Sub(owned, sharesToRemove)
	return amountA, amountB, nil
}

func (r *Registry) get(a, b asset.Id) (*PoolState, error) {
	state, ok := r.pools[newPairKey(a, b)]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return state, nil
}

// Sell executes a flat-fee constant-product sell of amountIn of `in` for
// `out`, crediting who at least minOut.
func (r *Registry) Sell(who ledger.AccountId, in, out asset.Id, amountIn, minOut *mathkernel.Balance) (*mathkernel.Balance, error) {
	if amountIn.IsZero() {
		return nil, ErrZeroAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.get(in, out)
	if err != nil {
		return nil, err
	}

	reserveIn := state.reserveOf(in).ToBig()
	reserveOut := state.reserveOf(out).ToBig()

	feeBps, discount := r.sellFee(in, out, state)
	amountOut := SellOutGivenIn(reserveIn, reserveOut, amountIn.ToBig(), feeBps)
	outBal, err := mathkernel.BalanceFromBig(amountOut)
	if err != nil {
		return nil, err
	}
	if outBal.Lt(minOut) {
		return nil, ErrInsufficientOut
	}

	if err := r.ledger.Transfer(who, r.vault, in, amountIn); err != nil {
		return nil, err
	}
	if err := r.ledger.Transfer(r.vault, who, out, outBal); err != nil {
		return nil, err
	}
	if discount {
		if err := r.chargeNativeDiscountFee(who, in, amountIn, state.FeeBps, feeBps); err != nil {
			return nil, err
		}
	}

	newIn := new(big.Int).Add(reserveIn, amountIn.ToBig())
	newOut := new(big.Int).Sub(reserveOut, amountOut)
	r.setReserves(state, in, out, newIn, newOut)
	return outBal, nil
}

// Buy executes a flat-fee constant-product buy of exactly amountOut of
// `out`, failing if the required input exceeds maxIn.
func (r *Registry) Buy(who ledger.AccountId, in, out asset.Id, amountOut, maxIn *mathkernel.Balance) (*mathkernel.Balance, error) {
	if amountOut.IsZero() {
		return nil, ErrZeroAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.get(in, out)
	if err != nil {
		return nil, err
	}
	reserveIn := state.reserveOf(in).ToBig()
	reserveOut := state.reserveOf(out).ToBig()

	amountIn := BuyInGivenOut(reserveIn, reserveOut, amountOut.ToBig(), state.FeeBps)
	inBal, err := mathkernel.BalanceFromBig(amountIn)
	if err != nil {
		return nil, err
	}
	if inBal.Gt(maxIn) {
		return nil, ErrExcessiveIn
	}

	if err := r.ledger.Transfer(who, r.vault, in, inBal); err != nil {
		return nil, err
	}
	if err := r.ledger.Transfer(r.vault, who, out, amountOut); err != nil {
		return nil, err
	}

	newIn := new(big.Int).Add(reserveIn, amountIn)
	newOut := new(big.Int).Sub(reserveOut, amountOut.ToBig())
	r.setReserves(state, in, out, newIn, newOut)
	return inBal, nil
}

func (r *Registry) setReserves(state *PoolState, in, out asset.Id, newIn, newOut *big.Int) {
	inBal, _ := mathkernel.BalanceFromBig(newIn)
	outBal, _ := mathkernel.BalanceFromBig(newOut)
	if in == state.AssetA {
		state.ReserveA = inBal
		state.ReserveB = outBal
	} else {
		state.ReserveB = inBal
		state.ReserveA = outBal
	}
}

// Pool returns a defensive copy of the pool state for (a, b).
func (r *Registry) Pool(a, b asset.Id) (*PoolState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, err := r.get(a, b)
	if err != nil {
		return nil, err
	}
	return state.clone(), nil
}

// Checkpoint deep-clones every pool's reserves so a later Restore can
// undo Sell/Buy's in-place reserve mutations (package txn's
// transactional-boundary contract).
func (r *Registry) Checkpoint() txn.Restorer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[pairKey]*PoolState, len(r.pools))
	for k, v := range r.pools {
		cp[k] = v.clone()
	}
	return &registrySnapshot{r: r, pools: cp}
}

type registrySnapshot struct {
	r     *Registry
	pools map[pairKey]*PoolState
}

func (s *registrySnapshot) Restore() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.pools = s.pools
}

var _ txn.Checkpointer = (*Registry)(nil)

// SellOutGivenIn computes the standard constant-product amount out,
// withholding feeBps from the input before applying the invariant — the
// conventional Uniswap-v2 fee-on-input convention.
func SellOutGivenIn(reserveIn, reserveOut, amountIn *big.Int, feeBps uint32) *big.Int {
	amountInAfterFee := new(big.Int).Mul(amountIn, big.NewInt(int64(10000-feeBps)))
	num := new(big.Int).Mul(amountInAfterFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, big.NewInt(10000))
	den.Add(den, amountInAfterFee)
	return new(big.Int).Quo(num, den)
}

// BuyInGivenOut inverts SellOutGivenIn, rounding the required input up
// (pool-favourable).
func BuyInGivenOut(reserveIn, reserveOut, amountOut *big.Int, feeBps uint32) *big.Int {
	num := new(big.Int).Mul(reserveIn, amountOut)
	num.Mul(num, big.NewInt(10000))
	den := new(big.Int).Sub(reserveOut, amountOut)
	den.Mul(den, big.NewInt(int64(10000-feeBps)))
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
