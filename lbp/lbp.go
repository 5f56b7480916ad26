// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lbp implements the liquidity bootstrapping pool (spec.md §4.3,
// C7): a two-asset pool whose weights move linearly from
// (initial_weight, final_weight) over a fixed block window, priced with
// the weighted constant-product formula, and whose fee switches from a
// punitive "repay fee" to its configured trading fee once a collected-fee
// accumulator crosses a configured repay target. Grounded on the
// teacher's dex/pool_manager.go registry shape and the two-slope
// interest-rate accumulator idiom in dex/interest_rate.go, adapted here
// from a time-based rate curve to a block-based weight curve.
package lbp

import (
	"errors"
	"math"
	"math/big"
	"sync"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/txn"
)

const MaxWeight = 100_000_000

// weight bounds clamp the interpolation to [2%, 98%] of MaxWeight
// (spec.md §4.3).
const (
	minWeightBound = MaxWeight * 2 / 100
	maxWeightBound = MaxWeight * 98 / 100
)

var (
	ErrPoolExists         = errors.New("lbp: pool already exists")
	ErrPoolNotFound       = errors.New("lbp: pool not found")
	ErrBeforeSaleStart    = errors.New("lbp: trading not yet open (block before start)")
	ErrAfterSaleEnd       = errors.New("lbp: trading closed (block after end)")
	ErrZeroAmount         = errors.New("lbp: zero amount")
	ErrInvalidWindow      = errors.New("lbp: start must be strictly before end")
	ErrExcessiveIn        = errors.New("lbp: amount_in above max_in")
	ErrInsufficientOut    = errors.New("lbp: amount_out below min_out")
	ErrInsufficientShares = errors.New("lbp: shares_to_remove exceeds lp's balance")
	ErrMinLiquidityNotMet = errors.New("lbp: minted shares below min_shares")
)

// Pool is a single LBP instance.
type Pool struct {
	AssetA, AssetB     asset.Id
	ReserveA, ReserveB *mathkernel.Balance
	Start, End         uint64 // block numbers
	InitialWeightA     uint64 // weight_a at Start, out of MaxWeight
	FinalWeightA       uint64 // weight_a at End, out of MaxWeight
	RepayFeeBps        uint32 // punitive fee charged before repay_target is met
	FeeBps             uint32 // configured fee charged afterward
	RepayTarget        *mathkernel.Balance
	CollectedFees      *mathkernel.Balance
	Shares             *mathkernel.Balance
	LpShares           map[ledger.AccountId]*mathkernel.Balance
}

func (p *Pool) clone() *Pool {
	cp := *p
	cp.ReserveA = new(mathkernel.Balance).Set(p.ReserveA)
	cp.ReserveB = new(mathkernel.Balance).Set(p.ReserveB)
	cp.CollectedFees = new(mathkernel.Balance).Set(p.CollectedFees)
	cp.Shares = new(mathkernel.Balance).Set(p.Shares)
	cp.LpShares = make(map[ledger.AccountId]*mathkernel.Balance, len(p.LpShares))
	for who, amt := range p.LpShares {
		cp.LpShares[who] = new(mathkernel.Balance).Set(amt)
	}
	return &cp
}

// WeightAt returns (weight_a, weight_b) at block, linearly interpolated
// between InitialWeightA and FinalWeightA over [Start, End] and clamped
// to [2%, 98%] of MaxWeight.
func (p *Pool) WeightAt(block uint64) (weightA, weightB uint64) {
	weightA = p.weightALinear(block)
	if weightA < minWeightBound {
		weightA = minWeightBound
	}
	if weightA > maxWeightBound {
		weightA = maxWeightBound
	}
	weightB = MaxWeight - weightA
	return
}

func (p *Pool) weightALinear(block uint64) uint64 {
	if block <= p.Start {
		return p.InitialWeightA
	}
	if block >= p.End {
		return p.FinalWeightA
	}
	span := p.End - p.Start
	elapsed := block - p.Start
	// weight_a(t) = initial + (final - initial) * elapsed / span, signed
	// to handle both ascending and descending schedules.
	delta := int64(p.FinalWeightA) - int64(p.InitialWeightA)
	offset := delta * int64(elapsed) / int64(span)
	return uint64(int64(p.InitialWeightA) + offset)
}

type pairKey struct{ a, b asset.Id }

func newPairKey(a, b asset.Id) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Registry holds every LBP instance.
type Registry struct {
	mu     sync.RWMutex
	vault  ledger.AccountId
	ledger ledger.Ledger
	pools  map[pairKey]*Pool
}

func NewRegistry(vault ledger.AccountId, lg ledger.Ledger) *Registry {
	return &Registry{vault: vault, ledger: lg, pools: make(map[pairKey]*Pool)}
}

// CreatePool opens a new LBP sale.
func (r *Registry) CreatePool(who ledger.AccountId, a, b asset.Id, amountA, amountB *mathkernel.Balance, start, end uint64, initialWeightA, finalWeightA uint64, repayFeeBps, feeBps uint32, repayTarget *mathkernel.Balance) (*Pool, error) {
	if start >= end {
		return nil, ErrInvalidWindow
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

	pool := &Pool{
		AssetA: a, AssetB: b,
		ReserveA: new(mathkernel.Balance).Set(amountA),
		ReserveB: new(mathkernel.Balance).Set(amountB),
		Start: start, End: end,
		InitialWeightA: initialWeightA,
		FinalWeightA:   finalWeightA,
		RepayFeeBps:    repayFeeBps,
		FeeBps:         feeBps,
		RepayTarget:    repayTarget,
		CollectedFees:  mathkernel.NewBalance(0),
		Shares:         sharesBal,
		LpShares:       map[ledger.AccountId]*mathkernel.Balance{who: new(mathkernel.Balance).Set(sharesBal)},
	}
	r.pools[key] = pool
	return pool.clone(), nil
}

// AddLiquidity deposits amountADesired of a (and the matching proportional
// amount of b, computed from the pool's current reserve ratio) on who's
// behalf, minting shares pro rata to the pool's existing issuance, the
// same convention xyk.Registry.AddLiquidity uses.
func (r *Registry) AddLiquidity(who ledger.AccountId, a, b asset.Id, amountADesired, minShares *mathkernel.Balance) (*mathkernel.Balance, error) {
	if amountADesired.IsZero() {
		return nil, ErrZeroAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.pools[newPairKey(a, b)]
	if !ok {
		return nil, ErrPoolNotFound
	}
	reserveA, reserveB := pool.ReserveA.ToBig(), pool.ReserveB.ToBig()
	if a != pool.AssetA {
		reserveA, reserveB = pool.ReserveB.ToBig(), pool.ReserveA.ToBig()
	}

	amountBBig := new(big.Int).Mul(amountADesired.ToBig(), reserveB)
	amountBBig.Quo(amountBBig, reserveA)
	amountB, err := mathkernel.BalanceFromBig(amountBBig)
	if err != nil {
		return nil, err
	}

	sharesBig := new(big.Int).Mul(amountADesired.ToBig(), pool.Shares.ToBig())
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

	newA := new(big.Int).Add(reserveA, amountADesired.ToBig())
	newB := new(big.Int).Add(reserveB, amountBBig)
	newABal, _ := mathkernel.BalanceFromBig(newA)
	newBBal, _ := mathkernel.BalanceFromBig(newB)
	if a == pool.AssetA {
		pool.ReserveA, pool.ReserveB = newABal, newBBal
	} else {
		pool.ReserveB, pool.ReserveA = newABal, newBBal
	}
	pool.Shares = new(mathkernel.Balance).Add(pool.Shares, sharesBal)
	existing := pool.LpShares[who]
	if existing == nil {
		existing = mathkernel.NewBalance(0)
	}
	pool.LpShares[who] = new(mathkernel.Balance).Add(existing, sharesBal)
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

	pool, ok := r.pools[newPairKey(a, b)]
	if !ok {
		return nil, nil, ErrPoolNotFound
	}
	owned := pool.LpShares[who]
	if owned == nil || owned.Lt(sharesToRemove) {
		return nil, nil, ErrInsufficientShares
	}

	reserveA, reserveB := pool.ReserveA.ToBig(), pool.ReserveB.ToBig()
	if a != pool.AssetA {
		reserveA, reserveB = pool.ReserveB.ToBig(), pool.ReserveA.ToBig()
	}
	totalShares := pool.Shares.ToBig()

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

	newA := new(big.Int).Sub(reserveA, amountABig)
	newB := new(big.Int).Sub(reserveB, amountBBig)
	newABal, _ := mathkernel.BalanceFromBig(newA)
	newBBal, _ := mathkernel.BalanceFromBig(newB)
	if a == pool.AssetA {
		pool.ReserveA, pool.ReserveB = newABal, newBBal
	} else {
		pool.ReserveB, pool.ReserveA = newABal, newBBal
	}
	pool.Shares = new(mathkernel.Balance).Sub(pool.Shares, sharesToRemove)
	pool.LpShares[who] = new(mathkernel.Balance).Sub(owned, sharesToRemove)
	return amountA, amountB, nil
}

// UpdatePoolData allows governance to adjust the sale window and weight
// schedule. It takes no fee parameters and does not check whether the
// sale has already started.
func (r *Registry) UpdatePoolData(a, b asset.Id, start, end *uint64, initialWeightA, finalWeightA *uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool, ok := r.pools[newPairKey(a, b)]
	if !ok {
		return ErrPoolNotFound
	}
	if start != nil {
		pool.Start = *start
	}
	if end != nil {
		pool.End = *end
	}
	if initialWeightA != nil {
		pool.InitialWeightA = *initialWeightA
	}
	if finalWeightA != nil {
		pool.FinalWeightA = *finalWeightA
	}
	return nil
}

// currentFeeBps returns RepayFeeBps until CollectedFees reaches
// RepayTarget, then FeeBps thereafter (spec.md §4.3).
func (p *Pool) currentFeeBps() uint32 {
	if p.CollectedFees.Lt(p.RepayTarget) {
		return p.RepayFeeBps
	}
	return p.FeeBps
}

// Sell executes a weighted sell of amountIn of `in` for `out` at the
// weights in effect at block.
func (r *Registry) Sell(who ledger.AccountId, in, out asset.Id, amountIn, minOut *mathkernel.Balance, block uint64) (*mathkernel.Balance, error) {
	if amountIn.IsZero() {
		return nil, ErrZeroAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.pools[newPairKey(in, out)]
	if !ok {
		return nil, ErrPoolNotFound
	}
	if block < pool.Start {
		return nil, ErrBeforeSaleStart
	}
	if block > pool.End {
		return nil, ErrAfterSaleEnd
	}

	weightA, weightB := pool.WeightAt(block)
	wIn, wOut := weightA, weightB
	reserveIn, reserveOut := pool.ReserveA.ToBig(), pool.ReserveB.ToBig()
	if in != pool.AssetA {
		wIn, wOut = weightB, weightA
		reserveIn, reserveOut = pool.ReserveB.ToBig(), pool.ReserveA.ToBig()
	}

	feeBps := pool.currentFeeBps()
	amountInAfterFee := new(big.Int).Mul(amountIn.ToBig(), big.NewInt(int64(10000-feeBps)))
	amountInAfterFee.Quo(amountInAfterFee, big.NewInt(10000))
	fee := new(big.Int).Sub(amountIn.ToBig(), amountInAfterFee)

	amountOut := weightedOutGivenIn(reserveIn, reserveOut, amountInAfterFee, wIn, wOut)
	outBal, err := mathkernel.BalanceFromBig(amountOut)
	if err != nil {
		return nil, err
	}
	if outBal.Lt(minOut) {
		return nil, errors.New("lbp: amount_out below min_out")
	}

	if err := r.ledger.Transfer(who, r.vault, in, amountIn); err != nil {
		return nil, err
	}
	if err := r.ledger.Transfer(r.vault, who, out, outBal); err != nil {
		return nil, err
	}

	feeBal, _ := mathkernel.BalanceFromBig(fee)
	pool.CollectedFees = new(mathkernel.Balance).Add(pool.CollectedFees, feeBal)

	newReserveIn := new(big.Int).Add(reserveIn, amountIn.ToBig())
	newReserveOut := new(big.Int).Sub(reserveOut, amountOut)
	newInBal, _ := mathkernel.BalanceFromBig(newReserveIn)
	newOutBal, _ := mathkernel.BalanceFromBig(newReserveOut)
	if in == pool.AssetA {
		pool.ReserveA, pool.ReserveB = newInBal, newOutBal
	} else {
		pool.ReserveB, pool.ReserveA = newInBal, newOutBal
	}
	return outBal, nil
}

// Buy executes a weighted buy of exactly amountOut of `out` at the
// weights in effect at block, inverting the same weighted invariant
// Sell uses, failing if the required input exceeds maxIn.
func (r *Registry) Buy(who ledger.AccountId, in, out asset.Id, amountOut, maxIn *mathkernel.Balance, block uint64) (*mathkernel.Balance, error) {
	if amountOut.IsZero() {
		return nil, ErrZeroAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.pools[newPairKey(in, out)]
	if !ok {
		return nil, ErrPoolNotFound
	}
	if block < pool.Start {
		return nil, ErrBeforeSaleStart
	}
	if block > pool.End {
		return nil, ErrAfterSaleEnd
	}

	weightA, weightB := pool.WeightAt(block)
	wIn, wOut := weightA, weightB
	reserveIn, reserveOut := pool.ReserveA.ToBig(), pool.ReserveB.ToBig()
	if in != pool.AssetA {
		wIn, wOut = weightB, weightA
		reserveIn, reserveOut = pool.ReserveB.ToBig(), pool.ReserveA.ToBig()
	}

	amountInAfterFee := weightedInGivenOut(reserveIn, reserveOut, amountOut.ToBig(), wIn, wOut)

	feeBps := pool.currentFeeBps()
	amountIn := new(big.Int).Mul(amountInAfterFee, big.NewInt(10000))
	amountIn.Quo(amountIn, big.NewInt(int64(10000-feeBps)))
	fee := new(big.Int).Sub(amountIn, amountInAfterFee)

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

	feeBal, _ := mathkernel.BalanceFromBig(fee)
	pool.CollectedFees = new(mathkernel.Balance).Add(pool.CollectedFees, feeBal)

	newReserveIn := new(big.Int).Add(reserveIn, amountIn)
	newReserveOut := new(big.Int).Sub(reserveOut, amountOut.ToBig())
	newInBal, _ := mathkernel.BalanceFromBig(newReserveIn)
	newOutBal, _ := mathkernel.BalanceFromBig(newReserveOut)
	if in == pool.AssetA {
		pool.ReserveA, pool.ReserveB = newInBal, newOutBal
	} else {
		pool.ReserveB, pool.ReserveA = newInBal, newOutBal
	}
	return inBal, nil
}

// Pool returns a defensive copy of the pool for (a, b).
func (r *Registry) Pool(a, b asset.Id) (*Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[newPairKey(a, b)]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return pool.clone(), nil
}

// Checkpoint deep-clones every pool so a later Restore can undo Sell's
// in-place reserve/fee-accumulator mutations (package txn's
// transactional-boundary contract).
func (r *Registry) Checkpoint() txn.Restorer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[pairKey]*Pool, len(r.pools))
	for k, v := range r.pools {
		cp[k] = v.clone()
	}
	return &registrySnapshot{r: r, pools: cp}
}

type registrySnapshot struct {
	r     *Registry
	pools map[pairKey]*Pool
}

func (s *registrySnapshot) Restore() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.pools = s.pools
}

var _ txn.Checkpointer = (*Registry)(nil)

// WeightedOutGivenIn exposes weightedOutGivenIn to callers outside the
// package (the sim compositor's adapter needs it to price a candidate
// sell without duplicating the weighted-invariant math).
func WeightedOutGivenIn(reserveIn, reserveOut, amountIn *big.Int, wIn, wOut uint64) *big.Int {
	return weightedOutGivenIn(reserveIn, reserveOut, amountIn, wIn, wOut)
}

// WeightedInGivenOut exposes weightedInGivenOut to callers outside the
// package, symmetrically with WeightedOutGivenIn.
func WeightedInGivenOut(reserveIn, reserveOut, amountOut *big.Int, wIn, wOut uint64) *big.Int {
	return weightedInGivenOut(reserveIn, reserveOut, amountOut, wIn, wOut)
}

// weightedOutGivenIn computes delta_out = R_out * (1 - (R_in / (R_in +
// delta_in))^(w_in/w_out)), the standard Balancer-style weighted
// invariant spec.md §4.3 names. Fixed point is used everywhere else in
// this module; the fractional exponent here is irreducibly
// transcendental, so the ratio base is carried at 256-bit big.Float
// precision but the exponentiation itself narrows to a float64 (base,
// exponent in, result out via math.Pow) before widening back to
// big.Float — the base/result are high-precision, the exponent step is
// not.
func weightedOutGivenIn(reserveIn, reserveOut, amountIn *big.Int, wIn, wOut uint64) *big.Int {
	const prec = 256
	rIn := new(big.Float).SetPrec(prec).SetInt(reserveIn)
	rOut := new(big.Float).SetPrec(prec).SetInt(reserveOut)
	dIn := new(big.Float).SetPrec(prec).SetInt(amountIn)

	base := new(big.Float).SetPrec(prec).Quo(rIn, new(big.Float).SetPrec(prec).Add(rIn, dIn))
	exp := float64(wIn) / float64(wOut)

	baseF, _ := base.Float64()
	powered := math.Pow(baseF, exp)

	factor := new(big.Float).SetPrec(prec).SetFloat64(1 - powered)
	result := new(big.Float).SetPrec(prec).Mul(rOut, factor)
	out, _ := result.Int(nil)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// weightedInGivenOut inverts weightedOutGivenIn: delta_in = R_in *
// ((R_out / (R_out - delta_out))^(w_out/w_in) - 1), the standard
// Balancer-style exact-output formula, through the same mixed-precision
// path as its sell-side counterpart (float64 at the math.Pow step, big.Float
// either side of it).
func weightedInGivenOut(reserveIn, reserveOut, amountOut *big.Int, wIn, wOut uint64) *big.Int {
	const prec = 256
	rIn := new(big.Float).SetPrec(prec).SetInt(reserveIn)
	rOut := new(big.Float).SetPrec(prec).SetInt(reserveOut)
	dOut := new(big.Float).SetPrec(prec).SetInt(amountOut)

	base := new(big.Float).SetPrec(prec).Quo(rOut, new(big.Float).SetPrec(prec).Sub(rOut, dOut))
	exp := float64(wOut) / float64(wIn)

	baseF, _ := base.Float64()
	powered := math.Pow(baseF, exp)

	factor := new(big.Float).SetPrec(prec).SetFloat64(powered - 1)
	result := new(big.Float).SetPrec(prec).Mul(rIn, factor)
	in, _ := result.Int(nil)
	if in.Sign() < 0 {
		return big.NewInt(0)
	}
	return in
}
