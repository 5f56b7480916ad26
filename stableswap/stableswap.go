// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package stableswap implements the Curve-style N-asset AMM (spec.md
// §4.3, C7): a pool of N >= 2 assets assumed to trade near parity, priced
// by the StableSwap invariant with a per-pool amplification coefficient,
// solved by Newton's method in integer arithmetic rather than the
// constant-product formula the other AMMs in this module use. Grounded
// on the teacher's dex/pool_manager.go registry shape for the pool
// lifecycle, and on original_source's stableswap pallet for the
// invariant's shape (amplification-weighted sum-of-balances term plus a
// product term) since no Go-idiomatic reference for it exists anywhere
// else in the retrieved pack.
package stableswap

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/txn"
)

var (
	ErrPoolExists      = errors.New("stableswap: pool already exists")
	ErrPoolNotFound    = errors.New("stableswap: pool not found")
	ErrTooFewAssets    = errors.New("stableswap: pool needs at least 2 assets")
	ErrAssetNotInPool  = errors.New("stableswap: asset not in pool")
	ErrZeroAmount      = errors.New("stableswap: zero amount")
	ErrSameAsset       = errors.New("stableswap: asset_in equals asset_out")
	ErrInsufficientOut = errors.New("stableswap: amount_out below min_out")
	ErrDidNotConverge  = errors.New("stableswap: Newton iteration did not converge")
)

const newtonMaxIterations = 255

// Pool is an N-asset StableSwap pool keyed by a stable pool id (distinct
// from the pairwise keying XYK/LBP use, since N can exceed 2).
type Pool struct {
	ID             uint32
	Assets         []asset.Id
	Balances       []*mathkernel.Balance
	Amplification  uint64
	FeeBps         uint32
	Shares         *mathkernel.Balance
}

func (p *Pool) clone() *Pool {
	cp := *p
	cp.Assets = append([]asset.Id(nil), p.Assets...)
	cp.Balances = make([]*mathkernel.Balance, len(p.Balances))
	for i, b := range p.Balances {
		cp.Balances[i] = new(mathkernel.Balance).Set(b)
	}
	cp.Shares = new(mathkernel.Balance).Set(p.Shares)
	return &cp
}

func (p *Pool) indexOf(a asset.Id) int {
	for i, id := range p.Assets {
		if id == a {
			return i
		}
	}
	return -1
}

// IndexOf exposes indexOf to callers outside the package (the sim
// compositor's adapter needs it to validate a requested leg without
// duplicating the pool's asset list).
func (p *Pool) IndexOf(a asset.Id) int { return p.indexOf(a) }

// Registry holds every Stableswap pool.
type Registry struct {
	mu     sync.RWMutex
	vault  ledger.AccountId
	ledger ledger.Ledger
	pools  map[uint32]*Pool
	nextID uint32
}

func NewRegistry(vault ledger.AccountId, lg ledger.Ledger) *Registry {
	return &Registry{vault: vault, ledger: lg, pools: make(map[uint32]*Pool)}
}

// CreatePool opens a new N-asset pool seeded by who's initial balanced
// deposit. Shares are minted equal to D, the invariant's own
// balanced-liquidity measure, exactly as original_source's stableswap
// pallet does for a pool's first deposit.
func (r *Registry) CreatePool(who ledger.AccountId, assets []asset.Id, amounts []*mathkernel.Balance, amplification uint64, feeBps uint32) (*Pool, error) {
	if len(assets) < 2 || len(assets) != len(amounts) {
		return nil, ErrTooFewAssets
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, a := range assets {
		if err := r.ledger.Transfer(who, r.vault, a, amounts[i]); err != nil {
			return nil, err
		}
	}

	balancesBig := make([]*big.Int, len(amounts))
	for i, a := range amounts {
		balancesBig[i] = a.ToBig()
	}
	d, err := getD(balancesBig, amplification)
	if err != nil {
		return nil, err
	}
	shares, err := mathkernel.BalanceFromBig(d)
	if err != nil {
		return nil, err
	}

	r.nextID++
	pool := &Pool{
		ID:            r.nextID,
		Assets:        append([]asset.Id(nil), assets...),
		Balances:      cloneBalances(amounts),
		Amplification: amplification,
		FeeBps:        feeBps,
		Shares:        shares,
	}
	r.pools[pool.ID] = pool
	return pool.clone(), nil
}

func cloneBalances(in []*mathkernel.Balance) []*mathkernel.Balance {
	out := make([]*mathkernel.Balance, len(in))
	for i, b := range in {
		out[i] = new(mathkernel.Balance).Set(b)
	}
	return out
}

// Sell executes a sell of amountIn of `in` for `out` within pool poolID.
func (r *Registry) Sell(who ledger.AccountId, poolID uint32, in, out asset.Id, amountIn, minOut *mathkernel.Balance) (*mathkernel.Balance, error) {
	if in == out {
		return nil, ErrSameAsset
	}
	if amountIn.IsZero() {
		return nil, ErrZeroAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.pools[poolID]
	if !ok {
		return nil, ErrPoolNotFound
	}

	outBal, newBalances, err := SimulateSellPure(pool, in, out, amountIn)
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

	pool.Balances = newBalances
	return outBal, nil
}

// SimulateSellPure computes the post-trade balances and amount out for a
// sell of amountIn of `in` for `out` within pool, without touching the
// ledger or the registry lock. Registry.Sell and sim.StableswapSim both
// delegate to this so the invariant math has a single source of truth,
// the same split omnipool/pure.go uses for Omnipool.
func SimulateSellPure(pool *Pool, in, out asset.Id, amountIn *mathkernel.Balance) (*mathkernel.Balance, []*mathkernel.Balance, error) {
	iIdx := pool.indexOf(in)
	jIdx := pool.indexOf(out)
	if iIdx < 0 || jIdx < 0 {
		return nil, nil, ErrAssetNotInPool
	}

	balances := make([]*big.Int, len(pool.Balances))
	for k, b := range pool.Balances {
		balances[k] = b.ToBig()
	}

	newIn := new(big.Int).Add(balances[iIdx], amountIn.ToBig())
	newOutBalance, err := getY(iIdx, jIdx, newIn, balances, pool.Amplification)
	if err != nil {
		return nil, nil, err
	}

	grossOut := new(big.Int).Sub(balances[jIdx], newOutBalance)
	if grossOut.Sign() <= 0 {
		return nil, nil, ErrInsufficientOut
	}
	fee := new(big.Int).Mul(grossOut, big.NewInt(int64(pool.FeeBps)))
	fee.Quo(fee, big.NewInt(10000))
	netOut := new(big.Int).Sub(grossOut, fee)

	outBal, err := mathkernel.BalanceFromBig(netOut)
	if err != nil {
		return nil, nil, err
	}

	newInBal, err := mathkernel.BalanceFromBig(newIn)
	if err != nil {
		return nil, nil, err
	}
	newOutBalFinal, err := mathkernel.BalanceFromBig(new(big.Int).Add(newOutBalance, fee))
	if err != nil {
		return nil, nil, err
	}

	next := cloneBalances(pool.Balances)
	next[iIdx] = newInBal
	next[jIdx] = newOutBalFinal
	return outBal, next, nil
}

// Pool returns a defensive copy of the pool with the given id.
func (r *Registry) Pool(id uint32) (*Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[id]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return pool.clone(), nil
}

// Checkpoint deep-clones every pool so a later Restore can undo Sell's
// in-place balance mutations (package txn's transactional-boundary
// contract).
func (r *Registry) Checkpoint() txn.Restorer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[uint32]*Pool, len(r.pools))
	for k, v := range r.pools {
		cp[k] = v.clone()
	}
	return &registrySnapshot{r: r, pools: cp}
}

type registrySnapshot struct {
	r     *Registry
	pools map[uint32]*Pool
}

func (s *registrySnapshot) Restore() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.pools = s.pools
}

var _ txn.Checkpointer = (*Registry)(nil)

// getD solves the StableSwap invariant for D given the current balances
// and amplification, via Newton's method:
//
//	A*n^n*sum(x) + D = A*D*n^n + D^(n+1) / (n^n * prod(x))
//
// Iterated in the standard Curve form: D_next = (A*n^n*S + n*D_p) * D /
// ((A*n^n - 1)*D + (n+1)*D_p), where D_p = D^(n+1) / (n^n * prod(x)).
func getD(balances []*big.Int, amp uint64) (*big.Int, error) {
	n := int64(len(balances))
	sum := big.NewInt(0)
	for _, b := range balances {
		sum.Add(sum, b)
	}
	if sum.Sign() == 0 {
		return big.NewInt(0), nil
	}

	ann := new(big.Int).Mul(big.NewInt(int64(amp)), new(big.Int).Exp(big.NewInt(n), big.NewInt(n), nil))

	d := new(big.Int).Set(sum)
	for i := 0; i < newtonMaxIterations; i++ {
		dP := new(big.Int).Set(d)
		for _, b := range balances {
			dP.Mul(dP, d)
			denom := new(big.Int).Mul(b, big.NewInt(n))
			if denom.Sign() == 0 {
				return nil, ErrDidNotConverge
			}
			dP.Quo(dP, denom)
		}
		prevD := new(big.Int).Set(d)

		num := new(big.Int).Mul(ann, sum)
		num.Add(num, new(big.Int).Mul(dP, big.NewInt(n)))
		num.Mul(num, d)

		den := new(big.Int).Sub(ann, big.NewInt(1))
		den.Mul(den, d)
		den.Add(den, new(big.Int).Mul(dP, big.NewInt(n+1)))
		if den.Sign() == 0 {
			return nil, ErrDidNotConverge
		}
		d = num.Quo(num, den)

		diff := new(big.Int).Sub(d, prevD)
		diff.Abs(diff)
		if diff.Cmp(big.NewInt(1)) <= 0 {
			return d, nil
		}
	}
	return nil, ErrDidNotConverge
}

// getY solves for balances[j]'s new value given that balances[i] has been
// set to x, holding D fixed — the StableSwap pallet's standard
// single-asset Newton solve.
func getY(i, j int, x *big.Int, balances []*big.Int, amp uint64) (*big.Int, error) {
	n := int64(len(balances))
	d, err := getD(balances, amp)
	if err != nil {
		return nil, err
	}
	ann := new(big.Int).Mul(big.NewInt(int64(amp)), new(big.Int).Exp(big.NewInt(n), big.NewInt(n), nil))

	c := new(big.Int).Set(d)
	sum := big.NewInt(0)
	for k, b := range balances {
		var bal *big.Int
		switch k {
		case i:
			bal = x
		case j:
			continue
		default:
			bal = b
		}
		c.Mul(c, d)
		c.Quo(c, new(big.Int).Mul(bal, big.NewInt(n)))
		sum.Add(sum, bal)
	}
	c.Mul(c, d)
	c.Quo(c, new(big.Int).Mul(ann, new(big.Int).Exp(big.NewInt(n), big.NewInt(n), nil)))

	b := new(big.Int).Add(sum, new(big.Int).Quo(d, ann))

	y := new(big.Int).Set(d)
	for iter := 0; iter < newtonMaxIterations; iter++ {
		prevY := new(big.Int).Set(y)
		// y_next = (y^2 + c) / (2y + b - d)
		num := new(big.Int).Mul(y, y)
		num.Add(num, c)
		den := new(big.Int).Mul(y, big.NewInt(2))
		den.Add(den, b)
		den.Sub(den, d)
		if den.Sign() == 0 {
			return nil, ErrDidNotConverge
		}
		y = num.Quo(num, den)

		diff := new(big.Int).Sub(y, prevY)
		diff.Abs(diff)
		if diff.Cmp(big.NewInt(1)) <= 0 {
			return y, nil
		}
	}
	return nil, ErrDidNotConverge
}
