// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package omnipool

import (
	"math/big"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
)

// AddToken lists a new asset (root/governance origin only, enforced by the
// caller's runtime dispatch — this package only checks the data
// invariants). It seeds the asset's reserve from owner's free balance,
// derives its initial hub_reserve from initialPrice, and opens owner's
// first Position at 1:1 shares.
func (p *Pool) AddToken(owner ledger.AccountId, a asset.Id, initialReserve *mathkernel.Balance, initialPrice, cap asset.Ratio) (*Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.assets[a]; exists {
		return nil, ErrAssetAlreadyExists
	}
	if initialPrice.N.Sign() == 0 {
		return nil, ErrZeroPrice
	}
	if cap.N.Cmp(cap.D) > 0 {
		return nil, ErrInvalidCap
	}
	if initialReserve.IsZero() {
		return nil, ErrZeroAmount
	}

	if err := p.ledger.Transfer(owner, p.vault, a, initialReserve); err != nil {
		return nil, err
	}

	hub := new(big.Int).Mul(initialReserve.ToBig(), initialPrice.N)
	hub = CeilDiv(hub, initialPrice.D)
	hubBal, err := mathkernel.BalanceFromBig(hub)
	if err != nil {
		return nil, err
	}

	state := &AssetReserveState{
		Asset:          a,
		Reserve:        new(mathkernel.Balance).Set(initialReserve),
		HubReserve:     hubBal,
		Shares:         new(mathkernel.Balance).Set(initialReserve),
		ProtocolShares: mathkernel.NewBalance(0),
		Cap:            cap,
		Tradable:       AllowAll,
	}
	p.assets[a] = state

	p.nextPosID++
	pos := &Position{
		Id:           p.nextPosID,
		Owner:        owner,
		Asset:        a,
		Amount:       new(mathkernel.Balance).Set(initialReserve),
		Shares:       new(mathkernel.Balance).Set(initialReserve),
		PriceAtEntry: initialPrice,
	}
	p.positions[pos.Id] = pos

	p.emit(TokenAdded{Asset: a, Owner: owner, Reserve: state.Reserve, Hub: state.HubReserve})
	return pos, nil
}

// SetAssetTradableState flips a's permission bitset (governance origin).
func (p *Pool) SetAssetTradableState(a asset.Id, bits Tradable) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.assets[a]
	if !ok {
		return ErrAssetNotFound
	}
	state.Tradable = bits
	p.emit(TradableStateUpdated{Asset: a, State: bits})
	return nil
}

// checkCapLocked enforces cap_i * sum(hub_reserve_j) >= hub_reserve_i
// (spec.md §6's global invariant); callers must hold the write lock.
func (p *Pool) checkCapLocked(a asset.Id) error {
	state := p.assets[a]
	total := p.totalHubLocked()
	lhs := new(big.Int).Mul(state.Cap.N, total)
	rhs := new(big.Int).Mul(state.HubReserve.ToBig(), state.Cap.D)
	if lhs.Cmp(rhs) < 0 {
		return ErrCapExceeded
	}
	return nil
}

// AddLiquidity deposits amount of asset a into the pool on who's behalf,
// minting LP shares pro rata to the existing reserve and opening a new
// Position. Share issuance rounds down (pool-favourable); the hub_reserve
// increment rounds up, so the asset's backing can never fall short of what
// the deposit warrants.
func (p *Pool) AddLiquidity(who ledger.AccountId, a asset.Id, amount *mathkernel.Balance) (*Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.assets[a]
	if !ok {
		return nil, ErrAssetNotFound
	}
	if !state.Tradable.Has(CanAddLiquidity) {
		return nil, ErrNotAllowed
	}
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}

	reserve := state.Reserve.ToBig()
	amt := amount.ToBig()

	sharesIssued := new(big.Int).Mul(amt, state.Shares.ToBig())
	sharesIssued.Quo(sharesIssued, reserve)

	hubAdded := new(big.Int).Mul(amt, state.HubReserve.ToBig())
	hubAdded = CeilDiv(hubAdded, reserve)

	if err := p.ledger.Transfer(who, p.vault, a, amount); err != nil {
		return nil, err
	}

	newReserve := new(big.Int).Add(reserve, amt)
	newHub := new(big.Int).Add(state.HubReserve.ToBig(), hubAdded)
	newShares := new(big.Int).Add(state.Shares.ToBig(), sharesIssued)

	state.Reserve, _ = mathkernel.BalanceFromBig(newReserve)
	state.HubReserve, _ = mathkernel.BalanceFromBig(newHub)
	state.Shares, _ = mathkernel.BalanceFromBig(newShares)

	if err := p.checkCapLocked(a); err != nil {
		return nil, err
	}

	price, err := p.spotPriceLocked(a)
	if err != nil {
		return nil, err
	}

	p.nextPosID++
	sharesBal, _ := mathkernel.BalanceFromBig(sharesIssued)
	pos := &Position{
		Id:           p.nextPosID,
		Owner:        who,
		Asset:        a,
		Amount:       new(mathkernel.Balance).Set(amount),
		Shares:       sharesBal,
		PriceAtEntry: price,
	}
	p.positions[pos.Id] = pos

	p.emit(LiquidityAdded{Who: who, Asset: a, Amount: amount, SharesMint: sharesBal, PositionID: pos.Id})
	return pos, nil
}

// RemoveLiquidity burns sharesToRemove from position, returning the
// underlying asset to who net of the minimum withdrawal fee and a
// price-adjustment fee proportional to drift between the position's entry
// price and the pool's current spot price — the mechanism spec.md §4.2
// describes as preventing LPs from extracting value purely from price
// movement between entry and exit.
func (p *Pool) RemoveLiquidity(who ledger.AccountId, positionID uint64, sharesToRemove *mathkernel.Balance) (*mathkernel.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[positionID]
	if !ok {
		return nil, ErrPositionNotFound
	}
	if pos.Owner != who {
		return nil, ErrNotOwner
	}
	if sharesToRemove.IsZero() || sharesToRemove.Gt(pos.Shares) {
		return nil, ErrInsufficientBalance
	}

	state, ok := p.assets[pos.Asset]
	if !ok {
		return nil, ErrAssetNotFound
	}
	if !state.Tradable.Has(CanRemoveLiquidity) {
		return nil, ErrNotAllowed
	}

	sharesBig := sharesToRemove.ToBig()
	amountOutGross := new(big.Int).Mul(sharesBig, state.Reserve.ToBig())
	amountOutGross.Quo(amountOutGross, state.Shares.ToBig())
	hubOut := new(big.Int).Mul(sharesBig, state.HubReserve.ToBig())
	hubOut.Quo(hubOut, state.Shares.ToBig())

	currentPrice, err := p.spotPriceLocked(pos.Asset)
	if err != nil {
		return nil, err
	}

	feeBps := p.fees.MinWithdrawalFeeBps + priceAdjustmentFeeBps(pos.PriceAtEntry, currentPrice, p.fees.MaxSlipFeeBps)
	amountOutNet, _ := assetFee(amountOutGross, feeBps)

	amountOutBal, errBal := mathkernel.BalanceFromBig(amountOutNet)
	if errBal != nil {
		return nil, errBal
	}
	if err := p.ledger.Transfer(p.vault, who, pos.Asset, amountOutBal); err != nil {
		return nil, err
	}

	newReserve := new(big.Int).Sub(state.Reserve.ToBig(), amountOutGross)
	newHub := new(big.Int).Sub(state.HubReserve.ToBig(), hubOut)
	newShares := new(big.Int).Sub(state.Shares.ToBig(), sharesBig)

	state.Reserve, _ = mathkernel.BalanceFromBig(newReserve)
	state.HubReserve, _ = mathkernel.BalanceFromBig(newHub)
	state.Shares, _ = mathkernel.BalanceFromBig(newShares)

	if sharesToRemove.Eq(pos.Shares) {
		delete(p.positions, positionID)
	} else {
		pos.Shares = new(mathkernel.Balance).Sub(pos.Shares, sharesToRemove)
		remainingAmount := new(big.Int).Sub(pos.Amount.ToBig(), amountOutGross)
		if remainingAmount.Sign() < 0 {
			remainingAmount.SetInt64(0)
		}
		pos.Amount, _ = mathkernel.BalanceFromBig(remainingAmount)
	}

	hubOutBal, _ := mathkernel.BalanceFromBig(hubOut)
	p.emit(LiquidityRemoved{Who: who, PositionID: positionID, SharesBurnt: sharesToRemove, AmountOut: amountOutBal, HubOut: hubOutBal})
	return amountOutBal, nil
}

// priceAdjustmentFeeBps scales with |current - entry| / entry, capped at
// capBps, so an LP who exits after the asset has drifted in either
// direction against HUB pays a fee proportional to that drift rather than
// the withdrawal fee alone.
func priceAdjustmentFeeBps(entry, current asset.Ratio, capBps uint32) uint32 {
	// relative drift = |entry.N*current.D - current.N*entry.D| / (current.D*entry.N)
	lhs := new(big.Int).Mul(entry.N, current.D)
	rhs := new(big.Int).Mul(current.N, entry.D)
	diff := new(big.Int).Sub(lhs, rhs)
	diff.Abs(diff)

	den := new(big.Int).Mul(current.D, entry.N)
	if den.Sign() == 0 {
		return 0
	}
	scaled := new(big.Int).Mul(diff, big.NewInt(10000))
	scaled.Quo(scaled, den)
	if scaled.IsUint64() && scaled.Uint64() < uint64(capBps) {
		return uint32(scaled.Uint64())
	}
	return capBps
}

// SpotPrice returns (hub_reserve_a / reserve_a) / (hub_reserve_b /
// reserve_b) as a Ratio (spec.md §4.2).
func (p *Pool) SpotPrice(a, b asset.Id) (asset.Ratio, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pa, err := p.spotPriceLocked(a)
	if err != nil {
		return asset.Ratio{}, err
	}
	if b == asset.Hub {
		return pa, nil
	}
	pb, err := p.spotPriceLocked(b)
	if err != nil {
		return asset.Ratio{}, err
	}
	return pa.Div(pb)
}

func (p *Pool) spotPriceLocked(a asset.Id) (asset.Ratio, error) {
	state, ok := p.assets[a]
	if !ok {
		return asset.Ratio{}, ErrAssetNotFound
	}
	return asset.NewRatio(state.HubReserve.ToBig(), state.Reserve.ToBig())
}
