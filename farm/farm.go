// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"math/big"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
)

// CreateGlobalFarm funds a new GlobalFarm from owner's TotalRewardsFunded
// deposit, held in the registry's vault until emitted or refunded on
// termination.
func (r *Registry) CreateGlobalFarm(
	owner ledger.AccountId,
	totalRewardsFunded *mathkernel.Balance,
	rewardCurrency, incentivizedAsset asset.Id,
	yieldPerPeriod, maxRewardPerPeriod *mathkernel.Balance,
	plannedYieldingPeriods, blocksPerPeriod, atBlock uint64,
) (*GlobalFarm, error) {
	if totalRewardsFunded.IsZero() || yieldPerPeriod.IsZero() {
		return nil, ErrZeroAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ledger.Transfer(owner, r.vault, rewardCurrency, totalRewardsFunded); err != nil {
		return nil, err
	}

	r.nextGlobalFarmId++
	g := &GlobalFarm{
		Id:                     r.nextGlobalFarmId,
		Owner:                  owner,
		RewardCurrency:         rewardCurrency,
		IncentivizedAsset:      incentivizedAsset,
		YieldPerPeriod:         new(mathkernel.Balance).Set(yieldPerPeriod),
		MaxRewardPerPeriod:     new(mathkernel.Balance).Set(maxRewardPerPeriod),
		PlannedYieldingPeriods: plannedYieldingPeriods,
		BlocksPerPeriod:        blocksPerPeriod,
		AccumulatedRpz:         mathkernel.NewBalance(0),
		TotalRewardsFunded:     new(mathkernel.Balance).Set(totalRewardsFunded),
		TotalRewardsEmitted:    mathkernel.NewBalance(0),
		TotalSharesZ:           mathkernel.NewBalance(0),
		UpdatedAtBlock:         atBlock,
		State:                  Active,
	}
	r.globalFarms[g.Id] = g
	return g.clone(), nil
}

// UpdateGlobalFarm accrues the farm up to atBlock, then applies any
// non-nil field updates. At least one of yieldPerPeriod/maxRewardPerPeriod
// must be provided.
func (r *Registry) UpdateGlobalFarm(owner ledger.AccountId, farmId uint32, yieldPerPeriod, maxRewardPerPeriod *mathkernel.Balance, atBlock uint64) error {
	if yieldPerPeriod == nil && maxRewardPerPeriod == nil {
		return ErrNothingToUpdate
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.globalFarms[farmId]
	if !ok {
		return ErrFarmNotFound
	}
	if g.Owner != owner {
		return ErrNotOwner
	}
	if err := accrueGlobal(g, atBlock); err != nil {
		return err
	}
	if yieldPerPeriod != nil {
		g.YieldPerPeriod = new(mathkernel.Balance).Set(yieldPerPeriod)
	}
	if maxRewardPerPeriod != nil {
		g.MaxRewardPerPeriod = new(mathkernel.Balance).Set(maxRewardPerPeriod)
	}
	return nil
}

// TerminateGlobalFarm closes a farm that has no living yield farms left,
// refunding the unemitted portion of its funding to the owner.
func (r *Registry) TerminateGlobalFarm(owner ledger.AccountId, farmId uint32, atBlock uint64) (*mathkernel.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.globalFarms[farmId]
	if !ok {
		return nil, ErrFarmNotFound
	}
	if g.Owner != owner {
		return nil, ErrNotOwner
	}
	if g.LivingYieldFarms > 0 {
		return nil, ErrGlobalFarmHasYieldFarms
	}
	if err := accrueGlobal(g, atBlock); err != nil {
		return nil, err
	}

	refund := new(big.Int).Sub(g.TotalRewardsFunded.ToBig(), g.TotalRewardsEmitted.ToBig())
	if refund.Sign() < 0 {
		refund = big.NewInt(0)
	}
	refundBal, err := mathkernel.BalanceFromBig(refund)
	if err != nil {
		return nil, err
	}
	if !refundBal.IsZero() {
		if err := r.ledger.Transfer(r.vault, owner, g.RewardCurrency, refundBal); err != nil {
			return nil, err
		}
	}
	g.State = Terminated
	delete(r.globalFarms, farmId)
	return refundBal, nil
}

// CreateYieldFarm opens a new yield farm against globalFarmId, paying out
// to deposits staked on poolId.
func (r *Registry) CreateYieldFarm(owner ledger.AccountId, globalFarmId, poolId uint32, multiplier uint32, atBlock uint64) (*YieldFarm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.globalFarms[globalFarmId]
	if !ok {
		return nil, ErrFarmNotFound
	}
	if g.Owner != owner {
		return nil, ErrNotOwner
	}
	if err := accrueGlobal(g, atBlock); err != nil {
		return nil, err
	}

	r.nextYieldFarmId++
	y := &YieldFarm{
		Id:                r.nextYieldFarmId,
		GlobalFarmId:      globalFarmId,
		PoolId:            poolId,
		Multiplier:        multiplier,
		TotalShares:       mathkernel.NewBalance(0),
		TotalValuedShares: mathkernel.NewBalance(0),
		AccumulatedRpvs:   mathkernel.NewBalance(0),
		AccumulatedRpz:    new(mathkernel.Balance).Set(g.AccumulatedRpz),
		State:             Active,
	}
	r.yieldFarms[y.Id] = y
	g.LivingYieldFarms++
	return y.clone(), nil
}

// UpdateYieldFarm accrues then reassigns a yield farm's multiplier.
func (r *Registry) UpdateYieldFarm(owner ledger.AccountId, yieldFarmId uint32, multiplier uint32, atBlock uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	y, g, err := r.lookupYieldFarm(yieldFarmId)
	if err != nil {
		return err
	}
	if g.Owner != owner {
		return ErrNotOwner
	}
	if y.State != Active {
		return ErrYieldFarmNotActive
	}
	if err := r.accrueBoth(g, y, atBlock); err != nil {
		return err
	}

	r.adjustTotalSharesZ(g, y, multiplier)
	y.Multiplier = multiplier
	return nil
}

// StopYieldFarm halts reward accrual for a yield farm without removing
// its entries, zeroing its contribution to the global farm's shares_z.
func (r *Registry) StopYieldFarm(owner ledger.AccountId, yieldFarmId uint32, atBlock uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	y, g, err := r.lookupYieldFarm(yieldFarmId)
	if err != nil {
		return err
	}
	if g.Owner != owner {
		return ErrNotOwner
	}
	if y.State != Active {
		return ErrYieldFarmAlreadyStopped
	}
	if err := r.accrueBoth(g, y, atBlock); err != nil {
		return err
	}

	r.adjustTotalSharesZ(g, y, 0)
	y.Multiplier = 0
	y.State = Stopped
	return nil
}

// ResumeYieldFarm reactivates a stopped yield farm at the given
// multiplier, restoring its contribution to the global farm's shares_z.
func (r *Registry) ResumeYieldFarm(owner ledger.AccountId, yieldFarmId uint32, multiplier uint32, atBlock uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	y, g, err := r.lookupYieldFarm(yieldFarmId)
	if err != nil {
		return err
	}
	if g.Owner != owner {
		return ErrNotOwner
	}
	if y.State != Stopped {
		return ErrYieldFarmNotActive
	}
	if err := accrueGlobal(g, atBlock); err != nil {
		return err
	}
	y.AccumulatedRpz = new(mathkernel.Balance).Set(g.AccumulatedRpz)

	r.adjustTotalSharesZ(g, y, multiplier)
	y.Multiplier = multiplier
	y.State = Active
	return nil
}

// TerminateYieldFarm permanently removes a stopped yield farm with zero
// entries, decrementing its global farm's living-yield-farm count.
func (r *Registry) TerminateYieldFarm(owner ledger.AccountId, yieldFarmId uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	y, g, err := r.lookupYieldFarm(yieldFarmId)
	if err != nil {
		return err
	}
	if g.Owner != owner {
		return ErrNotOwner
	}
	if y.State == Active {
		return ErrYieldFarmNotActive
	}
	if y.EntriesCount > 0 {
		return ErrFarmHasEntries
	}
	y.State = Terminated
	delete(r.yieldFarms, yieldFarmId)
	g.LivingYieldFarms--
	return nil
}

// DepositShares locks shares of shareAsset into a fresh Deposit staked
// into yieldFarmId, crediting the first entry's checkpoint.
func (r *Registry) DepositShares(who ledger.AccountId, shareAsset asset.Id, shares *mathkernel.Balance, yieldFarmId uint32, atBlock uint64) (*Deposit, error) {
	if shares.IsZero() {
		return nil, ErrZeroAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	y, g, err := r.lookupYieldFarm(yieldFarmId)
	if err != nil {
		return nil, err
	}
	if y.State != Active {
		return nil, ErrYieldFarmNotActive
	}
	if err := r.accrueBoth(g, y, atBlock); err != nil {
		return nil, err
	}
	if err := r.ledger.Reserve(who, shareAsset, shares); err != nil {
		return nil, err
	}

	entry := newEntry(y, shares, atBlock)
	r.stakeIntoFarm(g, y, entry.ValuedShares, shares)

	r.nextDepositId++
	d := &Deposit{
		Id:         r.nextDepositId,
		Owner:      who,
		ShareAsset: shareAsset,
		Shares:     new(mathkernel.Balance).Set(shares),
		Entries:    map[uint32]*DepositEntry{yieldFarmId: entry},
	}
	r.deposits[d.Id] = d
	y.EntriesCount++
	return d.clone(), nil
}

// RedepositShares stakes an existing deposit's already-locked shares into
// an additional yield farm, bounded by MaxEntriesPerDeposit.
func (r *Registry) RedepositShares(who ledger.AccountId, depositId uint64, yieldFarmId uint32, atBlock uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deposits[depositId]
	if !ok {
		return ErrDepositNotFound
	}
	if d.Owner != who {
		return ErrNotOwner
	}
	if _, exists := d.Entries[yieldFarmId]; exists {
		return ErrDoubleLock
	}
	if len(d.Entries) >= MaxEntriesPerDeposit {
		return ErrMaxEntriesPerDeposit
	}

	y, g, err := r.lookupYieldFarm(yieldFarmId)
	if err != nil {
		return err
	}
	if y.State != Active {
		return ErrYieldFarmNotActive
	}
	if err := r.accrueBoth(g, y, atBlock); err != nil {
		return err
	}

	entry := newEntry(y, d.Shares, atBlock)
	r.stakeIntoFarm(g, y, entry.ValuedShares, d.Shares)
	d.Entries[yieldFarmId] = entry
	y.EntriesCount++
	return nil
}

// ClaimRewards pays out the reward accrued on one entry of a deposit
// since its last claim (or entry), re-checkpointing it to the present.
func (r *Registry) ClaimRewards(who ledger.AccountId, depositId uint64, yieldFarmId uint32, atBlock uint64) (*mathkernel.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deposits[depositId]
	if !ok {
		return nil, ErrDepositNotFound
	}
	if d.Owner != who {
		return nil, ErrNotOwner
	}
	entry, ok := d.Entries[yieldFarmId]
	if !ok {
		return nil, ErrYieldFarmEntryNotFound
	}
	y, g, err := r.lookupYieldFarm(yieldFarmId)
	if err != nil {
		return nil, err
	}
	if err := r.accrueBoth(g, y, atBlock); err != nil {
		return nil, err
	}

	reward, err := rewardSince(y.AccumulatedRpvs, entry.AccumulatedRpvs, entry.ValuedShares)
	if err != nil {
		return nil, err
	}
	entry.AccumulatedRpvs = new(mathkernel.Balance).Set(y.AccumulatedRpvs)

	if !reward.IsZero() {
		if err := r.ledger.Transfer(r.vault, who, g.RewardCurrency, reward); err != nil {
			return nil, err
		}
	}
	return reward, nil
}

// WithdrawShares claims any outstanding reward on the entry, unstakes the
// deposit's shares from the yield farm, and — once every entry is gone —
// unreserves and releases the underlying shares back to the owner.
func (r *Registry) WithdrawShares(who ledger.AccountId, depositId uint64, yieldFarmId uint32, atBlock uint64) (*mathkernel.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deposits[depositId]
	if !ok {
		return nil, ErrDepositNotFound
	}
	if d.Owner != who {
		return nil, ErrNotOwner
	}
	entry, ok := d.Entries[yieldFarmId]
	if !ok {
		return nil, ErrYieldFarmEntryNotFound
	}
	y, g, err := r.lookupYieldFarm(yieldFarmId)
	if err != nil {
		return nil, err
	}

	var reward *mathkernel.Balance
	if err := r.accrueBoth(g, y, atBlock); err != nil {
		return nil, err
	}
	reward, err = rewardSince(y.AccumulatedRpvs, entry.AccumulatedRpvs, entry.ValuedShares)
	if err != nil {
		return nil, err
	}
	if !reward.IsZero() {
		if err := r.ledger.Transfer(r.vault, who, g.RewardCurrency, reward); err != nil {
			return nil, err
		}
	}

	r.unstakeFromFarm(g, y, entry.ValuedShares, entry.Shares)
	y.EntriesCount--
	delete(d.Entries, yieldFarmId)

	if len(d.Entries) == 0 {
		if err := r.ledger.Unreserve(who, d.ShareAsset, d.Shares); err != nil {
			return nil, err
		}
		delete(r.deposits, depositId)
	}
	return reward, nil
}

// GlobalFarm returns a defensive copy of the global farm with the given id.
func (r *Registry) GlobalFarm(id uint32) (*GlobalFarm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.globalFarms[id]
	if !ok {
		return nil, ErrFarmNotFound
	}
	return g.clone(), nil
}

// YieldFarm returns a defensive copy of the yield farm with the given id.
func (r *Registry) YieldFarm(id uint32) (*YieldFarm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	y, ok := r.yieldFarms[id]
	if !ok {
		return nil, ErrYieldFarmNotFound
	}
	return y.clone(), nil
}

// Deposit returns a defensive copy of the deposit with the given id.
func (r *Registry) Deposit(id uint64) (*Deposit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deposits[id]
	if !ok {
		return nil, ErrDepositNotFound
	}
	return d.clone(), nil
}

func (r *Registry) lookupYieldFarm(yieldFarmId uint32) (*YieldFarm, *GlobalFarm, error) {
	y, ok := r.yieldFarms[yieldFarmId]
	if !ok {
		return nil, nil, ErrYieldFarmNotFound
	}
	g, ok := r.globalFarms[y.GlobalFarmId]
	if !ok {
		return nil, nil, ErrFarmNotFound
	}
	return y, g, nil
}

func (r *Registry) accrueBoth(g *GlobalFarm, y *YieldFarm, atBlock uint64) error {
	if err := accrueGlobal(g, atBlock); err != nil {
		return err
	}
	return accrueYield(y, g)
}

// adjustTotalSharesZ replaces y's contribution to g's TotalSharesZ with
// the value implied by newMultiplier, used whenever a yield farm's
// multiplier changes (including to/from zero on stop/resume).
func (r *Registry) adjustTotalSharesZ(g *GlobalFarm, y *YieldFarm, newMultiplier uint32) {
	oldZ := zContribution(y.TotalValuedShares, y.Multiplier)
	newZ := zContribution(y.TotalValuedShares, newMultiplier)
	total := g.TotalSharesZ.ToBig()
	total.Sub(total, oldZ)
	total.Add(total, newZ)
	if total.Sign() < 0 {
		total = big.NewInt(0)
	}
	g.TotalSharesZ = mathkernel.MustBalanceFromBig(total)
}

func (r *Registry) stakeIntoFarm(g *GlobalFarm, y *YieldFarm, valuedShares, rawShares *mathkernel.Balance) {
	y.TotalShares = new(mathkernel.Balance).Add(y.TotalShares, rawShares)
	y.TotalValuedShares = new(mathkernel.Balance).Add(y.TotalValuedShares, valuedShares)
	zDelta := zContribution(valuedShares, y.Multiplier)
	g.TotalSharesZ = mathkernel.MustBalanceFromBig(new(big.Int).Add(g.TotalSharesZ.ToBig(), zDelta))
}

func (r *Registry) unstakeFromFarm(g *GlobalFarm, y *YieldFarm, valuedShares, rawShares *mathkernel.Balance) {
	y.TotalShares = mathkernel.MustBalanceFromBig(new(big.Int).Sub(y.TotalShares.ToBig(), rawShares.ToBig()))
	y.TotalValuedShares = mathkernel.MustBalanceFromBig(new(big.Int).Sub(y.TotalValuedShares.ToBig(), valuedShares.ToBig()))
	zDelta := zContribution(valuedShares, y.Multiplier)
	total := new(big.Int).Sub(g.TotalSharesZ.ToBig(), zDelta)
	if total.Sign() < 0 {
		total = big.NewInt(0)
	}
	g.TotalSharesZ = mathkernel.MustBalanceFromBig(total)
}

func newEntry(y *YieldFarm, shares *mathkernel.Balance, atBlock uint64) *DepositEntry {
	valued := mathkernel.MustBalanceFromBig(new(big.Int).Set(shares.ToBig()))
	return &DepositEntry{
		YieldFarmId:     y.Id,
		Shares:          new(mathkernel.Balance).Set(shares),
		ValuedShares:    valued,
		AccumulatedRpvs: new(mathkernel.Balance).Set(y.AccumulatedRpvs),
		EnteredAtBlock:  atBlock,
	}
}

// zContribution is a yield farm's weight in its global farm's
// reward-sharing pool: valued shares scaled by its multiplier (10_000 ==
// 1x), as a plain big.Int (not narrowed, since it is an intermediate).
func zContribution(valuedShares *mathkernel.Balance, multiplier uint32) *big.Int {
	z := new(big.Int).Mul(valuedShares.ToBig(), big.NewInt(int64(multiplier)))
	return z.Quo(z, big.NewInt(10_000))
}

// accrueGlobal advances g's reward accumulator by every whole period
// elapsed since its last touch, capped by its remaining planned periods,
// and is a no-op once the farm is no longer Active.
func accrueGlobal(g *GlobalFarm, atBlock uint64) error {
	if g.State != Active {
		return nil
	}
	if g.BlocksPerPeriod == 0 || atBlock <= g.UpdatedAtBlock {
		return nil
	}
	periodsElapsed := (atBlock - g.UpdatedAtBlock) / g.BlocksPerPeriod
	if periodsElapsed == 0 {
		return nil
	}
	remaining := g.PlannedYieldingPeriods - g.RanPeriods
	if periodsElapsed > remaining {
		periodsElapsed = remaining
	}
	g.UpdatedAtBlock += periodsElapsed * g.BlocksPerPeriod
	if periodsElapsed == 0 {
		return nil
	}
	g.RanPeriods += periodsElapsed

	if g.TotalSharesZ.IsZero() {
		return nil
	}

	rewardPerPeriod := g.YieldPerPeriod.ToBig()
	if g.MaxRewardPerPeriod.ToBig().Cmp(rewardPerPeriod) < 0 {
		rewardPerPeriod = g.MaxRewardPerPeriod.ToBig()
	}
	totalReward := new(big.Int).Mul(rewardPerPeriod, new(big.Int).SetUint64(periodsElapsed))

	deltaRpz := rayDiv(totalReward, g.TotalSharesZ.ToBig())
	g.AccumulatedRpz = mathkernel.MustBalanceFromBig(new(big.Int).Add(g.AccumulatedRpz.ToBig(), deltaRpz))
	g.TotalRewardsEmitted = mathkernel.MustBalanceFromBig(new(big.Int).Add(g.TotalRewardsEmitted.ToBig(), totalReward))
	return nil
}

// accrueYield distributes the global farm's newly accumulated rpz delta
// into y's own rpvs, weighted by y's share of TotalSharesZ.
func accrueYield(y *YieldFarm, g *GlobalFarm) error {
	deltaGlobalRpz := new(big.Int).Sub(g.AccumulatedRpz.ToBig(), y.AccumulatedRpz.ToBig())
	y.AccumulatedRpz = new(mathkernel.Balance).Set(g.AccumulatedRpz)
	if deltaGlobalRpz.Sign() <= 0 || y.TotalValuedShares.IsZero() {
		return nil
	}

	z := zContribution(y.TotalValuedShares, y.Multiplier)
	if z.Sign() == 0 {
		return nil
	}
	// rewardForFarm = delta_global_rpz * z / RAY (ray-scaled rpz times
	// this farm's z weight, narrowed back to an actual reward amount).
	rewardForFarm := new(big.Int).Mul(deltaGlobalRpz, z)
	rewardForFarm.Quo(rewardForFarm, mathkernel.Ray)

	deltaRpvs := rayDiv(rewardForFarm, y.TotalValuedShares.ToBig())
	y.AccumulatedRpvs = mathkernel.MustBalanceFromBig(new(big.Int).Add(y.AccumulatedRpvs.ToBig(), deltaRpvs))
	return nil
}

// rewardSince computes (currentRpvs - entryRpvs) * valuedShares / RAY,
// the reward claimable on one entry since its last checkpoint.
func rewardSince(currentRpvs, entryRpvs, valuedShares *mathkernel.Balance) (*mathkernel.Balance, error) {
	delta := new(big.Int).Sub(currentRpvs.ToBig(), entryRpvs.ToBig())
	if delta.Sign() <= 0 {
		return mathkernel.NewBalance(0), nil
	}
	reward := new(big.Int).Mul(delta, valuedShares.ToBig())
	reward.Quo(reward, mathkernel.Ray)
	return mathkernel.BalanceFromBig(reward)
}

// rayDiv computes (num*RAY + den/2) / den, rounding half-up, the same
// convention mathkernel.RayMul/WadDiv use for their own scale.
func rayDiv(num, den *big.Int) *big.Int {
	if den.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(num, mathkernel.Ray)
	scaled.Add(scaled, new(big.Int).Quo(den, big.NewInt(2)))
	return scaled.Quo(scaled, den)
}
