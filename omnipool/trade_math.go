// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package omnipool

import "math/big"

// ceilOther solves the pool-favourable half of the constant-product
// invariant r*h ~= newR*newH for whichever side is not yet known, given the
// other side's new value. Every Omnipool trade leg (spec.md §4.2, and the
// literal figures in §8 scenario 1) rounds this step up rather than down:
// truncating in the pool's favour is what keeps reserve*hub_reserve from
// ever decreasing under integer division.
//
// Because the invariant is symmetric in (reserve, hub), the same formula
// serves both the "I know the new reserve, solve for the new hub" direction
// (sell's first leg, buy's inverse second leg) and the "I know the new hub,
// solve for the new reserve" direction (sell's second leg, buy's inverse
// first leg).
func ceilOther(r, h, newOther *big.Int) *big.Int {
	prod := new(big.Int).Mul(r, h)
	return CeilDiv(prod, newOther)
}

// CeilDiv re-exports mathkernel's rounding convention at big.Int
// granularity, since the intermediate invariant arithmetic here runs one
// level above mathkernel.Balance to avoid narrowing mid-computation.
func CeilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// hubLegOut is the forward sell step on the asset_in side: the trader adds
// amountIn to reserve_in, and hub_reserve_in shrinks by delta_hub so that
// reserve_in * hub_reserve_in never decreases.
func hubLegOut(reserveIn, hubIn, amountIn *big.Int) (newReserveIn, newHubIn, deltaHub *big.Int) {
	newReserveIn = new(big.Int).Add(reserveIn, amountIn)
	newHubIn = ceilOther(reserveIn, hubIn, newReserveIn)
	deltaHub = new(big.Int).Sub(hubIn, newHubIn)
	return
}

// assetLegOut is the forward sell step on the asset_out side: netHub (the
// hub amount surviving fee deduction) is added to hub_reserve_out, and
// reserve_out shrinks by delta_out_gross, the amount paid to the trader
// before the asset fee is withheld.
func assetLegOut(reserveOut, hubOut, netHub *big.Int) (newReserveOut, newHubOut, deltaOutGross *big.Int) {
	newHubOut = new(big.Int).Add(hubOut, netHub)
	newReserveOut = ceilOther(reserveOut, hubOut, newHubOut)
	deltaOutGross = new(big.Int).Sub(reserveOut, newReserveOut)
	return
}

// assetLegIn inverts assetLegOut: given the gross amount the trader wants
// out (before the asset fee is added back on top), compute the net hub the
// asset_out leg must receive.
func assetLegIn(reserveOut, hubOut, deltaOutGross *big.Int) (newReserveOut, newHubOut, netHub *big.Int) {
	newReserveOut = new(big.Int).Sub(reserveOut, deltaOutGross)
	newHubOut = ceilOther(reserveOut, hubOut, newReserveOut)
	netHub = new(big.Int).Sub(newHubOut, hubOut)
	return
}

// hubLegIn inverts hubLegOut: given the full hub amount that must leave
// asset_in's hub share (before fees are deducted), compute the amountIn
// the trader must supply.
func hubLegIn(reserveIn, hubIn, deltaHubFull *big.Int) (newReserveIn, newHubIn, amountIn *big.Int) {
	newHubIn = new(big.Int).Sub(hubIn, deltaHubFull)
	newReserveIn = ceilOther(reserveIn, hubIn, newHubIn)
	amountIn = new(big.Int).Sub(newReserveIn, reserveIn)
	return
}
