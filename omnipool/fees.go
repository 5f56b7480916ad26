// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package omnipool

import "math/big"

// splitHubFee applies the protocol and slip fee to a gross HUB amount
// flowing out of an asset_in leg, returning the net HUB that continues on
// to the asset_out leg and the fee HUB that is instead routed to the
// NATIVE subpool. Fee order is fixed at protocol -> slip (spec.md §4.2);
// the slip component scales with the trade's price impact, measured as
// deltaHub against the destination pool's own hub depth, capped at
// maxSlipFeeBps.
func splitHubFee(deltaHub, hubReserveOut *big.Int, protocolFeeBps, maxSlipFeeBps uint32) (netHub, feeHub *big.Int) {
	if deltaHub.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0)
	}

	slipFeeBps := uint32(0)
	if hubReserveOut.Sign() > 0 {
		impact := new(big.Int).Mul(deltaHub, big.NewInt(10000))
		impact.Quo(impact, hubReserveOut)
		if impact.IsUint64() && impact.Uint64() < uint64(maxSlipFeeBps) {
			slipFeeBps = uint32(impact.Uint64())
		} else {
			slipFeeBps = maxSlipFeeBps
		}
	}

	totalBps := protocolFeeBps + slipFeeBps
	feeHub = percentMulBig(deltaHub, totalBps)
	netHub = new(big.Int).Sub(deltaHub, feeHub)
	return
}

// assetFee withholds the configured asset fee from a gross output amount,
// returning the amount actually paid to the trader and the fee retained
// in the pool's reserve.
func assetFee(deltaOutGross *big.Int, assetFeeBps uint32) (amountOut, feeOut *big.Int) {
	feeOut = percentMulBig(deltaOutGross, assetFeeBps)
	amountOut = new(big.Int).Sub(deltaOutGross, feeOut)
	return
}

// grossUpForFee inverts assetFee: given the amount the trader must
// receive net of the asset fee, compute the gross amount the asset_out
// leg must release.
func grossUpForFee(amountOut *big.Int, feeBps uint32) *big.Int {
	if feeBps == 0 {
		return new(big.Int).Set(amountOut)
	}
	num := new(big.Int).Mul(amountOut, big.NewInt(10000))
	return CeilDiv(num, big.NewInt(int64(10000-feeBps)))
}

func percentMulBig(v *big.Int, bps uint32) *big.Int {
	prod := new(big.Int).Mul(v, big.NewInt(int64(bps)))
	prod.Add(prod, big.NewInt(5000))
	return prod.Quo(prod, big.NewInt(10000))
}
