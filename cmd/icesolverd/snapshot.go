// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"os"

	"github.com/luxfi/icedex/asset"
	"github.com/luxfi/icedex/config"
	"github.com/luxfi/icedex/intent"
	"github.com/luxfi/icedex/ledger"
	"github.com/luxfi/icedex/mathkernel"
	"github.com/luxfi/icedex/oracle"
	"github.com/luxfi/icedex/runtime"
	"github.com/luxfi/icedex/sim"
)

// fileSnapshotSource reads a standalone JSON description of the pools and
// intents to solve against, for operators running icesolverd against a
// dump rather than a live chain connection. Every Load call composes a
// fresh runtime.Registry via runtime.NewFullRuntime: the snapshot file
// describes a whole world from scratch each tick, so there is no
// long-lived Registry to register pallets into twice.
type fileSnapshotSource struct {
	path      string
	cfg       *config.Config
	oracleSrc oracle.Source
}

func newFileSnapshotSource(path string, cfg *config.Config, oracleSrc oracle.Source) (*fileSnapshotSource, error) {
	if path == "" {
		return nil, errMissingSnapshotFile
	}
	return &fileSnapshotSource{path: path, cfg: cfg, oracleSrc: oracleSrc}, nil
}

var errMissingSnapshotFile = stringErr("icesolverd: --snapshot-file is required")

type stringErr string

func (e stringErr) Error() string { return string(e) }

type snapshotDoc struct {
	CurrentBlock uint64           `json:"current_block"`
	Pools        []snapshotPool   `json:"pools"`
	Intents      []snapshotIntent `json:"intents"`
}

type snapshotPool struct {
	AssetA   asset.Id `json:"asset_a"`
	AssetB   asset.Id `json:"asset_b"`
	ReserveA uint64   `json:"reserve_a"`
	ReserveB uint64   `json:"reserve_b"`
	FeeBps   uint32   `json:"fee_bps"`
}

type snapshotIntent struct {
	Account   string   `json:"account_hex"`
	AssetIn   asset.Id `json:"asset_in"`
	AssetOut  asset.Id `json:"asset_out"`
	AmountIn  uint64   `json:"amount_in"`
	AmountOut uint64   `json:"amount_out"`
	ExactOut  bool     `json:"exact_out"`
	Partial   bool     `json:"partial"`
	Deadline  uint64   `json:"deadline"`
}

func (s *fileSnapshotSource) Load(context.Context) ([]*intent.Intent, *sim.Set, uint64, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil, 0, err
	}
	var doc snapshotDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, 0, err
	}

	lg := ledger.NewMemory()
	vault := ledger.AccountId{0xFF}
	lpOwner := ledger.AccountId{0xFE}

	_, handles, err := runtime.NewFullRuntime(s.cfg, lg, vault, s.oracleSrc)
	if err != nil {
		return nil, nil, 0, err
	}

	sims := make([]sim.Simulator, 0, len(doc.Pools))
	for _, p := range doc.Pools {
		feeBps := p.FeeBps
		if feeBps == 0 {
			// The snapshot file may omit a per-pool fee; fall back to the
			// operator-configured default rather than a silent 0bps pool.
			feeBps = s.cfg.XYKFeeBps
		}
		lg.SeedFree(lpOwner, p.AssetA, balFromUint64(p.ReserveA))
		lg.SeedFree(lpOwner, p.AssetB, balFromUint64(p.ReserveB))
		pool, err := handles.XYK.CreatePool(lpOwner, p.AssetA, p.AssetB, balFromUint64(p.ReserveA), balFromUint64(p.ReserveB), feeBps)
		if err != nil {
			return nil, nil, 0, err
		}
		sims = append(sims, sim.SnapshotXYK(pool))
	}
	compositor := sim.NewSet(sims...)

	intents := handles.Intent
	for _, it := range doc.Intents {
		account, err := accountFromHex(it.Account)
		if err != nil {
			return nil, nil, 0, err
		}
		swapType := intent.ExactIn
		if it.ExactOut {
			swapType = intent.ExactOut
		}
		lg.SeedFree(account, it.AssetIn, balFromUint64(it.AmountIn))
		if _, err := intents.Submit(account, intent.KindSwap, &intent.Swap{
			AssetIn:   it.AssetIn,
			AssetOut:  it.AssetOut,
			AmountIn:  balFromUint64(it.AmountIn),
			AmountOut: balFromUint64(it.AmountOut),
			SwapType:  swapType,
			Partial:   it.Partial,
		}, it.Deadline); err != nil {
			return nil, nil, 0, err
		}
	}

	return intents.IterLive(0), compositor, doc.CurrentBlock, nil
}

func balFromUint64(n uint64) *mathkernel.Balance {
	return mathkernel.MustBalanceFromBig(new(big.Int).SetUint64(n))
}

func accountFromHex(s string) (ledger.AccountId, error) {
	var acc ledger.AccountId
	if s == "" {
		return acc, nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return acc, err
	}
	copy(acc[:], decoded)
	return acc, nil
}
