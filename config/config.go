// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config decodes the runtime's fixed parameters once at node
// start. It is grounded on two pack members: the shape of the teacher's
// own precompile Config struct (dex/module.go's `Config`, a flat JSON
// struct of governance-tunable knobs) and
// github.com/kelseyhightower/envconfig, which _examples/blinklabs-io-shai
// uses for exactly this purpose (a single envconfig.Process call over a
// flat struct at process start).
package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable named by spec.md as a constant or policy
// knob. Fields are decoded from ICECORE_-prefixed environment variables
// and are immutable once loaded; nothing in this module ever re-reads the
// environment after Load returns.
type Config struct {
	// Omnipool (C6)
	MaxInRatio       uint64 `envconfig:"MAX_IN_RATIO" default:"3"`
	MaxOutRatio      uint64 `envconfig:"MAX_OUT_RATIO" default:"3"`
	MinTradeAmount   uint64 `envconfig:"MIN_TRADE_AMOUNT" default:"1000"`
	MaxSlipFeeBps    uint32 `envconfig:"MAX_SLIP_FEE_BPS" default:"100"`
	MinWithdrawalFeeBps uint32 `envconfig:"MIN_WITHDRAWAL_FEE_BPS" default:"10"`

	// XYK / LBP / Stableswap (C7)
	XYKFeeBps         uint32 `envconfig:"XYK_FEE_BPS" default:"30"`
	LBPRepayFeeBps    uint32 `envconfig:"LBP_REPAY_FEE_BPS" default:"200"`
	StableAmplification uint64 `envconfig:"STABLE_AMPLIFICATION" default:"100"`

	// ICE (C9-C12)
	OCWTagPrefix        string `envconfig:"OCW_TAG_PREFIX" default:"ice"`
	OCWProvides         string `envconfig:"OCW_PROVIDES" default:"submit_solution"`
	OCWLongevity        uint64 `envconfig:"OCW_LONGEVITY" default:"1"`
	UnsignedTxsPriority uint64 `envconfig:"UNSIGNED_TXS_PRIORITY" default:"100"`

	// Observability (C0b)
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load decodes a Config from the process environment, applying the
// defaults above for anything unset.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("ICECORE", &c); err != nil {
		return nil, err
	}
	return &c, nil
}
