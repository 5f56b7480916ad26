// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// icesolverd is the off-chain worker daemon (spec.md §4.15, C15): it runs
// the solver (C10) on a ticker against a pluggable snapshot source and
// either prints or submits the resulting Solution. Grounded on
// luxfi-evm/cmd/evm-node's urfave/cli/v2 App shape (Name/Usage/Flags/
// Action, a single root command rather than a subcommand tree, since this
// daemon does one job).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/luxfi/icedex/config"
	"github.com/luxfi/icedex/executor"
	"github.com/luxfi/icedex/intent"
	"github.com/luxfi/icedex/obs"
	"github.com/luxfi/icedex/omnipool"
	"github.com/luxfi/icedex/oracle"
	"github.com/luxfi/icedex/sim"
	"github.com/luxfi/icedex/solver"
	"github.com/luxfi/icedex/verifier"
)

// SnapshotSource loads the state the solver runs against: every live
// intent and a compositor snapshot of every pool, as of currentBlock.
// Operators wire a real chain-query implementation; this binary ships
// only a file-backed one for standalone/integration use.
type SnapshotSource interface {
	Load(ctx context.Context) (live []*intent.Intent, compositor *sim.Set, currentBlock uint64, err error)
}

// Submitter hands a solver.Solution to whatever accepts it: the chain's
// unsigned-transaction pool in production, or stdout for a dry run.
type Submitter interface {
	Submit(ctx context.Context, sol *solver.Solution) error
}

type stdoutSubmitter struct{}

func (stdoutSubmitter) Submit(_ context.Context, sol *solver.Solution) error {
	enc, err := json.Marshal(struct {
		ValidForBlock uint64 `json:"valid_for_block"`
		Resolved      int    `json:"resolved_count"`
		Trades        int    `json:"trade_count"`
		Score         string `json:"score"`
	}{
		ValidForBlock: sol.ValidForBlock,
		Resolved:      len(sol.Resolved),
		Trades:        len(sol.Trades),
		Score:         sol.Score.String(),
	})
	if err != nil {
		return err
	}
	fmt.Println(string(enc))
	return nil
}

func main() {
	app := &cli.App{
		Name:  "icesolverd",
		Usage: "runs the ICE off-chain worker solver loop standalone",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "tick-interval",
				Usage: "how often to re-run the solver",
				Value: 6 * time.Second,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn, error",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "snapshot-file",
				Usage: "path to a JSON file describing the intents and pools to solve against",
			},
		},
		Action: runDaemon,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(c *cli.Context) error {
	logger := obs.NewLogger("icesolverd")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("icesolverd: %w", err)
	}
	if cfg.MetricsEnabled {
		m := obs.NewMetrics(prometheus.DefaultRegisterer)
		solver.SetMetrics(m)
		verifier.SetMetrics(m)
		executor.SetMetrics(m)
		omnipool.SetMetrics(m)
	}

	// icesolverd ships no live oracle feed of its own (that is a chain-query
	// concern, same as SnapshotSource); an empty oracle.InMemory means the
	// solver's spot-price fallback (spec.md §4.14, C14) simply never fires
	// standalone, same as if no oracle were wired at all.
	oracleSrc := oracle.NewInMemory()

	src, err := newFileSnapshotSource(c.String("snapshot-file"), cfg, oracleSrc)
	if err != nil {
		return fmt.Errorf("icesolverd: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return run(ctx, logger, src, stdoutSubmitter{}, oracleSrc, c.Duration("tick-interval"))
}

func run(ctx context.Context, logger interface {
	Info(string, ...interface{})
	Warn(string, ...interface{})
}, src SnapshotSource, sub Submitter, oracleSrc oracle.Source, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("icesolverd: shutting down")
			return nil
		case <-ticker.C:
			tick(ctx, logger, src, sub, oracleSrc)
		}
	}
}

func tick(ctx context.Context, logger interface {
	Info(string, ...interface{})
	Warn(string, ...interface{})
}, src SnapshotSource, sub Submitter, oracleSrc oracle.Source) {
	live, compositor, block, err := src.Load(ctx)
	if err != nil {
		logger.Warn("icesolverd: failed to load snapshot", "error", err)
		return
	}

	sol, err := solver.Solve(live, compositor, block, oracleSrc)
	if err != nil {
		if err == solver.ErrNoLiveIntents {
			return
		}
		logger.Warn("icesolverd: solve failed", "error", err)
		return
	}

	if err := sub.Submit(ctx, sol); err != nil {
		logger.Warn("icesolverd: submit failed", "error", err)
		return
	}
	logger.Info("icesolverd: submitted solution", "resolved", len(sol.Resolved), "trades", len(sol.Trades))
}
