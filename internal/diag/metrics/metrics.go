// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes process-wide measurement-core gauges and
// counters through prometheus/client_golang, for host applications
// that already run a Prometheus endpoint alongside the instrumented
// process (a DOMAIN STACK addition; spec.md itself scopes metrics
// collection to adapters, not the core, but arena and dispatch
// counters are natural process-level observability this core already
// tracks internally).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ArenaBytesInUse reports each arena's current allocation total
	// (internal/arena.Arena.SizeInBytes), labeled by scope ("misc" or
	// a per-location id).
	ArenaBytesInUse = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "scorep",
		Subsystem: "arena",
		Name:      "bytes_in_use",
		Help:      "Bytes currently allocated from a measurement-core arena.",
	}, []string{"scope"})

	// EventsDispatched counts events handed to each substrate, labeled
	// by substrate name and event kind.
	EventsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scorep",
		Subsystem: "dispatch",
		Name:      "events_total",
		Help:      "Events dispatched to a substrate callback.",
	}, []string{"substrate", "kind"})

	// UnificationDuration observes how long Unify took to merge the
	// local managers into the unified catalog.
	UnificationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scorep",
		Subsystem: "unification",
		Name:      "duration_seconds",
		Help:      "Time spent merging local definition managers into the unified catalog.",
		Buckets:   prometheus.DefBuckets,
	})
)

// MustRegister registers every collector above against reg. Call once
// during Initialize; reg is typically prometheus.DefaultRegisterer but
// callers embedding the core into an existing Prometheus-instrumented
// process may pass their own registry to avoid collisions.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(ArenaBytesInUse, EventsDispatched, UnificationDuration)
}
