// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus instruments shared across the
// ingestion pipeline. Instruments are registered once via promauto and
// labeled with low-cardinality dimensions only (source type, outcome,
// backend), never with per-source IDs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImportRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamhaven_import_runs_total",
			Help: "Total import runs by source type and outcome.",
		},
		[]string{"source_type", "outcome"}, // outcome: success, failure, canceled
	)

	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamhaven_import_duration_seconds",
			Help:    "Wall time of one source import, fetch through commit.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"source_type"},
	)

	ImportItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamhaven_import_items_total",
			Help: "Catalog rows written per import, by kind and operation.",
		},
		[]string{"kind", "op"}, // kind: channel, movie, series; op: created, updated
	)

	ParseWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamhaven_parse_warnings_total",
			Help: "Non-fatal parser warnings by feed format.",
		},
		[]string{"format"}, // format: m3u, xmltv, xtream
	)

	EPGRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamhaven_epg_refresh_total",
			Help: "EPG refresh attempts by outcome.",
		},
		[]string{"outcome"}, // outcome: success, failure, skipped_fresh
	)

	CacheOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamhaven_cache_ops_total",
			Help: "Cache lookups by cache name and result.",
		},
		[]string{"cache", "result"}, // cache: epg, resume, playlist; result: hit, miss, expired
	)

	FetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamhaven_fetch_retries_total",
			Help: "HTTP fetch attempts that were retried after a retryable status.",
		},
	)
)
