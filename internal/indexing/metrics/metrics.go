package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks ledger RPC attempts per method.
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_rpc_calls_total",
			Help: "Total number of ledger RPC call attempts",
		},
		[]string{"method"},
	)

	// RPCRetriesTotal tracks backoff retries per method.
	RPCRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_rpc_retries_total",
			Help: "Total number of retried RPC calls",
		},
		[]string{"method"},
	)

	// RPCErrorsTotal tracks failed RPC attempts per method.
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_rpc_errors_total",
			Help: "Total number of failed RPC call attempts",
		},
		[]string{"method"},
	)

	// JobRunsTotal tracks scheduled job outcomes.
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_job_runs_total",
			Help: "Total number of scheduled job runs by outcome",
		},
		[]string{"job", "status"},
	)

	// RewardsRecorded tracks reward rows written per backfill scope.
	RewardsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_rewards_recorded_total",
			Help: "Total number of reward rows recorded",
		},
		[]string{"scope"},
	)

	// DelegatorsTracked is the size of the active delegation set at the
	// last reconciliation.
	DelegatorsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_delegators_tracked",
			Help: "Active delegators observed in the last reconciliation pass",
		},
	)

	// LatestEpoch is the ledger epoch seen at the last job run.
	LatestEpoch = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_latest_epoch",
			Help: "Latest ledger epoch observed",
		},
	)

	// CursorEpoch is the next epoch each backfill scope will process.
	CursorEpoch = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexer_cursor_epoch",
			Help: "Next unprocessed epoch per backfill scope",
		},
		[]string{"scope"},
	)

	// PriceLookupsTotal tracks day-price resolutions by source.
	PriceLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_price_lookups_total",
			Help: "Total number of day-price lookups by source",
		},
		[]string{"source"},
	)
)
