package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksDispersedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vesting_indexer_blocks_dispersed_total",
			Help: "Total number of blocks dispersed",
		},
	)

	actionsRoutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vesting_indexer_actions_routed_total",
			Help: "Actions handled, by route handler",
		},
		[]string{"handler"},
	)

	actionsUnroutedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vesting_indexer_actions_unrouted_total",
			Help: "Actions that matched no route",
		},
	)

	recordsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vesting_indexer_records_written_total",
			Help: "Records written on the live path, by kind",
		},
		[]string{"kind"},
	)

	dispersalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vesting_indexer_dispersal_duration_seconds",
			Help:    "Time spent dispersing one block",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	lastBlockNum = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vesting_indexer_last_block_num",
			Help: "Last dispersed block number",
		},
	)

	genesisRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vesting_indexer_genesis_records_total",
			Help: "Genesis records seen, by type and whether they were handled",
		},
		[]string{"type", "handled"},
	)

	fatalErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vesting_indexer_fatal_errors_total",
			Help: "Fatal pipeline errors, by error kind",
		},
		[]string{"kind"},
	)
)
