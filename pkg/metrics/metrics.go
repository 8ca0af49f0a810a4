package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudflow_transactions_ingested_total",
		Help: "Ingestion requests, labelled by outcome (accepted, rejected, failed).",
	}, []string{"outcome"})

	TransformRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudflow_transform_records_total",
		Help: "Records transformed, labelled by result (Ok, ProcessingFailed).",
	}, []string{"result"})

	AlertRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudflow_alert_records_total",
		Help: "Records seen by the alert dispatcher, labelled by trigger and status.",
	}, []string{"trigger", "status"})

	BatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fraudflow_batch_duration_seconds",
		Help:    "Time spent transforming or dispatching one batch, labelled by stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	BatchAttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fraudflow_batch_attempt_duration_seconds",
		Help:    "Time spent on one delivery attempt of a consumed batch, labelled by stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	ArchivedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudflow_archived_records_total",
		Help: "Records delivered to object storage, labelled by kind.",
	}, []string{"kind"})

	PolicyReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudflow_policy_reloads_total",
		Help: "Risk policy reload attempts, labelled by status.",
	}, []string{"status"})
)
