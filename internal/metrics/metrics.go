// Package metrics exposes Prometheus instruments for merge operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Merge kinds.
const (
	KindDocket         = "docket"
	KindAttachmentPage = "attachment_page"
	KindCaseQuery      = "case_query"
)

var (
	// Labels: kind, result (ok, error)
	mergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docket_merger",
		Name:      "merges_total",
		Help:      "Total merge calls by kind and result",
	}, []string{"kind", "result"})

	mergeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docket_merger",
		Name:      "merge_duration_seconds",
		Help:      "Merge call latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"kind"})

	rowsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docket_merger",
		Name:      "rows_created_total",
		Help:      "Canonical rows created by table",
	}, []string{"table"})

	// Labels: operation (parties, case_query)
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docket_merger",
		Name:      "retries_total",
		Help:      "Retried attempts after a transient or conflicting write",
	}, []string{"operation"})

	orphansReprocessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docket_merger",
		Name:      "orphans_reprocessed_total",
		Help:      "Failed document uploads handed back for processing",
	}, []string{"result"})

	duplicatesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docket_merger",
		Name:      "duplicate_documents_removed_total",
		Help:      "Duplicate documents deleted by cleanup",
	})
)

// ObserveMerge records one finished merge call.
func ObserveMerge(kind string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	mergesTotal.WithLabelValues(kind, result).Inc()
	mergeDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func RowsCreated(table string, n int) {
	if n > 0 {
		rowsCreated.WithLabelValues(table).Add(float64(n))
	}
}

func Retry(operation string) {
	retriesTotal.WithLabelValues(operation).Inc()
}

func OrphanReprocessed(err error) {
	if err != nil {
		orphansReprocessed.WithLabelValues("error").Inc()
		return
	}
	orphansReprocessed.WithLabelValues("ok").Inc()
}

func DuplicatesRemoved(n int) {
	if n > 0 {
		duplicatesRemoved.Add(float64(n))
	}
}
