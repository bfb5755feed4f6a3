package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("modelres.pipeline")

// Stage labels.
const (
	stageDirect       = "direct"
	stageArchive      = "archive"
	stageCanonicalize = "canonicalize"
)

var (
	// stageOutcomes counts stage attempts.
	// Labels: stage (direct, archive, canonicalize), outcome (OutcomeKind)
	stageOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelres",
		Name:      "stage_outcomes_total",
		Help:      "Stage attempts by stage and outcome",
	}, []string{"stage", "outcome"})

	// resolveDuration measures submission to delivery.
	// Labels: result (FailureClass, or success)
	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "modelres",
		Name:      "resolve_duration_seconds",
		Help:      "Time from request submission to result delivery",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"result"})

	// discardedResults counts results dropped instead of delivered.
	// Labels: reason (superseded, closed)
	discardedResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelres",
		Name:      "discarded_results_total",
		Help:      "Resolution results discarded without invoking callbacks",
	}, []string{"reason"})

	// archiveEntriesProbed counts archive entries probed as models.
	archiveEntriesProbed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "modelres",
		Name:      "archive_entries_probed_total",
		Help:      "Archive entries probed as models",
	})
)
