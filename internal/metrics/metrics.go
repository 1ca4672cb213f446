package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/23skdu/longbow-testfloat/internal/fenv"
)

var (
	CasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testfloat_cases_total",
		Help: "Total number of cases verified",
	}, []string{"op", "mode"})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testfloat_errors_total",
		Help: "Total number of reported mismatches",
	}, []string{"op", "mode"})

	// MismatchFlags counts, per exception flag, the reported errors where the
	// reference and candidate disagreed on that flag.
	MismatchFlags = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testfloat_mismatch_flags_total",
		Help: "Reported errors by disagreeing exception flag",
	}, []string{"op", "flag"})

	SuppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testfloat_nan_suppressed_total",
		Help: "Mismatches tolerated because a signaling NaN operand excused them",
	}, []string{"op", "mode"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testfloat_runs_total",
		Help: "Finished verification runs by outcome",
	}, []string{"op", "outcome"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "testfloat_run_duration_seconds",
		Help:    "Wall time of verification runs",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 1800},
	}, []string{"op"})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "testfloat_active_runs",
		Help: "Verification runs currently in progress",
	})

	ArrowRecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testfloat_arrow_records_written_total",
		Help: "Error records written to Arrow sinks",
	}, []string{"sink"})

	ArrowWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testfloat_arrow_write_errors_total",
		Help: "Failed writes to Arrow sinks",
	}, []string{"sink"})
)

func RecordRunStarted() {
	ActiveRuns.Inc()
}

// RecordRunFinished closes out a run started with RecordRunStarted
func RecordRunFinished(op, outcome string, duration time.Duration) {
	ActiveRuns.Dec()
	RunsTotal.WithLabelValues(op, outcome).Inc()
	RunDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func RecordCases(op, mode string, n int64) {
	if n > 0 {
		CasesTotal.WithLabelValues(op, mode).Add(float64(n))
	}
}

// RecordMismatch counts one reported error and each flag the two sides
// disagreed on
func RecordMismatch(op, mode string, trueFlags, testFlags fenv.Flags) {
	ErrorsTotal.WithLabelValues(op, mode).Inc()
	for _, name := range (trueFlags ^ testFlags).Names() {
		MismatchFlags.WithLabelValues(op, name).Inc()
	}
}

func RecordSuppressed(op, mode string, n int64) {
	if n > 0 {
		SuppressedTotal.WithLabelValues(op, mode).Add(float64(n))
	}
}

func RecordArrowWrite(sink string, records int, err error) {
	if err != nil {
		ArrowWriteErrors.WithLabelValues(sink).Inc()
		return
	}
	ArrowRecordsWritten.WithLabelValues(sink).Add(float64(records))
}
