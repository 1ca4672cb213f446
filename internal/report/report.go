// Package report provides verify.Reporter implementations: structured log
// output in the TestFloat layout, Prometheus counters, fan-out, and an
// in-memory recorder.
package report

import (
	"strings"
	"sync"

	"github.com/23skdu/longbow-testfloat/internal/logger"
	"github.com/23skdu/longbow-testfloat/internal/metrics"
	"github.com/23skdu/longbow-testfloat/internal/verify"
)

// Operands renders operand bit patterns separated by spaces.
func Operands(rec verify.ErrorRecord) string {
	parts := make([]string, len(rec.Operands))
	for i, b := range rec.Operands {
		parts[i] = rec.Format.Hex(b)
	}
	return strings.Join(parts, " ")
}

// Log writes run events through a logger. Errors go out at warn level,
// progress and summaries at info.
type Log struct {
	log *logger.Logger
}

// NewLog returns a reporter whose events carry the run ID and mode.
func NewLog(l *logger.Logger, runID, mode string) *Log {
	return &Log{log: l.With("run", runID, "mode", mode)}
}

func (r *Log) Start(op string, total int64) {
	if total < 0 {
		r.log.Info("testing forever", "op", op)
		return
	}
	r.log.Info("testing", "op", op, "total", total)
}

func (r *Log) Progress(op string, cases int64) {
	r.log.Debug("progress", "op", op, "cases", cases)
}

func (r *Log) Mismatch(rec verify.ErrorRecord) {
	r.log.Warn("error found",
		"op", rec.Op,
		"case", rec.Index,
		"number", rec.Number,
		"operands", Operands(rec),
		"true", rec.Format.Hex(rec.True),
		"true_flags", rec.TrueFlags.String(),
		"test", rec.Format.Hex(rec.Test),
		"test_flags", rec.TestFlags.String(),
	)
}

func (r *Log) Finish(s verify.Stats) {
	args := []interface{}{
		"op", s.Op,
		"cases", s.Cases,
		"errors", s.Errors,
		"suppressed", s.Suppressed,
		"outcome", s.Outcome.String(),
		"elapsed", s.Elapsed.String(),
	}
	switch {
	case s.Passed():
		r.log.Info("no errors found", args...)
	case s.Outcome == verify.ErrorLimit:
		r.log.Warn("stopped at error limit", args...)
	case s.Outcome == verify.Canceled:
		r.log.Warn("run canceled", args...)
	default:
		r.log.Warn("errors found", args...)
	}
}

// Metrics feeds run events into the Prometheus collectors.
type Metrics struct {
	mode string
	last int64
}

func NewMetrics(mode string) *Metrics {
	return &Metrics{mode: mode}
}

func (r *Metrics) Start(string, int64) {
	metrics.RecordRunStarted()
}

func (r *Metrics) Progress(op string, cases int64) {
	metrics.RecordCases(op, r.mode, cases-r.last)
	r.last = cases
}

func (r *Metrics) Mismatch(rec verify.ErrorRecord) {
	metrics.RecordMismatch(rec.Op, r.mode, rec.TrueFlags, rec.TestFlags)
}

func (r *Metrics) Finish(s verify.Stats) {
	metrics.RecordCases(s.Op, r.mode, s.Cases-r.last)
	r.last = s.Cases
	metrics.RecordSuppressed(s.Op, r.mode, s.Suppressed)
	metrics.RecordRunFinished(s.Op, s.Outcome.String(), s.Elapsed)
}

// Multi forwards every event to each reporter in order.
type Multi []verify.Reporter

func (m Multi) Start(op string, total int64) {
	for _, r := range m {
		r.Start(op, total)
	}
}

func (m Multi) Progress(op string, cases int64) {
	for _, r := range m {
		r.Progress(op, cases)
	}
}

func (m Multi) Mismatch(rec verify.ErrorRecord) {
	for _, r := range m {
		r.Mismatch(rec)
	}
}

func (m Multi) Finish(s verify.Stats) {
	for _, r := range m {
		r.Finish(s)
	}
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	total    int64
	progress []int64
	errors   []verify.ErrorRecord
	stats    *verify.Stats
}

func (r *Recorder) Start(_ string, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
}

func (r *Recorder) Progress(_ string, cases int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, cases)
}

func (r *Recorder) Mismatch(rec verify.ErrorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, rec)
}

func (r *Recorder) Finish(s verify.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = &s
}

// Total returns the case estimate passed to Start.
func (r *Recorder) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Checkpoints returns the cumulative counts passed to Progress.
func (r *Recorder) Checkpoints() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.progress...)
}

func (r *Recorder) Mismatches() []verify.ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]verify.ErrorRecord(nil), r.errors...)
}

// Stats returns the summary, or false if the run has not finished.
func (r *Recorder) Stats() (verify.Stats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stats == nil {
		return verify.Stats{}, false
	}
	return *r.stats, true
}
