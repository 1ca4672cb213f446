// Package verify drives a reference and a candidate implementation of one
// floating-point operation over a case stream and reports every case where
// their results or exception flags disagree.
package verify

import (
	"context"
	"time"

	"github.com/23skdu/longbow-testfloat/internal/fenv"
	"github.com/23skdu/longbow-testfloat/internal/fpbits"
	"github.com/23skdu/longbow-testfloat/internal/gencases"
)

// DefaultWindow is the number of cases between progress reports.
const DefaultWindow = 10000

// Op computes one operation. Flags are raised into env, which the
// Verifier clears before every call.
type Op[T fpbits.Float] func(env *fenv.Env, args []T) T

// Options configures a single run.
type Options struct {
	// CheckNaNs requires NaN results to match in quiet bit and payload.
	CheckNaNs bool
	// MaxErrors stops the run once this many errors are reported. Zero
	// means no limit.
	MaxErrors int64
	// Window is the progress interval in cases. Zero means DefaultWindow.
	Window int64
}

// Outcome tells how a run ended.
type Outcome uint8

const (
	// Exhausted means the case stream ended.
	Exhausted Outcome = iota
	// ErrorLimit means MaxErrors errors were reported.
	ErrorLimit
	// Canceled means the context was done before the stream ended.
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case ErrorLimit:
		return "error_limit"
	case Canceled:
		return "canceled"
	}
	return "exhausted"
}

// Stats summarizes a finished run.
type Stats struct {
	Op         string
	Format     string
	Cases      int64
	Windows    int64
	Errors     int64
	Suppressed int64
	Outcome    Outcome
	Elapsed    time.Duration
}

// Passed reports whether the run ended without errors.
func (s Stats) Passed() bool {
	return s.Errors == 0 && s.Outcome == Exhausted
}

// ErrorRecord describes one reported mismatch. Values are bit patterns in
// Format so that reporters need not be generic.
type ErrorRecord struct {
	Op        string
	Format    fpbits.Format
	Operands  []uint64
	True      uint64
	TrueFlags fenv.Flags
	Test      uint64
	TestFlags fenv.Flags
	// Index is the case's position within the current progress window.
	Index int64
	// Number counts reported errors in the run, starting at 1.
	Number int64
}

// Reporter receives run events. Calls are synchronous and must return
// promptly.
type Reporter interface {
	// Start is called once with the expected case count, or -1 if the
	// stream is unbounded.
	Start(op string, total int64)
	// Progress is called after every completed window with the cumulative
	// case count.
	Progress(op string, cases int64)
	// Mismatch is called for every reported error as it is found.
	Mismatch(rec ErrorRecord)
	// Finish is called once with the summary, however the run ended.
	Finish(stats Stats)
}

// Run verifies candidate against reference over every case in src. It
// returns a non-nil error only when ctx is canceled; mismatches are
// delivered to rep and counted in the returned Stats.
func Run[T fpbits.Float](ctx context.Context, op string, reference, candidate Op[T], src gencases.Source[T], opts Options, rep Reporter) (Stats, error) {
	f := fpbits.FormatOf[T]()
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}

	env := fenv.New()
	stats := Stats{Op: op, Format: f.Name, Outcome: Exhausted}
	start := time.Now()
	rep.Start(op, src.Total)

	count := window
	var err error
	for c := range src.Cases {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			stats.Outcome = Canceled
		default:
		}
		if err != nil {
			break
		}

		args := c.Args()
		env.Clear()
		trueZ := reference(env, args)
		trueFlags := env.Take()
		testZ := candidate(env, args)
		testFlags := env.Take()

		count--
		if count == 0 {
			stats.Windows++
			rep.Progress(op, stats.Windows*window)
			count = window
		}

		// Without NaN checking a signaling NaN result is never acceptable,
		// even though NaNs otherwise compare equal. With it, only exact bit
		// equality counts.
		if fpbits.Same(trueZ, testZ, opts.CheckNaNs) && trueFlags == testFlags &&
			(opts.CheckNaNs || !fpbits.IsSignalingNaN(testZ)) {
			continue
		}
		if !opts.CheckNaNs && anySignaling(args) {
			trueFlags |= fenv.Invalid
		}
		if !opts.CheckNaNs && fpbits.IsNaN(trueZ) && fpbits.IsNaN(testZ) &&
			!fpbits.IsSignalingNaN(testZ) && trueFlags == testFlags {
			stats.Suppressed++
			continue
		}

		stats.Errors++
		rep.Mismatch(ErrorRecord{
			Op:        op,
			Format:    f,
			Operands:  operandBits(args),
			True:      fpbits.Bits(trueZ),
			TrueFlags: trueFlags,
			Test:      fpbits.Bits(testZ),
			TestFlags: testFlags,
			Index:     window - count,
			Number:    stats.Errors,
		})
		if opts.MaxErrors > 0 && stats.Errors == opts.MaxErrors {
			stats.Outcome = ErrorLimit
			break
		}
	}

	stats.Cases = stats.Windows*window + (window - count)
	stats.Elapsed = time.Since(start)
	rep.Finish(stats)
	return stats, err
}

func anySignaling[T fpbits.Float](args []T) bool {
	for _, x := range args {
		if fpbits.IsSignalingNaN(x) {
			return true
		}
	}
	return false
}

func operandBits[T fpbits.Float](args []T) []uint64 {
	out := make([]uint64, len(args))
	for i, x := range args {
		out[i] = fpbits.Bits(x)
	}
	return out
}
