package verify

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/23skdu/longbow-testfloat/internal/fenv"
	"github.com/23skdu/longbow-testfloat/internal/gencases"
)

var (
	sNaN   = math.Float64frombits(0x7FF0000000000001)
	qNaN   = math.Float64frombits(0x7FF8000000000001)
	qNaN2  = math.Float64frombits(0x7FF8000000000002)
	negNaN = math.Float64frombits(0xFFF8000000000000)
)

type recorder struct {
	starts   []int64
	progress []int64
	errs     []ErrorRecord
	finished []Stats
}

func (r *recorder) Start(_ string, total int64)    { r.starts = append(r.starts, total) }
func (r *recorder) Progress(_ string, cases int64) { r.progress = append(r.progress, cases) }
func (r *recorder) Mismatch(rec ErrorRecord)       { r.errs = append(r.errs, rec) }
func (r *recorder) Finish(s Stats)                 { r.finished = append(r.finished, s) }

func source(cases ...[]float64) gencases.Source[float64] {
	seq := func(yield func(gencases.Case[float64]) bool) {
		for _, ops := range cases {
			c := gencases.Case[float64]{Arity: len(ops)}
			copy(c.Operands[:], ops)
			if !yield(c) {
				return
			}
		}
	}
	return gencases.Source[float64]{Cases: seq, Total: int64(len(cases))}
}

// repeat yields n copies of the same binary case.
func repeat(n int64, a, b float64) gencases.Source[float64] {
	seq := func(yield func(gencases.Case[float64]) bool) {
		for i := int64(0); i < n; i++ {
			if !yield(gencases.Case[float64]{Operands: [3]float64{a, b}, Arity: 2}) {
				return
			}
		}
	}
	return gencases.Source[float64]{Cases: seq, Total: n}
}

func fixed(z float64, flags fenv.Flags) Op[float64] {
	return func(env *fenv.Env, _ []float64) float64 {
		env.Raise(flags)
		return z
	}
}

func TestNonNaNMismatch(t *testing.T) {
	tests := []struct {
		name      string
		ref, cand Op[float64]
		wantError bool
	}{
		{"identical", fixed(3, fenv.Inexact), fixed(3, fenv.Inexact), false},
		{"value differs", fixed(3, fenv.None), fixed(4, fenv.None), true},
		{"flags differ", fixed(3, fenv.Inexact), fixed(3, fenv.None), true},
		{"signed zero", fixed(0, fenv.None), fixed(math.Copysign(0, -1), fenv.None), true},
		{"infinity sign", fixed(math.Inf(1), fenv.None), fixed(math.Inf(-1), fenv.None), true},
		{"divide by zero missing", fixed(math.Inf(1), fenv.DivByZero), fixed(math.Inf(1), fenv.None), true},
	}

	for _, tt := range tests {
		for _, checkNaNs := range []bool{false, true} {
			rec := &recorder{}
			stats, err := Run(context.Background(), "f64_test", tt.ref, tt.cand,
				source([]float64{1, 2}), Options{CheckNaNs: checkNaNs, MaxErrors: 20}, rec)
			if err != nil {
				t.Fatal(err)
			}
			if got := len(rec.errs) == 1; got != tt.wantError {
				t.Errorf("%s (checkNaNs=%v): reported=%v, want %v", tt.name, checkNaNs, got, tt.wantError)
			}
			if stats.Suppressed != 0 {
				t.Errorf("%s: NaN tolerance applied to non-NaN case", tt.name)
			}
		}
	}
}

func TestDivideByZeroScenario(t *testing.T) {
	ref := func(env *fenv.Env, x []float64) float64 {
		if x[1] == 0 {
			env.Raise(fenv.DivByZero)
		}
		return x[0] / x[1]
	}
	cand := func(_ *fenv.Env, x []float64) float64 { return x[0] / x[1] }

	rec := &recorder{}
	stats, _ := Run(context.Background(), "f64_div", ref, cand, source([]float64{1, 0}), Options{MaxErrors: 20}, rec)

	if stats.Errors != 1 || len(rec.errs) != 1 {
		t.Fatalf("expected one error, got %d", stats.Errors)
	}
	e := rec.errs[0]
	if e.TrueFlags != fenv.DivByZero || e.TestFlags != fenv.None {
		t.Errorf("unexpected flags: true %s test %s", e.TrueFlags, e.TestFlags)
	}
	if e.True != math.Float64bits(math.Inf(1)) || e.Test != e.True {
		t.Errorf("unexpected values: %#x %#x", e.True, e.Test)
	}
	if len(e.Operands) != 2 || e.Operands[0] != math.Float64bits(1) || e.Operands[1] != 0 {
		t.Errorf("unexpected operands %#x", e.Operands)
	}
	if e.Index != 1 || e.Number != 1 || e.Format.Name != "f64" {
		t.Errorf("unexpected record position: %+v", e)
	}
}

func TestSignalingInputTolerance(t *testing.T) {
	tests := []struct {
		name           string
		ref, cand      Op[float64]
		checkNaNs      bool
		wantError      bool
		wantSuppressed int64
	}{
		{
			name:           "quiet result with invalid",
			ref:            fixed(qNaN, fenv.None),
			cand:           fixed(qNaN, fenv.Invalid),
			wantSuppressed: 1,
		},
		{
			name:           "different quiet payload",
			ref:            fixed(qNaN, fenv.Invalid),
			cand:           fixed(negNaN, fenv.Invalid),
			wantSuppressed: 0,
		},
		{
			name:      "signaling result",
			ref:       fixed(qNaN, fenv.None),
			cand:      fixed(sNaN, fenv.Invalid),
			wantError: true,
		},
		{
			name:      "invalid missing",
			ref:       fixed(qNaN, fenv.Invalid),
			cand:      fixed(qNaN, fenv.None),
			wantError: true,
		},
		{
			name:      "extra flag",
			ref:       fixed(qNaN, fenv.None),
			cand:      fixed(qNaN, fenv.Invalid|fenv.Inexact),
			wantError: true,
		},
		{
			name:      "non-NaN result",
			ref:       fixed(qNaN, fenv.Invalid),
			cand:      fixed(3, fenv.Invalid),
			wantError: true,
		},
		{
			name:      "strict checking",
			ref:       fixed(qNaN, fenv.None),
			cand:      fixed(qNaN, fenv.Invalid),
			checkNaNs: true,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			stats, _ := Run(context.Background(), "f64_add", tt.ref, tt.cand,
				source([]float64{3, sNaN}), Options{CheckNaNs: tt.checkNaNs, MaxErrors: 20}, rec)
			if got := len(rec.errs) == 1; got != tt.wantError {
				t.Errorf("reported=%v, want %v", got, tt.wantError)
			}
			if stats.Suppressed != tt.wantSuppressed {
				t.Errorf("suppressed=%d, want %d", stats.Suppressed, tt.wantSuppressed)
			}
		})
	}
}

func TestSignalingOutputAlwaysReported(t *testing.T) {
	// No signaling operand, matching flags: only the output is wrong.
	rec := &recorder{}
	Run(context.Background(), "f64_mul", fixed(qNaN, fenv.Invalid), fixed(sNaN, fenv.Invalid),
		source([]float64{0, math.Inf(1)}), Options{}, rec)
	if len(rec.errs) != 1 {
		t.Errorf("expected signaling output to be reported, got %d errors", len(rec.errs))
	}
}

func TestCheckNaNsAcceptsIdenticalSignalingOutput(t *testing.T) {
	rec := &recorder{}
	stats, _ := Run(context.Background(), "f64_mul", fixed(sNaN, fenv.Invalid), fixed(sNaN, fenv.Invalid),
		source([]float64{0, math.Inf(1)}), Options{CheckNaNs: true}, rec)
	if len(rec.errs) != 0 || stats.Errors != 0 {
		t.Errorf("expected bit-identical outputs to pass, got %d errors", len(rec.errs))
	}

	// A different signaling payload is still an error.
	rec = &recorder{}
	Run(context.Background(), "f64_mul", fixed(sNaN, fenv.Invalid),
		fixed(math.Float64frombits(0x7FF0000000000002), fenv.Invalid),
		source([]float64{0, math.Inf(1)}), Options{CheckNaNs: true}, rec)
	if len(rec.errs) != 1 {
		t.Errorf("expected payload difference to be reported, got %d errors", len(rec.errs))
	}
}

func TestToleranceOnlyForSignalingInputs(t *testing.T) {
	// A quiet NaN operand does not excuse a missing invalid flag.
	rec := &recorder{}
	Run(context.Background(), "f64_add", fixed(qNaN, fenv.None), fixed(qNaN, fenv.Invalid),
		source([]float64{3, qNaN}), Options{}, rec)
	if len(rec.errs) != 1 {
		t.Errorf("expected error for quiet NaN operand, got %d", len(rec.errs))
	}
}

func TestCheckNaNsReportsPayloadDifference(t *testing.T) {
	for _, checkNaNs := range []bool{false, true} {
		rec := &recorder{}
		Run(context.Background(), "f64_add", fixed(qNaN, fenv.None), fixed(qNaN2, fenv.None),
			source([]float64{qNaN, 1}), Options{CheckNaNs: checkNaNs}, rec)
		if got := len(rec.errs) == 1; got != checkNaNs {
			t.Errorf("checkNaNs=%v: reported=%v", checkNaNs, got)
		}
	}
}

func TestAdjustedFlagsInRecord(t *testing.T) {
	rec := &recorder{}
	Run(context.Background(), "f64_add", fixed(qNaN, fenv.None), fixed(sNaN, fenv.Invalid),
		source([]float64{3, sNaN}), Options{}, rec)
	if len(rec.errs) != 1 {
		t.Fatalf("expected one error, got %d", len(rec.errs))
	}
	if rec.errs[0].TrueFlags != fenv.Invalid {
		t.Errorf("expected adjusted reference flags, got %s", rec.errs[0].TrueFlags)
	}
}

func TestStopsAtErrorLimit(t *testing.T) {
	var consumed int64
	seq := func(yield func(gencases.Case[float64]) bool) {
		for i := 0; i < 1000; i++ {
			consumed++
			if !yield(gencases.Case[float64]{Operands: [3]float64{float64(i)}, Arity: 1}) {
				return
			}
		}
	}
	// Every third case mismatches.
	cand := func(_ *fenv.Env, x []float64) float64 {
		if int(x[0])%3 == 2 {
			return -1
		}
		return x[0]
	}
	ref := func(_ *fenv.Env, x []float64) float64 { return x[0] }

	for _, limit := range []int64{1, 5} {
		consumed = 0
		rec := &recorder{}
		stats, err := Run(context.Background(), "f64_id", ref, cand,
			gencases.Source[float64]{Cases: seq, Total: 1000}, Options{MaxErrors: limit}, rec)
		if err != nil {
			t.Fatal(err)
		}
		if int64(len(rec.errs)) != limit || stats.Errors != limit {
			t.Errorf("limit %d: got %d records", limit, len(rec.errs))
		}
		if stats.Outcome != ErrorLimit {
			t.Errorf("limit %d: outcome %s", limit, stats.Outcome)
		}
		// The limit-th error is case number 3*limit.
		if consumed != 3*limit || stats.Cases != 3*limit {
			t.Errorf("limit %d: consumed %d cases, stats %d, want %d", limit, consumed, stats.Cases, 3*limit)
		}
	}
}

func TestUnlimitedErrors(t *testing.T) {
	rec := &recorder{}
	stats, _ := Run(context.Background(), "f64_bad", fixed(1, fenv.None), fixed(2, fenv.None),
		repeat(500, 1, 1), Options{MaxErrors: 0}, rec)
	if stats.Errors != 500 || stats.Outcome != Exhausted || stats.Passed() {
		t.Errorf("unexpected stats %+v", stats)
	}
	if rec.errs[499].Number != 500 {
		t.Errorf("expected errors numbered sequentially, last is %d", rec.errs[499].Number)
	}
}

func TestProgressWindows(t *testing.T) {
	rec := &recorder{}
	stats, _ := Run(context.Background(), "f64_add", fixed(1, fenv.None), fixed(1, fenv.None),
		repeat(25000, 1, 1), Options{}, rec)

	if len(rec.progress) != 2 || rec.progress[0] != 10000 || rec.progress[1] != 20000 {
		t.Errorf("unexpected progress %v", rec.progress)
	}
	if stats.Cases != 25000 || stats.Windows != 2 {
		t.Errorf("expected 25000 cases in 2 windows, got %d in %d", stats.Cases, stats.Windows)
	}
	if len(rec.starts) != 1 || rec.starts[0] != 25000 {
		t.Errorf("unexpected start %v", rec.starts)
	}
	if len(rec.finished) != 1 || !rec.finished[0].Passed() {
		t.Errorf("unexpected finish %v", rec.finished)
	}
}

func TestExactWindowMultiple(t *testing.T) {
	rec := &recorder{}
	stats, _ := Run(context.Background(), "f64_add", fixed(1, fenv.None), fixed(1, fenv.None),
		repeat(300, 1, 1), Options{Window: 100}, rec)
	if stats.Cases != 300 || stats.Windows != 3 || len(rec.progress) != 3 {
		t.Errorf("expected 300 cases in 3 windows, got %d in %d", stats.Cases, stats.Windows)
	}
}

func TestErrorIndexWithinWindow(t *testing.T) {
	ref := func(_ *fenv.Env, x []float64) float64 { return x[0] }
	cand := func(_ *fenv.Env, x []float64) float64 {
		if x[0] == 7 || x[0] == 10 || x[0] == 13 {
			return -1
		}
		return x[0]
	}
	var cases [][]float64
	for i := 1; i <= 20; i++ {
		cases = append(cases, []float64{float64(i)})
	}
	rec := &recorder{}
	Run(context.Background(), "f64_id", ref, cand, source(cases...), Options{Window: 5}, rec)

	want := []int64{2, 0, 3}
	if len(rec.errs) != len(want) {
		t.Fatalf("expected %d errors, got %d", len(want), len(rec.errs))
	}
	for i, e := range rec.errs {
		if e.Index != want[i] {
			t.Errorf("error %d: index %d, want %d", i, e.Index, want[i])
		}
	}
}

func TestFlagsIsolatedBetweenCalls(t *testing.T) {
	ref := func(env *fenv.Env, _ []float64) float64 {
		if env.Flags() != fenv.None {
			t.Errorf("reference saw stale flags %s", env.Flags())
		}
		env.Raise(fenv.Inexact | fenv.Overflow)
		return 1
	}
	cand := func(env *fenv.Env, _ []float64) float64 {
		if env.Flags() != fenv.None {
			t.Errorf("candidate saw reference flags %s", env.Flags())
		}
		env.Raise(fenv.Invalid)
		return 1
	}
	rec := &recorder{}
	Run(context.Background(), "f64_x", ref, cand, repeat(3, 1, 1), Options{}, rec)
	for _, e := range rec.errs {
		if e.TrueFlags != fenv.Inexact|fenv.Overflow || e.TestFlags != fenv.Invalid {
			t.Errorf("flags leaked: true %s test %s", e.TrueFlags, e.TestFlags)
		}
	}
}

func TestCanceledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	ref := func(_ *fenv.Env, _ []float64) float64 {
		calls++
		if calls == 50 {
			cancel()
		}
		return 1
	}
	rec := &recorder{}
	stats, err := Run(ctx, "f64_add", ref, fixed(1, fenv.None), repeat(1000, 1, 1), Options{}, rec)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if stats.Outcome != Canceled || stats.Cases != 50 {
		t.Errorf("expected cancel after 50 cases, got %s after %d", stats.Outcome, stats.Cases)
	}
	if len(rec.finished) != 1 {
		t.Error("summary not emitted on cancel")
	}
}

func TestOutcomeString(t *testing.T) {
	if Exhausted.String() != "exhausted" || ErrorLimit.String() != "error_limit" || Canceled.String() != "canceled" {
		t.Error("unexpected outcome names")
	}
}

func TestFloat32Run(t *testing.T) {
	src, err := gencases.New[float32](2, gencases.Options{Level: 1})
	if err != nil {
		t.Fatal(err)
	}
	same := func(_ *fenv.Env, x []float32) float32 {
		if x[0] != x[0] {
			return float32(math.NaN())
		}
		return x[0]
	}
	rec := &recorder{}
	stats, _ := Run(context.Background(), "f32_first", same, same, src, Options{}, rec)
	if stats.Cases != src.Total || stats.Errors != 0 || stats.Format != "f32" {
		t.Errorf("unexpected stats %+v", stats)
	}
}
