// Package ops is the registry of verifiable operations. Each entry binds a
// reference from softfloat to the candidates that can be checked against it
// and knows how to generate cases for its arity.
package ops

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/23skdu/longbow-testfloat/internal/fenv"
	"github.com/23skdu/longbow-testfloat/internal/fpbits"
	"github.com/23skdu/longbow-testfloat/internal/gencases"
	"github.com/23skdu/longbow-testfloat/internal/native"
	"github.com/23skdu/longbow-testfloat/internal/softfloat"
	"github.com/23skdu/longbow-testfloat/internal/verify"
)

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrNoCandidate      = errors.New("candidate not available")
)

// Candidate names.
const (
	// Native checks the host's floating-point unit against the reference.
	Native = "native"
	// Reference runs the reference against itself. It supports every
	// operation and mode and only fails when the harness itself is broken.
	Reference = "reference"
)

// Candidates lists every candidate name.
var Candidates = []string{Native, Reference}

// Settings are the per-run parameters of an operation.
type Settings struct {
	Mode     fenv.RoundingMode
	Tininess softfloat.Tininess
	// Exact requests the inexact flag from roundToInt.
	Exact  bool
	Cases  gencases.Options
	Verify verify.Options
}

// Operation is one registered operation, such as f64_add.
type Operation struct {
	Name   string
	Format fpbits.Format
	Arity  int
	// NativeModes lists the rounding modes the native candidate supports.
	// It is empty when there is no native candidate.
	NativeModes []fenv.RoundingMode

	run func(ctx context.Context, candidate string, s Settings, rep verify.Reporter) (verify.Stats, error)
}

// Run verifies candidate against the reference under s.
func (o *Operation) Run(ctx context.Context, candidate string, s Settings, rep verify.Reporter) (verify.Stats, error) {
	return o.run(ctx, candidate, s, rep)
}

// Supports reports whether candidate can run in mode.
func (o *Operation) Supports(candidate string, mode fenv.RoundingMode) bool {
	switch candidate {
	case Reference:
		return true
	case Native:
		return slices.Contains(o.NativeModes, mode)
	}
	return false
}

var registry = map[string]*Operation{}

// Lookup returns the operation with the given name.
func Lookup(name string) (*Operation, error) {
	op, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return op, nil
}

// Names returns every registered operation name in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type builder[T fpbits.Float] func(s Settings) verify.Op[T]

func register[T fpbits.Float](kind string, arity int, reference builder[T], candidate builder[T], modes []fenv.RoundingMode) {
	f := fpbits.FormatOf[T]()
	op := &Operation{
		Name:   f.Name + "_" + kind,
		Format: f,
		Arity:  arity,
	}
	if candidate != nil {
		op.NativeModes = modes
	}

	op.run = func(ctx context.Context, name string, s Settings, rep verify.Reporter) (verify.Stats, error) {
		if !op.Supports(name, s.Mode) {
			return verify.Stats{}, fmt.Errorf("%w: %s for %s in mode %s", ErrNoCandidate, name, op.Name, s.Mode)
		}
		ref := reference(s)
		test := ref
		if name == Native {
			test = candidate(s)
		}
		src, err := gencases.New[T](arity, s.Cases)
		if err != nil {
			return verify.Stats{}, fmt.Errorf("%s: %w", op.Name, err)
		}
		return verify.Run(ctx, op.Name, ref, test, src, s.Verify, rep)
	}
	registry[op.Name] = op
}

func softContext(s Settings) softfloat.Context {
	return softfloat.Context{Mode: s.Mode, Tininess: s.Tininess}
}

func registerFormat[T fpbits.Float]() {
	nearEven := []fenv.RoundingMode{fenv.NearEven}

	binary := func(kind string, ref func(softfloat.Context, *fenv.Env, T, T) T, nat func(*fenv.Env, T, T) T) {
		register[T](kind, 2,
			func(s Settings) verify.Op[T] {
				c := softContext(s)
				return func(env *fenv.Env, x []T) T { return ref(c, env, x[0], x[1]) }
			},
			func(Settings) verify.Op[T] {
				return func(env *fenv.Env, x []T) T { return nat(env, x[0], x[1]) }
			},
			nearEven)
	}
	binary("add", softfloat.Add[T], native.Add[T])
	binary("sub", softfloat.Sub[T], native.Sub[T])
	binary("mul", softfloat.Mul[T], native.Mul[T])
	binary("div", softfloat.Div[T], native.Div[T])

	register[T]("sqrt", 1,
		func(s Settings) verify.Op[T] {
			c := softContext(s)
			return func(env *fenv.Env, x []T) T { return softfloat.Sqrt(c, env, x[0]) }
		},
		func(Settings) verify.Op[T] {
			return func(env *fenv.Env, x []T) T { return native.Sqrt(env, x[0]) }
		},
		nearEven)

	register[T]("mulAdd", 3,
		func(s Settings) verify.Op[T] {
			c := softContext(s)
			return func(env *fenv.Env, x []T) T { return softfloat.MulAdd(c, env, x[0], x[1], x[2]) }
		},
		func(Settings) verify.Op[T] {
			return func(env *fenv.Env, x []T) T { return native.MulAdd(env, x[0], x[1], x[2]) }
		},
		nearEven)

	register[T]("roundToInt", 1,
		func(s Settings) verify.Op[T] {
			c := softContext(s)
			return func(env *fenv.Env, x []T) T { return softfloat.RoundToInt(c, env, x[0], s.Exact) }
		},
		func(s Settings) verify.Op[T] {
			return func(env *fenv.Env, x []T) T { return native.RoundToInt(s.Mode, env, x[0], s.Exact) }
		},
		fenv.RoundingModes)
}

func init() {
	registerFormat[float32]()
	registerFormat[float64]()
}
