// Package gencases produces operand tuples for a verification run. Level 1
// enumerates every combination of a table of boundary values; level 2 adds a
// seeded random sample; forever mode draws random tuples without end.
package gencases

import (
	"fmt"
	"iter"
	"math/rand/v2"

	"github.com/23skdu/longbow-testfloat/internal/fpbits"
)

// MaxArity is the widest operand tuple, used by mulAdd.
const MaxArity = 3

// Level2Random is the number of random tuples level 2 adds per run.
const Level2Random = 1 << 18

// Case is one operand tuple.
type Case[T fpbits.Float] struct {
	Operands [MaxArity]T
	Arity    int
}

// Args returns the operands in call order.
func (c Case[T]) Args() []T {
	return c.Operands[:c.Arity]
}

// Options selects how cases are generated.
type Options struct {
	Level   int
	Seed    uint64
	Forever bool
}

// Source is a lazy case stream. Total is the number of cases the stream
// yields, or -1 when it never ends.
type Source[T fpbits.Float] struct {
	Cases iter.Seq[Case[T]]
	Total int64
}

// New returns the case source for an operation of the given arity.
func New[T fpbits.Float](arity int, opts Options) (Source[T], error) {
	if arity < 1 || arity > MaxArity {
		return Source[T]{}, fmt.Errorf("invalid arity: %d (must be 1..%d)", arity, MaxArity)
	}
	if opts.Level != 1 && opts.Level != 2 {
		return Source[T]{}, fmt.Errorf("invalid level: %d (must be 1 or 2)", opts.Level)
	}

	table := Table[T]()
	if opts.Forever {
		return Source[T]{Cases: random(table, arity, opts.Seed, -1), Total: -1}, nil
	}

	exhaustive := int64(1)
	for i := 0; i < arity; i++ {
		exhaustive *= int64(len(table))
	}
	if opts.Level == 1 {
		return Source[T]{Cases: product(table, arity), Total: exhaustive}, nil
	}
	seq := func(yield func(Case[T]) bool) {
		for c := range product(table, arity) {
			if !yield(c) {
				return
			}
		}
		for c := range random(table, arity, opts.Seed, Level2Random) {
			if !yield(c) {
				return
			}
		}
	}
	return Source[T]{Cases: seq, Total: exhaustive + Level2Random}, nil
}

// product enumerates the table's cartesian power, first operand slowest.
func product[T fpbits.Float](table []T, arity int) iter.Seq[Case[T]] {
	return func(yield func(Case[T]) bool) {
		var idx [MaxArity]int
		for {
			c := Case[T]{Arity: arity}
			for i := 0; i < arity; i++ {
				c.Operands[i] = table[idx[i]]
			}
			if !yield(c) {
				return
			}
			i := arity - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(table) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

// random yields n seeded random tuples, or an endless stream when n < 0.
func random[T fpbits.Float](table []T, arity int, seed uint64, n int64) iter.Seq[Case[T]] {
	return func(yield func(Case[T]) bool) {
		r := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
		for i := int64(0); n < 0 || i < n; i++ {
			c := Case[T]{Arity: arity}
			for j := 0; j < arity; j++ {
				c.Operands[j] = Operand(r, table)
			}
			if !yield(c) {
				return
			}
		}
	}
}

// Operand draws one random operand. The mix favors values near the table
// entries, where rounding and exception boundaries live.
func Operand[T fpbits.Float](r *rand.Rand, table []T) T {
	f := fpbits.FormatOf[T]()
	switch r.IntN(8) {
	case 0:
		return table[r.IntN(len(table))]
	case 1, 2:
		// A table value nudged by a few units in the last place.
		b := fpbits.Bits(table[r.IntN(len(table))])
		b = (b + uint64(r.IntN(9)) - 4) & (f.SignMask() | f.ExpMask() | f.FracMask())
		return fpbits.FromBits[T](b)
	case 3:
		// Small integers and halves exercise roundToInt.
		v := T(r.IntN(64)) / 2
		if r.IntN(2) == 0 {
			v = -v
		}
		return v
	case 4:
		// Exponent near one, random fraction.
		e := uint64(f.Bias()+r.IntN(64)-32) << f.MantBits
		return fpbits.FromBits[T](e | r.Uint64()&f.FracMask() | uint64(r.IntN(2))*f.SignMask())
	default:
		return fpbits.FromBits[T](r.Uint64() & (f.SignMask() | f.ExpMask() | f.FracMask()))
	}
}

// Table returns the boundary values for T's format: both signed zeros,
// subnormal and normal extremes, values adjacent to one and two, integer
// precision limits, infinities, and quiet and signaling NaNs.
func Table[T fpbits.Float]() []T {
	f := fpbits.FormatOf[T]()
	one := uint64(f.Bias()) << f.MantBits
	unit := uint64(1) << f.MantBits
	mags := []uint64{
		0,
		1,
		f.FracMask() >> 1,
		f.FracMask(),
		unit,
		unit | 1,
		one - unit,
		one - 1,
		one,
		one + 1,
		one | f.QuietBit(),
		one + unit,
		one + unit | f.QuietBit(),
		uint64(f.Bias()+f.MantBits) << f.MantBits,
		uint64(f.Bias()+f.MantBits+1) << f.MantBits,
		f.MaxFinite(false) - 1,
		f.MaxFinite(false),
		f.ExpMask(),
	}

	out := make([]T, 0, 2*len(mags)+4)
	for _, m := range mags {
		out = append(out, fpbits.FromBits[T](m), fpbits.FromBits[T](m|f.SignMask()))
	}
	out = append(out,
		fpbits.FromBits[T](f.DefaultNaN()),
		fpbits.FromBits[T](f.ExpMask()|f.QuietBit()|1),
		fpbits.FromBits[T](f.ExpMask()|1),
		fpbits.FromBits[T](f.SignMask()|f.ExpMask()|f.FracMask()>>1),
	)
	return out
}
