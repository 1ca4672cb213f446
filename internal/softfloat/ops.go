package softfloat

import (
	"math/big"

	"github.com/23skdu/longbow-testfloat/internal/fenv"
	"github.com/23skdu/longbow-testfloat/internal/fpbits"
)

// Add returns a+b.
func Add[T fpbits.Float](c Context, env *fenv.Env, a, b T) T {
	f := fpbits.FormatOf[T]()
	return fpbits.FromBits[T](c.add(env, f, fpbits.Bits(a), fpbits.Bits(b), false))
}

// Sub returns a-b.
func Sub[T fpbits.Float](c Context, env *fenv.Env, a, b T) T {
	f := fpbits.FormatOf[T]()
	return fpbits.FromBits[T](c.add(env, f, fpbits.Bits(a), fpbits.Bits(b), true))
}

// Mul returns a*b.
func Mul[T fpbits.Float](c Context, env *fenv.Env, a, b T) T {
	f := fpbits.FormatOf[T]()
	return fpbits.FromBits[T](c.mul(env, f, fpbits.Bits(a), fpbits.Bits(b)))
}

// Div returns a/b.
func Div[T fpbits.Float](c Context, env *fenv.Env, a, b T) T {
	f := fpbits.FormatOf[T]()
	return fpbits.FromBits[T](c.div(env, f, fpbits.Bits(a), fpbits.Bits(b)))
}

// Sqrt returns the square root of a.
func Sqrt[T fpbits.Float](c Context, env *fenv.Env, a T) T {
	f := fpbits.FormatOf[T]()
	return fpbits.FromBits[T](c.sqrt(env, f, fpbits.Bits(a)))
}

// MulAdd returns a*b+z with a single rounding.
func MulAdd[T fpbits.Float](c Context, env *fenv.Env, a, b, z T) T {
	f := fpbits.FormatOf[T]()
	return fpbits.FromBits[T](c.mulAdd(env, f, fpbits.Bits(a), fpbits.Bits(b), fpbits.Bits(z)))
}

// RoundToInt rounds a to an integral value in the context's mode. The
// inexact flag is raised only when exact is set.
func RoundToInt[T fpbits.Float](c Context, env *fenv.Env, a T, exact bool) T {
	f := fpbits.FormatOf[T]()
	return fpbits.FromBits[T](c.roundToInt(env, f, fpbits.Bits(a), exact))
}

func (c Context) add(env *fenv.Env, f fpbits.Format, a, b uint64, subtract bool) uint64 {
	if f.IsNaN(a) || f.IsNaN(b) {
		return propagateNaN(env, f, a, b)
	}
	if subtract {
		b ^= f.SignMask()
	}
	aNeg, bNeg := f.Signbit(a), f.Signbit(b)

	switch {
	case f.IsInf(a) && f.IsInf(b):
		if aNeg != bNeg {
			return invalid(env, f)
		}
		return a
	case f.IsInf(a):
		return a
	case f.IsInf(b):
		return b
	case f.IsZero(a) && f.IsZero(b):
		return c.zeroSum(f, aNeg, bNeg)
	}

	x := new(big.Float).SetPrec(workPrec).Add(toBig(f, a), toBig(f, b))
	if x.Sign() == 0 {
		return c.zeroSum(f, false, true)
	}
	return c.roundPack(env, f, x, false)
}

func (c Context) mul(env *fenv.Env, f fpbits.Format, a, b uint64) uint64 {
	if f.IsNaN(a) || f.IsNaN(b) {
		return propagateNaN(env, f, a, b)
	}
	neg := f.Signbit(a) != f.Signbit(b)

	switch {
	case (f.IsInf(a) && f.IsZero(b)) || (f.IsZero(a) && f.IsInf(b)):
		return invalid(env, f)
	case f.IsInf(a) || f.IsInf(b):
		return f.Inf(neg)
	case f.IsZero(a) || f.IsZero(b):
		return f.Zero(neg)
	}

	x := new(big.Float).SetPrec(workPrec).Mul(toBig(f, a), toBig(f, b))
	return c.roundPack(env, f, x, false)
}

func (c Context) div(env *fenv.Env, f fpbits.Format, a, b uint64) uint64 {
	if f.IsNaN(a) || f.IsNaN(b) {
		return propagateNaN(env, f, a, b)
	}
	neg := f.Signbit(a) != f.Signbit(b)

	switch {
	case f.IsInf(a) && f.IsInf(b), f.IsZero(a) && f.IsZero(b):
		return invalid(env, f)
	case f.IsInf(a):
		return f.Inf(neg)
	case f.IsInf(b):
		return f.Zero(neg)
	case f.IsZero(b):
		env.Raise(fenv.DivByZero)
		return f.Inf(neg)
	case f.IsZero(a):
		return f.Zero(neg)
	}

	q := new(big.Float).SetPrec(workPrec).Quo(toBig(f, a), toBig(f, b))
	return c.roundPack(env, f, q, q.Acc() != big.Exact)
}

func (c Context) sqrt(env *fenv.Env, f fpbits.Format, a uint64) uint64 {
	switch {
	case f.IsNaN(a):
		return propagateNaN(env, f, a)
	case f.IsZero(a):
		return a
	case f.Signbit(a):
		return invalid(env, f)
	case f.IsInf(a):
		return a
	}

	x := toBig(f, a)
	r := new(big.Float).SetPrec(workPrec).Sqrt(x)

	// math/big does not report accuracy for Sqrt. An exact root fits in the
	// format's precision, so test the nearest candidate directly.
	r0 := new(big.Float).SetPrec(uint(f.Precision())).Set(r)
	sq := new(big.Float).SetPrec(workPrec).Mul(r0, r0)
	if sq.Cmp(x) == 0 {
		return c.roundPack(env, f, r0, false)
	}
	return c.roundPack(env, f, r, true)
}

func (c Context) mulAdd(env *fenv.Env, f fpbits.Format, a, b, z uint64) uint64 {
	infTimesZero := (f.IsInf(a) && f.IsZero(b)) || (f.IsZero(a) && f.IsInf(b))
	if f.IsNaN(a) || f.IsNaN(b) || f.IsNaN(z) {
		if infTimesZero {
			env.Raise(fenv.Invalid)
		}
		return propagateNaN(env, f, a, b, z)
	}
	if infTimesZero {
		return invalid(env, f)
	}

	pNeg := f.Signbit(a) != f.Signbit(b)
	zNeg := f.Signbit(z)

	switch {
	case f.IsInf(a) || f.IsInf(b):
		if f.IsInf(z) && zNeg != pNeg {
			return invalid(env, f)
		}
		return f.Inf(pNeg)
	case f.IsInf(z):
		return z
	case f.IsZero(a) || f.IsZero(b):
		if f.IsZero(z) {
			return c.zeroSum(f, pNeg, zNeg)
		}
		return z
	}

	p := new(big.Float).SetPrec(workPrec).Mul(toBig(f, a), toBig(f, b))
	if f.IsZero(z) {
		return c.roundPack(env, f, p, false)
	}
	x := new(big.Float).SetPrec(workPrec).Add(p, toBig(f, z))
	if x.Sign() == 0 {
		return c.zeroSum(f, false, true)
	}
	return c.roundPack(env, f, x, false)
}

func (c Context) roundToInt(env *fenv.Env, f fpbits.Format, a uint64, exact bool) uint64 {
	switch {
	case f.IsNaN(a):
		return propagateNaN(env, f, a)
	case f.IsInf(a), f.IsZero(a):
		return a
	}
	// Every value with a biased exponent at or above bias+MantBits is integral.
	if int(f.Exponent(a)) >= f.Bias()+f.MantBits {
		return a
	}

	neg := f.Signbit(a)
	ax := toBig(f, a &^ f.SignMask())
	n, isExact := roundInteger(ax, magnitude(c.Mode, neg), false)
	if !isExact && exact {
		env.Raise(fenv.Inexact)
	}
	if n == 0 {
		return f.Zero(neg)
	}
	x := new(big.Float).SetUint64(n)
	if neg {
		x.Neg(x)
	}
	// n is representable, so packing raises nothing.
	return c.roundPack(env, f, x, false)
}
