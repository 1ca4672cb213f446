// Package native computes operations with the host's floating-point unit
// and reconstructs the exception flags the hardware raised, since Go gives
// no access to the status register. Values come from the hardware; flags are
// recovered with error-free transformations on normalized significands.
// Binary64 mulAdd has no representable residual, so its result is compared
// against the exact value in math/big instead.
//
// Arithmetic always rounds to nearest-even. RoundToInt honors every mode.
package native

import (
	"math"
	"math/big"

	"github.com/23skdu/longbow-testfloat/internal/fenv"
	"github.com/23skdu/longbow-testfloat/internal/fpbits"
)

func isInf[T fpbits.Float](x T) bool {
	return math.IsInf(float64(x), 0)
}

// signaling returns invalid when any operand is a signaling NaN.
func signaling[T fpbits.Float](ops ...T) fenv.Flags {
	for _, x := range ops {
		if fpbits.IsSignalingNaN(x) {
			return fenv.Invalid
		}
	}
	return fenv.None
}

// special handles results that involve NaN or infinity. It reports true
// when the result needs no further inspection.
func special[T fpbits.Float](env *fenv.Env, r T, ops ...T) bool {
	anyNaN, anyInf := false, false
	for _, x := range ops {
		anyNaN = anyNaN || fpbits.IsNaN(x)
		anyInf = anyInf || isInf(x)
	}
	switch {
	case anyNaN:
		env.Raise(signaling(ops...))
		return true
	case fpbits.IsNaN(r):
		env.Raise(fenv.Invalid)
		return true
	case isInf(r) && !anyInf:
		env.Raise(fenv.Overflow | fenv.Inexact)
		return true
	case isInf(r) || anyInf:
		return true
	}
	return false
}

// exactProduct reports whether a*b == p exactly. Operands are normalized
// significands, so the residual can neither overflow nor underflow.
func exactProduct[T fpbits.Float](a, b, p T) bool {
	if fpbits.FormatOf[T]() == fpbits.Binary32 {
		// Two 24-bit significands multiply exactly in binary64.
		return float64(a)*float64(b) == float64(p)
	}
	return math.FMA(float64(a), float64(b), -float64(p)) == 0
}

// settle compares the hardware result r against z*2^exp, where z is the
// correctly rounded significand result and exact says whether z is exact.
// Any difference comes from subnormal rounding.
func settle[T fpbits.Float](env *fenv.Env, r, z T, exp int, exact bool) {
	zm, ze := math.Frexp(float64(z))
	rm, re := math.Frexp(float64(r))
	if exact && rm == zm && re == ze+exp {
		return
	}
	env.Raise(fenv.Inexact)
	if ze+exp-1 < fpbits.FormatOf[T]().EMin() {
		env.Raise(fenv.Underflow)
	}
}

func frexp[T fpbits.Float](x T) (T, int) {
	m, e := math.Frexp(float64(x))
	return T(m), e
}

// Add returns a+b as computed by the hardware.
func Add[T fpbits.Float](env *fenv.Env, a, b T) T {
	s := a + b
	if special(env, s, a, b) {
		return s
	}
	// TwoSum: the rounding error of a finite sum is itself representable.
	// A tiny sum is always exact, so addition never underflows.
	bv := s - a
	av := s - bv
	if (a-av)+(b-bv) != 0 {
		env.Raise(fenv.Inexact)
	}
	return s
}

// Sub returns a-b as computed by the hardware.
func Sub[T fpbits.Float](env *fenv.Env, a, b T) T {
	d := a - b
	if special(env, d, a, b) {
		return d
	}
	nb := -b
	bv := d - a
	av := d - bv
	if (a-av)+(nb-bv) != 0 {
		env.Raise(fenv.Inexact)
	}
	return d
}

// Mul returns a*b as computed by the hardware.
func Mul[T fpbits.Float](env *fenv.Env, a, b T) T {
	p := a * b
	if special(env, p, a, b) || a == 0 || b == 0 {
		return p
	}
	ma, ea := frexp(a)
	mb, eb := frexp(b)
	z := ma * mb
	settle(env, p, z, ea+eb, exactProduct(ma, mb, z))
	return p
}

// Div returns a/b as computed by the hardware.
func Div[T fpbits.Float](env *fenv.Env, a, b T) T {
	q := a / b
	if b == 0 && a != 0 && !fpbits.IsNaN(a) && !isInf(a) {
		env.Raise(fenv.DivByZero)
		return q
	}
	if special(env, q, a, b) || a == 0 {
		return q
	}
	ma, ea := frexp(a)
	mb, eb := frexp(b)
	z := ma / mb
	settle(env, q, z, ea-eb, exactProduct(z, mb, ma))
	return q
}

// Sqrt returns the square root of a as computed by the hardware.
func Sqrt[T fpbits.Float](env *fenv.Env, a T) T {
	r := T(math.Sqrt(float64(a)))
	if special(env, r, a) || a == 0 {
		return r
	}
	m, e := frexp(a)
	if e&1 != 0 {
		m *= 2
		e--
	}
	z := T(math.Sqrt(float64(m)))
	settle(env, r, z, e/2, exactProduct(z, z, m))
	return r
}

// MulAdd returns a*b+c with a single rounding, as math.FMA computes it.
func MulAdd[T fpbits.Float](env *fenv.Env, a, b, c T) T {
	if (isInf(a) && b == 0) || (a == 0 && isInf(b)) {
		// Invalid even when c is a quiet NaN.
		env.Raise(fenv.Invalid)
	}
	if !finite(a) || !finite(b) || !finite(c) {
		r := T(math.FMA(float64(a), float64(b), float64(c)))
		special(env, r, a, b, c)
		return r
	}
	if a == 0 || b == 0 {
		// c itself or a signed zero, always exact.
		return T(float64(a)*float64(b) + float64(c))
	}
	if fpbits.FormatOf[T]() == fpbits.Binary32 {
		return T(mulAdd32(env, float32(a), float32(b), float32(c)))
	}
	return T(mulAdd64(env, float64(a), float64(b), float64(c)))
}

func finite[T fpbits.Float](x T) bool {
	return !fpbits.IsNaN(x) && !isInf(x)
}

// Binary32 thresholds held as binary64 values. Magnitudes at or above
// overflow32 round to infinity; magnitudes below tinyEdge32 are still tiny
// after rounding.
const (
	overflow32  = 0x1p128 - 0x1p103
	minNormal32 = 0x1p-126
	tinyEdge32  = 0x1p-126 - 0x1p-151
)

// mulAdd32 works in binary64, where a*b is exact and TwoSum recovers the
// rest of the sum. The residual settles the one case where rounding twice
// goes wrong: a binary64 sum that lands on a binary32 midpoint.
func mulAdd32(env *fenv.Env, a, b, c float32) float32 {
	p := float64(a) * float64(b)
	z := float64(c)
	s := p + z
	if s == 0 {
		return float32(s)
	}
	bv := s - p
	av := s - bv
	e := (p - av) + (z - bv)

	neg := s < 0
	if neg {
		s, e = -s, -e
	}
	var r float32
	switch {
	case s > overflow32 || (s == overflow32 && e >= 0):
		env.Raise(fenv.Overflow | fenv.Inexact)
		r = float32(math.Inf(1))
		if neg {
			r = -r
		}
		return r
	case s == overflow32:
		r = math.MaxFloat32
	default:
		r = float32(s)
		if e != 0 && float64(r) != s {
			other := math.Nextafter32(r, 0)
			if float64(r) < s {
				other = math.Nextafter32(r, float32(math.Inf(1)))
			}
			if float64(r)+float64(other) == 2*s && (e > 0) == (other > r) {
				r = other
			}
		}
	}

	if e != 0 || float64(r) != s {
		env.Raise(fenv.Inexact)
		if float64(r) < minNormal32 ||
			(float64(r) == minNormal32 && (s < tinyEdge32 || (s == tinyEdge32 && e < 0))) {
			env.Raise(fenv.Underflow)
		}
	}
	if neg {
		r = -r
	}
	return r
}

// exactPrec holds any binary64 product plus a binary64 addend.
const exactPrec = 3200

var (
	minNormal64 = math.Float64frombits(0x0010000000000000)
	// tinyEdge64 is 2^-1022 - 2^-1076: magnitudes below it are still tiny
	// after rounding to 53 bits.
	tinyEdge64 = new(big.Float).SetPrec(64).Sub(
		new(big.Float).SetMantExp(big.NewFloat(1), -1022),
		new(big.Float).SetMantExp(big.NewFloat(1), -1076))
)

func mulAdd64(env *fenv.Env, a, b, c float64) float64 {
	r := math.FMA(a, b, c)
	if math.IsInf(r, 0) {
		env.Raise(fenv.Overflow | fenv.Inexact)
		return r
	}
	v := new(big.Float).SetPrec(exactPrec).Mul(big.NewFloat(a), big.NewFloat(b))
	v.Add(v, big.NewFloat(c))
	if v.Cmp(big.NewFloat(r)) == 0 {
		return r
	}
	env.Raise(fenv.Inexact)
	ar := math.Abs(r)
	if ar < minNormal64 || (ar == minNormal64 && v.Abs(v).Cmp(tinyEdge64) < 0) {
		env.Raise(fenv.Underflow)
	}
	return r
}

// RoundToInt rounds a to an integral value with the math package.
func RoundToInt[T fpbits.Float](mode fenv.RoundingMode, env *fenv.Env, a T, exact bool) T {
	if fpbits.IsNaN(a) {
		env.Raise(signaling(a))
		f := fpbits.FormatOf[T]()
		return fpbits.FromBits[T](f.Quiet(fpbits.Bits(a)))
	}
	x := float64(a)
	var r float64
	switch mode {
	case fenv.MinMag:
		r = math.Trunc(x)
	case fenv.Min:
		r = math.Floor(x)
	case fenv.Max:
		r = math.Ceil(x)
	case fenv.NearMaxMag:
		r = math.Round(x)
	default:
		r = math.RoundToEven(x)
	}
	if exact && r != x {
		env.Raise(fenv.Inexact)
	}
	return T(r)
}
