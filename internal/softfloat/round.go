package softfloat

import (
	"math/big"

	"github.com/23skdu/longbow-testfloat/internal/fenv"
	"github.com/23skdu/longbow-testfloat/internal/fpbits"
)

// workPrec holds any exact sum of a binary64 product and a binary64 addend.
const workPrec = 4400

var half = big.NewFloat(0.5)

// toBig converts a finite bit pattern to an exact big.Float.
func toBig(f fpbits.Format, b uint64) *big.Float {
	e := int(f.Exponent(b))
	m := f.Fraction(b)
	if e == 0 {
		e = f.EMin()
	} else {
		m |= 1 << f.MantBits
		e -= f.Bias()
	}
	x := new(big.Float).SetPrec(workPrec).SetUint64(m)
	x.SetMantExp(x, e-f.MantBits)
	if f.Signbit(b) {
		x.Neg(x)
	}
	return x
}

// roundPack rounds the nonzero finite value x into format f. sticky marks x
// as an approximation of a value that is known not to be representable.
func (c Context) roundPack(env *fenv.Env, f fpbits.Format, x *big.Float, sticky bool) uint64 {
	neg := x.Signbit()
	mode := magnitude(c.Mode, neg)
	ax := new(big.Float).Abs(x)
	e := ax.MantExp(nil) - 1

	inexact := sticky
	tiny := e < f.EMin()
	if tiny && c.Tininess == AfterRounding {
		r := new(big.Float).SetPrec(uint(f.Precision())).SetMode(mode).Set(ax)
		tiny = r.MantExp(nil)-1 < f.EMin()
	}

	var mag uint64
	if e < f.EMin() {
		// Subnormal range: quantize to multiples of the smallest subnormal.
		scaled := new(big.Float).SetMantExp(ax, f.MantBits-f.EMin())
		n, exact := roundInteger(scaled, mode, sticky)
		if !exact {
			inexact = true
		}
		// n == 1<<MantBits carries into the smallest normal encoding.
		mag = n
	} else {
		r := new(big.Float).SetPrec(uint(f.Precision())).SetMode(mode).Set(ax)
		if r.Acc() != big.Exact {
			inexact = true
		}
		re := r.MantExp(nil) - 1
		if re > f.EMax() {
			env.Raise(fenv.Overflow | fenv.Inexact)
			return c.overflow(f, neg)
		}
		sig, _ := new(big.Float).SetMantExp(r, f.MantBits-re).Uint64()
		mag = uint64(re+f.Bias())<<f.MantBits | sig&f.FracMask()
	}

	if inexact {
		env.Raise(fenv.Inexact)
		if tiny {
			env.Raise(fenv.Underflow)
		}
	}
	if neg {
		mag |= f.SignMask()
	}
	return mag
}

// overflow returns the rounded result of a value too large for f.
func (c Context) overflow(f fpbits.Format, neg bool) uint64 {
	toInf := false
	switch c.Mode {
	case fenv.NearEven, fenv.NearMaxMag:
		toInf = true
	case fenv.Min:
		toInf = neg
	case fenv.Max:
		toInf = !neg
	}
	if toInf {
		return f.Inf(neg)
	}
	return f.MaxFinite(neg)
}

// roundInteger rounds the nonnegative value x to an integer.
func roundInteger(x *big.Float, mode big.RoundingMode, sticky bool) (uint64, bool) {
	t, _ := x.Int(nil)
	frac := new(big.Float).Sub(x, new(big.Float).SetInt(t))
	n := t.Uint64()
	if frac.Sign() == 0 && !sticky {
		return n, true
	}

	cmp := frac.Cmp(half)
	var up bool
	switch mode {
	case big.ToNearestEven:
		up = cmp > 0 || (cmp == 0 && n&1 == 1)
	case big.ToNearestAway:
		up = cmp >= 0
	case big.AwayFromZero:
		up = true
	}
	if up {
		n++
	}
	return n, false
}

// zeroSum returns the sign of an exact zero sum: like-signed zeros keep
// their sign, anything else is +0 except when rounding toward -inf.
func (c Context) zeroSum(f fpbits.Format, aNeg, bNeg bool) uint64 {
	if aNeg == bNeg {
		return f.Zero(aNeg)
	}
	return f.Zero(c.Mode == fenv.Min)
}

// propagateNaN returns the first NaN operand, quieted, and raises invalid
// if any operand is a signaling NaN.
func propagateNaN(env *fenv.Env, f fpbits.Format, ops ...uint64) uint64 {
	result := f.DefaultNaN()
	found := false
	for _, b := range ops {
		if f.IsSignalingNaN(b) {
			env.Raise(fenv.Invalid)
		}
		if !found && f.IsNaN(b) {
			result = f.Quiet(b)
			found = true
		}
	}
	return result
}

func invalid(env *fenv.Env, f fpbits.Format) uint64 {
	env.Raise(fenv.Invalid)
	return f.DefaultNaN()
}
