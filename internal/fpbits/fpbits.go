// Package fpbits works on the bit patterns of IEEE-754 binary32 and binary64
// values. Equality here is representation equality, never numeric ==.
package fpbits

import (
	"fmt"
	"math"
	"unsafe"
)

// Float is the set of formats the verifier understands.
type Float interface {
	~float32 | ~float64
}

// Format describes the layout of a binary interchange format.
type Format struct {
	Name     string
	Width    int // total bits
	ExpBits  int
	MantBits int // stored fraction bits, excluding the hidden bit
}

var (
	Binary32 = Format{Name: "f32", Width: 32, ExpBits: 8, MantBits: 23}
	Binary64 = Format{Name: "f64", Width: 64, ExpBits: 11, MantBits: 52}
)

// FormatOf returns the format of T.
func FormatOf[T Float]() Format {
	if isFloat32[T]() {
		return Binary32
	}
	return Binary64
}

// ParseFormat returns the format with the given name.
func ParseFormat(name string) (Format, error) {
	switch name {
	case Binary32.Name:
		return Binary32, nil
	case Binary64.Name:
		return Binary64, nil
	}
	return Format{}, fmt.Errorf("unknown format %q", name)
}

func isFloat32[T Float]() bool {
	var z T
	return unsafe.Sizeof(z) == 4
}

func (f Format) Bias() int      { return 1<<(f.ExpBits-1) - 1 }
func (f Format) EMin() int      { return 1 - f.Bias() }
func (f Format) EMax() int      { return f.Bias() }
func (f Format) Precision() int { return f.MantBits + 1 }

func (f Format) SignMask() uint64 { return 1 << (f.Width - 1) }
func (f Format) FracMask() uint64 { return 1<<f.MantBits - 1 }
func (f Format) ExpMask() uint64  { return (1<<f.ExpBits - 1) << f.MantBits }
func (f Format) QuietBit() uint64 { return 1 << (f.MantBits - 1) }

// Exponent returns the biased exponent field.
func (f Format) Exponent(b uint64) uint64 {
	return (b & f.ExpMask()) >> f.MantBits
}

// Fraction returns the stored fraction field.
func (f Format) Fraction(b uint64) uint64 {
	return b & f.FracMask()
}

func (f Format) Signbit(b uint64) bool {
	return b&f.SignMask() != 0
}

func (f Format) IsNaN(b uint64) bool {
	return b&f.ExpMask() == f.ExpMask() && b&f.FracMask() != 0
}

func (f Format) IsInf(b uint64) bool {
	return b&^f.SignMask() == f.ExpMask()
}

func (f Format) IsZero(b uint64) bool {
	return b&^f.SignMask() == 0
}

// IsSignalingNaN reports a NaN whose quiet bit is clear.
func (f Format) IsSignalingNaN(b uint64) bool {
	return f.IsNaN(b) && b&f.QuietBit() == 0
}

// Quiet sets the quiet bit, preserving sign and payload.
func (f Format) Quiet(b uint64) uint64 {
	return b | f.QuietBit()
}

// DefaultNaN is the quiet NaN produced by invalid operations (x86 SSE
// convention: negative sign, only the quiet bit set).
func (f Format) DefaultNaN() uint64 {
	return f.SignMask() | f.ExpMask() | f.QuietBit()
}

func (f Format) Inf(neg bool) uint64 {
	b := f.ExpMask()
	if neg {
		b |= f.SignMask()
	}
	return b
}

func (f Format) Zero(neg bool) uint64 {
	if neg {
		return f.SignMask()
	}
	return 0
}

// MaxFinite returns the largest finite magnitude with the given sign.
func (f Format) MaxFinite(neg bool) uint64 {
	b := f.ExpMask() - (1 << f.MantBits) | f.FracMask()
	if neg {
		b |= f.SignMask()
	}
	return b
}

// Hex renders b TestFloat style: sign, biased exponent, fraction.
// 1.0 in binary64 renders as "+3FF.0000000000000".
func (f Format) Hex(b uint64) string {
	sign := '+'
	if f.Signbit(b) {
		sign = '-'
	}
	expDigits := (f.ExpBits + 3) / 4
	fracDigits := (f.MantBits + 3) / 4
	return fmt.Sprintf("%c%0*X.%0*X", sign, expDigits, f.Exponent(b), fracDigits, f.Fraction(b))
}

// Bits returns the bit pattern of x widened to uint64.
func Bits[T Float](x T) uint64 {
	if isFloat32[T]() {
		return uint64(math.Float32bits(float32(x)))
	}
	return math.Float64bits(float64(x))
}

// FromBits is the inverse of Bits.
func FromBits[T Float](b uint64) T {
	if isFloat32[T]() {
		return T(math.Float32frombits(uint32(b)))
	}
	return T(math.Float64frombits(b))
}

func IsNaN[T Float](x T) bool {
	return x != x
}

func IsSignalingNaN[T Float](x T) bool {
	return FormatOf[T]().IsSignalingNaN(Bits(x))
}

// Same is the value-equivalence predicate. Non-NaN values must be
// bit-identical, so +0 and -0 differ. Any two NaNs match unless checkNaNs
// is set, in which case the quiet bit and payload must match as well.
func Same[T Float](a, b T, checkNaNs bool) bool {
	an, bn := IsNaN(a), IsNaN(b)
	switch {
	case an && bn:
		if !checkNaNs {
			return true
		}
		return Bits(a) == Bits(b)
	case an || bn:
		return false
	}
	return Bits(a) == Bits(b)
}
