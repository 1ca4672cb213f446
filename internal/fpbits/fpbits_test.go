package fpbits

import (
	"math"
	"testing"
)

var (
	qnan64 = math.Float64frombits(0x7FF8000000000000)
	snan64 = math.Float64frombits(0x7FF0000000000001)
	qnan32 = math.Float32frombits(0x7FC00000)
	snan32 = math.Float32frombits(0x7F800001)
)

func TestFormatOf(t *testing.T) {
	type myFloat float32
	if FormatOf[float32]() != Binary32 {
		t.Error("float32 should map to binary32")
	}
	if FormatOf[myFloat]() != Binary32 {
		t.Error("named float32 should map to binary32")
	}
	if FormatOf[float64]() != Binary64 {
		t.Error("float64 should map to binary64")
	}
}

func TestFormatConstants(t *testing.T) {
	if Binary64.Bias() != 1023 || Binary64.EMin() != -1022 {
		t.Errorf("binary64 bias/emin wrong: %d %d", Binary64.Bias(), Binary64.EMin())
	}
	if Binary32.Bias() != 127 || Binary32.EMin() != -126 {
		t.Errorf("binary32 bias/emin wrong: %d %d", Binary32.Bias(), Binary32.EMin())
	}
	if got := Binary64.MaxFinite(false); got != math.Float64bits(math.MaxFloat64) {
		t.Errorf("MaxFinite = %#x", got)
	}
	if got := Binary32.MaxFinite(true); got != uint64(math.Float32bits(-math.MaxFloat32)) {
		t.Errorf("MaxFinite(neg) = %#x", got)
	}
	if got := Binary64.DefaultNaN(); got != 0xFFF8000000000000 {
		t.Errorf("DefaultNaN = %#x", got)
	}
}

func TestSignalingNaN(t *testing.T) {
	if !IsSignalingNaN(snan64) || IsSignalingNaN(qnan64) {
		t.Error("binary64 signaling classification wrong")
	}
	if !IsSignalingNaN(snan32) || IsSignalingNaN(qnan32) {
		t.Error("binary32 signaling classification wrong")
	}
	if IsSignalingNaN(math.Inf(1)) {
		t.Error("infinity is not a NaN")
	}
	if got := Binary64.Quiet(Bits(snan64)); got != 0x7FF8000000000001 {
		t.Errorf("Quiet = %#x", got)
	}
}

func TestSame(t *testing.T) {
	negZero := math.Copysign(0, -1)
	otherNaN := math.Float64frombits(0xFFF8000000000000)

	tests := []struct {
		name      string
		a, b      float64
		checkNaNs bool
		want      bool
	}{
		{"equal", 1.5, 1.5, false, true},
		{"different", 1.5, 2.5, false, false},
		{"signed zeros", 0, negZero, false, false},
		{"signed infinities", math.Inf(1), math.Inf(-1), false, false},
		{"nan vs number", qnan64, 1, false, false},
		{"number vs nan", 1, qnan64, true, false},
		{"any nans lenient", qnan64, snan64, false, true},
		{"different payload strict", qnan64, otherNaN, true, false},
		{"signaling vs quiet strict", qnan64, snan64, true, false},
		{"identical nans strict", snan64, snan64, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Same(tt.a, tt.b, tt.checkNaNs); got != tt.want {
				t.Errorf("Same(%v, %v, %v) = %v, want %v", tt.a, tt.b, tt.checkNaNs, got, tt.want)
			}
		})
	}
}

func TestBitsRoundTrip32(t *testing.T) {
	for _, b := range []uint64{0, 0x80000000, 0x7F800001, 0x3F800000, 0x00000001} {
		if got := Bits(FromBits[float32](b)); got != b {
			t.Errorf("round trip %#x -> %#x", b, got)
		}
	}
}

func TestHex(t *testing.T) {
	tests := []struct {
		f    Format
		b    uint64
		want string
	}{
		{Binary64, math.Float64bits(1), "+3FF.0000000000000"},
		{Binary64, math.Float64bits(-2), "-400.0000000000000"},
		{Binary32, uint64(math.Float32bits(1)), "+7F.000000"},
		{Binary32, 0x7FC00000, "+FF.400000"},
	}
	for _, tt := range tests {
		if got := tt.f.Hex(tt.b); got != tt.want {
			t.Errorf("Hex(%#x) = %q, want %q", tt.b, got, tt.want)
		}
	}
}

func TestClassification(t *testing.T) {
	f := Binary64
	if !f.IsInf(f.Inf(true)) || f.IsInf(f.MaxFinite(false)) {
		t.Error("IsInf wrong")
	}
	if !f.IsZero(f.Zero(true)) || !f.Signbit(f.Zero(true)) {
		t.Error("negative zero wrong")
	}
	if f.Exponent(math.Float64bits(1)) != 0x3FF {
		t.Error("Exponent wrong")
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []Format{Binary32, Binary64} {
		got, err := ParseFormat(f.Name)
		if err != nil || got != f {
			t.Errorf("ParseFormat(%q) = %v, %v", f.Name, got, err)
		}
	}
	if _, err := ParseFormat("f16"); err == nil {
		t.Error("expected error for f16")
	}
}
