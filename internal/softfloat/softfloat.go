// Package softfloat is the trusted reference: every operation is computed
// exactly with math/big and rounded in software to binary32 or binary64,
// raising IEEE-754 exception flags into an explicit fenv.Env.
package softfloat

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/23skdu/longbow-testfloat/internal/fenv"
)

// magnitude maps the mode onto the rounding of |x| for a value with the
// given sign, which is how math/big rounds.
func magnitude(m fenv.RoundingMode, neg bool) big.RoundingMode {
	switch m {
	case fenv.MinMag:
		return big.ToZero
	case fenv.Min:
		if neg {
			return big.AwayFromZero
		}
		return big.ToZero
	case fenv.Max:
		if neg {
			return big.ToZero
		}
		return big.AwayFromZero
	case fenv.NearMaxMag:
		return big.ToNearestAway
	}
	return big.ToNearestEven
}

// Tininess selects when an underflow is detected.
type Tininess uint8

const (
	AfterRounding Tininess = iota
	BeforeRounding
)

func (t Tininess) String() string {
	if t == BeforeRounding {
		return "before"
	}
	return "after"
}

func ParseTininess(s string) (Tininess, error) {
	switch strings.ToLower(s) {
	case "after", "":
		return AfterRounding, nil
	case "before":
		return BeforeRounding, nil
	}
	return 0, fmt.Errorf("unknown tininess mode %q", s)
}

// Context carries the dynamic rounding attributes of an operation.
type Context struct {
	Mode     fenv.RoundingMode
	Tininess Tininess
}
