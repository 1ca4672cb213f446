package fenv

import (
	"fmt"
	"strings"
)

// RoundingMode selects how inexact results are rounded.
type RoundingMode uint8

const (
	NearEven RoundingMode = iota
	MinMag
	Min
	Max
	NearMaxMag
)

var roundingModeNames = map[RoundingMode]string{
	NearEven:   "near_even",
	MinMag:     "minMag",
	Min:        "min",
	Max:        "max",
	NearMaxMag: "near_maxMag",
}

// RoundingModes lists every supported mode in sweep order.
var RoundingModes = []RoundingMode{NearEven, MinMag, Min, Max, NearMaxMag}

func (m RoundingMode) String() string {
	if s, ok := roundingModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("RoundingMode(%d)", uint8(m))
}

// ParseRoundingMode accepts the names printed by String, case-insensitively.
func ParseRoundingMode(s string) (RoundingMode, error) {
	for m, name := range roundingModeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown rounding mode %q", s)
}
