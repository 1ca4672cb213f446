// Package fenv models the IEEE-754 exception flag state that an operation
// raises as a side effect of computing its result.
package fenv

import "strings"

// Flags is a set of IEEE-754 exception flags.
type Flags uint8

const (
	Inexact Flags = 1 << iota
	Underflow
	Overflow
	DivByZero
	Invalid

	None Flags = 0
	All        = Inexact | Underflow | Overflow | DivByZero | Invalid
)

// flagOrder is the rendering order: invalid, infinite (division by zero),
// overflow, underflow, inexact.
var flagOrder = []struct {
	f Flags
	c byte
}{
	{Invalid, 'v'},
	{DivByZero, 'z'},
	{Overflow, 'o'},
	{Underflow, 'u'},
	{Inexact, 'x'},
}

// Has reports whether every flag in g is set in f.
func (f Flags) Has(g Flags) bool {
	return f&g == g
}

// String renders the set as five characters "vzoux" with '.' for clear flags.
func (f Flags) String() string {
	var b strings.Builder
	b.Grow(len(flagOrder))
	for _, o := range flagOrder {
		if f&o.f != 0 {
			b.WriteByte(o.c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// Names lists the set flags by name, in rendering order.
func (f Flags) Names() []string {
	names := make([]string, 0, len(flagOrder))
	for _, o := range flagOrder {
		if f&o.f == 0 {
			continue
		}
		switch o.f {
		case Invalid:
			names = append(names, "invalid")
		case DivByZero:
			names = append(names, "divbyzero")
		case Overflow:
			names = append(names, "overflow")
		case Underflow:
			names = append(names, "underflow")
		case Inexact:
			names = append(names, "inexact")
		}
	}
	return names
}

// Env is an explicit flag environment. It replaces the process-wide status
// register: each verification run owns one and threads it into the
// operations it calls. An Env is not safe for concurrent use.
type Env struct {
	flags Flags
}

// New returns an environment with every flag clear.
func New() *Env {
	return &Env{}
}

// Raise sets the given flags. Flags are sticky until cleared.
func (e *Env) Raise(f Flags) {
	e.flags |= f & All
}

// Clear resets every flag.
func (e *Env) Clear() {
	e.flags = None
}

// Flags returns the flags raised since the last Clear.
func (e *Env) Flags() Flags {
	return e.flags
}

// Take returns the raised flags and clears them.
func (e *Env) Take() Flags {
	f := e.flags
	e.flags = None
	return f
}
