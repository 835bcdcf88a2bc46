// Package trigger turns held conditions into single edge events.
package trigger

import "sort"

// State is a debouncer's position.
type State int

const (
	Released State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "released"
}

// Debouncer fires once when its condition becomes true and re-arms only
// after the condition has been false for at least one update. The zero
// value is Released.
type Debouncer struct {
	state State
}

// Update feeds one frame's condition and reports whether a trigger fired.
func (d *Debouncer) Update(cond bool) bool {
	switch {
	case cond && d.state == Released:
		d.state = Armed
		return true
	case !cond:
		d.state = Released
	}
	return false
}

// State returns the current state.
func (d *Debouncer) State() State { return d.state }

// Bank holds one debouncer per trigger source. Not safe for concurrent use;
// the owner serialises access.
type Bank struct {
	m map[string]*Debouncer
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{m: make(map[string]*Debouncer)}
}

// Update feeds the condition for a source, creating its debouncer on first
// use.
func (b *Bank) Update(source string, cond bool) bool {
	d, ok := b.m[source]
	if !ok {
		d = &Debouncer{}
		b.m[source] = d
	}
	return d.Update(cond)
}

// State returns a source's state; unknown sources are Released.
func (b *Bank) State(source string) State {
	if d, ok := b.m[source]; ok {
		return d.State()
	}
	return Released
}

// Sources lists known sources in sorted order.
func (b *Bank) Sources() []string {
	out := make([]string, 0, len(b.m))
	for s := range b.m {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
