// Package events tests for the subscriber registry.
package events

import "testing"

// TestEmitter_fanOut verifies every listener receives every emitted
// value.
func TestEmitter_fanOut(t *testing.T) {
	e := NewEmitter[int]()

	var a, b []int
	e.Subscribe(func(v int) { a = append(a, v) })
	e.Subscribe(func(v int) { b = append(b, v) })

	e.Emit(1)
	e.Emit(2)

	for _, got := range [][]int{a, b} {
		if len(got) != 2 || got[0] != 1 || got[1] != 2 {
			t.Errorf("listener received %v, want [1 2]", got)
		}
	}
}

// TestEmitter_unsubscribe verifies an unsubscribed listener stops
// receiving values.
func TestEmitter_unsubscribe(t *testing.T) {
	e := NewEmitter[string]()

	var got []string
	unsubscribe := e.Subscribe(func(v string) { got = append(got, v) })

	e.Emit("first")
	unsubscribe()
	e.Emit("second")

	if len(got) != 1 || got[0] != "first" {
		t.Errorf("listener received %v, want [first]", got)
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d, want 0", e.Len())
	}
}

// TestEmitter_panickingListenerIsContained verifies one bad listener
// cannot starve the others.
func TestEmitter_panickingListenerIsContained(t *testing.T) {
	e := NewEmitter[int]()

	e.Subscribe(func(int) { panic("bad listener") })
	delivered := false
	e.Subscribe(func(int) { delivered = true })

	e.Emit(1)

	if !delivered {
		t.Error("well-behaved listener should still receive the value")
	}
}
