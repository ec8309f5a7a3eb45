// Package manager holds the per-level entity managers: each keeps a
// list and a "current" pointer, refetching and reselecting children
// whenever its parent's current selection changes.
package manager

import (
	"sync"

	"maintkeeper/internal/events"
	"maintkeeper/internal/models"
)

// selectable constrains collection elements to comparable entity
// pointers so the zero value doubles as "no selection".
type selectable interface {
	models.Entity
	comparable
}

// collection is the shared {items, current} state machine. Selection
// is always resolved by stable identifier, never by array index, so a
// refreshed list can never leave current pointing at a stale object.
type collection[T selectable] struct {
	mu      sync.Mutex
	items   []T
	current T
	pinned  models.UUID

	onCurrent *events.Emitter[T]
	onList    *events.Emitter[[]T]
}

func newCollection[T selectable]() *collection[T] {
	return &collection[T]{
		onCurrent: events.NewEmitter[T](),
		onList:    events.NewEmitter[[]T](),
	}
}

// OnCurrentChanged subscribes to current-selection changes.
func (c *collection[T]) OnCurrentChanged(fn func(T)) func() {
	return c.onCurrent.Subscribe(fn)
}

// OnListChanged subscribes to list refreshes.
func (c *collection[T]) OnListChanged(fn func([]T)) func() {
	return c.onList.Subscribe(fn)
}

// Items returns a snapshot of the current list.
func (c *collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

// Current returns the current selection; ok is false when nothing is
// selected.
func (c *collection[T]) Current() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	return c.current, c.current != zero
}

// CurrentID returns the identifier of the current selection, or "".
func (c *collection[T]) CurrentID() models.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if c.current == zero {
		return ""
	}
	return c.current.EntityID()
}

// Pin marks an entity (typically one just created or saved) as the
// winner of the next selection resolution.
func (c *collection[T]) Pin(id models.UUID) {
	c.mu.Lock()
	c.pinned = id
	c.mu.Unlock()
}

// SetCurrentByID moves the selection to the item with the given
// identifier. Unknown identifiers leave the selection untouched.
func (c *collection[T]) SetCurrentByID(id models.UUID) bool {
	c.mu.Lock()
	var found T
	var zero T
	for _, item := range c.items {
		if item.EntityID() == id {
			found = item
			break
		}
	}
	if found == zero {
		c.mu.Unlock()
		return false
	}

	changed := c.current == zero || c.current.EntityID() != id
	c.current = found
	c.mu.Unlock()

	if changed {
		c.onCurrent.Emit(found)
	}
	return true
}

// applyList installs a refreshed list and resolves the selection:
// a pinned entity wins; otherwise the previous current is reselected
// by identifier if it survived the refresh; otherwise the first item;
// otherwise nothing.
func (c *collection[T]) applyList(items []T) {
	c.mu.Lock()

	var zero T
	prevID := models.UUID("")
	if c.current != zero {
		prevID = c.current.EntityID()
	}

	c.items = items

	next := zero
	if c.pinned != "" {
		next = findByID(items, c.pinned)
	}
	if next == zero && prevID != "" {
		next = findByID(items, prevID)
	}
	if next == zero && len(items) > 0 {
		next = items[0]
	}
	c.pinned = ""

	changed := !sameSelection(c.current, next)
	c.current = next
	snapshot := append([]T(nil), items...)
	c.mu.Unlock()

	c.onList.Emit(snapshot)
	if changed {
		c.onCurrent.Emit(next)
	}
}

func findByID[T selectable](items []T, id models.UUID) T {
	var zero T
	for _, item := range items {
		if item.EntityID() == id {
			return item
		}
	}
	return zero
}

// sameSelection uses pointer identity: a refreshed copy of the same
// entity is a new object, and subscribers must receive the fresh
// pointer rather than keep acting on the stale one.
func sameSelection[T selectable](a, b T) bool {
	return a == b
}
