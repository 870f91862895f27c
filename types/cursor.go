package types

import (
	"cmp"
	"fmt"

	json "github.com/goccy/go-json"
)

// Ordering compares two positions, returning a negative number when a < b,
// zero when equal and a positive number when a > b.
type Ordering[C any] func(a, b C) int

// Cursor marks a position in an ordered stream. The direction and ordering are
// fixed when the cursor is created. A cursor is not safe for concurrent
// mutation; the engine only hands out cursors that are no longer advanced.
type Cursor[C any] struct {
	position  C
	ascending bool
	ordering  Ordering[C]
}

// NewCursor creates an ascending cursor over a naturally ordered position type
func NewCursor[C cmp.Ordered](position C) *Cursor[C] {
	return NewCursorWithOrdering(position, true, cmp.Compare[C])
}

// NewDescendingCursor creates a cursor that moves towards smaller positions
func NewDescendingCursor[C cmp.Ordered](position C) *Cursor[C] {
	return NewCursorWithOrdering(position, false, cmp.Compare[C])
}

// NewCursorWithOrdering creates a cursor with an explicit ordering
func NewCursorWithOrdering[C any](position C, ascending bool, ordering Ordering[C]) *Cursor[C] {
	return &Cursor[C]{
		position:  position,
		ascending: ascending,
		ordering:  ordering,
	}
}

func (c *Cursor[C]) Position() C {
	return c.position
}

func (c *Cursor[C]) Ascending() bool {
	return c.ascending
}

// AdvanceTo moves the cursor to an absolute position. Moving against the
// cursor's direction is a caller bug and is not checked.
func (c *Cursor[C]) AdvanceTo(position C) {
	c.position = position
}

// HasReached reports whether point is not strictly ahead of the cursor.
func (c *Cursor[C]) HasReached(point C) bool {
	return c.ahead(c.ordering(c.position, point)) >= 0
}

// Compare orders two cursors of the same stream by progress: negative when c
// is behind other, positive when it is ahead.
func (c *Cursor[C]) Compare(other *Cursor[C]) int {
	return c.ahead(c.ordering(c.position, other.position))
}

// Clone returns an independent cursor at the same position
func (c *Cursor[C]) Clone() *Cursor[C] {
	return NewCursorWithOrdering(c.position, c.ascending, c.ordering)
}

// At returns a new cursor sharing c's ordering and direction at position
func (c *Cursor[C]) At(position C) *Cursor[C] {
	return NewCursorWithOrdering(position, c.ascending, c.ordering)
}

func (c *Cursor[C]) String() string {
	return fmt.Sprintf("%v", c.position)
}

func (c *Cursor[C]) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.position)
}

// ahead converts an ordering result into progress along the cursor direction
func (c *Cursor[C]) ahead(order int) int {
	if c.ascending {
		return order
	}
	return -order
}

// Minimum returns the cursor with the least progress, nil when none are given
func Minimum[C any](cursors ...*Cursor[C]) *Cursor[C] {
	var minimum *Cursor[C]
	for _, cursor := range cursors {
		if cursor == nil {
			continue
		}
		if minimum == nil || cursor.Compare(minimum) < 0 {
			minimum = cursor
		}
	}
	return minimum
}
