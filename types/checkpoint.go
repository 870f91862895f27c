package types

// Checkpointed is implemented by projections that record their own progress.
// When a projection is checkpointed its position, not the engine's, decides
// where its next batch starts.
type Checkpointed[C any] interface {
	// Checkpoint returns the last position applied; false when nothing was applied yet
	Checkpoint() (C, bool)
	AdvanceTo(position C)
}

// Progress is an embeddable Checkpointed implementation
type Progress[C any] struct {
	CursorPosition *C `json:"cursor_position,omitempty" bson:"cursor_position,omitempty"`
}

func (c *Progress[C]) Checkpoint() (C, bool) {
	if c == nil || c.CursorPosition == nil {
		var zero C
		return zero, false
	}
	return *c.CursorPosition, true
}

func (c *Progress[C]) AdvanceTo(position C) {
	c.CursorPosition = &position
}

// Projection is a generic checkpointed projection holding a single value
type Projection[V, C any] struct {
	Progress[C] `bson:",inline"`
	Value       V `json:"value" bson:"value"`
}
