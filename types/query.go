package types

// Query asks a stream for the data after Cursor. The stream advances Cursor
// to reflect what the fetch covered, so a query must not be reused.
type Query[C any] struct {
	Cursor *Cursor[C]
	// BatchSize bounds the number of items returned; zero leaves it to the stream
	BatchSize int
}

// NewQuery builds a query over an independent copy of cursor
func NewQuery[C any](cursor *Cursor[C], batchSize int) *Query[C] {
	return &Query[C]{
		Cursor:    cursor.Clone(),
		BatchSize: batchSize,
	}
}

// Limit returns the batch size or fallback when the query is unbounded
func (q *Query[C]) Limit(fallback int) int {
	if q.BatchSize > 0 {
		return q.BatchSize
	}
	return fallback
}
