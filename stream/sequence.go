package stream

import (
	"context"
	"sync"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/types"
)

// SequenceStream is an in-memory stream whose positions are 1-based item
// numbers; its cursor starts at 0.
type SequenceStream[D any] struct {
	id    string
	mu    sync.RWMutex
	items []D
}

func Sequence[D any](id string, items ...D) *SequenceStream[D] {
	return &SequenceStream[D]{
		id:    id,
		items: append([]D(nil), items...),
	}
}

// Append adds items to the tail of the stream
func (s *SequenceStream[D]) Append(items ...D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, items...)
}

func (s *SequenceStream[D]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *SequenceStream[D]) ID() string {
	return s.id
}

func (s *SequenceStream[D]) NewCursor() *types.Cursor[int] {
	return types.NewCursor(0)
}

func (s *SequenceStream[D]) Fetch(ctx context.Context, query *types.Query[int]) (types.Batch[D, int], error) {
	if err := ctx.Err(); err != nil {
		return types.Batch[D, int]{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := max(query.Cursor.Position(), 0)
	end := min(start+query.Limit(constants.DefaultStreamBatchSize), len(s.items))
	if start >= end {
		return types.EmptyBatch[D](query.Cursor.Clone()), nil
	}

	batch := types.Batch[D, int]{
		Items:     append([]D(nil), s.items[start:end]...),
		Positions: make([]int, 0, end-start),
		Cursor:    query.Cursor.Clone(),
	}
	for position := start + 1; position <= end; position++ {
		batch.Positions = append(batch.Positions, position)
	}

	query.Cursor.AdvanceTo(end)
	return batch, nil
}
