package catchup

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/datazip-inc/streamcatchup/projection"
	"github.com/datazip-inc/streamcatchup/stream"
	"github.com/datazip-inc/streamcatchup/types"
)

// MockStream wraps an in-memory sequence and records every query it serves
type MockStream struct {
	*stream.SequenceStream[int]

	fetchFunc func(ctx context.Context, query *types.Query[int]) error
	// dropped items are consumed by a fetch without being returned
	dropped func(item int) bool

	mu      sync.Mutex
	queries []int
	fetches atomic.Int32
}

func newMockStream(n int) *MockStream {
	items := make([]int, n)
	for idx := range items {
		items[idx] = idx + 1
	}
	return &MockStream{SequenceStream: stream.Sequence("numbers", items...)}
}

func (m *MockStream) Fetch(ctx context.Context, query *types.Query[int]) (types.Batch[int, int], error) {
	m.fetches.Add(1)
	m.mu.Lock()
	m.queries = append(m.queries, query.Cursor.Position())
	m.mu.Unlock()

	if m.fetchFunc != nil {
		if err := m.fetchFunc(ctx, query); err != nil {
			return types.Batch[int, int]{}, err
		}
	}
	batch, err := m.SequenceStream.Fetch(ctx, query)
	if err != nil || m.dropped == nil {
		return batch, err
	}

	kept := types.EmptyBatch[int](batch.Cursor)
	for idx, item := range batch.Items {
		if !m.dropped(item) {
			kept.Items = append(kept.Items, item)
			kept.Positions = append(kept.Positions, batch.Positions[idx])
		}
	}
	return kept, nil
}

func (m *MockStream) Queries() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.queries...)
}

// counter is a checkpointed projection recording what it received
type counter struct {
	types.Progress[int]
	Count int
	Seen  []int
}

func countItems(_ context.Context, projection *counter, items []int) (*counter, error) {
	if projection == nil {
		projection = &counter{}
	}
	projection.Count += len(items)
	projection.Seen = append(projection.Seen, items...)
	return projection, nil
}

// tally is not checkpointed and follows the engine cursor
type tally struct {
	Count int
}

func tallyItems(_ context.Context, projection *tally, items []int) (*tally, error) {
	if projection == nil {
		projection = &tally{}
	}
	projection.Count += len(items)
	return projection, nil
}

// MockStore lets a test fail or intercept FetchAndSave
type MockStore[P any] struct {
	*projection.Memory[P]
	fetchAndSaveFunc func(ctx context.Context, id string, update projection.UpdateFunc[P]) error
}

func newMockStore[P any]() *MockStore[P] {
	return &MockStore[P]{Memory: projection.NewMemory[P]()}
}

func (m *MockStore[P]) FetchAndSave(ctx context.Context, id string, update projection.UpdateFunc[P]) error {
	if m.fetchAndSaveFunc != nil {
		return m.fetchAndSaveFunc(ctx, id, update)
	}
	return m.Memory.FetchAndSave(ctx, id, update)
}
