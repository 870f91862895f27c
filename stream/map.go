package stream

import (
	"context"

	"github.com/datazip-inc/streamcatchup/types"
)

// MappedStream converts each item of an underlying stream, keeping positions
type MappedStream[D, R, C any] struct {
	source types.Stream[D, C]
	fn     func(D) R
}

func Map[D, R, C any](source types.Stream[D, C], fn func(D) R) *MappedStream[D, R, C] {
	return &MappedStream[D, R, C]{source: source, fn: fn}
}

func (m *MappedStream[D, R, C]) ID() string {
	return m.source.ID()
}

func (m *MappedStream[D, R, C]) NewCursor() *types.Cursor[C] {
	return m.source.NewCursor()
}

func (m *MappedStream[D, R, C]) Fetch(ctx context.Context, query *types.Query[C]) (types.Batch[R, C], error) {
	batch, err := m.source.Fetch(ctx, query)
	if err != nil {
		return types.Batch[R, C]{}, err
	}

	items := make([]R, len(batch.Items))
	for idx, item := range batch.Items {
		items[idx] = m.fn(item)
	}
	return types.Batch[R, C]{Items: items, Positions: batch.Positions, Cursor: batch.Cursor}, nil
}

// Partition is the slice of one fetched batch that belongs to a single key
type Partition[D, C any] struct {
	Key       string
	Items     []D
	Positions []C
}

// Batch returns the partition as a batch fetched relative to cursor
func (p Partition[D, C]) Batch(cursor *types.Cursor[C]) types.Batch[D, C] {
	return types.Batch[D, C]{Items: p.Items, Positions: p.Positions, Cursor: cursor}
}

// PartitionedStream fans one stream out into named sub-streams. It owns no
// position: every fetch is forwarded to the source and the returned items are
// grouped by key in the order keys were first seen.
type PartitionedStream[D, C any] struct {
	source types.Stream[D, C]
	key    func(D) string
}

func PartitionBy[D, C any](source types.Stream[D, C], key func(D) string) *PartitionedStream[D, C] {
	return &PartitionedStream[D, C]{source: source, key: key}
}

func (p *PartitionedStream[D, C]) ID() string {
	return p.source.ID()
}

func (p *PartitionedStream[D, C]) NewCursor() *types.Cursor[C] {
	return p.source.NewCursor()
}

func (p *PartitionedStream[D, C]) Fetch(ctx context.Context, query *types.Query[C]) (types.Batch[Partition[D, C], C], error) {
	batch, err := p.source.Fetch(ctx, query)
	if err != nil {
		return types.Batch[Partition[D, C], C]{}, err
	}

	index := make(map[string]int)
	partitions := []Partition[D, C]{}
	for idx, item := range batch.Items {
		key := p.key(item)
		at, found := index[key]
		if !found {
			at = len(partitions)
			index[key] = at
			partitions = append(partitions, Partition[D, C]{Key: key})
		}
		partitions[at].Items = append(partitions[at].Items, item)
		if batch.HasPositions() {
			partitions[at].Positions = append(partitions[at].Positions, batch.Positions[idx])
		}
	}

	return types.NewBatch(partitions, batch.Cursor), nil
}
