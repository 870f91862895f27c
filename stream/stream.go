// Package stream provides ready-made streams and stream combinators.
package stream

import (
	"context"
	"fmt"

	"github.com/datazip-inc/streamcatchup/types"
)

type (
	// QueryFunc returns the items after query.Cursor, at most query.BatchSize of them
	QueryFunc[D, C any] func(ctx context.Context, query *types.Query[C]) ([]D, error)
	// AdvanceFunc moves query.Cursor past a fetched batch
	AdvanceFunc[D, C any] func(query *types.Query[C], batch types.Batch[D, C]) error
	// PositionFunc returns the stream position of an item
	PositionFunc[D, C any] func(item D) C

	Option[D, C any] func(s *FuncStream[D, C])
)

// FuncStream is a stream built from plain functions
type FuncStream[D, C any] struct {
	id        string
	newCursor func() *types.Cursor[C]
	query     QueryFunc[D, C]
	advance   AdvanceFunc[D, C]
	position  PositionFunc[D, C]
}

// WithAdvance overrides how the query cursor is advanced after a fetch.
// An error returned by advance fails the fetch.
func WithAdvance[D, C any](advance AdvanceFunc[D, C]) Option[D, C] {
	return func(s *FuncStream[D, C]) {
		s.advance = advance
	}
}

// WithPositions records each item's position in the batch and, unless
// WithAdvance is given, advances the cursor to the last item's position.
func WithPositions[D, C any](position PositionFunc[D, C]) Option[D, C] {
	return func(s *FuncStream[D, C]) {
		s.position = position
	}
}

// Create builds a stream from a query function
func Create[D, C any](id string, newCursor func() *types.Cursor[C], query QueryFunc[D, C], opts ...Option[D, C]) *FuncStream[D, C] {
	s := &FuncStream[D, C]{
		id:        id,
		newCursor: newCursor,
		query:     query,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FuncStream[D, C]) ID() string {
	return s.id
}

func (s *FuncStream[D, C]) NewCursor() *types.Cursor[C] {
	return s.newCursor()
}

func (s *FuncStream[D, C]) Fetch(ctx context.Context, query *types.Query[C]) (types.Batch[D, C], error) {
	items, err := s.query(ctx, query)
	if err != nil {
		return types.Batch[D, C]{}, err
	}

	batch := types.NewBatch(items, query.Cursor.Clone())
	if s.position != nil {
		batch.Positions = make([]C, len(items))
		for idx, item := range items {
			batch.Positions[idx] = s.position(item)
		}
	}

	switch {
	case s.advance != nil:
		if err := s.advance(query, batch); err != nil {
			return types.Batch[D, C]{}, fmt.Errorf("failed to advance cursor of stream[%s]: %w", s.id, err)
		}
	case batch.HasPositions():
		query.Cursor.AdvanceTo(batch.Positions[len(batch.Positions)-1])
	}

	return batch, nil
}
