package sqlevents

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/datazip-inc/streamcatchup/types"
)

func openEvents(t *testing.T, opts ...Option) *Events {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)", filepath.Join(t.TempDir(), "events.db"))
	db, err := Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	events := New(db, opts...)
	require.NoError(t, events.Migrate(ctx))
	return events
}

func TestAppendAssignsSequences(t *testing.T) {
	ctx := context.Background()
	events := openEvents(t)

	stored, err := events.Append(ctx, types.Event{StreamID: "a", Type: "created"}, types.Event{StreamID: "b", Type: "created"})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, int64(1), stored[0].Sequence)
	assert.Equal(t, int64(2), stored[1].Sequence)
	assert.NotZero(t, stored[0].RecordedAt)

	stored, err = events.Append(ctx, types.Event{StreamID: "a", Type: "deleted", Payload: `{"reason":"spam"}`})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored[0].Sequence)
}

func TestStreamFetch(t *testing.T) {
	ctx := context.Background()
	events := openEvents(t)
	for idx := range 5 {
		_, err := events.Append(ctx, types.Event{StreamID: "orders", Type: fmt.Sprintf("type-%d", idx%2)})
		require.NoError(t, err)
	}

	s := events.Stream()
	assert.Equal(t, "events", s.ID())
	query := types.NewQuery(s.NewCursor(), 3)

	batch, err := s.Fetch(ctx, query)
	require.NoError(t, err)
	require.Len(t, batch.Items, 3)
	assert.Equal(t, []int64{1, 2, 3}, batch.Positions)
	assert.Equal(t, int64(3), query.Cursor.Position())
	assert.Equal(t, "type-0", batch.Items[0].Type)

	batch, err = s.Fetch(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, batch.Positions)

	batch, err = s.Fetch(ctx, query)
	require.NoError(t, err)
	assert.Zero(t, batch.Len())
	assert.Equal(t, int64(5), query.Cursor.Position())
}

func TestStreamFilteredByStreamID(t *testing.T) {
	ctx := context.Background()
	events := openEvents(t, WithStreamID("b"), WithTable("custom_events"))
	_, err := events.Append(ctx,
		types.Event{StreamID: "a", Type: "x"},
		types.Event{Type: "y"},
		types.Event{StreamID: "a", Type: "z"},
		types.Event{StreamID: "b", Type: "w"},
	)
	require.NoError(t, err)

	s := events.Stream()
	assert.Equal(t, "custom_events/b", s.ID())

	batch, err := s.Fetch(ctx, types.NewQuery(s.NewCursor(), 10))
	require.NoError(t, err)
	require.Len(t, batch.Items, 2)
	assert.Equal(t, []int64{2, 4}, batch.Positions)
	assert.Equal(t, "b", batch.Items[0].StreamID)
}
