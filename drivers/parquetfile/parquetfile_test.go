package parquetfile

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/streamcatchup/types"
)

func writeEvents(t *testing.T, n int) string {
	t.Helper()
	events := make([]types.Event, n)
	for idx := range events {
		events[idx] = types.Event{
			Sequence: int64(idx + 1),
			StreamID: "orders",
			Type:     fmt.Sprintf("type-%d", idx%3),
			Payload:  fmt.Sprintf(`{"n":%d}`, idx),
		}
	}
	path := filepath.Join(t.TempDir(), "events.parquet")
	require.NoError(t, Write(path, events))
	return path
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	s := New("archive", writeEvents(t, 25))
	query := types.NewQuery(s.NewCursor(), 10)

	batch, err := s.Fetch(ctx, query)
	require.NoError(t, err)
	require.Len(t, batch.Items, 10)
	assert.Equal(t, int64(1), batch.Items[0].Sequence)
	assert.Equal(t, "type-1", batch.Items[1].Type)
	assert.Equal(t, int64(10), batch.Positions[9])
	assert.Equal(t, int64(10), query.Cursor.Position())

	batch, err = s.Fetch(ctx, query)
	require.NoError(t, err)
	require.Len(t, batch.Items, 10)
	assert.Equal(t, int64(11), batch.Items[0].Sequence)

	batch, err = s.Fetch(ctx, query)
	require.NoError(t, err)
	require.Len(t, batch.Items, 5)
	assert.Equal(t, `{"n":24}`, batch.Items[4].Payload)
	assert.Equal(t, int64(25), query.Cursor.Position())

	batch, err = s.Fetch(ctx, query)
	require.NoError(t, err)
	assert.Zero(t, batch.Len())
	assert.Equal(t, int64(25), query.Cursor.Position())
}

func TestFetchMissingFile(t *testing.T) {
	s := New("archive", filepath.Join(t.TempDir(), "missing.parquet"))
	_, err := s.Fetch(context.Background(), types.NewQuery(s.NewCursor(), 10))
	require.Error(t, err)
}
