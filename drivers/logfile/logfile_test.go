package logfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/types"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	defer file.Close()
	_, err = file.WriteString(content)
	require.NoError(t, err)
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	bob, jane := uuid.New(), uuid.New()
	path := writeLog(t,
		fmt.Sprintf("1/16/2015 6:30:21.000PM: [%s] POST /login", bob),
		fmt.Sprintf("1/16/2015 6:30:21.050PM: [%s] User: bob@contoso.com", bob),
		"not a log line",
		fmt.Sprintf("1/16/2015 6:30:21.060PM: [%s] POST /login", jane),
	)

	s, err := New("app", path)
	require.NoError(t, err)
	query := types.NewQuery(s.NewCursor(), 2)

	batch, err := s.Fetch(ctx, query)
	require.NoError(t, err)
	require.Len(t, batch.Items, 2)
	assert.Equal(t, bob, batch.Items[0].ActivityID)
	assert.Equal(t, "POST /login", batch.Items[0].Message)
	assert.Equal(t, 2015, batch.Items[0].Timestamp.Year())
	assert.Equal(t, 18, batch.Items[0].Timestamp.Hour())
	assert.Equal(t, 50_000_000, batch.Items[1].Timestamp.Nanosecond())
	assert.Equal(t, []int64{batch.Items[0].Offset, batch.Items[1].Offset}, batch.Positions)
	assert.Equal(t, batch.Items[1].Offset, query.Cursor.Position())

	// the unparsable line is consumed without producing an entry
	batch, err = s.Fetch(ctx, query)
	require.NoError(t, err)
	require.Len(t, batch.Items, 1)
	assert.Equal(t, jane, batch.Items[0].ActivityID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), query.Cursor.Position())

	batch, err = s.Fetch(ctx, query)
	require.NoError(t, err)
	assert.Zero(t, batch.Len())
}

func TestFetchLeavesPartialLine(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	path := writeLog(t, fmt.Sprintf("1/16/2015 6:30:21.000PM: [%s] GET /accounts", id))
	appendLog(t, path, fmt.Sprintf("1/16/2015 6:30:22.000PM: [%s] Status", id))

	s, err := New("app", path)
	require.NoError(t, err)
	query := types.NewQuery(s.NewCursor(), 10)

	batch, err := s.Fetch(ctx, query)
	require.NoError(t, err)
	require.Len(t, batch.Items, 1)
	end := query.Cursor.Position()

	appendLog(t, path, "Code: 200\n")
	batch, err = s.Fetch(ctx, query)
	require.NoError(t, err)
	require.Len(t, batch.Items, 1)
	assert.Equal(t, "StatusCode: 200", batch.Items[0].Message)
	assert.Greater(t, query.Cursor.Position(), end)
}

func TestNewValidatesPattern(t *testing.T) {
	_, err := New("app", "unused", WithPattern(regexp.MustCompile(`(?P<message>.+)`)))
	require.ErrorIs(t, err, constants.ErrInvalidConfig)

	custom := regexp.MustCompile(`^(?P<timestamp>\S+) (?P<activity>[a-f0-9\-]+) (?P<message>.+)$`)
	id := uuid.New()
	path := writeLog(t, fmt.Sprintf("2015-01-16T18:30:21Z %s hello", id))

	s, err := New("app", path, WithPattern(custom), WithTimeLayout("2006-01-02T15:04:05Z07:00"))
	require.NoError(t, err)
	batch, err := s.Fetch(context.Background(), types.NewQuery(s.NewCursor(), 10))
	require.NoError(t, err)
	require.Len(t, batch.Items, 1)
	assert.Equal(t, "hello", batch.Items[0].Message)
}

func TestFetchMissingFile(t *testing.T) {
	s, err := New("app", filepath.Join(t.TempDir(), "missing.log"))
	require.NoError(t, err)
	_, err = s.Fetch(context.Background(), types.NewQuery(s.NewCursor(), 10))
	require.Error(t, err)
}
