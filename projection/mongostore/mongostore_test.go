package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/streamcatchup/types"
	"github.com/datazip-inc/streamcatchup/utils"
)

type counter struct {
	types.Progress[int64] `bson:",inline"`
	Count                 int `bson:"count"`
}

func testStore(t *testing.T) *Store[*counter] {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)

	collection := client.Database("catchup_test").Collection(fmt.Sprintf("projections_%s", utils.ULID()))
	t.Cleanup(func() {
		_ = collection.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return New[*counter](collection, "counter")
}

func increment(position int64) func(context.Context, *counter) (*counter, error) {
	return func(_ context.Context, current *counter) (*counter, error) {
		if current == nil {
			current = &counter{}
		}
		current.Count++
		current.AdvanceTo(position)
		return current, nil
	}
}

func TestFetchAndSave(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.FetchAndSave(ctx, "a", increment(1)))
	require.NoError(t, store.FetchAndSave(ctx, "a", increment(5)))
	require.NoError(t, store.FetchAndSave(ctx, "b", increment(2)))

	value, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, value.Count)
	position, started := value.Checkpoint()
	assert.True(t, started)
	assert.Equal(t, int64(5), position)

	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	_, found, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConcurrentWriterIsDetected(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	require.NoError(t, store.FetchAndSave(ctx, "a", increment(1)))

	err := store.FetchAndSave(ctx, "a", func(ctx context.Context, current *counter) (*counter, error) {
		require.NoError(t, store.FetchAndSave(ctx, "a", increment(2)))
		return increment(3)(ctx, current)
	})
	require.ErrorIs(t, err, ErrConcurrentUpdate)
}
