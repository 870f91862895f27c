package projection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/streamcatchup/types"
)

type counter struct {
	types.Progress[int]
	Count int `json:"count"`
}

func increment(by int) UpdateFunc[*counter] {
	return func(_ context.Context, current *counter) (*counter, error) {
		next := &counter{}
		if current != nil {
			*next = *current
		}
		next.Count += by
		next.AdvanceTo(next.Count)
		return next, nil
	}
}

func failing(context.Context, *counter) (*counter, error) {
	return nil, errors.New("oops!")
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	store := NewMemory[*counter]()

	require.NoError(t, store.FetchAndSave(ctx, "a", increment(2)))
	require.NoError(t, store.FetchAndSave(ctx, "a", increment(3)))
	require.NoError(t, store.FetchAndSave(ctx, "b", increment(1)))

	value, found := store.Get("a")
	require.True(t, found)
	assert.Equal(t, 5, value.Count)
	assert.Equal(t, 2, store.Count())

	err := store.FetchAndSave(ctx, "a", failing)
	require.EqualError(t, err, "oops!")
	value, _ = store.Get("a")
	assert.Equal(t, 5, value.Count)

	all := store.All()
	delete(all, "a")
	assert.Equal(t, 2, store.Count())

	store.Delete("b")
	_, found = store.Get("b")
	assert.False(t, found)
}

func TestMemoryConcurrentUpdatesOfOneID(t *testing.T) {
	ctx := context.Background()
	store := NewMemory[*counter]()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.FetchAndSave(ctx, "shared", increment(1)))
		}()
	}
	wg.Wait()

	value, _ := store.Get("shared")
	assert.Equal(t, 50, value.Count)
}

func TestMemoryDifferentIDsDoNotBlock(t *testing.T) {
	ctx := context.Background()
	store := NewMemory[*counter]()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.FetchAndSave(ctx, "slow", func(ctx context.Context, c *counter) (*counter, error) {
			close(entered)
			<-release
			return c, nil
		})
	}()

	<-entered
	require.NoError(t, store.FetchAndSave(ctx, "fast", increment(1)))
	close(release)
	require.NoError(t, <-done)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	backing := map[string]*counter{}
	store := Create(
		func(_ context.Context, id string) (*counter, error) { return backing[id], nil },
		func(_ context.Context, id string, c *counter) error {
			backing[id] = c
			return nil
		},
	)

	require.NoError(t, store.FetchAndSave(ctx, "x", increment(4)))
	assert.Equal(t, 4, backing["x"].Count)

	require.EqualError(t, store.FetchAndSave(ctx, "x", failing), "oops!")
	assert.Equal(t, 4, backing["x"].Count)

	broken := Create(
		func(context.Context, string) (*counter, error) { return nil, errors.New("down") },
		func(context.Context, string, *counter) error { return nil },
	)
	err := broken.FetchAndSave(ctx, "x", increment(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}

func TestStoreFunc(t *testing.T) {
	committed := false
	var store Store[int] = StoreFunc[int](func(ctx context.Context, id string, update UpdateFunc[int]) error {
		next, err := update(ctx, 41)
		if err != nil {
			return err
		}
		committed = next == 42
		return nil
	})

	require.NoError(t, store.FetchAndSave(context.Background(), "answer", func(_ context.Context, v int) (int, error) {
		return v + 1, nil
	}))
	assert.True(t, committed)
}

func TestFile(t *testing.T) {
	ctx := context.Background()
	store, err := NewFile[*counter](t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.FetchAndSave(ctx, "*main.Counter", increment(2)))
	require.NoError(t, store.FetchAndSave(ctx, "*main.Counter", increment(2)))
	require.NoError(t, store.FetchAndSave(ctx, "dir/with/slash", increment(1)))

	value, found, err := store.Get("*main.Counter")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 4, value.Count)
	position, started := value.Checkpoint()
	assert.True(t, started)
	assert.Equal(t, 4, position)

	_, found, err = store.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	ids, err := store.IDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"*main.Counter", "dir/with/slash"}, ids)

	require.EqualError(t, store.FetchAndSave(ctx, "*main.Counter", failing), "oops!")
	value, _, err = store.Get("*main.Counter")
	require.NoError(t, err)
	assert.Equal(t, 4, value.Count)
}
