package catchup

import (
	"context"
	"sync"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/types"
)

type fetchFunc[D, C any] func(ctx context.Context, from *types.Cursor[C]) (types.Batch[D, C], *types.Cursor[C], error)

// gate collects the start position of every subscription taking part in a
// batch. Once each of them has either reported or withdrawn, the last one to
// arrive fetches from the lowest reported position and every reporter
// receives that same batch.
type gate[D, C any] struct {
	mu       sync.Mutex
	expected int
	arrived  int
	starts   []*types.Cursor[C]
	fetch    fetchFunc[D, C]

	ready  chan struct{}
	from   *types.Cursor[C]
	batch  types.Batch[D, C]
	cursor *types.Cursor[C]
	err    error
}

func newGate[D, C any](expected int, fetch fetchFunc[D, C]) *gate[D, C] {
	return &gate[D, C]{
		expected: expected,
		fetch:    fetch,
		ready:    make(chan struct{}),
	}
}

// reporter is one subscription's seat at the gate. It is used from a single goroutine.
type reporter[D, C any] struct {
	gate    *gate[D, C]
	arrived bool
}

func (g *gate[D, C]) reporter() *reporter[D, C] {
	return &reporter[D, C]{gate: g}
}

// arrive registers start, or a withdrawal when start is nil, and resolves the
// gate when it is the last arrival.
func (g *gate[D, C]) arrive(ctx context.Context, start *types.Cursor[C]) {
	g.mu.Lock()
	g.arrived++
	if start != nil {
		g.starts = append(g.starts, start)
	}
	if g.arrived < g.expected {
		g.mu.Unlock()
		return
	}
	starts := g.starts
	g.mu.Unlock()

	if len(starts) == 0 {
		g.err = constants.ErrNoReporters
	} else {
		g.from = types.Minimum(starts...)
		g.batch, g.cursor, g.err = g.fetch(ctx, g.from)
	}
	close(g.ready)
}

func (g *gate[D, C]) wait(ctx context.Context) (types.Batch[D, C], *types.Cursor[C], error) {
	select {
	case <-g.ready:
		return g.batch, g.cursor, g.err
	case <-ctx.Done():
		return types.Batch[D, C]{}, nil, ctx.Err()
	}
}

// outcome returns the gate result and whether the fetch moved past its
// starting position. It must only be called once every reporter has arrived.
func (g *gate[D, C]) outcome() (types.Batch[D, C], *types.Cursor[C], bool, error) {
	<-g.ready
	moved := g.err == nil && g.cursor.Compare(g.from) > 0
	return g.batch, g.cursor, moved, g.err
}

// report hands in the subscription's start position and blocks until the
// shared batch is available.
func (r *reporter[D, C]) report(ctx context.Context, start *types.Cursor[C]) (types.Batch[D, C], *types.Cursor[C], error) {
	if !r.arrived {
		r.arrived = true
		r.gate.arrive(ctx, start)
	}
	return r.gate.wait(ctx)
}

// release withdraws a subscription that never reported so the gate does not
// wait for it. It is a no-op after report.
func (r *reporter[D, C]) release(ctx context.Context) {
	if r.arrived {
		return
	}
	r.arrived = true
	r.gate.arrive(ctx, nil)
}
