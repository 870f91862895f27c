package protocol

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/datazip-inc/streamcatchup/catchup"
	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/drivers/logfile"
	"github.com/datazip-inc/streamcatchup/drivers/parquetfile"
	"github.com/datazip-inc/streamcatchup/drivers/sqlevents"
	"github.com/datazip-inc/streamcatchup/projection"
	"github.com/datazip-inc/streamcatchup/projection/mongostore"
	"github.com/datazip-inc/streamcatchup/projection/sqlstore"
	"github.com/datazip-inc/streamcatchup/stream"
	"github.com/datazip-inc/streamcatchup/telemetry"
	"github.com/datazip-inc/streamcatchup/types"
	"github.com/datazip-inc/streamcatchup/utils"
	"github.com/datazip-inc/streamcatchup/utils/logger"
)

// runner is a configured engine with its single built-in subscription
type runner interface {
	StreamID() string
	RunSingleBatch(ctx context.Context) (*types.Cursor[int64], error)
	RunUntilCaughtUp(ctx context.Context) (*types.Cursor[int64], error)
	Poll(ctx context.Context, interval time.Duration) *catchup.Poller
	Projections(ctx context.Context) (map[string]any, error)
	Close() error
}

type job[D any] struct {
	engine  *catchup.Catchup[D, int64]
	dump    dumpFunc
	closers []func() error
}

func (j *job[D]) StreamID() string {
	return j.engine.Stream().ID()
}

func (j *job[D]) RunSingleBatch(ctx context.Context) (*types.Cursor[int64], error) {
	return j.engine.RunSingleBatch(ctx)
}

func (j *job[D]) RunUntilCaughtUp(ctx context.Context) (*types.Cursor[int64], error) {
	return j.engine.RunUntilCaughtUp(ctx)
}

func (j *job[D]) Poll(ctx context.Context, interval time.Duration) *catchup.Poller {
	return j.engine.Poll(ctx, interval)
}

func (j *job[D]) Projections(ctx context.Context) (map[string]any, error) {
	return j.dump(ctx)
}

func (j *job[D]) Close() error {
	// release in reverse order of acquisition
	closers := make([]func() error, 0, len(j.closers))
	for i := len(j.closers) - 1; i >= 0; i-- {
		closers = append(closers, j.closers[i])
	}
	return utils.ErrExecSequential(closers...)
}

// buildRunner wires the configured source, store and projection into an engine
func buildRunner(ctx context.Context, cfg *types.Config, metrics *telemetry.Metrics) (runner, error) {
	opts := []catchup.Option{
		catchup.WithBatchSize(cfg.BatchSizeOrDefault()),
		catchup.WithMetrics(metrics),
	}

	switch cfg.ProjectionKind() {
	case RequestsProjection:
		source, err := openLogFile(cfg.Source)
		if err != nil {
			return nil, err
		}
		partitioned := stream.PartitionBy[logfile.Entry, int64](source, func(entry logfile.Entry) string {
			return entry.ActivityID.String()
		})
		engine, err := catchup.New[stream.Partition[logfile.Entry, int64], int64](partitioned, opts...)
		if err != nil {
			return nil, err
		}

		store, dump, closeStore, err := openStore[*Request](ctx, cfg.Store, RequestsProjection)
		if err != nil {
			return nil, err
		}
		if _, err := catchup.SubscribePartitions[*Request, logfile.Entry, int64](engine, requestsAggregator(), store,
			catchup.WithID(RequestsProjection),
			catchup.WithErrorPolicy[*Request](skipMalformed),
		); err != nil {
			return nil, utils.ErrExecSequential(closeStore, func() error { return err })
		}
		return &job[stream.Partition[logfile.Entry, int64]]{
			engine:  engine,
			dump:    dump,
			closers: []func() error{utils.ErrExecFormat("failed to close projection store: %s", closeStore)},
		}, nil

	case CounterProjection:
		kinds, closeSource, err := openKinds(ctx, cfg.Source)
		if err != nil {
			return nil, err
		}
		engine, err := catchup.New[string, int64](kinds, opts...)
		if err != nil {
			return nil, utils.ErrExecSequential(closeSource, func() error { return err })
		}

		store, dump, closeStore, err := openStore[*Counter](ctx, cfg.Store, CounterProjection)
		if err != nil {
			return nil, utils.ErrExecSequential(closeSource, func() error { return err })
		}
		if _, err := catchup.Subscribe[*Counter, string, int64](engine, counterAggregator(), store, catchup.WithID(CounterProjection)); err != nil {
			return nil, utils.ErrExecSequential(closeStore, closeSource, func() error { return err })
		}
		return &job[string]{
			engine: engine,
			dump:   dump,
			closers: []func() error{
				utils.ErrExecFormat("failed to close source: %s", closeSource),
				utils.ErrExecFormat("failed to close projection store: %s", closeStore),
			},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported projection[%s]", constants.ErrInvalidConfig, cfg.Projection)
	}
}

// skipMalformed keeps a request projection running past a line it cannot parse
func skipMalformed(err error, _ *Request) catchup.Decision {
	logger.Warnf("skipping malformed request batch: %s", err)
	return catchup.Continue
}

func openLogFile(cfg types.SourceConfig) (*logfile.Stream, error) {
	var opts []logfile.Option
	if cfg.Pattern != "" {
		pattern, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid source pattern: %s", constants.ErrInvalidConfig, err)
		}
		opts = append(opts, logfile.WithPattern(pattern))
	}
	return logfile.New(cfg.Path, cfg.Path, opts...)
}

// openKinds maps any configured source onto the kind of each of its items
func openKinds(ctx context.Context, cfg types.SourceConfig) (types.Stream[string, int64], func() error, error) {
	noop := func() error { return nil }

	switch cfg.Type {
	case constants.LogFile:
		source, err := openLogFile(cfg)
		if err != nil {
			return nil, nil, err
		}
		return stream.Map[logfile.Entry, string, int64](source, entryKind), noop, nil
	case constants.ParquetFile:
		source := parquetfile.New(cfg.Path, cfg.Path)
		return stream.Map[types.Event, string, int64](source, eventKind), noop, nil
	case constants.SQLEvents:
		db, err := sqlevents.Open(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		var opts []sqlevents.Option
		if cfg.Table != "" {
			opts = append(opts, sqlevents.WithTable(cfg.Table))
		}
		if cfg.StreamID != "" {
			opts = append(opts, sqlevents.WithStreamID(cfg.StreamID))
		}
		events := sqlevents.New(db, opts...)
		return stream.Map[types.Event, string, int64](events.Stream(), eventKind), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unsupported source[%s]", constants.ErrInvalidConfig, cfg.Type)
	}
}

type dumpFunc func(ctx context.Context) (map[string]any, error)

// openStore returns the configured projection store together with a dump of
// everything it holds and a closer for its connection.
func openStore[P any](ctx context.Context, cfg types.StoreConfig, name string) (projection.Store[P], dumpFunc, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Type {
	case constants.MemoryStore:
		store := projection.NewMemory[P]()
		dump := func(_ context.Context) (map[string]any, error) {
			out := map[string]any{}
			for id, value := range store.All() {
				out[id] = value
			}
			return out, nil
		}
		return store, dump, noop, nil

	case constants.FileStore:
		store, err := projection.NewFile[P](cfg.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		dump := func(_ context.Context) (map[string]any, error) {
			ids, err := store.IDs()
			if err != nil {
				return nil, err
			}
			return collect(ids, func(id string) (P, bool, error) { return store.Get(id) })
		}
		return store, dump, noop, nil

	case constants.SQLStore:
		db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect projection store: %s", err)
		}
		var opts []sqlstore.Option
		if cfg.Table != "" {
			opts = append(opts, sqlstore.WithTable(cfg.Table))
		}
		store := sqlstore.New[P](db, name, opts...)
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, nil, utils.ErrExecSequential(db.Close, func() error { return err })
		}
		dump := func(ctx context.Context) (map[string]any, error) {
			ids, err := store.IDs(ctx)
			if err != nil {
				return nil, err
			}
			return collect(ids, func(id string) (P, bool, error) { return store.Get(ctx, id) })
		}
		return store, dump, db.Close, nil

	case constants.MongoStore:
		client, err := mongostore.Connect(ctx, cfg.URI)
		if err != nil {
			return nil, nil, nil, err
		}
		collection := cfg.Collection
		if collection == "" {
			collection = constants.ProjectionsTable
		}
		store := mongostore.New[P](client.Database(cfg.Database).Collection(collection), name)
		dump := func(ctx context.Context) (map[string]any, error) {
			ids, err := store.IDs(ctx)
			if err != nil {
				return nil, err
			}
			return collect(ids, func(id string) (P, bool, error) { return store.Get(ctx, id) })
		}
		closeClient := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		}
		return store, dump, closeClient, nil

	default:
		return nil, nil, nil, fmt.Errorf("%w: unsupported store[%s]", constants.ErrInvalidConfig, cfg.Type)
	}
}

func collect[P any](ids []string, get func(id string) (P, bool, error)) (map[string]any, error) {
	out := make(map[string]any, len(ids))
	for _, id := range ids {
		value, found, err := get(id)
		if err != nil {
			return nil, fmt.Errorf("failed to read projection[%s]: %s", id, err)
		}
		if found {
			out[id] = value
		}
	}
	return out, nil
}
