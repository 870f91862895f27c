// Package sqlevents streams rows of an append-only SQL event table ordered by
// their sequence number.
package sqlevents

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/stream"
	"github.com/datazip-inc/streamcatchup/types"
	"github.com/datazip-inc/streamcatchup/utils/logger"
)

// Open connects to driver/dsn; "pgx" selects postgres
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %s", driver, err)
	}
	return db, nil
}

type Option func(*Events)

// WithTable overrides the default events table
func WithTable(table string) Option {
	return func(e *Events) {
		e.table = table
	}
}

// WithStreamID restricts the stream to events of one stream id
func WithStreamID(streamID string) Option {
	return func(e *Events) {
		e.streamID = streamID
	}
}

// Events is an event table. Sequence numbers are global across stream ids.
type Events struct {
	db       *sqlx.DB
	table    string
	streamID string
}

func New(db *sqlx.DB, opts ...Option) *Events {
	e := &Events{db: db, table: constants.EventsTable}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Migrate creates the events table when missing
func (e *Events) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		sequence BIGINT NOT NULL PRIMARY KEY,
		stream_id TEXT NOT NULL,
		type TEXT NOT NULL,
		payload TEXT NOT NULL,
		recorded_at BIGINT NOT NULL
	)`, e.table)
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %s", e.table, err)
	}
	return nil
}

// Append assigns the next sequence numbers to events and inserts them in one
// transaction, returning the stored events.
func (e *Events) Append(ctx context.Context, events ...types.Event) ([]types.Event, error) {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %s", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var last int64
	if err := tx.GetContext(ctx, &last, fmt.Sprintf("SELECT COALESCE(MAX(sequence), 0) FROM %s", e.table)); err != nil {
		return nil, fmt.Errorf("failed to read last sequence: %s", err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (sequence, stream_id, type, payload, recorded_at)
		VALUES (:sequence, :stream_id, :type, :payload, :recorded_at)`, e.table)
	stored := make([]types.Event, 0, len(events))
	now := time.Now().UnixMilli()
	for idx, event := range events {
		event.Sequence = last + int64(idx) + 1
		if event.StreamID == "" {
			event.StreamID = e.streamID
		}
		if event.RecordedAt == 0 {
			event.RecordedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, insert, event); err != nil {
			return nil, fmt.Errorf("failed to insert event %d: %s", event.Sequence, err)
		}
		stored = append(stored, event)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit events: %s", err)
	}
	return stored, nil
}

func (e *Events) query(ctx context.Context, query *types.Query[int64]) ([]types.Event, error) {
	statement := fmt.Sprintf("SELECT sequence, stream_id, type, payload, recorded_at FROM %s WHERE sequence > ?", e.table)
	args := []any{query.Cursor.Position()}
	if e.streamID != "" {
		statement += " AND stream_id = ?"
		args = append(args, e.streamID)
	}
	statement += " ORDER BY sequence LIMIT ?"
	args = append(args, query.Limit(constants.DefaultBatchSize))

	events := []types.Event{}
	if err := e.db.SelectContext(ctx, &events, e.db.Rebind(statement), args...); err != nil {
		return nil, fmt.Errorf("failed to query %s: %s", e.table, err)
	}
	logger.Debugf("fetched %d events from %s after sequence %d", len(events), e.table, query.Cursor.Position())
	return events, nil
}

// Stream returns the table as a stream positioned by sequence number
func (e *Events) Stream() *stream.FuncStream[types.Event, int64] {
	id := e.table
	if e.streamID != "" {
		id = fmt.Sprintf("%s/%s", e.table, e.streamID)
	}
	return stream.Create(id,
		func() *types.Cursor[int64] { return types.NewCursor[int64](0) },
		e.query,
		stream.WithPositions(func(event types.Event) int64 { return event.Sequence }),
	)
}
