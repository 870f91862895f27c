// Package sqlstore persists projections as JSON documents in a SQL table.
// It runs on postgres through the pgx stdlib driver and on sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/mitchellh/hashstructure"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/projection"
	"github.com/datazip-inc/streamcatchup/utils/logger"
)

type Option func(*options)

type options struct {
	table string
}

// WithTable overrides the default projections table
func WithTable(table string) Option {
	return func(o *options) {
		o.table = table
	}
}

type row struct {
	Body      string `db:"body"`
	UpdatedAt int64  `db:"updated_at"`
}

// Store keeps every projection of one kind (name) in a shared table keyed by
// (name, id). Each FetchAndSave runs in its own transaction and skips the
// write when the update left the projection unchanged.
type Store[P any] struct {
	db    *sqlx.DB
	name  string
	table string
}

var _ projection.Store[any] = (*Store[any])(nil)

func New[P any](db *sqlx.DB, name string, opts ...Option) *Store[P] {
	o := &options{table: constants.ProjectionsTable}
	for _, opt := range opts {
		opt(o)
	}
	return &Store[P]{db: db, name: name, table: o.table}
}

// Migrate creates the projections table when missing
func (s *Store[P]) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (name, id)
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %s", s.table, err)
	}
	return nil
}

func (s *Store[P]) FetchAndSave(ctx context.Context, id string, update projection.UpdateFunc[P]) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %s", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Warnf("failed to rollback projection[%s/%s]: %s", s.name, id, rbErr)
			}
		}
	}()

	current, found, err := s.get(ctx, tx, id)
	if err != nil {
		return err
	}
	before := checksum(current)

	next, err := update(ctx, current)
	if err != nil {
		return err
	}

	if found && before != 0 && before == checksum(next) {
		logger.Debugf("projection[%s/%s] unchanged, skipping write", s.name, id)
		return tx.Commit()
	}

	body, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode projection[%s/%s]: %s", s.name, id, err)
	}

	upsert := tx.Rebind(fmt.Sprintf(`INSERT INTO %s (name, id, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (name, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`, s.table))
	if _, err = tx.ExecContext(ctx, upsert, s.name, id, string(body), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save projection[%s/%s]: %s", s.name, id, err)
	}

	return tx.Commit()
}

// Get reads a projection outside of any update
func (s *Store[P]) Get(ctx context.Context, id string) (P, bool, error) {
	return s.get(ctx, s.db, id)
}

// IDs lists the ids stored under this store's name
func (s *Store[P]) IDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	query := s.db.Rebind(fmt.Sprintf("SELECT id FROM %s WHERE name = ? ORDER BY id", s.table))
	if err := s.db.SelectContext(ctx, &ids, query, s.name); err != nil {
		return nil, fmt.Errorf("failed to list projections of %s: %s", s.name, err)
	}
	return ids, nil
}

func (s *Store[P]) get(ctx context.Context, q sqlx.QueryerContext, id string) (P, bool, error) {
	var value P
	var stored row

	query := sqlx.Rebind(sqlx.BindType(s.db.DriverName()), fmt.Sprintf("SELECT body, updated_at FROM %s WHERE name = ? AND id = ?", s.table))
	err := sqlx.GetContext(ctx, q, &stored, query, s.name, id)
	if errors.Is(err, sql.ErrNoRows) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("failed to load projection[%s/%s]: %s", s.name, id, err)
	}

	if err := json.Unmarshal([]byte(stored.Body), &value); err != nil {
		return value, false, fmt.Errorf("failed to decode projection[%s/%s]: %s", s.name, id, err)
	}
	return value, true, nil
}

// checksum returns 0 when the value cannot be hashed, which disables the skip
func checksum(v any) uint64 {
	hash, err := hashstructure.Hash(v, nil)
	if err != nil {
		return 0
	}
	return hash
}
