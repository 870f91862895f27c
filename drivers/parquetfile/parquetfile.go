// Package parquetfile streams the rows of a parquet file of events. The cursor
// is the number of rows already consumed.
package parquetfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	pq "github.com/parquet-go/parquet-go"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/types"
)

type Stream struct {
	id   string
	path string
}

func New(id, path string) *Stream {
	return &Stream{id: id, path: path}
}

func (s *Stream) ID() string {
	return s.id
}

func (s *Stream) NewCursor() *types.Cursor[int64] {
	return types.NewCursor[int64](0)
}

// Fetch reads the rows after the cursor. Row positions are 1-based so that
// the cursor, a row count, has reached exactly the rows before it.
func (s *Stream) Fetch(ctx context.Context, query *types.Query[int64]) (types.Batch[types.Event, int64], error) {
	file, err := os.Open(s.path)
	if err != nil {
		return types.Batch[types.Event, int64]{}, fmt.Errorf("failed to open parquet file %s: %s", s.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return types.Batch[types.Event, int64]{}, fmt.Errorf("failed to stat parquet file %s: %s", s.path, err)
	}
	pqFile, err := pq.OpenFile(file, info.Size())
	if err != nil {
		return types.Batch[types.Event, int64]{}, fmt.Errorf("failed to open parquet file %s: %s", s.path, err)
	}

	offset := query.Cursor.Position()
	batch := types.EmptyBatch[types.Event](query.Cursor.Clone())
	if offset >= pqFile.NumRows() {
		return batch, nil
	}

	reader := pq.NewGenericReader[types.Event](pqFile)
	defer reader.Close()
	if err := reader.SeekToRow(offset); err != nil {
		return types.Batch[types.Event, int64]{}, fmt.Errorf("failed to seek parquet file %s to row %d: %s", s.path, offset, err)
	}

	limit := int64(query.Limit(constants.DefaultBatchSize))
	rows := make([]types.Event, min(limit, pqFile.NumRows()-offset))
	read := 0
	for read < len(rows) {
		if err := ctx.Err(); err != nil {
			return types.Batch[types.Event, int64]{}, err
		}
		n, err := reader.Read(rows[read:])
		read += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Batch[types.Event, int64]{}, fmt.Errorf("failed to read parquet file %s: %s", s.path, err)
		}
	}

	batch.Items = rows[:read]
	batch.Positions = make([]int64, read)
	for idx := range batch.Positions {
		batch.Positions[idx] = offset + int64(idx) + 1
	}
	query.Cursor.AdvanceTo(offset + int64(read))
	return batch, nil
}

// Write stores events as a snappy compressed parquet file
func Write(path string, events []types.Event) error {
	return pq.WriteFile(path, events, pq.Compression(&pq.Snappy))
}
