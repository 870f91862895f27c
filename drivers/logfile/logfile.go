// Package logfile streams parsed entries out of an append-only log file. The
// cursor is the byte offset just past the last consumed line.
package logfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/types"
	"github.com/datazip-inc/streamcatchup/utils/logger"
)

const (
	// DefaultPattern matches `M/D/YYYY h:mm:ss.fffPM: [activity-guid] message`
	DefaultPattern = `^(?P<timestamp>.+?): \[(?P<activity>[a-fA-F0-9\-]+)\] (?P<message>.+)$`
	// DefaultTimeLayout is the timestamp layout of DefaultPattern lines
	DefaultTimeLayout = "1/2/2006 3:04:05.000PM"
)

// Entry is one parsed log line
type Entry struct {
	ActivityID uuid.UUID `json:"activity_id"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	// Offset is the byte offset just past the line
	Offset int64 `json:"offset"`
}

type Option func(*Stream)

// WithPattern replaces the line matcher. It must define the named groups
// timestamp, activity and message.
func WithPattern(pattern *regexp.Regexp) Option {
	return func(s *Stream) {
		s.matcher = pattern
	}
}

func WithTimeLayout(layout string) Option {
	return func(s *Stream) {
		s.layout = layout
	}
}

type Stream struct {
	id      string
	path    string
	matcher *regexp.Regexp
	layout  string
}

func New(id, path string, opts ...Option) (*Stream, error) {
	s := &Stream{
		id:      id,
		path:    path,
		matcher: regexp.MustCompile(DefaultPattern),
		layout:  DefaultTimeLayout,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, group := range []string{"timestamp", "activity", "message"} {
		if s.matcher.SubexpIndex(group) < 0 {
			return nil, fmt.Errorf("%w: log pattern is missing group %q", constants.ErrInvalidConfig, group)
		}
	}
	return s, nil
}

func (s *Stream) ID() string {
	return s.id
}

func (s *Stream) NewCursor() *types.Cursor[int64] {
	return types.NewCursor[int64](0)
}

// Fetch reads at most query.BatchSize complete lines after the cursor. Lines
// that do not parse are skipped but still consumed; a trailing line without a
// newline is left for a later fetch.
func (s *Stream) Fetch(ctx context.Context, query *types.Query[int64]) (types.Batch[Entry, int64], error) {
	file, err := os.Open(s.path)
	if err != nil {
		return types.Batch[Entry, int64]{}, fmt.Errorf("failed to open log file %s: %s", s.path, err)
	}
	defer file.Close()

	offset := query.Cursor.Position()
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return types.Batch[Entry, int64]{}, fmt.Errorf("failed to seek log file %s to %d: %s", s.path, offset, err)
	}

	batch := types.EmptyBatch[Entry](query.Cursor.Clone())
	reader := bufio.NewReader(file)
	limit := query.Limit(constants.DefaultBatchSize)
	for lines := 0; lines < limit; lines++ {
		if err := ctx.Err(); err != nil {
			return types.Batch[Entry, int64]{}, err
		}

		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Batch[Entry, int64]{}, fmt.Errorf("failed to read log file %s: %s", s.path, err)
		}

		offset += int64(len(line))
		entry, ok := s.parse(strings.TrimRight(line, "\r\n"))
		if !ok {
			continue
		}
		entry.Offset = offset
		batch.Items = append(batch.Items, entry)
		batch.Positions = append(batch.Positions, offset)
	}

	query.Cursor.AdvanceTo(offset)
	return batch, nil
}

func (s *Stream) parse(line string) (Entry, bool) {
	match := s.matcher.FindStringSubmatch(line)
	if match == nil {
		return Entry{}, false
	}

	activity, err := uuid.Parse(match[s.matcher.SubexpIndex("activity")])
	if err != nil {
		logger.Debugf("Stream[%s]: skipping line with invalid activity id: %s", s.id, err)
		return Entry{}, false
	}
	timestamp, err := time.Parse(s.layout, match[s.matcher.SubexpIndex("timestamp")])
	if err != nil {
		logger.Debugf("Stream[%s]: skipping line with invalid timestamp: %s", s.id, err)
		return Entry{}, false
	}

	return Entry{
		ActivityID: activity,
		Timestamp:  timestamp,
		Message:    match[s.matcher.SubexpIndex("message")],
	}, true
}
