package protocol

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/datazip-inc/streamcatchup/aggregator"
	"github.com/datazip-inc/streamcatchup/drivers/logfile"
	"github.com/datazip-inc/streamcatchup/types"
)

const (
	RequestsProjection = "requests"
	CounterProjection  = "counter"

	userPrefix       = "User: "
	statusCodePrefix = "StatusCode: "
)

// Request summarises the log lines of one activity. Only the user and status
// code lines are kept; any other line of the activity is ignored.
type Request struct {
	types.Progress[int64] `bson:",inline"`
	ActivityID            string `json:"activity_id" bson:"activity_id"`
	User                  string `json:"user,omitempty" bson:"user,omitempty"`
	StatusCode            int    `json:"status_code,omitempty" bson:"status_code,omitempty"`
}

func applyRequest(_ context.Context, current *Request, entries []logfile.Entry) (*Request, error) {
	request := *current
	for _, entry := range entries {
		request.ActivityID = entry.ActivityID.String()
		switch {
		case strings.HasPrefix(entry.Message, userPrefix):
			request.User = strings.TrimPrefix(entry.Message, userPrefix)
		case strings.HasPrefix(entry.Message, statusCodePrefix):
			code, err := strconv.Atoi(strings.TrimPrefix(entry.Message, statusCodePrefix))
			if err != nil {
				return current, fmt.Errorf("invalid status code in activity[%s]: %s", entry.ActivityID, err)
			}
			request.StatusCode = code
		}
	}
	return &request, nil
}

func requestsAggregator() aggregator.Func[*Request, logfile.Entry] {
	return aggregator.Pipeline[*Request, logfile.Entry](aggregator.Func[*Request, logfile.Entry](applyRequest),
		aggregator.Default[*Request, logfile.Entry](func() *Request { return &Request{} }),
		aggregator.Trace[*Request, logfile.Entry](RequestsProjection, nil),
		aggregator.WithSpan[*Request, logfile.Entry](otel.Tracer("catchup"), RequestsProjection),
	)
}

// Counter counts items per kind: the event type for event sources, the first
// word of the message for log files.
type Counter struct {
	types.Progress[int64] `bson:",inline"`
	Total                 int            `json:"total" bson:"total"`
	Kinds                 map[string]int `json:"kinds" bson:"kinds"`
}

func applyCount(_ context.Context, counter *Counter, kinds []string) (*Counter, error) {
	next := &Counter{Progress: counter.Progress, Total: counter.Total, Kinds: maps.Clone(counter.Kinds)}
	if next.Kinds == nil {
		next.Kinds = map[string]int{}
	}
	for _, kind := range kinds {
		next.Kinds[kind]++
		next.Total++
	}
	return next, nil
}

func counterAggregator() aggregator.Func[*Counter, string] {
	return aggregator.Pipeline[*Counter, string](aggregator.Func[*Counter, string](applyCount),
		aggregator.Default[*Counter, string](func() *Counter { return &Counter{Kinds: map[string]int{}} }),
		aggregator.Retry[*Counter, string](2, 100*time.Millisecond),
		aggregator.Trace[*Counter, string](CounterProjection, nil),
		aggregator.WithSpan[*Counter, string](otel.Tracer("catchup"), CounterProjection),
	)
}

func eventKind(event types.Event) string {
	return event.Type
}

func entryKind(entry logfile.Entry) string {
	kind, _, _ := strings.Cut(entry.Message, " ")
	return strings.TrimSuffix(kind, ":")
}
