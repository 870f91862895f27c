package protocol

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/streamcatchup/drivers/logfile"
	"github.com/datazip-inc/streamcatchup/types"
)

func TestRequestsAggregator(t *testing.T) {
	ctx := context.Background()
	activity := uuid.MustParse(aliceActivity)
	agg := requestsAggregator()

	request, err := agg(ctx, nil, []logfile.Entry{
		{ActivityID: activity, Message: "User: alice"},
		{ActivityID: activity, Message: "GET /orders"},
	})
	require.NoError(t, err)
	assert.Equal(t, &Request{ActivityID: aliceActivity, User: "alice"}, request)

	failed, err := agg(ctx, request, []logfile.Entry{
		{ActivityID: activity, Message: "User: mallory"},
		{ActivityID: activity, Message: "StatusCode: ok"},
	})
	require.Error(t, err)
	// the input projection is left untouched by a failed batch
	assert.Same(t, request, failed)
	assert.Equal(t, "alice", request.User)
	assert.Zero(t, request.StatusCode)
}

func TestCounterAggregator(t *testing.T) {
	ctx := context.Background()
	agg := counterAggregator()

	first, err := agg(ctx, nil, []string{"created", "paid"})
	require.NoError(t, err)
	first.AdvanceTo(2)

	second, err := agg(ctx, first, []string{"created"})
	require.NoError(t, err)
	assert.Equal(t, 3, second.Total)
	assert.Equal(t, map[string]int{"created": 2, "paid": 1}, second.Kinds)
	assert.Equal(t, 2, first.Total)

	position, started := second.Checkpoint()
	assert.True(t, started)
	assert.EqualValues(t, 2, position)
}

func TestKinds(t *testing.T) {
	assert.Equal(t, "StatusCode", entryKind(logfile.Entry{Message: "StatusCode: 200"}))
	assert.Equal(t, "GET", entryKind(logfile.Entry{Message: "GET /orders"}))
	assert.Equal(t, "paid", eventKind(types.Event{Type: "paid"}))
}
