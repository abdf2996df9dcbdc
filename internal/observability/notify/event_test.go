package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulti_FansOutToEverySink(t *testing.T) {
	var first, second []SendFailurePayload

	sink := Multi(
		SinkFunc(func(_ context.Context, p SendFailurePayload) error {
			first = append(first, p)
			return nil
		}),
		nil,
		SinkFunc(func(_ context.Context, p SendFailurePayload) error {
			second = append(second, p)
			return nil
		}),
	)

	payload := SendFailurePayload{JobID: "job-1", Provider: "sendgrid", Severity: SeverityCritical}
	require.NoError(t, sink.SendFailure(context.Background(), payload))

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, payload, first[0])
	assert.Equal(t, payload, second[0])
}

func TestMulti_FailingSinkDoesNotStopOthers(t *testing.T) {
	slackErr := errors.New("slack is down")
	var delivered int

	sink := Multi(
		SinkFunc(func(_ context.Context, _ SendFailurePayload) error { return slackErr }),
		SinkFunc(func(_ context.Context, _ SendFailurePayload) error {
			delivered++
			return nil
		}),
	)

	err := sink.SendFailure(context.Background(), SendFailurePayload{JobID: "job-1"})

	assert.ErrorIs(t, err, slackErr)
	assert.Equal(t, 1, delivered)
}

func TestSinkFunc_NilIsNoop(t *testing.T) {
	var fn SinkFunc
	assert.NoError(t, fn.SendFailure(context.Background(), SendFailurePayload{}))
}
