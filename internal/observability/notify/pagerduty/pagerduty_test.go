package pagerduty

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisestep/emailing/internal/observability/notify"
)

func TestNewClient_RequiresRoutingKey(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestSendFailure_BuildsTriggerEvent(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		body, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "rk-1", Endpoint: srv.URL})
	require.NoError(t, err)

	payload := notify.SendFailurePayload{
		JobID:      "job-9",
		Provider:   "smtp",
		Recipient:  "ops@example.com",
		Error:      "relay refused",
		ErrorClass: "provider",
		OccurredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, client.SendFailure(context.Background(), payload))

	var event map[string]any
	require.NoError(t, json.Unmarshal(body, &event))
	assert.Equal(t, "rk-1", event["routing_key"])
	assert.Equal(t, "trigger", event["event_action"])
	assert.Equal(t, "email-job:job-9", event["dedup_key"])

	inner, _ := event["payload"].(map[string]any)
	require.NotNil(t, inner)
	assert.Equal(t, "Email job job-9 failed on smtp", inner["summary"])
	assert.Equal(t, notify.SeverityCritical, inner["severity"])

	details, _ := inner["custom_details"].(map[string]any)
	require.NotNil(t, details)
	assert.Equal(t, "relay refused", details["error"])
	assert.Equal(t, "provider", details["error_class"])
}

func TestSendFailure_ReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad routing key", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "rk-1", Endpoint: srv.URL, RetryLimit: 0})
	require.NoError(t, err)

	err = client.SendFailure(context.Background(), notify.SendFailurePayload{JobID: "job-9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad routing key")
}
