package sender

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisestep/emailing/config"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

func TestElasticEmailSender_Send_TransactionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/email/send", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "test-key", r.FormValue("apikey"))
		assert.Equal(t, "to@example.com", r.FormValue("to"))
		assert.Equal(t, "from@example.com", r.FormValue("from"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"transactionid":"tx-42","messageid":"msg-42"}}`))
	}))
	defer server.Close()

	s := NewElasticEmailSender(ElasticEmailOptions{
		Config:  config.ElasticEmailConfig{APIKey: "test-key"},
		BaseURL: server.URL,
	}, nil)

	result, err := s.Send(context.Background(), testJob(), nil)
	require.NoError(t, err)
	require.NotNil(t, result.MessageID)
	assert.Equal(t, "tx-42", *result.MessageID)
}

func TestElasticEmailSender_Send_ErrorInsideSuccessResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"Invalid recipient"}`))
	}))
	defer server.Close()

	s := NewElasticEmailSender(ElasticEmailOptions{
		Config:  config.ElasticEmailConfig{APIKey: "test-key"},
		BaseURL: server.URL,
	}, nil)

	_, err := s.Send(context.Background(), testJob(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsProvider(err))
	assert.Contains(t, err.Error(), "Invalid recipient")
}

func TestElasticEmailSender_Send_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	s := NewElasticEmailSender(ElasticEmailOptions{
		Config:  config.ElasticEmailConfig{APIKey: "test-key"},
		BaseURL: server.URL,
	}, nil)

	_, err := s.Send(context.Background(), testJob(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsProvider(err))
}

func TestElasticEmailSender_Send_MissingAPIKey(t *testing.T) {
	s := NewElasticEmailSender(ElasticEmailOptions{}, nil)
	_, err := s.Send(context.Background(), testJob(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfig(err))
}
