package sender

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisestep/emailing/config"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

func testJob() *model.EmailJob {
	userID := "user-1"
	return &model.EmailJob{
		ID:          "job-1",
		Recipient:   "to@example.com",
		FromAddress: "from@example.com",
		Subject:     "hello",
		Body:        "<p>hi</p>",
		Provider:    "sendgrid",
		UserID:      &userID,
		Status:      model.JobStatusProcessing,
	}
}

func TestSendGridSender_Send_MessageIDFromHeader(t *testing.T) {
	var captured sendGridMail
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/mail/send", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("X-Message-Id", "abc123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	s := NewSendGridSender(SendGridOptions{
		Config:  config.SendGridConfig{APIKey: "test-key"},
		BaseURL: server.URL,
	}, nil)

	result, err := s.Send(context.Background(), testJob(), nil)
	require.NoError(t, err)
	require.NotNil(t, result.MessageID)
	assert.Equal(t, "abc123", *result.MessageID)
	assert.Equal(t, "to@example.com", captured.Personalizations[0].To[0].Email)
	assert.Equal(t, "from@example.com", captured.From.Email)
}

func TestSendGridSender_Send_MessageIDFromBodyFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message_id":"body-id-9"}`))
	}))
	defer server.Close()

	s := NewSendGridSender(SendGridOptions{
		Config:  config.SendGridConfig{APIKey: "test-key"},
		BaseURL: server.URL,
	}, nil)

	result, err := s.Send(context.Background(), testJob(), nil)
	require.NoError(t, err)
	require.NotNil(t, result.MessageID)
	assert.Equal(t, "body-id-9", *result.MessageID)
}

func TestSendGridSender_Send_IncludesAttachments(t *testing.T) {
	var captured sendGridMail
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	s := NewSendGridSender(SendGridOptions{
		Config:  config.SendGridConfig{APIKey: "test-key"},
		BaseURL: server.URL,
	}, nil)

	atts := []model.Attachment{{
		Filename:    "report.pdf",
		ContentType: "application/pdf",
		Data:        base64.StdEncoding.EncodeToString([]byte("pdf-bytes")),
	}}
	_, err := s.Send(context.Background(), testJob(), atts)
	require.NoError(t, err)
	require.Len(t, captured.Attachments, 1)
	assert.Equal(t, "report.pdf", captured.Attachments[0].Filename)
	assert.Equal(t, "attachment", captured.Attachments[0].Disposition)
}

func TestSendGridSender_Send_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad from address"}]}`))
	}))
	defer server.Close()

	s := NewSendGridSender(SendGridOptions{
		Config:  config.SendGridConfig{APIKey: "test-key"},
		BaseURL: server.URL,
	}, nil)

	result, err := s.Send(context.Background(), testJob(), nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsProvider(err))
	assert.Contains(t, err.Error(), "status 400")
}

func TestSendGridSender_Send_MissingAPIKey(t *testing.T) {
	for _, key := range []string{"", sendGridPlaceholderKey} {
		s := NewSendGridSender(SendGridOptions{Config: config.SendGridConfig{APIKey: key}}, nil)
		_, err := s.Send(context.Background(), testJob(), nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsConfig(err))
	}
}
