package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
	"github.com/wisestep/emailing/internal/mocks"
	"github.com/wisestep/emailing/internal/service"
	"github.com/wisestep/emailing/internal/testutil"
)

type stubSender struct{ name string }

func (s *stubSender) Name() string { return s.name }

func (s *stubSender) Send(_ context.Context, _ *model.EmailJob, _ []model.Attachment) (*model.SendResult, error) {
	return &model.SendResult{}, nil
}

func newEmailTestRouter(t *testing.T, jobs *mocks.MockJobRepository, events *mocks.MockDeliveryEventRepository) http.Handler {
	t.Helper()
	scheduling := service.NewSchedulingService(service.SchedulingServiceOptions{
		Jobs:            jobs,
		Registry:        service.NewProviderRegistry("sendgrid", &stubSender{name: "sendgrid"}),
		DefaultProvider: "sendgrid",
	}, testutil.NewTestLogger())
	return NewRouter(RouterServices{
		Scheduling: scheduling,
		Events:     events,
		Logger:     testutil.NewTestLogger(),
	})
}

func TestSendEmail_Accepted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	mockEvents := mocks.NewMockDeliveryEventRepository(ctrl)
	router := newEmailTestRouter(t, mockJobs, mockEvents)

	mockJobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	body := `{"to":"rcpt@example.com","from":"noreply@example.com","subject":"Hello","body":"<p>Hi</p>"}`
	req := httptest.NewRequest(http.MethodPost, "/emails/send", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["job_id"])
	assert.Equal(t, "scheduled", resp["status"])
}

func TestSendEmail_InvalidJSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newEmailTestRouter(t, mocks.NewMockJobRepository(ctrl), mocks.NewMockDeliveryEventRepository(ctrl))

	req := httptest.NewRequest(http.MethodPost, "/emails/send", strings.NewReader(`{broken`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_json")
}

func TestSendEmail_ValidationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newEmailTestRouter(t, mocks.NewMockJobRepository(ctrl), mocks.NewMockDeliveryEventRepository(ctrl))

	body := `{"to":"not-an-address","from":"noreply@example.com","subject":"Hello","body":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/emails/send", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation")
}

func TestSendEmail_UnknownProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newEmailTestRouter(t, mocks.NewMockJobRepository(ctrl), mocks.NewMockDeliveryEventRepository(ctrl))

	body := `{"to":"rcpt@example.com","from":"noreply@example.com","subject":"Hello","body":"x","provider":"mailgun"}`
	req := httptest.NewRequest(http.MethodPost, "/emails/send", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "mailgun")
}

func TestJobStatus_OK(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	router := newEmailTestRouter(t, mockJobs, mocks.NewMockDeliveryEventRepository(ctrl))

	job := testutil.NewEmailJob().WithID("job-1").WithStatus(model.JobStatusSent).WithMessageID("msg-1").Build()
	mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)

	req := httptest.NewRequest(http.MethodGet, "/emails/job-1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.JobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, model.JobStatusSent, resp.Status)
	require.NotNil(t, resp.MessageID)
	assert.Equal(t, "msg-1", *resp.MessageID)
}

func TestJobStatus_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	router := newEmailTestRouter(t, mockJobs, mocks.NewMockDeliveryEventRepository(ctrl))

	mockJobs.EXPECT().GetByID(gomock.Any(), "ghost").Return(nil, apperrors.NotFound("job not found"))

	req := httptest.NewRequest(http.MethodGet, "/emails/ghost/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestJobEvents_OK(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEvents := mocks.NewMockDeliveryEventRepository(ctrl)
	router := newEmailTestRouter(t, mocks.NewMockJobRepository(ctrl), mockEvents)

	events := []*model.DeliveryEvent{
		testutil.NewDeliveryEvent().WithJobID("job-1").WithEventType("delivered").Build(),
		testutil.NewDeliveryEvent().WithJobID("job-1").WithEventType("open").Build(),
	}
	mockEvents.EXPECT().ListByJob(gomock.Any(), "job-1").Return(events, nil)

	req := httptest.NewRequest(http.MethodGet, "/emails/job-1/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Events []*model.DeliveryEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "delivered", resp.Events[0].EventType)
}

func TestHealthz(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newEmailTestRouter(t, mocks.NewMockJobRepository(ctrl), mocks.NewMockDeliveryEventRepository(ctrl))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
