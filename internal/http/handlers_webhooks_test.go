package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wisestep/emailing/internal/mocks"
	"github.com/wisestep/emailing/internal/service"
	"github.com/wisestep/emailing/internal/testutil"
)

type stubVerifier struct {
	err     error
	lastSig string
	lastTS  string
}

func (v *stubVerifier) Verify(_ []byte, signature, timestamp string) error {
	v.lastSig = signature
	v.lastTS = timestamp
	return v.err
}

func newWebhookTestRouter(t *testing.T, events *mocks.MockDeliveryEventRepository,
	jobs *mocks.MockJobRepository, verifier *stubVerifier,
) http.Handler {
	t.Helper()
	webhooks := service.NewWebhookService(service.WebhookServiceOptions{
		Events:   events,
		Jobs:     jobs,
		Verifier: verifier,
	}, testutil.NewTestLogger())
	scheduling := service.NewSchedulingService(service.SchedulingServiceOptions{
		Jobs:            jobs,
		Registry:        service.NewProviderRegistry("sendgrid", &stubSender{name: "sendgrid"}),
		DefaultProvider: "sendgrid",
	}, testutil.NewTestLogger())
	return NewRouter(RouterServices{
		Scheduling: scheduling,
		Webhooks:   webhooks,
		Events:     events,
		Logger:     testutil.NewTestLogger(),
	})
}

func TestSendGridEvents_Processed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEvents := mocks.NewMockDeliveryEventRepository(ctrl)
	mockJobs := mocks.NewMockJobRepository(ctrl)
	verifier := &stubVerifier{}
	router := newWebhookTestRouter(t, mockEvents, mockJobs, verifier)

	mockEvents.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	body := `[{"event":"delivered"},{"event":"open"}]`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sendgrid", strings.NewReader(body))
	req.Header.Set("X-Twilio-Email-Event-Webhook-Signature", "sig-abc")
	req.Header.Set("X-Twilio-Email-Event-Webhook-Timestamp", "1706000000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"processed":2,"dropped":0}`, rec.Body.String())
	assert.Equal(t, "sig-abc", verifier.lastSig)
	assert.Equal(t, "1706000000", verifier.lastTS)
}

func TestSendGridEvents_ReportsDroppedEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEvents := mocks.NewMockDeliveryEventRepository(ctrl)
	mockJobs := mocks.NewMockJobRepository(ctrl)
	router := newWebhookTestRouter(t, mockEvents, mockJobs, &stubVerifier{})

	gomock.InOrder(
		mockEvents.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("deadlock detected")),
		mockEvents.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil),
	)

	body := `[{"event":"delivered"},{"event":"open"}]`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sendgrid", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"processed":1,"dropped":1}`, rec.Body.String())
}

func TestSendGridEvents_BadSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEvents := mocks.NewMockDeliveryEventRepository(ctrl)
	mockJobs := mocks.NewMockJobRepository(ctrl)
	router := newWebhookTestRouter(t, mockEvents, mockJobs, &stubVerifier{err: errors.New("signature mismatch")})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/sendgrid", strings.NewReader(`[{"event":"open"}]`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestSendGridEvents_CorruptBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEvents := mocks.NewMockDeliveryEventRepository(ctrl)
	mockJobs := mocks.NewMockJobRepository(ctrl)
	router := newWebhookTestRouter(t, mockEvents, mockJobs, &stubVerifier{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/sendgrid", strings.NewReader(`not json at all`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation")
}
