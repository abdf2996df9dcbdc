package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
	"github.com/wisestep/emailing/internal/mocks"
	"github.com/wisestep/emailing/internal/observability/notify"
	"github.com/wisestep/emailing/internal/testutil"
)

func TestDispatchService_Execute_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	sender := &stubSender{name: "sendgrid", result: &model.SendResult{MessageID: testutil.StringPtr("msg-1")}}
	svc := NewDispatchService(DispatchServiceOptions{
		Jobs:     mockJobs,
		Registry: NewProviderRegistry("sendgrid", sender),
	}, testutil.NewTestLogger())

	job := testutil.NewEmailJob().WithID("job-1").WithProvider("sendgrid").Build()
	mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	mockJobs.EXPECT().ClaimProcessing(gomock.Any(), "job-1").Return(true, nil)
	mockJobs.EXPECT().
		MarkSent(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, messageID *string) error {
			require.NotNil(t, messageID)
			assert.Equal(t, "msg-1", *messageID)
			return nil
		})

	err := svc.Execute(context.Background(), "job-1")

	require.NoError(t, err)
	assert.Equal(t, 1, sender.calls)
	assert.Same(t, job, sender.lastJob)
}

func TestDispatchService_Execute_NoMessageID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	sender := &stubSender{name: "smtp"}
	svc := NewDispatchService(DispatchServiceOptions{
		Jobs:     mockJobs,
		Registry: NewProviderRegistry("smtp", sender),
	}, testutil.NewTestLogger())

	job := testutil.NewEmailJob().WithID("job-1").WithProvider("smtp").Build()
	mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	mockJobs.EXPECT().ClaimProcessing(gomock.Any(), "job-1").Return(true, nil)
	mockJobs.EXPECT().MarkSent(gomock.Any(), "job-1", gomock.Nil()).Return(nil)

	require.NoError(t, svc.Execute(context.Background(), "job-1"))
}

func TestDispatchService_Execute_UnknownJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	sender := &stubSender{name: "sendgrid"}
	svc := NewDispatchService(DispatchServiceOptions{
		Jobs:     mockJobs,
		Registry: NewProviderRegistry("sendgrid", sender),
	}, testutil.NewTestLogger())

	mockJobs.EXPECT().GetByID(gomock.Any(), "ghost").Return(nil, apperrors.NotFound("job not found"))

	// Missing job is a logged no-op, not an error.
	require.NoError(t, svc.Execute(context.Background(), "ghost"))
	assert.Zero(t, sender.calls)
}

func TestDispatchService_Execute_AlreadyFinalized(t *testing.T) {
	for _, status := range []model.JobStatus{model.JobStatusSent, model.JobStatusFailed, model.JobStatusProcessing} {
		t.Run(string(status), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockJobs := mocks.NewMockJobRepository(ctrl)
			sender := &stubSender{name: "sendgrid"}
			svc := NewDispatchService(DispatchServiceOptions{
				Jobs:     mockJobs,
				Registry: NewProviderRegistry("sendgrid", sender),
			}, testutil.NewTestLogger())

			job := testutil.NewEmailJob().WithID("job-1").WithStatus(status).Build()
			mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)

			// No claim attempt, no send.
			require.NoError(t, svc.Execute(context.Background(), "job-1"))
			assert.Zero(t, sender.calls)
		})
	}
}

func TestDispatchService_Execute_LostClaimRace(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	sender := &stubSender{name: "sendgrid"}
	svc := NewDispatchService(DispatchServiceOptions{
		Jobs:     mockJobs,
		Registry: NewProviderRegistry("sendgrid", sender),
	}, testutil.NewTestLogger())

	job := testutil.NewEmailJob().WithID("job-1").Build()
	mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	mockJobs.EXPECT().ClaimProcessing(gomock.Any(), "job-1").Return(false, nil)

	// A 0-row claim means another executor won; this one must not send.
	require.NoError(t, svc.Execute(context.Background(), "job-1"))
	assert.Zero(t, sender.calls)
}

func TestDispatchService_Execute_UnknownProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	svc := NewDispatchService(DispatchServiceOptions{
		Jobs:     mockJobs,
		Registry: NewProviderRegistry("sendgrid", &stubSender{name: "sendgrid"}),
	}, testutil.NewTestLogger())

	job := testutil.NewEmailJob().WithID("job-1").WithProvider("mailgun").Build()
	mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	mockJobs.EXPECT().ClaimProcessing(gomock.Any(), "job-1").Return(true, nil)
	mockJobs.EXPECT().
		MarkFailed(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, detail string) error {
			assert.Contains(t, detail, `"mailgun"`)
			return nil
		})

	require.NoError(t, svc.Execute(context.Background(), "job-1"))
}

func TestDispatchService_Execute_SendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	sender := &stubSender{name: "sendgrid", err: errors.New("provider sendgrid send failed: status 503")}
	svc := NewDispatchService(DispatchServiceOptions{
		Jobs:     mockJobs,
		Registry: NewProviderRegistry("sendgrid", sender),
	}, testutil.NewTestLogger())

	job := testutil.NewEmailJob().WithID("job-1").Build()
	mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	mockJobs.EXPECT().ClaimProcessing(gomock.Any(), "job-1").Return(true, nil)
	mockJobs.EXPECT().
		MarkFailed(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, detail string) error {
			assert.Contains(t, detail, "status 503")
			return nil
		})

	// Delivery failure is absorbed into the FAILED transition.
	require.NoError(t, svc.Execute(context.Background(), "job-1"))
}

func TestDispatchService_Execute_MalformedAttachmentsDegrade(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	sender := &stubSender{name: "sendgrid", result: &model.SendResult{}}
	svc := NewDispatchService(DispatchServiceOptions{
		Jobs:     mockJobs,
		Registry: NewProviderRegistry("sendgrid", sender),
	}, testutil.NewTestLogger())

	job := testutil.NewEmailJob().WithID("job-1").WithRawAttachments(`{not json`).Build()
	mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	mockJobs.EXPECT().ClaimProcessing(gomock.Any(), "job-1").Return(true, nil)
	mockJobs.EXPECT().MarkSent(gomock.Any(), "job-1", gomock.Any()).Return(nil)

	// A corrupt attachment list degrades to an attachment-free send.
	require.NoError(t, svc.Execute(context.Background(), "job-1"))
	assert.Equal(t, 1, sender.calls)
	assert.Empty(t, sender.lastAtts)
}

func TestDispatchService_Execute_MalformedAttachmentsPlusSendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	sender := &stubSender{name: "sendgrid", err: errors.New("status 500")}
	svc := NewDispatchService(DispatchServiceOptions{
		Jobs:     mockJobs,
		Registry: NewProviderRegistry("sendgrid", sender),
	}, testutil.NewTestLogger())

	job := testutil.NewEmailJob().WithID("job-1").WithRawAttachments(`{not json`).Build()
	mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	mockJobs.EXPECT().ClaimProcessing(gomock.Any(), "job-1").Return(true, nil)
	mockJobs.EXPECT().
		MarkFailed(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, detail string) error {
			assert.Contains(t, detail, "status 500")
			assert.Contains(t, detail, "attachments dropped")
			return nil
		})

	require.NoError(t, svc.Execute(context.Background(), "job-1"))
}

func TestDispatchService_Execute_PersistenceErrorsSurface(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	sender := &stubSender{name: "sendgrid"}
	svc := NewDispatchService(DispatchServiceOptions{
		Jobs:     mockJobs,
		Registry: NewProviderRegistry("sendgrid", sender),
	}, testutil.NewTestLogger())

	job := testutil.NewEmailJob().WithID("job-1").Build()
	mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	mockJobs.EXPECT().ClaimProcessing(gomock.Any(), "job-1").Return(false, errors.New("connection reset"))

	err := svc.Execute(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim job")
}

func TestDispatchService_Execute_NotifiesOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var captured []notify.SendFailurePayload
	mockJobs := mocks.NewMockJobRepository(ctrl)
	sender := &stubSender{name: "sendgrid", err: errors.New("sendgrid send failed: status 503")}
	svc := NewDispatchService(DispatchServiceOptions{
		Jobs:     mockJobs,
		Registry: NewProviderRegistry("sendgrid", sender),
		Notifier: notify.SinkFunc(func(_ context.Context, payload notify.SendFailurePayload) error {
			captured = append(captured, payload)
			return nil
		}),
	}, testutil.NewTestLogger())

	job := testutil.NewEmailJob().WithID("job-1").WithProvider("sendgrid").Build()
	mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	mockJobs.EXPECT().ClaimProcessing(gomock.Any(), "job-1").Return(true, nil)
	mockJobs.EXPECT().MarkFailed(gomock.Any(), "job-1", gomock.Any()).Return(nil)

	require.NoError(t, svc.Execute(context.Background(), "job-1"))

	require.Len(t, captured, 1)
	assert.Equal(t, "job-1", captured[0].JobID)
	assert.Equal(t, "sendgrid", captured[0].Provider)
	assert.Contains(t, captured[0].Error, "status 503")
}

func TestDispatchService_Execute_NotifierErrorDoesNotAffectOutcome(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJobs := mocks.NewMockJobRepository(ctrl)
	sender := &stubSender{name: "sendgrid", err: errors.New("boom")}
	svc := NewDispatchService(DispatchServiceOptions{
		Jobs:     mockJobs,
		Registry: NewProviderRegistry("sendgrid", sender),
		Notifier: notify.SinkFunc(func(_ context.Context, _ notify.SendFailurePayload) error {
			return errors.New("slack is down")
		}),
	}, testutil.NewTestLogger())

	job := testutil.NewEmailJob().WithID("job-1").WithProvider("sendgrid").Build()
	mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	mockJobs.EXPECT().ClaimProcessing(gomock.Any(), "job-1").Return(true, nil)
	mockJobs.EXPECT().MarkFailed(gomock.Any(), "job-1", gomock.Any()).Return(nil)

	require.NoError(t, svc.Execute(context.Background(), "job-1"))
}
