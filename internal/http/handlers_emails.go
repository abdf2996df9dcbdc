// Package httpx provides the HTTP surface for the emailing system API.
package httpx

import (
	"errors"
	"net/http"

	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/domain/model"
	"github.com/wisestep/emailing/internal/service"
)

// EmailHandlers provides HTTP handlers for email submission and tracking.
type EmailHandlers struct {
	Scheduling *service.SchedulingService
	Events     core.DeliveryEventRepository
}

// SendEmail handles POST /emails/send. The response carries the job id
// the submitter polls for status; the actual delivery happens
// asynchronously.
func (h *EmailHandlers) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req model.EmailRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Scheduling.Schedule(r.Context(), &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

// JobStatus handles GET /emails/{id}/status.
func (h *EmailHandlers) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")})
		return
	}

	status, err := h.Scheduling.Status(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// JobEvents handles GET /emails/{id}/events, listing the delivery events
// correlated to a job in event-timestamp order.
func (h *EmailHandlers) JobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")})
		return
	}

	events, err := h.Events.ListByJob(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if events == nil {
		events = []*model.DeliveryEvent{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
