package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/CamDog38/formrelay/internal/core/trigger"
	"github.com/CamDog38/formrelay/internal/types"
)

// intakeRequest creates a submission record.
type intakeRequest struct {
	FormID types.FormID         `json:"formId"`
	Data   types.SubmissionData `json:"data"`
}

// intakeResponse echoes the persisted submission.
type intakeResponse struct {
	SubmissionID types.SubmissionID `json:"submissionId"`
	FormID       types.FormID       `json:"formId"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// HandleIntake persists a submission and fires the processing trigger.
// Intake success is independent of the trigger outcome: a dead pipeline
// never loses a submission.
func (s *Service) HandleIntake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	r.Body = http.MaxBytesReader(w, r.Body, types.MaxSubmissionSize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, types.ErrSubmissionTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.FormID == "" {
		writeError(w, http.StatusBadRequest, "formId is required")
		return
	}

	if _, err := s.store.FormByID(r.Context(), req.FormID); err != nil {
		if errors.Is(err, types.ErrFormNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("failed to load form", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "failed to load form")
		return
	}

	sub := types.Submission{
		SubmissionID: types.NewSubmissionID(),
		FormID:       req.FormID,
		Data:         req.Data,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.InsertSubmission(r.Context(), sub); err != nil {
		s.logger.Error("failed to insert submission", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "failed to store submission")
		return
	}

	if s.trigger != nil {
		s.trigger.Fire(r.Context(), trigger.Event{
			SubmissionID: sub.SubmissionID,
			FormID:       sub.FormID,
			Data:         sub.Data,
		})
	}

	writeJSON(w, http.StatusCreated, intakeResponse{
		SubmissionID: sub.SubmissionID,
		FormID:       sub.FormID,
		CreatedAt:    sub.CreatedAt,
	})
}
