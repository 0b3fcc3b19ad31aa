package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CamDog38/formrelay/internal/jobs"
	"github.com/CamDog38/formrelay/internal/types"
)

// jobAccepted is the 202 response for async form maintenance operations.
type jobAccepted struct {
	JobID types.JobID `json:"jobId"`
}

// HandleDuplicateForm starts an async duplication job and returns its id.
func (s *Service) HandleDuplicateForm(w http.ResponseWriter, r *http.Request) {
	formID, err := types.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form id")
		return
	}

	jobID := s.tracker.Start(r.Context(), "form-duplicate", func(ctx context.Context) (any, error) {
		newID, err := s.forms.Duplicate(ctx, formID)
		if err != nil {
			return nil, err
		}
		return jobs.DuplicateResult{FormID: newID}, nil
	})

	writeJSON(w, http.StatusAccepted, jobAccepted{JobID: jobID})
}

// HandleDeleteForm starts an async deletion job and returns its id.
func (s *Service) HandleDeleteForm(w http.ResponseWriter, r *http.Request) {
	formID, err := types.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form id")
		return
	}

	jobID := s.tracker.Start(r.Context(), "form-delete", func(ctx context.Context) (any, error) {
		if err := s.forms.Delete(ctx, formID); err != nil {
			return nil, err
		}
		return jobs.DeleteResult{FormID: formID}, nil
	})

	writeJSON(w, http.StatusAccepted, jobAccepted{JobID: jobID})
}

// HandleJobStatus polls a job by id. Unknown ids are 404, never a crash.
func (s *Service) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := types.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := s.tracker.Status(jobID)
	if err != nil {
		if errors.Is(err, types.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, "failed to read job")
		return
	}

	writeJSON(w, http.StatusOK, job)
}
