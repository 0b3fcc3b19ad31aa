// Package api implements the HTTP handlers for the automation pipeline.
package api

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/CamDog38/formrelay/internal/core/trigger"
	"github.com/CamDog38/formrelay/internal/delivery"
	"github.com/CamDog38/formrelay/internal/jobs"
	"github.com/CamDog38/formrelay/internal/types"
)

// Store is the persistence surface the handlers need. Implemented by
// *db.Repo.
type Store interface {
	FormByID(ctx context.Context, id types.FormID) (types.Form, error)
	InsertSubmission(ctx context.Context, sub types.Submission) error
	ActiveRulesByForm(ctx context.Context, formID types.FormID) ([]types.Rule, error)
	TemplateByID(ctx context.Context, id types.TemplateID) (types.Template, error)
}

// Sender dispatches a rendered message. Implemented by *delivery.Dispatcher.
type Sender interface {
	Dispatch(ctx context.Context, msg *delivery.Message, refs delivery.Refs) delivery.Result
}

// Trigger fires submission events at the processing endpoint.
// Implemented by *trigger.Client.
type Trigger interface {
	Fire(ctx context.Context, event trigger.Event)
}

// Service is a thin orchestration layer over the pipeline packages.
type Service struct {
	store   Store
	sender  Sender
	tracker *jobs.Tracker
	forms   *jobs.FormOps
	trigger Trigger
	logger  *zap.Logger
}

// NewService creates the handler service with its dependencies.
func NewService(store Store, sender Sender, tracker *jobs.Tracker, forms *jobs.FormOps, trig Trigger, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}
	if tracker == nil {
		return nil, fmt.Errorf("tracker cannot be nil")
	}
	if forms == nil {
		return nil, fmt.Errorf("forms cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:   store,
		sender:  sender,
		tracker: tracker,
		forms:   forms,
		trigger: trig,
		logger:  logger,
	}, nil
}
