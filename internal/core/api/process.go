package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/CamDog38/formrelay/internal/core/metrics"
	"github.com/CamDog38/formrelay/internal/delivery"
	"github.com/CamDog38/formrelay/internal/rules"
	"github.com/CamDog38/formrelay/internal/template"
	"github.com/CamDog38/formrelay/internal/types"
)

/*
 * Submission processing.
 *
 * POST /api/automation/process runs a submission through the pipeline:
 * match rules, render each matched rule's template, then dispatch
 * asynchronously. The response reports counts only; delivery outcome is
 * recorded in email_logs, never in this response. Rendering happens
 * synchronously and in storage order so a rule's template is fully
 * expanded before its dispatch starts.
 */

// processRequest is the trigger payload.
type processRequest struct {
	SubmissionID types.SubmissionID   `json:"submissionId"`
	FormID       types.FormID         `json:"formId"`
	Data         types.SubmissionData `json:"data"`
}

// processResponse summarizes one processing run.
type processResponse struct {
	ProcessedRules int    `json:"processedRules"`
	QueuedEmails   int    `json:"queuedEmails"`
	CorrelationID  string `json:"correlationId"`
}

// recipientKeys are tried in order against the render context to find the
// destination address for a rule's message.
var recipientKeys = []string{"email", "emailAddress", "contactEmail"}

// HandleProcess runs rule matching and delivery for one submission.
func (s *Service) HandleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
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
	if req.SubmissionID == "" || req.FormID == "" {
		writeError(w, http.StatusBadRequest, "submissionId and formId are required")
		return
	}

	correlationID := types.NewCorrelationID()
	logger := s.logger.With(
		zap.String("correlation_id", correlationID),
		zap.String("submission_id", string(req.SubmissionID)),
		zap.String("form_id", string(req.FormID)),
	)

	candidates, err := s.store.ActiveRulesByForm(r.Context(), req.FormID)
	if err != nil {
		logger.Error("failed to load rules", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "failed to load rules")
		return
	}

	// Non-UUIDv7 submission ids carry no timestamp; fall back to now so
	// submittedAt never renders the zero time.
	createdAt := types.SubmissionIDTime(req.SubmissionID)
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	sub := types.Submission{
		SubmissionID: req.SubmissionID,
		FormID:       req.FormID,
		Data:         req.Data,
		CreatedAt:    createdAt,
	}

	matched := rules.Match(sub, candidates)
	metrics.SubmissionsProcessed.Inc()
	metrics.RulesMatched.Add(float64(len(matched)))

	queued := 0
	renderCtx := template.BuildContext(sub)
	for _, rule := range matched {
		msg, refs, err := s.buildMessage(r.Context(), sub, rule, renderCtx)
		if err != nil {
			logger.Warn("skipping rule",
				zap.String("rule_id", string(rule.RuleID)),
				zap.Error(err))
			continue
		}

		queued++
		// Fire-and-forget: delivery outcome lands in email_logs, the
		// trigger response never waits on a channel.
		dispatchCtx := context.WithoutCancel(r.Context())
		go func() {
			res := s.sender.Dispatch(dispatchCtx, msg, refs)
			if !res.Success {
				logger.Warn("delivery failed",
					zap.String("rule_id", string(refs.RuleID)),
					zap.Error(res.Err))
			}
		}()
	}

	logger.Info("submission processed",
		zap.Int("matched_rules", len(matched)),
		zap.Int("queued_emails", queued),
	)

	writeJSON(w, http.StatusOK, processResponse{
		ProcessedRules: len(matched),
		QueuedEmails:   queued,
		CorrelationID:  correlationID,
	})
}

// buildMessage renders a matched rule's template into a dispatchable message.
func (s *Service) buildMessage(ctx context.Context, sub types.Submission, rule types.Rule, renderCtx map[string]any) (*delivery.Message, delivery.Refs, error) {
	tmpl, err := s.store.TemplateByID(ctx, rule.TemplateID)
	if err != nil {
		return nil, delivery.Refs{}, err
	}

	recipient := resolveRecipient(renderCtx)
	if recipient == "" {
		return nil, delivery.Refs{}, types.ErrNoRecipient
	}

	msg := &delivery.Message{
		To:      []string{recipient},
		CC:      delivery.NormalizeAddressList(tmpl.CCList),
		BCC:     delivery.NormalizeAddressList(tmpl.BCCList),
		Subject: template.Render(tmpl.Subject, renderCtx),
		HTML:    template.Render(tmpl.HTMLBody, renderCtx),
	}
	refs := delivery.Refs{
		SubmissionID: sub.SubmissionID,
		RuleID:       rule.RuleID,
		TemplateID:   rule.TemplateID,
	}
	return msg, refs, nil
}

func resolveRecipient(renderCtx map[string]any) string {
	for _, key := range recipientKeys {
		v, ok := rules.Resolve(key, renderCtx)
		if !ok {
			continue
		}
		if addr, ok := v.(string); ok && addr != "" {
			return addr
		}
	}
	return ""
}
