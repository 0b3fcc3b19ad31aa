package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/CamDog38/formrelay/internal/types"
)

// Repo is the repository the pipeline reads and writes through. It converts
// between stored rows (string timestamps, raw JSON columns) and domain
// models, keeping row structs out of the rest of the codebase.
type Repo struct {
	queries *Queries
}

// NewRepo wraps loaded named queries into a repository.
func NewRepo(queries *Queries) *Repo {
	return &Repo{queries: queries}
}

// parseTime converts a stored RFC3339 string; zero time on malformed rows
// rather than failing a whole read.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormByID loads one form.
func (r *Repo) FormByID(ctx context.Context, id types.FormID) (types.Form, error) {
	var row struct {
		FormID    string `db:"form_id"`
		Name      string `db:"name"`
		CreatedAt string `db:"created_at"`
	}
	err := r.queries.GetContext(ctx, "get-form", &row, id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Form{}, types.ErrFormNotFound
	}
	if err != nil {
		return types.Form{}, fmt.Errorf("failed to load form: %w", err)
	}
	return types.Form{
		FormID:    types.FormID(row.FormID),
		Name:      row.Name,
		CreatedAt: parseTime(row.CreatedAt),
	}, nil
}

// InsertSubmission persists an intake submission.
func (r *Repo) InsertSubmission(ctx context.Context, sub types.Submission) error {
	data := []byte(sub.Data)
	if len(data) == 0 {
		data = []byte("{}")
	}
	_, err := r.queries.ExecContext(ctx, "insert-submission",
		sub.SubmissionID, sub.FormID, string(data),
		sub.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// SubmissionByID loads one submission.
func (r *Repo) SubmissionByID(ctx context.Context, id types.SubmissionID) (types.Submission, error) {
	var row struct {
		SubmissionID string `db:"submission_id"`
		FormID       string `db:"form_id"`
		Data         string `db:"data"`
		CreatedAt    string `db:"created_at"`
	}
	err := r.queries.GetContext(ctx, "get-submission", &row, id)
	if err != nil {
		return types.Submission{}, fmt.Errorf("failed to load submission: %w", err)
	}
	return types.Submission{
		SubmissionID: types.SubmissionID(row.SubmissionID),
		FormID:       types.FormID(row.FormID),
		Data:         types.SubmissionData(row.Data),
		CreatedAt:    parseTime(row.CreatedAt),
	}, nil
}

// ActiveRulesByForm returns the active rules registered for a form in
// storage (creation) order. Matching and dispatch follow this order.
func (r *Repo) ActiveRulesByForm(ctx context.Context, formID types.FormID) ([]types.Rule, error) {
	var rows []struct {
		RuleID     string `db:"rule_id"`
		FormID     string `db:"form_id"`
		Name       string `db:"name"`
		Conditions string `db:"conditions"`
		TemplateID string `db:"template_id"`
		Active     bool   `db:"active"`
		CreatedAt  string `db:"created_at"`
	}
	if err := r.queries.SelectContext(ctx, "list-active-rules-by-form", &rows, formID, true); err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}

	rules := make([]types.Rule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, types.Rule{
			RuleID:     types.RuleID(row.RuleID),
			FormID:     types.FormID(row.FormID),
			Name:       row.Name,
			Conditions: json.RawMessage(row.Conditions),
			TemplateID: types.TemplateID(row.TemplateID),
			Active:     row.Active,
			CreatedAt:  parseTime(row.CreatedAt),
		})
	}
	return rules, nil
}

// TemplateByID loads one template.
func (r *Repo) TemplateByID(ctx context.Context, id types.TemplateID) (types.Template, error) {
	var row struct {
		TemplateID string `db:"template_id"`
		Owner      string `db:"owner"`
		Name       string `db:"name"`
		Subject    string `db:"subject"`
		HTMLBody   string `db:"html_body"`
		CCList     string `db:"cc_list"`
		BCCList    string `db:"bcc_list"`
		CreatedAt  string `db:"created_at"`
	}
	err := r.queries.GetContext(ctx, "get-template", &row, id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Template{}, types.ErrTemplateNotFound
	}
	if err != nil {
		return types.Template{}, fmt.Errorf("failed to load template: %w", err)
	}
	return types.Template{
		TemplateID: types.TemplateID(row.TemplateID),
		Owner:      row.Owner,
		Name:       row.Name,
		Subject:    row.Subject,
		HTMLBody:   row.HTMLBody,
		CCList:     row.CCList,
		BCCList:    row.BCCList,
		CreatedAt:  parseTime(row.CreatedAt),
	}, nil
}

// CreateEmailLog inserts a dispatch log record in pending state.
func (r *Repo) CreateEmailLog(ctx context.Context, log *types.EmailLog) error {
	_, err := r.queries.ExecContext(ctx, "insert-email-log",
		log.LogID, log.SubmissionID, log.RuleID, log.TemplateID,
		log.Recipient, log.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert email log: %w", err)
	}
	return nil
}

// MarkEmailLogSent performs the terminal sent transition. The update is
// guarded on status = 'pending' so a second terminal write cannot occur;
// zero rows affected reports ErrLogAlreadyTerminal.
func (r *Repo) MarkEmailLogSent(ctx context.Context, id types.EmailLogID, channel string) error {
	res, err := r.queries.ExecContext(ctx, "mark-email-log-sent",
		channel, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark email log sent: %w", err)
	}
	return terminalWriteResult(res)
}

// MarkEmailLogFailed performs the terminal failed transition with the
// captured error text. Same single-write guard as MarkEmailLogSent.
func (r *Repo) MarkEmailLogFailed(ctx context.Context, id types.EmailLogID, errMsg string) error {
	res, err := r.queries.ExecContext(ctx, "mark-email-log-failed",
		errMsg, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark email log failed: %w", err)
	}
	return terminalWriteResult(res)
}

func terminalWriteResult(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check terminal write: %w", err)
	}
	if affected == 0 {
		return types.ErrLogAlreadyTerminal
	}
	return nil
}

// EmailLogByID loads one dispatch log record.
func (r *Repo) EmailLogByID(ctx context.Context, id types.EmailLogID) (types.EmailLog, error) {
	var row struct {
		LogID        string         `db:"log_id"`
		SubmissionID string         `db:"submission_id"`
		RuleID       string         `db:"rule_id"`
		TemplateID   string         `db:"template_id"`
		Recipient    string         `db:"recipient"`
		Channel      string         `db:"channel"`
		Status       string         `db:"status"`
		Error        string         `db:"error"`
		CreatedAt    string         `db:"created_at"`
		CompletedAt  sql.NullString `db:"completed_at"`
	}
	err := r.queries.GetContext(ctx, "get-email-log", &row, id)
	if err != nil {
		return types.EmailLog{}, fmt.Errorf("failed to load email log: %w", err)
	}

	log := types.EmailLog{
		LogID:        types.EmailLogID(row.LogID),
		SubmissionID: types.SubmissionID(row.SubmissionID),
		RuleID:       types.RuleID(row.RuleID),
		TemplateID:   types.TemplateID(row.TemplateID),
		Recipient:    row.Recipient,
		Channel:      row.Channel,
		Status:       types.EmailLogStatus(row.Status),
		Error:        row.Error,
		CreatedAt:    parseTime(row.CreatedAt),
	}
	if row.CompletedAt.Valid {
		t := parseTime(row.CompletedAt.String)
		log.CompletedAt = &t
	}
	return log, nil
}
