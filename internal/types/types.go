// Package types provides domain models shared across FormRelay components.
//
// Zero-dependency design: types.go and errors.go use only encoding/json so
// the models can be embedded in client tooling without pulling in the service
// stack. ID utilities in ids.go import uuid but are isolated for selective
// inclusion.
package types

import (
	"encoding/json"
	"time"
)

// SubmissionData represents the raw field-key -> value mapping captured by
// the form intake collaborator. json.RawMessage wrapper preserves original
// bytes; the rule engine and renderer decode on demand and treat the shape
// as schema-agnostic (values may be scalars, arrays, or nested objects).
type SubmissionData json.RawMessage

// MarshalJSON implements json.Marshaler.
// Delegates to json.RawMessage to preserve original payload bytes unchanged.
func (d SubmissionData) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return json.RawMessage(d).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
// Delegates to json.RawMessage to capture raw bytes without parsing.
func (d *SubmissionData) UnmarshalJSON(data []byte) error {
	return (*json.RawMessage)(d).UnmarshalJSON(data)
}

// Decode parses the raw data into a generic map. A nil or malformed payload
// decodes to an empty map; the pipeline treats bad payloads as "no fields",
// never as an error.
func (d SubmissionData) Decode() map[string]any {
	if len(d) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(d, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// Submission is one user-supplied record of form field values.
// Immutable once created; the pipeline consumes it read-only.
type Submission struct {
	SubmissionID SubmissionID   `db:"submission_id"`
	FormID       FormID         `db:"form_id"`
	Data         SubmissionData `db:"data"`
	CreatedAt    time.Time      `db:"created_at"`
}

// Rule is a stored (condition, template) pairing scoped to a form.
// Conditions holds the persisted JSON condition tree in either the legacy
// flattened shape or the explicit and/or tree shape; both remain supported
// indefinitely. An empty tree means the rule matches unconditionally.
type Rule struct {
	RuleID     RuleID          `db:"rule_id"`
	FormID     FormID          `db:"form_id"`
	Name       string          `db:"name"`
	Conditions json.RawMessage `db:"conditions"`
	TemplateID TemplateID      `db:"template_id"`
	Active     bool            `db:"active"`
	CreatedAt  time.Time       `db:"created_at"`
}

// Template is parametrized subject/body text rendered per submission.
// Subject and HTMLBody share the same placeholder grammar. CCList and
// BCCList are stored as comma-joined literals and may be empty.
type Template struct {
	TemplateID TemplateID `db:"template_id"`
	Owner      string     `db:"owner"`
	Name       string     `db:"name"`
	Subject    string     `db:"subject"`
	HTMLBody   string     `db:"html_body"`
	CCList     string     `db:"cc_list"`
	BCCList    string     `db:"bcc_list"`
	CreatedAt  time.Time  `db:"created_at"`
}

// EmailLogStatus tracks a single delivery attempt's lifecycle.
type EmailLogStatus string

const (
	EmailLogPending EmailLogStatus = "pending"
	EmailLogSent    EmailLogStatus = "sent"
	EmailLogFailed  EmailLogStatus = "failed"
)

// EmailLog records one dispatch outcome. Created pending at dispatch start
// and transitioned exactly once to sent or failed; never deleted by the
// pipeline.
type EmailLog struct {
	LogID        EmailLogID     `db:"log_id"`
	SubmissionID SubmissionID   `db:"submission_id"`
	RuleID       RuleID         `db:"rule_id"`
	TemplateID   TemplateID     `db:"template_id"`
	Recipient    string         `db:"recipient"`
	Channel      string         `db:"channel"`
	Status       EmailLogStatus `db:"status"`
	Error        string         `db:"error"`
	CreatedAt    time.Time      `db:"created_at"`
	CompletedAt  *time.Time     `db:"completed_at"`
}

// JobStatus is monotonic along pending -> processing -> (completed | failed).
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transition.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is a tracked asynchronous maintenance operation with polling-based
// status. Result and Error are immutable once the job is terminal.
type Job struct {
	JobID     JobID     `json:"jobId"`
	Status    JobStatus `json:"status"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Form structure records duplicated and deleted by maintenance jobs.
// The pipeline never edits form structure outside a job transaction.
type Form struct {
	FormID    FormID    `db:"form_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// FormSection is an ordered group of fields within a form.
type FormSection struct {
	SectionID SectionID `db:"section_id"`
	FormID    FormID    `db:"form_id"`
	Title     string    `db:"title"`
	Position  int       `db:"position"`
}

// FormField is one input definition; FieldKey is the key submissions use.
type FormField struct {
	FieldID   FieldID   `db:"field_id"`
	SectionID SectionID `db:"section_id"`
	FormID    FormID    `db:"form_id"`
	FieldKey  string    `db:"field_key"`
	Label     string    `db:"label"`
	FieldType string    `db:"field_type"`
	Position  int       `db:"position"`
}

// Resource limits enforced by the pipeline to keep evaluation and rendering
// bounded on hostile or malformed stored content.
const (
	// MaxPathDepth prevents stack overflow during recursive path resolution.
	// 16 levels handles deeply nested submission objects without degradation.
	MaxPathDepth = 16

	// MaxConditionNodes bounds condition tree size so a malformed rule cannot
	// force unbounded recursion during normalization or evaluation.
	MaxConditionNodes = 256

	// MaxTemplateNesting bounds if/each block nesting during rendering.
	MaxTemplateNesting = 32

	// MaxSubmissionSize limits submission payloads accepted by the trigger
	// endpoint. 1MB covers typical form data; larger content belongs in
	// external storage.
	MaxSubmissionSize = 1024 * 1024
)
