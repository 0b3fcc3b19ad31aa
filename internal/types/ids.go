package types

import (
	"time"

	"github.com/google/uuid"
)

// Typed UUIDv7 identifiers. String aliases enable type safety while
// maintaining JSON string serialization. UUIDv7 time-ordering ensures
// sequential IDs cluster in B-tree indexes.
type (
	SubmissionID string
	FormID       string
	RuleID       string
	TemplateID   string
	EmailLogID   string
	SectionID    string
	FieldID      string
	JobID        string
)

// NewSubmissionID generates a UUIDv7 submission identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewSubmissionID() SubmissionID {
	return SubmissionID(uuid.Must(uuid.NewV7()).String())
}

// NewFormID generates a UUIDv7 form identifier.
func NewFormID() FormID {
	return FormID(uuid.Must(uuid.NewV7()).String())
}

// NewRuleID generates a UUIDv7 rule identifier.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewTemplateID generates a UUIDv7 template identifier.
func NewTemplateID() TemplateID {
	return TemplateID(uuid.Must(uuid.NewV7()).String())
}

// NewEmailLogID generates a UUIDv7 email log identifier.
func NewEmailLogID() EmailLogID {
	return EmailLogID(uuid.Must(uuid.NewV7()).String())
}

// NewSectionID generates a UUIDv7 section identifier.
func NewSectionID() SectionID {
	return SectionID(uuid.Must(uuid.NewV7()).String())
}

// NewFieldID generates a UUIDv7 field identifier.
func NewFieldID() FieldID {
	return FieldID(uuid.Must(uuid.NewV7()).String())
}

// NewJobID generates a UUIDv7 job identifier. Job IDs are opaque tokens
// handed to polling clients; UUIDv7 keeps them unguessable enough while
// remaining time-sortable in logs.
func NewJobID() JobID {
	return JobID(uuid.Must(uuid.NewV7()).String())
}

// NewCorrelationID generates a UUIDv7 correlation identifier tying one
// submission's processing run to its dispatch log entries.
func NewCorrelationID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ParseJobID validates and converts a string to JobID.
// Rejects malformed UUIDs so unknown-id lookups fail fast at the boundary.
func ParseJobID(s string) (JobID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return JobID(s), nil
}

// ParseFormID validates and converts a string to FormID.
func ParseFormID(s string) (FormID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return FormID(s), nil
}

// SubmissionIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Enables time-based queries without database lookup.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func SubmissionIDTime(id SubmissionID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
