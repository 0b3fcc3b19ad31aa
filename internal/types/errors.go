package types

import "errors"

// Sentinel errors for FormRelay operations.
var (
	// ErrPathTooDeep indicates a field path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrConditionTooLarge indicates a condition tree exceeds MaxConditionNodes.
	ErrConditionTooLarge = errors.New("condition tree has too many nodes")

	// ErrSubmissionTooLarge indicates a payload exceeds MaxSubmissionSize.
	ErrSubmissionTooLarge = errors.New("submission payload exceeds maximum size")

	// ErrFormNotFound indicates a form id could not be resolved.
	ErrFormNotFound = errors.New("form not found")

	// ErrTemplateNotFound indicates a rule references a missing template.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrJobNotFound indicates an unknown job id was polled.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobTerminal indicates a transition was attempted on a terminal job.
	ErrJobTerminal = errors.New("job already in terminal state")

	// ErrInvalidTransition indicates a job status regression was attempted.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrNoRecipient indicates a dispatch had no deliverable recipient.
	ErrNoRecipient = errors.New("message has no recipient")

	// ErrChannelNotConfigured indicates a delivery channel is missing the
	// configuration it needs to send.
	ErrChannelNotConfigured = errors.New("delivery channel not configured")

	// ErrAllChannelsFailed indicates every configured channel failed.
	ErrAllChannelsFailed = errors.New("all delivery channels failed")

	// ErrLogAlreadyTerminal indicates a second terminal write was attempted
	// on an email log record.
	ErrLogAlreadyTerminal = errors.New("email log already has terminal status")
)
