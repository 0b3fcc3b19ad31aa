package template

import (
	"time"

	"github.com/CamDog38/formrelay/internal/types"
)

/*
 * Render context construction.
 *
 * Before rendering, submission field values are merged into the top level
 * of the context in addition to being nested under "formData" and
 * "submission.data". This flattening is part of the rendering contract, not
 * an implementation detail: templates authored against {{fieldName}} and
 * templates authored against {{formData.fieldName}} must resolve the same
 * value.
 *
 * Computed aliases (submissionId, formId, submittedAt) are added for
 * templates that reference pipeline metadata rather than field values. Field
 * values win over aliases on key collision; a form that defines a "formId"
 * field keeps its own binding.
 */

// BuildContext constructs the render/evaluation context for a submission.
func BuildContext(sub types.Submission) map[string]any {
	data := sub.Data.Decode()

	ctx := make(map[string]any, len(data)+5)

	submittedAt := sub.CreatedAt
	if submittedAt.IsZero() {
		submittedAt = types.SubmissionIDTime(sub.SubmissionID)
	}

	ctx["submissionId"] = string(sub.SubmissionID)
	ctx["formId"] = string(sub.FormID)
	ctx["submittedAt"] = submittedAt.UTC().Format(time.RFC3339)

	// Flatten field values on top of the aliases
	for k, v := range data {
		ctx[k] = v
	}

	ctx["formData"] = data
	ctx["submission"] = map[string]any{
		"id":        string(sub.SubmissionID),
		"formId":    string(sub.FormID),
		"data":      data,
		"createdAt": submittedAt.UTC().Format(time.RFC3339),
	}

	return ctx
}
