package delivery

import (
	"fmt"
	"strings"

	"github.com/CamDog38/formrelay/internal/types"
)

/*
 * Message and address normalization.
 *
 * Templates store CC/BCC lists either as a literal comma-joined string or
 * as an array; older records also mix the two. NormalizeAddressList folds
 * every accepted shape into a []string so the channels see one wire shape.
 */

// Message is a fully rendered email ready for a delivery channel.
type Message struct {
	To      []string
	CC      []string
	BCC     []string
	Subject string
	HTML    string
}

// Refs ties a dispatch to the records that produced it, for the EmailLog.
type Refs struct {
	SubmissionID types.SubmissionID
	RuleID       types.RuleID
	TemplateID   types.TemplateID
}

// NormalizeAddressList converts a stored address list into a []string.
// Accepted shapes: comma- or semicolon-joined string, []string, []any of
// strings. Blank entries are dropped; nil and unrecognized shapes normalize
// to an empty list.
func NormalizeAddressList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return splitAddresses(t)
	case []string:
		var out []string
		for _, s := range t {
			out = append(out, splitAddresses(s)...)
		}
		return out
	case []any:
		var out []string
		for _, elem := range t {
			if s, ok := elem.(string); ok {
				out = append(out, splitAddresses(s)...)
			}
		}
		return out
	default:
		return nil
	}
}

func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	}) {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Recipient formats a display name and address into RFC 5322 form.
// Returns "Name <email>" when a name is provided, otherwise just the email.
func Recipient(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
