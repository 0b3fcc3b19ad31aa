package delivery

import "context"

// Channel is one delivery transport. The dispatcher tries channels in
// configured order and short-circuits on the first success, so fallback is
// an explicit ordered list rather than control flow hidden in error
// handling.
type Channel interface {
	// Name identifies the channel in logs and EmailLog records.
	Name() string

	// Configured reports whether the channel has the configuration it
	// needs to attempt a send. Unconfigured channels are skipped, not
	// treated as failures of the message.
	Configured() bool

	// Send delivers the message or returns an error describing why it
	// could not. Implementations honor ctx cancellation/deadline.
	Send(ctx context.Context, msg *Message) error
}
