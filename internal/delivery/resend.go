package delivery

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

/*
 * Primary channel: Resend hosted transactional email API.
 *
 * Left unconfigured (no API key) the channel reports !Configured() and the
 * dispatcher falls through to the direct SMTP channel without recording a
 * failure for it.
 */

// ResendConfig holds hosted-API channel configuration. The API key is
// environment-only; see internal/core/config.
type ResendConfig struct {
	APIKey      string
	SenderEmail string
	SenderName  string
}

// ResendChannel implements Channel using the Resend API.
type ResendChannel struct {
	client *resend.Client
	config ResendConfig
}

// NewResendChannel creates the hosted-API channel. The client is created
// eagerly; an empty API key simply leaves the channel unconfigured.
func NewResendChannel(cfg ResendConfig) *ResendChannel {
	return &ResendChannel{
		client: resend.NewClient(cfg.APIKey),
		config: cfg,
	}
}

// Name implements Channel.
func (c *ResendChannel) Name() string { return "resend" }

// Configured implements Channel.
func (c *ResendChannel) Configured() bool {
	return c.config.APIKey != "" && c.config.SenderEmail != ""
}

// Send implements Channel.
func (c *ResendChannel) Send(ctx context.Context, msg *Message) error {
	req := &resend.SendEmailRequest{
		From:    Recipient(c.config.SenderName, c.config.SenderEmail),
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Cc:      msg.CC,
		Bcc:     msg.BCC,
	}

	if _, err := c.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}
	return nil
}
