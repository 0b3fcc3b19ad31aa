package delivery

import (
	"context"
	"fmt"
	"sync"

	"gopkg.in/gomail.v2"

	"github.com/CamDog38/formrelay/internal/types"
)

/*
 * Secondary ("direct") channel: self-hosted SMTP transport via gomail.
 *
 * The dialer is lazily initialized exactly once on first send; repeated
 * sends reuse the validated dialer. Misconfiguration discovered during init
 * is remembered and reported as a structured failure on every subsequent
 * send, never as a panic.
 *
 * The dialer handle is process-wide mutable state; sync.Once makes the
 * initialize-once lifecycle explicit and its publication atomic.
 */

// SMTPConfig holds direct-channel configuration. Password is
// environment-only; see internal/core/config.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	SenderEmail string
	SenderName  string
}

// SMTPChannel implements Channel over a gomail SMTP dialer.
type SMTPChannel struct {
	config SMTPConfig

	once    sync.Once
	dialer  *gomail.Dialer
	initErr error
}

// NewSMTPChannel creates the direct channel without touching the network;
// the dialer is built on first send.
func NewSMTPChannel(cfg SMTPConfig) *SMTPChannel {
	return &SMTPChannel{config: cfg}
}

// Name implements Channel.
func (c *SMTPChannel) Name() string { return "smtp" }

// Configured implements Channel.
func (c *SMTPChannel) Configured() bool {
	return c.config.Host != ""
}

// init validates configuration and builds the dialer, exactly once.
func (c *SMTPChannel) init() {
	c.once.Do(func() {
		if c.config.Host == "" {
			c.initErr = fmt.Errorf("smtp host not set: %w", types.ErrChannelNotConfigured)
			return
		}
		port := c.config.Port
		if port <= 0 || port > 65535 {
			c.initErr = fmt.Errorf("smtp port %d out of range: %w", port, types.ErrChannelNotConfigured)
			return
		}
		if c.config.SenderEmail == "" {
			c.initErr = fmt.Errorf("smtp sender not set: %w", types.ErrChannelNotConfigured)
			return
		}
		c.dialer = gomail.NewDialer(c.config.Host, port, c.config.Username, c.config.Password)
	})
}

// Send implements Channel. gomail's DialAndSend has no context plumbing, so
// the dial runs in a goroutine and ctx expiry is reported as this channel's
// failure (the send may still complete on the wire; the log records the
// timeout).
func (c *SMTPChannel) Send(ctx context.Context, msg *Message) error {
	c.init()
	if c.initErr != nil {
		return c.initErr
	}

	m := gomail.NewMessage()
	m.SetHeader("From", Recipient(c.config.SenderName, c.config.SenderEmail))
	m.SetHeader("To", msg.To...)
	if len(msg.CC) > 0 {
		m.SetHeader("Cc", msg.CC...)
	}
	if len(msg.BCC) > 0 {
		m.SetHeader("Bcc", msg.BCC...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	done := make(chan error, 1)
	go func() {
		done <- c.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send cancelled: %w", ctx.Err())
	}
}
