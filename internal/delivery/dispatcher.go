package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/CamDog38/formrelay/internal/core/metrics"
	"github.com/CamDog38/formrelay/internal/types"
)

/*
 * Delivery dispatch with ordered fallback.
 *
 * Per-attempt state machine:
 *   NotStarted -> PrimaryAttempted -> (Sent | FallbackAttempted) -> (Sent | Failed)
 *
 * The dispatcher walks its channel list in order, skipping unconfigured
 * channels, and short-circuits on the first successful send. Every dispatch
 * creates one EmailLog in pending state and performs exactly one terminal
 * write: sent with the channel used, or failed with the collected error
 * text. The log write immediately follows the attempt it records.
 *
 * Failures are returned as a Result value, never as a raised error: the
 * submission-handling request path must succeed even when every channel is
 * down.
 */

// LogStore is the narrow persistence surface the dispatcher needs.
// Implemented by *db.Repo; tests substitute an in-memory recorder.
type LogStore interface {
	CreateEmailLog(ctx context.Context, log *types.EmailLog) error
	MarkEmailLogSent(ctx context.Context, id types.EmailLogID, channel string) error
	MarkEmailLogFailed(ctx context.Context, id types.EmailLogID, errMsg string) error
}

// Result reports a dispatch outcome as data.
type Result struct {
	Success bool
	Channel string           // channel that sent, empty on failure
	LogID   types.EmailLogID // log record for this attempt
	Err     error            // collected failure, nil on success
}

// Dispatcher sends rendered messages through an ordered channel list.
type Dispatcher struct {
	channels []Channel
	logs     LogStore
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. Channels are tried in the given
// order; by convention the hosted API channel comes first and the direct
// SMTP channel second. A nil limiter disables rate limiting.
func NewDispatcher(channels []Channel, logs LogStore, limiter *rate.Limiter, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		channels: channels,
		logs:     logs,
		limiter:  limiter,
		timeout:  timeout,
		logger:   logger,
	}
}

// Dispatch sends the message, records the outcome, and returns it as data.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message, refs Refs) Result {
	log := &types.EmailLog{
		LogID:        types.NewEmailLogID(),
		SubmissionID: refs.SubmissionID,
		RuleID:       refs.RuleID,
		TemplateID:   refs.TemplateID,
		Status:       types.EmailLogPending,
		CreatedAt:    time.Now().UTC(),
	}
	if len(msg.To) > 0 {
		log.Recipient = msg.To[0]
	}

	// Log-store faults must not block delivery; a dispatch with no log
	// record still attempts its channels.
	logged := true
	if err := d.logs.CreateEmailLog(ctx, log); err != nil {
		logged = false
		d.logger.Error("failed to create email log",
			zap.String("submission_id", string(refs.SubmissionID)),
			zap.Error(err),
		)
	}

	result := d.attempt(ctx, msg)
	result.LogID = log.LogID

	if !logged {
		return result
	}

	// Exactly one terminal write, immediately after the attempt
	if result.Success {
		if err := d.logs.MarkEmailLogSent(ctx, log.LogID, result.Channel); err != nil {
			d.logger.Error("failed to mark email log sent",
				zap.String("log_id", string(log.LogID)),
				zap.Error(err),
			)
		}
	} else {
		if err := d.logs.MarkEmailLogFailed(ctx, log.LogID, result.Err.Error()); err != nil {
			d.logger.Error("failed to mark email log failed",
				zap.String("log_id", string(log.LogID)),
				zap.Error(err),
			)
		}
	}

	return result
}

// attempt walks the channel list and returns the first success or the
// collected failures.
func (d *Dispatcher) attempt(ctx context.Context, msg *Message) Result {
	if len(msg.To) == 0 {
		return Result{Err: types.ErrNoRecipient}
	}

	attemptErrs := []error{types.ErrAllChannelsFailed}
	for _, ch := range d.channels {
		if !ch.Configured() {
			d.logger.Debug("skipping unconfigured channel", zap.String("channel", ch.Name()))
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", ch.Name(), types.ErrChannelNotConfigured))
			continue
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				attemptErrs = append(attemptErrs, fmt.Errorf("rate limiter: %w", err))
				break
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := ch.Send(sendCtx, msg)
		cancel()

		if err == nil {
			metrics.EmailsSent.WithLabelValues(ch.Name()).Inc()
			d.logger.Info("email sent",
				zap.String("channel", ch.Name()),
				zap.String("to", msg.To[0]),
			)
			return Result{Success: true, Channel: ch.Name()}
		}

		metrics.ChannelErrors.WithLabelValues(ch.Name()).Inc()
		d.logger.Warn("channel send failed, trying next",
			zap.String("channel", ch.Name()),
			zap.Error(err),
		)
		attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", ch.Name(), err))
	}

	metrics.EmailFailures.Inc()
	return Result{Err: errors.Join(attemptErrs...)}
}
