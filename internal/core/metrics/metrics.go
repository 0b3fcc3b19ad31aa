// Package metrics defines prometheus instrumentation for the automation
// pipeline. Counters are package-level and registered once via Init, served
// on the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SubmissionsProcessed counts processing runs triggered per form.
	SubmissionsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "formrelay_submissions_processed_total",
			Help: "Total submissions run through the rule pipeline",
		},
	)

	// RulesMatched counts rules whose conditions evaluated true.
	RulesMatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "formrelay_rules_matched_total",
			Help: "Total rules matched across all submissions",
		},
	)

	// EmailsSent counts successful dispatches by channel.
	EmailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formrelay_emails_sent_total",
			Help: "Total emails sent, labeled by delivery channel",
		},
		[]string{"channel"},
	)

	// EmailFailures counts dispatches where every channel failed.
	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "formrelay_email_failures_total",
			Help: "Total dispatches that exhausted all delivery channels",
		},
	)

	// ChannelErrors counts per-channel send failures, including ones
	// recovered by fallback.
	ChannelErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formrelay_channel_errors_total",
			Help: "Total channel send errors, labeled by delivery channel",
		},
		[]string{"channel"},
	)

	// JobsFinished counts maintenance jobs by terminal status.
	JobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formrelay_jobs_finished_total",
			Help: "Total maintenance jobs reaching a terminal state, labeled by status",
		},
		[]string{"status"},
	)
)

// Init registers all pipeline collectors with the default registry.
// Call once at startup before serving /metrics.
func Init() {
	prometheus.MustRegister(
		SubmissionsProcessed,
		RulesMatched,
		EmailsSent,
		EmailFailures,
		ChannelErrors,
		JobsFinished,
	)
}
