package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Chat turns, labelled by how the reply was produced.
	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadpilot",
			Name:      "chat_turns_total",
			Help:      "Total chat turns processed",
		},
		[]string{"outcome"}, // ok, fallback
	)

	// Turn duration histogram
	ChatTurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "leadpilot",
			Name:      "chat_turn_duration_seconds",
			Help:      "Time spent processing one chat turn",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	LeadGradeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadpilot",
			Name:      "lead_grade_total",
			Help:      "Score computations by resulting grade",
		},
		[]string{"grade"},
	)

	HotLeadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "leadpilot",
			Name:      "hot_leads_total",
			Help:      "Leads that escalated into the HOT grade",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadpilot",
			Name:      "notifications_total",
			Help:      "Hot lead notification deliveries",
		},
		[]string{"channel", "status"},
	)

	LLMFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadpilot",
			Name:      "llm_failures_total",
			Help:      "Failed calls to the language model",
		},
		[]string{"call"}, // generate, extract, embed
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "leadpilot",
			Name:      "chat_rate_limited_total",
			Help:      "Chat requests rejected by the rate limiter",
		},
	)
)

// RecordTurn records a processed chat turn.
func RecordTurn(fallback bool, durationSec float64) {
	outcome := "ok"
	if fallback {
		outcome = "fallback"
	}
	ChatTurnsTotal.WithLabelValues(outcome).Inc()
	ChatTurnDuration.Observe(durationSec)
}

// RecordScore records a score computation and, when it escalated, a hot lead.
func RecordScore(grade string, becameHot bool) {
	LeadGradeTotal.WithLabelValues(grade).Inc()
	if becameHot {
		HotLeadsTotal.Inc()
	}
}

// RecordNotification records one delivery outcome for a channel.
func RecordNotification(channel string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	NotificationsTotal.WithLabelValues(channel, status).Inc()
}

// RecordLLMFailure records a failed model call.
func RecordLLMFailure(call string) {
	LLMFailuresTotal.WithLabelValues(call).Inc()
}

// RecordRateLimited records a rejected chat request.
func RecordRateLimited() {
	RateLimitedTotal.Inc()
}
