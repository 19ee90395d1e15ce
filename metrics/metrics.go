package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var AIScoreRequestCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "ftc_ai_score_requests_total",
		Help: "Number of auto-score requests sent to the AI scoring provider",
	},
)

var AIScoreErrorCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "ftc_ai_score_errors_total",
		Help: "Number of failed auto-score requests",
	},
)

var AIScoreDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ftc_ai_score_duration_seconds",
		Help:    "Duration of auto-score calls to the AI scoring provider",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
	},
)

var DecisionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ftc_review_decisions_total",
	Help: "Number of final consensus decisions by outcome",
}, []string{"decision"})

var DecisionPublishErrorCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "ftc_decision_publish_errors_total",
		Help: "Number of failed decision-event publishes to Kafka",
	},
)
