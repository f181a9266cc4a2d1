package observability

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/leadflow/pkg/domain"
)

// Metrics holds the Prometheus collectors fed by the engine hooks.
type Metrics struct {
	SessionsStarted *prometheus.CounterVec
	Answers         *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	Completions     *prometheus.CounterVec
	Scores          prometheus.Histogram
	SubmitDuration  prometheus.Histogram
	SubmitFailures  prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
// Registering twice on the same registry panics, as with prometheus.MustRegister.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadflow",
			Name:      "sessions_started_total",
			Help:      "Sessions started or restored.",
		}, []string{"restored"}),
		Answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadflow",
			Name:      "answers_total",
			Help:      "Recorded answers per question.",
		}, []string{"question_id"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadflow",
			Name:      "transitions_total",
			Help:      "Flow transitions by direction.",
		}, []string{"direction"}),
		Completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadflow",
			Name:      "completions_total",
			Help:      "Completed questionnaires by tier and urgency.",
		}, []string{"tier", "urgency"}),
		Scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "leadflow",
			Name:      "score",
			Help:      "Distribution of lead scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		SubmitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "leadflow",
			Name:      "submit_duration_seconds",
			Help:      "Duration of lead submissions.",
			Buckets:   prometheus.DefBuckets,
		}),
		SubmitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadflow",
			Name:      "submit_failures_total",
			Help:      "Lead submissions that failed.",
		}),
	}
	reg.MustRegister(
		m.SessionsStarted, m.Answers, m.Transitions, m.Completions,
		m.Scores, m.SubmitDuration, m.SubmitFailures,
	)
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(_ context.Context, e *domain.SessionEvent) {
			m.SessionsStarted.WithLabelValues(strconv.FormatBool(e.Restored)).Inc()
		},
		OnAnswer: func(_ context.Context, e *domain.AnswerEvent) {
			m.Answers.WithLabelValues(e.QuestionID).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(direction(e)).Inc()
		},
		OnComplete: func(_ context.Context, e *domain.CompleteEvent) {
			m.Completions.WithLabelValues(string(e.Profile.Tier), string(e.Profile.Urgency)).Inc()
			m.Scores.Observe(float64(e.Profile.Score))
		},
		OnSubmit: func(_ context.Context, e *domain.SubmitEvent) {
			m.SubmitDuration.Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.SubmitFailures.Inc()
			}
		},
	}
}

func direction(e *domain.TransitionEvent) string {
	switch {
	case e.Backwards:
		return "back"
	case e.Branch:
		return "branch"
	default:
		return "forward"
	}
}
