package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/leadflow/pkg/domain"
)

// LoggingHooks logs every lifecycle event on logger.
// Contact details are never logged; completions log the score and tier only.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(ctx context.Context, e *domain.SessionEvent) {
			logger.InfoContext(ctx, "session_start", "session_id", e.SessionID, "restored", e.Restored)
		},
		OnAnswer: func(ctx context.Context, e *domain.AnswerEvent) {
			logger.DebugContext(ctx, "answer", "session_id", e.SessionID, "question_id", e.QuestionID, "value", e.Value)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "transition",
				"session_id", e.SessionID,
				"from", e.From,
				"to", e.To,
				"branch", e.Branch,
				"backwards", e.Backwards,
			)
		},
		OnComplete: func(ctx context.Context, e *domain.CompleteEvent) {
			logger.InfoContext(ctx, "complete",
				"session_id", e.SessionID,
				"score", e.Profile.Score,
				"tier", e.Profile.Tier,
				"urgency", e.Profile.Urgency,
				"verticals", e.Profile.Verticals,
			)
		},
		OnSubmit: func(ctx context.Context, e *domain.SubmitEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "submit_failed", "session_id", e.SessionID, "duration", e.Duration, "error", e.Err)
				return
			}
			logger.InfoContext(ctx, "submit", "session_id", e.SessionID, "duration", e.Duration)
		},
	}
}

// Combine fans every event out to all hook sets, in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnSessionStart = chain(out.OnSessionStart, h.OnSessionStart)
		out.OnAnswer = chain(out.OnAnswer, h.OnAnswer)
		out.OnTransition = chain(out.OnTransition, h.OnTransition)
		out.OnComplete = chain(out.OnComplete, h.OnComplete)
		out.OnSubmit = chain(out.OnSubmit, h.OnSubmit)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
