package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventAnswer       EventType = "answer"
	EventTransition   EventType = "transition"
	EventComplete     EventType = "complete"
	EventSubmit       EventType = "submit"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// SessionEvent is emitted when a session begins or is restored.
type SessionEvent struct {
	EventBase
	Restored bool `json:"restored"`
}

// AnswerEvent is emitted after an answer is recorded.
type AnswerEvent struct {
	EventBase
	QuestionID string   `json:"question_id"`
	Value      []string `json:"value"`
}

// TransitionEvent is emitted when the flow moves between questions or phases.
type TransitionEvent struct {
	EventBase
	From      string `json:"from"`
	To        string `json:"to"`
	Branch    bool   `json:"branch,omitempty"`
	Backwards bool   `json:"backwards,omitempty"`
}

// CompleteEvent is emitted once, when the lead profile is built.
type CompleteEvent struct {
	EventBase
	Profile *LeadProfile `json:"profile"`
}

// SubmitEvent is emitted when a lead submission finishes.
type SubmitEvent struct {
	EventBase
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnSessionStart func(context.Context, *SessionEvent)
	OnAnswer       func(context.Context, *AnswerEvent)
	OnTransition   func(context.Context, *TransitionEvent)
	OnComplete     func(context.Context, *CompleteEvent)
	OnSubmit       func(context.Context, *SubmitEvent)
}
