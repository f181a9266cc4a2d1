package domain

import "time"

// Tier is one of four ordered qualification buckets.
type Tier string

const (
	TierCold      Tier = "cold"
	TierWarm      Tier = "warm"
	TierHot       Tier = "hot"
	TierQualified Tier = "qualified"
)

// Urgency is the respondent's declared time pressure.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether u is a known urgency bucket.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// Priority ranks a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities: high first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// LeadProfile is the read-only result of a completed session.
// Building it twice from the same session yields identical values except for CompletedAt.
type LeadProfile struct {
	SessionID string     `json:"sessionId"`
	CatalogID string     `json:"catalogId"`
	Source    string     `json:"source"`
	Contact   Contact    `json:"contact"`
	Score     int        `json:"score"`
	Tier      Tier       `json:"tier"`
	Urgency   Urgency    `json:"urgencyLevel"`
	Verticals []Vertical `json:"verticals"`
	Responses Responses  `json:"responses"`

	CompletedAt time.Time `json:"completedAt"`
}

// Recommendation is the synthesized advice for one vertical.
type Recommendation struct {
	Vertical        Vertical `json:"vertical"`
	Priority        Priority `json:"priority"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	EstimatedImpact string   `json:"estimatedImpact"`
	Services        []string `json:"services"`
}

// StepKind identifies an entry of the next-step decision table.
type StepKind string

const (
	StepImmediateSession   StepKind = "immediate_session"
	StepQualificationCall  StepKind = "qualification_call"
	StepEducationalContent StepKind = "educational_content"
	StepTechnicalDiagnosis StepKind = "technical_diagnostic"
)

// NextStep is a follow-up action. CTATarget is opaque to the engine.
type NextStep struct {
	Kind        StepKind `json:"kind" yaml:"-"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	CTALabel    string   `json:"ctaLabel" yaml:"cta_label"`
	CTATarget   string   `json:"ctaTarget" yaml:"cta_target"`
}

// Notice is a non-blocking, user-visible warning with an optional fallback action.
type Notice struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	FallbackURL string `json:"fallbackUrl,omitempty"`
}

const (
	NoticeSnapshotFailed   = "snapshot_failed"
	NoticeSubmissionFailed = "submission_failed"
	NoticeReportFailed     = "report_failed"
)

// LeadRecord is what a lead sink persists for a completed session.
type LeadRecord struct {
	Profile         LeadProfile      `json:"profile"`
	Recommendations []Recommendation `json:"recommendations"`
	NextSteps       []NextStep       `json:"nextSteps"`
}

// Report is the payload handed to a report sender.
type Report struct {
	To       Contact    `json:"to"`
	Subject  string     `json:"subject"`
	Markdown string     `json:"markdown"`
	HTML     string     `json:"html"`
	Lead     LeadRecord `json:"lead"`
}
