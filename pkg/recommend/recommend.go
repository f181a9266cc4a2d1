// Package recommend turns a lead profile into the action plan shown with the
// results: one recommendation per prioritized vertical and the follow-up steps.
package recommend

import (
	"slices"

	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/domain"
)

// Priority thresholds.
const (
	HighPriorityScore = 70
	LowPriorityScore  = 40
)

// Priority assigns the priority of every recommendation of a profile.
func Priority(score int, urgency domain.Urgency) domain.Priority {
	switch {
	case urgency == domain.UrgencyHigh && score >= HighPriorityScore:
		return domain.PriorityHigh
	case urgency == domain.UrgencyLow || score < LowPriorityScore:
		return domain.PriorityLow
	default:
		return domain.PriorityMedium
	}
}

// Synthesize builds one recommendation per profile vertical, in vertical order,
// then stable-sorts them by priority. A vertical without content is a catalog
// integrity error.
func Synthesize(c *catalog.Catalog, p *domain.LeadProfile) ([]domain.Recommendation, error) {
	priority := Priority(p.Score, p.Urgency)

	recs := make([]domain.Recommendation, 0, len(p.Verticals))
	for _, v := range p.Verticals {
		content, ok := c.Vertical(v)
		if !ok {
			return nil, domain.NewIntegrityError("vertical %q has no content", v)
		}
		recs = append(recs, domain.Recommendation{
			Vertical:        v,
			Priority:        priority,
			Title:           content.Title,
			Description:     content.Description,
			EstimatedImpact: content.EstimatedImpact,
			Services:        slices.Clone(content.Services),
		})
	}

	slices.SortStableFunc(recs, func(a, b domain.Recommendation) int {
		return a.Priority.Rank() - b.Priority.Rank()
	})
	return recs, nil
}

// Plan selects the follow-up steps for a tier and urgency. Steps accumulate:
// the full technical diagnostic always closes the list.
func Plan(c *catalog.Catalog, tier domain.Tier, urgency domain.Urgency) ([]domain.NextStep, error) {
	var kinds []domain.StepKind
	switch {
	case tier == domain.TierQualified && urgency == domain.UrgencyHigh:
		kinds = append(kinds, domain.StepImmediateSession)
	case tier == domain.TierQualified || tier == domain.TierHot:
		kinds = append(kinds, domain.StepQualificationCall)
	default:
		kinds = append(kinds, domain.StepEducationalContent)
	}
	kinds = append(kinds, domain.StepTechnicalDiagnosis)

	steps := make([]domain.NextStep, 0, len(kinds))
	for _, kind := range kinds {
		step, ok := c.NextStep(kind)
		if !ok {
			return nil, domain.NewIntegrityError("next step %q is not defined", kind)
		}
		steps = append(steps, step)
	}
	return steps, nil
}
