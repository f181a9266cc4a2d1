package scoring

import (
	"time"

	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/domain"
)

// BuildProfile derives the lead profile of a session. It does not check the
// session phase; callers build it at the terminal transition. Two calls on the
// same session differ only in CompletedAt.
func BuildProfile(c *catalog.Catalog, s *domain.Session, source string, completedAt time.Time) (*domain.LeadProfile, error) {
	score, err := Score(c, s.Responses)
	if err != nil {
		return nil, err
	}
	urgency, err := Urgency(c, s.Responses)
	if err != nil {
		return nil, err
	}
	verticals, err := TopVerticals(c, s.Responses, DefaultTopVerticals)
	if err != nil {
		return nil, err
	}
	if source == "" {
		source = c.Source()
	}

	return &domain.LeadProfile{
		SessionID:   s.ID,
		CatalogID:   c.ID(),
		Source:      source,
		Contact:     s.Contact,
		Score:       score,
		Tier:        Classify(score),
		Urgency:     urgency,
		Verticals:   verticals,
		Responses:   s.Responses.Clone(),
		CompletedAt: completedAt,
	}, nil
}
