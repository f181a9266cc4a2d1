// Package scoring reduces a response set into the numbers that qualify a lead:
// the 0-100 fitness score, its tier, the urgency bucket and the ranked verticals.
//
// Every function here is pure: the same catalog and responses always produce
// the same result.
package scoring

import (
	"math"
	"slices"

	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/domain"
)

// Tier thresholds, inclusive on the lower edge.
const (
	QualifiedThreshold = 80
	HotThreshold       = 60
	WarmThreshold      = 40
)

// DefaultTopVerticals is the number of verticals kept in a profile.
const DefaultTopVerticals = 5

// selection is one selected option resolved against the catalog.
type selection struct {
	question *domain.Question
	option   *domain.Option
}

// walk resolves every selected option in response order.
func walk(c *catalog.Catalog, responses domain.Responses, fn func(selection)) error {
	for _, r := range responses {
		q, ok := c.Question(r.QuestionID)
		if !ok {
			return domain.NewIntegrityError("response references unknown question %q", r.QuestionID)
		}
		for _, id := range r.Value {
			opt, ok := q.Option(id)
			if !ok {
				return domain.NewIntegrityError("response to %q references unknown option %q", q.ID, id)
			}
			fn(selection{question: q, option: opt})
		}
	}
	return nil
}

// Score returns round(100 * earned / possible), where each selected option
// earns its weight out of a fixed MaxOptionWeight. Unselected options never
// count toward the denominator. It is 0 when nothing is answered.
func Score(c *catalog.Catalog, responses domain.Responses) (int, error) {
	var earned, possible int
	err := walk(c, responses, func(s selection) {
		earned += s.option.Weight
		possible += domain.MaxOptionWeight
	})
	if err != nil {
		return 0, err
	}
	if possible == 0 {
		return 0, nil
	}
	return int(math.Round(100 * float64(earned) / float64(possible))), nil
}

// Classify maps a score to its tier.
func Classify(score int) domain.Tier {
	switch {
	case score >= QualifiedThreshold:
		return domain.TierQualified
	case score >= HotThreshold:
		return domain.TierHot
	case score >= WarmThreshold:
		return domain.TierWarm
	default:
		return domain.TierCold
	}
}

// Urgency returns the urgency of the last answered urgency-bearing option in
// catalog order, or UrgencyLow when none was answered.
func Urgency(c *catalog.Catalog, responses domain.Responses) (domain.Urgency, error) {
	urgency := domain.UrgencyLow
	err := walk(c, responses, func(s selection) {
		if s.option.Urgency != "" {
			urgency = s.option.Urgency
		}
	})
	return urgency, err
}

type verticalTotal struct {
	vertical  domain.Vertical
	weight    int
	firstSeen int
}

// TopVerticals ranks verticals by accumulated option weight, descending.
// Ties go to the vertical first seen in response order (options in selection
// order, verticals in declaration order). Verticals with zero weight are
// dropped, so fewer than n may be returned. n <= 0 means DefaultTopVerticals.
func TopVerticals(c *catalog.Catalog, responses domain.Responses, n int) ([]domain.Vertical, error) {
	if n <= 0 {
		n = DefaultTopVerticals
	}

	index := make(map[domain.Vertical]int)
	var totals []verticalTotal
	err := walk(c, responses, func(s selection) {
		for _, v := range s.option.Verticals {
			i, ok := index[v]
			if !ok {
				i = len(totals)
				index[v] = i
				totals = append(totals, verticalTotal{vertical: v, firstSeen: i})
			}
			totals[i].weight += s.option.Weight
		}
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(totals, compareVerticals)

	out := make([]domain.Vertical, 0, n)
	for _, t := range totals {
		if len(out) == n || t.weight == 0 {
			break
		}
		out = append(out, t.vertical)
	}
	return out, nil
}

// compareVerticals orders by weight descending, then by first-seen ascending.
func compareVerticals(a, b verticalTotal) int {
	if a.weight != b.weight {
		return b.weight - a.weight
	}
	return a.firstSeen - b.firstSeen
}
