// Package decision turns facet reports into the final credit decision:
// weighted aggregation, policy-table pricing and the audit summary.
package decision

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Aggregator folds facet reports into a single risk score using a
// fixed weighting. Construct with the primary weights for decisions or
// the summary weights for the audit roll-up; the two must stay
// separate.
type Aggregator struct {
	weights map[string]float64
}

func NewAggregator(weights map[string]float64) *Aggregator {
	return &Aggregator{weights: weights}
}

// Aggregate computes the weighted risk score over the reports whose
// facet appears in the weighting, recording per-facet contributions.
// The result is clamped to [0,100]. A weighted facet with no report is
// an error: there is no partial decision.
func (a *Aggregator) Aggregate(reports []*domain.VerificationReport) (float64, []domain.FacetContribution, error) {
	byFacet := make(map[string]*domain.VerificationReport, len(reports))
	for _, rep := range reports {
		byFacet[rep.Facet] = rep
	}

	var score float64
	contributions := make([]domain.FacetContribution, 0, len(a.weights))
	for _, facet := range domain.Facets() {
		weight, ok := a.weights[facet]
		if !ok {
			continue
		}
		rep, ok := byFacet[facet]
		if !ok {
			return 0, nil, fmt.Errorf("no report for weighted facet %q", facet)
		}
		contribution := weight * rep.RiskScore
		score += contribution
		contributions = append(contributions, domain.FacetContribution{
			Facet:        facet,
			RiskScore:    rep.RiskScore,
			Weight:       weight,
			Contribution: contribution,
		})
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, contributions, nil
}
