package decision

import (
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// SummaryBuilder rolls the document-facing facet reports into the
// advisory verification summary. This output is audit material; it is
// never authoritative over the Maker's decision.
type SummaryBuilder struct {
	agg *Aggregator
}

func NewSummaryBuilder() *SummaryBuilder {
	return &SummaryBuilder{agg: NewAggregator(domain.SummaryWeights)}
}

// Build aggregates employment, documents and NA reports under the
// summary-only weighting.
func (b *SummaryBuilder) Build(appID string, reports []*domain.VerificationReport) (*domain.Summary, error) {
	score, contributions, err := b.agg.Aggregate(reports)
	if err != nil {
		return nil, err
	}

	facets := make(map[string]float64, len(contributions))
	var issues []string
	for _, c := range contributions {
		facets[c.Facet] = c.RiskScore
	}
	for _, rep := range reports {
		if _, weighted := domain.SummaryWeights[rep.Facet]; weighted {
			issues = append(issues, rep.Issues...)
		}
	}

	level := summaryRiskLevel(score)
	return &domain.Summary{
		ApplicationID:     appID,
		OverallRisk:       score,
		RiskLevel:         level,
		RecommendedStatus: recommendedStatus(level),
		Facets:            facets,
		Issues:            issues,
		GeneratedAt:       time.Now().UTC(),
	}, nil
}

// summaryRiskLevel uses the four-band summary scale, which is coarser
// than the decision-level scale.
func summaryRiskLevel(score float64) string {
	switch {
	case score <= 25:
		return domain.RiskVeryLow
	case score <= 50:
		return domain.RiskLow
	case score <= 75:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

func recommendedStatus(level string) string {
	switch level {
	case domain.RiskVeryLow, domain.RiskLow:
		return domain.AppStatusApproved
	case domain.RiskMedium:
		return domain.AppStatusUnderReview
	default:
		return domain.AppStatusPending
	}
}
