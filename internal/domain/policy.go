package domain

// Facet weights for the primary decision aggregate. Keys are facet
// names; values sum to 1.0.
var PrimaryWeights = map[string]float64{
	FacetEmployment: 0.25,
	FacetDocuments:  0.15,
	FacetFinancial:  0.35,
	FacetFraud:      0.15,
	FacetAI:         0.10,
}

// Facet weights for the document-verification summary. The summary
// deliberately weighs only the document-facing facets, so its score
// diverges from the decision aggregate by design of the product, and
// the two must never be merged.
var SummaryWeights = map[string]float64{
	FacetEmployment: 0.3,
	FacetDocuments:  0.4,
	FacetNADocument: 0.3,
}

// RateTier maps an aggregate risk band onto sanctioned loan terms.
// MaxScore is inclusive; tiers are matched in ascending order.
type RateTier struct {
	MaxScore     float64
	InterestRate float64
	TenureYears  int
}

// RateTable is the standard pricing ladder. Scores above the last tier
// are rejected outright.
var RateTable = []RateTier{
	{MaxScore: 30, InterestRate: 8.0, TenureYears: 20},
	{MaxScore: 50, InterestRate: 10.5, TenureYears: 15},
	{MaxScore: 70, InterestRate: 12.5, TenureYears: 10},
}

// RejectionThreshold is the aggregate score above which no tier applies.
const RejectionThreshold = 70

// KnockoutRule is a hard-fail condition expressed in CEL over the
// application features and facet scores. A matching knockout forces
// rejection regardless of the aggregate score.
type KnockoutRule struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Expr   string `json:"expr"`
	Reason string `json:"reason"`
}

// DefaultKnockoutRules are the built-in hard-fail conditions.
func DefaultKnockoutRules() []KnockoutRule {
	return []KnockoutRule{
		{
			ID:     "KO-FRAUD",
			Name:   "fraud-score-ceiling",
			Expr:   `fraud_risk >= 90.0`,
			Reason: "fraud indicators exceed the hard ceiling",
		},
		{
			ID:     "KO-EMPLOYMENT",
			Name:   "employment-verification-failed",
			Expr:   `employment_status == "FAILED"`,
			Reason: "employment verification failed outright",
		},
		{
			ID:     "KO-OVERLEVERAGED",
			Name:   "loan-exceeds-collateral",
			Expr:   `property_valuation > 0.0 && loan_amount > property_valuation * 1.5`,
			Reason: "requested loan exceeds 150% of the property valuation",
		},
	}
}
