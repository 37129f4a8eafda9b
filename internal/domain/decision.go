package domain

import (
	"time"
)

// Decision statuses.
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// Risk levels used in decision results and summaries.
const (
	RiskVeryLow  = "VERY_LOW"
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskVeryHigh = "VERY_HIGH"
)

// LoanTerms are the sanctioned terms attached to an approved decision.
type LoanTerms struct {
	InterestRate float64 `json:"interestRate"`
	TenureYears  int     `json:"tenureYears"`
	TenureMonths int     `json:"tenureMonths"`
	EMI          float64 `json:"emi"`
}

// FacetContribution records how much one facet added to the aggregate
// risk score, for explainability.
type FacetContribution struct {
	Facet        string  `json:"facet"`
	RiskScore    float64 `json:"riskScore"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// DecisionResult is the final outcome of an evaluation run.
type DecisionResult struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"applicationId"`
	TenantID      string     `json:"tenantId"`
	Status        string     `json:"status"` // APPROVED or REJECTED
	RiskScore     float64    `json:"riskScore"`
	RiskLevel     string     `json:"riskLevel"`
	Reason        string     `json:"reason"`
	Terms         *LoanTerms `json:"terms,omitempty"`

	Contributions []FacetContribution `json:"contributions,omitempty"`
	Knockouts     []string            `json:"knockouts,omitempty"`

	Metadata  DecisionMetadata `json:"metadata"`
	CreatedAt time.Time        `json:"createdAt"`
}

// DecisionMetadata contains processing information.
type DecisionMetadata struct {
	TraceID        string `json:"traceId"`
	VerifyMs       int64  `json:"verifyMs"`
	DecisionMs     int64  `json:"decisionMs"`
	TotalMs        int64  `json:"totalMs"`
	FacetsVerified int    `json:"facetsVerified"`
	EngineVersion  string `json:"engineVersion"`
}

// AmortizationEntry is one month of a repayment schedule. DueDate is
// the installment's calendar due date, offset from the schedule start.
type AmortizationEntry struct {
	Month            int       `json:"month"`
	DueDate          time.Time `json:"dueDate"`
	EMI              float64   `json:"emi"`
	PrincipalPart    float64   `json:"principalPart"`
	InterestPart     float64   `json:"interestPart"`
	RemainingBalance float64   `json:"remainingBalance"`
}

// Summary is the document-centric verification roll-up served alongside
// the decision. It weighs only the document-facing facets and carries
// its own recommendation, independent of the final decision.
type Summary struct {
	ApplicationID     string             `json:"applicationId"`
	OverallRisk       float64            `json:"overallRisk"`
	RiskLevel         string             `json:"riskLevel"`
	RecommendedStatus string             `json:"recommendedStatus"`
	Facets            map[string]float64 `json:"facets"`
	Issues            []string           `json:"issues,omitempty"`
	GeneratedAt       time.Time          `json:"generatedAt"`
}

// BankingAnalysis is an instant debt-service snapshot included in the
// decision dossier. Advisory only.
type BankingAnalysis struct {
	Status           string  `json:"status"` // HEALTHY or MODERATE
	DebtServiceRatio float64 `json:"debtServiceRatio"`
	Recommendation   string  `json:"recommendation"` // ACCEPTABLE or REVIEW
}

// RiskLevelOf maps an aggregate risk score onto the five-band label
// used in decision results.
func RiskLevelOf(score float64) string {
	switch {
	case score <= 25:
		return RiskVeryLow
	case score <= 40:
		return RiskLow
	case score <= 60:
		return RiskMedium
	case score <= 75:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}
