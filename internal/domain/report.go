package domain

import (
	"time"
)

// Verification facets. Every evaluation produces exactly one report per
// facet, in this canonical order.
const (
	FacetEmployment = "employment"
	FacetDocuments  = "documents"
	FacetNADocument = "na_document"
	FacetFraud      = "fraud"
	FacetFinancial  = "financial"
	FacetAI         = "ai_prediction"
)

// Facets returns the canonical facet ordering used for aggregation and
// report listings.
func Facets() []string {
	return []string{
		FacetEmployment,
		FacetDocuments,
		FacetNADocument,
		FacetFraud,
		FacetFinancial,
		FacetAI,
	}
}

// Verification report statuses.
const (
	ReportVerified          = "VERIFIED"
	ReportVerifiedWithNotes = "VERIFIED_WITH_NOTES"
	ReportUnderReview       = "UNDER_REVIEW"
	ReportReviewNeeded      = "REVIEW_NEEDED"
	ReportHighRisk          = "HIGH_RISK"
	ReportPending           = "PENDING"
	ReportFailed            = "FAILED"
	ReportError             = "ERROR"
)

// VerificationReport is the outcome of a single facet check. RiskScore
// is always in [0,100]; higher is riskier. A facet that panics or fails
// internally reports ERROR with score 100 rather than aborting the run.
type VerificationReport struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	Facet         string    `json:"facet"`
	Status        string    `json:"status"`
	RiskScore     float64   `json:"riskScore"`
	Issues        []string  `json:"issues,omitempty"`
	Detail        any       `json:"detail,omitempty"`
	ProcessMs     int64     `json:"processMs,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// EmploymentDetail carries the per-field outcome of an employment check
// against the reference directory, or the declared-data fallback.
type EmploymentDetail struct {
	Source        string `json:"source"` // "directory" or "declared"
	NameMatch     bool   `json:"nameMatch"`
	CompanyMatch  bool   `json:"companyMatch"`
	SalaryMatch   bool   `json:"salaryMatch"`
	DirectoryHit  bool   `json:"directoryHit"`
	CompanyListed bool   `json:"companyListed,omitempty"`
}

// DocumentsDetail reports presence per required document type.
type DocumentsDetail struct {
	Present []string `json:"present"`
	Missing []string `json:"missing"`
}

// NADocumentDetail carries the non-agricultural certificate checks.
type NADocumentDetail struct {
	Filename       string `json:"filename,omitempty"`
	FormatValid    bool   `json:"formatValid"`
	SizeValid      bool   `json:"sizeValid"`
	PropertyLinked bool   `json:"propertyLinked"`
	FlagConsistent bool   `json:"flagConsistent"`
}

// FraudDetail lists the triggered anomaly patterns with their weights.
type FraudDetail struct {
	Patterns []FraudPattern `json:"patterns,omitempty"`
}

// FraudPattern is one triggered anomaly heuristic.
type FraudPattern struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// FinancialDetail carries the three ratio components and their
// individual penalties.
type FinancialDetail struct {
	DebtToIncome  float64 `json:"debtToIncome"`
	LoanToValue   float64 `json:"loanToValue"`
	CreditScore   int     `json:"creditScore"`
	DTIPenalty    float64 `json:"dtiPenalty"`
	LTVPenalty    float64 `json:"ltvPenalty"`
	CreditPenalty float64 `json:"creditPenalty"`
}

// AIDetail carries the model estimate behind the ai_prediction facet.
type AIDetail struct {
	Recommendation string   `json:"recommendation"` // APPROVE, REVIEW or REJECT
	Confidence     float64  `json:"confidence"`
	KeyFactors     []string `json:"keyFactors,omitempty"`
	Enhanced       bool     `json:"enhanced"`
}
