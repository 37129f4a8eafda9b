package verify

import (
	"context"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// FinancialScorer buckets the three core ratios into penalties:
// debt-to-income, loan-to-value and credit score. Zero-valued
// denominators are treated as maximal ratios, never as errors.
type FinancialScorer struct{}

func NewFinancialScorer() *FinancialScorer { return &FinancialScorer{} }

func (v *FinancialScorer) Facet() string { return domain.FacetFinancial }

func (v *FinancialScorer) Verify(ctx context.Context, in *Input) (*domain.VerificationReport, error) {
	app := in.App

	dti := app.DebtToIncome()
	ltv := app.LoanToValue()

	var dtiPenalty float64
	switch {
	case dti > 50:
		dtiPenalty = 40
	case dti > 30:
		dtiPenalty = 20
	default:
		dtiPenalty = 10
	}

	var ltvPenalty float64
	switch {
	case ltv > 80:
		ltvPenalty = 30
	case ltv > 60:
		ltvPenalty = 15
	default:
		ltvPenalty = 5
	}

	var creditPenalty float64
	switch {
	case app.CreditScore < 600:
		creditPenalty = 30
	case app.CreditScore < 750:
		creditPenalty = 15
	default:
		creditPenalty = 5
	}

	score := clamp100(dtiPenalty + ltvPenalty + creditPenalty)

	var issues []string
	if dti > 50 {
		issues = append(issues, "existing obligations exceed half of declared income")
	}
	if ltv > 80 {
		issues = append(issues, "requested loan exceeds 80% of property valuation")
	}
	if app.CreditScore < 600 {
		issues = append(issues, "credit score below lending floor")
	}

	status := domain.ReportVerified
	switch {
	case score > 70:
		status = domain.ReportHighRisk
	case score > 45:
		status = domain.ReportReviewNeeded
	}

	rep := report(app.ID, domain.FacetFinancial, status, score)
	rep.Issues = issues
	rep.Detail = &domain.FinancialDetail{
		DebtToIncome:  dti,
		LoanToValue:   ltv,
		CreditScore:   app.CreditScore,
		DTIPenalty:    dtiPenalty,
		LTVPenalty:    ltvPenalty,
		CreditPenalty: creditPenalty,
	}
	return rep, nil
}
