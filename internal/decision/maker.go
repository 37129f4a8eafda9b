package decision

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/finance"
)

// Maker maps an aggregate risk score onto the rate table. Each call is
// a single deterministic function of its inputs; there is no state
// carried between invocations.
type Maker struct {
	table     []domain.RateTier
	threshold float64
}

func NewMaker(table []domain.RateTier, rejectionThreshold float64) *Maker {
	return &Maker{table: table, threshold: rejectionThreshold}
}

// NewStandardMaker uses the built-in pricing ladder.
func NewStandardMaker() *Maker {
	return NewMaker(domain.RateTable, domain.RejectionThreshold)
}

// Decide prices the application for the given aggregate score, or
// rejects it. Knockout reasons force rejection regardless of score.
func (m *Maker) Decide(app *domain.Application, score float64, knockouts []string) *domain.DecisionResult {
	result := &domain.DecisionResult{
		ApplicationID: app.ID,
		TenantID:      app.TenantID,
		RiskScore:     score,
		RiskLevel:     domain.RiskLevelOf(score),
		Knockouts:     knockouts,
	}

	if len(knockouts) > 0 {
		result.Status = domain.DecisionRejected
		result.Reason = fmt.Sprintf("application rejected at %.1f%% risk score: %s", score, knockouts[0])
		return result
	}

	for _, tier := range m.table {
		if score <= tier.MaxScore {
			months := tier.TenureYears * 12
			emi := finance.EMI(app.LoanAmount, tier.InterestRate, months)
			result.Status = domain.DecisionApproved
			result.Terms = &domain.LoanTerms{
				InterestRate: tier.InterestRate,
				TenureYears:  tier.TenureYears,
				TenureMonths: months,
				EMI:          emi,
			}
			result.Reason = fmt.Sprintf(
				"application approved at %.1f%% risk score: %.2f%% interest over %d years",
				score, tier.InterestRate, tier.TenureYears)
			return result
		}
	}

	result.Status = domain.DecisionRejected
	result.Reason = fmt.Sprintf("application rejected at %.1f%% risk score: exceeds lending threshold", score)
	return result
}
