// Package verify implements the facet verifiers that feed the risk
// aggregator. Each verifier is a pure function over the application and
// its documents; verifiers share no state and may run concurrently.
package verify

import (
	"context"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Input is the read-only snapshot a verifier works against.
type Input struct {
	App       *domain.Application
	Documents []domain.Document
}

// Verifier produces a report for exactly one facet. Implementations
// must not mutate the input. An error return is mapped by the engine
// to an ERROR report with maximal risk; it never aborts the run.
type Verifier interface {
	Facet() string
	Verify(ctx context.Context, in *Input) (*domain.VerificationReport, error)
}

// clamp100 bounds a risk score to [0,100].
func clamp100(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// report is a convenience constructor; CreatedAt and IDs are stamped by
// the engine after the join.
func report(appID, facet, status string, score float64) *domain.VerificationReport {
	return &domain.VerificationReport{
		ApplicationID: appID,
		Facet:         facet,
		Status:        status,
		RiskScore:     clamp100(score),
	}
}
