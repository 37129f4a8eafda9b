package verify

import (
	"context"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Per-type risk contributions for the document completeness check.
const (
	docPresentRisk = 10
	docMissingRisk = 100
)

// DocumentVerifier checks the application's document set for
// completeness across the required types. Score is the mean of the
// per-type contributions.
type DocumentVerifier struct{}

func NewDocumentVerifier() *DocumentVerifier { return &DocumentVerifier{} }

func (v *DocumentVerifier) Facet() string { return domain.FacetDocuments }

func (v *DocumentVerifier) Verify(ctx context.Context, in *Input) (*domain.VerificationReport, error) {
	required := domain.RequiredDocumentTypes()

	var present, missing []string
	var total float64
	var issues []string
	for _, docType := range required {
		if domain.FindDocument(in.Documents, docType) != nil {
			present = append(present, docType)
			total += docPresentRisk
			continue
		}
		missing = append(missing, docType)
		total += docMissingRisk
		issues = append(issues, fmt.Sprintf("required document missing: %s", docType))
	}
	score := total / float64(len(required))

	status := domain.ReportPending
	switch {
	case len(missing) == 0:
		status = domain.ReportVerified
	case float64(len(present))/float64(len(required)) >= 0.7:
		status = domain.ReportVerifiedWithNotes
	}

	rep := report(in.App.ID, domain.FacetDocuments, status, score)
	rep.Issues = issues
	rep.Detail = &domain.DocumentsDetail{Present: present, Missing: missing}
	return rep, nil
}
