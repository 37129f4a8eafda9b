package verify

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Risk increments for the staged NA certificate checklist.
const (
	naFormatPenalty   = 30
	naSizePenalty     = 20
	naCrossRefPenalty = 15
	naFlagPenalty     = 10
	naMaxSizeBytes    = 10 << 20 // 10 MB
)

var naAllowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// NADocVerifier runs the staged checklist over the non-agricultural
// land-use certificate: presence, format, size, cross-reference with
// the property valuation document, and consistency with the declared
// non-agricultural flag. An entirely absent certificate short-circuits
// to PENDING with maximal risk.
type NADocVerifier struct{}

func NewNADocVerifier() *NADocVerifier { return &NADocVerifier{} }

func (v *NADocVerifier) Facet() string { return domain.FacetNADocument }

func (v *NADocVerifier) Verify(ctx context.Context, in *Input) (*domain.VerificationReport, error) {
	doc := domain.FindDocument(in.Documents, domain.DocNADeclaration)
	if doc == nil {
		rep := report(in.App.ID, domain.FacetNADocument, domain.ReportPending, 100)
		rep.Issues = []string{"document required for property classification verification"}
		rep.Detail = &domain.NADocumentDetail{}
		return rep, nil
	}

	var score float64
	var issues []string
	detail := &domain.NADocumentDetail{
		Filename:       doc.Filename,
		FormatValid:    true,
		SizeValid:      true,
		PropertyLinked: true,
		FlagConsistent: true,
	}

	ext := strings.ToLower(filepath.Ext(doc.Filename))
	if !naAllowedExtensions[ext] {
		score += naFormatPenalty
		detail.FormatValid = false
		issues = append(issues, "certificate file format not accepted")
	}
	if doc.SizeBytes > naMaxSizeBytes {
		score += naSizePenalty
		detail.SizeValid = false
		issues = append(issues, "certificate exceeds the 10 MB size ceiling")
	}
	if domain.FindDocument(in.Documents, domain.DocPropertyVal) == nil &&
		domain.FindDocument(in.Documents, domain.DocLegalClearance) == nil {
		// Either property document anchors the certificate. Warns,
		// does not fail.
		score += naCrossRefPenalty
		detail.PropertyLinked = false
		issues = append(issues, "no property valuation or legal clearance document to cross-reference")
	}
	if !in.App.IsNonAgricultural {
		score += naFlagPenalty
		detail.FlagConsistent = false
		issues = append(issues, "certificate uploaded but application not flagged non-agricultural")
	}

	// The reported risk is the band floor for the resulting status, not
	// the raw checklist sum: a clean certificate still carries residual
	// risk, and a single soft warning prices the same as two.
	status := domain.ReportPending
	risk := score
	if risk > 100 {
		risk = 100
	}
	switch {
	case score == 0:
		status = domain.ReportVerified
		risk = 10
	case score <= 25:
		status = domain.ReportVerifiedWithNotes
		risk = 25
	case score <= 50:
		status = domain.ReportReviewNeeded
		risk = 50
	}

	rep := report(in.App.ID, domain.FacetNADocument, status, risk)
	rep.Issues = issues
	rep.Detail = detail
	return rep, nil
}
