package domain

import (
	"time"
)

// Application represents a loan application under evaluation.
type Application struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Applicant identity
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	PAN       string `json:"pan"`
	Aadhaar   string `json:"aadhaar"`

	// Employment
	CompanyName string `json:"companyName,omitempty"`

	// Financials
	MonthlySalary     float64 `json:"monthlySalary"`
	ExistingEMI       float64 `json:"existingEmi"`
	LoanAmount        float64 `json:"loanAmount"`
	PropertyValuation float64 `json:"propertyValuation"`
	CreditScore       int     `json:"creditScore"`

	// Property flags
	IsRented            bool `json:"isRented"`
	HasOwnProperty      bool `json:"hasOwnProperty"`
	IsNonAgricultural   bool `json:"isNonAgricultural"`
	HasExistingMortgage bool `json:"hasExistingMortgage"`

	// Lifecycle
	Status string `json:"status"`

	// Assigned terms, populated by the decision maker on approval.
	InterestRate float64 `json:"interestRate,omitempty"`
	TenureYears  int     `json:"tenureYears,omitempty"`
	EMIAmount    float64 `json:"emiAmount,omitempty"`

	// Temporal
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Application lifecycle statuses.
const (
	AppStatusPending     = "PENDING"
	AppStatusApproved    = "APPROVED"
	AppStatusRejected    = "REJECTED"
	AppStatusUnderReview = "UNDER_REVIEW"
)

// FullName returns the applicant's declared name as a single string.
func (a *Application) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// DebtToIncome returns the existing debt-to-income ratio as a percentage.
// A zero salary is treated as maximal ratio, not a division error.
func (a *Application) DebtToIncome() float64 {
	if a.MonthlySalary <= 0 {
		return 100
	}
	return a.ExistingEMI / a.MonthlySalary * 100
}

// LoanToValue returns the loan-to-value ratio as a percentage.
// A zero valuation is treated as maximal ratio.
func (a *Application) LoanToValue() float64 {
	if a.PropertyValuation <= 0 {
		return 100
	}
	return a.LoanAmount / a.PropertyValuation * 100
}

// Document is a supporting document attached to exactly one application.
// Documents are immutable once stored; re-verification produces a new
// report, never a document mutation.
type Document struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	Type          string    `json:"type"`
	Filename      string    `json:"filename"`
	ContentRef    string    `json:"contentRef"`
	SizeBytes     int64     `json:"sizeBytes"`
	UploadedAt    time.Time `json:"uploadedAt"`
}

// Document types required for a complete application.
const (
	DocBankStatements = "BANK_STATEMENTS"
	DocSalarySlips    = "SALARY_SLIPS"
	DocKYC            = "KYC_DOCS"
	DocPropertyVal    = "PROPERTY_VALUATION"
	DocLegalClearance = "LEGAL_CLEARANCE"
	DocNADeclaration  = "NON_AGRICULTURAL_DECLARATION"
)

// RequiredDocumentTypes returns the full set of document types the
// document verifier expects, in stable order.
func RequiredDocumentTypes() []string {
	return []string{
		DocBankStatements,
		DocSalarySlips,
		DocKYC,
		DocPropertyVal,
		DocLegalClearance,
		DocNADeclaration,
	}
}

// FindDocument returns the first document of the given type, or nil.
func FindDocument(docs []Document, docType string) *Document {
	for i := range docs {
		if docs[i].Type == docType {
			return &docs[i]
		}
	}
	return nil
}
