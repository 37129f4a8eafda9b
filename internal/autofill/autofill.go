// Package autofill parses free-form "key: value" application forms
// into structured fields. Applicants paste or upload text exported from
// arbitrary tools, so field labels and separators vary widely.
package autofill

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// fieldSynonyms maps each canonical field to the label variants seen in
// uploaded forms. Labels are matched exactly, or as a word prefix of the
// key, after lowercasing and stripping punctuation.
var fieldSynonyms = map[string][]string{
	"first_name":       {"first name", "firstname", "fname", "given name"},
	"last_name":        {"last name", "lastname", "lname", "surname", "family name"},
	"email":            {"email", "email address", "email id"},
	"aadhaar":          {"aadhaar", "aadhaar number", "aadhar", "aadhar number", "uid"},
	"pan":              {"pan", "pan number", "pan card", "permanent account number"},
	"residence_status": {"residence status", "residency status", "living status", "current residence status"},
	"other_properties": {"other properties", "own other properties", "additional properties", "do you own any other properties"},
	"salary":           {"salary", "monthly salary", "income", "monthly income", "earnings", "monthly salary (inr)"},
	"company":          {"company", "company name", "employer", "organization", "employer name"},
	"existing_emi":     {"existing loan", "current loan", "existing emi", "current emi", "existing emi (if any, inr)"},
	"credit_score":     {"cibil", "cibil score", "credit score", "credit rating"},
	"loan_amount":      {"loan amount required", "requested loan", "loan needed", "required amount", "loan amount requested (inr)", "loan amount"},
	"property_value":   {"property valuation", "property value", "property worth", "property valuation (inr)"},
	"non_agricultural": {"non agricultural", "property type", "agricultural", "is the property non-agricultural"},
	"mortgage":         {"mortgage", "existing mortgage", "current mortgage", "is there an existing mortgage on this property"},
}

// canonicalOrder breaks ties between equally long labels
// deterministically.
var canonicalOrder = []string{
	"first_name", "last_name", "email", "aadhaar", "pan",
	"residence_status", "other_properties",
	"salary", "company",
	"loan_amount", "property_value", "existing_emi",
	"credit_score", "non_agricultural", "mortgage",
}

type fieldLabel struct {
	label string
	field string
}

// fieldLabels is the normalized label index, longest label first so the
// most specific variant wins ("loan amount required" before "loan
// amount", and "company name" never falls through to a shorter label).
var fieldLabels = buildFieldLabels()

func buildFieldLabels() []fieldLabel {
	rank := make(map[string]int, len(canonicalOrder))
	for i, f := range canonicalOrder {
		rank[f] = i
	}

	var labels []fieldLabel
	for field, variants := range fieldSynonyms {
		for _, v := range variants {
			labels = append(labels, fieldLabel{label: normalizeKey(v), field: field})
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		if len(labels[i].label) != len(labels[j].label) {
			return len(labels[i].label) > len(labels[j].label)
		}
		if rank[labels[i].field] != rank[labels[j].field] {
			return rank[labels[i].field] < rank[labels[j].field]
		}
		return labels[i].label < labels[j].label
	})
	return labels
}

var (
	separators  = []string{":", "-", "|", "="}
	nonAlphaNum = regexp.MustCompile(`[^a-z0-9\s]`)
	nonNumeric  = regexp.MustCompile(`[^\d.]`)
)

// sectionHeaders are skipped entirely; they carry no field data. A
// line is a header only when it equals one of these after trimming a
// trailing colon, so "Property Valuation (INR): ..." is still data.
var sectionHeaders = []string{
	"applicant details", "financial", "financial information",
	"property", "property details", "loan details",
}

// Fields is the parsed, typed form content. Pointer-typed entries
// distinguish "absent" from zero values.
type Fields struct {
	FirstName         string   `json:"firstName,omitempty"`
	LastName          string   `json:"lastName,omitempty"`
	Email             string   `json:"email,omitempty"`
	PAN               string   `json:"pan,omitempty"`
	Aadhaar           string   `json:"aadhaar,omitempty"`
	CompanyName       string   `json:"companyName,omitempty"`
	MonthlySalary     *float64 `json:"monthlySalary,omitempty"`
	ExistingEMI       *float64 `json:"existingEmi,omitempty"`
	LoanAmount        *float64 `json:"loanAmount,omitempty"`
	PropertyValuation *float64 `json:"propertyValuation,omitempty"`
	CreditScore       *int     `json:"creditScore,omitempty"`
	IsRented          *bool    `json:"isRented,omitempty"`
	HasOwnProperty    *bool    `json:"hasOwnProperty,omitempty"`
	IsNonAgricultural *bool    `json:"isNonAgricultural,omitempty"`
	HasMortgage       *bool    `json:"hasExistingMortgage,omitempty"`

	// Matched counts the lines that mapped onto a known field.
	Matched int `json:"matched"`
}

// ParseText extracts structured fields from a pasted form. Lines that
// map to no known field are ignored; a fully unrecognized input yields
// an empty Fields with Matched == 0, never an error.
func ParseText(content string) *Fields {
	f := &Fields{}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isSectionHeader(line) {
			continue
		}

		key, value, ok := splitLine(line)
		if !ok {
			continue
		}

		field := mapFieldName(key)
		if field == "" {
			continue
		}
		if f.assign(field, value) {
			f.Matched++
		}
	}

	return f
}

// Apply copies parsed fields onto an application, leaving fields the
// form did not mention untouched.
func (f *Fields) Apply(app *domain.Application) {
	if f.FirstName != "" {
		app.FirstName = f.FirstName
	}
	if f.LastName != "" {
		app.LastName = f.LastName
	}
	if f.Email != "" {
		app.Email = f.Email
	}
	if f.PAN != "" {
		app.PAN = f.PAN
	}
	if f.Aadhaar != "" {
		app.Aadhaar = f.Aadhaar
	}
	if f.CompanyName != "" {
		app.CompanyName = f.CompanyName
	}
	if f.MonthlySalary != nil {
		app.MonthlySalary = *f.MonthlySalary
	}
	if f.ExistingEMI != nil {
		app.ExistingEMI = *f.ExistingEMI
	}
	if f.LoanAmount != nil {
		app.LoanAmount = *f.LoanAmount
	}
	if f.PropertyValuation != nil {
		app.PropertyValuation = *f.PropertyValuation
	}
	if f.CreditScore != nil {
		app.CreditScore = *f.CreditScore
	}
	if f.IsRented != nil {
		app.IsRented = *f.IsRented
	}
	if f.HasOwnProperty != nil {
		app.HasOwnProperty = *f.HasOwnProperty
	}
	if f.IsNonAgricultural != nil {
		app.IsNonAgricultural = *f.IsNonAgricultural
	}
	if f.HasMortgage != nil {
		app.HasExistingMortgage = *f.HasMortgage
	}
}

func isSectionHeader(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ":")))
	for _, header := range sectionHeaders {
		if lower == header {
			return true
		}
	}
	return false
}

// splitLine tries separator types in priority order, so a colon-keyed
// line with a hyphenated label ("non-agricultural: yes") splits at the
// colon, not the hyphen.
func splitLine(line string) (key, value string, ok bool) {
	for _, sep := range separators {
		if idx := strings.Index(line, sep); idx != -1 {
			return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
		}
	}
	return "", "", false
}

func normalizeKey(s string) string {
	s = strings.ToLower(s)
	return strings.TrimSpace(nonAlphaNum.ReplaceAllString(s, ""))
}

// mapFieldName resolves a normalized key against the label index. A
// label matches only as the whole key or as a leading word sequence, so
// "company name" cannot resolve through a shorter label like "pan".
func mapFieldName(key string) string {
	key = normalizeKey(key)
	if key == "" {
		return ""
	}

	for _, fl := range fieldLabels {
		if key == fl.label || strings.HasPrefix(key, fl.label+" ") {
			return fl.field
		}
	}
	return ""
}

func (f *Fields) assign(field, value string) bool {
	switch field {
	case "first_name":
		f.FirstName = value
	case "last_name":
		f.LastName = value
	case "email":
		f.Email = value
	case "pan":
		f.PAN = strings.ToUpper(value)
	case "aadhaar":
		f.Aadhaar = value
	case "company":
		f.CompanyName = value
	case "salary":
		f.MonthlySalary = parseAmount(value)
	case "existing_emi":
		f.ExistingEMI = parseAmount(value)
	case "loan_amount":
		f.LoanAmount = parseAmount(value)
	case "property_value":
		f.PropertyValuation = parseAmount(value)
	case "credit_score":
		if n := parseAmount(value); n != nil {
			score := int(*n)
			f.CreditScore = &score
		}
	case "residence_status":
		rented := strings.Contains(strings.ToLower(value), "rent")
		f.IsRented = &rented
	case "other_properties":
		f.HasOwnProperty = parseBool(value)
	case "non_agricultural":
		f.IsNonAgricultural = parseBool(value)
	case "mortgage":
		f.HasMortgage = parseBool(value)
	default:
		return false
	}
	return true
}

// parseAmount strips currency symbols, commas and units before parsing.
func parseAmount(text string) *float64 {
	cleaned := nonNumeric.ReplaceAllString(text, "")
	if cleaned == "" {
		return nil
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &n
}

func parseBool(text string) *bool {
	lower := strings.ToLower(text)
	for _, word := range []string{"yes", "true", "1", "have", "own"} {
		if strings.Contains(lower, word) {
			v := true
			return &v
		}
	}
	for _, word := range []string{"no", "false", "0", "none", "don't"} {
		if strings.Contains(lower, word) {
			v := false
			return &v
		}
	}
	return nil
}
