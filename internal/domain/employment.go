package domain

// EmploymentRecord is one row of the employer reference directory,
// keyed by PAN.
type EmploymentRecord struct {
	PAN           string  `json:"pan"`
	FullName      string  `json:"fullName"`
	CompanyName   string  `json:"companyName"`
	MonthlySalary float64 `json:"monthlySalary"`
	Verified      bool    `json:"verified"`
}

// EmploymentDirectory looks up reference employment data. A nil result
// with nil error means no record exists for the PAN.
type EmploymentDirectory interface {
	Lookup(pan string) (*EmploymentRecord, error)
}
