package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType represents the type of an identity document
type DocumentType string

const (
	DocumentPassport       DocumentType = "passport"
	DocumentDriversLicense DocumentType = "drivers_license"
	DocumentNationalID     DocumentType = "national_id"
	DocumentSSN            DocumentType = "ssn" // US Social Security Number
	DocumentSIN            DocumentType = "sin" // Canadian Social Insurance Number
	DocumentBVN            DocumentType = "bvn" // Nigerian Bank Verification Number
	DocumentTaxID          DocumentType = "tax_id"
)

// IdentityDocument is a typed document whose Verified flag is owned by an
// external verification collaborator.
type IdentityDocument struct {
	Type           DocumentType `json:"type"`
	Number         string       `json:"number"`
	IssuingCountry string       `json:"issuing_country"`
	IssueDate      *time.Time   `json:"issue_date,omitempty"`
	ExpiryDate     *time.Time   `json:"expiry_date,omitempty"`
	Verified       bool         `json:"verified"`
}

// IsExpired reports whether the document has an expiry date before now.
func (d IdentityDocument) IsExpired(now time.Time) bool {
	return d.ExpiryDate != nil && !d.ExpiryDate.After(now)
}

// Address is a postal address
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// User holds the identity attributes read by the compliance engine.
// It is owned by identity management and never mutated here.
type User struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	FirstName          string             `json:"first_name"`
	LastName           string             `json:"last_name"`
	DateOfBirth        *time.Time         `json:"date_of_birth,omitempty"`
	Nationality        string             `json:"nationality,omitempty"`
	CountryOfResidence string             `json:"country_of_residence,omitempty"`
	Address            *Address           `json:"address,omitempty"`
	PhoneNumber        string             `json:"phone_number,omitempty"`
	Documents          []IdentityDocument `json:"documents,omitempty"`
	SourceOfFunds      string             `json:"source_of_funds,omitempty"`
	Occupation         string             `json:"occupation,omitempty"`
	Employer           string             `json:"employer,omitempty"`
	AnnualIncome       *decimal.Decimal   `json:"annual_income,omitempty"`
	PoliticallyExposed bool               `json:"politically_exposed"`
	IsBusinessOwner    bool               `json:"is_business_owner"`
}

// FullName returns "first last" with surrounding space trimmed
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Document returns the first document of the given type
func (u User) Document(t DocumentType) (IdentityDocument, bool) {
	for _, d := range u.Documents {
		if d.Type == t {
			return d, true
		}
	}
	return IdentityDocument{}, false
}
