package aamva

import (
	"strings"
	"time"
)

// Element codes read from the payload
const (
	ElementLastName      = "DCS"
	ElementFirstName     = "DAC"
	ElementMiddleName    = "DAD"
	ElementFullName      = "DCT"
	ElementDateOfBirth   = "DBB"
	ElementExpiryDate    = "DBA"
	ElementIssueDate     = "DBD"
	ElementStreet        = "DAG"
	ElementCity          = "DAI"
	ElementState         = "DAJ"
	ElementPostalCode    = "DAK"
	ElementLicenseNumber = "DAQ"
)

// ISODate is the layout every recognized date is normalized to
const ISODate = "2006-01-02"

// dateLayouts are tried in order; the first that parses wins
var dateLayouts = []string{
	"20060102",
	"01022006",
	ISODate,
}

// Person is the identity record derived from a payload. Missing elements are
// empty strings.
type Person struct {
	LastName      string `json:"last_name"`
	FirstName     string `json:"first_name"`
	MiddleName    string `json:"middle_name"`
	FullName      string `json:"full_name"`
	DateOfBirth   string `json:"date_of_birth"`
	ExpiryDate    string `json:"expiry_date"`
	IssueDate     string `json:"issue_date"`
	Street        string `json:"street"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code"`
	LicenseNumber string `json:"license_number"`
}

// Result carries a Person together with the parse diagnostics
type Result struct {
	Person  Person `json:"person"`
	Tokens  Tokens `json:"tokens"`
	Skipped []Line `json:"skipped,omitempty"`
}

// Parse tokenizes and normalizes a raw payload in one step
func Parse(payload string) Result {
	tz := Tokenize(payload)
	return Result{
		Person:  Normalize(tz.Tokens),
		Tokens:  tz.Tokens,
		Skipped: tz.Skipped,
	}
}

// Normalize builds a Person from a token table. It never fails.
func Normalize(tokens Tokens) Person {
	p := Person{
		LastName:      tokens.Get(ElementLastName),
		FirstName:     tokens.Get(ElementFirstName),
		MiddleName:    tokens.Get(ElementMiddleName),
		DateOfBirth:   NormalizeDate(tokens.Get(ElementDateOfBirth)),
		ExpiryDate:    NormalizeDate(tokens.Get(ElementExpiryDate)),
		IssueDate:     NormalizeDate(tokens.Get(ElementIssueDate)),
		Street:        tokens.Get(ElementStreet),
		City:          tokens.Get(ElementCity),
		State:         tokens.Get(ElementState),
		PostalCode:    normalizePostalCode(tokens.Get(ElementPostalCode)),
		LicenseNumber: tokens.Get(ElementLicenseNumber),
	}

	if composite := tokens.Get(ElementFullName); composite != "" {
		p.FullName = composite
	} else {
		p.FullName = JoinName(p.FirstName, p.MiddleName, p.LastName)
	}

	return p
}

// NormalizeDate rewrites a date in YYYYMMDD, MMDDYYYY or YYYY-MM-DD form as
// YYYY-MM-DD. Anything else comes back trimmed but otherwise unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISODate)
		}
	}
	return s
}

// JoinName joins name parts with single spaces, skipping empty ones
func JoinName(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// normalizePostalCode drops the trailing hyphen padding some issuers append
func normalizePostalCode(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "- ")
	return s
}
