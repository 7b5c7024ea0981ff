package documents

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/a3tai/dealerlite/internal/aamva"
)

// Transaction holds the deal details typed in by the salesperson. Only the
// validate tags reject a request; advise tags are reported as warnings and
// the value is still filled as typed.
type Transaction struct {
	Phone         string `json:"phone" validate:"max=64"`
	Email         string `json:"email" validate:"max=254" advise:"omitempty,email"`
	VIN           string `json:"vin" validate:"max=64" advise:"omitempty,alphanum,len=17"`
	Year          string `json:"year" validate:"max=32" advise:"omitempty,numeric,len=4"`
	Make          string `json:"make" validate:"max=64"`
	Model         string `json:"model" validate:"max=64"`
	YearMakeModel string `json:"ymm" validate:"max=128"`
	Price         string `json:"price" validate:"max=64"`
	SaleDate      string `json:"sale_date" validate:"omitempty,datetime=2006-01-02"`
}

var (
	validate = validator.New()
	advisor  = newAdvisor()
)

func newAdvisor() *validator.Validate {
	v := validator.New()
	v.SetTagName("advise")
	return v
}

// Validate rejects a sale date that is not YYYY-MM-DD and oversized values
func (t Transaction) Validate() error {
	return validate.Struct(t)
}

// Warnings lists fields whose value does not have the expected shape
func (t Transaction) Warnings() []string {
	var verrs validator.ValidationErrors
	if !errors.As(advisor.Struct(t), &verrs) {
		return nil
	}
	warnings := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		warnings = append(warnings, fmt.Sprintf("%s %q failed the %s check", fe.Field(), fe.Value(), fe.Tag()))
	}
	return warnings
}

// Trimmed returns a copy with surrounding whitespace removed from every field
func (t Transaction) Trimmed() Transaction {
	return Transaction{
		Phone:         strings.TrimSpace(t.Phone),
		Email:         strings.TrimSpace(t.Email),
		VIN:           strings.TrimSpace(t.VIN),
		Year:          strings.TrimSpace(t.Year),
		Make:          strings.TrimSpace(t.Make),
		Model:         strings.TrimSpace(t.Model),
		YearMakeModel: strings.TrimSpace(t.YearMakeModel),
		Price:         strings.TrimSpace(t.Price),
		SaleDate:      strings.TrimSpace(t.SaleDate),
	}
}

// VehicleDescription returns the year/make/model line for the waiver. The
// explicit description wins; otherwise it is built from the parts.
func (t Transaction) VehicleDescription() string {
	if t.YearMakeModel != "" {
		return t.YearMakeModel
	}
	return aamva.JoinName(t.Year, t.Make, t.Model)
}

// FormatAddress renders "street, city, state postal" leaving out empty parts
// so that no stray separators remain.
func FormatAddress(p aamva.Person) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Street, p.City, aamva.JoinName(p.State, p.PostalCode)} {
		s = strings.Trim(s, ", ")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Waiver projects a person and transaction onto the test-drive waiver schema.
// Signature is left empty for the customer to sign.
func Waiver(p aamva.Person, t Transaction) *FieldMap {
	m := NewFieldMap(KindWaiver)
	m.mustSet(FieldFullName, p.FullName)
	m.mustSet(FieldFirstName, p.FirstName)
	m.mustSet(FieldLastName, p.LastName)
	m.mustSet(FieldDOB, p.DateOfBirth)
	m.mustSet(FieldDLNumber, p.LicenseNumber)
	m.mustSet(FieldAddress, FormatAddress(p))
	m.mustSet(FieldPhone, t.Phone)
	m.mustSet(FieldEmail, t.Email)
	m.mustSet(FieldVehicleVIN, t.VIN)
	m.mustSet(FieldVehicleYearMakeModel, t.VehicleDescription())
	m.mustSet(FieldSignature, "")
	return m
}

// BillOfSale projects a person and transaction onto the bill-of-sale schema
func BillOfSale(p aamva.Person, t Transaction) *FieldMap {
	m := NewFieldMap(KindBillOfSale)
	m.mustSet(FieldBuyerFullName, p.FullName)
	m.mustSet(FieldBuyerAddress, FormatAddress(p))
	m.mustSet(FieldBuyerDL, p.LicenseNumber)
	m.mustSet(FieldBuyerDOB, p.DateOfBirth)
	m.mustSet(FieldVehicleVIN, t.VIN)
	m.mustSet(FieldVehicleYear, t.Year)
	m.mustSet(FieldVehicleMake, t.Make)
	m.mustSet(FieldVehicleModel, t.Model)
	m.mustSet(FieldSalePrice, t.Price)
	m.mustSet(FieldSaleDate, t.SaleDate)
	return m
}

// Build returns the field map for kind
func Build(kind Kind, p aamva.Person, t Transaction) (*FieldMap, error) {
	switch kind {
	case KindWaiver:
		return Waiver(p, t), nil
	case KindBillOfSale:
		return BillOfSale(p, t), nil
	}
	return nil, fmt.Errorf("unknown document kind: %q", kind)
}
