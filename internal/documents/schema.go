// Package documents projects a Person record and transaction details onto the
// fixed field schemas of the dealership forms.
package documents

import (
	"fmt"
	"strings"
)

// Kind identifies one of the document types the dealership fills
type Kind string

const (
	KindWaiver     Kind = "waiver"
	KindBillOfSale Kind = "bos"
)

// Kinds lists every document kind in output order
var Kinds = []Kind{KindWaiver, KindBillOfSale}

// ParseKind resolves a kind from its short name
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindWaiver:
		return KindWaiver, nil
	case KindBillOfSale, "bill_of_sale", "billofsale":
		return KindBillOfSale, nil
	}
	return "", fmt.Errorf("unknown document kind: %q", s)
}

// Title returns the human readable document name
func (k Kind) Title() string {
	switch k {
	case KindWaiver:
		return "Test Drive Waiver"
	case KindBillOfSale:
		return "Bill of Sale"
	default:
		return string(k)
	}
}

// Schema returns the fixed field names for the kind, or nil for unknown kinds
func (k Kind) Schema() []string {
	switch k {
	case KindWaiver:
		return append([]string(nil), WaiverFields...)
	case KindBillOfSale:
		return append([]string(nil), BillOfSaleFields...)
	default:
		return nil
	}
}

// Waiver field names
const (
	FieldFullName             = "FullName"
	FieldFirstName            = "FirstName"
	FieldLastName             = "LastName"
	FieldDOB                  = "DOB"
	FieldDLNumber             = "DLNumber"
	FieldAddress              = "Address"
	FieldPhone                = "Phone"
	FieldEmail                = "Email"
	FieldVehicleVIN           = "VehicleVIN"
	FieldVehicleYearMakeModel = "VehicleYearMakeModel"
	FieldSignature            = "Signature"
)

// Bill of sale field names. VehicleVIN is shared with the waiver.
const (
	FieldBuyerFullName = "BuyerFullName"
	FieldBuyerAddress  = "BuyerAddress"
	FieldBuyerDL       = "BuyerDL"
	FieldBuyerDOB      = "BuyerDOB"
	FieldVehicleYear   = "VehicleYear"
	FieldVehicleMake   = "VehicleMake"
	FieldVehicleModel  = "VehicleModel"
	FieldSalePrice     = "SalePrice"
	FieldSaleDate      = "SaleDate"
)

// WaiverFields is the test-drive waiver schema in form order
var WaiverFields = []string{
	FieldFullName,
	FieldFirstName,
	FieldLastName,
	FieldDOB,
	FieldDLNumber,
	FieldAddress,
	FieldPhone,
	FieldEmail,
	FieldVehicleVIN,
	FieldVehicleYearMakeModel,
	FieldSignature,
}

// BillOfSaleFields is the bill-of-sale schema in form order
var BillOfSaleFields = []string{
	FieldBuyerFullName,
	FieldBuyerAddress,
	FieldBuyerDL,
	FieldBuyerDOB,
	FieldVehicleVIN,
	FieldVehicleYear,
	FieldVehicleMake,
	FieldVehicleModel,
	FieldSalePrice,
	FieldSaleDate,
}

// FieldMap is an ordered field-name to value mapping restricted to one schema.
// Keys outside the schema cannot be set.
type FieldMap struct {
	kind   Kind
	keys   []string
	values map[string]string
}

// NewFieldMap returns a map for kind with every schema field set to ""
func NewFieldMap(kind Kind) *FieldMap {
	keys := kind.Schema()
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		values[k] = ""
	}
	return &FieldMap{kind: kind, keys: keys, values: values}
}

// Kind returns the document kind this map belongs to
func (m *FieldMap) Kind() Kind {
	return m.kind
}

// Set assigns a value to a schema field
func (m *FieldMap) Set(name, value string) error {
	if _, ok := m.values[name]; !ok {
		return fmt.Errorf("field %q is not part of the %s schema", name, m.kind)
	}
	m.values[name] = value
	return nil
}

// Lookup returns the value for a field and whether the field is in the schema
func (m *FieldMap) Lookup(name string) (string, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Get returns the value for a field, "" when absent
func (m *FieldMap) Get(name string) string {
	return m.values[name]
}

// Keys returns the field names in schema order
func (m *FieldMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of schema fields
func (m *FieldMap) Len() int {
	return len(m.keys)
}

// Map returns a copy of the values
func (m *FieldMap) Map() map[string]string {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// mustSet is used by the mappers, which only ever write schema constants
func (m *FieldMap) mustSet(name, value string) {
	if err := m.Set(name, value); err != nil {
		panic(err)
	}
}
