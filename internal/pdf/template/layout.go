package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/a3tai/dealerlite/internal/documents"
)

// Page geometry in points (US Letter)
const (
	PageWidth   = 612.0
	PageHeight  = 792.0
	inch        = 72.0
	fieldHeight = 16.0
	fieldWidth  = 3.8 * inch
	fieldX      = 2.6 * inch
	labelX      = 1 * inch
	labelGap    = 10
	labelWidth  = 130
	rowSpacing  = 0.4 * inch
	firstRowY   = PageHeight - 1.5*inch
	titleY      = PageHeight - 1*inch
	checkboxW   = 12.0
)

// WidgetKind selects the form field type written for a widget
type WidgetKind string

const (
	WidgetText     WidgetKind = "Tx"
	WidgetCheckbox WidgetKind = "Btn"
)

// FieldSpec places one labelled form field
type FieldSpec struct {
	Name  string
	Label string
	Kind  WidgetKind
	// Page is zero based
	Page int
}

// Layout describes a one-form template
type Layout struct {
	Title  string
	Fields []FieldSpec
}

// WaiverLayout is the test-drive waiver template
func WaiverLayout() Layout {
	return Layout{
		Title: documents.KindWaiver.Title(),
		Fields: []FieldSpec{
			{Name: documents.FieldFullName, Label: "Full Name"},
			{Name: documents.FieldFirstName, Label: "First Name"},
			{Name: documents.FieldLastName, Label: "Last Name"},
			{Name: documents.FieldDOB, Label: "Date of Birth"},
			{Name: documents.FieldDLNumber, Label: "Driver License #"},
			{Name: documents.FieldAddress, Label: "Address"},
			{Name: documents.FieldPhone, Label: "Phone"},
			{Name: documents.FieldEmail, Label: "Email"},
			{Name: documents.FieldVehicleYearMakeModel, Label: "Vehicle (Year/Make/Model)"},
			{Name: documents.FieldVehicleVIN, Label: "VIN"},
			{Name: documents.FieldSignature, Label: "Customer Signature"},
		},
	}
}

// BillOfSaleLayout is the bill-of-sale template
func BillOfSaleLayout() Layout {
	return Layout{
		Title: documents.KindBillOfSale.Title(),
		Fields: []FieldSpec{
			{Name: documents.FieldBuyerFullName, Label: "Buyer Full Name"},
			{Name: documents.FieldBuyerAddress, Label: "Buyer Address"},
			{Name: documents.FieldBuyerDL, Label: "Buyer DL"},
			{Name: documents.FieldBuyerDOB, Label: "Buyer DOB"},
			{Name: documents.FieldVehicleVIN, Label: "Vehicle VIN"},
			{Name: documents.FieldVehicleYear, Label: "Vehicle Year"},
			{Name: documents.FieldVehicleMake, Label: "Vehicle Make"},
			{Name: documents.FieldVehicleModel, Label: "Vehicle Model"},
			{Name: documents.FieldSalePrice, Label: "Sale Price"},
			{Name: documents.FieldSaleDate, Label: "Sale Date"},
		},
	}
}

// LayoutFor returns the stock layout of a document kind
func LayoutFor(kind documents.Kind) (Layout, error) {
	switch kind {
	case documents.KindWaiver:
		return WaiverLayout(), nil
	case documents.KindBillOfSale:
		return BillOfSaleLayout(), nil
	}
	return Layout{}, fmt.Errorf("no template layout for document kind %q", kind)
}

// pageCount returns the number of pages the layout spans
func (l Layout) pageCount() int {
	n := 1
	for _, f := range l.Fields {
		if f.Page+1 > n {
			n = f.Page + 1
		}
	}
	return n
}

// The types below mirror the pdfcpu form JSON accepted by api.Create.

type formFont struct {
	Name string `json:"name"`
	Size int    `json:"size,omitempty"`
}

type formLabel struct {
	Value    string `json:"value"`
	Width    int    `json:"width"`
	Gap      int    `json:"gap"`
	Align    string `json:"align"`
	Position string `json:"pos"`
}

type formField struct {
	ID       string     `json:"id"`
	Tip      string     `json:"tip,omitempty"`
	Position [2]float64 `json:"pos"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height,omitempty"`
	Label    *formLabel `json:"label,omitempty"`
}

type formText struct {
	Value    string     `json:"value"`
	Position [2]float64 `json:"pos"`
	Font     formFont   `json:"font"`
}

type formContent struct {
	Text      []formText  `json:"text,omitempty"`
	TextField []formField `json:"textfield,omitempty"`
	CheckBox  []formField `json:"checkbox,omitempty"`
}

type formPage struct {
	Content formContent `json:"content"`
}

type formDescriptor struct {
	Paper  string              `json:"paper"`
	Origin string              `json:"origin"`
	Fonts  map[string]formFont `json:"fonts"`
	Pages  map[string]formPage `json:"pages"`
}

// descriptor lays the fields out one row each, top to bottom per page
func (l Layout) descriptor() formDescriptor {
	pages := make([]formPage, l.pageCount())
	if l.Title != "" {
		pages[0].Content.Text = []formText{{
			Value:    l.Title,
			Position: [2]float64{labelX, titleY},
			Font:     formFont{Name: "$title"},
		}}
	}

	rows := make([]int, len(pages))
	for _, f := range l.Fields {
		y := firstRowY - float64(rows[f.Page])*rowSpacing
		rows[f.Page]++

		label := f.Label
		if label == "" {
			label = f.Name
		}
		field := formField{
			ID:       f.Name,
			Tip:      label,
			Position: [2]float64{fieldX, y},
			Label: &formLabel{
				Value:    label + ":",
				Width:    labelWidth,
				Gap:      labelGap,
				Align:    "left",
				Position: "left",
			},
		}

		content := &pages[f.Page].Content
		if f.Kind == WidgetCheckbox {
			field.Width = checkboxW
			content.CheckBox = append(content.CheckBox, field)
			continue
		}
		field.Width = fieldWidth
		field.Height = fieldHeight
		content.TextField = append(content.TextField, field)
	}

	d := formDescriptor{
		Paper:  "Letter",
		Origin: "LowerLeft",
		Fonts: map[string]formFont{
			"title": {Name: "Helvetica-Bold", Size: 16},
			"input": {Name: "Helvetica", Size: 10},
			"label": {Name: "Helvetica", Size: 10},
		},
		Pages: make(map[string]formPage, len(pages)),
	}
	for i, p := range pages {
		d.Pages[strconv.Itoa(i+1)] = p
	}
	return d
}

// Build renders the layout as a fillable PDF using the core Helvetica fonts
func Build(l Layout) ([]byte, error) {
	if len(l.Fields) == 0 {
		return nil, fmt.Errorf("layout %q has no fields", l.Title)
	}
	seen := make(map[string]bool, len(l.Fields))
	for _, f := range l.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("layout %q has a field without a name", l.Title)
		}
		if f.Page < 0 {
			return nil, fmt.Errorf("field %s has a negative page index", f.Name)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("layout %q repeats field %s", l.Title, f.Name)
		}
		seen[f.Name] = true
	}

	spec, err := json.Marshal(l.descriptor())
	if err != nil {
		return nil, fmt.Errorf("failed to encode layout %q: %w", l.Title, err)
	}

	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	var buf bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(spec), &buf, conf); err != nil {
		return nil, fmt.Errorf("failed to create template %q: %w", l.Title, err)
	}
	return buf.Bytes(), nil
}
