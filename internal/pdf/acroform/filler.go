package acroform

import (
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/dealerlite/internal/documents"
	pdferrors "github.com/a3tai/dealerlite/internal/pdf/errors"
)

// Report describes what one fill wrote
type Report struct {
	// Filled lists the distinct field names written, in widget order
	Filled []string `json:"filled"`
	// Missing lists the map keys that no widget carries
	Missing []string `json:"missing,omitempty"`
	// Unsupported lists the field names whose widget is not a text field
	Unsupported []string `json:"unsupported,omitempty"`
	// Widgets counts written widget annotations
	Widgets int `json:"widgets"`
}

// Fill writes every value of fields into the widgets of the same name and
// clears their cached appearance so viewers render the new text. Widgets
// whose name is not in fields are left alone. The document is mutated and
// returned.
//
// A template without an AcroForm yields ErrNoAcroForm and one where no
// widget carries a schema name yields ErrNoWidgetsMatched. A named widget
// that cannot hold text is reported as ErrUnsupportedWidget while the
// remaining fields are still written.
func Fill(doc *Document, fields *documents.FieldMap) (*Document, *Report, error) {
	report := &Report{}
	if doc == nil || fields == nil {
		return doc, report, pdferrors.New(pdferrors.ErrorTypeInvalidForm, "fill needs a document and a field map")
	}

	acroForm, err := doc.acroForm()
	if err != nil {
		return doc, report, err
	}
	if acroForm == nil {
		return doc, report, ErrNoAcroForm
	}

	widgets, err := doc.Widgets()
	if err != nil {
		return doc, report, err
	}

	errs := pdferrors.NewErrorCollection("")
	filled := make(map[string]bool)
	unsupported := make(map[string]bool)
	matched := 0

	for _, w := range widgets {
		value, ok := fields.Lookup(w.Name)
		if !ok {
			continue
		}
		matched++

		if w.Type != "" && w.Type != FieldTypeText {
			errs.Add(ErrUnsupportedWidget.WithField(w.Name, w.Page).WithContext("field type " + w.Type))
			if !unsupported[w.Name] {
				unsupported[w.Name] = true
				report.Unsupported = append(report.Unsupported, w.Name)
			}
			continue
		}

		v, err := encodeText(value)
		if err != nil {
			errs.Add(pdferrors.Wrap(pdferrors.ErrorTypeInvalidForm, "cannot encode value", err).WithField(w.Name, w.Page))
			continue
		}
		w.field["V"] = v
		if w.HasAppearance() {
			w.annot["AP"] = types.NewDict()
		}

		report.Widgets++
		if !filled[w.Name] {
			filled[w.Name] = true
			report.Filled = append(report.Filled, w.Name)
		}
	}

	for _, key := range fields.Keys() {
		if !filled[key] && !unsupported[key] {
			report.Missing = append(report.Missing, key)
		}
	}

	if matched == 0 {
		return doc, report, ErrNoWidgetsMatched.WithContext(string(fields.Kind()))
	}
	if report.Widgets > 0 {
		acroForm["NeedAppearances"] = types.Boolean(true)
	}
	return doc, report, errs.Err()
}

// encodeText escapes s as a PDF string, using UTF-16 only when s is not ASCII
func encodeText(s string) (types.StringLiteral, error) {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7e {
			esc, err := types.EscapedUTF16String(s)
			if err != nil {
				return "", err
			}
			return types.StringLiteral(*esc), nil
		}
	}
	esc, err := types.Escape(s)
	if err != nil {
		return "", err
	}
	return types.StringLiteral(*esc), nil
}
