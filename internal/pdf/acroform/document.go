// Package acroform locates AcroForm widgets in a template and writes field
// values into them.
package acroform

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	pdferrors "github.com/a3tai/dealerlite/internal/pdf/errors"
)

// Sentinel errors, matched with errors.Is
var (
	ErrInvalidTemplate   = pdferrors.New(pdferrors.ErrorTypeInvalidTemplate, "template is not a readable PDF")
	ErrNoAcroForm        = pdferrors.New(pdferrors.ErrorTypeNoAcroForm, "template has no AcroForm dictionary")
	ErrNoWidgetsMatched  = pdferrors.New(pdferrors.ErrorTypeNoWidgetsMatched, "no template widget matches the document schema")
	ErrUnsupportedWidget = pdferrors.New(pdferrors.ErrorTypeUnsupportedWidget, "widget cannot hold a text value")
	ErrWriteFailed       = pdferrors.New(pdferrors.ErrorTypeWriteFailed, "failed to serialize filled document")
)

// Field types as stored in /FT
const (
	FieldTypeText      = "Tx"
	FieldTypeButton    = "Btn"
	FieldTypeChoice    = "Ch"
	FieldTypeSignature = "Sig"
)

// Document is one parsed PDF. It is owned by a single fill and must not be
// shared between goroutines.
type Document struct {
	ctx *model.Context
}

// Widget is a widget annotation together with the field dictionary that
// carries its name. For merged field/widget dictionaries both are the same.
type Widget struct {
	Name string
	// Page is one based
	Page int
	// Type is the /FT of the widget or its parent, empty when absent
	Type string

	annot types.Dict
	field types.Dict
}

// HasAppearance reports whether the widget carries a cached /AP entry
func (w Widget) HasAppearance() bool {
	_, found := w.annot.Find("AP")
	return found
}

// Open parses data into a new Document
func Open(data []byte) (*Document, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeInvalidTemplate, "failed to read PDF context", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeInvalidTemplate, "failed to ensure page count", err)
	}
	return &Document{ctx: ctx}, nil
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// acroForm returns the AcroForm dictionary, or nil when the catalog has none
func (d *Document) acroForm() (types.Dict, error) {
	root, err := d.ctx.Catalog()
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeInvalidTemplate, "failed to get catalog", err)
	}
	obj, found := root.Find("AcroForm")
	if !found {
		return nil, nil
	}
	dict, err := d.ctx.DereferenceDict(obj)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeInvalidTemplate, "failed to dereference AcroForm", err)
	}
	return dict, nil
}

// HasAcroForm reports whether the catalog carries an AcroForm dictionary
func (d *Document) HasAcroForm() (bool, error) {
	dict, err := d.acroForm()
	return dict != nil, err
}

// Widgets returns every named widget annotation in page order. A field that
// appears on several pages yields one Widget per appearance. Pages without
// an annotation list are skipped.
func (d *Document) Widgets() ([]Widget, error) {
	var widgets []Widget
	for page := 1; page <= d.ctx.PageCount; page++ {
		pageDict, _, _, err := d.ctx.PageDict(page, false)
		if err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeInvalidTemplate,
				fmt.Sprintf("failed to read page %d", page), err)
		}
		if pageDict == nil {
			continue
		}

		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := d.ctx.DereferenceArray(annotsObj)
		if err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeInvalidTemplate,
				fmt.Sprintf("failed to dereference annotations of page %d", page), err)
		}

		for _, obj := range annots {
			annot, err := d.ctx.DereferenceDict(obj)
			if err != nil || annot == nil {
				continue
			}
			if w, ok := d.widget(annot, page); ok {
				widgets = append(widgets, w)
			}
		}
	}
	return widgets, nil
}

// widget builds a Widget from an annotation dictionary
func (d *Document) widget(annot types.Dict, page int) (Widget, bool) {
	subtype, found := annot.Find("Subtype")
	if !found {
		return Widget{}, false
	}
	if name, err := d.ctx.DereferenceName(subtype, model.V10, nil); err != nil || name != "Widget" {
		return Widget{}, false
	}

	w := Widget{Page: page, annot: annot, field: annot}
	w.Name = d.text(annot, "T")
	w.Type = d.name(annot, "FT")

	// Kids style: the widget hangs off a named parent field
	if parentObj, found := annot.Find("Parent"); found {
		if parent, err := d.ctx.DereferenceDict(parentObj); err == nil && parent != nil {
			if w.Name == "" {
				w.Name = d.text(parent, "T")
				w.field = parent
			}
			if w.Type == "" {
				w.Type = d.name(parent, "FT")
			}
		}
	}

	if w.Name == "" {
		return Widget{}, false
	}
	return w, true
}

// text returns the decoded string stored under key, or ""
func (d *Document) text(dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	s, err := d.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

// name returns the name stored under key, or ""
func (d *Document) name(dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	n, err := d.ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return string(n)
}

// Values returns the current /V of every named text widget. When a name
// repeats, the first page wins.
func (d *Document) Values() (map[string]string, error) {
	widgets, err := d.Widgets()
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	for _, w := range widgets {
		if _, seen := values[w.Name]; seen {
			continue
		}
		if _, found := w.field.Find("V"); !found {
			continue
		}
		values[w.Name] = d.text(w.field, "V")
	}
	return values, nil
}

// Write serializes the document to w
func (d *Document) Write(w io.Writer) error {
	if err := api.WriteContext(d.ctx, w); err != nil {
		return ErrWriteFailed.WithContext(err.Error())
	}
	return nil
}

// Bytes serializes the document into memory
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
