package template

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Inspection is a read-only summary of a template
type Inspection struct {
	Pages  int          `json:"pages"`
	Fields []WidgetInfo `json:"fields"`
	Text   []string     `json:"text,omitempty"`
}

// WidgetInfo describes one widget annotation found on a page
type WidgetInfo struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Page int    `json:"page"`
}

// Inspect reads page text and widget names with an independent parser, which
// lets a template be checked without touching the fill path.
func Inspect(data []byte) (insp *Inspection, err error) {
	// The reader panics on some malformed input
	defer func() {
		if r := recover(); r != nil {
			insp = nil
			err = fmt.Errorf("failed to inspect template: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid PDF file: %w", err)
	}

	insp = &Inspection{Pages: reader.NumPage()}
	for i := 1; i <= insp.Pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		if text, err := page.GetPlainText(nil); err == nil {
			insp.Text = append(insp.Text, strings.TrimSpace(text))
		}

		annots := page.V.Key("Annots")
		for j := 0; j < annots.Len(); j++ {
			annot := annots.Index(j)
			if annot.Key("Subtype").Name() != "Widget" {
				continue
			}
			name := annot.Key("T").Text()
			fieldType := annot.Key("FT").Name()
			if parent := annot.Key("Parent"); name == "" && !parent.IsNull() {
				name = parent.Key("T").Text()
				if fieldType == "" {
					fieldType = parent.Key("FT").Name()
				}
			}
			if name == "" {
				continue
			}
			insp.Fields = append(insp.Fields, WidgetInfo{Name: name, Type: fieldType, Page: i})
		}
	}

	return insp, nil
}

// Names returns the distinct widget names in page order
func (in *Inspection) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range in.Fields {
		if !seen[f.Name] {
			seen[f.Name] = true
			names = append(names, f.Name)
		}
	}
	return names
}

// Missing returns the schema names that have no widget
func (in *Inspection) Missing(schema []string) []string {
	have := make(map[string]bool)
	for _, f := range in.Fields {
		have[f.Name] = true
	}
	var missing []string
	for _, name := range schema {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
