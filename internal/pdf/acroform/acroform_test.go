package acroform

import (
	"errors"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/dealerlite/internal/aamva"
	"github.com/a3tai/dealerlite/internal/documents"
	pdferrors "github.com/a3tai/dealerlite/internal/pdf/errors"
	"github.com/a3tai/dealerlite/internal/pdf/template"
)

var testPerson = aamva.Person{
	LastName:      "PUBLIC",
	FirstName:     "JOHN",
	MiddleName:    "Q",
	FullName:      "JOHN Q PUBLIC",
	DateOfBirth:   "1990-01-15",
	Street:        "123 MAIN ST",
	City:          "ANYTOWN",
	State:         "CA",
	PostalCode:    "90210",
	LicenseNumber: "D1234567",
}

var testTransaction = documents.Transaction{
	Phone:    "555-0100",
	Email:    "john@example.com",
	VIN:      "1HGCM82633A004352",
	Year:     "2021",
	Make:     "Honda",
	Model:    "Accord",
	Price:    "18500.00",
	SaleDate: "2024-05-01",
}

func buildTemplate(t *testing.T, layout template.Layout) []byte {
	t.Helper()
	data, err := template.Build(layout)
	require.NoError(t, err)
	return data
}

func openTemplate(t *testing.T, data []byte) *Document {
	t.Helper()
	doc, err := Open(data)
	require.NoError(t, err)
	return doc
}

func stockTemplate(t *testing.T, kind documents.Kind) []byte {
	t.Helper()
	layout, err := template.LayoutFor(kind)
	require.NoError(t, err)
	return buildTemplate(t, layout)
}

func layoutOf(fields ...template.FieldSpec) template.Layout {
	return template.Layout{Title: "Test Form", Fields: fields}
}

func TestOpen_InvalidData(t *testing.T) {
	_, err := Open([]byte("not a pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTemplate))
}

func TestWidgets_StockTemplates(t *testing.T) {
	for _, kind := range documents.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			doc := openTemplate(t, stockTemplate(t, kind))
			assert.Equal(t, 1, doc.PageCount())

			hasForm, err := doc.HasAcroForm()
			require.NoError(t, err)
			assert.True(t, hasForm)

			widgets, err := doc.Widgets()
			require.NoError(t, err)

			var names []string
			for _, w := range widgets {
				names = append(names, w.Name)
				assert.Equal(t, FieldTypeText, w.Type)
				assert.Equal(t, 1, w.Page)
				assert.True(t, w.HasAppearance(), "widget %s", w.Name)
			}
			assert.ElementsMatch(t, kind.Schema(), names)
		})
	}
}

// stripForm removes the widgets and the AcroForm so only a plain page is left
func stripForm(t *testing.T, doc *Document) {
	t.Helper()
	root, err := doc.ctx.Catalog()
	require.NoError(t, err)
	delete(root, "AcroForm")

	page, _, _, err := doc.ctx.PageDict(1, false)
	require.NoError(t, err)
	delete(page, "Annots")
}

func TestWidgets_PageWithoutAnnotations(t *testing.T) {
	src := openTemplate(t, stockTemplate(t, documents.KindWaiver))
	stripForm(t, src)
	data, err := src.Bytes()
	require.NoError(t, err)

	doc := openTemplate(t, data)
	widgets, err := doc.Widgets()
	require.NoError(t, err)
	assert.Empty(t, widgets)

	hasForm, err := doc.HasAcroForm()
	require.NoError(t, err)
	assert.False(t, hasForm)

	_, report, err := Fill(doc, documents.Waiver(testPerson, testTransaction))
	assert.True(t, errors.Is(err, ErrNoAcroForm))
	assert.Empty(t, report.Filled)
}

func TestFill_Waiver(t *testing.T) {
	fields := documents.Waiver(testPerson, testTransaction)
	doc := openTemplate(t, stockTemplate(t, documents.KindWaiver))

	filled, report, err := Fill(doc, fields)
	require.NoError(t, err)
	assert.Same(t, doc, filled)
	assert.ElementsMatch(t, documents.WaiverFields, report.Filled)
	assert.Empty(t, report.Missing)
	assert.Empty(t, report.Unsupported)
	assert.Equal(t, len(documents.WaiverFields), report.Widgets)

	widgets, err := filled.Widgets()
	require.NoError(t, err)
	for _, w := range widgets {
		ap, found := w.annot.Find("AP")
		require.True(t, found)
		apDict, ok := ap.(types.Dict)
		require.True(t, ok, "appearance of %s should be replaced by a direct dict", w.Name)
		assert.Empty(t, apDict)
	}

	data, err := filled.Bytes()
	require.NoError(t, err)

	values, err := openTemplate(t, data).Values()
	require.NoError(t, err)
	assert.Equal(t, fields.Map(), values)
	assert.Equal(t, "JOHN Q PUBLIC", values[documents.FieldFullName])
	assert.Equal(t, "123 MAIN ST, ANYTOWN, CA 90210", values[documents.FieldAddress])
	assert.Equal(t, "", values[documents.FieldSignature])

	insp, err := template.Inspect(data)
	require.NoError(t, err)
	assert.ElementsMatch(t, documents.WaiverFields, insp.Names())
}

func TestFill_Idempotent(t *testing.T) {
	data := stockTemplate(t, documents.KindBillOfSale)
	fields := documents.BillOfSale(testPerson, testTransaction)

	run := func() map[string]string {
		doc, _, err := Fill(openTemplate(t, data), fields)
		require.NoError(t, err)
		out, err := doc.Bytes()
		require.NoError(t, err)
		values, err := openTemplate(t, out).Values()
		require.NoError(t, err)
		return values
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
	assert.Equal(t, "18500.00", first[documents.FieldSalePrice])
}

func TestFill_TemplateNotMutated(t *testing.T) {
	data := stockTemplate(t, documents.KindWaiver)
	original := append([]byte(nil), data...)

	_, _, err := Fill(openTemplate(t, data), documents.Waiver(testPerson, testTransaction))
	require.NoError(t, err)
	assert.Equal(t, original, data)

	values, err := openTemplate(t, data).Values()
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestFill_NoWidgetsMatched(t *testing.T) {
	doc := openTemplate(t, buildTemplate(t, layoutOf(
		template.FieldSpec{Name: "CustomerName"},
		template.FieldSpec{Name: "Notes"},
	)))

	_, report, err := Fill(doc, documents.Waiver(testPerson, testTransaction))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoWidgetsMatched))
	assert.False(t, errors.Is(err, ErrNoAcroForm))
	assert.Empty(t, report.Filled)
	assert.Len(t, report.Missing, len(documents.WaiverFields))
}

func TestFill_MissingKeysDoNotError(t *testing.T) {
	doc := openTemplate(t, buildTemplate(t, layoutOf(
		template.FieldSpec{Name: documents.FieldFullName},
		template.FieldSpec{Name: documents.FieldDOB},
		template.FieldSpec{Name: "DealerNotes"},
	)))

	filled, report, err := Fill(doc, documents.Waiver(testPerson, testTransaction))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{documents.FieldFullName, documents.FieldDOB}, report.Filled)
	assert.Len(t, report.Missing, len(documents.WaiverFields)-2)
	assert.NotContains(t, report.Missing, documents.FieldFullName)

	values, err := filled.Values()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		documents.FieldFullName: "JOHN Q PUBLIC",
		documents.FieldDOB:      "1990-01-15",
	}, values)
}

func TestFill_UnsupportedWidget(t *testing.T) {
	doc := openTemplate(t, buildTemplate(t, layoutOf(
		template.FieldSpec{Name: documents.FieldFullName},
		template.FieldSpec{Name: documents.FieldSignature, Kind: template.WidgetCheckbox},
	)))

	filled, report, err := Fill(doc, documents.Waiver(testPerson, testTransaction))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedWidget))
	assert.False(t, errors.Is(err, ErrNoWidgetsMatched))

	var pdfErr *pdferrors.PDFError
	require.True(t, errors.As(err, &pdfErr))
	assert.Equal(t, documents.FieldSignature, pdfErr.Field)
	assert.Equal(t, 1, pdfErr.PageNumber)

	assert.Equal(t, []string{documents.FieldFullName}, report.Filled)
	assert.Equal(t, []string{documents.FieldSignature}, report.Unsupported)
	assert.NotContains(t, report.Missing, documents.FieldSignature)

	values, err := filled.Values()
	require.NoError(t, err)
	assert.Equal(t, "JOHN Q PUBLIC", values[documents.FieldFullName])
}

// renameWidgets gives every widget the same partial name, the way a form
// designer leaves a value repeated on several pages.
func renameWidgets(t *testing.T, doc *Document, name string) {
	t.Helper()
	widgets, err := doc.Widgets()
	require.NoError(t, err)
	for _, w := range widgets {
		w.field["T"] = types.StringLiteral(name)
	}
}

func TestFill_RepeatedWidgetsAcrossPages(t *testing.T) {
	doc := openTemplate(t, buildTemplate(t, layoutOf(
		template.FieldSpec{Name: "VIN1"},
		template.FieldSpec{Name: "VIN2", Page: 1},
		template.FieldSpec{Name: "VIN3", Page: 2},
	)))
	assert.Equal(t, 3, doc.PageCount())
	renameWidgets(t, doc, documents.FieldVehicleVIN)

	filled, report, err := Fill(doc, documents.BillOfSale(testPerson, testTransaction))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Widgets)
	assert.Equal(t, []string{documents.FieldVehicleVIN}, report.Filled)

	widgets, err := filled.Widgets()
	require.NoError(t, err)
	require.Len(t, widgets, 3)
	for i, w := range widgets {
		assert.Equal(t, i+1, w.Page)
		assert.Equal(t, testTransaction.VIN, filled.text(w.field, "V"))
	}
}

func TestFill_WithoutCachedAppearance(t *testing.T) {
	doc := openTemplate(t, buildTemplate(t, layoutOf(template.FieldSpec{Name: documents.FieldFullName})))
	widgets, err := doc.Widgets()
	require.NoError(t, err)
	require.Len(t, widgets, 1)
	delete(widgets[0].annot, "AP")

	filled, _, err := Fill(doc, documents.Waiver(testPerson, testTransaction))
	require.NoError(t, err)

	widgets, err = filled.Widgets()
	require.NoError(t, err)
	require.Len(t, widgets, 1)
	assert.False(t, widgets[0].HasAppearance())
}

// splitKids moves the name and type of the only widget into a separate
// parent field that lists the widget as its kid.
func splitKids(t *testing.T, doc *Document) {
	t.Helper()
	page, _, _, err := doc.ctx.PageDict(1, false)
	require.NoError(t, err)
	annots, err := doc.ctx.DereferenceArray(page["Annots"])
	require.NoError(t, err)
	require.Len(t, annots, 1)
	kidRef, ok := annots[0].(types.IndirectRef)
	require.True(t, ok)

	kid, err := doc.ctx.DereferenceDict(kidRef)
	require.NoError(t, err)
	parent := types.Dict{
		"FT":   kid["FT"],
		"T":    kid["T"],
		"Kids": types.Array{kidRef},
	}
	parentRef, err := doc.ctx.IndRefForNewObject(parent)
	require.NoError(t, err)
	delete(kid, "FT")
	delete(kid, "T")
	kid["Parent"] = *parentRef

	form, err := doc.acroForm()
	require.NoError(t, err)
	form["Fields"] = types.Array{*parentRef}
}

func TestFill_KidsWidget(t *testing.T) {
	doc := openTemplate(t, buildTemplate(t, layoutOf(template.FieldSpec{Name: documents.FieldBuyerFullName})))
	splitKids(t, doc)

	widgets, err := doc.Widgets()
	require.NoError(t, err)
	require.Len(t, widgets, 1)
	assert.Equal(t, documents.FieldBuyerFullName, widgets[0].Name)
	assert.Equal(t, FieldTypeText, widgets[0].Type)

	filled, report, err := Fill(doc, documents.BillOfSale(testPerson, testTransaction))
	require.NoError(t, err)
	assert.Equal(t, []string{documents.FieldBuyerFullName}, report.Filled)

	widgets, err = filled.Widgets()
	require.NoError(t, err)
	_, onKid := widgets[0].annot.Find("V")
	assert.False(t, onKid, "value belongs on the parent field")

	data, err := filled.Bytes()
	require.NoError(t, err)
	values, err := openTemplate(t, data).Values()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{documents.FieldBuyerFullName: "JOHN Q PUBLIC"}, values)
}

func TestFill_EscapedAndNonASCIIValues(t *testing.T) {
	doc := openTemplate(t, buildTemplate(t, layoutOf(
		template.FieldSpec{Name: documents.FieldFullName},
		template.FieldSpec{Name: documents.FieldAddress},
	)))

	person := testPerson
	person.FullName = "José Núñez"
	person.Street = `12 (Rear) Unit\B`
	fields := documents.Waiver(person, testTransaction)

	filled, _, err := Fill(doc, fields)
	require.NoError(t, err)
	data, err := filled.Bytes()
	require.NoError(t, err)

	values, err := openTemplate(t, data).Values()
	require.NoError(t, err)
	assert.Equal(t, "José Núñez", values[documents.FieldFullName])
	assert.Equal(t, `12 (Rear) Unit\B, ANYTOWN, CA 90210`, values[documents.FieldAddress])
}

func TestFill_NilArguments(t *testing.T) {
	_, _, err := Fill(nil, documents.NewFieldMap(documents.KindWaiver))
	assert.Error(t, err)

	doc := openTemplate(t, stockTemplate(t, documents.KindWaiver))
	_, _, err = Fill(doc, nil)
	assert.Error(t, err)
}
