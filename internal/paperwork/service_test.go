package paperwork

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/dealerlite/internal/documents"
	"github.com/a3tai/dealerlite/internal/pdf/acroform"
	"github.com/a3tai/dealerlite/internal/pdf/template"
)

const samplePayload = "@\n" +
	"ANSI 636014040002DL00410278ZC03190008DL\n" +
	"DCSPUBLIC\n" +
	"DACJOHN\n" +
	"DADQ\n" +
	"DBB01151990\n" +
	"DBA20300115\n" +
	"DAG123 MAIN ST\n" +
	"DAIANYTOWN\n" +
	"DAJCA\n" +
	"DAK90210-    \n" +
	"DAQD1234567\n" +
	"9XZhello\n"

func newTestService(t *testing.T) (*Service, *template.Registry) {
	t.Helper()
	reg, err := template.NewRegistry(filepath.Join(t.TempDir(), "templates"))
	require.NoError(t, err)
	_, err = reg.Ensure()
	require.NoError(t, err)

	svc, err := NewService(reg, filepath.Join(t.TempDir(), "out"), 64*1024)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 15, 4, 5, 0, time.UTC) }
	return svc, reg
}

func readValues(t *testing.T, path string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := acroform.Open(data)
	require.NoError(t, err)
	values, err := doc.Values()
	require.NoError(t, err)
	return values
}

func TestNewService_Errors(t *testing.T) {
	reg, err := template.NewRegistry(t.TempDir())
	require.NoError(t, err)

	_, err = NewService(nil, t.TempDir(), 1024)
	assert.Error(t, err)
	_, err = NewService(reg, "", 1024)
	assert.Error(t, err)
	_, err = NewService(reg, t.TempDir(), 0)
	assert.Error(t, err)
}

func TestService_Parse(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Parse(ParseRequest{Payload: samplePayload})
	require.NoError(t, err)
	assert.Equal(t, "JOHN Q PUBLIC", res.Person.FullName)
	assert.Equal(t, "1990-01-15", res.Person.DateOfBirth)
	assert.Equal(t, "90210", res.Person.PostalCode)
	assert.Equal(t, 11, res.TokenCount)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "9XZhello", res.Skipped[1].Raw)

	empty, err := svc.Parse(ParseRequest{})
	require.NoError(t, err)
	assert.Zero(t, empty.Person)

	_, err = svc.Parse(ParseRequest{Payload: strings.Repeat("x", 64*1024+1)})
	assert.True(t, errors.Is(err, ErrPayloadTooLarge))
}

func TestService_Generate(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Generate(context.Background(), GenerateRequest{
		Payload: samplePayload,
		Transaction: documents.Transaction{
			Phone: " 555-0100 ",
			Email: "john@example.com",
			VIN:   "1HGCM82633A004352",
			Year:  "2021",
			Make:  "Honda",
			Model: "Accord",
			Price: "18500.00",
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, "2024-05-01", res.Transaction.SaleDate)
	assert.Equal(t, "555-0100", res.Transaction.Phone)

	waiver, ok := res.Document(documents.KindWaiver)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(svc.OutputDirectory(), res.RequestID, "test_drive_waiver_filled.pdf"), waiver.Path)
	assert.ElementsMatch(t, documents.WaiverFields, waiver.Filled)
	assert.Empty(t, waiver.Missing)

	values := readValues(t, waiver.Path)
	assert.Equal(t, "JOHN Q PUBLIC", values[documents.FieldFullName])
	assert.Equal(t, "123 MAIN ST, ANYTOWN, CA 90210", values[documents.FieldAddress])
	assert.Equal(t, "2021 Honda Accord", values[documents.FieldVehicleYearMakeModel])

	bos, ok := res.Document(documents.KindBillOfSale)
	require.True(t, ok)
	values = readValues(t, bos.Path)
	assert.Equal(t, "2024-05-01", values[documents.FieldSaleDate])
	assert.Equal(t, "D1234567", values[documents.FieldBuyerDL])
	assert.Equal(t, "18500.00", values[documents.FieldSalePrice])

	path, err := svc.DocumentPath(res.RequestID, documents.KindBillOfSale)
	require.NoError(t, err)
	assert.Equal(t, bos.Path, path)
}

func TestService_GenerateConcurrentRequests(t *testing.T) {
	svc, _ := newTestService(t)

	const n = 6
	ids := make([]string, n)
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Generate(context.Background(), GenerateRequest{
				Payload:     samplePayload,
				Transaction: documents.Transaction{VIN: strings.Repeat("A", i+1)},
			})
			errs[i] = err
			if err == nil {
				ids[i] = res.RequestID
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[ids[i]], "request ids must be unique")
		seen[ids[i]] = true

		path, err := svc.DocumentPath(ids[i], documents.KindWaiver)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("A", i+1), readValues(t, path)[documents.FieldVehicleVIN])
	}
}

func TestService_GenerateInvalidTransaction(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Generate(context.Background(), GenerateRequest{
		Payload:     samplePayload,
		Transaction: documents.Transaction{SaleDate: "05/01/2024"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDealFields))

	entries, err := os.ReadDir(svc.OutputDirectory())
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestService_GenerateMalformedFieldsAreFilled(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Generate(context.Background(), GenerateRequest{
		Payload:     samplePayload,
		Transaction: documents.Transaction{Email: "john at example", VIN: "1HG-CM82", Year: "21"},
	})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 3)
	assert.Contains(t, result.Warnings[0], "Email")

	path, err := svc.DocumentPath(result.RequestID, documents.KindWaiver)
	require.NoError(t, err)
	values := readValues(t, path)
	assert.Equal(t, "john at example", values[documents.FieldEmail])
	assert.Equal(t, "1HG-CM82", values[documents.FieldVehicleVIN])

	path, err = svc.DocumentPath(result.RequestID, documents.KindBillOfSale)
	require.NoError(t, err)
	assert.Equal(t, "21", readValues(t, path)[documents.FieldVehicleYear])
}

func TestService_GenerateEmptyPayload(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Generate(context.Background(), GenerateRequest{Payload: "  \n "})
	assert.True(t, errors.Is(err, ErrEmptyPayload))
}

func TestService_GenerateTemplateWithoutSchemaWidgets(t *testing.T) {
	svc, reg := newTestService(t)

	data, err := template.Build(template.Layout{
		Title:  "Unrelated Form",
		Fields: []template.FieldSpec{{Name: "Customer"}},
	})
	require.NoError(t, err)
	path, err := reg.Path(documents.KindBillOfSale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	svc.newID = func() string { return "2f1a3c9e-5b7d-4e8f-9a0b-1c2d3e4f5a6b" }
	_, err = svc.Generate(context.Background(), GenerateRequest{Payload: samplePayload})
	require.Error(t, err)
	assert.True(t, errors.Is(err, acroform.ErrNoWidgetsMatched))
	assert.Contains(t, err.Error(), "Bill of Sale")

	_, statErr := os.Stat(filepath.Join(svc.OutputDirectory(), "2f1a3c9e-5b7d-4e8f-9a0b-1c2d3e4f5a6b"))
	assert.True(t, os.IsNotExist(statErr), "incomplete output must be removed")
}

func TestService_GenerateCanceled(t *testing.T) {
	svc, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Generate(ctx, GenerateRequest{Payload: samplePayload})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestService_DocumentPathErrors(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.DocumentPath("../../etc", documents.KindWaiver)
	assert.True(t, errors.Is(err, ErrInvalidRequestID))

	id := "2f1a3c9e-5b7d-4e8f-9a0b-1c2d3e4f5a6b"
	_, err = svc.DocumentPath(id, documents.Kind("lease"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrDocumentNotFound))

	_, err = svc.DocumentPath(id, documents.KindWaiver)
	assert.True(t, errors.Is(err, ErrDocumentNotFound))
}

func TestService_TemplateFields(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.TemplateFields(documents.KindWaiver)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
	assert.Len(t, res.Fields, len(documents.WaiverFields))
	assert.Empty(t, res.Missing)

	_, err = svc.TemplateFields(documents.Kind("lease"))
	assert.Error(t, err)
}

func TestService_Info(t *testing.T) {
	svc, reg := newTestService(t)

	path, err := reg.Path(documents.KindWaiver)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	info := svc.Info()
	assert.Equal(t, reg.Dir(), info.TemplateDirectory)
	assert.Equal(t, int64(64*1024), info.MaxPayloadSize)
	require.Len(t, info.Templates, 2)
	assert.False(t, info.Templates[0].Present)
	assert.True(t, info.Templates[1].Present)
}
