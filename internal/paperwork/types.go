// Package paperwork turns a scanned license payload and the deal details into
// filled dealership documents.
package paperwork

import (
	"errors"

	"github.com/a3tai/dealerlite/internal/aamva"
	"github.com/a3tai/dealerlite/internal/documents"
	"github.com/a3tai/dealerlite/internal/pdf/template"
)

var (
	ErrEmptyPayload      = errors.New("payload is empty")
	ErrPayloadTooLarge   = errors.New("payload exceeds the configured size limit")
	ErrInvalidRequestID  = errors.New("invalid request id")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidDealFields = errors.New("invalid transaction fields")
)

// outputNames maps each document kind to its file name inside a request directory
var outputNames = map[documents.Kind]string{
	documents.KindWaiver:     "test_drive_waiver_filled.pdf",
	documents.KindBillOfSale: "bill_of_sale_filled.pdf",
}

// OutputName returns the file name used for a filled document of kind
func OutputName(kind documents.Kind) (string, bool) {
	name, ok := outputNames[kind]
	return name, ok
}

// ParseRequest asks for a payload to be decoded without filling anything
type ParseRequest struct {
	Payload string `json:"payload"`
}

// ParseResult is the decoded person plus the lines that were dropped
type ParseResult struct {
	Person     aamva.Person `json:"person"`
	TokenCount int          `json:"token_count"`
	Skipped    []aamva.Line `json:"skipped,omitempty"`
}

// GenerateRequest carries everything needed to fill both documents
type GenerateRequest struct {
	Payload     string                `json:"payload"`
	Transaction documents.Transaction `json:"transaction"`
}

// DocumentResult describes one filled document on disk
type DocumentResult struct {
	Kind        documents.Kind `json:"kind"`
	Title       string         `json:"title"`
	FileName    string         `json:"file_name"`
	Path        string         `json:"path"`
	Size        int64          `json:"size"`
	Filled      []string       `json:"filled"`
	Missing     []string       `json:"missing,omitempty"`
	Unsupported []string       `json:"unsupported,omitempty"`
}

// GenerateResult is returned once every document has been written
type GenerateResult struct {
	RequestID   string                `json:"request_id"`
	Person      aamva.Person          `json:"person"`
	Transaction documents.Transaction `json:"transaction"`
	Skipped     []aamva.Line          `json:"skipped,omitempty"`
	// Warnings name deal fields that were filled although they look malformed
	Warnings  []string         `json:"warnings,omitempty"`
	Documents []DocumentResult `json:"documents"`
}

// Document returns the result for kind, if present
func (r *GenerateResult) Document(kind documents.Kind) (DocumentResult, bool) {
	for _, d := range r.Documents {
		if d.Kind == kind {
			return d, true
		}
	}
	return DocumentResult{}, false
}

// TemplateFieldsResult lists the widgets found in a template
type TemplateFieldsResult struct {
	Kind    documents.Kind        `json:"kind"`
	Path    string                `json:"path"`
	Pages   int                   `json:"pages"`
	Fields  []template.WidgetInfo `json:"fields"`
	Missing []string              `json:"missing,omitempty"`
}

// TemplateStatus reports whether a template file is in place
type TemplateStatus struct {
	Kind    documents.Kind `json:"kind"`
	Path    string         `json:"path"`
	Present bool           `json:"present"`
}

// ServerInfo describes the directories and templates in use
type ServerInfo struct {
	TemplateDirectory string           `json:"template_directory"`
	OutputDirectory   string           `json:"output_directory"`
	MaxPayloadSize    int64            `json:"max_payload_size"`
	Templates         []TemplateStatus `json:"templates"`
}
