package paperwork

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/dealerlite/internal/aamva"
	"github.com/a3tai/dealerlite/internal/documents"
	"github.com/a3tai/dealerlite/internal/pdf/acroform"
	"github.com/a3tai/dealerlite/internal/pdf/security"
	"github.com/a3tai/dealerlite/internal/pdf/template"
)

// DefaultDirPerm is used for request output directories
const DefaultDirPerm = 0o750

// Service fills documents from templates held by a registry and writes them
// under a per-request directory of the output directory. It is safe for
// concurrent use: every fill parses its own copy of the template.
type Service struct {
	registry       *template.Registry
	outputs        *security.PathValidator
	maxPayloadSize int64
	now            func() time.Time
	newID          func() string
}

// NewService creates a paperwork service
func NewService(registry *template.Registry, outputDirectory string, maxPayloadSize int64) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("template registry is required")
	}
	if maxPayloadSize <= 0 {
		return nil, fmt.Errorf("maximum payload size must be positive")
	}
	outputs, err := security.NewPathValidator(outputDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	return &Service{
		registry:       registry,
		outputs:        outputs,
		maxPayloadSize: maxPayloadSize,
		now:            time.Now,
		newID:          func() string { return uuid.New().String() },
	}, nil
}

// OutputDirectory returns the absolute output directory
func (s *Service) OutputDirectory() string {
	return s.outputs.GetConfiguredDirectory()
}

func (s *Service) checkPayload(payload string) error {
	if int64(len(payload)) > s.maxPayloadSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), s.maxPayloadSize)
	}
	return nil
}

// Parse decodes a payload. Malformed lines are reported, never fatal.
func (s *Service) Parse(req ParseRequest) (*ParseResult, error) {
	if err := s.checkPayload(req.Payload); err != nil {
		return nil, err
	}
	res := aamva.Parse(req.Payload)
	return &ParseResult{
		Person:     res.Person,
		TokenCount: len(res.Tokens),
		Skipped:    res.Skipped,
	}, nil
}

// Generate fills every document kind for one payload. Both documents are
// filled concurrently into a fresh request directory; when any fill fails
// the directory is removed so a partial set is never served.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if strings.TrimSpace(req.Payload) == "" {
		return nil, ErrEmptyPayload
	}
	if err := s.checkPayload(req.Payload); err != nil {
		return nil, err
	}

	deal := req.Transaction.Trimmed()
	if deal.SaleDate == "" {
		deal.SaleDate = s.now().Format(aamva.ISODate)
	}
	if err := deal.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDealFields, err)
	}

	parsed := aamva.Parse(req.Payload)
	result := &GenerateResult{
		RequestID:   s.newID(),
		Person:      parsed.Person,
		Transaction: deal,
		Skipped:     parsed.Skipped,
		Warnings:    deal.Warnings(),
		Documents:   make([]DocumentResult, len(documents.Kinds)),
	}

	dir, err := s.outputs.Join(result.RequestID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("cannot create output directory %s: %w", dir, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range documents.Kinds {
		g.Go(func() error {
			doc, err := s.fill(gctx, result.RequestID, kind, parsed.Person, deal)
			if err != nil {
				return fmt.Errorf("%s: %w", kind.Title(), err)
			}
			result.Documents[i] = *doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Printf("Failed to remove incomplete output %s: %v", dir, rmErr)
		}
		return nil, err
	}

	log.Printf("Generated %d documents for request %s", len(result.Documents), result.RequestID)
	return result, nil
}

// fill produces one document from a freshly loaded template
func (s *Service) fill(ctx context.Context, requestID string, kind documents.Kind,
	person aamva.Person, deal documents.Transaction,
) (*DocumentResult, error) {
	fields, err := documents.Build(kind, person, deal)
	if err != nil {
		return nil, err
	}
	data, err := s.registry.Load(kind)
	if err != nil {
		return nil, err
	}
	doc, err := acroform.Open(data)
	if err != nil {
		return nil, err
	}

	doc, report, err := acroform.Fill(doc, fields)
	if err != nil {
		return nil, err
	}
	out, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, _ := OutputName(kind)
	path, err := s.outputs.Join(requestID, name)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, out, 0o640); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return &DocumentResult{
		Kind:        kind,
		Title:       kind.Title(),
		FileName:    name,
		Path:        path,
		Size:        int64(len(out)),
		Filled:      report.Filled,
		Missing:     report.Missing,
		Unsupported: report.Unsupported,
	}, nil
}

// DocumentPath returns the path of a document generated earlier
func (s *Service) DocumentPath(requestID string, kind documents.Kind) (string, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRequestID, requestID)
	}
	name, ok := OutputName(kind)
	if !ok {
		return "", fmt.Errorf("unknown document kind: %q", kind)
	}

	path, err := s.outputs.Join(requestID, name)
	if err != nil {
		return "", fmt.Errorf("security validation failed: %w", err)
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", fmt.Errorf("%w: %s for request %s", ErrDocumentNotFound, kind, requestID)
	}
	if err != nil {
		return "", fmt.Errorf("cannot access %s: %w", path, err)
	}
	return path, nil
}

// TemplateFields inspects the template of kind
func (s *Service) TemplateFields(kind documents.Kind) (*TemplateFieldsResult, error) {
	path, err := s.registry.Path(kind)
	if err != nil {
		return nil, err
	}
	insp, missing, err := s.registry.Verify(kind)
	if err != nil {
		return nil, err
	}
	return &TemplateFieldsResult{
		Kind:    kind,
		Path:    path,
		Pages:   insp.Pages,
		Fields:  insp.Fields,
		Missing: missing,
	}, nil
}

// Info reports the directories in use and which templates are present
func (s *Service) Info() ServerInfo {
	info := ServerInfo{
		TemplateDirectory: s.registry.Dir(),
		OutputDirectory:   s.OutputDirectory(),
		MaxPayloadSize:    s.maxPayloadSize,
	}
	for _, kind := range documents.Kinds {
		path, err := s.registry.Path(kind)
		if err != nil {
			continue
		}
		_, statErr := os.Stat(path)
		info.Templates = append(info.Templates, TemplateStatus{Kind: kind, Path: path, Present: statErr == nil})
	}
	return info
}
