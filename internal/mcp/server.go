package mcp

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/dealerlite/internal/config"
	"github.com/a3tai/dealerlite/internal/descriptions"
	"github.com/a3tai/dealerlite/internal/documents"
	"github.com/a3tai/dealerlite/internal/paperwork"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *paperwork.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *paperwork.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("paperwork service cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	parseTool := mcp.NewTool(
		"aamva_parse_payload",
		mcp.WithDescription(descriptions.GetToolDescription("aamva_parse_payload")),
		mcp.WithString("payload",
			mcp.Required(),
			mcp.Description("Decoded PDF417 barcode text, one AAMVA element per line"),
		),
	)
	s.mcpServer.AddTool(parseTool, s.handleParsePayload)

	generateTool := mcp.NewTool(
		"paperwork_generate",
		mcp.WithDescription(descriptions.GetToolDescription("paperwork_generate")),
		mcp.WithString("payload",
			mcp.Required(),
			mcp.Description("Decoded PDF417 barcode text, one AAMVA element per line"),
		),
		mcp.WithString("phone", mcp.Description("Customer phone number")),
		mcp.WithString("email", mcp.Description("Customer email address")),
		mcp.WithString("vin", mcp.Description("Vehicle identification number")),
		mcp.WithString("year", mcp.Description("Vehicle model year, four digits")),
		mcp.WithString("make", mcp.Description("Vehicle make")),
		mcp.WithString("model", mcp.Description("Vehicle model")),
		mcp.WithString("ymm", mcp.Description("Vehicle description for the waiver, built from year, make and model when empty")),
		mcp.WithString("price", mcp.Description("Sale price")),
		mcp.WithString("sale_date", mcp.Description("Sale date as YYYY-MM-DD, defaults to today")),
	)
	s.mcpServer.AddTool(generateTool, s.handleGenerate)

	fieldsTool := mcp.NewTool(
		"paperwork_template_fields",
		mcp.WithDescription(descriptions.GetToolDescription("paperwork_template_fields")),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Enum(string(documents.KindWaiver), string(documents.KindBillOfSale)),
			mcp.Description("Document kind: 'waiver' or 'bos'"),
		),
	)
	s.mcpServer.AddTool(fieldsTool, s.handleTemplateFields)

	infoTool := mcp.NewTool(
		"paperwork_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("paperwork_server_info")),
	)
	s.mcpServer.AddTool(infoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleParsePayload(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, err := request.RequireString("payload")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.Parse(paperwork.ParseRequest{Payload: payload})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatParseResult(result)), nil
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, err := request.RequireString("payload")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := paperwork.GenerateRequest{
		Payload: payload,
		Transaction: documents.Transaction{
			Phone:         request.GetString("phone", ""),
			Email:         request.GetString("email", ""),
			VIN:           request.GetString("vin", ""),
			Year:          request.GetString("year", ""),
			Make:          request.GetString("make", ""),
			Model:         request.GetString("model", ""),
			YearMakeModel: request.GetString("ymm", ""),
			Price:         request.GetString("price", ""),
			SaleDate:      request.GetString("sale_date", ""),
		},
	}

	result, err := s.service.Generate(ctx, req)
	if err != nil {
		if s.config.IsDebug() {
			log.Printf("paperwork_generate failed: %v", err)
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatGenerateResult(result)), nil
}

func (s *Server) handleTemplateFields(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := documents.ParseKind(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.TemplateFields(kind)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatTemplateFieldsResult(result)), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo(s.service.Info())), nil
}

// Formatting functions

func (s *Server) formatParseResult(result *paperwork.ParseResult) string {
	p := result.Person
	var b strings.Builder
	fmt.Fprintf(&b, "Parsed %d elements\n\n", result.TokenCount)
	writeRow(&b, "Full Name", p.FullName)
	writeRow(&b, "First Name", p.FirstName)
	writeRow(&b, "Middle Name", p.MiddleName)
	writeRow(&b, "Last Name", p.LastName)
	writeRow(&b, "Date of Birth", p.DateOfBirth)
	writeRow(&b, "Issue Date", p.IssueDate)
	writeRow(&b, "Expiry Date", p.ExpiryDate)
	writeRow(&b, "Address", documents.FormatAddress(p))
	writeRow(&b, "License Number", p.LicenseNumber)

	if len(result.Skipped) > 0 {
		fmt.Fprintf(&b, "\nSkipped %d line(s):\n", len(result.Skipped))
		for _, line := range result.Skipped {
			fmt.Fprintf(&b, "  line %d (%s): %q\n", line.Number, line.Reason, line.Raw)
		}
	}
	return b.String()
}

func (s *Server) formatGenerateResult(result *paperwork.GenerateResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", result.RequestID)
	fmt.Fprintf(&b, "Customer: %s\n", result.Person.FullName)
	fmt.Fprintf(&b, "Sale Date: %s\n", result.Transaction.SaleDate)

	for _, w := range result.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}

	for _, doc := range result.Documents {
		fmt.Fprintf(&b, "\n%s\n", doc.Title)
		fmt.Fprintf(&b, "  Path: %s (%d bytes)\n", doc.Path, doc.Size)
		fmt.Fprintf(&b, "  Filled: %s\n", strings.Join(doc.Filled, ", "))
		if len(doc.Missing) > 0 {
			fmt.Fprintf(&b, "  Not in template: %s\n", strings.Join(doc.Missing, ", "))
		}
	}

	if len(result.Skipped) > 0 {
		fmt.Fprintf(&b, "\nSkipped %d payload line(s)\n", len(result.Skipped))
	}
	return b.String()
}

func (s *Server) formatTemplateFieldsResult(result *paperwork.TemplateFieldsResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s template: %s\n", result.Kind.Title(), result.Path)
	fmt.Fprintf(&b, "Pages: %d\n", result.Pages)
	fmt.Fprintf(&b, "Widgets: %d\n", len(result.Fields))
	for i, f := range result.Fields {
		fmt.Fprintf(&b, "  %d. %s (type %s, page %d)\n", i+1, f.Name, orDash(f.Type), f.Page)
	}
	if len(result.Missing) > 0 {
		fmt.Fprintf(&b, "\nMissing schema fields: %s\n", strings.Join(result.Missing, ", "))
	} else {
		b.WriteString("\nEvery schema field has a widget\n")
	}
	return b.String()
}

func (s *Server) formatServerInfo(info paperwork.ServerInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	fmt.Fprintf(&b, "Template Directory: %s\n", info.TemplateDirectory)
	fmt.Fprintf(&b, "Output Directory: %s\n", info.OutputDirectory)
	fmt.Fprintf(&b, "Max Payload Size: %d bytes\n\n", info.MaxPayloadSize)

	b.WriteString("Templates:\n")
	for _, t := range info.Templates {
		status := "present"
		if !t.Present {
			status = "MISSING"
		}
		fmt.Fprintf(&b, "  %s: %s (%s)\n", t.Kind.Title(), t.Path, status)
	}

	b.WriteString("\nAvailable Tools:\n")
	for _, name := range []string{"aamva_parse_payload", "paperwork_generate", "paperwork_template_fields", "paperwork_server_info"} {
		fmt.Fprintf(&b, "  • %s\n", name)
	}
	return b.String()
}

func writeRow(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%-15s %s\n", label+":", orDash(value))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting DealerLite MCP server in stdio mode")
		log.Printf("Template directory: %s", s.config.TemplateDirectory)
		log.Printf("Output directory: %s", s.config.OutputDirectory)
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
