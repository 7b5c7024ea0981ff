package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/a3tai/dealerlite/internal/aamva"
	"github.com/a3tai/dealerlite/internal/documents"
	"github.com/a3tai/dealerlite/internal/pdf/acroform"
	"github.com/a3tai/dealerlite/internal/pdf/template"
)

// options holds the parsed command line
type options struct {
	payload  string
	kind     string
	template string
	out      string
	format   string
	deal     documents.Transaction
}

// FillResult is printed after a document has been written
type FillResult struct {
	Kind        documents.Kind `json:"kind"`
	Template    string         `json:"template"`
	Output      string         `json:"output"`
	Person      aamva.Person   `json:"person"`
	Filled      []string       `json:"filled"`
	Missing     []string       `json:"missing,omitempty"`
	Unsupported []string       `json:"unsupported,omitempty"`
	Skipped     []aamva.Line   `json:"skipped,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		fs.Usage()
		return 2
	}

	result, err := fill(opts, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := printResult(stdout, opts.format, result); err != nil {
		fmt.Fprintf(stderr, "Error outputting results: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (*options, *pflag.FlagSet, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("fill-forms", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.payload, "payload", "", "File holding the decoded barcode payload, '-' for stdin")
	fs.StringVar(&opts.kind, "kind", string(documents.KindWaiver), "Document kind: waiver or bos")
	fs.StringVar(&opts.template, "template", "", "Template PDF (default: generated stock template)")
	fs.StringVar(&opts.out, "out", "", "Where to write the filled PDF")
	fs.StringVar(&opts.format, "format", "text", "Output format: text, json")

	fs.StringVar(&opts.deal.Phone, "phone", "", "Customer phone number")
	fs.StringVar(&opts.deal.Email, "email", "", "Customer email address")
	fs.StringVar(&opts.deal.VIN, "vin", "", "Vehicle identification number")
	fs.StringVar(&opts.deal.Year, "year", "", "Vehicle model year")
	fs.StringVar(&opts.deal.Make, "make", "", "Vehicle make")
	fs.StringVar(&opts.deal.Model, "model", "", "Vehicle model")
	fs.StringVar(&opts.deal.YearMakeModel, "ymm", "", "Vehicle description for the waiver")
	fs.StringVar(&opts.deal.Price, "price", "", "Sale price")
	fs.StringVar(&opts.deal.SaleDate, "sale-date", "", "Sale date as YYYY-MM-DD")

	fs.Usage = func() {
		fmt.Fprintln(stderr, "Fill a dealership form from a driver's license payload")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "USAGE:")
		fmt.Fprintln(stderr, "  fill-forms --payload payload.txt --kind waiver --out waiver.pdf [OPTIONS]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "OPTIONS:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	if opts.payload == "" {
		return nil, fs, fmt.Errorf("--payload is required")
	}
	if opts.out == "" {
		return nil, fs, fmt.Errorf("--out is required")
	}
	if opts.format != "text" && opts.format != "json" {
		return nil, fs, fmt.Errorf("unknown format %q", opts.format)
	}
	return opts, fs, nil
}

func fill(opts *options, stdin io.Reader) (*FillResult, error) {
	kind, err := documents.ParseKind(opts.kind)
	if err != nil {
		return nil, err
	}

	payload, err := readPayload(opts.payload, stdin)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload) == "" {
		return nil, fmt.Errorf("payload is empty")
	}

	deal := opts.deal.Trimmed()
	if err := deal.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction fields: %w", err)
	}

	data, source, err := loadTemplate(kind, opts.template)
	if err != nil {
		return nil, err
	}

	parsed := aamva.Parse(payload)
	fields, err := documents.Build(kind, parsed.Person, deal)
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
	if err := os.WriteFile(opts.out, out, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", opts.out, err)
	}

	return &FillResult{
		Kind:        kind,
		Template:    source,
		Output:      opts.out,
		Person:      parsed.Person,
		Filled:      report.Filled,
		Missing:     report.Missing,
		Unsupported: report.Unsupported,
		Skipped:     parsed.Skipped,
		Warnings:    deal.Warnings(),
	}, nil
}

func readPayload(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read payload from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read payload: %w", err)
	}
	return string(data), nil
}

// loadTemplate reads the template file, or builds the stock layout when none is given
func loadTemplate(kind documents.Kind, path string) ([]byte, string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read template: %w", err)
		}
		return data, path, nil
	}

	layout, err := template.LayoutFor(kind)
	if err != nil {
		return nil, "", err
	}
	data, err := template.Build(layout)
	if err != nil {
		return nil, "", err
	}
	return data, "stock", nil
}

func printResult(w io.Writer, format string, result *FillResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(w, "%s written to %s\n", result.Kind.Title(), result.Output)
	fmt.Fprintf(w, "Template: %s\n", result.Template)
	fmt.Fprintf(w, "Customer: %s\n", result.Person.FullName)
	fmt.Fprintf(w, "Filled (%d): %s\n", len(result.Filled), strings.Join(result.Filled, ", "))
	if len(result.Missing) > 0 {
		fmt.Fprintf(w, "Missing (%d): %s\n", len(result.Missing), strings.Join(result.Missing, ", "))
	}
	if len(result.Unsupported) > 0 {
		fmt.Fprintf(w, "Unsupported (%d): %s\n", len(result.Unsupported), strings.Join(result.Unsupported, ", "))
	}
	for _, line := range result.Skipped {
		fmt.Fprintf(w, "Skipped line %d (%s): %q\n", line.Number, line.Reason, line.Raw)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	return nil
}
