package descriptions

// Tool descriptions with practical examples and use cases

const (
	AAMVAParsePayloadDescription = `Decode the PDF417 payload of a US or Canadian driver's license into a person record.

**When to use:** You have the raw text a barcode scanner produced from the back of a license and want the holder's name, date of birth, address and license number.

**Why it's useful:** Understands the AAMVA element codes (DCS, DAC, DAD, DCT, DBB, DBA, DBD, DAG, DAI, DAJ, DAK, DAQ), normalizes dates to YYYY-MM-DD and reports every line it had to drop.

**Examples:**
• Check a scan before filling paperwork: "Parse this payload and show me the customer's name and address"
• Troubleshoot a scanner: "Which lines of this payload were skipped and why?"

**Common workflows:**
1. Verify first: aamva_parse_payload → confirm details with the customer → paperwork_generate
2. Scanner diagnostics: aamva_parse_payload → inspect skipped lines → adjust scanner settings

**Best practices:** Missing elements come back as empty strings, never as errors. Dates that match no known layout are passed through unchanged.`

	PaperworkGenerateDescription = `Fill the test-drive waiver and the bill of sale from a license payload and the deal details.

**When to use:** A customer is about to test drive or buy a vehicle and both documents need their details.

**Why it's useful:** Parses the payload, maps it with the transaction onto each document's fixed field set and writes both filled PDFs under a fresh request id so concurrent customers never overwrite each other.

**Examples:**
• Test drive: "Generate paperwork for this payload, VIN 1HGCM82633A004352, 2021 Honda Accord, phone 555-0100"
• Sale: "Generate paperwork with price 18500.00 and sale date 2024-05-01"

**Common workflows:**
1. Desk flow: scan license → paperwork_generate → print both PDFs → customer signs
2. Template check: paperwork_template_fields → fix template → paperwork_generate

**Best practices:** The sale date defaults to today. The call fails loudly when a template has no AcroForm, has no widget for any schema field, or uses a non-text widget for a mapped field, rather than returning a blank document.`

	PaperworkTemplateFieldsDescription = `List the form widgets found in a document template and the schema fields it lacks.

**When to use:** A dealership dropped in its own waiver or bill-of-sale PDF and you want to know whether it will fill correctly.

**Why it's useful:** Reads the template independently of the filler and reports each widget's name, type and page together with the schema names that have no widget.

**Examples:**
• Validate a new waiver: "Which fields does the waiver template have?"
• Debug an empty document: "Is the bill of sale template missing SaleDate?"

**Best practices:** Widget names must match the schema exactly (case sensitive). Use kind 'waiver' or 'bos'.`

	PaperworkServerInfoDescription = `Show the template and output directories, the payload size limit and which templates are present.

**When to use:** Starting a session, or when generation fails because a template cannot be found.

**Why it's useful:** Gives the context needed to use the other tools correctly.

**Best practices:** Call this first when connecting to a new server.`
)

// ServiceGuide is the help page served at the root of the HTTP server
const ServiceGuide = `# DealerLite

Fills a **test-drive waiver** and a **bill of sale** from the PDF417 barcode on the back of a driver's license.

## Endpoints

| Method | Path | Purpose |
|---|---|---|
| GET | /health | Liveness check, never requires auth |
| POST | /scan | Fill both documents from form fields |
| GET | /download/{request}/{which} | Download a filled document, which is waiver or bos |
| POST | /mcp | Model Context Protocol endpoint |

## Scan form fields

- payload_text: the decoded barcode payload (required)
- phone, email
- vin, year, make, model, ymm
- price, sale_date (YYYY-MM-DD, defaults to today)

Example:

    curl -u desk:secret -F payload_text=@payload.txt -F vin=1HGCM82633A004352 http://localhost:5000/scan

## MCP tools

- aamva_parse_payload
- paperwork_generate
- paperwork_template_fields
- paperwork_server_info
`

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"aamva_parse_payload":       AAMVAParsePayloadDescription,
	"paperwork_generate":        PaperworkGenerateDescription,
	"paperwork_template_fields": PaperworkTemplateFieldsDescription,
	"paperwork_server_info":     PaperworkServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns a list of all available tool names
func GetAllToolNames() []string {
	var names []string
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	return names
}
