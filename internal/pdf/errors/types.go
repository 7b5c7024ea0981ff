package errors

import (
	"fmt"
	"strings"
)

// PDFError describes a structural problem met while reading or filling a form
type PDFError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Context    string    `json:"context,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
	Field      string    `json:"field,omitempty"`
	PageNumber int       `json:"page_number,omitempty"`
	Err        error     `json:"-"`
}

// ErrorType represents the categories of form errors callers can tell apart
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeInvalidTemplate
	ErrorTypeNoAcroForm
	ErrorTypeNoWidgetsMatched
	ErrorTypeUnsupportedWidget
	ErrorTypeInvalidForm
	ErrorTypeWriteFailed
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// Error implements the error interface
func (e *PDFError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type.String(), e.Message)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s", e.Field)
		if e.PageNumber > 0 {
			fmt.Fprintf(&b, ", page %d", e.PageNumber)
		}
		b.WriteString(")")
	}
	if e.Context != "" {
		fmt.Fprintf(&b, ": %s", e.Context)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any
func (e *PDFError) Unwrap() error {
	return e.Err
}

// Is matches any PDFError of the same type, so sentinel values built with
// New can be used with errors.Is.
func (e *PDFError) Is(target error) bool {
	t, ok := target.(*PDFError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeInvalidTemplate:
		return "INVALID_TEMPLATE"
	case ErrorTypeNoAcroForm:
		return "NO_ACROFORM"
	case ErrorTypeNoWidgetsMatched:
		return "NO_WIDGETS_MATCHED"
	case ErrorTypeUnsupportedWidget:
		return "UNSUPPORTED_WIDGET"
	case ErrorTypeInvalidForm:
		return "INVALID_FORM"
	case ErrorTypeWriteFailed:
		return "WRITE_FAILED"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeInvalidTemplate, ErrorTypeWriteFailed:
		return SeverityCritical
	case ErrorTypeNoAcroForm, ErrorTypeNoWidgetsMatched:
		return SeverityError
	case ErrorTypeUnsupportedWidget, ErrorTypeInvalidForm:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// New creates a PDFError of the given type
func New(errorType ErrorType, message string) *PDFError {
	return &PDFError{Type: errorType, Message: message}
}

// Wrap wraps err as a PDFError of the given type
func Wrap(errorType ErrorType, message string, err error) *PDFError {
	return &PDFError{Type: errorType, Message: message, Err: err}
}

// WithContext returns a copy carrying additional context
func (e *PDFError) WithContext(context string) *PDFError {
	c := *e
	c.Context = context
	return &c
}

// WithFile returns a copy carrying the file path
func (e *PDFError) WithFile(filePath string) *PDFError {
	c := *e
	c.FilePath = filePath
	return &c
}

// WithField returns a copy naming the form field and page it concerns
func (e *PDFError) WithField(field string, page int) *PDFError {
	c := *e
	c.Field = field
	c.PageNumber = page
	return &c
}

// GetSeverity returns the severity of this specific error
func (e *PDFError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// ErrorCollection gathers per-field errors from one fill so that a single bad
// widget does not hide the others.
type ErrorCollection struct {
	Errors   []*PDFError `json:"errors"`
	FilePath string      `json:"file_path,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(filePath string) *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*PDFError, 0),
		FilePath: filePath,
	}
}

// Add appends an error, stamping the collection's file path on it
func (ec *ErrorCollection) Add(err *PDFError) {
	if err.FilePath == "" && ec.FilePath != "" {
		err = err.WithFile(ec.FilePath)
	}
	ec.Errors = append(ec.Errors, err)
}

// Len returns the number of collected errors
func (ec *ErrorCollection) Len() int {
	return len(ec.Errors)
}

// Err returns nil when empty, the single error when there is one, and the
// collection itself otherwise.
func (ec *ErrorCollection) Err() error {
	switch len(ec.Errors) {
	case 0:
		return nil
	case 1:
		return ec.Errors[0]
	default:
		return ec
	}
}

// Error implements the error interface
func (ec *ErrorCollection) Error() string {
	msgs := make([]string, 0, len(ec.Errors))
	for _, err := range ec.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d form error(s): %s", len(ec.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (ec *ErrorCollection) Unwrap() []error {
	out := make([]error, 0, len(ec.Errors))
	for _, err := range ec.Errors {
		out = append(out, err)
	}
	return out
}

// Summary returns a text summary of all errors
func (ec *ErrorCollection) Summary() string {
	if len(ec.Errors) == 0 {
		return "No errors"
	}
	return fmt.Sprintf("Found %d error(s)", len(ec.Errors))
}
