// Package aamva decodes the text payload of a driver's-license PDF417 barcode
// into a normalized Person record.
package aamva

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IdentifierLength is the number of characters in an AAMVA element code
const IdentifierLength = 3

// LineKind tells whether a payload line produced a token
type LineKind int

const (
	LineToken LineKind = iota
	LineSkipped
)

// SkipReason explains why a payload line was discarded
type SkipReason string

const (
	SkipNone               SkipReason = ""
	SkipBlank              SkipReason = "blank"
	SkipTooShort           SkipReason = "too_short"
	SkipNonAlphaIdentifier SkipReason = "non_alpha_identifier"
)

// Token is a single element decoded from one payload line
type Token struct {
	Identifier string `json:"identifier"`
	Value      string `json:"value"`
}

// Line is the result of parsing one payload line: either a token or a skip
type Line struct {
	Number int        `json:"number"`
	Raw    string     `json:"raw"`
	Kind   LineKind   `json:"kind"`
	Token  Token      `json:"token,omitempty"`
	Reason SkipReason `json:"reason,omitempty"`
}

// Tokens maps element codes to the last value seen for them
type Tokens map[string]string

// Get returns the value for an element code, or "" when absent
func (t Tokens) Get(identifier string) string {
	return t[identifier]
}

// Has reports whether the element code was present in the payload
func (t Tokens) Has(identifier string) bool {
	_, ok := t[identifier]
	return ok
}

// Tokenization is the full outcome of tokenizing a payload
type Tokenization struct {
	Tokens  Tokens `json:"tokens"`
	Skipped []Line `json:"skipped,omitempty"`
}

// ParseLine classifies a single payload line. The first three characters are
// the candidate identifier and must all be letters; the remainder, trimmed, is
// the value.
func ParseLine(number int, raw string) Line {
	line := Line{Number: number, Raw: raw, Kind: LineSkipped}

	if strings.TrimSpace(raw) == "" {
		line.Reason = SkipBlank
		return line
	}

	if utf8.RuneCountInString(raw) < IdentifierLength {
		line.Reason = SkipTooShort
		return line
	}

	// Split on rune boundaries so multi-byte input cannot cut a character.
	split := 0
	for i := 0; i < IdentifierLength; i++ {
		r, size := utf8.DecodeRuneInString(raw[split:])
		if !unicode.IsLetter(r) {
			line.Reason = SkipNonAlphaIdentifier
			return line
		}
		split += size
	}

	line.Kind = LineToken
	line.Token = Token{
		Identifier: raw[:split],
		Value:      strings.TrimSpace(raw[split:]),
	}
	return line
}

// Tokenize splits a payload on line boundaries and builds the token table.
// Later lines overwrite earlier ones with the same identifier. Nothing here is
// fatal: malformed lines are reported in Skipped.
func Tokenize(payload string) Tokenization {
	result := Tokenization{Tokens: make(Tokens)}

	for i, raw := range splitLines(payload) {
		line := ParseLine(i+1, raw)
		switch line.Kind {
		case LineToken:
			result.Tokens[line.Token.Identifier] = line.Token.Value
		case LineSkipped:
			// Blank lines are noise, not diagnostics
			if line.Reason != SkipBlank {
				result.Skipped = append(result.Skipped, line)
			}
		}
	}

	return result
}

// splitLines breaks text on every line boundary a barcode decoder may emit,
// including the ASCII record, group and file separators used by AAMVA.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.FieldsFunc(s, isLineBreak)
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
