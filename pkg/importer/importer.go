// Package importer parses password exports from browsers and other
// password managers into import candidates.
//
// Parsing is best effort: rows that cannot yield a secret are skipped,
// never fatal. Candidates are not stored here; callers submit them through
// the vault's normal create path.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/quantavault/pkg/vault"
)

// Format identifies the layout of an export file.
type Format string

const (
	FormatGoogle        Format = "google"
	FormatChrome        Format = "chrome"
	FormatFirefox       Format = "firefox"
	FormatLastPass      Format = "lastpass"
	FormatBitwarden     Format = "bitwarden"
	Format1Password     Format = "1password"
	FormatSafari        Format = "safari"
	FormatGeneric       Format = "generic"
	FormatBitwardenJSON Format = "bitwarden-json"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("importer: unknown import format")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Candidate is one parsed credential awaiting import.
type Candidate struct {
	Title    string `json:"title"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
	URL      string `json:"url,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Draft converts c into a vault draft owned by owner, tagged as imported.
func (c Candidate) Draft(owner string) vault.Draft {
	return vault.Draft{
		Owner:    owner,
		Title:    c.Title,
		Username: c.Username,
		Secret:   c.Secret,
		URL:      c.URL,
		Notes:    c.Notes,
		Category: vault.CategoryImported,
	}
}

// Drafts converts candidates into vault drafts, preserving order.
func Drafts(candidates []Candidate, owner string) []vault.Draft {
	drafts := make([]vault.Draft, 0, len(candidates))
	for _, c := range candidates {
		drafts = append(drafts, c.Draft(owner))
	}
	return drafts
}

// Skipped describes an input row that produced no candidate.
type Skipped struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Result contains the outcome of ParseDetailed.
type Result struct {
	Format     Format      `json:"format"`
	Candidates []Candidate `json:"candidates"`
	Skipped    []Skipped   `json:"skipped,omitempty"`
}

// Formats returns the supported format names in sorted order.
func Formats() []string {
	names := make([]string, 0, len(schemas)+3)
	for f := range schemas {
		names = append(names, string(f))
	}
	names = append(names, string(FormatSafari), string(FormatGeneric), string(FormatBitwardenJSON))
	sort.Strings(names)
	return names
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatSafari, FormatGeneric, FormatBitwardenJSON:
		return f, nil
	}
	if _, ok := schemas[f]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q (valid: %s)", ErrUnknownFormat, s, strings.Join(Formats(), ", "))
}

// Parse returns the candidates found in csvText. Unknown formats use the
// header heuristic of FormatGeneric.
func Parse(csvText string, format Format) []Candidate {
	return ParseDetailed([]byte(csvText), format).Candidates
}

// ParseDetailed parses data and also reports the rows that were skipped.
func ParseDetailed(data []byte, format Format) *Result {
	data = bytes.TrimPrefix(data, utf8BOM)
	if format == FormatBitwardenJSON {
		return parseBitwardenJSON(data)
	}

	result := &Result{Format: format, Candidates: make([]Candidate, 0)}

	reader := csv.NewReader(bytes.NewReader(norm.NFC.Bytes(data)))
	reader.LazyQuotes = true // exports are frequently malformed
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err != io.EOF {
			result.Skipped = append(result.Skipped, Skipped{Line: 1, Reason: "unreadable header: " + err.Error()})
		}
		return result
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	schema, ok := schemas[format]
	if !ok {
		schema = headerSchema(header)
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				result.Skipped = append(result.Skipped, Skipped{Reason: err.Error()})
				break
			}
			result.Skipped = append(result.Skipped, Skipped{Line: perr.Line, Reason: "malformed row: " + perr.Err.Error()})
			continue
		}
		line, _ := reader.FieldPos(0)

		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		if isBlank(row) {
			continue
		}

		c, reason := schema.candidate(row)
		if reason != "" {
			result.Skipped = append(result.Skipped, Skipped{Line: line, Reason: reason})
			continue
		}
		result.Candidates = append(result.Candidates, c)
	}
	return result
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if !IsEmptyOrWhitespace(cell) {
			return false
		}
	}
	return true
}

// IsEmptyOrWhitespace checks if a string is empty or contains only whitespace.
func IsEmptyOrWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
