// Package api contains the request and response contracts of the datatidy
// HTTP API. Version v1 represents the current stable API version.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MissingValueOperation is one remediation rule in a clean request.
// None of its fields are validated: incomplete or unknown rules are
// reported as skipped operations rather than rejected.
type MissingValueOperation struct {
	Column      string       `json:"column"`
	MissingType string       `json:"missingType"`
	Action      string       `json:"action"`
	Replacement *Replacement `json:"replacement,omitempty"`
}

// CleanOperations groups the pipeline steps of a clean request.
type CleanOperations struct {
	DropDuplicates         bool                    `json:"drop_duplicates"`
	MissingValueOperations []MissingValueOperation `json:"missing_value_operations"`
	DropColumns            []string                `json:"drop_columns"`
}

// CleanRequest is the body of POST /clean.
type CleanRequest struct {
	Filename   string          `json:"filename" validate:"required,filename"`
	Operations CleanOperations `json:"operations"`
}

// ViewQuery carries the query parameters of GET /data-view/{filename}.
// Nil fields take the server defaults.
type ViewQuery struct {
	Type  string `json:"type" query:"type"`
	N     *int   `json:"n,omitempty" query:"n"`
	Start *int   `json:"start,omitempty" query:"start"`
}

// Replacement is a replacement literal. Clients send it either as a JSON
// string or as a JSON number; both are kept as their literal text. JSON null
// leaves the pointer nil.
type Replacement string

// UnmarshalJSON accepts a string, number or boolean literal.
func (r *Replacement) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("replacement: empty value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("replacement: %w", err)
		}
		*r = Replacement(s)
	case 't', 'f':
		b, err := strconv.ParseBool(string(data))
		if err != nil {
			return fmt.Errorf("replacement: invalid literal %s", data)
		}
		if b {
			*r = "True"
		} else {
			*r = "False"
		}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("replacement: must be a string or a number")
		}
		*r = Replacement(n.String())
	}
	return nil
}

// String returns the literal text.
func (r Replacement) String() string { return string(r) }

// Ptr returns the literal as a *string, or nil for a nil receiver.
func (r *Replacement) Ptr() *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}

// NormalizeFormat lowercases an export format name.
func NormalizeFormat(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}
