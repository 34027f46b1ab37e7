// Package diag provides structured diagnostics for the Loom compiler.
// Diagnostics are LSP-ready from day one.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loom-lang/loom/internal/token"
)

// Severity represents the severity of a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
	Hint
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Hint:
		return "hint"
	default:
		return "unknown"
	}
}

// Range represents a range in the source code.
type Range struct {
	Start token.Position
	End   token.Position
}

// Diagnostic represents a compiler diagnostic.
type Diagnostic struct {
	Range    Range
	Severity Severity
	Code     string // e.g., "E0302"
	Message  string
	Source   string // always "loom"
	Hint     string // optional suggestion, e.g. `did you mean "User"?`
}

// String returns a human-readable representation of the diagnostic.
func (d Diagnostic) String() string {
	var b strings.Builder

	// Format: filename:line:column: severity: message [code]
	if d.Range.Start.Filename != "" {
		fmt.Fprintf(&b, "%s:", d.Range.Start.Filename)
	}
	fmt.Fprintf(&b, "%d:%d: ", d.Range.Start.Line, d.Range.Start.Column)
	fmt.Fprintf(&b, "%s: %s", d.Severity, d.Message)
	if d.Code != "" {
		fmt.Fprintf(&b, " [%s]", d.Code)
	}

	return b.String()
}

// Diagnostics is a collection of diagnostics.
type Diagnostics struct {
	items []Diagnostic
}

// New creates a new Diagnostics collection.
func New() *Diagnostics {
	return &Diagnostics{
		items: make([]Diagnostic, 0),
	}
}

// Add adds a diagnostic to the collection.
func (d *Diagnostics) Add(diag Diagnostic) {
	d.items = append(d.items, diag)
}

// AddError adds an error diagnostic.
func (d *Diagnostics) AddError(r Range, code, message string) {
	d.Add(Diagnostic{
		Range:    r,
		Severity: Error,
		Code:     code,
		Message:  message,
		Source:   "loom",
	})
}

// AddErrorAt adds an error diagnostic at a specific position.
func (d *Diagnostics) AddErrorAt(pos token.Position, code, message string) {
	d.AddError(Range{Start: pos, End: pos}, code, message)
}

// AddErrorWithHint adds an error diagnostic carrying a suggestion.
func (d *Diagnostics) AddErrorWithHint(r Range, code, message, hint string) {
	d.Add(Diagnostic{
		Range:    r,
		Severity: Error,
		Code:     code,
		Message:  message,
		Source:   "loom",
		Hint:     hint,
	})
}

// AddWarning adds a warning diagnostic.
func (d *Diagnostics) AddWarning(r Range, code, message string) {
	d.Add(Diagnostic{
		Range:    r,
		Severity: Warning,
		Code:     code,
		Message:  message,
		Source:   "loom",
	})
}

// All returns all diagnostics.
func (d *Diagnostics) All() []Diagnostic {
	return d.items
}

// Errors returns all error diagnostics.
func (d *Diagnostics) Errors() []Diagnostic {
	var errors []Diagnostic
	for _, diag := range d.items {
		if diag.Severity == Error {
			errors = append(errors, diag)
		}
	}
	return errors
}

// Warnings returns all warning diagnostics.
func (d *Diagnostics) Warnings() []Diagnostic {
	var warnings []Diagnostic
	for _, diag := range d.items {
		if diag.Severity == Warning {
			warnings = append(warnings, diag)
		}
	}
	return warnings
}

// HasErrors returns true if there are any error diagnostics.
func (d *Diagnostics) HasErrors() bool {
	for _, diag := range d.items {
		if diag.Severity == Error {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics.
func (d *Diagnostics) Count() int {
	return len(d.items)
}

// Merge merges another Diagnostics collection into this one.
func (d *Diagnostics) Merge(other *Diagnostics) {
	d.items = append(d.items, other.items...)
}

// Sort orders the diagnostics by source position. The sort is stable so
// diagnostics at the same position keep their emission order.
func (d *Diagnostics) Sort() {
	sort.SliceStable(d.items, func(i, j int) bool {
		a, b := d.items[i].Range.Start, d.items[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Offset < b.Offset
	})
}

// Err is an unrecoverable compile error: a lex or syntax failure that
// aborts the pipeline before any AST exists. Semantic issues use
// Diagnostic instead and are collected, not thrown.
type Err struct {
	Code    string
	Message string
	Pos     token.Position
}

// Errorf builds an Err at the given position.
func Errorf(pos token.Position, code, format string, args ...interface{}) *Err {
	return &Err{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Pos:     pos,
	}
}

// Error implements the error interface.
// Format: filename:line:column: message [code]
func (e *Err) Error() string {
	var b strings.Builder
	if e.Pos.Filename != "" {
		fmt.Fprintf(&b, "%s:", e.Pos.Filename)
	}
	fmt.Fprintf(&b, "%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	return b.String()
}

// Diagnostic converts the error into a single diagnostic so the
// non-throwing API can report lex and syntax failures uniformly.
func (e *Err) Diagnostic() Diagnostic {
	return Diagnostic{
		Range:    Range{Start: e.Pos, End: e.Pos},
		Severity: Error,
		Code:     e.Code,
		Message:  e.Message,
		Source:   "loom",
	}
}

// Error codes for the Loom compiler.
// Format: E = Error, W = Warning
// First two digits = category, last two = specific error.
const (
	// Lexer errors (E01xx)
	ErrUnexpectedChar      = "E0101"
	ErrUnterminatedString  = "E0102"
	ErrInvalidNumber       = "E0103"
	ErrInvalidEscape       = "E0104"
	ErrUnterminatedComment = "E0105"

	// Parser errors (E02xx)
	ErrUnexpectedToken = "E0201"
	ErrExpectedToken   = "E0202"
	ErrExpectedIdent   = "E0203"
	ErrExpectedDecl    = "E0204"
	ErrExpectedValue   = "E0205"
	ErrInvalidAttr     = "E0206"

	// Semantic errors (E03xx)
	ErrDuplicateDecl      = "E0301"
	ErrUnknownType        = "E0302"
	ErrDuplicateField     = "E0303"
	ErrRelationTarget     = "E0304"
	ErrArgType            = "E0305"
	ErrAttrConflict       = "E0306"
	ErrMultiplePrimary    = "E0307"
	ErrMissingProperty    = "E0308"
	ErrUnresolvedRef      = "E0309"
	ErrBadPropertyValue   = "E0310"
	ErrEmptyEnum          = "E0311"
	ErrDuplicateEnumValue = "E0312"
	ErrNoEntities         = "E0313"

	// Warning codes (W03xx)
	WarnEnumCasing    = "W0301"
	WarnUnknownConfig = "W0302"
)
