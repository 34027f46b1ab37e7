// Package loom provides the public API for the Loom compiler.
//
// Compile is the throwing variant: it returns the IR or the first
// problem in source order as a structured *Error. Check is the
// non-throwing variant for editors and tooling: it always returns a
// result carrying every diagnostic the pipeline produced.
package loom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loom-lang/loom/internal/analyzer"
	"github.com/loom-lang/loom/internal/diag"
	"github.com/loom-lang/loom/internal/normalizer"
	"github.com/loom-lang/loom/internal/parser"
	"github.com/loom-lang/loom/ir"
)

// Error is a structured compile failure.
type Error struct {
	File       string
	Line       int // 1-based
	Column     int // 1-based
	Code       string
	Message    string
	SourceLine string // trimmed text of the offending line
}

// Error implements the error interface.
// Format: filename:line:column: message [code]
func (e *Error) Error() string {
	var b strings.Builder
	if e.File != "" {
		fmt.Fprintf(&b, "%s:", e.File)
	}
	fmt.Fprintf(&b, "%d:%d: %s", e.Line, e.Column, e.Message)
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	return b.String()
}

// Diagnostic represents a compiler diagnostic in public form.
type Diagnostic struct {
	File       string
	Line       int
	Column     int
	Severity   string // "error", "warning", "info", "hint"
	Code       string
	Message    string
	SourceLine string
	Hint       string // optional suggestion, e.g. `did you mean "User"?`
}

// String returns a human-readable representation of the diagnostic.
// Format: filename:line:column: severity: message [code]
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.File != "" {
		fmt.Fprintf(&b, "%s:", d.File)
	}
	fmt.Fprintf(&b, "%d:%d: %s: %s", d.Line, d.Column, d.Severity, d.Message)
	if d.Code != "" {
		fmt.Fprintf(&b, " [%s]", d.Code)
	}
	return b.String()
}

// CompileResult contains the result of a Check run. App is non-nil
// exactly when no error-severity diagnostic was produced; warnings do
// not block the build.
type CompileResult struct {
	App         *ir.Application
	Diagnostics []Diagnostic
	HasErrors   bool
}

// Compile compiles Loom source into its IR. The filename is used only
// to annotate positions. On failure the returned error is a *Error
// describing the first problem in source order.
func Compile(source, filename string) (*ir.Application, error) {
	file, err := parser.Parse(source, filename)
	if err != nil {
		return nil, toError(err, source)
	}

	_, diags := analyzer.Analyze(file)
	if diags.HasErrors() {
		first := diags.Errors()[0]
		return nil, &Error{
			File:       first.Range.Start.Filename,
			Line:       first.Range.Start.Line,
			Column:     first.Range.Start.Column,
			Code:       first.Code,
			Message:    first.Message,
			SourceLine: sourceLine(source, first.Range.Start.Line),
		}
	}

	return normalizer.Normalize(file), nil
}

// Check validates Loom source without failing. A lex or syntax error
// surfaces as a single-entry diagnostics list; semantic problems come
// back exhaustively.
func Check(source, filename string) *CompileResult {
	result := &CompileResult{}

	file, err := parser.Parse(source, filename)
	if err != nil {
		var cerr *diag.Err
		if errors.As(err, &cerr) {
			result.Diagnostics = append(result.Diagnostics, toDiagnostic(cerr.Diagnostic(), source))
		} else {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				File:     filename,
				Severity: "error",
				Message:  err.Error(),
			})
		}
		result.HasErrors = true
		return result
	}

	_, diags := analyzer.Analyze(file)
	for _, d := range diags.All() {
		result.Diagnostics = append(result.Diagnostics, toDiagnostic(d, source))
		if d.Severity == diag.Error {
			result.HasErrors = true
		}
	}

	if result.HasErrors {
		return result
	}

	result.App = normalizer.Normalize(file)
	return result
}

func toDiagnostic(d diag.Diagnostic, source string) Diagnostic {
	return Diagnostic{
		File:       d.Range.Start.Filename,
		Line:       d.Range.Start.Line,
		Column:     d.Range.Start.Column,
		Severity:   d.Severity.String(),
		Code:       d.Code,
		Message:    d.Message,
		SourceLine: sourceLine(source, d.Range.Start.Line),
		Hint:       d.Hint,
	}
}

func toError(err error, source string) *Error {
	var cerr *diag.Err
	if errors.As(err, &cerr) {
		return &Error{
			File:       cerr.Pos.Filename,
			Line:       cerr.Pos.Line,
			Column:     cerr.Pos.Column,
			Code:       cerr.Code,
			Message:    cerr.Message,
			SourceLine: sourceLine(source, cerr.Pos.Line),
		}
	}
	return &Error{Message: err.Error()}
}

// sourceLine returns the trimmed text of the given 1-based line, or an
// empty string when the line is out of range.
func sourceLine(source string, line int) string {
	if line < 1 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}
