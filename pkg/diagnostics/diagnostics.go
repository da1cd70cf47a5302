// Package diagnostics defines diagnostic types for parse, validation, and runtime errors.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thomasrohde/steptrace/pkg/ast"
)

// Diagnostic code constants.
const (
	ELex                   = "E_LEX"
	EParse                 = "E_PARSE"
	EUnbound               = "E_UNBOUND"
	EUnsupported           = "E_UNSUPPORTED"
	EInfiniteLoop          = "E_INFINITE_LOOP"
	ERuntime               = "E_RUNTIME"
	EBreakOutsideLoop      = "E_BREAK_OUTSIDE_LOOP"
	EReturnOutsideFunction = "E_RETURN_OUTSIDE_FUNCTION"
	EDupParam              = "E_DUP_PARAM"
	EConfig                = "E_CONFIG"
	EIO                    = "E_IO"

	WUnsupported = "W_UNSUPPORTED"
	WConstAssign = "W_CONST_ASSIGN"
)

// Diagnostic represents a parse, validation, or runtime diagnostic.
type Diagnostic struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Span    *ast.Span `json:"span,omitempty"`
	Hint    string    `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message string, span *ast.Span, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Span:    span,
		Hint:    hint,
	}
}

// IsWarning reports whether the diagnostic is advisory only.
func (d Diagnostic) IsWarning() bool {
	return strings.HasPrefix(d.Code, "W_")
}

// HasErrors reports whether any diagnostic in diags is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if !d.IsWarning() {
			return true
		}
	}
	return false
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	loc := "<unknown>"
	if d.Span != nil {
		loc = fmt.Sprintf("%s:%d:%d", d.Span.File, d.Span.StartLine, d.Span.StartCol)
	}
	severity := "error"
	if d.IsWarning() {
		severity = "warning"
	}
	out := fmt.Sprintf("%s[%s]: %s\n  --> %s", severity, d.Code, d.Message, loc)
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}
