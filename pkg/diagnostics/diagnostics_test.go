package diagnostics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thomasrohde/steptrace/pkg/ast"
	"github.com/thomasrohde/steptrace/pkg/diagnostics"
)

func TestMakeDiag(t *testing.T) {
	span := &ast.Span{File: "test.js", StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 5}
	d := diagnostics.MakeDiag(diagnostics.EParse, "Unexpected token (1:1)", span, "check syntax")

	assert.Equal(t, diagnostics.EParse, d.Code)
	assert.Equal(t, "Unexpected token (1:1)", d.Message)
	assert.Equal(t, span, d.Span)
	assert.Equal(t, "check syntax", d.Hint)
}

func TestFormatDiagnosticPretty(t *testing.T) {
	span := &ast.Span{File: "test.js", StartLine: 3, StartCol: 5, EndLine: 3, EndCol: 10}
	d := diagnostics.MakeDiag(diagnostics.EUnbound, "Variable 'x' is not defined", span, "declare it with let")

	out := diagnostics.FormatDiagnostic(d, true)
	assert.Contains(t, out, "error[E_UNBOUND]")
	assert.Contains(t, out, "test.js:3:5")
	assert.Contains(t, out, "hint:")
}

func TestFormatWarningPretty(t *testing.T) {
	d := diagnostics.MakeDiag(diagnostics.WUnsupported, "'switch' statements are skipped", nil, "")
	out := diagnostics.FormatDiagnostic(d, true)
	assert.Regexp(t, `^warning\[W_UNSUPPORTED\]`, out)
	assert.Contains(t, out, "<unknown>")
}

func TestFormatDiagnosticJSON(t *testing.T) {
	d := diagnostics.MakeDiag(diagnostics.ELex, "bad token", nil, "")
	assert.Contains(t, diagnostics.FormatDiagnostic(d, false), `"code":"E_LEX"`)
}

func TestHasErrors(t *testing.T) {
	warn := diagnostics.MakeDiag(diagnostics.WUnsupported, "skipped", nil, "")
	err := diagnostics.MakeDiag(diagnostics.EParse, "bad", nil, "")

	assert.False(t, diagnostics.HasErrors(nil))
	assert.False(t, diagnostics.HasErrors([]diagnostics.Diagnostic{warn}), "warnings alone are not errors")
	assert.True(t, diagnostics.HasErrors([]diagnostics.Diagnostic{warn, err}))
}
