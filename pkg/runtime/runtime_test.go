package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasrohde/steptrace/pkg/config"
	"github.com/thomasrohde/steptrace/pkg/diagnostics"
	"github.com/thomasrohde/steptrace/pkg/evaluator"
	"github.com/thomasrohde/steptrace/pkg/stdlib"
)

func TestExecute_Success(t *testing.T) {
	rt := New()
	res, err := rt.Execute(context.Background(), "let x = 5;\nlet y = 10;\nlet sum = x + y;", "sum.js")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	require.Len(t, res.Steps, 5)
	assert.Equal(t, evaluator.StepStart, res.Steps[0].Kind)
	assert.Equal(t, evaluator.StepEnd, res.Steps[4].Kind)
	assert.Equal(t, 3, res.Steps[4].Line)
	assert.Equal(t, "sum.js", res.File)
}

func TestExecute_SyntaxError(t *testing.T) {
	rt := New()
	res, err := rt.Execute(context.Background(), "let = ;", "bad.js")
	require.Error(t, err)

	var diagErr *DiagnosticError
	require.True(t, errors.As(err, &diagErr))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Syntax Error: ")
	assert.Equal(t, diagnostics.EParse, res.Code)
	assert.NotNil(t, res.Steps)
	assert.Empty(t, res.Steps)
}

func TestExecute_RuntimeError(t *testing.T) {
	rt := New()
	res, err := rt.Execute(context.Background(), "y = 5;", "unbound.js")
	require.Error(t, err)

	var rtErr *evaluator.RuntimeError
	require.True(t, errors.As(err, &rtErr))
	assert.False(t, res.Success)
	assert.Equal(t, "Variable 'y' is not defined", res.Error)
	assert.Equal(t, diagnostics.EUnbound, res.Code)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, evaluator.StepError, res.Steps[1].Kind)
	require.Len(t, res.Diagnostics, 1)
	require.NotNil(t, res.Diagnostics[0].Span)
	assert.Equal(t, "unbound.js", res.Diagnostics[0].Span.File)
}

func TestExecute_WarningsDoNotBlock(t *testing.T) {
	rt := New()
	res, err := rt.Execute(context.Background(), "let x = 1;\nswitch (x) { case 1: x = 2; }", "warn.js")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, diagnostics.WUnsupported, res.Warnings[0].Code)
}

func TestResultJSON(t *testing.T) {
	rt := New()

	res, _ := rt.Execute(context.Background(), "let x = 1;", "ok.js")
	b, err := json.Marshal(res)
	require.NoError(t, err)
	var ok map[string]any
	require.NoError(t, json.Unmarshal(b, &ok))
	assert.Equal(t, true, ok["success"])
	assert.NotContains(t, ok, "error")
	assert.Len(t, ok["steps"], 3)

	res, _ = rt.Execute(context.Background(), "let x = ;", "bad.js")
	b, err = json.Marshal(res)
	require.NoError(t, err)
	var failed map[string]any
	require.NoError(t, json.Unmarshal(b, &failed))
	assert.Equal(t, false, failed["success"])
	assert.Contains(t, failed["error"], "Syntax Error")
	assert.Equal(t, []any{}, failed["steps"])
}

func TestOptions(t *testing.T) {
	src := "let c = 0;\nfunction inc() { c = c + 1; }\ninc();\nfor (let i = 0; i < 10; i++) {}"

	res, err := New(WithIterationCap(5)).Execute(context.Background(), src, "cap.js")
	require.Error(t, err)
	assert.Equal(t, diagnostics.EInfiniteLoop, res.Code)

	cfg := config.Default()
	cfg.LocalAssignment = true
	res, err = New(WithConfig(cfg)).Execute(context.Background(), src, "local.js")
	require.NoError(t, err)
	c, ok := res.Steps[len(res.Steps)-1].Variables.Get("c")
	require.True(t, ok)
	assert.Equal(t, "0", evaluator.FormatValue(c))

	res, err = New(WithMaxCallDepth(3)).Execute(context.Background(), "function f() { return f(); }\nf();", "deep.js")
	require.Error(t, err)
	assert.Equal(t, "Maximum call stack size exceeded", res.Error)
}

func TestWithStdlib(t *testing.T) {
	reg := stdlib.NewRegistry()
	rt := New(WithStdlib(reg))
	res, err := rt.Execute(context.Background(), "[1].push(2);", "empty.js")
	require.Error(t, err)
	assert.Equal(t, diagnostics.EUnsupported, res.Code)
	assert.Empty(t, rt.Methods(stdlib.ArrayReceiver))
	assert.Contains(t, New().Methods(stdlib.StringReceiver), "toUpperCase")
}

func TestExecuteAll_PreservesOrder(t *testing.T) {
	rt := New(WithParallel(3))
	var sources []Source
	for i := 0; i < 8; i++ {
		sources = append(sources, Source{
			Name: fmt.Sprintf("p%d.js", i),
			Text: fmt.Sprintf("let n = %d;\nfor (let i = 0; i < %d; i++) { n = n + 1; }", i, i*10),
		})
	}
	sources = append(sources, Source{Name: "bad.js", Text: "let = 1;"})

	results, err := rt.ExecuteAll(context.Background(), sources)
	require.NoError(t, err)
	require.Len(t, results, len(sources))
	for i := 0; i < 8; i++ {
		r := results[i]
		assert.Equal(t, sources[i].Name, r.File)
		require.True(t, r.Success, r.Error)
		n, _ := r.Steps[len(r.Steps)-1].Variables.Get("n")
		assert.Equal(t, fmt.Sprint(i*11), evaluator.FormatValue(n))
	}
	assert.False(t, results[8].Success)
}

func TestExecuteAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().ExecuteAll(ctx, []Source{{Name: "a.js", Text: "let a = 1;"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheck(t *testing.T) {
	rt := New()
	assert.Empty(t, rt.Check("let x = 1;", "ok.js"))

	diags := rt.Check("let x = 1;\nbreak;", "brk.js")
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.EBreakOutsideLoop, diags[0].Code)

	diags = rt.Check("let x = ", "bad.js")
	require.NotEmpty(t, diags)
	assert.Equal(t, diagnostics.EParse, diags[0].Code)
}

func TestFormat(t *testing.T) {
	rt := New()
	out, err := rt.Format("let x=1", "f.js")
	require.NoError(t, err)
	assert.Equal(t, "let x = 1;\n", out)

	_, err = rt.Format("let = 1", "f.js")
	var diagErr *DiagnosticError
	require.True(t, errors.As(err, &diagErr))
	assert.Contains(t, diagErr.Error(), diagnostics.EParse)
}
