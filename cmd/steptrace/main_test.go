package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeProgram(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestRun_Success(t *testing.T) {
	file := writeProgram(t, "sum.js", "let x = 5;\nlet y = 10;\nlet sum = x + y;")
	res := runCLI(t, "", "run", file)
	require.Equal(t, exitOK, res.code, res.stderr)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, true, out["success"])
	assert.Len(t, out["steps"], 5)
}

func TestRun_Stdin(t *testing.T) {
	res := runCLI(t, "console.log('hi');", "run", "-", "--format", "text")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "> hi")
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code int
	}{
		{"syntax error", "let = 1;", exitSyntax},
		{"unbound", "y = 5;", exitRuntime},
		{"infinite loop", "while (true) {}", exitRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := writeProgram(t, "p.js", tt.src)
			res := runCLI(t, "", "run", file)
			assert.Equal(t, tt.code, res.code)
			assert.NotEmpty(t, res.stderr, "failure is reported as a diagnostic")

			var out map[string]any
			require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
			assert.Equal(t, false, out["success"])
		})
	}
}

func TestRun_MissingFile(t *testing.T) {
	res := runCLI(t, "", "run", filepath.Join(t.TempDir(), "nope.js"))
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "E_IO")
}

func TestRun_MultipleFilesInOrder(t *testing.T) {
	a := writeProgram(t, "a.js", "let a = 1;")
	b := writeProgram(t, "b.js", "let b = ;")
	res := runCLI(t, "", "run", "--parallel", "2", a, b)
	assert.Equal(t, exitSyntax, res.code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	require.Len(t, out, 2)
	assert.Equal(t, a, out[0]["file"])
	assert.Equal(t, b, out[1]["file"])
}

func TestRun_IterationCapFlag(t *testing.T) {
	file := writeProgram(t, "loop.js", "for (let i = 0; i < 10; i++) {}")
	res := runCLI(t, "", "run", "--iteration-cap", "3", file)
	assert.Equal(t, exitRuntime, res.code)
	assert.Contains(t, res.stdout, "exceeded 3 iterations")
}

func TestRun_ConfigFile(t *testing.T) {
	cfg := writeProgram(t, "cfg.yaml", "format: table\niterationCap: 2\n")
	file := writeProgram(t, "loop.js", "let n = 0;\nwhile (n < 5) { n++; }")
	res := runCLI(t, "", "--config", cfg, "run", file)
	assert.Equal(t, exitRuntime, res.code)
	assert.Contains(t, res.stdout, "Description")
	assert.Contains(t, res.stdout, "exceeded 2 iterations")
}

func TestRun_BadConfig(t *testing.T) {
	cfg := writeProgram(t, "cfg.yaml", "format: xml\n")
	file := writeProgram(t, "a.js", "let a = 1;")
	res := runCLI(t, "", "--config", cfg, "run", file)
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "E_CONFIG")
}

func TestCheck(t *testing.T) {
	ok := writeProgram(t, "ok.js", "let x = 1;")
	res := runCLI(t, "", "check", ok)
	assert.Equal(t, exitOK, res.code)
	assert.Equal(t, "[]\n", res.stdout)

	warn := writeProgram(t, "warn.js", "let d = new Date();")
	res = runCLI(t, "", "check", warn)
	assert.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stderr, "W_UNSUPPORTED")

	bad := writeProgram(t, "bad.js", "break;")
	res = runCLI(t, "", "check", "--pretty", bad)
	assert.Equal(t, exitSyntax, res.code)
	assert.Contains(t, res.stderr, "error[E_BREAK_OUTSIDE_LOOP]")
}

func TestFmt(t *testing.T) {
	file := writeProgram(t, "f.js", "let x=1 // one\n")
	res := runCLI(t, "", "fmt", file)
	assert.Equal(t, exitOK, res.code)
	assert.Equal(t, "let x = 1;\n", res.stdout)
	assert.Contains(t, res.stderr, "comments are not preserved")

	res = runCLI(t, "", "fmt", "--write", file)
	assert.Equal(t, exitOK, res.code)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "let x = 1;\n", string(data))
}

func TestConfigCommand(t *testing.T) {
	res := runCLI(t, "", "config")
	assert.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stdout, "# source: defaults")
	assert.Contains(t, res.stdout, "iterationCap: 1000")
}

func TestSummary(t *testing.T) {
	file := writeProgram(t, "f.js", "function f(n) { return n; }\nf(1);\nf(2);\nconsole.log('x');")
	res := runCLI(t, "", "run", file)
	require.Equal(t, exitOK, res.code, res.stderr)
	saved := writeProgram(t, "trace.json", res.stdout)

	res = runCLI(t, "", "summary", saved)
	require.Equal(t, exitOK, res.code, res.stderr)
	var s TraceSummary
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &s))
	assert.True(t, s.Success)
	assert.Equal(t, 2, s.CallsByName["f"])
	assert.Equal(t, 1, s.ConsoleLines)
	assert.Equal(t, 1, s.MaxCallDepth)
	assert.Equal(t, 1, s.StepsByKind["function-declaration"])

	res = runCLI(t, "", "summary", "--text", saved)
	assert.Contains(t, res.stdout, "Outcome: success")
	assert.Contains(t, res.stdout, "  f: 2")
}

func TestMethods(t *testing.T) {
	res := runCLI(t, "", "methods")
	assert.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stdout, "Array: concat, every")
	assert.Contains(t, res.stdout, "toUpperCase")
}
