package main

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasrohde/steptrace/internal/testutil"
	"github.com/thomasrohde/steptrace/pkg/diagnostics"
	"github.com/thomasrohde/steptrace/pkg/evaluator"
	"github.com/thomasrohde/steptrace/pkg/runtime"
)

func TestConformance(t *testing.T) {
	dirs, err := testutil.ListScenarios(testutil.ScenariosDir)
	require.NoError(t, err, "list scenarios")
	require.NotEmpty(t, dirs, "no scenarios found")

	for _, scenarioDir := range dirs {
		t.Run(filepath.Base(scenarioDir), func(t *testing.T) {
			scenario, err := testutil.LoadScenario(scenarioDir)
			require.NoError(t, err, "load scenario")

			source, filename, err := testutil.ReadProgramFile(scenarioDir, scenario.Cmd)
			require.NoError(t, err, "read program file")

			pretty := false
			for _, arg := range scenario.Cmd {
				if arg == "--pretty" {
					pretty = true
				}
			}

			switch scenario.Cmd[0] {
			case "run":
				runRunScenario(t, source, filename, scenario, pretty)
			case "check":
				runCheckScenario(t, source, filename, scenario, pretty)
			case "fmt":
				runFmtScenario(t, source, filename, scenario)
			default:
				t.Skipf("unsupported command: %s", scenario.Cmd[0])
			}
		})
	}
}

func buildRuntime(scenario *testutil.Scenario) *runtime.Runtime {
	var opts []runtime.Option
	if c := scenario.Config; c != nil {
		if c.IterationCap > 0 {
			opts = append(opts, runtime.WithIterationCap(c.IterationCap))
		}
		if c.MaxCallDepth > 0 {
			opts = append(opts, runtime.WithMaxCallDepth(c.MaxCallDepth))
		}
		opts = append(opts, runtime.WithLocalAssignment(c.LocalAssignment))
	}
	return runtime.New(opts...)
}

func runRunScenario(t *testing.T, source, filename string, scenario *testutil.Scenario, pretty bool) {
	t.Helper()

	result, execErr := buildRuntime(scenario).Execute(context.Background(), source, filename)

	actualExit := 0
	if execErr != nil {
		var diagErr *runtime.DiagnosticError
		var rtErr *evaluator.RuntimeError
		switch {
		case errors.As(execErr, &diagErr):
			actualExit = 2
		case errors.As(execErr, &rtErr):
			actualExit = 4
		default:
			require.FailNow(t, "unexpected error type", "%v", execErr)
		}
		stderrOutput := diagnostics.FormatDiagnostics(result.Diagnostics, pretty)
		checkStderrExpectations(t, stderrOutput, result.Diagnostics, scenario)
	}
	assert.Equal(t, scenario.Expect.ExitCode, actualExit, "exit code (error: %s)", result.Error)

	stdout := mustMarshal(t, result)
	var actual map[string]any
	require.NoError(t, json.Unmarshal(stdout, &actual), "parse result JSON")

	if scenario.Expect.StdoutJSONSubset != nil {
		var expected any
		require.NoError(t, json.Unmarshal(scenario.Expect.StdoutJSONSubset, &expected), "parse expected stdout subset")
		assert.True(t, testutil.IsSubset(expected, actual),
			"stdout JSON subset mismatch:\n  expected subset: %s\n  got: %s",
			scenario.Expect.StdoutJSONSubset, truncate(string(stdout), 2000))
	}

	checkStepExpectations(t, result, actual, scenario)
}

func checkStepExpectations(t *testing.T, result *runtime.Result, actual map[string]any, scenario *testutil.Scenario) {
	t.Helper()
	expect := scenario.Expect

	if expect.StepCount > 0 {
		assert.Len(t, result.Steps, expect.StepCount, "step count")
	}

	if len(expect.StepKinds) > 0 {
		got := make([]string, len(result.Steps))
		for i, s := range result.Steps {
			got[i] = string(s.Kind)
		}
		assert.Equal(t, expect.StepKinds, got, "step kinds")
	}

	if len(result.Steps) == 0 {
		return
	}
	steps, _ := actual["steps"].([]any)
	last, _ := steps[len(steps)-1].(map[string]any)

	if expect.FinalVariables != nil {
		expected := normalizeJSON(t, expect.FinalVariables)
		got := normalizeJSON(t, mustMarshal(t, last["variables"]))
		assert.JSONEq(t, expected, got, "final variables")
	}

	if expect.ConsoleOutput != nil {
		got := result.Steps[len(result.Steps)-1].ConsoleOutput
		assert.Equal(t, strings.Join(expect.ConsoleOutput, "\n"), strings.Join(got, "\n"), "console output")
	}
}

func runCheckScenario(t *testing.T, source, filename string, scenario *testutil.Scenario, pretty bool) {
	t.Helper()

	diags := runtime.New().Check(source, filename)
	actualExit := 0
	if diagnostics.HasErrors(diags) {
		actualExit = 2
	}
	assert.Equal(t, scenario.Expect.ExitCode, actualExit, "exit code")
	checkStderrExpectations(t, diagnostics.FormatDiagnostics(diags, pretty), diags, scenario)
}

func runFmtScenario(t *testing.T, source, filename string, scenario *testutil.Scenario) {
	t.Helper()

	formatted, err := runtime.New().Format(source, filename)
	actualExit := 0
	if err != nil {
		actualExit = 2
	}
	assert.Equal(t, scenario.Expect.ExitCode, actualExit, "exit code (%v)", err)
	if scenario.Expect.StdoutText != "" {
		assert.Equal(t, scenario.Expect.StdoutText, formatted, "stdout")
	}
}

func checkStderrExpectations(t *testing.T, stderrOutput string, diags []diagnostics.Diagnostic, scenario *testutil.Scenario) {
	t.Helper()

	if scenario.Expect.StderrContains != "" {
		assert.Contains(t, stderrOutput, scenario.Expect.StderrContains, "stderr")
	}

	if scenario.Expect.StderrJSONSubset != nil {
		var expectedSubset []map[string]any
		require.NoError(t, json.Unmarshal(scenario.Expect.StderrJSONSubset, &expectedSubset), "parse expected stderr subset")

		var actualDiags []map[string]any
		require.NoError(t, json.Unmarshal(mustMarshal(t, diags), &actualDiags), "parse actual diagnostics")

		for _, expected := range expectedSubset {
			found := false
			for _, actual := range actualDiags {
				if testutil.IsSubset(expected, actual) {
					found = true
					break
				}
			}
			assert.True(t, found, "stderr JSON subset not found: %v", expected)
		}
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err, "marshal")
	return b
}

func normalizeJSON(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal(raw, &v), "parse JSON: %s", raw)
	return string(mustMarshal(t, v))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
