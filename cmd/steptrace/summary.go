package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thomasrohde/steptrace/pkg/diagnostics"
	"github.com/thomasrohde/steptrace/pkg/runtime"
	"github.com/thomasrohde/steptrace/pkg/stdlib"
)

// TraceSummary condenses a saved run result.
type TraceSummary struct {
	File          string         `json:"file,omitempty"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	TotalSteps    int            `json:"totalSteps"`
	StepsByKind   map[string]int `json:"stepsByKind"`
	CallsByName   map[string]int `json:"callsByName"`
	ConsoleLines  int            `json:"consoleLines"`
	MaxCallDepth  int            `json:"maxCallDepth"`
	LastLine      int            `json:"lastLine"`
	FinalBindings int            `json:"finalBindings"`
}

// savedStep is the subset of a step's JSON the summary reads.
type savedStep struct {
	Kind          string         `json:"kind"`
	LineNumber    int            `json:"lineNumber"`
	FunctionName  string         `json:"functionName"`
	CallStack     []string       `json:"callStack"`
	ConsoleOutput []string       `json:"consoleOutput"`
	Variables     map[string]any `json:"variables"`
}

type savedResult struct {
	File    string      `json:"file"`
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Steps   []savedStep `json:"steps"`
}

func newSummaryCmd(_ *app) *cobra.Command {
	var text bool
	cmd := &cobra.Command{
		Use:   "summary <result.json>",
		Short: "Summarize a saved JSON trace",
		Long: `Summary reads the JSON written by "steptrace run --format json" (one result
or an array of results) and reports step counts by kind, calls per function,
console output and the outcome.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, filename, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				printDiag(cmd.ErrOrStderr(), diagnostics.MakeDiag(diagnostics.EIO, err.Error(), nil, ""), false)
				return exitWith(exitUsage)
			}
			results, err := decodeResults([]byte(data))
			if err != nil {
				printDiag(cmd.ErrOrStderr(), diagnostics.MakeDiag(diagnostics.EIO,
					fmt.Sprintf("cannot decode %s: %s", filename, err), nil, ""), false)
				return exitWith(exitUsage)
			}

			summaries := make([]*TraceSummary, len(results))
			for i, r := range results {
				summaries[i] = computeTraceSummary(r)
			}
			if text {
				for _, s := range summaries {
					printTraceSummaryText(cmd.OutOrStdout(), s)
				}
				return nil
			}
			var out any = summaries
			if len(summaries) == 1 {
				out = summaries[0]
			}
			b, err := json.Marshal(out)
			if err != nil {
				return &exitError{code: exitUsage, err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "print a human-readable summary")
	return cmd
}

// decodeResults accepts a single result object or an array of them.
func decodeResults(data []byte) ([]savedResult, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var many []savedResult
		if err := json.Unmarshal([]byte(trimmed), &many); err != nil {
			return nil, err
		}
		return many, nil
	}
	var one savedResult
	if err := json.Unmarshal([]byte(trimmed), &one); err != nil {
		return nil, err
	}
	return []savedResult{one}, nil
}

func computeTraceSummary(r savedResult) *TraceSummary {
	summary := &TraceSummary{
		File:        r.File,
		Success:     r.Success,
		Error:       r.Error,
		TotalSteps:  len(r.Steps),
		StepsByKind: make(map[string]int),
		CallsByName: make(map[string]int),
	}
	for _, s := range r.Steps {
		summary.StepsByKind[s.Kind]++
		if s.Kind == "function-call" && s.FunctionName != "" {
			summary.CallsByName[s.FunctionName]++
		}
		summary.MaxCallDepth = max(summary.MaxCallDepth, len(s.CallStack))
		if s.LineNumber > 0 {
			summary.LastLine = s.LineNumber
		}
	}
	if n := len(r.Steps); n > 0 {
		last := r.Steps[n-1]
		summary.ConsoleLines = len(last.ConsoleOutput)
		summary.FinalBindings = len(last.Variables)
	}
	return summary
}

func printTraceSummaryText(w io.Writer, s *TraceSummary) {
	if s.File != "" {
		fmt.Fprintf(w, "File: %s\n", s.File)
	}
	if s.Success {
		fmt.Fprintln(w, "Outcome: success")
	} else {
		fmt.Fprintf(w, "Outcome: failed (%s)\n", s.Error)
	}
	fmt.Fprintf(w, "Steps: %d\n", s.TotalSteps)
	for _, kind := range sortedKeys(s.StepsByKind) {
		fmt.Fprintf(w, "  %s: %d\n", kind, s.StepsByKind[kind])
	}
	if len(s.CallsByName) > 0 {
		fmt.Fprintln(w, "Calls:")
		for _, name := range sortedKeys(s.CallsByName) {
			fmt.Fprintf(w, "  %s: %d\n", name, s.CallsByName[name])
		}
	}
	fmt.Fprintf(w, "Console: %d lines\n", s.ConsoleLines)
	fmt.Fprintf(w, "Max call depth: %d\n", s.MaxCallDepth)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newMethodsCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the built-in array and string methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := runtime.New()
			for _, recv := range []stdlib.Receiver{stdlib.ArrayReceiver, stdlib.StringReceiver} {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", recv, strings.Join(rt.Methods(recv), ", "))
			}
			return nil
		},
	}
}
