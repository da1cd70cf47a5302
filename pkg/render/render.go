// Package render prints execution results as JSON, a step table, or
// styled text.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/thomasrohde/steptrace/pkg/config"
	"github.com/thomasrohde/steptrace/pkg/evaluator"
	"github.com/thomasrohde/steptrace/pkg/runtime"
)

// named adds the file name to a result when several are printed together.
type named struct {
	File string `json:"file"`
	*runtime.Result
}

// Write renders results in the given format. A single result is written
// as-is; several are grouped by file.
func Write(w io.Writer, format string, results []*runtime.Result, pretty bool) error {
	switch format {
	case config.FormatJSON, "":
		return JSON(w, results, pretty)
	case config.FormatTable:
		for i, res := range results {
			if len(results) > 1 {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "== %s ==\n", res.File)
			}
			Table(w, res)
		}
		return nil
	case config.FormatText:
		for i, res := range results {
			if i > 0 {
				fmt.Fprintln(w)
			}
			Text(w, res, len(results) > 1)
		}
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}

// JSON writes results as JSON: one object for a single result, an array of
// objects tagged with their file for several.
func JSON(w io.Writer, results []*runtime.Result, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if len(results) == 1 {
		return enc.Encode(results[0])
	}
	out := make([]named, len(results))
	for i, res := range results {
		out[i] = named{File: res.File, Result: res}
	}
	return enc.Encode(out)
}

// Table writes one row per step followed by the outcome.
func Table(w io.Writer, res *runtime.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Line", "Kind", "Description", "Call Stack"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
	})

	for _, s := range res.Steps {
		table.Append([]string{
			strconv.Itoa(s.Index),
			lineLabel(s),
			string(s.Kind),
			s.Description,
			strings.Join(s.CallStack, " > "),
		})
	}
	table.SetFooter([]string{"", "", "", outcome(res), ""})
	table.Render()
}

var (
	indexStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	lineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	consoleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).PaddingLeft(4)

	kindStyles = map[evaluator.StepKind]lipgloss.Style{
		evaluator.StepStart:               lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		evaluator.StepEnd:                 lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		evaluator.StepDeclaration:         lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		evaluator.StepAssignment:          lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		evaluator.StepFunctionDeclaration: lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		evaluator.StepFunctionCall:        lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		evaluator.StepFunctionReturn:      lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		evaluator.StepCondition:           lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		evaluator.StepLoop:                lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		evaluator.StepConsole:             lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		evaluator.StepArrayMethod:         lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		evaluator.StepStringMethod:        lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		evaluator.StepError:               lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		evaluator.StepUnsupported:         lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
)

// kindWidth is the length of the longest step kind name.
const kindWidth = len(evaluator.StepFunctionDeclaration)

// Text writes a styled step listing. Console output is echoed under the
// step that produced it.
func Text(w io.Writer, res *runtime.Result, withHeader bool) {
	if withHeader {
		fmt.Fprintln(w, headerStyle.Render(res.File))
	}
	for _, s := range res.Steps {
		style, ok := kindStyles[s.Kind]
		if !ok {
			style = lipgloss.NewStyle()
		}
		fmt.Fprintf(w, "%s %s %s  %s\n",
			indexStyle.Render(fmt.Sprintf("%4d", s.Index)),
			lineStyle.Render(fmt.Sprintf("%-6s", lineLabel(s))),
			style.Render(fmt.Sprintf("%-*s", kindWidth, s.Kind)),
			s.Description)
		if p, ok := s.Payload.(evaluator.ConsolePayload); ok {
			fmt.Fprintln(w, consoleStyle.Render("> "+p.Output))
		}
	}
	if res.Success {
		fmt.Fprintln(w, successStyle.Render(outcome(res)))
	} else {
		fmt.Fprintln(w, failureStyle.Render(outcome(res)))
	}
}

func lineLabel(s evaluator.Step) string {
	if s.LineNumber <= 0 {
		return "-"
	}
	return "L" + strconv.Itoa(s.LineNumber)
}

func outcome(res *runtime.Result) string {
	if res.Success {
		return fmt.Sprintf("ok: %d steps", len(res.Steps))
	}
	return "failed: " + res.Error
}
