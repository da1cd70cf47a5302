package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/thomasrohde/steptrace/pkg/diagnostics"
	"github.com/thomasrohde/steptrace/pkg/render"
	"github.com/thomasrohde/steptrace/pkg/runtime"
)

type runFlags struct {
	format          string
	pretty          bool
	parallel        int
	iterationCap    int
	maxCallDepth    int
	localAssignment bool
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <file...>",
		Short: "Trace one or more programs",
		Long: `Run traces each program and prints its result: success, the error message
on failure, and the list of recorded steps. Use "-" to read a program from
stdin. Several files are traced concurrently and printed in argument order.

Exit codes: 0 success, 1 I/O or usage problem, 2 syntax error, 4 runtime error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFiles(cmd, f, args)
		},
	}
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "output format: json, table or text (default from config)")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "indent JSON and print human-readable diagnostics")
	cmd.Flags().IntVarP(&f.parallel, "parallel", "p", 0, "number of programs traced at once (default from config)")
	cmd.Flags().IntVar(&f.iterationCap, "iteration-cap", 0, "maximum iterations of a single loop (default from config)")
	cmd.Flags().IntVar(&f.maxCallDepth, "max-call-depth", 0, "maximum nested call depth (default from config)")
	cmd.Flags().BoolVar(&f.localAssignment, "local-assignment", false, "assign into the innermost frame instead of the declaring frame")
	return cmd
}

// runtimeOptions layers explicitly set flags over the loaded configuration.
func (a *app) runtimeOptions(cmd *cobra.Command, f *runFlags) []runtime.Option {
	opts := []runtime.Option{runtime.WithConfig(a.cfg)}
	flags := cmd.Flags()
	if flags.Changed("parallel") {
		opts = append(opts, runtime.WithParallel(f.parallel))
	}
	if flags.Changed("iteration-cap") {
		opts = append(opts, runtime.WithIterationCap(f.iterationCap))
	}
	if flags.Changed("max-call-depth") {
		opts = append(opts, runtime.WithMaxCallDepth(f.maxCallDepth))
	}
	if flags.Changed("local-assignment") {
		opts = append(opts, runtime.WithLocalAssignment(f.localAssignment))
	}
	return opts
}

func (a *app) runFiles(cmd *cobra.Command, f *runFlags, files []string) error {
	ctx := cmd.Context()
	log := zerolog.Ctx(ctx)

	sources := make([]runtime.Source, 0, len(files))
	for _, file := range files {
		source, filename, err := readSource(cmd.InOrStdin(), file)
		if err != nil {
			printDiag(cmd.ErrOrStderr(), diagnostics.MakeDiag(diagnostics.EIO, err.Error(), nil, ""), f.pretty)
			return exitWith(exitUsage)
		}
		sources = append(sources, runtime.Source{Name: filename, Text: source})
	}

	rt := runtime.New(a.runtimeOptions(cmd, f)...)
	results, err := rt.ExecuteAll(ctx, sources)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	format := a.cfg.Format
	if f.format != "" {
		format = f.format
	}
	if err := render.Write(cmd.OutOrStdout(), format, results, f.pretty); err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	code := exitOK
	for _, res := range results {
		log.Debug().Str("file", res.File).Int("steps", len(res.Steps)).Dur("elapsed", res.Elapsed).Msg("traced")
		if res.Success {
			continue
		}
		fmt.Fprintln(cmd.ErrOrStderr(), diagnostics.FormatDiagnostics(res.Diagnostics, f.pretty))
		switch res.Code {
		case diagnostics.ELex, diagnostics.EParse:
			code = max(code, exitSyntax)
		default:
			code = max(code, exitRuntime)
		}
	}
	if code != exitOK {
		return exitWith(code)
	}
	return nil
}

// readSource reads a program from a file, or from stdin for "-".
func readSource(stdin io.Reader, file string) (string, string, error) {
	if file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("error reading stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	}

	source, err := os.ReadFile(file)
	if err != nil {
		return "", "", fmt.Errorf("cannot read file: %s", file)
	}
	return string(source), file, nil
}
