package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thomasrohde/steptrace/pkg/diagnostics"
	"github.com/thomasrohde/steptrace/pkg/formatter"
	"github.com/thomasrohde/steptrace/pkg/runtime"
)

func newCheckCmd(_ *app) *cobra.Command {
	var pretty bool
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Parse and validate a program without running it",
		Long: `Check reports syntax errors, misplaced return/break/continue, duplicate
parameters, and warnings for constructs the interpreter skips.
Warnings alone do not fail the check.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, filename, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				printDiag(cmd.ErrOrStderr(), diagnostics.MakeDiag(diagnostics.EIO, err.Error(), nil, ""), pretty)
				return exitWith(exitUsage)
			}

			diags := runtime.New().Check(source, filename)
			if len(diags) > 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), diagnostics.FormatDiagnostics(diags, pretty))
			}
			if diagnostics.HasErrors(diags) {
				return exitWith(exitSyntax)
			}

			if pretty {
				fmt.Fprintln(cmd.OutOrStdout(), "No errors found.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "[]")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "print human-readable diagnostics")
	return cmd
}

func newFmtCmd(_ *app) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "fmt <file>",
		Short: "Pretty-print a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			source, filename, err := readSource(cmd.InOrStdin(), file)
			if err != nil {
				printDiag(cmd.ErrOrStderr(), diagnostics.MakeDiag(diagnostics.EIO, err.Error(), nil, ""), false)
				return exitWith(exitUsage)
			}

			formatted, err := runtime.New().Format(source, filename)
			if err != nil {
				if diagErr, ok := err.(*runtime.DiagnosticError); ok {
					fmt.Fprintln(cmd.ErrOrStderr(), diagnostics.FormatDiagnostics(diagErr.Diagnostics, false))
					return exitWith(exitSyntax)
				}
				return &exitError{code: exitSyntax, err: err}
			}

			if formatter.HasComments(source) {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: comments are not preserved by the formatter")
			}

			if write && file != "-" {
				if err := os.WriteFile(file, []byte(formatted), 0o644); err != nil {
					return &exitError{code: exitUsage, err: fmt.Errorf("error writing file: %w", err)}
				}
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatted)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the file")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.cfg.YAML()
			if err != nil {
				return &exitError{code: exitUsage, err: err}
			}
			source := a.cfgPath
			if source == "" {
				source = "defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n%s", source, out)
			return nil
		},
	}
}
