// Command steptrace is the CLI entry point: it traces JavaScript-subset
// programs step by step.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/thomasrohde/steptrace/pkg/config"
	"github.com/thomasrohde/steptrace/pkg/diagnostics"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 1 // I/O, usage and configuration problems
	exitSyntax  = 2 // parse failures and check errors
	exitRuntime = 4 // runtime faults
)

// exitError carries a process exit code through cobra's error return. Its
// message has already been printed when silent is set.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int) error {
	return &exitError{code: code, silent: true}
}

// app holds the state shared by all subcommands of one invocation.
type app struct {
	cfg     *config.Config
	cfgPath string

	configFlag   string
	logLevelFlag string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "steptrace",
		Short: "Step-by-step tracer for a JavaScript subset",
		Long: `steptrace runs small JavaScript programs in a tree-walking interpreter and
records an immutable snapshot of the program state after every meaningful
action: declarations, assignments, calls, returns, branch and loop tests,
console output and built-in array/string method calls.

Configuration is read from .steptrace.yaml in the current directory, then
~/.steptrace/config.yaml, then built-in defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	cmd.PersistentFlags().StringVar(&a.configFlag, "config", "", "path to a config file (overrides the lookup order)")
	cmd.PersistentFlags().StringVar(&a.logLevelFlag, "log-level", "", "log level: trace, debug, info, warn, error")

	cmd.AddCommand(
		newRunCmd(a),
		newCheckCmd(a),
		newFmtCmd(a),
		newConfigCmd(a),
		newSummaryCmd(a),
		newMethodsCmd(a),
	)
	return cmd
}

// setup loads configuration and installs the logger on the command context.
func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.configFlag != "" {
		a.cfg, err = config.LoadFile(a.configFlag)
		a.cfgPath = a.configFlag
	} else {
		cwd, _ := os.Getwd()
		a.cfg, a.cfgPath, err = config.Load(cwd)
	}
	if err != nil {
		printDiag(cmd.ErrOrStderr(), diagnostics.MakeDiag(diagnostics.EConfig,
			fmt.Sprintf("cannot load config %s: %s", a.cfgPath, err), nil, ""), false)
		return exitWith(exitUsage)
	}

	if a.logLevelFlag != "" {
		a.cfg.LogLevel = a.logLevelFlag
	}
	level, err := a.cfg.Level()
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(level).
		With().Timestamp().Logger()
	cmd.SetContext(logger.WithContext(cmd.Context()))
	logger.Debug().Str("config", a.cfgPath).Msg("configuration loaded")
	return nil
}

func printDiag(w io.Writer, d diagnostics.Diagnostic, pretty bool) {
	fmt.Fprintln(w, diagnostics.FormatDiagnostics([]diagnostics.Diagnostic{d}, pretty))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.silent {
			fmt.Fprintln(stderr, "error:", ee.Error())
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "error:", err)
	return exitUsage
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
