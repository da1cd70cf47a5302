// Package runtime provides the top-level steptrace orchestrator.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thomasrohde/steptrace/pkg/ast"
	"github.com/thomasrohde/steptrace/pkg/config"
	"github.com/thomasrohde/steptrace/pkg/diagnostics"
	"github.com/thomasrohde/steptrace/pkg/evaluator"
	"github.com/thomasrohde/steptrace/pkg/formatter"
	"github.com/thomasrohde/steptrace/pkg/parser"
	"github.com/thomasrohde/steptrace/pkg/stdlib"
	"github.com/thomasrohde/steptrace/pkg/validator"
)

// Result holds the outcome of one execution: the full trace and, on
// failure, the error text shown to the user.
type Result struct {
	Success bool             `json:"success"`
	Error   string           `json:"error,omitempty"`
	Steps   []evaluator.Step `json:"steps"`

	File        string                   `json:"-"`
	Code        string                   `json:"-"` // diagnostic code of the failure
	Diagnostics []diagnostics.Diagnostic `json:"-"` // the failure as diagnostics
	Warnings    []diagnostics.Diagnostic `json:"-"`
	Elapsed     time.Duration            `json:"-"`
}

// Source is one program handed to ExecuteAll.
type Source struct {
	Name string
	Text string
}

// Runtime wires together all steptrace components for program execution.
// It holds configuration only and may be shared between goroutines.
type Runtime struct {
	stdlib          *stdlib.Registry
	iterationCap    int
	maxCallDepth    int
	localAssignment bool
	parallel        int
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithStdlib sets the built-in method registry.
func WithStdlib(r *stdlib.Registry) Option {
	return func(rt *Runtime) {
		rt.stdlib = r
	}
}

// WithIterationCap bounds the iterations of each loop.
func WithIterationCap(n int) Option {
	return func(rt *Runtime) {
		rt.iterationCap = n
	}
}

// WithMaxCallDepth bounds nested calls.
func WithMaxCallDepth(n int) Option {
	return func(rt *Runtime) {
		rt.maxCallDepth = n
	}
}

// WithLocalAssignment makes plain assignments write into the innermost frame.
func WithLocalAssignment(local bool) Option {
	return func(rt *Runtime) {
		rt.localAssignment = local
	}
}

// WithParallel sets how many programs ExecuteAll runs at once.
func WithParallel(n int) Option {
	return func(rt *Runtime) {
		rt.parallel = n
	}
}

// WithConfig applies the execution settings of a loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(rt *Runtime) {
		if cfg == nil {
			return
		}
		rt.iterationCap = cfg.IterationCap
		rt.maxCallDepth = cfg.MaxCallDepth
		rt.localAssignment = cfg.LocalAssignment
		rt.parallel = cfg.Parallel
	}
}

// New creates a new Runtime with the given options.
// By default the built-in methods are registered and the evaluator limits apply.
func New(opts ...Option) *Runtime {
	reg := stdlib.NewRegistry()
	stdlib.RegisterDefaults(reg)

	rt := &Runtime{
		stdlib:       reg,
		iterationCap: evaluator.DefaultIterationCap,
		maxCallDepth: evaluator.DefaultMaxCallDepth,
		parallel:     1,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Execute parses and runs a program, returning its trace. The Result is
// never nil; err carries the typed failure (*DiagnosticError for syntax
// errors, *evaluator.RuntimeError for runtime faults).
func (rt *Runtime) Execute(ctx context.Context, source, filename string) (*Result, error) {
	log := zerolog.Ctx(ctx)
	res := &Result{File: filename, Steps: []evaluator.Step{}}

	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		res.Code = diags[0].Code
		res.Error = "Syntax Error: " + diags[0].Message
		res.Diagnostics = diags
		log.Debug().Str("file", filename).Str("code", res.Code).Msg("parse failed")
		return res, &DiagnosticError{Diagnostics: diags}
	}

	// Validation findings never block a run: the engine skips unsupported
	// constructs and ends the program on a stray top-level return or break.
	res.Warnings = validator.Validate(program)
	for _, d := range res.Warnings {
		log.Debug().Str("file", filename).Str("code", d.Code).Msg(d.Message)
	}

	opts := rt.buildExecOptions()
	opts.LineCount = strings.Count(source, "\n") + 1
	out, err := evaluator.Execute(ctx, program, opts)
	if out != nil {
		res.Steps = out.Steps
		res.Elapsed = out.Elapsed
	}
	if err != nil {
		res.Code = diagnostics.ERuntime
		var span *ast.Span
		var rtErr *evaluator.RuntimeError
		if errors.As(err, &rtErr) {
			res.Code = rtErr.Code
			span = rtErr.Span
		}
		res.Error = err.Error()
		res.Diagnostics = []diagnostics.Diagnostic{diagnostics.MakeDiag(res.Code, res.Error, span, "")}
		log.Debug().Str("file", filename).Str("code", res.Code).Msg("execution failed")
		return res, err
	}
	res.Success = true
	return res, nil
}

// ExecuteAll runs several programs concurrently, at most parallel at a
// time, and returns their results in argument order. Program failures are
// reported in each Result; the returned error is only set when ctx ends
// before every program has run.
func (rt *Runtime) ExecuteAll(ctx context.Context, sources []Source) ([]*Result, error) {
	results := make([]*Result, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(rt.parallel, 1))
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], _ = rt.Execute(gctx, src.Text, src.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Check parses and validates a program without executing it.
func (rt *Runtime) Check(source, filename string) []diagnostics.Diagnostic {
	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		return diags
	}

	return validator.Validate(program)
}

// Format parses and formats a program.
func (rt *Runtime) Format(source, filename string) (string, error) {
	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		return "", &DiagnosticError{Diagnostics: diags}
	}
	return formatter.Format(program), nil
}

// Methods lists the built-in method names for a receiver.
func (rt *Runtime) Methods(recv stdlib.Receiver) []string {
	return rt.stdlib.Names(recv)
}

// buildExecOptions constructs evaluator options from the runtime's configuration.
func (rt *Runtime) buildExecOptions() evaluator.ExecOptions {
	return evaluator.ExecOptions{
		ArrayMethods:    rt.stdlib.MethodTable(stdlib.ArrayReceiver),
		StringMethods:   rt.stdlib.MethodTable(stdlib.StringReceiver),
		IterationCap:    rt.iterationCap,
		MaxCallDepth:    rt.maxCallDepth,
		LocalAssignment: rt.localAssignment,
	}
}

// DiagnosticError wraps diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
}

func (e *DiagnosticError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}
