package evaluator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/thomasrohde/steptrace/internal/panicerr"
	"github.com/thomasrohde/steptrace/pkg/ast"
	"github.com/thomasrohde/steptrace/pkg/diagnostics"
)

const (
	// DefaultIterationCap bounds the iterations of a single loop invocation.
	DefaultIterationCap = 1000
	// DefaultMaxCallDepth bounds nested function and closure calls.
	DefaultMaxCallDepth = 512
)

// Invoker lets built-in methods call function values back through the
// engine, so steps recorded by a callback body land in the same trace.
type Invoker interface {
	Invoke(fn Value, args []Value) (Value, error)
}

// MethodFn is a built-in array or string method. Execute receives the
// receiver and evaluated arguments and returns the result together with the
// step description.
type MethodFn struct {
	Name    string
	Execute func(inv Invoker, recv Value, args []Value) (Value, string, error)
}

// ExecOptions configures program execution.
type ExecOptions struct {
	ArrayMethods  map[string]*MethodFn
	StringMethods map[string]*MethodFn
	// IterationCap defaults to DefaultIterationCap when zero.
	IterationCap int
	// MaxCallDepth defaults to DefaultMaxCallDepth when zero.
	MaxCallDepth int
	// LocalAssignment writes plain assignments into the innermost frame
	// instead of the frame that declares the name.
	LocalAssignment bool
	// LineCount is the number of source lines; it positions the end step.
	LineCount int
}

// ExecResult holds the trace of an execution. It is returned even when
// execution fails, in which case the last step has kind error.
type ExecResult struct {
	Steps         []Step
	ConsoleOutput []string
	Elapsed       time.Duration
}

// RuntimeError represents a fatal error during execution.
type RuntimeError struct {
	Code    string
	Message string
	Span    *ast.Span

	// state at the point of failure, captured before frames unwind
	vars      *Record
	callStack []string
}

func (e *RuntimeError) Error() string {
	return e.Message
}

func newRuntimeError(code string, span ast.Span, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Span:    &span,
	}
}

type signal int

const (
	sigNormal signal = iota
	sigReturn
	sigBreak
	sigContinue
)

// completion is the control outcome of executing a statement.
type completion struct {
	signal signal
	value  Value
}

var normal = completion{signal: sigNormal}

// execContext is the mutable state of one execution. Nothing in it is
// shared between runs.
type execContext struct {
	start     time.Time
	opts      ExecOptions
	log       *zerolog.Logger
	scope     *Scope
	functions map[string]*Closure
	console   []string
	callStack []string
	site      ast.Span // call site of the built-in method being run
	recorder  *Recorder
}

// Execute runs a program to completion and returns its trace.
func Execute(ctx context.Context, program *ast.Program, opts ExecOptions) (*ExecResult, error) {
	if opts.IterationCap <= 0 {
		opts.IterationCap = DefaultIterationCap
	}
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	ec := &execContext{
		start:     time.Now(),
		opts:      opts,
		log:       zerolog.Ctx(ctx),
		scope:     NewScope(),
		functions: make(map[string]*Closure),
		recorder:  NewRecorder(),
	}

	ec.recorder.Record(Step{
		Line:        -1,
		LineNumber:  0,
		LineContent: "Program Start",
		Variables:   NewRecord(nil),
		Description: "Program execution begins",
		Kind:        StepStart,
	})

	err := panicerr.Recover("execute", func() error {
		return ec.runProgram(program)
	})
	if err != nil {
		rtErr := ec.toRuntimeError(err)
		ec.recordError(rtErr)
		return ec.result(), rtErr
	}

	lines := opts.LineCount
	if lines <= 0 {
		lines = program.Span.EndLine
	}
	ec.recorder.Record(Step{
		Line:          lines,
		LineNumber:    lines + 1,
		LineContent:   "Program End",
		Variables:     ec.scope.Snapshot(),
		Description:   "Program execution complete",
		Kind:          StepEnd,
		ConsoleOutput: slices.Clone(ec.console),
		CallStack:     []string{},
	})
	ec.log.Debug().Int("steps", ec.recorder.Len()).Dur("elapsed", time.Since(ec.start)).Msg("execution complete")
	return ec.result(), nil
}

func (ec *execContext) result() *ExecResult {
	return &ExecResult{
		Steps:         ec.recorder.Steps(),
		ConsoleOutput: slices.Clone(ec.console),
		Elapsed:       time.Since(ec.start),
	}
}

// toRuntimeError normalizes any error escaping a run.
func (ec *execContext) toRuntimeError(err error) *RuntimeError {
	var rtErr *RuntimeError
	if errors.As(err, &rtErr) {
		return rtErr
	}
	if panicerr.IsPanic(err) {
		ec.log.Error().Str("stack", panicerr.PanicStack(err)).Msgf("recovered: %v", panicerr.PanicValue(err))
		return &RuntimeError{
			Code:    diagnostics.ERuntime,
			Message: fmt.Sprintf("internal error: %v", panicerr.PanicValue(err)),
		}
	}
	return &RuntimeError{Code: diagnostics.ERuntime, Message: err.Error()}
}

// captureState remembers the live bindings and call stack on the first
// frame that sees the error, so the error step shows state at the fault.
func (ec *execContext) captureState(err error) {
	var rtErr *RuntimeError
	if errors.As(err, &rtErr) && rtErr.vars == nil {
		rtErr.vars = ec.scope.Snapshot()
		rtErr.callStack = slices.Clone(ec.callStack)
	}
}

func (ec *execContext) recordError(err *RuntimeError) {
	ec.captureState(err)
	line, lineNumber, _ := stepPosition(err.Span)
	ec.recorder.Record(Step{
		Line:          line,
		LineNumber:    lineNumber,
		LineContent:   "Error",
		Variables:     err.vars,
		Description:   "Runtime Error: " + err.Message,
		Kind:          StepError,
		ConsoleOutput: slices.Clone(ec.console),
		CallStack:     err.callStack,
		Payload:       ErrorPayload{Code: err.Code, Error: err.Message},
	})
}

func (ec *execContext) runProgram(program *ast.Program) error {
	ec.hoist(program.Body)
	for _, stmt := range program.Body {
		c, err := ec.execStmt(stmt)
		if err != nil {
			return err
		}
		if c.signal != sigNormal {
			// A top-level return, break or continue ends the program.
			return nil
		}
	}
	return nil
}

// hoist registers the function declarations of a statement list so they can
// be called before the declaration is reached.
func (ec *execContext) hoist(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		if fn, ok := stmt.(*ast.FunctionDeclaration); ok {
			ec.functions[fn.Name] = declaredClosure(fn)
		}
	}
}

func declaredClosure(fn *ast.FunctionDeclaration) *Closure {
	return &Closure{Name: fn.Name, Params: fn.Params, Body: fn.Body, Declared: true}
}

func (ec *execContext) execBlock(stmts []ast.Stmt) (completion, error) {
	for _, stmt := range stmts {
		c, err := ec.execStmt(stmt)
		if err != nil {
			return c, err
		}
		if c.signal != sigNormal {
			return c, nil
		}
	}
	return normal, nil
}

func (ec *execContext) execStmt(stmt ast.Stmt) (completion, error) {
	if e := ec.log.Trace(); e.Enabled() {
		e.Str("kind", stmt.Kind()).Int("line", stmt.NodeSpan().StartLine).Msg("exec")
	}

	switch s := stmt.(type) {
	case *ast.VariableDeclaration:
		return normal, ec.execVarDecl(s)

	case *ast.ExpressionStatement:
		_, err := ec.evalExpr(s.Expression)
		return normal, err

	case *ast.FunctionDeclaration:
		fn, ok := ec.functions[s.Name]
		if !ok || fn.Body != s.Body {
			fn = declaredClosure(s)
			ec.functions[s.Name] = fn
		}
		span := s.Span
		ec.record(&span, StepFunctionDeclaration,
			fmt.Sprintf("Declared function '%s'", s.Name),
			FunctionPayload{FunctionName: s.Name})
		return normal, nil

	case *ast.BlockStatement:
		return ec.execBlock(s.Body)

	case *ast.IfStatement:
		return ec.execIf(s)

	case *ast.ForStatement:
		return ec.execFor(s)

	case *ast.WhileStatement:
		return ec.execWhile(s)

	case *ast.ReturnStatement:
		var val Value = Undefined{}
		if s.Argument != nil {
			v, err := ec.evalExpr(s.Argument)
			if err != nil {
				return normal, err
			}
			val = v
		}
		return completion{signal: sigReturn, value: val}, nil

	case *ast.BreakStatement:
		return completion{signal: sigBreak}, nil

	case *ast.ContinueStatement:
		return completion{signal: sigContinue}, nil

	case *ast.UnsupportedStatement:
		span := s.Span
		ec.record(&span, StepUnsupported,
			fmt.Sprintf("Unsupported statement '%s' skipped", s.Construct),
			UnsupportedPayload{Construct: s.Construct})
		return normal, nil
	}

	span := stmt.NodeSpan()
	ec.record(&span, StepUnsupported,
		fmt.Sprintf("Unsupported statement '%s' skipped", stmt.Kind()),
		UnsupportedPayload{Construct: stmt.Kind()})
	return normal, nil
}

func (ec *execContext) execVarDecl(s *ast.VariableDeclaration) error {
	for _, d := range s.Declarations {
		var val Value = Undefined{}
		if d.Init != nil {
			v, err := ec.evalExpr(d.Init)
			if err != nil {
				return err
			}
			val = v
		}
		if c, ok := val.(*Closure); ok && c.Name == "" {
			c.Name = d.Name
		}
		ec.scope.Declare(d.Name, val, s.DeclKind == ast.DeclConst)
		span := d.Span
		ec.record(&span, StepDeclaration,
			fmt.Sprintf("Declared '%s' = %s", d.Name, FormatValue(val)),
			BindingPayload{Variable: d.Name, Value: val})
	}
	return nil
}

func (ec *execContext) execIf(s *ast.IfStatement) (completion, error) {
	test, err := ec.evalExpr(s.Test)
	if err != nil {
		return normal, err
	}
	cond := Truthiness(test)
	desc := "If condition is FALSE"
	if cond {
		desc = "If condition is TRUE"
	}
	span := s.Span
	ec.record(&span, StepCondition, desc, ConditionPayload{Condition: cond})

	if cond {
		return ec.execStmt(s.Consequent)
	}
	if s.Alternate != nil {
		return ec.execStmt(s.Alternate)
	}
	return normal, nil
}

// loopTest evaluates a loop test and records the loop step. It fails with
// an infinite-loop error instead when the test passes after the iteration
// cap has been reached.
func (ec *execContext) loopTest(span ast.Span, test ast.Expr, label string, iterations int) (bool, error) {
	cond := true
	if test != nil {
		v, err := ec.evalExpr(test)
		if err != nil {
			return false, err
		}
		cond = Truthiness(v)
	}
	if cond && iterations >= ec.opts.IterationCap {
		ec.log.Warn().Int("line", span.StartLine).Int("cap", ec.opts.IterationCap).Msg("iteration cap reached")
		return false, newRuntimeError(diagnostics.EInfiniteLoop, span,
			"Infinite loop detected: exceeded %d iterations", ec.opts.IterationCap)
	}
	outcome := "exit"
	if cond {
		outcome = "continue"
	}
	ec.record(&span, StepLoop, fmt.Sprintf("%s: %s", label, outcome), ConditionPayload{Condition: cond})
	return cond, nil
}

func (ec *execContext) execFor(s *ast.ForStatement) (completion, error) {
	if s.Init != nil {
		if _, err := ec.execStmt(s.Init); err != nil {
			return normal, err
		}
	}
	for iterations := 0; ; iterations++ {
		cond, err := ec.loopTest(s.Span, s.Test, "Loop condition", iterations)
		if err != nil || !cond {
			return normal, err
		}
		c, err := ec.execStmt(s.Body)
		if err != nil {
			return normal, err
		}
		switch c.signal {
		case sigReturn:
			return c, nil
		case sigBreak:
			return normal, nil
		}
		if s.Update != nil {
			if _, err := ec.evalExpr(s.Update); err != nil {
				return normal, err
			}
		}
	}
}

func (ec *execContext) execWhile(s *ast.WhileStatement) (completion, error) {
	for iterations := 0; ; iterations++ {
		cond, err := ec.loopTest(s.Span, s.Test, "While condition", iterations)
		if err != nil || !cond {
			return normal, err
		}
		c, err := ec.execStmt(s.Body)
		if err != nil {
			return normal, err
		}
		switch c.signal {
		case sigReturn:
			return c, nil
		case sigBreak:
			return normal, nil
		}
	}
}
