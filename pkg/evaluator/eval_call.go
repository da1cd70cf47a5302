package evaluator

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/thomasrohde/steptrace/pkg/ast"
	"github.com/thomasrohde/steptrace/pkg/diagnostics"
)

// evalCall dispatches a call: console.log first, then built-in methods on
// arrays and strings, then user functions and closures.
func (ec *execContext) evalCall(e *ast.CallExpression) (Value, error) {
	if member, ok := e.Callee.(*ast.MemberExpression); ok {
		if ec.isConsoleLog(member) {
			return ec.consoleLog(e)
		}
		return ec.evalMethodCall(e, member)
	}

	var callee Value
	if id, ok := e.Callee.(*ast.Identifier); ok {
		v, found := ec.lookup(id.Name)
		if !found {
			return nil, unboundError(id)
		}
		callee = v
	} else {
		v, err := ec.evalExpr(e.Callee)
		if err != nil {
			return nil, err
		}
		callee = v
	}

	fn, ok := callee.(*Closure)
	if !ok {
		return nil, newRuntimeError(diagnostics.EUnsupported, e.Span,
			"Unsupported function call: %s is not a function", calleeName(e.Callee))
	}
	args, err := ec.evalList(e.Arguments)
	if err != nil {
		return nil, err
	}
	return ec.callClosure(fn, args, e.Span)
}

func calleeName(expr ast.Expr) string {
	if id, ok := expr.(*ast.Identifier); ok {
		return "'" + id.Name + "'"
	}
	return "expression"
}

// isConsoleLog reports whether member is console.log with console unbound.
func (ec *execContext) isConsoleLog(member *ast.MemberExpression) bool {
	obj, ok := member.Object.(*ast.Identifier)
	if !ok || obj.Name != "console" || member.PropertyName() != "log" {
		return false
	}
	_, shadowed := ec.lookup("console")
	return !shadowed
}

func (ec *execContext) consoleLog(e *ast.CallExpression) (Value, error) {
	args, err := ec.evalList(e.Arguments)
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = ConsoleString(a)
	}
	out := strings.Join(parts, " ")
	ec.console = append(ec.console, out)
	ec.record(&e.Span, StepConsole, "Console: "+out, ConsolePayload{Output: out})
	return Undefined{}, nil
}

func (ec *execContext) evalMethodCall(e *ast.CallExpression, member *ast.MemberExpression) (Value, error) {
	obj, key, err := ec.evalMemberParts(member)
	if err != nil {
		return nil, err
	}
	name := PropertyKey(key)

	var (
		table map[string]*MethodFn
		kind  StepKind
		label string
	)
	switch obj.(type) {
	case *Array:
		table, kind, label = ec.opts.ArrayMethods, StepArrayMethod, "Array"
	case String:
		table, kind, label = ec.opts.StringMethods, StepStringMethod, "String"
	case *Record:
		return nil, newRuntimeError(diagnostics.EUnsupported, e.Span,
			"Object method '%s' is not yet supported", name)
	case nil, Undefined, Null:
		return nil, newRuntimeError(diagnostics.ERuntime, e.Span,
			"Cannot read properties of %s (reading '%s')", ToString(obj), name)
	default:
		return nil, newRuntimeError(diagnostics.EUnsupported, e.Span,
			"Method '%s' is not supported on %s values", name, TypeOf(obj))
	}

	method, ok := table[name]
	if !ok {
		return nil, newRuntimeError(diagnostics.EUnsupported, e.Span,
			"%s method '%s' is not supported", label, name)
	}
	args, err := ec.evalList(e.Arguments)
	if err != nil {
		return nil, err
	}
	outer := ec.site
	ec.site = e.Span
	result, desc, err := method.Execute(ec, obj, args)
	ec.site = outer
	if err != nil {
		var rtErr *RuntimeError
		if errors.As(err, &rtErr) {
			return nil, err
		}
		return nil, newRuntimeError(diagnostics.ERuntime, e.Span, "%s", err.Error())
	}
	if result == nil {
		result = Undefined{}
	}
	ec.record(&e.Span, kind, desc, MethodPayload{Method: name, Result: result})
	return result, nil
}

// Invoke implements Invoker for built-in methods that take callbacks.
func (ec *execContext) Invoke(fn Value, args []Value) (Value, error) {
	span := ec.site
	c, ok := fn.(*Closure)
	if !ok {
		return nil, &RuntimeError{
			Code:    diagnostics.ERuntime,
			Message: fmt.Sprintf("%s is not a function", FormatValue(fn)),
			Span:    &span,
		}
	}
	return ec.callClosure(c, args, ec.site)
}

// callClosure runs a function value in a fresh frame. Declared functions are
// traced with function-call and function-return steps and appear on the call
// stack; closures run silently apart from the steps their bodies record.
func (ec *execContext) callClosure(fn *Closure, args []Value, span ast.Span) (Value, error) {
	// The root frame holds program bindings; every active call adds one.
	depth := ec.scope.Depth() - 1
	if depth >= ec.opts.MaxCallDepth {
		ec.log.Warn().Str("function", fn.Name).Int("depth", depth).Msg("call depth limit reached")
		return nil, newRuntimeError(diagnostics.ERuntime, span, "Maximum call stack size exceeded")
	}

	var callSpan *ast.Span
	if span.StartLine > 0 {
		callSpan = &span
	}
	if fn.Declared {
		ec.callStack = append(ec.callStack, fn.Name)
		ec.record(callSpan, StepFunctionCall,
			fmt.Sprintf("Calling function '%s(%s)'", fn.Name, FormatArgs(args)),
			CallPayload{FunctionName: fn.Name, Arguments: args})
	}
	ec.log.Debug().Str("function", fn.Name).Int("depth", depth+1).Msg("enter frame")

	ec.scope.Push()
	for i, param := range fn.Params {
		var v Value = Undefined{}
		if i < len(args) {
			v = args[i]
		}
		ec.scope.Declare(param, v, false)
	}

	// Functions declared in the body are visible only until the call returns.
	outer := maps.Clone(ec.functions)
	result, err := ec.runBody(fn)
	if err != nil {
		ec.captureState(err)
	}
	ec.functions = outer
	ec.scope.Pop()
	ec.log.Debug().Str("function", fn.Name).Msg("exit frame")

	if fn.Declared {
		ec.callStack = ec.callStack[:len(ec.callStack)-1]
	}
	if err != nil {
		return nil, err
	}
	if fn.Declared {
		ec.record(callSpan, StepFunctionReturn,
			fmt.Sprintf("Function '%s' returned %s", fn.Name, FormatValue(result)),
			ReturnPayload{FunctionName: fn.Name, ReturnValue: result})
	}
	return result, nil
}

func (ec *execContext) runBody(fn *Closure) (Value, error) {
	if fn.Expression != nil {
		return ec.evalExpr(fn.Expression)
	}
	if fn.Body == nil {
		return Undefined{}, nil
	}
	ec.hoist(fn.Body.Body)
	c, err := ec.execBlock(fn.Body.Body)
	if err != nil {
		return nil, err
	}
	if c.signal == sigReturn && c.value != nil {
		return c.value, nil
	}
	return Undefined{}, nil
}
