package evaluator

import (
	"fmt"
	"math"
	"strings"

	"github.com/thomasrohde/steptrace/pkg/ast"
	"github.com/thomasrohde/steptrace/pkg/diagnostics"
	"github.com/thomasrohde/steptrace/pkg/formatter"
)

func (ec *execContext) evalExpr(expr ast.Expr) (Value, error) {
	if expr == nil {
		return Undefined{}, nil
	}

	switch e := expr.(type) {
	case *ast.NumberLiteral:
		return NewNumber(e.Value), nil

	case *ast.StringLiteral:
		return NewString(e.Value), nil

	case *ast.BooleanLiteral:
		return NewBool(e.Value), nil

	case *ast.NullLiteral:
		return NewNull(), nil

	case *ast.UndefinedLiteral:
		return NewUndefined(), nil

	case *ast.TemplateLiteral:
		return ec.evalTemplate(e)

	case *ast.Identifier:
		return ec.evalIdentifier(e)

	case *ast.ArrayExpression:
		items, err := ec.evalList(e.Elements)
		if err != nil {
			return nil, err
		}
		return NewArray(items), nil

	case *ast.ObjectExpression:
		return ec.evalObject(e)

	case *ast.FunctionExpression:
		return &Closure{Name: e.Name, Params: e.Params, Body: e.Body}, nil

	case *ast.ArrowFunctionExpression:
		return &Closure{Params: e.Params, Body: e.Body, Expression: e.Expression}, nil

	case *ast.CallExpression:
		return ec.evalCall(e)

	case *ast.MemberExpression:
		obj, key, err := ec.evalMemberParts(e)
		if err != nil {
			return nil, err
		}
		return ec.getMember(obj, key, e)

	case *ast.AssignmentExpression:
		return ec.evalAssignment(e)

	case *ast.UpdateExpression:
		return ec.evalUpdate(e)

	case *ast.BinaryExpression:
		left, err := ec.evalExpr(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := ec.evalExpr(e.Right)
		if err != nil {
			return nil, err
		}
		return checkLength(Arithmetic(e.Op, left, right), e.Span)

	case *ast.LogicalExpression:
		return ec.evalLogical(e)

	case *ast.UnaryExpression:
		return ec.evalUnary(e)

	case *ast.ConditionalExpression:
		test, err := ec.evalExpr(e.Test)
		if err != nil {
			return nil, err
		}
		if Truthiness(test) {
			return ec.evalExpr(e.Consequent)
		}
		return ec.evalExpr(e.Alternate)
	}

	// SpreadElement outside a list and UnsupportedExpression degrade to undefined.
	ec.log.Debug().Str("kind", expr.Kind()).Msg("unsupported expression evaluates to undefined")
	return Undefined{}, nil
}

func (ec *execContext) evalTemplate(e *ast.TemplateLiteral) (Value, error) {
	var b strings.Builder
	for i, quasi := range e.Quasis {
		b.WriteString(quasi)
		if i < len(e.Expressions) {
			v, err := ec.evalExpr(e.Expressions[i])
			if err != nil {
				return nil, err
			}
			b.WriteString(ToString(v))
			if b.Len() > MaxLength {
				return nil, newRuntimeError(diagnostics.ERuntime, e.Span, "Invalid string length")
			}
		}
	}
	return NewString(b.String()), nil
}

// checkLength rejects string results longer than MaxLength.
func checkLength(v Value, span ast.Span) (Value, error) {
	if s, ok := v.(String); ok && len(s.Value) > MaxLength {
		return nil, newRuntimeError(diagnostics.ERuntime, span, "Invalid string length")
	}
	return v, nil
}

func (ec *execContext) evalIdentifier(e *ast.Identifier) (Value, error) {
	if v, ok := ec.lookup(e.Name); ok {
		return v, nil
	}
	return nil, unboundError(e)
}

// lookup resolves a name against the scope stack, then the function table,
// then the few global constants.
func (ec *execContext) lookup(name string) (Value, bool) {
	if v, ok := ec.scope.Lookup(name); ok {
		return v, true
	}
	if fn, ok := ec.functions[name]; ok {
		return fn, true
	}
	switch name {
	case "NaN":
		return NewNumber(math.NaN()), true
	case "Infinity":
		return NewNumber(math.Inf(1)), true
	}
	return nil, false
}

func unboundError(e *ast.Identifier) *RuntimeError {
	return newRuntimeError(diagnostics.EUnbound, e.Span, "Variable '%s' is not defined", e.Name)
}

// evalList evaluates array elements or call arguments, expanding spreads.
func (ec *execContext) evalList(exprs []ast.Expr) ([]Value, error) {
	items := make([]Value, 0, len(exprs))
	for _, expr := range exprs {
		spread, ok := expr.(*ast.SpreadElement)
		if !ok {
			v, err := ec.evalExpr(expr)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
			continue
		}
		v, err := ec.evalExpr(spread.Argument)
		if err != nil {
			return nil, err
		}
		switch sv := v.(type) {
		case *Array:
			items = append(items, sv.Items...)
		case String:
			for _, r := range sv.Value {
				items = append(items, NewString(string(r)))
			}
		default:
			return nil, newRuntimeError(diagnostics.ERuntime, spread.Span,
				"Spread syntax requires an iterable, got %s", TypeOf(v))
		}
		if len(items) > MaxLength {
			return nil, newRuntimeError(diagnostics.ERuntime, spread.Span, "Invalid array length")
		}
	}
	return items, nil
}

func (ec *execContext) evalObject(e *ast.ObjectExpression) (Value, error) {
	rec := NewRecord(nil)
	for _, member := range e.Properties {
		switch m := member.(type) {
		case *ast.Property:
			key := m.Key
			if m.Computed {
				k, err := ec.evalExpr(m.KeyExpr)
				if err != nil {
					return nil, err
				}
				key = PropertyKey(k)
			}
			v, err := ec.evalExpr(m.Value)
			if err != nil {
				return nil, err
			}
			if c, ok := v.(*Closure); ok && c.Name == "" {
				c.Name = key
			}
			rec.Set(key, v)

		case *ast.SpreadElement:
			v, err := ec.evalExpr(m.Argument)
			if err != nil {
				return nil, err
			}
			switch sv := v.(type) {
			case *Record:
				for _, kv := range sv.Pairs {
					rec.Set(kv.Key, kv.Value)
				}
			case *Array:
				for i, item := range sv.Items {
					rec.Set(FormatNumber(float64(i)), item)
				}
			}
		}
	}
	return rec, nil
}

// evalMemberParts evaluates the object and property key of a member access.
func (ec *execContext) evalMemberParts(e *ast.MemberExpression) (Value, Value, error) {
	obj, err := ec.evalExpr(e.Object)
	if err != nil {
		return nil, nil, err
	}
	if !e.Computed {
		return obj, NewString(e.PropertyName()), nil
	}
	key, err := ec.evalExpr(e.Property)
	if err != nil {
		return nil, nil, err
	}
	return obj, key, nil
}

func (ec *execContext) getMember(obj, key Value, e *ast.MemberExpression) (Value, error) {
	name := PropertyKey(key)
	switch o := obj.(type) {
	case nil, Undefined, Null:
		return nil, newRuntimeError(diagnostics.ERuntime, e.Span,
			"Cannot read properties of %s (reading '%s')", ToString(obj), name)

	case *Array:
		if name == "length" {
			return NewNumber(float64(len(o.Items))), nil
		}
		if i, ok := ArrayIndex(key); ok && i < len(o.Items) {
			return o.Items[i], nil
		}

	case String:
		runes := []rune(o.Value)
		if name == "length" {
			return NewNumber(float64(len(runes))), nil
		}
		if i, ok := ArrayIndex(key); ok && i < len(runes) {
			return NewString(string(runes[i])), nil
		}

	case *Record:
		if v, ok := o.Get(name); ok {
			return v, nil
		}
	}
	return Undefined{}, nil
}

func (ec *execContext) evalLogical(e *ast.LogicalExpression) (Value, error) {
	left, err := ec.evalExpr(e.Left)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.OpAnd:
		if !Truthiness(left) {
			return left, nil
		}
	case ast.OpOr:
		if Truthiness(left) {
			return left, nil
		}
	case ast.OpNullish:
		if !IsNullish(left) {
			return left, nil
		}
	}
	return ec.evalExpr(e.Right)
}

func (ec *execContext) evalUnary(e *ast.UnaryExpression) (Value, error) {
	if e.Op == ast.OpTypeof {
		// typeof on an undeclared name is "undefined", not an error.
		if id, ok := e.Operand.(*ast.Identifier); ok {
			v, found := ec.lookup(id.Name)
			if !found {
				return NewString("undefined"), nil
			}
			return NewString(TypeOf(v)), nil
		}
	}
	operand, err := ec.evalExpr(e.Operand)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.OpNeg:
		return NewNumber(-ToNumber(operand)), nil
	case ast.OpPlus:
		return NewNumber(ToNumber(operand)), nil
	case ast.OpNot:
		return NewBool(!Truthiness(operand)), nil
	case ast.OpTypeof:
		return NewString(TypeOf(operand)), nil
	}
	return Undefined{}, nil
}

func (ec *execContext) evalAssignment(e *ast.AssignmentExpression) (Value, error) {
	switch target := e.Target.(type) {
	case *ast.Identifier:
		current, ok := ec.lookup(target.Name)
		if !ok {
			return nil, unboundError(target)
		}
		val, err := ec.assignedValue(e, current)
		if err != nil {
			return nil, err
		}
		if err := ec.assignName(target, val); err != nil {
			return nil, err
		}
		ec.record(&e.Span, StepAssignment,
			fmt.Sprintf("Updated '%s' = %s", target.Name, FormatValue(val)),
			AssignmentPayload{Target: target.Name, Value: val})
		return val, nil

	case *ast.MemberExpression:
		obj, key, err := ec.evalMemberParts(target)
		if err != nil {
			return nil, err
		}
		var current Value = Undefined{}
		if e.Op != ast.OpAssign {
			if current, err = ec.getMember(obj, key, target); err != nil {
				return nil, err
			}
		}
		val, err := ec.assignedValue(e, current)
		if err != nil {
			return nil, err
		}
		if err := ec.setMember(obj, key, val, target); err != nil {
			return nil, err
		}
		path := memberPath(target, key)
		ec.record(&e.Span, StepAssignment,
			fmt.Sprintf("Set %s = %s", path, FormatValue(val)),
			AssignmentPayload{Target: path, Value: val})
		return val, nil
	}

	return nil, newRuntimeError(diagnostics.ERuntime, e.Span, "Invalid assignment target")
}

// assignedValue computes the value an assignment stores, applying the
// arithmetic of compound operators to the current value.
func (ec *execContext) assignedValue(e *ast.AssignmentExpression, current Value) (Value, error) {
	rhs, err := ec.evalExpr(e.Value)
	if err != nil {
		return nil, err
	}
	if op, ok := e.Op.Binary(); ok {
		return checkLength(Arithmetic(op, current, rhs), e.Span)
	}
	if c, ok := rhs.(*Closure); ok && c.Name == "" {
		if id, ok := e.Target.(*ast.Identifier); ok {
			c.Name = id.Name
		}
	}
	return rhs, nil
}

func (ec *execContext) assignName(target *ast.Identifier, val Value) error {
	if ec.scope.IsConst(target.Name) {
		return newRuntimeError(diagnostics.ERuntime, target.Span,
			"Assignment to constant variable '%s'", target.Name)
	}
	if !ec.scope.Assign(target.Name, val, ec.opts.LocalAssignment) {
		// Bound only in the function table: rebinding shadows the declaration.
		if _, ok := ec.functions[target.Name]; !ok {
			return unboundError(target)
		}
		ec.scope.Declare(target.Name, val, false)
	}
	return nil
}

func (ec *execContext) setMember(obj, key, val Value, target *ast.MemberExpression) error {
	name := PropertyKey(key)
	switch o := obj.(type) {
	case *Array:
		if name == "length" {
			n, ok := ArrayIndex(val)
			if !ok || n > MaxLength {
				return newRuntimeError(diagnostics.ERuntime, target.Span, "Invalid array length")
			}
			resizeArray(o, n)
			return nil
		}
		i, ok := ArrayIndex(key)
		if !ok {
			return newRuntimeError(diagnostics.ERuntime, target.Span,
				"Cannot set property '%s' of an array", name)
		}
		if i >= len(o.Items) {
			if i >= MaxLength {
				return newRuntimeError(diagnostics.ERuntime, target.Span, "Invalid array length")
			}
			resizeArray(o, i+1)
		}
		o.Items[i] = val
		return nil

	case *Record:
		o.Set(name, val)
		return nil

	case nil, Undefined, Null:
		return newRuntimeError(diagnostics.ERuntime, target.Span,
			"Cannot set properties of %s (setting '%s')", ToString(obj), name)
	}
	return newRuntimeError(diagnostics.ERuntime, target.Span,
		"Cannot set property '%s' on a %s", name, TypeOf(obj))
}

func resizeArray(a *Array, n int) {
	if n <= len(a.Items) {
		a.Items = a.Items[:n]
		return
	}
	for len(a.Items) < n {
		a.Items = append(a.Items, Undefined{})
	}
}

// memberPath renders an assignment target for step descriptions, using the
// evaluated key for computed access: arr[0], user.name, grid[1][2].
func memberPath(target *ast.MemberExpression, key Value) string {
	base := formatter.FormatExpr(target.Object)
	if !target.Computed {
		return base + "." + target.PropertyName()
	}
	if s, ok := key.(String); ok {
		return base + "[" + FormatValue(s) + "]"
	}
	return base + "[" + ToString(key) + "]"
}

func (ec *execContext) evalUpdate(e *ast.UpdateExpression) (Value, error) {
	delta := 1.0
	if e.Op == "--" {
		delta = -1
	}
	switch target := e.Argument.(type) {
	case *ast.Identifier:
		current, ok := ec.lookup(target.Name)
		if !ok {
			return nil, unboundError(target)
		}
		old := ToNumber(current)
		updated := NewNumber(old + delta)
		if err := ec.assignName(target, updated); err != nil {
			return nil, err
		}
		if e.Prefix {
			return updated, nil
		}
		return NewNumber(old), nil

	case *ast.MemberExpression:
		obj, key, err := ec.evalMemberParts(target)
		if err != nil {
			return nil, err
		}
		current, err := ec.getMember(obj, key, target)
		if err != nil {
			return nil, err
		}
		old := ToNumber(current)
		updated := NewNumber(old + delta)
		if err := ec.setMember(obj, key, updated, target); err != nil {
			return nil, err
		}
		if e.Prefix {
			return updated, nil
		}
		return NewNumber(old), nil
	}
	return nil, newRuntimeError(diagnostics.ERuntime, e.Span,
		"Invalid left-hand side expression in %s operation", e.Op)
}
