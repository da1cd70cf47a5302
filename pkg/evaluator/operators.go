package evaluator

import (
	"math"

	"github.com/thomasrohde/steptrace/pkg/ast"
)

// StrictEqual implements ===. Arrays, records and closures compare by identity.
func StrictEqual(a, b Value) bool {
	switch av := a.(type) {
	case nil, Undefined:
		switch b.(type) {
		case nil, Undefined:
			return true
		}
		return false
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av.Value == bv.Value
	case Number:
		bv, ok := b.(Number)
		return ok && av.Value == bv.Value
	case String:
		bv, ok := b.(String)
		return ok && av.Value == bv.Value
	case *Array:
		bv, ok := b.(*Array)
		return ok && av == bv
	case *Record:
		bv, ok := b.(*Record)
		return ok && av == bv
	case *Closure:
		bv, ok := b.(*Closure)
		return ok && av == bv
	}
	return false
}

// SameValueZero is StrictEqual except that NaN equals NaN. It is the
// comparison used by includes.
func SameValueZero(a, b Value) bool {
	if an, ok := a.(Number); ok {
		if bn, ok := b.(Number); ok && math.IsNaN(an.Value) && math.IsNaN(bn.Value) {
			return true
		}
	}
	return StrictEqual(a, b)
}

func isObject(v Value) bool {
	switch v.(type) {
	case *Array, *Record, *Closure:
		return true
	}
	return false
}

// toPrimitive converts arrays, records and closures to their string form.
func toPrimitive(v Value) Value {
	if isObject(v) {
		return NewString(ToString(v))
	}
	return v
}

// LooseEqual implements == with the usual coercions.
func LooseEqual(a, b Value) bool {
	if IsNullish(a) || IsNullish(b) {
		return IsNullish(a) && IsNullish(b)
	}
	if isObject(a) && isObject(b) {
		return StrictEqual(a, b)
	}
	switch av := a.(type) {
	case Bool:
		return LooseEqual(NewNumber(ToNumber(av)), b)
	case Number:
		switch bv := b.(type) {
		case Number:
			return av.Value == bv.Value
		case String:
			return av.Value == ToNumber(bv)
		}
	case String:
		switch bv := b.(type) {
		case String:
			return av.Value == bv.Value
		case Number:
			return ToNumber(av) == bv.Value
		}
	}
	if bv, ok := b.(Bool); ok {
		return LooseEqual(a, NewNumber(ToNumber(bv)))
	}
	if isObject(a) {
		return LooseEqual(toPrimitive(a), b)
	}
	if isObject(b) {
		return LooseEqual(a, toPrimitive(b))
	}
	return false
}

// Add implements +: string concatenation when either operand is (or converts
// to) a string, numeric addition otherwise.
func Add(a, b Value) Value {
	pa, pb := toPrimitive(a), toPrimitive(b)
	_, aStr := pa.(String)
	_, bStr := pb.(String)
	if aStr || bStr {
		return NewString(ToString(pa) + ToString(pb))
	}
	return NewNumber(ToNumber(pa) + ToNumber(pb))
}

// Arithmetic applies a binary operator to two values.
func Arithmetic(op ast.BinaryOp, a, b Value) Value {
	switch op {
	case ast.OpAdd:
		return Add(a, b)
	case ast.OpSub:
		return NewNumber(ToNumber(a) - ToNumber(b))
	case ast.OpMul:
		return NewNumber(ToNumber(a) * ToNumber(b))
	case ast.OpDiv:
		return NewNumber(ToNumber(a) / ToNumber(b))
	case ast.OpMod:
		return NewNumber(math.Mod(ToNumber(a), ToNumber(b)))
	case ast.OpEqEq:
		return NewBool(LooseEqual(a, b))
	case ast.OpNeq:
		return NewBool(!LooseEqual(a, b))
	case ast.OpStrictEq:
		return NewBool(StrictEqual(a, b))
	case ast.OpStrictNeq:
		return NewBool(!StrictEqual(a, b))
	case ast.OpLt, ast.OpGt, ast.OpLtEq, ast.OpGtEq:
		return NewBool(compare(op, a, b))
	}
	return NewUndefined()
}

// compare implements the relational operators. Two strings compare
// lexicographically; anything else compares numerically and NaN is unordered.
func compare(op ast.BinaryOp, a, b Value) bool {
	pa, pb := toPrimitive(a), toPrimitive(b)
	if as, ok := pa.(String); ok {
		if bs, ok := pb.(String); ok {
			switch op {
			case ast.OpLt:
				return as.Value < bs.Value
			case ast.OpGt:
				return as.Value > bs.Value
			case ast.OpLtEq:
				return as.Value <= bs.Value
			case ast.OpGtEq:
				return as.Value >= bs.Value
			}
		}
	}
	x, y := ToNumber(pa), ToNumber(pb)
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	switch op {
	case ast.OpLt:
		return x < y
	case ast.OpGt:
		return x > y
	case ast.OpLtEq:
		return x <= y
	case ast.OpGtEq:
		return x >= y
	}
	return false
}
