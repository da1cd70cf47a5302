package stdlib

import (
	"math"
	"strings"

	"github.com/thomasrohde/steptrace/pkg/evaluator"
)

// RegisterDefaults adds all built-in methods.
func RegisterDefaults(r *Registry) {
	// Array mutators
	r.Register(Fn{Name: "push", Receiver: ArrayReceiver, Execute: arrayPush})
	r.Register(Fn{Name: "pop", Receiver: ArrayReceiver, Execute: arrayPop})
	r.Register(Fn{Name: "shift", Receiver: ArrayReceiver, Execute: arrayShift})
	r.Register(Fn{Name: "unshift", Receiver: ArrayReceiver, Execute: arrayUnshift})
	r.Register(Fn{Name: "splice", Receiver: ArrayReceiver, Execute: arraySplice})
	r.Register(Fn{Name: "reverse", Receiver: ArrayReceiver, Execute: arrayReverse})
	r.Register(Fn{Name: "sort", Receiver: ArrayReceiver, Execute: arraySort})

	// Array accessors
	r.Register(Fn{Name: "slice", Receiver: ArrayReceiver, Execute: arraySlice})
	r.Register(Fn{Name: "concat", Receiver: ArrayReceiver, Execute: arrayConcat})
	r.Register(Fn{Name: "join", Receiver: ArrayReceiver, Execute: arrayJoin})
	r.Register(Fn{Name: "includes", Receiver: ArrayReceiver, Execute: arrayIncludes})
	r.Register(Fn{Name: "indexOf", Receiver: ArrayReceiver, Execute: arrayIndexOf})

	// Array iteration with callbacks
	r.Register(Fn{Name: "map", Receiver: ArrayReceiver, Execute: arrayMap})
	r.Register(Fn{Name: "filter", Receiver: ArrayReceiver, Execute: arrayFilter})
	r.Register(Fn{Name: "forEach", Receiver: ArrayReceiver, Execute: arrayForEach})
	r.Register(Fn{Name: "reduce", Receiver: ArrayReceiver, Execute: arrayReduce})
	r.Register(Fn{Name: "find", Receiver: ArrayReceiver, Execute: arrayFind})
	r.Register(Fn{Name: "findIndex", Receiver: ArrayReceiver, Execute: arrayFindIndex})
	r.Register(Fn{Name: "some", Receiver: ArrayReceiver, Execute: arraySome})
	r.Register(Fn{Name: "every", Receiver: ArrayReceiver, Execute: arrayEvery})

	// String ops
	r.Register(Fn{Name: "toUpperCase", Receiver: StringReceiver, Execute: strToUpper})
	r.Register(Fn{Name: "toLowerCase", Receiver: StringReceiver, Execute: strToLower})
	r.Register(Fn{Name: "substring", Receiver: StringReceiver, Execute: strSubstring})
	r.Register(Fn{Name: "substr", Receiver: StringReceiver, Execute: strSubstring})
	r.Register(Fn{Name: "slice", Receiver: StringReceiver, Execute: strSlice})
	r.Register(Fn{Name: "split", Receiver: StringReceiver, Execute: strSplit})
	r.Register(Fn{Name: "trim", Receiver: StringReceiver, Execute: strTrim})
	r.Register(Fn{Name: "replace", Receiver: StringReceiver, Execute: strReplace})
	r.Register(Fn{Name: "includes", Receiver: StringReceiver, Execute: strIncludes})
	r.Register(Fn{Name: "indexOf", Receiver: StringReceiver, Execute: strIndexOf})
	r.Register(Fn{Name: "charAt", Receiver: StringReceiver, Execute: strCharAt})
	r.Register(Fn{Name: "startsWith", Receiver: StringReceiver, Execute: strStartsWith})
	r.Register(Fn{Name: "endsWith", Receiver: StringReceiver, Execute: strEndsWith})
	r.Register(Fn{Name: "repeat", Receiver: StringReceiver, Execute: strRepeat})
	r.Register(Fn{Name: "padStart", Receiver: StringReceiver, Execute: strPadStart})
	r.Register(Fn{Name: "padEnd", Receiver: StringReceiver, Execute: strPadEnd})
}

// arg returns the i-th argument or undefined.
func arg(args []evaluator.Value, i int) evaluator.Value {
	if i < len(args) {
		return args[i]
	}
	return evaluator.NewUndefined()
}

func isUndefined(v evaluator.Value) bool {
	_, ok := v.(evaluator.Undefined)
	return ok
}

// rawArgs joins arguments by their string form, without quoting.
func rawArgs(args []evaluator.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = evaluator.ToString(a)
	}
	return strings.Join(parts, ", ")
}

// toInteger truncates a numeric argument toward zero; NaN becomes 0.
func toInteger(v evaluator.Value) float64 {
	n := evaluator.ToNumber(v)
	if math.IsNaN(n) {
		return 0
	}
	return math.Trunc(n)
}

// relativeIndex resolves a possibly negative position against length,
// clamped to [0, length]. Undefined yields def.
func relativeIndex(v evaluator.Value, length, def int) int {
	if isUndefined(v) {
		return def
	}
	n := toInteger(v)
	if n < 0 {
		n += float64(length)
		if n < 0 {
			return 0
		}
		return int(n)
	}
	if n > float64(length) {
		return length
	}
	return int(n)
}

// clampIndex clamps a position to [0, length] without negative wrap-around.
func clampIndex(v evaluator.Value, length, def int) int {
	if isUndefined(v) {
		return def
	}
	n := toInteger(v)
	if n < 0 {
		return 0
	}
	if n > float64(length) {
		return length
	}
	return int(n)
}
