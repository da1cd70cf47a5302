// Package evaluator implements the stepping interpreter that turns a parsed
// program into an ordered trace of execution snapshots.
package evaluator

import (
	"math"
	"strconv"
	"strings"

	"github.com/thomasrohde/steptrace/pkg/ast"
)

// MaxLength bounds the length of any array or string a program builds.
const MaxLength = 1 << 24

// Value is the interface for all runtime values.
// Use the sealed marker method to restrict implementations to this package.
type Value interface {
	value() // sealed marker
}

// Undefined is the value of missing bindings, arguments and results.
type Undefined struct{}

func (Undefined) value() {}

// Null represents a null value.
type Null struct{}

func (Null) value() {}

// Bool represents a boolean value.
type Bool struct {
	Value bool
}

func (Bool) value() {}

// Number represents a numeric value. All numbers are float64.
type Number struct {
	Value float64
}

func (Number) value() {}

// String represents a string value.
type String struct {
	Value string
}

func (String) value() {}

// Array is an ordered, mutable sequence. Arrays have reference identity:
// every binding holding the same *Array observes the same mutations.
type Array struct {
	Items []Value
}

func (*Array) value() {}

// KeyValue is a key-value pair in an ordered record.
type KeyValue struct {
	Key   string
	Value Value
}

// Record is a mutable mapping of string keys to values with reference
// identity. Insertion order is preserved via the Pairs slice.
type Record struct {
	Pairs []KeyValue
	index map[string]int // lazy index for lookups
}

func (*Record) value() {}

// Closure is a callable function value. It keeps its parameters and body
// only; free names resolve against the scope stack at call time.
// Declared is set for functions introduced by a function declaration, which
// are traced with paired call and return steps.
type Closure struct {
	Name       string
	Params     []string
	Body       *ast.BlockStatement
	Expression ast.Expr
	Declared   bool
}

func (*Closure) value() {}

// NewUndefined creates an undefined value.
func NewUndefined() Value {
	return Undefined{}
}

// NewNull creates a null value.
func NewNull() Value {
	return Null{}
}

// NewBool creates a boolean value.
func NewBool(b bool) Value {
	return Bool{Value: b}
}

// NewNumber creates a numeric value.
func NewNumber(n float64) Value {
	return Number{Value: n}
}

// NewString creates a string value.
func NewString(s string) Value {
	return String{Value: s}
}

// NewArray creates an array value that owns items.
func NewArray(items []Value) *Array {
	if items == nil {
		items = []Value{}
	}
	return &Array{Items: items}
}

// NewRecord creates a record value from key-value pairs.
// Later duplicates of a key overwrite the earlier value in place.
func NewRecord(pairs []KeyValue) *Record {
	r := &Record{Pairs: make([]KeyValue, 0, len(pairs))}
	for _, kv := range pairs {
		r.Set(kv.Key, kv.Value)
	}
	return r
}

func (r *Record) ensureIndex() {
	if r.index == nil {
		r.index = make(map[string]int, len(r.Pairs))
		for i, kv := range r.Pairs {
			r.index[kv.Key] = i
		}
	}
}

// Get retrieves a value by key from the record.
func (r *Record) Get(key string) (Value, bool) {
	r.ensureIndex()
	i, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.Pairs[i].Value, true
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Set sets a value by key in the record, preserving insertion order.
func (r *Record) Set(key string, val Value) {
	r.ensureIndex()
	if i, ok := r.index[key]; ok {
		r.Pairs[i].Value = val
		return
	}
	r.index[key] = len(r.Pairs)
	r.Pairs = append(r.Pairs, KeyValue{Key: key, Value: val})
}

// Keys returns all keys in insertion order.
func (r *Record) Keys() []string {
	keys := make([]string, len(r.Pairs))
	for i, kv := range r.Pairs {
		keys[i] = kv.Key
	}
	return keys
}

// Len returns the number of entries.
func (r *Record) Len() int {
	return len(r.Pairs)
}

// Truthiness returns the boolean interpretation of a value.
// undefined, null, false, 0, NaN and "" are falsy; everything else is truthy.
func Truthiness(v Value) bool {
	switch val := v.(type) {
	case nil, Undefined, Null:
		return false
	case Bool:
		return val.Value
	case Number:
		return val.Value != 0 && !math.IsNaN(val.Value)
	case String:
		return val.Value != ""
	default:
		return true
	}
}

// TypeOf returns the result of the typeof operator.
func TypeOf(v Value) string {
	switch v.(type) {
	case nil, Undefined:
		return "undefined"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case *Closure:
		return "function"
	default:
		return "object"
	}
}

// IsNullish reports whether v is null or undefined.
func IsNullish(v Value) bool {
	switch v.(type) {
	case nil, Undefined, Null:
		return true
	}
	return false
}

// ToNumber converts a value to a number the way unary plus does.
func ToNumber(v Value) float64 {
	switch val := v.(type) {
	case Null:
		return 0
	case Bool:
		if val.Value {
			return 1
		}
		return 0
	case Number:
		return val.Value
	case String:
		return stringToNumber(val.Value)
	case *Array:
		return stringToNumber(ToString(val))
	default:
		return math.NaN()
	}
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	}
	// ParseFloat accepts forms such as "inf" and "1_000" that are not numbers here.
	for _, r := range s {
		if !strings.ContainsRune("0123456789.eE+-", r) {
			return math.NaN()
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}

// ToString converts a value to a string the way String(v) does.
func ToString(v Value) string {
	switch val := v.(type) {
	case nil, Undefined:
		return "undefined"
	case Null:
		return "null"
	case Bool:
		return strconv.FormatBool(val.Value)
	case Number:
		return FormatNumber(val.Value)
	case String:
		return val.Value
	case *Array:
		return joinArray(val, ",", map[*Array]bool{})
	case *Record:
		return "[object Object]"
	case *Closure:
		return formatClosure(val)
	}
	return ""
}

// JoinArray joins array elements with sep; null and undefined become empty.
// Output stops growing once it passes MaxLength, so a result longer than
// MaxLength means the full join was too long.
func JoinArray(a *Array, sep string) string {
	return joinArray(a, sep, map[*Array]bool{})
}

func joinArray(a *Array, sep string, seen map[*Array]bool) string {
	if seen[a] {
		return ""
	}
	seen[a] = true
	defer delete(seen, a)
	var b strings.Builder
	for i, item := range a.Items {
		if b.Len() > MaxLength {
			break
		}
		if i > 0 {
			b.WriteString(sep)
		}
		switch it := item.(type) {
		case nil, Undefined, Null:
		case *Array:
			b.WriteString(joinArray(it, ",", seen))
		default:
			b.WriteString(ToString(it))
		}
	}
	return b.String()
}

// FormatNumber renders a number the way String(n) does: whole numbers
// without a decimal point, NaN and Infinity by name.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	}
	abs := math.Abs(n)
	if abs >= 1e21 || abs < 1e-6 {
		// Go pads the exponent to two digits: 1e-07 prints as 1e-7.
		s := strconv.FormatFloat(n, 'e', -1, 64)
		s = strings.Replace(s, "e-0", "e-", 1)
		return strings.Replace(s, "e+0", "e+", 1)
	}
	if n == math.Trunc(n) {
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// ArrayIndex interprets v as an array index.
func ArrayIndex(v Value) (int, bool) {
	var n float64
	switch val := v.(type) {
	case Number:
		n = val.Value
	case String:
		if val.Value == "" {
			return 0, false
		}
		n = stringToNumber(val.Value)
	default:
		return 0, false
	}
	if n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

// PropertyKey converts a computed member key to its property name.
func PropertyKey(v Value) string {
	return ToString(v)
}
