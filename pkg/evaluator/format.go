package evaluator

import (
	"strconv"
	"strings"
)

const (
	maxDisplayItems   = 10
	maxDisplayEntries = 3
)

// FormatValue renders a value for step descriptions: strings quoted, long
// arrays and records truncated, functions shown by their parameter list.
func FormatValue(v Value) string {
	var b strings.Builder
	writeDisplay(&b, v, map[Value]bool{})
	return b.String()
}

// FormatArgs formats a list of values separated by ", ".
func FormatArgs(args []Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatValue(a)
	}
	return strings.Join(parts, ", ")
}

// ConsoleString renders a console.log argument: strings print raw,
// everything else uses the display form.
func ConsoleString(v Value) string {
	if s, ok := v.(String); ok {
		return s.Value
	}
	return FormatValue(v)
}

func writeDisplay(b *strings.Builder, v Value, seen map[Value]bool) {
	switch val := v.(type) {
	case String:
		b.WriteString(strconv.Quote(val.Value))
	case *Array:
		if seen[val] {
			b.WriteString("[Circular]")
			return
		}
		seen[val] = true
		defer delete(seen, val)
		b.WriteByte('[')
		for i, item := range val.Items {
			if i == maxDisplayItems {
				b.WriteString(", ... +")
				b.WriteString(strconv.Itoa(len(val.Items) - maxDisplayItems))
				b.WriteString(" more")
				break
			}
			if i > 0 {
				b.WriteString(", ")
			}
			writeDisplay(b, item, seen)
		}
		b.WriteByte(']')
	case *Record:
		if seen[val] {
			b.WriteString("[Circular]")
			return
		}
		if len(val.Pairs) <= maxDisplayEntries {
			b.WriteString(valueToJSONString(val, seen))
			return
		}
		seen[val] = true
		defer delete(seen, val)
		b.WriteByte('{')
		for i, kv := range val.Pairs[:maxDisplayEntries] {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(kv.Key)
			b.WriteString(": ")
			writeDisplay(b, kv.Value, seen)
		}
		b.WriteString(",...}")
	case *Closure:
		b.WriteString(formatClosure(val))
	default:
		b.WriteString(ToString(v))
	}
}

func formatClosure(c *Closure) string {
	return "(" + strings.Join(c.Params, ", ") + ") => {...}"
}

// Clone returns a deep structural copy of v. Arrays and records are copied
// recursively, shared sub-values stay shared in the copy, and closures are
// returned as is.
func Clone(v Value) Value {
	return cloneValue(v, map[Value]Value{})
}

func cloneValue(v Value, memo map[Value]Value) Value {
	switch val := v.(type) {
	case nil:
		return NewUndefined()
	case *Array:
		if c, ok := memo[val]; ok {
			return c
		}
		c := &Array{Items: make([]Value, len(val.Items))}
		memo[val] = c
		for i, item := range val.Items {
			c.Items[i] = cloneValue(item, memo)
		}
		return c
	case *Record:
		if c, ok := memo[val]; ok {
			return c
		}
		c := &Record{Pairs: make([]KeyValue, len(val.Pairs))}
		memo[val] = c
		for i, kv := range val.Pairs {
			c.Pairs[i] = KeyValue{Key: kv.Key, Value: cloneValue(kv.Value, memo)}
		}
		return c
	}
	return v
}

// CloneAll deep-copies a slice of values.
func CloneAll(vs []Value) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = Clone(v)
	}
	return out
}
