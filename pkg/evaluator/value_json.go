package evaluator

import (
	"encoding/json"
	"math"
)

// ValueToJSON marshals a value to JSON bytes for trace output.
// Records preserve key order, integral numbers print without a decimal point,
// undefined and non-finite numbers become null and closures are rendered as
// their display string.
func ValueToJSON(v Value) ([]byte, error) {
	raw := valueToRaw(v, false, map[Value]bool{})
	return json.Marshal(raw)
}

// ValueToJSONString is a convenience that returns a string.
func ValueToJSONString(v Value) string {
	b, err := ValueToJSON(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// valueToJSONString renders v the way JSON.stringify does, dropping
// undefined and function-valued record entries.
func valueToJSONString(v Value, seen map[Value]bool) string {
	raw := valueToRaw(v, true, seen)
	b, err := json.Marshal(raw)
	if err != nil {
		return "null"
	}
	return string(b)
}

func valueToRaw(v Value, stringify bool, seen map[Value]bool) any {
	switch val := v.(type) {
	case nil, Undefined, Null:
		return nil

	case Bool:
		return val.Value

	case Number:
		if math.IsNaN(val.Value) || math.IsInf(val.Value, 0) {
			return nil
		}
		// Output integers without decimal point
		if val.Value == math.Trunc(val.Value) && math.Abs(val.Value) < 1e15 {
			return int64(val.Value)
		}
		return val.Value

	case String:
		return val.Value

	case *Closure:
		if stringify {
			return nil
		}
		return formatClosure(val)

	case *Array:
		if seen[val] {
			return "[Circular]"
		}
		seen[val] = true
		defer delete(seen, val)
		items := make([]any, len(val.Items))
		for i, item := range val.Items {
			items[i] = valueToRaw(item, stringify, seen)
		}
		return items

	case *Record:
		if seen[val] {
			return "[Circular]"
		}
		seen[val] = true
		defer delete(seen, val)
		rec := &orderedRecord{pairs: make([]rawPair, 0, len(val.Pairs))}
		for _, kv := range val.Pairs {
			if stringify {
				switch kv.Value.(type) {
				case nil, Undefined, *Closure:
					continue
				}
			}
			rec.pairs = append(rec.pairs, rawPair{key: kv.Key, value: valueToRaw(kv.Value, stringify, seen)})
		}
		return rec
	}

	return nil
}

type rawPair struct {
	key   string
	value any
}

// orderedRecord preserves key order in JSON output.
type orderedRecord struct {
	pairs []rawPair
}

func (o *orderedRecord) MarshalJSON() ([]byte, error) {
	if len(o.pairs) == 0 {
		return []byte("{}"), nil
	}

	buf := []byte{'{'}
	for i, kv := range o.pairs {
		if i > 0 {
			buf = append(buf, ',')
		}
		// Key
		keyBytes, err := json.Marshal(kv.key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')

		// Value
		valBytes, err := json.Marshal(kv.value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, valBytes...)
	}
	buf = append(buf, '}')
	return buf, nil
}
