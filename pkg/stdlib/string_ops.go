package stdlib

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thomasrohde/steptrace/pkg/evaluator"
)

var errNotString = errors.New("receiver is not a string")

func asString(recv evaluator.Value) (string, error) {
	s, ok := recv.(evaluator.String)
	if !ok {
		return "", errNotString
	}
	return s.Value, nil
}

// stringArg renders an argument for a description: its string form in
// single quotes, or nothing when absent.
func stringArg(args []evaluator.Value, i int) string {
	if i >= len(args) {
		return ""
	}
	return "'" + evaluator.ToString(args[i]) + "'"
}

func strResult(method, argDesc, result string) (evaluator.Value, string, error) {
	if len(result) > evaluator.MaxLength {
		return nil, "", errInvalidStringLength
	}
	return evaluator.NewString(result), fmt.Sprintf("String.%s(%s) → %q", method, argDesc, result), nil
}

// toUpperCase() → string
func strToUpper(_ evaluator.Invoker, recv evaluator.Value, _ []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	return strResult("toUpperCase", "", strings.ToUpper(s))
}

// toLowerCase() → string
func strToLower(_ evaluator.Invoker, recv evaluator.Value, _ []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	return strResult("toLowerCase", "", strings.ToLower(s))
}

// substring(start, end?) → string. Negative positions clamp to zero and
// swapped bounds are reordered.
func strSubstring(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	runes := []rune(s)
	start := clampIndex(arg(args, 0), len(runes), 0)
	end := clampIndex(arg(args, 1), len(runes), len(runes))
	if start > end {
		start, end = end, start
	}
	return strResult("substring", rawArgs(args), string(runes[start:end]))
}

// slice(start?, end?) → string; negative positions count from the end
func strSlice(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	runes := []rune(s)
	start := relativeIndex(arg(args, 0), len(runes), 0)
	end := relativeIndex(arg(args, 1), len(runes), len(runes))
	out := ""
	if start < end {
		out = string(runes[start:end])
	}
	return strResult("slice", rawArgs(args), out)
}

// split(separator?) → array of strings
func strSplit(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	var parts []string
	sep := arg(args, 0)
	switch {
	case isUndefined(sep):
		parts = []string{s}
	case evaluator.ToString(sep) == "":
		for _, r := range s {
			parts = append(parts, string(r))
		}
	default:
		parts = strings.Split(s, evaluator.ToString(sep))
	}
	items := make([]evaluator.Value, len(parts))
	for i, p := range parts {
		items[i] = evaluator.NewString(p)
	}
	result := evaluator.NewArray(items)
	return result, fmt.Sprintf("String.split(%s) → %s", stringArg(args, 0), evaluator.FormatValue(result)), nil
}

// trim() → string without surrounding whitespace
func strTrim(_ evaluator.Invoker, recv evaluator.Value, _ []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	return strResult("trim", "", strings.TrimSpace(s))
}

// replace(pattern, replacement) → string with the first occurrence replaced
func strReplace(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	pattern := evaluator.ToString(arg(args, 0))
	replacement := evaluator.ToString(arg(args, 1))
	desc := stringArg(args, 0)
	if len(args) > 1 {
		desc += ", " + stringArg(args, 1)
	}
	return strResult("replace", desc, strings.Replace(s, pattern, replacement, 1))
}

// includes(search) → bool
func strIncludes(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	found := strings.Contains(s, evaluator.ToString(arg(args, 0)))
	return evaluator.NewBool(found), fmt.Sprintf("String.includes(%s) → %t", stringArg(args, 0), found), nil
}

// indexOf(search) → character position or -1
func strIndexOf(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	idx := strings.Index(s, evaluator.ToString(arg(args, 0)))
	if idx > 0 {
		idx = len([]rune(s[:idx]))
	}
	return evaluator.NewNumber(float64(idx)), fmt.Sprintf("String.indexOf(%s) → %d", stringArg(args, 0), idx), nil
}

// charAt(index) → single character or empty string
func strCharAt(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	runes := []rune(s)
	pos := toInteger(arg(args, 0))
	out := ""
	if pos >= 0 && pos < float64(len(runes)) {
		out = string(runes[int(pos)])
	}
	return strResult("charAt", rawArgs(args), out)
}

// startsWith(prefix) → bool
func strStartsWith(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	ok := strings.HasPrefix(s, evaluator.ToString(arg(args, 0)))
	return evaluator.NewBool(ok), fmt.Sprintf("String.startsWith(%s) → %t", stringArg(args, 0), ok), nil
}

// endsWith(suffix) → bool
func strEndsWith(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	ok := strings.HasSuffix(s, evaluator.ToString(arg(args, 0)))
	return evaluator.NewBool(ok), fmt.Sprintf("String.endsWith(%s) → %t", stringArg(args, 0), ok), nil
}

// repeat(count) → string
func strRepeat(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	count := toInteger(arg(args, 0))
	if count < 0 || count > evaluator.MaxLength {
		return nil, "", fmt.Errorf("Invalid count value: %s", evaluator.FormatNumber(count))
	}
	if count*float64(len(s)) > evaluator.MaxLength {
		return nil, "", errInvalidStringLength
	}
	return strResult("repeat", rawArgs(args), strings.Repeat(s, int(count)))
}

// padStart(length, fill?) → string padded on the left
func strPadStart(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	pad, err := padding(s, args)
	if err != nil {
		return nil, "", err
	}
	return strResult("padStart", padDesc(args), pad+s)
}

// padEnd(length, fill?) → string padded on the right
func strPadEnd(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	s, err := asString(recv)
	if err != nil {
		return nil, "", err
	}
	pad, err := padding(s, args)
	if err != nil {
		return nil, "", err
	}
	return strResult("padEnd", padDesc(args), s+pad)
}

// padding builds the fill needed to bring s to the target length.
func padding(s string, args []evaluator.Value) (string, error) {
	length := toInteger(arg(args, 0))
	if length > evaluator.MaxLength {
		return "", errInvalidStringLength
	}
	target := int(length)
	fill := " "
	if f := arg(args, 1); !isUndefined(f) {
		fill = evaluator.ToString(f)
	}
	missing := target - len([]rune(s))
	if missing <= 0 || fill == "" {
		return "", nil
	}
	fillRunes := []rune(fill)
	var b strings.Builder
	for i := 0; i < missing; i++ {
		b.WriteRune(fillRunes[i%len(fillRunes)])
	}
	return b.String(), nil
}

func padDesc(args []evaluator.Value) string {
	desc := evaluator.ToString(arg(args, 0))
	if len(args) > 1 {
		desc += ", " + stringArg(args, 1)
	}
	return desc
}
