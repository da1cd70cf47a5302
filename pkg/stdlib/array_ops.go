package stdlib

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/thomasrohde/steptrace/pkg/evaluator"
)

var (
	errNotArray            = errors.New("receiver is not an array")
	errInvalidArrayLength  = errors.New("Invalid array length")
	errInvalidStringLength = errors.New("Invalid string length")
)

func asArray(recv evaluator.Value) (*evaluator.Array, error) {
	arr, ok := recv.(*evaluator.Array)
	if !ok {
		return nil, errNotArray
	}
	return arr, nil
}

func lengthOf(arr *evaluator.Array) evaluator.Value {
	return evaluator.NewNumber(float64(len(arr.Items)))
}

func checkGrowth(arr *evaluator.Array, added int) error {
	if len(arr.Items)+added > evaluator.MaxLength {
		return errInvalidArrayLength
	}
	return nil
}

// push(...items) → new length
func arrayPush(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	if err := checkGrowth(arr, len(args)); err != nil {
		return nil, "", err
	}
	arr.Items = append(arr.Items, args...)
	return lengthOf(arr), fmt.Sprintf("Array.push(%s) → length: %d", evaluator.FormatArgs(args), len(arr.Items)), nil
}

// pop() → removed last element
func arrayPop(_ evaluator.Invoker, recv evaluator.Value, _ []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	var result evaluator.Value = evaluator.Undefined{}
	if n := len(arr.Items); n > 0 {
		result = arr.Items[n-1]
		arr.Items = arr.Items[:n-1]
	}
	return result, "Array.pop() → " + evaluator.FormatValue(result), nil
}

// shift() → removed first element
func arrayShift(_ evaluator.Invoker, recv evaluator.Value, _ []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	var result evaluator.Value = evaluator.Undefined{}
	if len(arr.Items) > 0 {
		result = arr.Items[0]
		arr.Items = append([]evaluator.Value{}, arr.Items[1:]...)
	}
	return result, "Array.shift() → " + evaluator.FormatValue(result), nil
}

// unshift(...items) → new length
func arrayUnshift(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	if err := checkGrowth(arr, len(args)); err != nil {
		return nil, "", err
	}
	items := make([]evaluator.Value, 0, len(args)+len(arr.Items))
	items = append(items, args...)
	arr.Items = append(items, arr.Items...)
	return lengthOf(arr), fmt.Sprintf("Array.unshift(%s) → length: %d", evaluator.FormatArgs(args), len(arr.Items)), nil
}

// slice(start?, end?) → shallow copy of a range
func arraySlice(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	n := len(arr.Items)
	start := relativeIndex(arg(args, 0), n, 0)
	end := relativeIndex(arg(args, 1), n, n)
	items := []evaluator.Value{}
	if start < end {
		items = append(items, arr.Items[start:end]...)
	}
	result := evaluator.NewArray(items)
	return result, fmt.Sprintf("Array.slice(%s) → %s", rawArgs(args), evaluator.FormatValue(result)), nil
}

// splice(start, deleteCount?, ...items) → removed elements
func arraySplice(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	n := len(arr.Items)
	start := relativeIndex(arg(args, 0), n, 0)
	if len(args) == 0 {
		start = n
	}
	deleteCount := n - start
	if len(args) >= 2 {
		deleteCount = clampIndex(args[1], n-start, 0)
	}
	var inserts []evaluator.Value
	if len(args) > 2 {
		inserts = args[2:]
	}
	if err := checkGrowth(arr, len(inserts)-deleteCount); err != nil {
		return nil, "", err
	}

	removed := evaluator.NewArray(append([]evaluator.Value{}, arr.Items[start:start+deleteCount]...))
	items := make([]evaluator.Value, 0, n-deleteCount+len(inserts))
	items = append(items, arr.Items[:start]...)
	items = append(items, inserts...)
	items = append(items, arr.Items[start+deleteCount:]...)
	arr.Items = items
	return removed, fmt.Sprintf("Array.splice(%s) → removed: %s", rawArgs(args), evaluator.FormatValue(removed)), nil
}

// reverse() → the same array, reversed in place
func arrayReverse(_ evaluator.Invoker, recv evaluator.Value, _ []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	for i, j := 0, len(arr.Items)-1; i < j; i, j = i+1, j-1 {
		arr.Items[i], arr.Items[j] = arr.Items[j], arr.Items[i]
	}
	return arr, "Array.reverse() → " + evaluator.FormatValue(arr), nil
}

// sort(compare?) → the same array, sorted in place. Without a comparator
// elements compare by string form and undefined sorts last.
func arraySort(inv evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	cmp := arg(args, 0)
	if !isUndefined(cmp) {
		if _, ok := cmp.(*evaluator.Closure); !ok {
			return nil, "", errors.New("The comparison function must be either a function or undefined")
		}
	}

	// The comparator may mutate arr, so sort a private copy.
	items := slices.Clone(arr.Items)
	var callErr error
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if callErr != nil {
			return false
		}
		_, aUndef := a.(evaluator.Undefined)
		_, bUndef := b.(evaluator.Undefined)
		if aUndef || bUndef {
			return !aUndef && bUndef
		}
		if isUndefined(cmp) {
			return evaluator.ToString(a) < evaluator.ToString(b)
		}
		res, err := inv.Invoke(cmp, []evaluator.Value{a, b})
		if err != nil {
			callErr = err
			return false
		}
		return evaluator.ToNumber(res) < 0
	})
	if callErr != nil {
		return nil, "", callErr
	}
	arr.Items = items
	return arr, "Array.sort() → " + evaluator.FormatValue(arr), nil
}

// concat(...values) → new array; array arguments are flattened one level
func arrayConcat(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	size := len(arr.Items)
	for _, a := range args {
		if other, ok := a.(*evaluator.Array); ok {
			size += len(other.Items)
		} else {
			size++
		}
	}
	if size > evaluator.MaxLength {
		return nil, "", errInvalidArrayLength
	}
	items := make([]evaluator.Value, 0, size)
	items = append(items, arr.Items...)
	for _, a := range args {
		if other, ok := a.(*evaluator.Array); ok {
			items = append(items, other.Items...)
			continue
		}
		items = append(items, a)
	}
	result := evaluator.NewArray(items)
	return result, fmt.Sprintf("Array.concat(%s) → %s", evaluator.FormatArgs(args), evaluator.FormatValue(result)), nil
}

// join(separator?) → string
func arrayJoin(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	sep := ","
	if s := arg(args, 0); !isUndefined(s) {
		sep = evaluator.ToString(s)
	}
	result := evaluator.JoinArray(arr, sep)
	if len(result) > evaluator.MaxLength {
		return nil, "", errInvalidStringLength
	}
	return evaluator.NewString(result), fmt.Sprintf("Array.join('%s') → %q", sep, result), nil
}

// includes(value, fromIndex?) → bool
func arrayIncludes(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	target := arg(args, 0)
	found := false
	for _, item := range arr.Items[relativeIndex(arg(args, 1), len(arr.Items), 0):] {
		if evaluator.SameValueZero(item, target) {
			found = true
			break
		}
	}
	return evaluator.NewBool(found), fmt.Sprintf("Array.includes(%s) → %t", evaluator.FormatValue(target), found), nil
}

// indexOf(value, fromIndex?) → index or -1
func arrayIndexOf(_ evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	target := arg(args, 0)
	idx := -1
	for i := relativeIndex(arg(args, 1), len(arr.Items), 0); i < len(arr.Items); i++ {
		if evaluator.StrictEqual(arr.Items[i], target) {
			idx = i
			break
		}
	}
	return evaluator.NewNumber(float64(idx)), fmt.Sprintf("Array.indexOf(%s) → %d", evaluator.FormatValue(target), idx), nil
}

// iterate calls fn for each element with (element, index, array), visiting
// at most the elements present when iteration started. visit returning
// false stops early.
func iterate(inv evaluator.Invoker, method string, arr *evaluator.Array, fn evaluator.Value,
	visit func(i int, item, result evaluator.Value) bool) error {
	if _, ok := fn.(*evaluator.Closure); !ok {
		return fmt.Errorf("%s requires a callback function", method)
	}
	n := len(arr.Items)
	for i := 0; i < n && i < len(arr.Items); i++ {
		item := arr.Items[i]
		result, err := inv.Invoke(fn, []evaluator.Value{item, evaluator.NewNumber(float64(i)), arr})
		if err != nil {
			return err
		}
		if !visit(i, item, result) {
			return nil
		}
	}
	return nil
}

// map(fn) → new array of callback results
func arrayMap(inv evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	items := make([]evaluator.Value, 0, len(arr.Items))
	err = iterate(inv, "map", arr, arg(args, 0), func(_ int, _, result evaluator.Value) bool {
		items = append(items, result)
		return true
	})
	if err != nil {
		return nil, "", err
	}
	result := evaluator.NewArray(items)
	return result, "Array.map() → " + evaluator.FormatValue(result), nil
}

// filter(fn) → new array of elements the callback accepted
func arrayFilter(inv evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	items := []evaluator.Value{}
	err = iterate(inv, "filter", arr, arg(args, 0), func(_ int, item, result evaluator.Value) bool {
		if evaluator.Truthiness(result) {
			items = append(items, item)
		}
		return true
	})
	if err != nil {
		return nil, "", err
	}
	result := evaluator.NewArray(items)
	return result, "Array.filter() → " + evaluator.FormatValue(result), nil
}

// forEach(fn) → undefined
func arrayForEach(inv evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	err = iterate(inv, "forEach", arr, arg(args, 0), func(int, evaluator.Value, evaluator.Value) bool {
		return true
	})
	if err != nil {
		return nil, "", err
	}
	return evaluator.NewUndefined(), "Array.forEach() executed", nil
}

// find(fn) → first accepted element or undefined
func arrayFind(inv evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	var found evaluator.Value = evaluator.Undefined{}
	err = iterate(inv, "find", arr, arg(args, 0), func(_ int, item, result evaluator.Value) bool {
		if evaluator.Truthiness(result) {
			found = item
			return false
		}
		return true
	})
	if err != nil {
		return nil, "", err
	}
	return found, "Array.find() → " + evaluator.FormatValue(found), nil
}

// findIndex(fn) → index of first accepted element or -1
func arrayFindIndex(inv evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	idx := -1
	err = iterate(inv, "findIndex", arr, arg(args, 0), func(i int, _, result evaluator.Value) bool {
		if evaluator.Truthiness(result) {
			idx = i
			return false
		}
		return true
	})
	if err != nil {
		return nil, "", err
	}
	return evaluator.NewNumber(float64(idx)), fmt.Sprintf("Array.findIndex() → %d", idx), nil
}

// some(fn) → whether any element was accepted
func arraySome(inv evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	matched := false
	err = iterate(inv, "some", arr, arg(args, 0), func(_ int, _, result evaluator.Value) bool {
		matched = evaluator.Truthiness(result)
		return !matched
	})
	if err != nil {
		return nil, "", err
	}
	return evaluator.NewBool(matched), fmt.Sprintf("Array.some() → %t", matched), nil
}

// every(fn) → whether all elements were accepted
func arrayEvery(inv evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	all := true
	err = iterate(inv, "every", arr, arg(args, 0), func(_ int, _, result evaluator.Value) bool {
		all = evaluator.Truthiness(result)
		return all
	})
	if err != nil {
		return nil, "", err
	}
	return evaluator.NewBool(all), fmt.Sprintf("Array.every() → %t", all), nil
}

// reduce(fn, initial?) → accumulated value. Without an initial value the
// first element seeds the accumulator.
func arrayReduce(inv evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error) {
	arr, err := asArray(recv)
	if err != nil {
		return nil, "", err
	}
	fn := arg(args, 0)
	if _, ok := fn.(*evaluator.Closure); !ok {
		return nil, "", errors.New("reduce requires a callback function")
	}
	start := 0
	var acc evaluator.Value
	if len(args) >= 2 {
		acc = args[1]
	} else {
		if len(arr.Items) == 0 {
			return nil, "", errors.New("Reduce of empty array with no initial value")
		}
		acc = arr.Items[0]
		start = 1
	}
	n := len(arr.Items)
	for i := start; i < n && i < len(arr.Items); i++ {
		acc, err = inv.Invoke(fn, []evaluator.Value{acc, arr.Items[i], evaluator.NewNumber(float64(i)), arr})
		if err != nil {
			return nil, "", err
		}
	}
	return acc, "Array.reduce() → " + evaluator.FormatValue(acc), nil
}
