// Package stdlib provides the built-in array and string methods the
// interpreter simulates.
package stdlib

import (
	"sort"

	"github.com/thomasrohde/steptrace/pkg/evaluator"
)

// Receiver names the value type a method is called on.
type Receiver string

const (
	ArrayReceiver  Receiver = "Array"
	StringReceiver Receiver = "String"
)

// Fn represents a built-in method. Execute returns the method result and the
// description recorded on its trace step.
type Fn struct {
	Name     string
	Receiver Receiver
	Execute  func(inv evaluator.Invoker, recv evaluator.Value, args []evaluator.Value) (evaluator.Value, string, error)
}

// Registry holds registered built-in methods.
type Registry struct {
	fns map[Receiver]map[string]*Fn
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		fns: make(map[Receiver]map[string]*Fn),
	}
}

// Register adds a method to the registry, replacing any method of the same
// receiver and name.
func (r *Registry) Register(fn Fn) {
	if r.fns[fn.Receiver] == nil {
		r.fns[fn.Receiver] = make(map[string]*Fn)
	}
	r.fns[fn.Receiver][fn.Name] = &fn
}

// Get retrieves a method by receiver and name.
func (r *Registry) Get(recv Receiver, name string) *Fn {
	return r.fns[recv][name]
}

// All returns the methods registered for a receiver.
func (r *Registry) All(recv Receiver) map[string]*Fn {
	return r.fns[recv]
}

// Names returns the sorted method names registered for a receiver.
func (r *Registry) Names(recv Receiver) []string {
	names := make([]string, 0, len(r.fns[recv]))
	for name := range r.fns[recv] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MethodTable converts the methods of a receiver into the form the
// evaluator dispatches on.
func (r *Registry) MethodTable(recv Receiver) map[string]*evaluator.MethodFn {
	out := make(map[string]*evaluator.MethodFn, len(r.fns[recv]))
	for name, fn := range r.fns[recv] {
		out[name] = &evaluator.MethodFn{Name: name, Execute: fn.Execute}
	}
	return out
}
