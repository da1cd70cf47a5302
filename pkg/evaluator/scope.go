package evaluator

// Frame is one level of the scope stack. Bindings keep declaration order so
// snapshots list variables in the order they were introduced.
type Frame struct {
	vars   *Record
	consts map[string]bool
}

func newFrame() *Frame {
	return &Frame{vars: NewRecord(nil), consts: make(map[string]bool)}
}

// Scope is the stack of binding frames for one execution. The bottom frame
// holds program-level bindings; function and closure calls push a frame on
// top and pop it on exit.
type Scope struct {
	frames []*Frame
}

// NewScope creates a scope stack holding a single root frame.
func NewScope() *Scope {
	return &Scope{frames: []*Frame{newFrame()}}
}

// Push adds an empty frame on top of the stack.
func (s *Scope) Push() {
	s.frames = append(s.frames, newFrame())
}

// Pop removes the innermost frame. The root frame is never removed.
func (s *Scope) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Depth returns the number of frames on the stack.
func (s *Scope) Depth() int {
	return len(s.frames)
}

func (s *Scope) top() *Frame {
	return s.frames[len(s.frames)-1]
}

// Declare binds name in the innermost frame.
func (s *Scope) Declare(name string, val Value, constant bool) {
	f := s.top()
	f.vars.Set(name, val)
	if constant {
		f.consts[name] = true
	} else {
		delete(f.consts, name)
	}
}

// Lookup searches frames from innermost to outermost.
func (s *Scope) Lookup(name string) (Value, bool) {
	if f := s.find(name); f != nil {
		v, _ := f.vars.Get(name)
		return v, true
	}
	return nil, false
}

// IsConst reports whether the nearest binding of name is constant.
func (s *Scope) IsConst(name string) bool {
	if f := s.find(name); f != nil {
		return f.consts[name]
	}
	return false
}

func (s *Scope) find(name string) *Frame {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].vars.Has(name) {
			return s.frames[i]
		}
	}
	return nil
}

// Assign re-binds an existing name. By default the nearest frame that
// declares the name is updated; with local set, the value is written into
// the innermost frame, shadowing any outer binding. Assign reports false
// when the name is not bound anywhere.
func (s *Scope) Assign(name string, val Value, local bool) bool {
	f := s.find(name)
	if f == nil {
		return false
	}
	if local {
		f = s.top()
	}
	f.vars.Set(name, val)
	return true
}

// Snapshot flattens the stack into a single record, outer frames first.
// Inner bindings override outer ones of the same name. Values are deep copies.
func (s *Scope) Snapshot() *Record {
	flat := NewRecord(nil)
	for _, f := range s.frames {
		for _, kv := range f.vars.Pairs {
			flat.Set(kv.Key, kv.Value)
		}
	}
	return Clone(flat).(*Record)
}
