package evaluator

import (
	"bytes"
	"encoding/json"
)

// StepKind identifies what a step records.
type StepKind string

const (
	StepStart               StepKind = "start"
	StepEnd                 StepKind = "end"
	StepDeclaration         StepKind = "declaration"
	StepAssignment          StepKind = "assignment"
	StepFunctionDeclaration StepKind = "function-declaration"
	StepFunctionCall        StepKind = "function-call"
	StepFunctionReturn      StepKind = "function-return"
	StepCondition           StepKind = "condition"
	StepLoop                StepKind = "loop"
	StepConsole             StepKind = "console"
	StepArrayMethod         StepKind = "array-method"
	StepStringMethod        StepKind = "string-method"
	StepError               StepKind = "error"
	StepUnsupported         StepKind = "unsupported"
)

// Step is one frozen snapshot of execution state. Every field is a private
// copy taken when the step was recorded.
type Step struct {
	Index         int
	Line          int // zero-based; -1 when the step has no source position
	LineNumber    int // one-based; 0 when the step has no source position
	LineContent   string
	Variables     *Record
	Description   string
	Kind          StepKind
	ConsoleOutput []string
	CallStack     []string
	Payload       StepPayload // nil for kinds without extra fields
}

// StepPayload holds the kind-specific fields of a step.
type StepPayload interface {
	freeze() StepPayload // sealed marker; returns a deep copy
}

// BindingPayload names the variable a declaration touched.
type BindingPayload struct {
	Variable string
	Value    Value
}

func (p BindingPayload) freeze() StepPayload {
	return BindingPayload{Variable: p.Variable, Value: Clone(p.Value)}
}

// AssignmentPayload names the assigned target: a variable name or a member
// path such as arr[0] or user.name.
type AssignmentPayload struct {
	Target string
	Value  Value
}

func (p AssignmentPayload) freeze() StepPayload {
	return AssignmentPayload{Target: p.Target, Value: Clone(p.Value)}
}

// FunctionPayload names a declared function.
type FunctionPayload struct {
	FunctionName string
}

func (p FunctionPayload) freeze() StepPayload { return p }

// CallPayload carries the evaluated arguments of a traced call.
type CallPayload struct {
	FunctionName string
	Arguments    []Value
}

func (p CallPayload) freeze() StepPayload {
	return CallPayload{FunctionName: p.FunctionName, Arguments: CloneAll(p.Arguments)}
}

// ReturnPayload carries the value a traced call returned.
type ReturnPayload struct {
	FunctionName string
	ReturnValue  Value
}

func (p ReturnPayload) freeze() StepPayload {
	return ReturnPayload{FunctionName: p.FunctionName, ReturnValue: Clone(p.ReturnValue)}
}

// ConditionPayload is the outcome of an if or loop test.
type ConditionPayload struct {
	Condition bool
}

func (p ConditionPayload) freeze() StepPayload { return p }

// ConsolePayload is the line a console.log call produced.
type ConsolePayload struct {
	Output string
}

func (p ConsolePayload) freeze() StepPayload { return p }

// MethodPayload records a built-in method call and its result.
type MethodPayload struct {
	Method string
	Result Value
}

func (p MethodPayload) freeze() StepPayload {
	return MethodPayload{Method: p.Method, Result: Clone(p.Result)}
}

// ErrorPayload describes the fault that ended a run.
type ErrorPayload struct {
	Code  string
	Error string
}

func (p ErrorPayload) freeze() StepPayload { return p }

// UnsupportedPayload names a construct that was skipped.
type UnsupportedPayload struct {
	Construct string
}

func (p UnsupportedPayload) freeze() StepPayload { return p }

type stepHeaderJSON struct {
	Index         int             `json:"index"`
	Line          int             `json:"line"`
	LineNumber    int             `json:"lineNumber"`
	LineContent   string          `json:"lineContent"`
	Variables     json.RawMessage `json:"variables"`
	Description   string          `json:"description"`
	Kind          StepKind        `json:"kind"`
	ConsoleOutput []string        `json:"consoleOutput"`
	CallStack     []string        `json:"callStack"`
}

// MarshalJSON flattens the payload fields into the step object.
func (s Step) MarshalJSON() ([]byte, error) {
	vars := NewRecord(nil)
	if s.Variables != nil {
		vars = s.Variables
	}
	varsJSON, err := ValueToJSON(vars)
	if err != nil {
		return nil, err
	}
	header := stepHeaderJSON{
		Index:         s.Index,
		Line:          s.Line,
		LineNumber:    s.LineNumber,
		LineContent:   s.LineContent,
		Variables:     varsJSON,
		Description:   s.Description,
		Kind:          s.Kind,
		ConsoleOutput: nonNil(s.ConsoleOutput),
		CallStack:     nonNil(s.CallStack),
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	payload, err := payloadFields(s.Payload)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return headerJSON, nil
	}
	// Splice {"a":1} and {"b":2} into {"a":1,"b":2}.
	var buf bytes.Buffer
	buf.Write(headerJSON[:len(headerJSON)-1])
	buf.WriteByte(',')
	buf.Write(payload[1:])
	return buf.Bytes(), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// payloadFields marshals a payload to a non-empty JSON object, or nil.
func payloadFields(p StepPayload) ([]byte, error) {
	var fields any
	switch pl := p.(type) {
	case nil:
		return nil, nil
	case BindingPayload:
		fields = struct {
			Variable string          `json:"variable"`
			Value    json.RawMessage `json:"value"`
		}{pl.Variable, rawValue(pl.Value)}
	case AssignmentPayload:
		fields = struct {
			Variable string          `json:"variable"`
			Value    json.RawMessage `json:"value"`
		}{pl.Target, rawValue(pl.Value)}
	case FunctionPayload:
		fields = struct {
			FunctionName string `json:"functionName"`
		}{pl.FunctionName}
	case CallPayload:
		args := make([]json.RawMessage, len(pl.Arguments))
		for i, a := range pl.Arguments {
			args[i] = rawValue(a)
		}
		fields = struct {
			FunctionName string            `json:"functionName"`
			Arguments    []json.RawMessage `json:"arguments"`
		}{pl.FunctionName, args}
	case ReturnPayload:
		fields = struct {
			FunctionName string          `json:"functionName"`
			ReturnValue  json.RawMessage `json:"returnValue"`
		}{pl.FunctionName, rawValue(pl.ReturnValue)}
	case ConditionPayload:
		fields = struct {
			Condition bool `json:"condition"`
		}{pl.Condition}
	case ConsolePayload:
		fields = struct {
			Output string `json:"output"`
		}{pl.Output}
	case MethodPayload:
		fields = struct {
			Method string          `json:"method"`
			Result json.RawMessage `json:"result"`
		}{pl.Method, rawValue(pl.Result)}
	case ErrorPayload:
		fields = struct {
			Code  string `json:"code,omitempty"`
			Error string `json:"error"`
		}{pl.Code, pl.Error}
	case UnsupportedPayload:
		fields = struct {
			Construct string `json:"construct"`
		}{pl.Construct}
	}
	return json.Marshal(fields)
}

func rawValue(v Value) json.RawMessage {
	return json.RawMessage(ValueToJSONString(v))
}
