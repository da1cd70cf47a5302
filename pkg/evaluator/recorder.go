package evaluator

import (
	"fmt"
	"slices"

	"github.com/thomasrohde/steptrace/pkg/ast"
)

// Recorder is the append-only trace of one execution.
type Recorder struct {
	steps []Step
}

// NewRecorder creates an empty trace.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a step, assigning its index and freezing its payload.
func (r *Recorder) Record(s Step) {
	s.Index = len(r.steps)
	if s.Payload != nil {
		s.Payload = s.Payload.freeze()
	}
	r.steps = append(r.steps, s)
}

// Steps returns the recorded steps in order.
func (r *Recorder) Steps() []Step {
	return slices.Clone(r.steps)
}

// Len returns the number of recorded steps.
func (r *Recorder) Len() int {
	return len(r.steps)
}

// stepPosition derives line fields from a node span. A nil span yields the
// positionless values used by synthetic steps.
func stepPosition(span *ast.Span) (line, lineNumber int, content string) {
	if span == nil || span.StartLine == 0 {
		return -1, 0, ""
	}
	return span.StartLine - 1, span.StartLine, fmt.Sprintf("Line %d", span.StartLine)
}

// record snapshots the live execution state into a new step.
func (ec *execContext) record(span *ast.Span, kind StepKind, description string, payload StepPayload) {
	line, lineNumber, content := stepPosition(span)
	ec.recorder.Record(Step{
		Line:          line,
		LineNumber:    lineNumber,
		LineContent:   content,
		Variables:     ec.scope.Snapshot(),
		Description:   description,
		Kind:          kind,
		ConsoleOutput: slices.Clone(ec.console),
		CallStack:     slices.Clone(ec.callStack),
		Payload:       payload,
	})
}
