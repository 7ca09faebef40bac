package bytelang

import (
	"fmt"
	"strings"
)

// diagnostic is one recorded error, with enough context to reproduce the
// deterministic log format callers see from Compiler.GetErrorsLog.
type diagnostic struct {
	component  string
	line       int // 0 when not statement-scoped
	sourceText string
	message    string
}

func (d diagnostic) String() string {
	if d.line > 0 {
		return fmt.Sprintf("[%s] line %d: %s : %s", d.component, d.line, strings.TrimSpace(d.sourceText), d.message)
	}
	return fmt.Sprintf("[%s] %s", d.component, d.message)
}

// ErrorSink is a scoped, hierarchical diagnostic accumulator. A child sink
// shares the parent's message buffer (so the root can render one combined
// log) but tags its own messages with its own component prefix. Begin/Failed
// gives a handler a cheap "did anything I reported just now fail" check
// without needing a typed error return from every sub-step.
type ErrorSink struct {
	component string
	messages  *[]diagnostic
}

// NewErrorSink creates a root sink labelled with component.
func NewErrorSink(component string) *ErrorSink {
	return &ErrorSink{component: component, messages: new([]diagnostic)}
}

// Child returns a sink that reports under "parent.component" but accumulates
// into the same underlying buffer as s.
func (s *ErrorSink) Child(component string) *ErrorSink {
	return &ErrorSink{component: s.component + "." + component, messages: s.messages}
}

// Begin marks the start of a scope and returns a snapshot to pass to
// Failed.
func (s *ErrorSink) Begin() int {
	return len(*s.messages)
}

// Failed reports whether any diagnostic was recorded (by this sink or any
// sibling/child sharing the same buffer) since the matching Begin call.
func (s *ErrorSink) Failed(mark int) bool {
	return len(*s.messages) > mark
}

// Report records a free-form diagnostic not tied to a specific source line
// (typically a registry/content-loading failure).
func (s *ErrorSink) Report(format string, args ...any) {
	*s.messages = append(*s.messages, diagnostic{
		component: s.component,
		message:   fmt.Sprintf(format, args...),
	})
}

// ReportAt records a diagnostic tied to a specific source line and its
// original text.
func (s *ErrorSink) ReportAt(line int, sourceText string, format string, args ...any) {
	*s.messages = append(*s.messages, diagnostic{
		component:  s.component,
		line:       line,
		sourceText: sourceText,
		message:    fmt.Sprintf(format, args...),
	})
}

// Success reports whether no diagnostics have been recorded anywhere in
// this sink's hierarchy.
func (s *ErrorSink) Success() bool {
	return len(*s.messages) == 0
}

// Count returns the total number of diagnostics recorded so far.
func (s *ErrorSink) Count() int {
	return len(*s.messages)
}

// Log renders every recorded diagnostic, in recording order, one per line.
func (s *ErrorSink) Log() string {
	if s.Success() {
		return ""
	}
	var b strings.Builder
	for _, d := range *s.messages {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}
