package shim

import (
	"fmt"
	"io"
	"sync"
)

// Tracer receives entry/exit instrumentation around interposed calls.
//
// Reentrancy rule: a tracer invoked from inside the hook for operation
// F must never transitively invoke F. Descriptor close is excluded
// from tracing entirely because common tracer transports close
// descriptors of their own, which would re-enter the close interposer
// mid-eviction.
type Tracer interface {
	Enter(op, target string)
	Exit(op string, err error)
}

// WriterTracer writes one line per entry and exit to a caller-supplied
// writer. The caller is responsible for picking a writer whose Write
// path performs no descriptor operations that route back through this
// package; an in-memory buffer or a pre-opened pipe both qualify.
type WriterTracer struct {
	w  io.Writer
	mu sync.Mutex
}

func NewWriterTracer(w io.Writer) *WriterTracer {
	return &WriterTracer{w: w}
}

func (t *WriterTracer) Enter(op, target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "enter %s %s\n", op, target)
}

func (t *WriterTracer) Exit(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		fmt.Fprintf(t.w, "exit %s err=%v\n", op, err)
		return
	}
	fmt.Fprintf(t.w, "exit %s ok\n", op)
}

// trampoline wires optional entry/exit instrumentation around one
// interposed call. The body delegates to the original routine and its
// result passes through unchanged; instrumentation can add latency but
// never alters the outcome. notrace skips instrumentation for the
// routines flagged as reentrancy hazards.
func (s *Shim) trampoline(op, target string, notrace bool, body func() error) error {
	if notrace || s.tracer == nil {
		return body()
	}
	s.tracer.Enter(op, target)
	err := body()
	s.tracer.Exit(op, err)
	return err
}
