package core

import "fmt"

// PanicHandler is called when a unit of work panics during execution. The
// executor recovers the panic, invokes the handler with the worker that hit
// it, and records the panic as the node's failure — a panic is never allowed
// to take down the process or to be dropped.
//
// Implementations must be safe for concurrent use; workers may panic
// simultaneously.
type PanicHandler interface {
	// HandlePanic receives the executing worker's id, the task whose work
	// panicked, the recovered value and the stack trace at recovery time.
	HandlePanic(workerID int, task Task, panicInfo any, stack []byte)
}

// DefaultPanicHandler prints panic information to stdout, stack included.
type DefaultPanicHandler struct{}

// HandlePanic implements PanicHandler.
func (h *DefaultPanicHandler) HandlePanic(workerID int, task Task, panicInfo any, stack []byte) {
	name := task.Name()
	if name == "" {
		name = "<unnamed>"
	}
	fmt.Printf("[Worker %d] Task %s panicked: %v\nStack trace:\n%s", workerID, name, panicInfo, stack)
}

// NopPanicHandler ignores panics beyond the executor's own error capture.
type NopPanicHandler struct{}

// HandlePanic implements PanicHandler.
func (NopPanicHandler) HandlePanic(workerID int, task Task, panicInfo any, stack []byte) {}
