package kernel

import (
	"errors"
	"sync"
	"sync/atomic"
)

// PanicInfo describes a task panic recovered by the kernel.
type PanicInfo struct {
	TaskID TaskID
	Value  any
	Stack  []byte
}

// Err returns the panic value as an error when it is one, e.g. the
// *RangeError raised by an out-of-range table index.
func (p PanicInfo) Err() error {
	err, _ := p.Value.(error)
	return err
}

// IsRangeError reports whether the panic was an index contract violation.
func (p PanicInfo) IsRangeError() bool {
	var re *RangeError
	return errors.As(p.Err(), &re)
}

var (
	panicActive atomic.Bool

	panicMu      sync.Mutex
	panicHandler func(PanicInfo)
)

// InPanicMode reports whether any task has panicked.
func InPanicMode() bool {
	return panicActive.Load()
}

// SetPanicHandler installs the process-wide panic handler.
//
// Only the first task panic reaches the handler. It must not panic.
func SetPanicHandler(fn func(PanicInfo)) {
	panicMu.Lock()
	defer panicMu.Unlock()
	panicHandler = fn
}

func triggerPanic(info PanicInfo) {
	if !panicActive.CompareAndSwap(false, true) {
		return
	}
	info.Stack = captureStack()

	panicMu.Lock()
	fn := panicHandler
	panicMu.Unlock()
	if fn != nil {
		fn(info)
	}
}
