//go:build tinygo

package irq

import "runtime/interrupt"

// State is the interrupt mask saved by Disable.
type State = interrupt.State

// Disable masks interrupts and returns the previous mask.
func Disable() State {
	return interrupt.Disable()
}

// Restore puts back the mask returned by Disable.
func Restore(st State) {
	interrupt.Restore(st)
}
