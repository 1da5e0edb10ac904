//go:build !tinygo

package irq

import "sync"

// State is the interrupt mask saved by Disable.
type State struct{}

var mask sync.Mutex

// Disable enters a section.
func Disable() State {
	mask.Lock()
	return State{}
}

// Restore leaves the section entered by the matching Disable.
func Restore(State) {
	mask.Unlock()
}
