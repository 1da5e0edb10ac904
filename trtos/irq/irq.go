// Package irq provides interrupt-exclusion sections.
//
// A section excludes the tick handler and every other section for its
// duration, which is what disabling interrupts buys on a single core. On
// TinyGo it masks interrupts for real; on the host one process-wide lock
// stands in for the interrupt mask.
//
// Sections do not nest, and a task must never block (wait on a semaphore,
// sleep, yield) while holding one.
package irq

// Do runs fn inside a section.
func Do(fn func()) {
	st := Disable()
	defer Restore(st)
	fn()
}
