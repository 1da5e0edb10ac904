// Package mutex implements binary mutual exclusion on top of the kernel's
// semaphores.
//
// There is one mutex per semaphore slot and mutex m blocks on semaphore m.
// A mutex records its owner, and only the owner can unlock it. Locking a
// mutex you already own returns at once and is not counted: one Unlock
// releases it no matter how many times the owner locked it.
package mutex

import (
	"sync/atomic"

	"trt/trtos/irq"
	"trt/trtos/kernel"
)

// State is the lock state of a mutex. The values match the binary semaphore
// value behind the mutex.
type State uint8

const (
	Locked   State = 0
	Unlocked State = 1
)

func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Scheduler is what the mutex table needs from the kernel.
type Scheduler interface {
	CreateSemaphore(s kernel.SemID, value uint8)
	// Wait suspends the calling task until s is signaled.
	Wait(s kernel.SemID)
	Signal(s kernel.SemID)
	SemValue(s kernel.SemID) uint8
	ClearSemaphore(s kernel.SemID)
	CurrentTask() kernel.TaskID
}

// Record is a copy of one mutex record.
type Record struct {
	Owner kernel.TaskID
	State State
}

// slot packs a Record into one word so diagnostic reads never tear.
// Writes happen only inside an irq section.
type slot struct {
	word atomic.Uint32
}

func (s *slot) load() Record {
	w := s.word.Load()
	return Record{Owner: kernel.TaskID(w), State: State(w >> 8)}
}

func (s *slot) store(r Record) {
	s.word.Store(uint32(r.Owner) | uint32(r.State)<<8)
}

var unlocked = Record{Owner: kernel.NoTask, State: Unlocked}

// Table is the process-wide mutex table.
type Table struct {
	sched Scheduler
	slots [kernel.MaxSemaphores]slot
}

// New returns an initialized table backed by sched.
func New(sched Scheduler) *Table {
	t := &Table{sched: sched}
	t.Initialize()
	return t
}

func (t *Table) slot(m kernel.SemID) *slot {
	kernel.CheckSem("mutex", m)
	return &t.slots[m-1]
}

// Initialize marks every mutex unlocked with no owner. It runs before any
// task does.
func (t *Table) Initialize() {
	st := irq.Disable()
	defer irq.Restore(st)
	for i := range t.slots {
		t.slots[i].store(unlocked)
	}
}

// Create creates semaphore m with value Unlocked and resets mutex m.
// Creating an existing mutex again resets it.
func (t *Table) Create(m kernel.SemID) {
	sl := t.slot(m)
	t.sched.CreateSemaphore(m, uint8(Unlocked))

	st := irq.Disable()
	sl.store(unlocked)
	irq.Restore(st)
}

// Lock acquires mutex m for the current task.
//
// If another task owns m, the caller blocks on semaphore m. A woken caller
// checks the record again and blocks again if a third task took m first,
// so Lock only returns with the caller recorded as owner.
func (t *Table) Lock(m kernel.SemID) {
	sl := t.slot(m)
	self := t.sched.CurrentTask()

	for {
		st := irq.Disable()
		r := sl.load()
		if r.State == Unlocked {
			sl.store(Record{Owner: self, State: Locked})
			irq.Restore(st)
			return
		}
		if r.Owner == self {
			irq.Restore(st)
			return
		}
		irq.Restore(st)

		t.sched.Wait(m)
	}
}

// Unlock releases mutex m if the current task owns it. Otherwise it does
// nothing.
func (t *Table) Unlock(m kernel.SemID) {
	sl := t.slot(m)
	self := t.sched.CurrentTask()

	st := irq.Disable()
	defer irq.Restore(st)

	r := sl.load()
	if r.State != Locked || r.Owner != self {
		return
	}
	// Keep the semaphore binary: at most the one post below is pending.
	if t.sched.SemValue(m) > 0 {
		t.sched.ClearSemaphore(m)
	}
	t.sched.Signal(m)
	sl.store(unlocked)
}

// Query returns the lock state of mutex m.
func (t *Table) Query(m kernel.SemID) State {
	return t.slot(m).load().State
}

// IsOwner reports whether the current task owns mutex m.
func (t *Table) IsOwner(m kernel.SemID) bool {
	self := t.sched.CurrentTask()
	return self != kernel.NoTask && t.slot(m).load().Owner == self
}

// Owner returns the owner of mutex m, or kernel.NoTask.
func (t *Table) Owner(m kernel.SemID) kernel.TaskID {
	return t.slot(m).load().Owner
}

// Record returns a copy of mutex record m.
func (t *Table) Record(m kernel.SemID) Record {
	return t.slot(m).load()
}

// Snapshot copies every record; index i holds mutex i+1.
func (t *Table) Snapshot() []Record {
	out := make([]Record, len(t.slots))
	for i := range t.slots {
		out[i] = t.slots[i].load()
	}
	return out
}
