// Package diag reads kernel, semaphore, mutex and timer state for the
// diagnostic dumps.
//
// A dump can freeze the timers: the snapshot is then taken inside an irq
// section, so the tick handler cannot run between two rows.
package diag

import (
	"errors"
	"fmt"
	"io"

	"trt/trtos/irq"
	"trt/trtos/kernel"
	"trt/trtos/mutex"
	"trt/trtos/timer"
)

// Freeze selects whether a dump holds off the tick handler while it reads.
type Freeze bool

const (
	RunTimers    Freeze = false
	FreezeTimers Freeze = true
)

// ErrBadIndex is returned for a dump of a slot that does not exist.
var ErrBadIndex = errors.New("diag: index out of range")

// Tasks is the read-only view of the scheduler.
type Tasks interface {
	Now() kernel.Tick
	Tasks() []kernel.TaskInfo
	SemValue(s kernel.SemID) uint8
}

// Mutexes is the read-only view of the mutex table.
type Mutexes interface {
	Snapshot() []mutex.Record
}

// Timers is the read-only view of the timer bank.
type Timers interface {
	Snapshot() []timer.Info
}

// Snapshot is a copy of everything the dumps print.
type Snapshot struct {
	Now        kernel.Tick
	Tasks      []kernel.TaskInfo
	Semaphores []uint8 // index i holds semaphore i+1
	Mutexes    []mutex.Record
	Timers     []timer.Info
}

// Dumper prints diagnostic tables. Nil sources are skipped.
type Dumper struct {
	Kernel Tasks
	Locks  Mutexes
	Bank   Timers
}

// Take copies the current state of every source.
func (d *Dumper) Take(f Freeze) Snapshot {
	var snap Snapshot
	read := func() {
		if d.Kernel != nil {
			snap.Now = d.Kernel.Now()
			snap.Tasks = d.Kernel.Tasks()
			snap.Semaphores = make([]uint8, kernel.MaxSemaphores)
			for s := kernel.SemID(1); s <= kernel.MaxSemaphores; s++ {
				snap.Semaphores[s-1] = d.Kernel.SemValue(s)
			}
		}
		if d.Locks != nil {
			snap.Mutexes = d.Locks.Snapshot()
		}
		if d.Bank != nil {
			snap.Timers = d.Bank.Snapshot()
		}
	}
	if f == FreezeTimers {
		irq.Do(read)
	} else {
		read()
	}
	return snap
}

// Tasks prints task id, or every task when id is kernel.NoTask. Release and
// deadline are printed relative to now.
func (d *Dumper) Tasks(w io.Writer, id kernel.TaskID, f Freeze) error {
	snap := d.Take(f)
	return snap.WriteTasks(w, id)
}

// Semaphores prints semaphore s, or every semaphore when s is kernel.NoSem.
func (d *Dumper) Semaphores(w io.Writer, s kernel.SemID, f Freeze) error {
	snap := d.Take(f)
	return snap.WriteSemaphores(w, s)
}

// Mutexes prints mutex m, or every mutex when m is kernel.NoSem.
func (d *Dumper) Mutexes(w io.Writer, m kernel.SemID, f Freeze) error {
	snap := d.Take(f)
	return snap.WriteMutexes(w, m)
}

// Timers prints timer id, or every timer when id is 0.
func (d *Dumper) Timers(w io.Writer, id timer.ID, f Freeze) error {
	snap := d.Take(f)
	return snap.WriteTimers(w, id)
}

// All prints every table from one snapshot.
func (d *Dumper) All(w io.Writer, f Freeze) error {
	snap := d.Take(f)
	if err := snap.WriteTasks(w, kernel.NoTask); err != nil {
		return err
	}
	if err := snap.WriteSemaphores(w, kernel.NoSem); err != nil {
		return err
	}
	if err := snap.WriteMutexes(w, kernel.NoSem); err != nil {
		return err
	}
	return snap.WriteTimers(w, 0)
}

// WriteTasks prints the task table.
func (s Snapshot) WriteTasks(w io.Writer, id kernel.TaskID) error {
	if id != kernel.NoTask && int(id) > len(s.Tasks) {
		return fmt.Errorf("%w: task %d", ErrBadIndex, id)
	}
	if _, err := fmt.Fprintf(w, "# %-8s %-8s %8s %8s %6s\n", "name", "state", "relT", "deadT", "stkfree"); err != nil {
		return err
	}
	for _, t := range s.Tasks {
		if id != kernel.NoTask && t.ID != id {
			continue
		}
		_, err := fmt.Fprintf(w, "%1d %-8s %-8s %8d %8d %6d\n",
			t.ID, t.Name, t.State,
			int32(t.Release-s.Now), int32(t.Deadline-s.Now),
			t.StackFree)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteSemaphores prints semaphore values.
func (s Snapshot) WriteSemaphores(w io.Writer, sem kernel.SemID) error {
	if sem != kernel.NoSem && int(sem) > len(s.Semaphores) {
		return fmt.Errorf("%w: semaphore %d", ErrBadIndex, sem)
	}
	if _, err := fmt.Fprintf(w, "# value\n"); err != nil {
		return err
	}
	for i, v := range s.Semaphores {
		if sem != kernel.NoSem && i+1 != int(sem) {
			continue
		}
		if _, err := fmt.Fprintf(w, "%1d %4d\n", i+1, v); err != nil {
			return err
		}
	}
	return nil
}

// WriteMutexes prints mutex owners and states.
func (s Snapshot) WriteMutexes(w io.Writer, m kernel.SemID) error {
	if m != kernel.NoSem && int(m) > len(s.Mutexes) {
		return fmt.Errorf("%w: mutex %d", ErrBadIndex, m)
	}
	if _, err := fmt.Fprintf(w, "# owner state\n"); err != nil {
		return err
	}
	for i, r := range s.Mutexes {
		if m != kernel.NoSem && i+1 != int(m) {
			continue
		}
		if _, err := fmt.Fprintf(w, "%1d %5d %s\n", i+1, r.Owner, r.State); err != nil {
			return err
		}
	}
	return nil
}

// WriteTimers prints the timer bank.
func (s Snapshot) WriteTimers(w io.Writer, id timer.ID) error {
	if id != 0 && int(id) > len(s.Timers) {
		return fmt.Errorf("%w: timer %d", ErrBadIndex, id)
	}
	if _, err := fmt.Fprintf(w, "# en run %-8s %6s %6s %7s %3s\n", "mode", "period", "count", "elapsed", "sem"); err != nil {
		return err
	}
	for _, t := range s.Timers {
		if id != 0 && t.ID != id {
			continue
		}
		_, err := fmt.Fprintf(w, "%1d %2d %3d %-8s %6d %6d %7d %3d\n",
			t.ID, b2i(t.Enabled), b2i(t.Running), t.Mode,
			t.Period, t.Count, t.Elapsed, t.Target)
		if err != nil {
			return err
		}
	}
	return nil
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
