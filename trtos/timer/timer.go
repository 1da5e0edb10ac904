// Package timer multiplexes a small bank of software timers onto one
// hardware tick.
//
// Each timer counts down once per tick while it is both enabled and running.
// On expiry it bumps its period counter, reloads, optionally signals a
// semaphore, and stops itself if it is a one-shot timer.
package timer

import (
	"errors"
	"strings"
	"sync/atomic"

	"trt/trtos/irq"
	"trt/trtos/kernel"
)

// MaxTimers is the number of timer slots.
const MaxTimers = 3

// ID identifies a timer slot (1-based).
type ID uint8

func (id ID) Valid() bool { return id >= 1 && id <= MaxTimers }

// Mode selects what a timer does after it expires.
type Mode uint8

const (
	Periodic Mode = iota
	OneShot
)

func (m Mode) String() string {
	switch m {
	case Periodic:
		return "periodic"
	case OneShot:
		return "oneshot"
	default:
		return "unknown"
	}
}

// Status is the raw status byte of a timer.
type Status uint8

const (
	StatusRunning Status = 1 << 0
	StatusOneShot Status = 1 << 1
	StatusEnabled Status = 1 << 7
)

func (s Status) Enabled() bool { return s&StatusEnabled != 0 }
func (s Status) Running() bool { return s&StatusRunning != 0 }

func (s Status) Mode() Mode {
	if s&StatusOneShot != 0 {
		return OneShot
	}
	return Periodic
}

func (s Status) String() string {
	parts := make([]string, 0, 3)
	if s.Enabled() {
		parts = append(parts, "enabled")
	} else {
		parts = append(parts, "disabled")
	}
	if s.Running() {
		parts = append(parts, "running")
	} else {
		parts = append(parts, "stopped")
	}
	parts = append(parts, s.Mode().String())
	return strings.Join(parts, "|")
}

// ErrZeroPeriod is returned by Configure for a zero period.
var ErrZeroPeriod = errors.New("timer: period must be at least one tick")

// Signaler delivers expiry notifications. Signal runs inside the tick
// handler and must not block.
type Signaler interface {
	Signal(s kernel.SemID)
}

// Info is a copy of one timer record.
type Info struct {
	ID      ID
	Period  uint16
	Count   uint16
	Elapsed uint16
	Enabled bool
	Running bool
	Mode    Mode
	Target  kernel.SemID
}

// Status packs the Enabled, Running and Mode fields.
func (i Info) Status() Status {
	var s Status
	if i.Enabled {
		s |= StatusEnabled
	}
	if i.Running {
		s |= StatusRunning
	}
	if i.Mode == OneShot {
		s |= StatusOneShot
	}
	return s
}

// Word layout: period | count<<16 | elapsed<<32 | status<<48 | target<<56.
func pack(i Info) uint64 {
	return uint64(i.Period) |
		uint64(i.Count)<<16 |
		uint64(i.Elapsed)<<32 |
		uint64(i.Status())<<48 |
		uint64(i.Target)<<56
}

func unpack(id ID, w uint64) Info {
	st := Status(w >> 48)
	return Info{
		ID:      id,
		Period:  uint16(w),
		Count:   uint16(w >> 16),
		Elapsed: uint16(w >> 32),
		Enabled: st.Enabled(),
		Running: st.Running(),
		Mode:    st.Mode(),
		Target:  kernel.SemID(w >> 56),
	}
}

// Bank is the process-wide timer table.
//
// Records are stored one word per slot so that diagnostic reads never tear;
// every write happens inside an irq section, which also excludes Tick.
type Bank struct {
	sig   Signaler
	gran  Granularity
	slots [MaxTimers]atomic.Uint64
}

// New returns an initialized bank ticking at g. A zero g means Tick10ms.
func New(sig Signaler, g Granularity) *Bank {
	if g == 0 {
		g = Tick10ms
	}
	b := &Bank{sig: sig, gran: g}
	b.Initialize()
	return b
}

func (b *Bank) slot(id ID) *atomic.Uint64 {
	if !id.Valid() {
		panic(&kernel.RangeError{Table: "timer", Index: int(id), Max: MaxTimers})
	}
	return &b.slots[id-1]
}

// update applies fn to timer id inside an irq section.
func (b *Bank) update(id ID, fn func(*Info)) {
	sl := b.slot(id)

	st := irq.Disable()
	defer irq.Restore(st)

	info := unpack(id, sl.Load())
	fn(&info)
	sl.Store(pack(info))
}

// Granularity returns the tick length the bank was built for.
func (b *Bank) Granularity() Granularity { return b.gran }

// Initialize disables every timer. It runs before the tick source starts.
func (b *Bank) Initialize() {
	for id := ID(1); id <= MaxTimers; id++ {
		b.update(id, func(i *Info) { i.Enabled = false })
	}
}

// Configure sets up timer id and enables it, stopped and primed with a full
// period. It clears the period counter. The timer starts counting at Start.
func (b *Bank) Configure(id ID, period uint16, mode Mode, target kernel.SemID) error {
	b.slot(id)
	if period == 0 {
		return ErrZeroPeriod
	}
	if target != kernel.NoSem {
		kernel.CheckSem("timer: target", target)
	}

	b.update(id, func(i *Info) {
		i.Period = period
		i.Count = period - 1
		i.Running = false
		i.Mode = mode
		i.Elapsed = 0
		i.Target = target
		i.Enabled = true
	})
	return nil
}

// Start lets timer id count. It is allowed on a disabled timer; the tick
// handler ignores the running bit until the timer is enabled again.
func (b *Bank) Start(id ID) {
	b.update(id, func(i *Info) { i.Running = true })
}

// Stop freezes timer id. The count is kept, so Start resumes mid-period.
func (b *Bank) Stop(id ID) {
	b.update(id, func(i *Info) { i.Running = false })
}

// Disable makes the tick handler ignore timer id.
func (b *Bank) Disable(id ID) {
	b.update(id, func(i *Info) { i.Enabled = false })
}

// Status returns the status byte of timer id.
func (b *Bank) Status(id ID) Status {
	return Status(b.slot(id).Load() >> 48)
}

// ElapsedPeriods returns how many periods timer id completed since it was
// configured.
func (b *Bank) ElapsedPeriods(id ID) uint16 {
	return uint16(b.slot(id).Load() >> 32)
}

// Info returns a copy of timer id.
func (b *Bank) Info(id ID) Info {
	return unpack(id, b.slot(id).Load())
}

// Snapshot copies every timer; index i holds timer i+1.
func (b *Bank) Snapshot() []Info {
	out := make([]Info, MaxTimers)
	for i := range b.slots {
		out[i] = unpack(ID(i+1), b.slots[i].Load())
	}
	return out
}

// Tick is the tick interrupt handler. It services every timer in slot order
// and never blocks.
func (b *Bank) Tick() {
	st := irq.Disable()
	defer irq.Restore(st)

	for n := range b.slots {
		sl := &b.slots[n]
		info := unpack(ID(n+1), sl.Load())
		if !info.Enabled || !info.Running {
			continue
		}
		if info.Count > 0 {
			info.Count--
			sl.Store(pack(info))
			continue
		}

		info.Elapsed++
		info.Count = info.Period - 1
		if info.Mode == OneShot {
			info.Running = false
		}
		sl.Store(pack(info))

		if info.Target != kernel.NoSem && b.sig != nil {
			b.sig.Signal(info.Target)
		}
	}
}
