//go:build !tinygo

package hal

import "time"

// hostTime turns wall-clock time measured between runner steps into tick
// sequence numbers. The channel is lossy; the sequence numbers are not.
type hostTime struct {
	ch   chan uint64
	seq  uint64
	tick time.Duration

	last time.Time
	acc  time.Duration
}

func newHostTime(tick time.Duration) *hostTime {
	return &hostTime{ch: make(chan uint64, 1024), tick: tick}
}

func (t *hostTime) Ticks() <-chan uint64        { return t.ch }
func (t *hostTime) TickDuration() time.Duration { return t.tick }

func (t *hostTime) step() {
	t.advance(time.Now())
}

func (t *hostTime) advance(now time.Time) {
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.stepN(1)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / t.tick)
	if ticks == 0 {
		return
	}
	t.acc %= t.tick
	t.stepN(ticks)
}

func (t *hostTime) stepN(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
