package timer

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Granularity is the length of one hardware tick. The tick source supports
// exactly these three settings.
type Granularity uint8

const (
	Tick100us Granularity = iota + 1
	Tick1ms
	Tick10ms
)

// Duration returns the length of one tick.
func (g Granularity) Duration() time.Duration {
	switch g {
	case Tick100us:
		return 100 * time.Microsecond
	case Tick1ms:
		return time.Millisecond
	case Tick10ms:
		return 10 * time.Millisecond
	default:
		return 0
	}
}

func (g Granularity) String() string {
	switch g {
	case Tick100us:
		return "100us"
	case Tick1ms:
		return "1ms"
	case Tick10ms:
		return "10ms"
	default:
		return "unknown"
	}
}

// Ticks converts d to a timer period, rounding down and saturating at the
// largest period a timer can hold.
func (g Granularity) Ticks(d time.Duration) uint16 {
	tick := g.Duration()
	if tick <= 0 || d <= 0 {
		return 0
	}
	n := d / tick
	if n > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(n)
}

// ParseGranularity parses "100us", "1ms" or "10ms".
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "100us", "0.1ms":
		return Tick100us, nil
	case "1ms":
		return Tick1ms, nil
	case "10ms":
		return Tick10ms, nil
	default:
		return 0, fmt.Errorf("timer: unsupported tick granularity %q (want 100us, 1ms or 10ms)", s)
	}
}

// Handler is something the tick interrupt services.
type Handler interface {
	Tick()
}

// Drive runs the tick interrupt: for every tick sequence number received it
// calls each handler's Tick, in order. Sequence numbers that were skipped
// (a slow consumer on a lossy tick channel) are replayed so no tick is lost.
// Drive returns nil when ticks is closed and ctx.Err() when ctx is done.
func Drive(ctx context.Context, ticks <-chan uint64, handlers ...Handler) error {
	var last uint64
	first := true
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seq, ok := <-ticks:
			if !ok {
				return nil
			}
			n := uint64(1)
			if !first && seq > last {
				n = seq - last
			}
			first = false
			if seq > last {
				last = seq
			}
			for ; n > 0; n-- {
				for _, h := range handlers {
					h.Tick()
				}
			}
		}
	}
}
