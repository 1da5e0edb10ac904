package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trt/trtos/kernel"
)

type recordingSignaler struct {
	mu   sync.Mutex
	sems []kernel.SemID
}

func (r *recordingSignaler) Signal(s kernel.SemID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sems = append(r.sems, s)
}

func (r *recordingSignaler) count(s kernel.SemID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.sems {
		if got == s {
			n++
		}
	}
	return n
}

func tickN(b *Bank, n int) {
	for i := 0; i < n; i++ {
		b.Tick()
	}
}

func TestPeriodicTimerFiresEveryPeriod(t *testing.T) {
	sig := &recordingSignaler{}
	b := New(sig, Tick1ms)
	const sem = kernel.SemID(4)

	if err := b.Configure(1, 5, Periodic, sem); err != nil {
		t.Fatalf("Configure() = %v", err)
	}
	b.Start(1)

	var firedAt []int
	for tick := 1; tick <= 17; tick++ {
		before := b.ElapsedPeriods(1)
		b.Tick()
		if b.ElapsedPeriods(1) != before {
			firedAt = append(firedAt, tick)
		}
	}

	if got := b.ElapsedPeriods(1); got != 3 {
		t.Fatalf("ElapsedPeriods() = %d, want 3", got)
	}
	if got := sig.count(sem); got != 3 {
		t.Fatalf("signals = %d, want 3", got)
	}
	want := []int{5, 10, 15}
	if len(firedAt) != len(want) {
		t.Fatalf("fired at %v, want %v", firedAt, want)
	}
	for i := range want {
		if firedAt[i] != want[i] {
			t.Fatalf("fired at %v, want %v", firedAt, want)
		}
	}
	if !b.Status(1).Running() {
		t.Fatal("periodic timer stopped running")
	}
}

func TestOneShotTimerStopsAfterFiring(t *testing.T) {
	sig := &recordingSignaler{}
	b := New(sig, Tick1ms)
	const sem = kernel.SemID(2)

	if err := b.Configure(2, 5, OneShot, sem); err != nil {
		t.Fatalf("Configure() = %v", err)
	}
	b.Start(2)

	tickN(b, 4)
	if b.ElapsedPeriods(2) != 0 {
		t.Fatalf("ElapsedPeriods() after 4 ticks = %d, want 0", b.ElapsedPeriods(2))
	}
	b.Tick()
	if b.ElapsedPeriods(2) != 1 {
		t.Fatalf("ElapsedPeriods() after 5 ticks = %d, want 1", b.ElapsedPeriods(2))
	}
	tickN(b, 12)

	if got := b.ElapsedPeriods(2); got != 1 {
		t.Fatalf("ElapsedPeriods() = %d, want 1", got)
	}
	if got := sig.count(sem); got != 1 {
		t.Fatalf("signals = %d, want 1", got)
	}
	st := b.Status(2)
	if st.Running() || !st.Enabled() {
		t.Fatalf("Status() = %s, want enabled and stopped", st)
	}
	if got := b.Info(2).Count; got != 4 {
		t.Fatalf("Count = %d, want reload to 4", got)
	}
}

func TestOneShotRestartFiresAgain(t *testing.T) {
	sig := &recordingSignaler{}
	b := New(sig, Tick1ms)
	if err := b.Configure(1, 3, OneShot, 1); err != nil {
		t.Fatalf("Configure() = %v", err)
	}
	b.Start(1)
	tickN(b, 3)
	b.Start(1)
	tickN(b, 3)

	if got := b.ElapsedPeriods(1); got != 2 {
		t.Fatalf("ElapsedPeriods() = %d, want 2", got)
	}
}

func TestStopAndStartKeepPhase(t *testing.T) {
	b := New(nil, Tick1ms)
	if err := b.Configure(1, 10, Periodic, kernel.NoSem); err != nil {
		t.Fatalf("Configure() = %v", err)
	}
	b.Start(1)
	tickN(b, 5)
	if got := b.Info(1).Count; got != 4 {
		t.Fatalf("Count = %d, want 4", got)
	}

	b.Stop(1)
	tickN(b, 7)
	if got := b.Info(1).Count; got != 4 {
		t.Fatalf("Count while stopped = %d, want 4", got)
	}

	b.Start(1)
	tickN(b, 4)
	if got := b.Info(1); got.Count != 0 || got.Elapsed != 0 {
		t.Fatalf("Info() = %+v, want count 0, elapsed 0", got)
	}
	b.Tick()
	if got := b.Info(1); got.Count != 9 || got.Elapsed != 1 {
		t.Fatalf("Info() = %+v, want count 9, elapsed 1", got)
	}
}

func TestDisableHaltsRunningTimer(t *testing.T) {
	sig := &recordingSignaler{}
	b := New(sig, Tick1ms)
	if err := b.Configure(3, 4, Periodic, 1); err != nil {
		t.Fatalf("Configure() = %v", err)
	}
	b.Start(3)
	tickN(b, 2)
	before := b.Info(3)

	b.Disable(3)
	tickN(b, 20)

	after := b.Info(3)
	if after.Count != before.Count || after.Elapsed != before.Elapsed {
		t.Fatalf("Info() after disable = %+v, want %+v", after, before)
	}
	if !after.Running || after.Enabled {
		t.Fatalf("Info() = %+v, want running bit kept and disabled", after)
	}
	if got := sig.count(1); got != 0 {
		t.Fatalf("signals = %d, want 0", got)
	}

	if err := b.Configure(3, 4, Periodic, 1); err != nil {
		t.Fatalf("Configure() = %v", err)
	}
	b.Start(3)
	tickN(b, 4)
	if got := b.ElapsedPeriods(3); got != 1 {
		t.Fatalf("ElapsedPeriods() after reconfigure = %d, want 1", got)
	}
}

func TestConfigureLeavesTimerStoppedAndPrimed(t *testing.T) {
	b := New(nil, Tick1ms)
	if err := b.Configure(1, 8, OneShot, 3); err != nil {
		t.Fatalf("Configure() = %v", err)
	}
	tickN(b, 20)

	got := b.Info(1)
	want := Info{ID: 1, Period: 8, Count: 7, Enabled: true, Mode: OneShot, Target: 3}
	if got != want {
		t.Fatalf("Info() = %+v, want %+v", got, want)
	}
	if st := b.Status(1); st != StatusEnabled|StatusOneShot {
		t.Fatalf("Status() = %#x, want %#x", uint8(st), uint8(StatusEnabled|StatusOneShot))
	}
	b.Start(1)
	if st := b.Status(1); st != 0x83 {
		t.Fatalf("Status() = %#x, want 0x83", uint8(st))
	}
}

func TestConfigureResetsElapsed(t *testing.T) {
	b := New(nil, Tick1ms)
	_ = b.Configure(1, 1, Periodic, kernel.NoSem)
	b.Start(1)
	tickN(b, 6)
	if got := b.ElapsedPeriods(1); got != 6 {
		t.Fatalf("ElapsedPeriods() = %d, want 6", got)
	}
	_ = b.Configure(1, 1, Periodic, kernel.NoSem)
	if got := b.ElapsedPeriods(1); got != 0 {
		t.Fatalf("ElapsedPeriods() after Configure = %d, want 0", got)
	}
	if b.Status(1).Running() {
		t.Fatal("Configure left the timer running")
	}
}

func TestZeroPeriodIsRejected(t *testing.T) {
	b := New(nil, Tick1ms)
	_ = b.Configure(1, 7, Periodic, 2)
	before := b.Info(1)

	err := b.Configure(1, 0, Periodic, 2)
	if !errors.Is(err, ErrZeroPeriod) {
		t.Fatalf("Configure(period=0) = %v, want ErrZeroPeriod", err)
	}
	if got := b.Info(1); got != before {
		t.Fatalf("Info() = %+v, want unchanged %+v", got, before)
	}
}

func TestStartOnDisabledTimerIsInert(t *testing.T) {
	b := New(nil, Tick1ms)
	b.Start(2)

	st := b.Status(2)
	if !st.Running() || st.Enabled() {
		t.Fatalf("Status() = %s, want running bit set on a disabled timer", st)
	}
	tickN(b, 5)
	if got := b.Info(2); got.Elapsed != 0 || got.Count != 0 {
		t.Fatalf("Info() = %+v, want untouched", got)
	}
}

func TestInitializeDisablesEveryTimer(t *testing.T) {
	b := New(nil, Tick1ms)
	for id := ID(1); id <= MaxTimers; id++ {
		_ = b.Configure(id, 2, Periodic, kernel.NoSem)
		b.Start(id)
	}
	b.Initialize()
	for id := ID(1); id <= MaxTimers; id++ {
		if b.Status(id).Enabled() {
			t.Fatalf("timer %d enabled after Initialize", id)
		}
	}
}

func TestTimersFireInSlotOrder(t *testing.T) {
	sig := &recordingSignaler{}
	b := New(sig, Tick1ms)
	for id := ID(MaxTimers); id >= 1; id-- {
		_ = b.Configure(id, 2, Periodic, kernel.SemID(id))
		b.Start(id)
	}
	tickN(b, 2)

	if len(sig.sems) != MaxTimers {
		t.Fatalf("signals = %v, want %d", sig.sems, MaxTimers)
	}
	for i, s := range sig.sems {
		if s != kernel.SemID(i+1) {
			t.Fatalf("signal order = %v, want slot order", sig.sems)
		}
	}
}

func TestNoTargetDoesNotSignal(t *testing.T) {
	sig := &recordingSignaler{}
	b := New(sig, Tick1ms)
	_ = b.Configure(1, 1, Periodic, kernel.NoSem)
	b.Start(1)
	tickN(b, 5)
	if len(sig.sems) != 0 {
		t.Fatalf("signals = %v, want none", sig.sems)
	}
	if got := b.ElapsedPeriods(1); got != 5 {
		t.Fatalf("ElapsedPeriods() = %d, want 5", got)
	}
}

func TestIndexOutOfRangePanics(t *testing.T) {
	b := New(nil, Tick1ms)
	for _, id := range []ID{0, MaxTimers + 1} {
		func() {
			defer func() {
				err, _ := recover().(error)
				var re *kernel.RangeError
				if !errors.As(err, &re) {
					t.Fatalf("Start(%d) recovered %v, want *kernel.RangeError", id, err)
				}
			}()
			b.Start(id)
		}()
	}
}

func TestBadTargetPanics(t *testing.T) {
	b := New(nil, Tick1ms)
	defer func() {
		if recover() == nil {
			t.Fatal("Configure() with out-of-range target did not panic")
		}
	}()
	_ = b.Configure(1, 5, Periodic, kernel.MaxSemaphores+1)
}

func TestSettersRaceWithTick(t *testing.T) {
	sig := &recordingSignaler{}
	b := New(sig, Tick1ms)
	_ = b.Configure(1, 3, Periodic, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ctx.Err() == nil {
			b.Tick()
		}
	}()

	for i := 0; i < 2000; i++ {
		b.Start(1)
		b.Stop(1)
		if info := b.Info(1); info.Count >= info.Period {
			cancel()
			<-done
			t.Fatalf("Info() = %+v, want count < period", info)
		}
	}
	cancel()
	<-done
}

func TestDriveReplaysSkippedTicks(t *testing.T) {
	b := New(nil, Tick1ms)
	_ = b.Configure(1, 1, Periodic, kernel.NoSem)
	b.Start(1)

	ticks := make(chan uint64, 4)
	ticks <- 1
	ticks <- 2
	ticks <- 5
	close(ticks)

	if err := Drive(context.Background(), ticks, b); err != nil {
		t.Fatalf("Drive() = %v, want nil", err)
	}
	if got := b.ElapsedPeriods(1); got != 5 {
		t.Fatalf("ElapsedPeriods() = %d, want 5", got)
	}
}

func TestDriveStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Drive(ctx, make(chan uint64)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Drive() = %v, want context.Canceled", err)
	}
}

func TestGranularity(t *testing.T) {
	tcs := []struct {
		in   string
		g    Granularity
		tick time.Duration
		sec  uint16
	}{
		{in: "100us", g: Tick100us, tick: 100 * time.Microsecond, sec: 10000},
		{in: "1ms", g: Tick1ms, tick: time.Millisecond, sec: 1000},
		{in: "10ms", g: Tick10ms, tick: 10 * time.Millisecond, sec: 100},
	}
	for _, tc := range tcs {
		g, err := ParseGranularity(tc.in)
		if err != nil || g != tc.g {
			t.Fatalf("ParseGranularity(%q) = %v, %v; want %v", tc.in, g, err, tc.g)
		}
		if g.Duration() != tc.tick {
			t.Fatalf("%v.Duration() = %v, want %v", g, g.Duration(), tc.tick)
		}
		if got := g.Ticks(time.Second); got != tc.sec {
			t.Fatalf("%v.Ticks(1s) = %d, want %d", g, got, tc.sec)
		}
	}
	if _, err := ParseGranularity("5ms"); err == nil {
		t.Fatal("ParseGranularity(5ms) succeeded")
	}
	if got := Tick100us.Ticks(time.Hour); got != 65535 {
		t.Fatalf("Ticks(1h) = %d, want saturation at 65535", got)
	}
	if New(nil, 0).Granularity() != Tick10ms {
		t.Fatal("default granularity is not 10ms")
	}
}
