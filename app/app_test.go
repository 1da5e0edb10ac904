package app

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trt/hal"
	"trt/trtos/kernel"
	"trt/trtos/timer"
)

type fakeLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *fakeLog) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

func (l *fakeLog) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }

func (l *fakeLog) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

type fakeLED struct{ toggles atomic.Int32 }

func (l *fakeLED) High() { l.toggles.Add(1) }
func (l *fakeLED) Low()  { l.toggles.Add(1) }

type fakeTime struct{ ch chan uint64 }

func (t fakeTime) Ticks() <-chan uint64        { return t.ch }
func (t fakeTime) TickDuration() time.Duration { return 10 * time.Millisecond }

type fakeFB struct {
	w, h int
	buf  []byte
}

func (f *fakeFB) Width() int              { return f.w }
func (f *fakeFB) Height() int             { return f.h }
func (f *fakeFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *fakeFB) StrideBytes() int        { return f.w * 2 }
func (f *fakeFB) Buffer() []byte          { return f.buf }
func (f *fakeFB) Present() error          { return nil }

func (f *fakeFB) ClearRGB(r, g, b uint8) {
	for i := range f.buf {
		f.buf[i] = r & g & b
	}
}

type fakeDisplay struct{ fb hal.Framebuffer }

func (d fakeDisplay) Framebuffer() hal.Framebuffer { return d.fb }

type fakeHAL struct {
	log  *fakeLog
	led  *fakeLED
	disp hal.Display
	t    fakeTime
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{
		log: &fakeLog{},
		led: &fakeLED{},
		t:   fakeTime{ch: make(chan uint64, 1)},
	}
}

func (h *fakeHAL) Logger() hal.Logger   { return h.log }
func (h *fakeHAL) LED() hal.LED         { return h.led }
func (h *fakeHAL) Display() hal.Display { return h.disp }
func (h *fakeHAL) Time() hal.Time       { return h.t }
func (h *fakeHAL) Serial() hal.Serial   { return nil }

func testConfig() Config {
	return Config{
		Granularity:  timer.Tick10ms,
		BlinkPeriod:  50 * time.Millisecond,
		OneShotDelay: 100 * time.Millisecond,
	}
}

func TestNewSystemWiring(t *testing.T) {
	h := newFakeHAL()
	s, err := NewSystem(h, testConfig())
	if err != nil {
		t.Fatalf("NewSystem() = %v", err)
	}

	if got := s.Kernel().NumTasks(); got != 4 {
		t.Fatalf("NumTasks() = %d, want 4 (no monitor without a display)", got)
	}
	blink := s.Timers().Info(timerBlink)
	if !blink.Running || blink.Period != 5 || blink.Mode != timer.Periodic || blink.Target != semBlink {
		t.Fatalf("blink timer = %+v", blink)
	}
	one := s.Timers().Info(timerOneShot)
	if !one.Running || one.Period != 10 || one.Mode != timer.OneShot || one.Target != semOneShot {
		t.Fatalf("one-shot timer = %+v", one)
	}
	if got := s.Kernel().SemValue(mxCounter); got != 1 {
		t.Fatalf("SemValue(mxCounter) = %d, want 1", got)
	}
	if !h.log.contains("boot: ready") {
		t.Fatalf("boot log missing ready step")
	}
}

func TestNewSystemRejectsShortPeriod(t *testing.T) {
	cfg := testConfig()
	cfg.BlinkPeriod = time.Millisecond
	if _, err := NewSystem(newFakeHAL(), cfg); err == nil {
		t.Fatalf("NewSystem() with a sub-tick period = nil, want error")
	}
}

func TestSystemRuns(t *testing.T) {
	h := newFakeHAL()
	h.disp = fakeDisplay{fb: &fakeFB{w: 160, h: 160, buf: make([]byte, 160*160*2)}}
	cfg := testConfig()
	cfg.DumpEvery = 200 * time.Millisecond
	s, err := NewSystem(h, cfg)
	if err != nil {
		t.Fatalf("NewSystem() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(10 * time.Second)
	for seq := uint64(1); ; seq++ {
		if h.led.toggles.Load() >= 4 && s.oneshot.Load() >= 2 && s.counter.Load() >= 2 && s.monitor.Frames() >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("after %d ticks: led=%d oneshot=%d counter=%d frames=%d",
				seq, h.led.toggles.Load(), s.oneshot.Load(), s.counter.Load(), s.monitor.Frames())
		}
		h.t.ch <- seq
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run() did not return after cancel")
	}
	if h.log.contains("changed under lock") {
		t.Fatalf("workers observed a torn critical section")
	}
}

func TestPanicLines(t *testing.T) {
	info := kernel.PanicInfo{
		TaskID: 3,
		Value:  &kernel.RangeError{Table: "mutex", Index: 9, Max: 7},
		Stack:  []byte("goroutine 1\n\nmain.go:10\n"),
	}
	lines := panicLines(info)
	want := []string{
		"trt panic:",
		"task: 3",
		"index out of range: mutex: index 9 out of range [1, 7]",
		"stack:",
		"goroutine 1",
		"main.go:10",
	}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("panicLines() = %q, want %q", lines, want)
	}
}

func TestDrawPanic(t *testing.T) {
	fb := &fakeFB{w: 64, h: 32, buf: make([]byte, 64*32*2)}
	drawPanic(fb, []string{"trt panic:", "a line far too long to fit on one row of this screen"})

	white, ink := 0, 0
	for i := 0; i+1 < len(fb.buf); i += 2 {
		if fb.buf[i] == 0xff && fb.buf[i+1] == 0xff {
			white++
		} else {
			ink++
		}
	}
	if white == 0 || ink == 0 {
		t.Fatalf("drawPanic() painted white=%d ink=%d, want both", white, ink)
	}
}

func TestTakeRunes(t *testing.T) {
	tests := []struct {
		s          string
		n          int
		head, tail string
	}{
		{"abcdef", 4, "abcd", "ef"},
		{"abc", 4, "abc", ""},
		{"héllo", 2, "hé", "llo"},
		{"abc", 0, "", "abc"},
	}
	for _, tt := range tests {
		head, tail := takeRunes(tt.s, tt.n)
		if head != tt.head || tail != tt.tail {
			t.Fatalf("takeRunes(%q, %d) = %q, %q, want %q, %q", tt.s, tt.n, head, tail, tt.head, tt.tail)
		}
	}
}
