package diag

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"trt/trtos/irq"
	"trt/trtos/kernel"
	"trt/trtos/mutex"
	"trt/trtos/timer"
)

func newDumper(t *testing.T) (*Dumper, *kernel.Kernel, *mutex.Table, *timer.Bank) {
	t.Helper()
	k := kernel.New(nil)
	if _, err := k.CreateTask("blink", func(*kernel.Context) {}, 200, 10, 25); err != nil {
		t.Fatalf("CreateTask() = %v", err)
	}
	mt := mutex.New(k)
	mt.Create(5)
	tb := timer.New(k, timer.Tick1ms)
	return &Dumper{Kernel: k, Locks: mt, Bank: tb}, k, mt, tb
}

func TestTasksDump(t *testing.T) {
	d, k, _, _ := newDumper(t)
	for i := 0; i < 4; i++ {
		k.Tick()
	}

	var buf bytes.Buffer
	if err := d.Tasks(&buf, kernel.NoTask, RunTimers); err != nil {
		t.Fatalf("Tasks() = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Tasks() printed %d lines, want 2:\n%s", len(lines), buf.String())
	}
	fields := strings.Fields(lines[1])
	want := []string{"1", "blink", "ready", "6", "21", "200"}
	if strings.Join(fields, " ") != strings.Join(want, " ") {
		t.Fatalf("task row = %q, want %q", fields, want)
	}
}

func TestSemaphoresDump(t *testing.T) {
	d, k, _, _ := newDumper(t)
	k.Signal(2)
	k.Signal(2)

	var buf bytes.Buffer
	if err := d.Semaphores(&buf, 2, FreezeTimers); err != nil {
		t.Fatalf("Semaphores() = %v", err)
	}
	if got, want := buf.String(), "# value\n2    2\n"; got != want {
		t.Fatalf("Semaphores() = %q, want %q", got, want)
	}

	buf.Reset()
	if err := d.Semaphores(&buf, kernel.NoSem, RunTimers); err != nil {
		t.Fatalf("Semaphores() = %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != kernel.MaxSemaphores+1 {
		t.Fatalf("Semaphores() printed %d lines, want %d", n, kernel.MaxSemaphores+1)
	}
}

func TestMutexesDump(t *testing.T) {
	d, _, _, _ := newDumper(t)

	var buf bytes.Buffer
	if err := d.Mutexes(&buf, 5, RunTimers); err != nil {
		t.Fatalf("Mutexes() = %v", err)
	}
	if got, want := buf.String(), "# owner state\n5     0 unlocked\n"; got != want {
		t.Fatalf("Mutexes() = %q, want %q", got, want)
	}
}

func TestTimersDump(t *testing.T) {
	d, _, _, tb := newDumper(t)
	if err := tb.Configure(2, 5, timer.OneShot, 3); err != nil {
		t.Fatalf("Configure() = %v", err)
	}
	tb.Start(2)
	tb.Tick()

	var buf bytes.Buffer
	if err := d.Timers(&buf, 2, FreezeTimers); err != nil {
		t.Fatalf("Timers() = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Timers() printed %d lines:\n%s", len(lines), buf.String())
	}
	fields := strings.Join(strings.Fields(lines[1]), " ")
	if want := "2 1 1 oneshot 5 3 0 3"; fields != want {
		t.Fatalf("timer row = %q, want %q", fields, want)
	}
}

func TestBadIndex(t *testing.T) {
	d, _, _, _ := newDumper(t)
	var buf bytes.Buffer

	if err := d.Tasks(&buf, 7, RunTimers); !errors.Is(err, ErrBadIndex) {
		t.Fatalf("Tasks(7) = %v, want ErrBadIndex", err)
	}
	if err := d.Semaphores(&buf, kernel.MaxSemaphores+1, RunTimers); !errors.Is(err, ErrBadIndex) {
		t.Fatalf("Semaphores() = %v, want ErrBadIndex", err)
	}
	if err := d.Mutexes(&buf, kernel.MaxSemaphores+1, RunTimers); !errors.Is(err, ErrBadIndex) {
		t.Fatalf("Mutexes() = %v, want ErrBadIndex", err)
	}
	if err := d.Timers(&buf, timer.MaxTimers+1, RunTimers); !errors.Is(err, ErrBadIndex) {
		t.Fatalf("Timers() = %v, want ErrBadIndex", err)
	}
}

func TestFreezeReleasesSection(t *testing.T) {
	d, _, _, _ := newDumper(t)
	var buf bytes.Buffer
	if err := d.All(&buf, FreezeTimers); err != nil {
		t.Fatalf("All() = %v", err)
	}

	done := make(chan struct{})
	go func() {
		irq.Do(func() {})
		close(done)
	}()
	<-done

	for _, hdr := range []string{"# name", "# value", "# owner", "# en run"} {
		if !strings.Contains(buf.String(), hdr) {
			t.Fatalf("All() output is missing %q:\n%s", hdr, buf.String())
		}
	}
}

func TestNilSourcesAreSkipped(t *testing.T) {
	d := &Dumper{}
	snap := d.Take(RunTimers)
	if snap.Tasks != nil || snap.Mutexes != nil || snap.Timers != nil {
		t.Fatalf("Take() = %+v, want empty snapshot", snap)
	}
}
