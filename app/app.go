package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"trt/hal"
	"trt/trtos/diag"
	"trt/trtos/kernel"
	"trt/trtos/mutex"
	"trt/trtos/services/console"
	"trt/trtos/services/monitor"
	"trt/trtos/timer"
)

// Slot assignment of the demo system. Mutexes and semaphores share one
// table, so the mutex takes a semaphore slot of its own.
const (
	timerBlink   timer.ID = 1
	timerOneShot timer.ID = 2

	semBlink   kernel.SemID = 4
	mxCounter  kernel.SemID = 5
	semOneShot kernel.SemID = 6
)

type Config struct {
	Granularity timer.Granularity
	// BlinkPeriod and OneShotDelay are converted to ticks at Granularity.
	BlinkPeriod  time.Duration
	OneShotDelay time.Duration
	// DumpEvery is the monitor refresh period. Zero disables the monitor.
	DumpEvery time.Duration
	// FreezeDumps samples the monitor with the timers held off.
	FreezeDumps bool
	// Console serves the diagnostic console on the HAL serial port.
	Console bool
}

func DefaultConfig() Config {
	return Config{
		Granularity:  timer.Tick10ms,
		BlinkPeriod:  500 * time.Millisecond,
		OneShotDelay: 2 * time.Second,
		DumpEvery:    time.Second,
		Console:      true,
	}
}

// System is the demo application: a blinking LED driven by a periodic
// timer, two workers sharing a mutex, a re-armed one-shot timer, the
// console and the monitor.
type System struct {
	h   hal.HAL
	cfg Config
	log hal.Logger

	k       *kernel.Kernel
	mutexes *mutex.Table
	timers  *timer.Bank
	console *console.Service
	monitor *monitor.Service

	counter atomic.Int64
	oneshot atomic.Uint32
	panics  chan kernel.PanicInfo
}

var errQuit = errors.New("app: console quit")

func NewSystem(h hal.HAL, cfg Config) (*System, error) {
	if cfg.Granularity == 0 {
		cfg.Granularity = timer.Tick10ms
	}
	s := &System{
		h:      h,
		cfg:    cfg,
		log:    h.Logger(),
		panics: make(chan kernel.PanicInfo, 1),
	}
	s.k = kernel.New(s.log)
	s.mutexes = mutex.New(s.k)
	s.timers = timer.New(s.k, cfg.Granularity)
	installPanicHandler(s)

	bootStep(h, "semaphores")
	s.k.CreateSemaphore(semBlink, 0)
	s.k.CreateSemaphore(semOneShot, 0)
	s.mutexes.Create(mxCounter)

	bootStep(h, "timers")
	g := cfg.Granularity
	if err := s.timers.Configure(timerBlink, g.Ticks(cfg.BlinkPeriod), timer.Periodic, semBlink); err != nil {
		return nil, fmt.Errorf("blink timer: %w", err)
	}
	if err := s.timers.Configure(timerOneShot, g.Ticks(cfg.OneShotDelay), timer.OneShot, semOneShot); err != nil {
		return nil, fmt.Errorf("one-shot timer: %w", err)
	}

	bootStep(h, "tasks")
	tasks := []struct {
		name  string
		fn    kernel.TaskFunc
		stack uint16
	}{
		{"blink", s.blink, 256},
		{"alpha", s.worker(3), 256},
		{"beta", s.worker(5), 256},
		{"oneshot", s.rearm, 256},
	}
	for _, t := range tasks {
		if _, err := s.k.CreateTask(t.name, t.fn, t.stack, 0, 0); err != nil {
			return nil, fmt.Errorf("task %s: %w", t.name, err)
		}
	}

	dump := &diag.Dumper{Kernel: s.k, Locks: s.mutexes, Bank: s.timers}
	if cfg.DumpEvery > 0 {
		if disp := h.Display(); disp != nil {
			if fb := disp.Framebuffer(); fb != nil && fb.Buffer() != nil {
				freeze := diag.RunTimers
				if cfg.FreezeDumps {
					freeze = diag.FreezeTimers
				}
				s.monitor = monitor.New(fb, monitor.Config{
					Dumper: dump,
					Every:  kernel.Tick(g.Ticks(cfg.DumpEvery)),
					Freeze: freeze,
				})
				if _, err := s.k.CreateTask("monitor", s.monitor.Run, 1024, 0, 0); err != nil {
					return nil, fmt.Errorf("task monitor: %w", err)
				}
			}
		}
	}

	if cfg.Console && h.Serial() != nil {
		s.console = console.New(console.Config{
			Kernel:  s.k,
			Mutexes: s.mutexes,
			Timers:  s.timers,
		})
	}

	s.timers.Start(timerBlink)
	s.timers.Start(timerOneShot)
	bootStep(h, "ready")
	return s, nil
}

func (s *System) Kernel() *kernel.Kernel { return s.k }
func (s *System) Mutexes() *mutex.Table  { return s.mutexes }
func (s *System) Timers() *timer.Bank    { return s.timers }

// Run starts the kernel and the tick interrupt and blocks until ctx is
// done, the console quits or a task panics.
func (s *System) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.k.Run(ctx) })
	g.Go(func() error {
		return timer.Drive(ctx, s.h.Time().Ticks(), s.k, s.timers)
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case info := <-s.panics:
			return fmt.Errorf("task %d panicked: %v", info.TaskID, info.Value)
		}
	})
	if s.console != nil {
		g.Go(func() error {
			if err := s.console.Run(ctx, s.h.Serial(), s.h.Serial()); err != nil {
				return err
			}
			return errQuit
		})
	}

	err := g.Wait()
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func (s *System) logf(format string, args ...any) {
	if s.log == nil {
		return
	}
	s.log.WriteLineString(fmt.Sprintf(format, args...))
}

// New builds the system, starts it in the background and returns a step
// function for the host runners. The step function reports hal.ErrStop
// once the system has ended cleanly.
func New(h hal.HAL, cfg Config) func() error {
	s, err := NewSystem(h, cfg)
	if err != nil {
		return func() error { return err }
	}
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	return func() error {
		select {
		case err := <-done:
			if err == nil {
				return hal.ErrStop
			}
			return err
		default:
			return nil
		}
	}
}

// Run starts the system and blocks forever (TinyGo/native entrypoint).
func Run(h hal.HAL, cfg Config) {
	s, err := NewSystem(h, cfg)
	if err == nil {
		err = s.Run(context.Background())
	}
	if err != nil {
		h.Logger().WriteLineString("trt: " + err.Error())
	}
	select {}
}
