// Package monitor renders the diagnostic dumps on a framebuffer through a
// tinyterm terminal.
package monitor

import (
	"fmt"
	"sync/atomic"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"

	"trt/trtos/diag"
	"trt/trtos/kernel"
)

// DefaultEvery is the refresh period, in ticks, used when Config.Every is 0.
const DefaultEvery kernel.Tick = 100

type Config struct {
	Dumper *diag.Dumper
	// Every is the refresh period in ticks.
	Every kernel.Tick
	// Freeze holds off the timers while a frame is sampled.
	Freeze diag.Freeze
}

type Service struct {
	fb     Framebuffer
	d      *fbDisplay
	t      *tinyterm.Terminal
	dump   *diag.Dumper
	every  kernel.Tick
	freeze diag.Freeze
	frames atomic.Uint32
}

func New(fb Framebuffer, cfg Config) *Service {
	if cfg.Every == 0 {
		cfg.Every = DefaultEvery
	}
	return &Service{
		fb:     fb,
		d:      &fbDisplay{fb: fb},
		dump:   cfg.Dumper,
		every:  cfg.Every,
		freeze: cfg.Freeze,
	}
}

// Frames returns the number of frames drawn so far.
func (s *Service) Frames() uint32 { return s.frames.Load() }

// Refresh clears the screen and draws one full dump.
func (s *Service) Refresh() error {
	if s.fb == nil || s.dump == nil {
		return nil
	}
	s.reset()

	snap := s.dump.Take(s.freeze)
	frame := s.frames.Add(1)
	fmt.Fprintf(s.t, "trt  t=%d  frame=%d\n", snap.Now, frame)
	if err := snap.WriteTasks(s.t, kernel.NoTask); err != nil {
		return err
	}
	if err := snap.WriteSemaphores(s.t, kernel.NoSem); err != nil {
		return err
	}
	if err := snap.WriteMutexes(s.t, kernel.NoSem); err != nil {
		return err
	}
	if err := snap.WriteTimers(s.t, 0); err != nil {
		return err
	}
	s.t.Display()
	return nil
}

// Run is the monitor task body: it redraws every s.every ticks until the
// kernel stops it.
func (s *Service) Run(ctx *kernel.Context) {
	next := ctx.Now()
	for {
		if err := s.Refresh(); err != nil {
			return
		}
		next += s.every
		ctx.SleepUntil(next, next+s.every)
	}
}

func (s *Service) reset() {
	s.t = tinyterm.NewTerminal(s.d)
	s.t.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        10,
		FontOffset:        6,
		UseSoftwareScroll: true,
	})
	s.fb.ClearRGB(0, 0, 0)
}
