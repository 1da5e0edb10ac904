//go:build tinygo && !baremetal

package hal

import (
	"os"
	"time"
)

type tinyGoHostHAL struct {
	logger *tinyGoHostLogger
	led    *tinyGoHostLED
	fb     *tinyGoHostFramebuffer
	t      *tinyGoHostTime
	serial Serial
}

// New returns a TinyGo-on-host HAL implementation.
//
// This is used by `tinygo run` targets like linux/wasm where there is no MCU pin mapping.
func New(opts Options) HAL {
	l := &tinyGoHostLogger{}
	return &tinyGoHostHAL{
		logger: l,
		led:    &tinyGoHostLED{logger: l},
		fb:     newTinyGoHostFramebuffer(320, 320),
		t:      newTinyGoHostTime(opts.tick()),
		serial: tinyGoHostSerial{},
	}
}

func (h *tinyGoHostHAL) Logger() Logger   { return h.logger }
func (h *tinyGoHostHAL) LED() LED         { return h.led }
func (h *tinyGoHostHAL) Display() Display { return tinyGoHostDisplay{fb: h.fb} }
func (h *tinyGoHostHAL) Time() Time       { return h.t }
func (h *tinyGoHostHAL) Serial() Serial   { return h.serial }

type tinyGoHostDisplay struct {
	fb Framebuffer
}

func (d tinyGoHostDisplay) Framebuffer() Framebuffer { return d.fb }

type tinyGoHostTime struct {
	ch   chan uint64
	seq  uint64
	tick time.Duration
}

func newTinyGoHostTime(tick time.Duration) *tinyGoHostTime {
	t := &tinyGoHostTime{ch: make(chan uint64, 16), tick: tick}
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for range ticker.C {
			t.seq++
			select {
			case t.ch <- t.seq:
			default:
			}
		}
	}()
	return t
}

func (t *tinyGoHostTime) Ticks() <-chan uint64        { return t.ch }
func (t *tinyGoHostTime) TickDuration() time.Duration { return t.tick }

type tinyGoHostLogger struct{}

func (l *tinyGoHostLogger) WriteLineString(s string) {
	println(s)
}

func (l *tinyGoHostLogger) WriteLineBytes(b []byte) {
	println(string(b))
}

type tinyGoHostLED struct {
	on     bool
	logger *tinyGoHostLogger
}

func (l *tinyGoHostLED) High() {
	if !l.on {
		l.logger.WriteLineString("led: HIGH")
	}
	l.on = true
}

func (l *tinyGoHostLED) Low() {
	if l.on {
		l.logger.WriteLineString("led: LOW")
	}
	l.on = false
}

type tinyGoHostSerial struct{}

func (tinyGoHostSerial) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (tinyGoHostSerial) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
