package hal

import (
	"errors"
	"io"
	"time"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

var ErrNotImplemented = errors.New("not implemented")

// ErrStop is returned by a runner step function to end the run cleanly.
var ErrStop = errors.New("hal: stop")

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb, stored little-endian.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Time is the hardware tick source. Every value received on Ticks is a
// sequence number; a slow reader may miss values and is expected to replay
// the gap.
type Time interface {
	Ticks() <-chan uint64
	TickDuration() time.Duration
}

// Serial is the console byte stream.
type Serial interface {
	io.Reader
	io.Writer
}

// Options configures a HAL instance.
type Options struct {
	// TickDuration is the period of the hardware tick. Zero means 10ms.
	TickDuration time.Duration
}

const DefaultTickDuration = 10 * time.Millisecond

func (o Options) tick() time.Duration {
	if o.TickDuration <= 0 {
		return DefaultTickDuration
	}
	return o.TickDuration
}

// HAL provides the only contact point between the OS and the outside world.
type HAL interface {
	Logger() Logger
	LED() LED
	Display() Display
	Time() Time
	Serial() Serial
}
