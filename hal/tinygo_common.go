//go:build tinygo && baremetal

package hal

import (
	"machine"
	"time"
)

type tinyGoDisplay struct {
	fb Framebuffer
}

func (d tinyGoDisplay) Framebuffer() Framebuffer { return d.fb }

// tinyGoTime emits tick sequence numbers from a free-running ticker.
type tinyGoTime struct {
	ch   chan uint64
	seq  uint64
	tick time.Duration
}

func newTinyGoTime(tick time.Duration) *tinyGoTime {
	t := &tinyGoTime{ch: make(chan uint64, 16), tick: tick}
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

func (t *tinyGoTime) Ticks() <-chan uint64        { return t.ch }
func (t *tinyGoTime) TickDuration() time.Duration { return t.tick }

func configureUART0() *machine.UART {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})
	return uart
}

func configureLED() *pinLED {
	pin := machine.LED
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &pinLED{pin: pin}
}

type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.uart.WriteByte(s[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	l.uart.Write(b)
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

type pinLED struct {
	pin machine.Pin
}

func (l *pinLED) High() { l.pin.High() }
func (l *pinLED) Low()  { l.pin.Low() }

// uartSerial blocks reads until at least one byte arrives, so a bufio
// scanner on top of it sees a regular stream instead of empty reads.
type uartSerial struct {
	uart *machine.UART
}

func (s *uartSerial) Read(p []byte) (int, error) {
	if s.uart == nil {
		return 0, ErrNotImplemented
	}
	for {
		n, err := s.uart.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *uartSerial) Write(p []byte) (int, error) {
	if s.uart == nil {
		return 0, ErrNotImplemented
	}
	return s.uart.Write(p)
}
