//go:build tinygo && baremetal && !picocalc

package hal

type tinyGoHAL struct {
	logger *uartLogger
	led    *pinLED
	fb     Framebuffer
	t      *tinyGoTime
	serial Serial
}

// New returns a Pico 2 (RP2350) HAL implementation. The bare board has no
// panel, so the framebuffer is a stub and the monitor stays dark.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
func New(opts Options) HAL {
	uart := configureUART0()
	return &tinyGoHAL{
		logger: &uartLogger{uart: uart},
		led:    configureLED(),
		fb:     &stubFramebuffer{w: 320, h: 320},
		t:      newTinyGoTime(opts.tick()),
		serial: &uartSerial{uart: uart},
	}
}

func (h *tinyGoHAL) Logger() Logger   { return h.logger }
func (h *tinyGoHAL) LED() LED         { return h.led }
func (h *tinyGoHAL) Display() Display { return tinyGoDisplay{fb: h.fb} }
func (h *tinyGoHAL) Time() Time       { return h.t }
func (h *tinyGoHAL) Serial() Serial   { return h.serial }
