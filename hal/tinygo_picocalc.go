//go:build tinygo && baremetal && picocalc

package hal

type picoCalcHAL struct {
	logger *uartLogger
	led    *pinLED
	fb     Framebuffer
	t      *tinyGoTime
	serial Serial
}

// New returns a PicoCalc HAL implementation (Pico/Pico2 on the PicoCalc
// carrier). The monitor draws on the 320x320 ILI9488 panel.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
func New(opts Options) HAL {
	uart := configureUART0()
	logger := &uartLogger{uart: uart}

	fb := newPanelFramebuffer(320, 320)
	if lcd, err := initILI9488(); err == nil {
		fb.lcd = lcd
	} else {
		logger.WriteLineString("hal: display: " + err.Error())
	}

	return &picoCalcHAL{
		logger: logger,
		led:    configureLED(),
		fb:     fb,
		t:      newTinyGoTime(opts.tick()),
		serial: &uartSerial{uart: uart},
	}
}

func (h *picoCalcHAL) Logger() Logger   { return h.logger }
func (h *picoCalcHAL) LED() LED         { return h.led }
func (h *picoCalcHAL) Display() Display { return tinyGoDisplay{fb: h.fb} }
func (h *picoCalcHAL) Time() Time       { return h.t }
func (h *picoCalcHAL) Serial() Serial   { return h.serial }

// panelFramebuffer keeps the frame in RAM and pushes it to the panel on
// Present. Without a panel it still accepts drawing.
type panelFramebuffer struct {
	w      int
	h      int
	stride int
	buf    []byte

	lcd *ili9488
}

func newPanelFramebuffer(w, h int) *panelFramebuffer {
	return &panelFramebuffer{w: w, h: h, stride: w * 2, buf: make([]byte, w*h*2)}
}

func (f *panelFramebuffer) Width() int          { return f.w }
func (f *panelFramebuffer) Height() int         { return f.h }
func (f *panelFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *panelFramebuffer) StrideBytes() int    { return f.stride }
func (f *panelFramebuffer) Buffer() []byte      { return f.buf }

func (f *panelFramebuffer) ClearRGB(r, g, b uint8) {
	fillRGB565(f.buf, rgb565(r, g, b))
}

func (f *panelFramebuffer) Present() error {
	if f.lcd == nil {
		return ErrNotImplemented
	}
	return f.lcd.blit(f.buf, f.w, f.h)
}
