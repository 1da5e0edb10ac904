package monitor

import (
	"image/color"

	"tinygo.org/x/drivers"
)

// Framebuffer is the RGB565 surface the monitor draws on. hal.Framebuffer
// satisfies it.
type Framebuffer interface {
	Width() int
	Height() int
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// fbDisplay adapts a Framebuffer to tinyterm.Displayer.
type fbDisplay struct {
	fb Framebuffer
}

func (d *fbDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	d.fill(int(x), int(y), int(x)+1, int(y)+1, c)
}

func (d *fbDisplay) Display() error {
	return d.fb.Present()
}

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	d.fill(int(x), int(y), int(x)+int(width), int(y)+int(height), c)
	return nil
}

// ScrollUp moves the picture up by lines rows and clears the exposed band.
func (d *fbDisplay) ScrollUp(lines int16, bg color.RGBA) error {
	w, h := d.fb.Width(), d.fb.Height()
	n := int(lines)
	if n <= 0 || w <= 0 || h <= 0 {
		return nil
	}
	if n >= h {
		return d.FillRectangle(0, 0, int16(w), int16(h), bg)
	}

	buf := d.fb.Buffer()
	stride := d.fb.StrideBytes()
	end := h * stride
	if end > len(buf) {
		end = len(buf) - len(buf)%stride
	}
	if n*stride >= end {
		return d.FillRectangle(0, 0, int16(w), int16(h), bg)
	}
	copy(buf, buf[n*stride:end])
	return d.FillRectangle(0, int16(h-n), int16(w), int16(n), bg)
}

func (d *fbDisplay) SetScroll(int16) {}

func (d *fbDisplay) SetRotation(drivers.Rotation) error { return nil }

func (d *fbDisplay) fill(x0, y0, x1, y1 int, c color.RGBA) {
	buf := d.fb.Buffer()
	if buf == nil {
		return
	}
	w, h := d.fb.Width(), d.fb.Height()
	x0, x1 = clamp(x0, 0, w), clamp(x1, 0, w)
	y0, y1 = clamp(y0, 0, h), clamp(y1, 0, h)

	pixel := rgb565(c)
	lo, hi := byte(pixel), byte(pixel>>8)
	stride := d.fb.StrideBytes()
	for y := y0; y < y1; y++ {
		row := y * stride
		for x := x0; x < x1; x++ {
			off := row + x*2
			if off+1 >= len(buf) {
				return
			}
			buf[off] = lo
			buf[off+1] = hi
		}
	}
}

func rgb565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
