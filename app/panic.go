package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"trt/hal"
	"trt/trtos/kernel"
)

const (
	panicFontHeight = 10
	panicFontOffset = 7
)

func installPanicHandler(s *System) {
	kernel.SetPanicHandler(func(info kernel.PanicInfo) {
		lines := panicLines(info)
		if s.log != nil {
			for _, line := range lines {
				s.log.WriteLineString(line)
			}
		}
		if disp := s.h.Display(); disp != nil {
			if fb := disp.Framebuffer(); fb != nil {
				drawPanic(fb, lines)
			}
		}
		select {
		case s.panics <- info:
		default:
		}
	})
}

func panicLines(info kernel.PanicInfo) []string {
	kind := "panic"
	if info.IsRangeError() {
		kind = "index out of range"
	}
	lines := []string{
		"trt panic:",
		fmt.Sprintf("task: %d", info.TaskID),
		fmt.Sprintf("%s: %v", kind, info.Value),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// drawPanic paints lines black on white, wrapping at the screen width and
// stopping at the bottom edge.
func drawPanic(fb hal.Framebuffer, lines []string) {
	if fb.Buffer() == nil {
		return
	}
	fb.ClearRGB(255, 255, 255)

	font := &proggy.TinySZ8pt7b
	_, w := tinyfont.LineWidth(font, "0")
	cols := 1
	if w > 0 {
		cols = fb.Width() / int(w)
	}

	d := panicDisplay{fb: fb}
	fg := color.RGBA{A: 255}
	y := 0
	for _, line := range lines {
		for len(line) > 0 {
			if y+panicFontHeight > fb.Height() {
				_ = fb.Present()
				return
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, font, 0, int16(y+panicFontOffset), chunk, fg)
			y += panicFontHeight
			line = strings.TrimLeft(rest, " \t")
		}
	}
	_ = fb.Present()
}

// panicDisplay is the minimal drivers.Displayer tinyfont needs.
type panicDisplay struct {
	fb hal.Framebuffer
}

func (d panicDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d panicDisplay) SetPixel(x, y int16, c color.RGBA) {
	buf := d.fb.Buffer()
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	off := iy*d.fb.StrideBytes() + ix*2
	if off+1 >= len(buf) {
		return
	}
	pixel := uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d panicDisplay) Display() error { return d.fb.Present() }

func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	i, count := 0, 0
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	return s[:i], s[i:]
}
