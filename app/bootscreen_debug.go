//go:build bootdebug

package app

import (
	"image/color"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"trt/hal"
)

func bootScreen(h hal.HAL, msg string) {
	disp := h.Display()
	if disp == nil {
		return
	}
	fb := disp.Framebuffer()
	if fb == nil || fb.Buffer() == nil {
		return
	}

	fb.ClearRGB(0, 0, 0)
	d := panicDisplay{fb: fb}
	fg := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	tinyfont.WriteLine(d, &proggy.TinySZ8pt7b, 0, 10, "trt boot", fg)
	tinyfont.WriteLine(d, &proggy.TinySZ8pt7b, 0, 24, msg, fg)
	_ = fb.Present()
}
