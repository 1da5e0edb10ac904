package app

import "trt/hal"

// bootStep records initialization progress on the log. Builds tagged
// bootdebug also paint it on the display.
func bootStep(h hal.HAL, msg string) {
	if l := h.Logger(); l != nil {
		l.WriteLineString("boot: " + msg)
	}
	bootScreen(h, msg)
}
