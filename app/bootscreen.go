//go:build !bootdebug

package app

import "trt/hal"

func bootScreen(hal.HAL, string) {}
