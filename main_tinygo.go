//go:build tinygo

package main

import (
	"trt/app"
	"trt/hal"
)

func main() {
	cfg := app.DefaultConfig()
	app.Run(hal.New(hal.Options{TickDuration: cfg.Granularity.Duration()}), cfg)
}
