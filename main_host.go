//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"trt/app"
	"trt/hal"
	"trt/trtos/timer"
)

func main() {
	var (
		headless    bool
		hz          int
		frames      uint64
		granularity string
	)
	cfg := app.DefaultConfig()
	flag.BoolVar(&headless, "headless", false, "Run without a window.")
	flag.IntVar(&hz, "hz", 60, "Runner step rate in headless mode.")
	flag.Uint64Var(&frames, "frames", 0, "Stop after N runner steps in headless mode (0 = run forever).")
	flag.StringVar(&granularity, "tick", cfg.Granularity.String(), "Hardware tick granularity: 100us, 1ms or 10ms.")
	flag.DurationVar(&cfg.BlinkPeriod, "blink", cfg.BlinkPeriod, "Period of the blink timer.")
	flag.DurationVar(&cfg.OneShotDelay, "oneshot", cfg.OneShotDelay, "Delay of the re-armed one-shot timer.")
	flag.DurationVar(&cfg.DumpEvery, "dump-every", cfg.DumpEvery, "Monitor refresh period (0 = no monitor).")
	flag.BoolVar(&cfg.FreezeDumps, "freeze", cfg.FreezeDumps, "Hold the timers off while the monitor samples.")
	flag.BoolVar(&cfg.Console, "console", cfg.Console, "Serve the diagnostic console on stdin/stdout.")
	flag.Parse()

	g, err := timer.ParseGranularity(granularity)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.Granularity = g
	opts := hal.Options{TickDuration: g.Duration()}
	newApp := func(h hal.HAL) func() error { return app.New(h, cfg) }

	if headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err := hal.RunHeadless(ctx, newApp, hal.HeadlessConfig{HAL: opts, Hz: hz, Frames: frames})
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow(newApp, hal.WindowConfig{HAL: opts, Title: "trt"}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
