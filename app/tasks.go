package app

import (
	"trt/trtos/kernel"
)

// blink toggles the LED every time the blink timer expires.
func (s *System) blink(c *kernel.Context) {
	led := s.h.LED()
	on := false
	for {
		c.Wait(semBlink)
		on = !on
		if led == nil {
			continue
		}
		if on {
			led.High()
		} else {
			led.Low()
		}
	}
}

// worker returns a task that bumps the shared counter under mxCounter,
// holding the lock across a sleep so the other worker has to block on it.
func (s *System) worker(pause kernel.Tick) kernel.TaskFunc {
	return func(c *kernel.Context) {
		for {
			s.mutexes.Lock(mxCounter)
			v := s.counter.Add(1)
			c.Sleep(pause)
			if got := s.counter.Load(); got != v {
				s.logf("%s: counter changed under lock: %d != %d", c.Name(), got, v)
			}
			s.mutexes.Unlock(mxCounter)
			c.Sleep(pause)
		}
	}
}

// rearm waits for the one-shot timer and starts it again.
func (s *System) rearm(c *kernel.Context) {
	for {
		c.Wait(semOneShot)
		s.oneshot.Add(1)
		s.logf("oneshot: fired at t=%d (%d)", c.Now(), s.timers.ElapsedPeriods(timerOneShot))
		s.timers.Start(timerOneShot)
	}
}
