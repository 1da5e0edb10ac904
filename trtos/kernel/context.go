package kernel

// Context provides task-local access to kernel operations.
type Context struct {
	k  *Kernel
	id TaskID
}

// TaskID returns the current task ID.
func (c *Context) TaskID() TaskID { return c.id }

// Name returns the name the task was created with.
func (c *Context) Name() string {
	c.k.mu.Lock()
	defer c.k.mu.Unlock()
	return c.k.tasks[c.id-1].name
}

// Kernel returns the kernel running the task.
func (c *Context) Kernel() *Kernel { return c.k }

// Now returns the current kernel time.
func (c *Context) Now() Tick { return c.k.Now() }

// Yield lets other ready tasks run.
func (c *Context) Yield() { c.k.Yield() }

// SleepUntil suspends the task until release and records its next deadline.
func (c *Context) SleepUntil(release, deadline Tick) { c.k.SleepUntil(release, deadline) }

// Sleep suspends the task for n ticks. The deadline moves with the release.
func (c *Context) Sleep(n Tick) {
	now := c.k.Now()
	c.k.SleepUntil(now+n, now+n)
}

// Wait blocks on semaphore s.
func (c *Context) Wait(s SemID) { c.k.Wait(s) }

// Signal posts semaphore s.
func (c *Context) Signal(s SemID) { c.k.Signal(s) }

// StackUsed reports the task's stack high-water mark in bytes, for the
// diagnostic dump. Goroutine stacks are not sampled by the kernel itself.
func (c *Context) StackUsed(n uint16) { c.k.reportStack(c.id, n) }
