package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Table sizes. Like the rest of the kernel they are fixed at build time.
const (
	MaxTasks      = 8
	MaxSemaphores = 7
)

// TaskID identifies a task slot (1-based).
type TaskID uint8

// NoTask is the "no owner" task identity.
const NoTask TaskID = 0

func (id TaskID) Valid() bool { return id >= 1 && id <= MaxTasks }

// SemID identifies a semaphore slot (1-based).
type SemID uint8

// NoSem means "no semaphore".
const NoSem SemID = 0

func (s SemID) Valid() bool { return s >= 1 && s <= MaxSemaphores }

// Tick is a kernel time value, counted in hardware ticks.
type Tick uint32

// Before reports whether t is strictly earlier than u, tolerating wraparound.
func (t Tick) Before(u Tick) bool { return int32(t-u) < 0 }

// RangeError reports an out-of-range table index.
//
// Index errors are contract violations: the core panics with a *RangeError
// instead of returning it.
type RangeError struct {
	Table string
	Index int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: index %d out of range [1, %d]", e.Table, e.Index, e.Max)
}

// CheckSem panics with a *RangeError if s is not a valid semaphore slot.
func CheckSem(table string, s SemID) {
	if !s.Valid() {
		panic(&RangeError{Table: table, Index: int(s), Max: MaxSemaphores})
	}
}

var (
	ErrTooManyTasks = errors.New("kernel: task table full")
	ErrNilTask      = errors.New("kernel: nil task function")
)

// Logger receives kernel lifecycle lines. hal.Logger satisfies it.
type Logger interface {
	WriteLineString(s string)
}

// TaskFunc is the body of a task. Returning terminates the task.
type TaskFunc func(*Context)

// TaskState is the scheduler state of a task slot.
type TaskState uint8

const (
	TaskFree TaskState = iota
	TaskReady
	TaskRunning
	TaskSleeping
	TaskWaiting
	TaskDone
)

func (s TaskState) String() string {
	switch s {
	case TaskFree:
		return "free"
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskSleeping:
		return "sleeping"
	case TaskWaiting:
		return "waiting"
	case TaskDone:
		return "done"
	default:
		return "unknown"
	}
}

// TaskInfo is a read-only copy of a task record.
type TaskInfo struct {
	ID        TaskID
	Name      string
	State     TaskState
	Release   Tick
	Deadline  Tick
	StackSize uint16
	// StackFree is the declared stack budget minus the high-water mark the
	// task reported through Context.StackUsed.
	StackFree uint16
	WaitingOn SemID
}

type task struct {
	name     string
	fn       TaskFunc
	state    TaskState
	release  Tick
	deadline Tick
	stack    uint16
	stackHW  uint16
	waiting  SemID
	spawned  bool
	wake     chan struct{}
}

// Kernel is the host scheduler and semaphore substrate.
//
// It models a single core: tasks are goroutines, but only the holder of the
// run token executes. A task gives the core up when it waits on a semaphore,
// sleeps, yields or returns. Tick is the hardware timer interrupt and runs
// outside the run token.
type Kernel struct {
	cpu     chan struct{}
	running atomic.Uint32

	mu      sync.Mutex
	tasks   [MaxTasks]task
	nTasks  TaskID
	sems    [MaxSemaphores]semaphore
	now     Tick
	started bool

	log Logger
	wg  sync.WaitGroup
}

// New creates a kernel instance. log may be nil.
func New(log Logger) *Kernel {
	return &Kernel{
		cpu: make(chan struct{}, 1),
		log: log,
	}
}

func (k *Kernel) logf(format string, args ...any) {
	if k.log == nil {
		return
	}
	k.log.WriteLineString(fmt.Sprintf(format, args...))
}

// CreateTask registers a task. It becomes eligible to run at release once
// the kernel is running; tasks created after Run start immediately.
func (k *Kernel) CreateTask(name string, fn TaskFunc, stack uint16, release, deadline Tick) (TaskID, error) {
	if fn == nil {
		return NoTask, ErrNilTask
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.nTasks >= MaxTasks {
		return NoTask, ErrTooManyTasks
	}
	k.nTasks++
	id := k.nTasks
	k.tasks[id-1] = task{
		name:     name,
		fn:       fn,
		state:    TaskReady,
		release:  release,
		deadline: deadline,
		stack:    stack,
		wake:     make(chan struct{}, 1),
	}
	k.logf("kernel: task %d (%s) created", id, name)
	if k.started {
		k.spawnLocked(id)
	}
	return id, nil
}

// Run starts every registered task and blocks until all of them return or
// ctx is done.
func (k *Kernel) Run(ctx context.Context) error {
	k.mu.Lock()
	k.started = true
	for id := TaskID(1); id <= k.nTasks; id++ {
		k.spawnLocked(id)
	}
	k.mu.Unlock()

	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *Kernel) spawnLocked(id TaskID) {
	t := &k.tasks[id-1]
	if t.spawned {
		return
	}
	t.spawned = true
	if k.now.Before(t.release) {
		t.state = TaskSleeping
	} else {
		t.state = TaskReady
		t.wake <- struct{}{}
	}
	k.wg.Add(1)
	go k.runTask(id)
}

func (k *Kernel) runTask(id TaskID) {
	defer k.wg.Done()

	t := &k.tasks[id-1]
	<-t.wake
	k.acquire(id)

	defer func() {
		if r := recover(); r != nil {
			k.logf("kernel: task %d panic: %v", id, r)
			triggerPanic(PanicInfo{TaskID: id, Value: r})
		}
		k.mu.Lock()
		t.state = TaskDone
		k.mu.Unlock()
		k.logf("kernel: task %d (%s) exited", id, t.name)
		k.release()
	}()

	t.fn(&Context{k: k, id: id})
}

func (k *Kernel) acquire(id TaskID) {
	k.cpu <- struct{}{}
	k.running.Store(uint32(id))

	k.mu.Lock()
	k.tasks[id-1].state = TaskRunning
	k.mu.Unlock()
}

func (k *Kernel) release() {
	k.running.Store(uint32(NoTask))
	<-k.cpu
}

func (k *Kernel) self() TaskID {
	id := TaskID(k.running.Load())
	if id == NoTask {
		panic("kernel: blocking call outside task context")
	}
	return id
}

// CurrentTask returns the task holding the core, or NoTask.
func (k *Kernel) CurrentTask() TaskID {
	return TaskID(k.running.Load())
}

// Tick advances kernel time by one tick and releases sleeping tasks whose
// release time has come. It never blocks.
func (k *Kernel) Tick() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.now++
	for i := TaskID(0); i < k.nTasks; i++ {
		t := &k.tasks[i]
		if t.state != TaskSleeping || !t.spawned || k.now.Before(t.release) {
			continue
		}
		t.state = TaskReady
		select {
		case t.wake <- struct{}{}:
		default:
		}
	}
}

// Now returns the current kernel time.
func (k *Kernel) Now() Tick {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.now
}

// Yield gives the core to the next ready task and waits for it back.
func (k *Kernel) Yield() {
	id := k.self()

	k.mu.Lock()
	k.tasks[id-1].state = TaskReady
	k.mu.Unlock()

	k.release()
	k.acquire(id)
}

// SleepUntil suspends the calling task until kernel time reaches release and
// records deadline for diagnostics. A release time already in the past
// returns immediately.
func (k *Kernel) SleepUntil(release, deadline Tick) {
	id := k.self()

	k.mu.Lock()
	t := &k.tasks[id-1]
	t.release = release
	t.deadline = deadline
	if !k.now.Before(release) {
		k.mu.Unlock()
		return
	}
	t.state = TaskSleeping
	k.mu.Unlock()

	k.release()
	<-t.wake
	k.acquire(id)
}

func (k *Kernel) reportStack(id TaskID, used uint16) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t := &k.tasks[id-1]
	if used > t.stackHW {
		t.stackHW = used
	}
}

// NumTasks returns the number of registered tasks.
func (k *Kernel) NumTasks() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return int(k.nTasks)
}

// Task returns a copy of one task record.
func (k *Kernel) Task(id TaskID) (TaskInfo, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if id == NoTask || id > k.nTasks {
		return TaskInfo{}, false
	}
	return k.infoLocked(id), true
}

// Tasks returns a copy of every registered task record, in ID order.
func (k *Kernel) Tasks() []TaskInfo {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]TaskInfo, 0, k.nTasks)
	for id := TaskID(1); id <= k.nTasks; id++ {
		out = append(out, k.infoLocked(id))
	}
	return out
}

func (k *Kernel) infoLocked(id TaskID) TaskInfo {
	t := &k.tasks[id-1]
	free := uint16(0)
	if t.stack > t.stackHW {
		free = t.stack - t.stackHW
	}
	return TaskInfo{
		ID:        id,
		Name:      t.name,
		State:     t.state,
		Release:   t.release,
		Deadline:  t.deadline,
		StackSize: t.stack,
		StackFree: free,
		WaitingOn: t.waiting,
	}
}
