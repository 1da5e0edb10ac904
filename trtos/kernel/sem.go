package kernel

import "math"

// waitQueue is a fixed FIFO of blocked tasks. A task waits on at most one
// semaphore at a time, so MaxTasks slots never overflow.
type waitQueue struct {
	head  uint8
	tail  uint8
	slots [MaxTasks]TaskID
}

func (q *waitQueue) push(id TaskID) bool {
	if q.head-q.tail >= MaxTasks {
		return false
	}
	q.slots[q.head%MaxTasks] = id
	q.head++
	return true
}

func (q *waitQueue) pop() (TaskID, bool) {
	if q.tail == q.head {
		return NoTask, false
	}
	id := q.slots[q.tail%MaxTasks]
	q.tail++
	return id, true
}

func (q *waitQueue) len() int { return int(q.head - q.tail) }

type semaphore struct {
	value   uint8
	waiters waitQueue
}

// CreateSemaphore sets semaphore s to value. Tasks already queued on s stay
// queued.
func (k *Kernel) CreateSemaphore(s SemID, value uint8) {
	CheckSem("kernel: semaphore", s)

	k.mu.Lock()
	defer k.mu.Unlock()
	k.sems[s-1].value = value
}

// Wait decrements semaphore s, or suspends the calling task until a Signal
// hands it the semaphore.
func (k *Kernel) Wait(s SemID) {
	CheckSem("kernel: semaphore", s)
	id := k.self()

	k.mu.Lock()
	sem := &k.sems[s-1]
	if sem.value > 0 {
		sem.value--
		k.mu.Unlock()
		return
	}
	t := &k.tasks[id-1]
	t.state = TaskWaiting
	t.waiting = s
	sem.waiters.push(id)
	k.mu.Unlock()

	k.release()
	<-t.wake
	k.acquire(id)
}

// Signal wakes the longest waiting task on s, or increments s if nobody
// waits. It never blocks and may be called from the tick handler.
func (k *Kernel) Signal(s SemID) {
	CheckSem("kernel: semaphore", s)

	k.mu.Lock()
	defer k.mu.Unlock()

	sem := &k.sems[s-1]
	if id, ok := sem.waiters.pop(); ok {
		t := &k.tasks[id-1]
		t.state = TaskReady
		t.waiting = NoSem
		select {
		case t.wake <- struct{}{}:
		default:
		}
		return
	}
	if sem.value < math.MaxUint8 {
		sem.value++
	}
}

// SemValue returns the raw value of semaphore s.
func (k *Kernel) SemValue(s SemID) uint8 {
	CheckSem("kernel: semaphore", s)

	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sems[s-1].value
}

// ClearSemaphore forces the raw value of semaphore s to zero.
func (k *Kernel) ClearSemaphore(s SemID) {
	CheckSem("kernel: semaphore", s)

	k.mu.Lock()
	defer k.mu.Unlock()
	k.sems[s-1].value = 0
}

// SemWaiters returns the number of tasks queued on semaphore s.
func (k *Kernel) SemWaiters(s SemID) int {
	CheckSem("kernel: semaphore", s)

	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sems[s-1].waiters.len()
}
