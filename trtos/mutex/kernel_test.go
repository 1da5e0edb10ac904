package mutex

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"trt/trtos/kernel"
)

func runKernel(t *testing.T, k *kernel.Kernel) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.Run(ctx); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
}

func TestMutualExclusionAcrossTasks(t *testing.T) {
	const (
		tasks = 4
		iters = 50
		mx    = kernel.SemID(5)
	)

	k := kernel.New(nil)
	tab := New(k)
	tab.Create(mx)

	var inside atomic.Int32
	var violations atomic.Int32
	var total atomic.Int32

	body := func(ctx *kernel.Context) {
		for i := 0; i < iters; i++ {
			tab.Lock(mx)
			if inside.Add(1) != 1 {
				violations.Add(1)
			}
			if !tab.IsOwner(mx) {
				violations.Add(1)
			}
			ctx.Yield()
			total.Add(1)
			inside.Add(-1)
			tab.Unlock(mx)
			ctx.Yield()
		}
	}
	for i := 0; i < tasks; i++ {
		if _, err := k.CreateTask("worker", body, 256, 0, 0); err != nil {
			t.Fatalf("CreateTask() = %v", err)
		}
	}

	runKernel(t, k)

	if v := violations.Load(); v != 0 {
		t.Fatalf("violations = %d, want 0", v)
	}
	if got := total.Load(); got != tasks*iters {
		t.Fatalf("total = %d, want %d", got, tasks*iters)
	}
	if got := tab.Record(mx); got != (Record{Owner: kernel.NoTask, State: Unlocked}) {
		t.Fatalf("Record() = %+v, want unlocked", got)
	}
}

func TestLockWaitWake(t *testing.T) {
	const (
		mx    = kernel.SemID(5)
		start = kernel.SemID(1)
	)

	k := kernel.New(nil)
	tab := New(k)
	tab.Create(mx)
	k.CreateSemaphore(start, 0)

	var bID kernel.TaskID
	bOwned := make(chan bool, 1)
	unlockedAt := make(chan kernel.TaskID, 1)

	_, err := k.CreateTask("a", func(ctx *kernel.Context) {
		tab.Lock(mx)
		ctx.Signal(start)
		for k.SemWaiters(mx) == 0 {
			ctx.Yield()
		}
		tab.Unlock(mx)
		unlockedAt <- tab.Owner(mx)
	}, 128, 0, 0)
	if err != nil {
		t.Fatalf("CreateTask(a) = %v", err)
	}

	bID, err = k.CreateTask("b", func(ctx *kernel.Context) {
		ctx.Wait(start)
		tab.Lock(mx)
		bOwned <- tab.IsOwner(mx) && tab.Owner(mx) == ctx.TaskID()
		tab.Unlock(mx)
	}, 128, 0, 0)
	if err != nil {
		t.Fatalf("CreateTask(b) = %v", err)
	}

	runKernel(t, k)

	if owner := <-unlockedAt; owner != kernel.NoTask && owner != bID {
		t.Fatalf("owner right after unlock = %d, want none or %d", owner, bID)
	}
	if !<-bOwned {
		t.Fatal("b did not own the mutex after waking")
	}
	if got := tab.Query(mx); got != Unlocked {
		t.Fatalf("Query() = %s, want unlocked", got)
	}
}
