// Package work runs background work items on a bounded worker pool and
// reports their completion back on the main goroutine. Items carry a
// priority; higher priorities start first. Completion events are
// published only from Drain, so subscribers never see them off the main
// goroutine.
package work

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/variant"
	"github.com/keel-engine/keel/pkg/sequence"
)

// TypeQueue identifies the work queue subsystem.
var TypeQueue = object.NewTypeInfo("WorkQueue", nil)

// Func is a unit of background work. It runs on a pool goroutine and
// must not touch Objects or the Context; publish results by reading the
// completion event from the main goroutine instead. The context is
// cancelled when the queue shuts down forcefully.
type Func func(ctx context.Context) error

type task struct {
	id   uint64
	name string
	fn   Func
	err  error
}

// Queue is the background work subsystem.
type Queue struct {
	object.BaseObject

	mu       sync.Mutex
	cond     *sync.Cond
	pending  *sequence.PriorityQueue[*task]
	finished []*task
	seq      uint64
	open     int // posted but not yet reported through Drain
	closed   bool

	group    errgroup.Group
	taskCtx  context.Context
	taskStop context.CancelFunc
}

// NewQueue starts a pool of workers. A non-positive count sizes the pool
// to the machine, leaving one CPU for the main goroutine.
func NewQueue(ctx *object.Context, workers int) *Queue {
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
		if workers < 1 {
			workers = 1
		}
	}
	q := &Queue{
		pending: sequence.NewPriorityQueue[*task](),
	}
	q.cond = sync.NewCond(&q.mu)
	q.taskCtx, q.taskStop = context.WithCancel(context.Background())
	q.Init(ctx, TypeQueue, q)
	q.group.SetLimit(workers)
	for i := 0; i < workers; i++ {
		q.group.Go(q.worker)
	}
	return q
}

// Post queues fn under name with the given priority and returns its id.
// Higher priorities start first. Posting to a closed queue is refused
// and returns zero.
func (q *Queue) Post(name string, priority int, fn Func) uint64 {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.Context().Log().Warn("work: item posted after close", log.String("item", name))
		return 0
	}
	q.seq++
	id := q.seq
	q.pending.Enqueue(&task{id: id, name: name, fn: fn}, priority)
	q.open++
	q.mu.Unlock()
	q.cond.Signal()
	return id
}

// Drain publishes a completion event for every item that finished since
// the previous call and returns how many were published. Call once per
// frame from the main goroutine.
func (q *Queue) Drain() int {
	q.mu.Lock()
	finished := q.finished
	q.finished = nil
	q.open -= len(finished)
	q.mu.Unlock()

	ctx := q.Context()
	for _, t := range finished {
		data := ctx.EventDataMap()
		data[ParamItemName] = variant.New(t.name)
		data[ParamItemID] = variant.New(int64(t.id))
		if t.err != nil {
			data[ParamError] = variant.New(t.err.Error())
		}
		q.SendEvent(EventWorkItemCompleted, data)
	}
	return len(finished)
}

// Outstanding returns the number of posted items not yet reported
// through Drain.
func (q *Queue) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.open
}

// Pending returns the number of items waiting for a worker.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// Close stops intake and waits for queued and running items to finish.
// When ctx expires first, running items are cancelled through their
// context and the wait resumes until the pool drains. Completions that
// arrived before Close still need a final Drain to be published.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()

	done := make(chan struct{})
	go func() {
		_ = q.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.taskStop()
		return nil
	case <-ctx.Done():
		q.taskStop()
		<-done
		return ctx.Err()
	}
}

// worker loops until the queue is closed and the backlog is empty.
func (q *Queue) worker() error {
	q.mu.Lock()
	for {
		for q.pending.IsEmpty() && !q.closed {
			q.cond.Wait()
		}
		t, ok := q.pending.Dequeue()
		if !ok {
			q.mu.Unlock()
			return nil
		}
		q.mu.Unlock()

		t.err = t.fn(q.taskCtx)

		q.mu.Lock()
		q.finished = append(q.finished, t)
	}
}
