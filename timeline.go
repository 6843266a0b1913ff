package qkernel

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
)

// SimTime is simulated time in picoseconds.
type SimTime int64

// Common simulated durations.
const (
	Picosecond  SimTime = 1
	Nanosecond          = 1000 * Picosecond
	Microsecond         = 1000 * Nanosecond
	Millisecond         = 1000 * Microsecond
	Second              = 1000 * Millisecond
)

// Clock is the only view of the timeline that protocols need.
type Clock interface {
	Now() SimTime
}

/*
Process is the activation record carried by a scheduled event: who owns it,
what it does, and the function that does it.
*/
type Process struct {
	Owner      string
	Activation string
	Fn         func() error
}

func (p Process) run() error {
	if p.Fn == nil {
		return nil
	}
	return p.Fn()
}

type event struct {
	time     SimTime
	sequence uint64
	process  Process
}

// eventQueue orders events by time, then by scheduling order.
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].time != q[j].time {
		return q[i].time < q[j].time
	}
	return q[i].sequence < q[j].sequence
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

/*
Timeline is a discrete-event scheduler. Time stands still between events and
jumps to the next event's timestamp when it runs. Events with equal timestamps
run in the order they were scheduled, which is what makes delivery on a
fixed-delay channel FIFO.

Every event runs to completion before the next one starts. The mutex only
guards scheduling from outside the run loop; simulation state itself is never
touched by two events at once.
*/
type Timeline struct {
	mu       sync.Mutex
	now      SimTime
	queue    eventQueue
	sequence uint64
	executed uint64
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

// Now returns the current simulated time.
func (tl *Timeline) Now() SimTime {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.now
}

// Schedule books p to run at the given time.
func (tl *Timeline) Schedule(at SimTime, p Process) error {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if at < tl.now {
		return fmt.Errorf("%w: %s.%s at %d, now %d", ErrPastEvent, p.Owner, p.Activation, at, tl.now)
	}

	heap.Push(&tl.queue, &event{time: at, sequence: tl.sequence, process: p})
	tl.sequence++
	return nil
}

// After books p to run delay after the current time.
func (tl *Timeline) After(delay SimTime, p Process) error {
	return tl.Schedule(tl.Now()+delay, p)
}

// Pending returns the number of queued events.
func (tl *Timeline) Pending() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return len(tl.queue)
}

// Executed returns the number of events run so far.
func (tl *Timeline) Executed() uint64 {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.executed
}

/*
Step runs the next event, advancing time to its timestamp. It returns false
when the queue is empty. A failing process is reported with its owner and
activation.
*/
func (tl *Timeline) Step() (bool, error) {
	tl.mu.Lock()
	if len(tl.queue) == 0 {
		tl.mu.Unlock()
		return false, nil
	}

	e := heap.Pop(&tl.queue).(*event)
	tl.now = e.time
	tl.executed++
	tl.mu.Unlock()

	if err := e.process.run(); err != nil {
		return true, fmt.Errorf("%s.%s at %d: %w", e.process.Owner, e.process.Activation, e.time, err)
	}
	return true, nil
}

// Run executes events until the queue drains, a process fails, or ctx ends.
func (tl *Timeline) Run(ctx context.Context) error {
	return tl.RunUntil(ctx, -1)
}

/*
RunUntil is Run with a stop time. Events scheduled after stop stay queued and
the clock is left at stop. A negative stop means no limit.
*/
func (tl *Timeline) RunUntil(ctx context.Context, stop SimTime) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if stop >= 0 && tl.nextTime() > stop {
			tl.mu.Lock()
			if tl.now < stop {
				tl.now = stop
			}
			tl.mu.Unlock()
			return nil
		}

		more, err := tl.Step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// nextTime returns the timestamp of the next event, or the max SimTime.
func (tl *Timeline) nextTime() SimTime {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if len(tl.queue) == 0 {
		return SimTime(1<<63 - 1)
	}
	return tl.queue[0].time
}
