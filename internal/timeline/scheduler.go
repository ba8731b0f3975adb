package timeline

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/theakshaypant/today/internal/core"

	"k8s.io/utils/clock"
)

// TickInterval is how often the scheduler refreshes countdowns.
const TickInterval = time.Second

// Scheduler ticks every live timeline from one clock ticker. Phase
// transitions are found through a min-heap of deadlines so that ended events
// are reported in the order they ended.
type Scheduler struct {
	clock    clock.WithTicker
	onUpdate func([]State)
	onEnded  func(State)

	// emitMu keeps callbacks in the order their states were computed.
	emitMu    sync.Mutex
	mu        sync.Mutex
	timelines []*Timeline
	queue     deadlineQueue

	stopOnce sync.Once
	stop     chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// OnUpdate registers a callback receiving the states of all live timelines,
// in set order, after every tick and after every Replace.
func OnUpdate(fn func([]State)) SchedulerOption {
	return func(s *Scheduler) { s.onUpdate = fn }
}

// OnEnded registers a callback invoked once per timeline that reaches Ended.
func OnEnded(fn func(State)) SchedulerOption {
	return func(s *Scheduler) { s.onEnded = fn }
}

func NewScheduler(clk clock.WithTicker, opts ...SchedulerOption) *Scheduler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	s := &Scheduler{clock: clk, stop: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Replace swaps the whole set for timelines of events. Events that have
// already ended are left out. Callbacks must not call Replace.
func (s *Scheduler) Replace(events []core.Event) []State {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	now := s.clock.Now()

	timelines := make([]*Timeline, 0, len(events))
	queue := make(deadlineQueue, 0, len(events))
	for _, e := range events {
		tl := New(e, now)
		if tl.State().Phase == Ended {
			continue
		}
		timelines = append(timelines, tl)
		queue = append(queue, &entry{tl: tl, deadline: tl.Deadline(), index: len(queue)})
	}
	heap.Init(&queue)

	s.mu.Lock()
	s.timelines = timelines
	s.queue = queue
	states := s.statesLocked()
	s.mu.Unlock()

	if s.onUpdate != nil {
		s.onUpdate(states)
	}
	return states
}

// States returns the current state of every live timeline.
func (s *Scheduler) States() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statesLocked()
}

// NextDeadline is the earliest upcoming phase transition, or false when the
// set is empty.
func (s *Scheduler) NextDeadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].deadline, true
}

// Run ticks until ctx is done or Stop is called.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case now := <-ticker.C():
			s.tick(now)
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Scheduler) tick(now time.Time) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	var ended []State
	for len(s.queue) > 0 && !s.queue[0].deadline.After(now) {
		e := s.queue[0]
		state, done := e.tl.Tick(now)
		if done {
			heap.Pop(&s.queue)
			ended = append(ended, state)
			continue
		}
		e.deadline = e.tl.Deadline()
		heap.Fix(&s.queue, e.index)
	}
	if len(ended) > 0 {
		live := s.timelines[:0]
		for _, tl := range s.timelines {
			if tl.State().Phase != Ended {
				live = append(live, tl)
			}
		}
		s.timelines = live
	}
	for _, tl := range s.timelines {
		tl.Tick(now)
	}
	states := s.statesLocked()
	s.mu.Unlock()

	if s.onEnded != nil {
		for _, st := range ended {
			s.onEnded(st)
		}
	}
	if s.onUpdate != nil {
		s.onUpdate(states)
	}
}

func (s *Scheduler) statesLocked() []State {
	states := make([]State, 0, len(s.timelines))
	for _, tl := range s.timelines {
		states = append(states, tl.State())
	}
	return states
}

type entry struct {
	tl       *Timeline
	deadline time.Time
	index    int
}

// deadlineQueue implements heap.Interface ordered by deadline.
type deadlineQueue []*entry

func (q deadlineQueue) Len() int { return len(q) }

func (q deadlineQueue) Less(i, j int) bool { return q[i].deadline.Before(q[j].deadline) }

func (q deadlineQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *deadlineQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *deadlineQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
