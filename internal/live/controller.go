// Package live keeps today's event set current: it serializes refreshes,
// swaps the set in one step and resyncs when an event ends or the UTC day
// rolls over.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/theakshaypant/today/internal/core"
	"github.com/theakshaypant/today/internal/timeline"

	"k8s.io/utils/clock"
)

// DefaultSchedule refreshes at midnight UTC, when the day window moves.
const DefaultSchedule = "0 0 * * *"

// Refresher produces a complete event set. *calsync.Engine satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) ([]core.Event, error)
}

// Recorder receives failed refreshes. Recover is deferred in the goroutines
// the controller starts, so it must call recover itself. *errsink.Sink
// satisfies it.
type Recorder interface {
	Record(where string, err error)
	Recover()
}

// Snapshot is what the presentation layer renders.
type Snapshot struct {
	States   []timeline.State
	LastSync time.Time
	Syncing  bool
	// Err is the last refresh failure; the previous set is still in States.
	Err error
	// NeedsAuth is set when the credential cannot be recovered without the user.
	NeedsAuth bool
}

// Controller owns the live set. Refreshes run one at a time on the goroutine
// started by Run; requests made meanwhile collapse into a single follow-up.
type Controller struct {
	refresher Refresher
	scheduler *timeline.Scheduler
	clock     clock.WithTicker
	recorder  Recorder
	logger    *slog.Logger
	schedule  string

	pending chan struct{}
	updates chan Snapshot

	mu   sync.RWMutex
	snap Snapshot
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(c clock.WithTicker) Option {
	return func(ct *Controller) { ct.clock = c }
}

func WithRecorder(r Recorder) Option {
	return func(ct *Controller) { ct.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(ct *Controller) { ct.logger = l }
}

// WithSchedule sets the cron expression, evaluated in UTC, of periodic
// resyncs. An empty expression disables them.
func WithSchedule(schedule string) Option {
	return func(ct *Controller) { ct.schedule = schedule }
}

func New(refresher Refresher, opts ...Option) (*Controller, error) {
	c := &Controller{
		refresher: refresher,
		clock:     clock.RealClock{},
		logger:    slog.Default(),
		schedule:  DefaultSchedule,
		pending:   make(chan struct{}, 1),
		updates:   make(chan Snapshot, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.schedule != "" {
		if _, err := cron.ParseStandard(c.schedule); err != nil {
			return nil, fmt.Errorf("refresh schedule %q: %w", c.schedule, err)
		}
	}
	c.scheduler = timeline.NewScheduler(c.clock,
		timeline.OnUpdate(c.onStates),
		timeline.OnEnded(c.onEnded),
	)
	return c, nil
}

// RequestRefresh asks for a resync. It never blocks and reports whether the
// request took the pending slot; false means one was already waiting.
func (c *Controller) RequestRefresh() bool {
	select {
	case c.pending <- struct{}{}:
		return true
	default:
		return false
	}
}

// Updates delivers the latest snapshot after every change. Slow readers only
// miss intermediate snapshots.
func (c *Controller) Updates() <-chan Snapshot {
	return c.updates
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Run performs an initial refresh and then serves requests, ticks and the
// cron schedule until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	go c.guard(func() { c.scheduler.Run(ctx) })
	defer c.scheduler.Stop()

	if c.schedule != "" {
		cr := cron.New(cron.WithLocation(time.UTC))
		if _, err := cr.AddFunc(c.schedule, func() {
			c.guard(func() {
				c.logger.Info("scheduled resync")
				c.RequestRefresh()
			})
		}); err != nil {
			return fmt.Errorf("refresh schedule: %w", err)
		}
		cr.Start()
		defer cr.Stop()
	}

	c.RequestRefresh()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.pending:
			c.refresh(ctx)
		}
	}
}

func (c *Controller) refresh(ctx context.Context) {
	c.update(func(s *Snapshot) { s.Syncing = true })

	start := c.clock.Now()
	events, err := c.refresher.Refresh(ctx)
	if err != nil {
		c.logger.Warn("refresh failed", "err", err, "took", c.clock.Since(start))
		if c.recorder != nil {
			c.recorder.Record("refresh", err)
		}
		c.update(func(s *Snapshot) {
			s.Syncing = false
			s.Err = err
			s.NeedsAuth = errors.Is(err, core.ErrAuthUnrecoverable)
		})
		return
	}

	c.scheduler.Replace(events)
	c.logger.Debug("live set replaced", "events", len(events), "took", c.clock.Since(start))
	c.update(func(s *Snapshot) {
		s.Syncing = false
		s.Err = nil
		s.NeedsAuth = false
		s.LastSync = c.clock.Now()
	})
}

// guard runs fn, handing a panic to the recorder.
func (c *Controller) guard(fn func()) {
	if c.recorder != nil {
		defer c.recorder.Recover()
	}
	fn()
}

func (c *Controller) onStates(states []timeline.State) {
	c.update(func(s *Snapshot) { s.States = states })
}

func (c *Controller) onEnded(st timeline.State) {
	c.logger.Info("event ended", "summary", st.Event.Summary)
	c.RequestRefresh()
}

// update applies fn and publishes the result, replacing an unread snapshot.
func (c *Controller) update(fn func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.snap)
	snap := c.snap

	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- snap:
	default:
	}
}
