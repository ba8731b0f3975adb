// Package timeline derives per-event countdown state and ticks every live
// event from a single scheduler.
package timeline

import (
	"time"

	"github.com/theakshaypant/today/internal/core"
)

// Phase is the position of an event relative to now. Phases only move
// forward.
type Phase int

const (
	Upcoming Phase = iota
	InProgress
	Ended
)

func (p Phase) String() string {
	switch p {
	case Upcoming:
		return "upcoming"
	case InProgress:
		return "in progress"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// State is a snapshot of one timeline after a tick.
type State struct {
	Event     core.Event
	Phase     Phase
	Remaining time.Duration
	// Duration and Progress are set once the event has been entered.
	Duration    time.Duration
	Progress    float64
	HasProgress bool
}

// Label renders the countdown as shown to the user.
func (s State) Label() string {
	switch s.Phase {
	case Upcoming:
		return "in " + FormatRemaining(s.Remaining)
	case InProgress:
		return FormatRemaining(s.Remaining) + " left"
	default:
		return "ended"
	}
}

// Timeline is the state machine of a single event. It is not safe for
// concurrent use; the Scheduler serializes access.
type Timeline struct {
	event core.Event
	state State
}

// New creates a timeline positioned at now. An event that has already ended
// starts in Ended and never reports the transition.
func New(e core.Event, now time.Time) *Timeline {
	t := &Timeline{event: e, state: State{Event: e, Phase: Upcoming}}
	t.Tick(now)
	return t
}

// Event returns the event this timeline tracks.
func (t *Timeline) Event() core.Event { return t.event }

// State returns the state computed by the last tick.
func (t *Timeline) State() State { return t.state }

// Tick advances the timeline to now. The bool is true exactly once: on the
// tick that moves the timeline into Ended.
func (t *Timeline) Tick(now time.Time) (State, bool) {
	if t.state.Phase == Ended {
		return t.state, false
	}

	// Compare in the event's own zone.
	now = now.In(t.event.Start.Location())
	start, end := t.event.Start, t.event.End

	phase := Upcoming
	switch {
	case !now.Before(end):
		phase = Ended
	case !now.Before(start):
		phase = InProgress
	}
	if phase < t.state.Phase {
		phase = t.state.Phase
	}

	s := t.state
	s.Phase = phase
	switch phase {
	case Upcoming:
		s.Remaining = start.Sub(now)
	case InProgress:
		if !s.HasProgress {
			s.Duration = end.Sub(start)
			s.HasProgress = true
		}
		s.Remaining = max(end.Sub(now), 0)
		s.Progress = ratio(now.Sub(start), s.Duration)
	case Ended:
		s.Remaining = 0
		if s.HasProgress {
			s.Progress = 1
		}
	}
	t.state = s
	return s, phase == Ended
}

// Deadline is the instant of the next phase transition, or the zero time
// once the timeline has ended.
func (t *Timeline) Deadline() time.Time {
	switch t.state.Phase {
	case Upcoming:
		return t.event.Start
	case InProgress:
		return t.event.End
	default:
		return time.Time{}
	}
}

func ratio(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	r := float64(elapsed) / float64(total)
	return min(max(r, 0), 1)
}
