package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/theakshaypant/today/internal/core"
	"github.com/theakshaypant/today/internal/timeline"
)

func state(id string, start time.Time, phase timeline.Phase) timeline.State {
	return timeline.State{
		Event: core.Event{ID: id, Start: start, End: start.Add(time.Hour)},
		Phase: phase,
	}
}

func ids(states []timeline.State) []string {
	out := make([]string, 0, len(states))
	for _, st := range states {
		out = append(out, st.Event.ID)
	}
	return out
}

func TestPickNext(t *testing.T) {
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		states []timeline.State
		want   []string
	}{
		{
			name: "in progress wins",
			states: []timeline.State{
				state("a", base.Add(time.Hour), timeline.Upcoming),
				state("b", base, timeline.InProgress),
			},
			want: []string{"b"},
		},
		{
			name: "earliest upcoming across calendars",
			states: []timeline.State{
				state("late", base.Add(2*time.Hour), timeline.Upcoming),
				state("early", base.Add(time.Hour), timeline.Upcoming),
			},
			want: []string{"early"},
		},
		{
			name: "conflicts kept together",
			states: []timeline.State{
				state("x", base.Add(time.Hour), timeline.Upcoming),
				state("later", base.Add(3*time.Hour), timeline.Upcoming),
				state("y", base.Add(time.Hour), timeline.Upcoming),
			},
			want: []string{"x", "y"},
		},
		{
			name:   "ended ignored",
			states: []timeline.State{state("gone", base, timeline.Ended)},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(pickNext(tt.states)))
		})
	}
}
