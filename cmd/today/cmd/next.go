package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/theakshaypant/today/internal/timeline"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the current or next event",
	Long: `Show the event in progress, or the next one to start, with a countdown.
Events starting at the same time are shown together.`,
	RunE: guarded(runNext),
}

func init() {
	rootCmd.AddCommand(nextCmd)
}

func runNext(cmd *cobra.Command, _ []string) error {
	states, _, err := fetchToday(cmd)
	if err != nil {
		return err
	}

	picked := pickNext(states)
	if len(picked) == 0 {
		fmt.Println("Nothing left today. 🎉")
		return nil
	}

	fmt.Println("─────────────────────────────────────────────────")
	if len(picked) > 1 {
		fmt.Printf("  ⚠️  CONFLICT: %d EVENTS AT THE SAME TIME\n", len(picked))
	} else {
		fmt.Println("  NEXT EVENT")
	}
	fmt.Println("─────────────────────────────────────────────────")

	first := picked[0]
	fmt.Println()
	if first.Phase == timeline.InProgress {
		fmt.Printf("  🟢 IN PROGRESS - %s\n", first.Label())
	} else {
		fmt.Printf("  ⏳ STARTS %s\n", first.Label())
	}

	for i, st := range picked {
		if len(picked) > 1 {
			fmt.Printf("\n  EVENT %d of %d\n", i+1, len(picked))
			fmt.Println("  ─────────────────────────────────────────────")
		}
		fmt.Println()
		printDetail(st)
	}
	fmt.Println()
	fmt.Println("─────────────────────────────────────────────────")
	return nil
}

// pickNext returns the events in progress, or else the upcoming events that
// share the earliest start. Calendars are not merged in start order, so the
// whole set is scanned.
func pickNext(states []timeline.State) []timeline.State {
	var live, next []timeline.State
	for _, st := range states {
		switch st.Phase {
		case timeline.InProgress:
			live = append(live, st)
		case timeline.Upcoming:
			switch {
			case len(next) == 0 || st.Event.Start.Before(next[0].Event.Start):
				next = []timeline.State{st}
			case st.Event.Start.Equal(next[0].Event.Start):
				next = append(next, st)
			}
		}
	}
	if len(live) > 0 {
		return live
	}
	return next
}
