package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/theakshaypant/today/internal/core"
	"github.com/theakshaypant/today/internal/timeline"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the rest of today's events",
	Long: `Fetch today's remaining events from every calendar you own and print
them with their countdowns. Events you declined are left out.`,
	RunE: guarded(runList),
}

func init() {
	rootCmd.AddCommand(listCmd)
}

// fetchToday runs one full refresh and returns the live states.
func fetchToday(cmd *cobra.Command) ([]timeline.State, time.Time, error) {
	a := env.authenticator(env.consent(os.Stderr))
	events, err := env.engine(a).Refresh(cmd.Context())
	if err != nil {
		env.sink.Record(cmd.Name(), err)
		return nil, time.Time{}, fmt.Errorf("failed to fetch events: %w", err)
	}

	now := time.Now()
	states := make([]timeline.State, 0, len(events))
	for _, e := range events {
		st := timeline.New(e, now).State()
		if st.Phase != timeline.Ended {
			states = append(states, st)
		}
	}
	return states, now, nil
}

func runList(cmd *cobra.Command, _ []string) error {
	states, now, err := fetchToday(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("📅 Rest of %s:\n", now.Format("Monday, Jan 2"))
	fmt.Println("─────────────────────────────────────────────────")

	if len(states) == 0 {
		fmt.Println("Nothing left today.")
		return nil
	}

	for _, st := range states {
		printState(st)
	}

	fmt.Println("─────────────────────────────────────────────────")
	fmt.Printf("Total: %d events\n", len(states))
	return nil
}

func printState(st timeline.State) {
	e := st.Event
	marker := "  "
	if st.Phase == timeline.InProgress {
		marker = "🟢"
	}
	fmt.Printf("%s %s  %s  [%s]\n", marker, timeline.FormatSpan(e.Start.Local(), e.End.Local()), e.Summary, st.Label())
	if uri := e.Conference.VideoURI(); uri != "" {
		fmt.Printf("     📹 %s\n", uri)
	}
}

// printDetail is the long form used by next.
func printDetail(st timeline.State) {
	e := st.Event
	fmt.Printf("  %s\n\n", e.Summary)
	fmt.Printf("  🕐 %s\n", timeline.FormatSpan(e.Start.Local(), e.End.Local()))
	if e.Location != "" {
		fmt.Printf("  📍 %s\n", e.Location)
	}
	if o := e.Organizer; o != nil {
		name := o.DisplayName
		if name == "" {
			name = o.Email
		}
		fmt.Printf("  👤 %s\n", name)
	}
	if c := e.Conference; c != nil {
		if uri := c.VideoURI(); uri != "" {
			fmt.Printf("  📹 %s: %s\n", solutionName(c), uri)
		}
	}
	if e.HTMLLink != "" {
		fmt.Printf("  🔗 %s\n", e.HTMLLink)
	}
	if d := strings.TrimSpace(e.Description); d != "" && !strings.Contains(d, "<") {
		fmt.Printf("\n  %s\n", strings.ReplaceAll(d, "\n", "\n  "))
	}
}

func solutionName(c *core.Conference) string {
	if c.SolutionName == "" {
		return "Join"
	}
	return c.SolutionName
}
