package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var calendarsCmd = &cobra.Command{
	Use:     "calendars",
	Aliases: []string{"cal", "cals"},
	Short:   "List the calendars that are synced",
	Long:    `List the calendars you own. Only these are read when building today's view.`,
	RunE:    guarded(runCalendars),
}

func init() {
	rootCmd.AddCommand(calendarsCmd)
}

func runCalendars(cmd *cobra.Command, _ []string) error {
	a := env.authenticator(env.consent(os.Stderr))
	calendars, err := env.engine(a).Calendars(cmd.Context())
	if err != nil {
		env.sink.Record(cmd.Name(), err)
		return fmt.Errorf("failed to list calendars: %w", err)
	}

	fmt.Println("📅 Synced calendars:")
	fmt.Println("─────────────────────────────────────────────────")

	for _, c := range calendars {
		fmt.Printf("\n  • %s\n", c.Summary)
		fmt.Printf("    ID: %s\n", c.ID)
	}

	fmt.Println()
	fmt.Printf("Total: %d calendars\n", len(calendars))
	return nil
}
