package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theakshaypant/today/internal/icon"
	"github.com/theakshaypant/today/internal/live"
	"github.com/theakshaypant/today/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the live view",
	Long: `Launch the live terminal view of today's events.

Countdowns tick every second. The view resyncs whenever an event ends, on
the refresh schedule, and when you press r. Logs go to today.log in the app
data directory while the view is open.`,
	RunE: guarded(runUI),
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, _ []string) error {
	// Sign in before the alt screen takes over the terminal.
	consent := env.consent(os.Stdout)
	a := env.authenticator(consent)
	if _, err := a.EnsureSession(cmd.Context()); err != nil {
		env.sink.Record("ui sign-in", err)
		return fmt.Errorf("sign-in failed: %w", err)
	}
	// Later prompts, after a logout, land in the log file. Nothing else
	// reads Out until the controller starts below.
	consent.Out = env.logOut

	ctrl, err := live.New(env.engine(a),
		live.WithSchedule(viper.GetString("refresh_schedule")),
		live.WithRecorder(env.sink),
		live.WithLogger(env.logger),
	)
	if err != nil {
		return err
	}
	icons := icon.New(
		icon.WithTimeout(viper.GetDuration("icon_timeout")),
		icon.WithRecorder(env.sink),
		icon.WithLogger(env.logger),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		defer env.sink.Recover()
		done <- ctrl.Run(ctx)
	}()

	m := tui.NewModel(ctrl, tui.Options{
		Icons:  icons,
		Logout: a.Logout,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running live view: %w", err)
	}

	cancel()
	if err := <-done; err != nil {
		env.sink.Record("live controller", err)
		return err
	}
	return nil
}
