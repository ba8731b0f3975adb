package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theakshaypant/today/internal/errsink"
	"github.com/theakshaypant/today/internal/live"
)

// logFileName receives logs while the TUI owns the terminal.
const logFileName = "today.log"

var (
	cfgFile string
	env     *environment
)

var rootCmd = &cobra.Command{
	Use:   "today",
	Short: "What is happening now and next on your calendar",
	Long: `today shows the rest of the current day from your Google calendars.

It keeps a live countdown for every remaining event, marks the ones in
progress and resyncs by itself whenever an event ends.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	RunE:               guarded(runList),
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is <app-data-dir>/config.yaml)")
	pf.String("app-data-dir", "", "directory holding credentials, token and logs (default is $XDG_CONFIG_HOME/today)")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.Bool("no-browser", false, "print the sign-in URL instead of opening a browser")

	viper.BindPFlag("app_data_dir", pf.Lookup("app-data-dir"))
	viper.BindPFlag("log_level", pf.Lookup("log-level"))
	viper.BindPFlag("no_browser", pf.Lookup("no-browser"))
}

func setDefaults() {
	viper.SetDefault("credentials_file", "credentials.json")
	viper.SetDefault("token_file", "token.json")
	viper.SetDefault("callback_port", 8085)
	viper.SetDefault("max_pages", 50)
	viper.SetDefault("call_timeout", 30*time.Second)
	viper.SetDefault("icon_timeout", 10*time.Second)
	viper.SetDefault("refresh_schedule", live.DefaultSchedule)
	viper.SetDefault("log_level", "info")
}

func initConfig() {
	// Environment variables
	viper.SetEnvPrefix("TODAY")
	viper.AutomaticEnv()
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(appDataDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	// A missing config file is fine; defaults and env apply.
	_ = viper.ReadInConfig()
}

// appDataDir resolves app_data_dir, defaulting to the user config directory.
func appDataDir() string {
	if dir := viper.GetString("app_data_dir"); dir != "" {
		return expandPath(dir)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "today")
}

// dataPath resolves a configured file name against the app-data directory.
func dataPath(key string) string {
	p := expandPath(viper.GetString(key))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(appDataDir(), p)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func setup(cmd *cobra.Command, _ []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log_level"))); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	dir := appDataDir()
	var (
		out    io.Writer = os.Stderr
		closer io.Closer
	)
	if cmd.Name() == "ui" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create app data dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	env = &environment{
		dir:     dir,
		logger:  logger,
		logOut:  out,
		logFile: closer,
		sink:    errsink.New(dir, errsink.WithLogger(logger)),
	}
	logger.Debug("starting", "command", cmd.Name(), "app_data_dir", dir, "config", viper.ConfigFileUsed())
	return nil
}

func teardown(*cobra.Command, []string) error {
	if env != nil && env.logFile != nil {
		return env.logFile.Close()
	}
	return nil
}

// guarded routes a panic in run to the crash log.
func guarded(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer env.sink.Recover()
		return run(cmd, args)
	}
}
