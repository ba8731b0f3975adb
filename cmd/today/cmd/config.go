package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// fileSettings are the keys worth writing to a fresh config.yaml. Flags
// that only make sense per run are left out.
var fileSettings = []string{
	"credentials_file",
	"token_file",
	"callback_port",
	"max_pages",
	"call_timeout",
	"icon_timeout",
	"refresh_schedule",
	"log_level",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the config file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings := viper.AllSettings()
		settings["app_data_dir"] = env.dir

		b, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Printf("# %s\n", used)
		} else {
			fmt.Println("# no config file, defaults and environment only")
		}
		fmt.Print(string(b))
		return nil
	},
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config.yaml with the current settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := filepath.Join(env.dir, "config.yaml")
		_, err := os.Stat(path)
		switch {
		case err == nil && !forceInit:
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return err
		}

		settings := make(map[string]any, len(fileSettings))
		for _, key := range fileSettings {
			settings[key] = viper.Get(key)
		}
		b, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}

		if err := os.MkdirAll(env.dir, 0o700); err != nil {
			return fmt.Errorf("create app data dir: %w", err)
		}
		if err := os.WriteFile(path, b, 0o600); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("✓ Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
