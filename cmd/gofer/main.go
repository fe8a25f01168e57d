package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danib549/gofer/internal/app"
	"github.com/danib549/gofer/internal/config"
	"github.com/danib549/gofer/internal/logging"
	"github.com/danib549/gofer/internal/setup"
)

var (
	version = "0.1.0"

	flagModel    string
	flagAuto     bool
	flagPlan     bool
	flagSetup    bool
	flagLogLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gofer",
		Short: "Terminal coding assistant",
		Long: `Gofer is an interactive coding assistant for the terminal.
It reads, writes, and edits files, runs commands, and searches your
project through a tool-calling model, with exploration-before-
modification discipline and per-action permission prompts.`,
		RunE:          runApp,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model to use (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagAuto, "auto", false, "skip permission prompts")
	rootCmd.PersistentFlags().BoolVar(&flagPlan, "plan", false, "start in plan mode (read-only tools)")
	rootCmd.PersistentFlags().BoolVar(&flagSetup, "setup", false, "run the setup wizard")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gofer version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runApp(cmd *cobra.Command, args []string) error {
	if flagSetup {
		if err := setup.RunWizard(); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Version = version

	if flagModel != "" {
		cfg.Model.Name = flagModel
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}

	if err := cfg.Validate(); err != nil {
		if !errors.Is(err, config.ErrMissingAuth) {
			return err
		}
		// No credentials yet; walk through setup once and retry.
		if err := setup.RunWizard(); err != nil {
			return err
		}
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.Version = version
		if flagModel != "" {
			cfg.Model.Name = flagModel
		}
		if flagLogLevel != "" {
			cfg.Logging.Level = flagLogLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	configureLogging(cfg)
	defer logging.Close()

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg, workDir)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	if flagAuto {
		application.SetAutoMode()
	}
	if flagPlan {
		application.SetPlanMode()
	}

	return application.Run()
}

func configureLogging(cfg *config.Config) {
	if !cfg.Logging.Enabled {
		logging.DisableLogging()
		return
	}
	level := logging.ParseLevel(cfg.Logging.Level)
	dir := cfg.Logging.Dir
	if dir == "" {
		dir = filepath.Dir(config.GetConfigPath())
	}
	if err := logging.EnableFileLogging(dir, level); err != nil {
		logging.Configure(level, os.Stderr)
	}
}
