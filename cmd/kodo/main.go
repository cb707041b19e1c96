package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kodo/internal/app"
	"kodo/internal/config"
	"kodo/internal/logging"
)

var (
	version = "0.1.0"

	workDir     string
	model       string
	localModel  string
	logLevel    string
	autoApprove bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kodo",
		Short: "AI coding assistant for your terminal",
		Long: `Kodo plans, executes, and validates coding tasks in your project.
Describe what you want changed; kodo decomposes it into subtasks, routes
each to a suitable model, applies the changes under your approval, and
verifies the result.`,
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "w", "", "project directory to operate on (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "remote model to use")
	rootCmd.PersistentFlags().StringVar(&localModel, "local-model", "", "local Ollama model for low-complexity subtasks")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&autoApprove, "yes", "y", false, "apply changes and run commands without asking")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kodo version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.Version = version

	if model != "" {
		cfg.Model.Remote = model
	}
	if localModel != "" {
		cfg.Model.Local = localModel
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if autoApprove {
		cfg.Session.AutoApprove = true
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	if err := logging.EnableFileLogging(configDir, logging.ParseLevel(cfg.Logging.Level)); err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logging.Close()

	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
	}

	ctx := cmd.Context()
	application, err := app.New(ctx, cfg, workDir)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}
