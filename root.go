package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/freta/internal/config"
	"github.com/tonimelisma/freta/internal/freta"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagAPIURL     string
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
var resolvedCfg *config.Resolved

// skipConfigCommands lists commands that read or write the config file
// themselves, so a broken file can still be repaired.
var skipConfigCommands = map[string]bool{
	"freta config update": true,
	"freta config reset":  true,
}

// newRootCmd builds the root command with all subcommands registered.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "freta",
		Short:   "Project Freta client",
		Long:    "Submit memory snapshots for analysis and retrieve the results.",
		Version: version,
		// Errors are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "service URL (overrides api_url)")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newEulaCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newImagesCmd())
	cmd.AddCommand(newArtifactsCmd())
	cmd.AddCommand(newWebhooksCmd())

	return cmd
}

// loadConfig resolves defaults, file, environment and flags into resolvedCfg.
func loadConfig() error {
	resolved, err := config.Resolve(config.ReadEnvOverrides(), config.CLIOverrides{
		ConfigPath: flagConfigPath,
		APIURL:     flagAPIURL,
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// configPath is the file the config subcommands edit: the --config flag,
// then FRETA_CONFIG, then the platform default.
func configPath() string {
	if flagConfigPath != "" {
		return flagConfigPath
	}

	if p := os.Getenv(config.EnvConfig); p != "" {
		return p
	}

	return config.DefaultConfigPath()
}

// buildLogger creates a logger from the config level, overridden by
// --verbose and --quiet.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newClient builds a service client from the resolved configuration.
// Sign-in prompts always go to stderr, even with --quiet.
func newClient(logger *slog.Logger) (*freta.Client, error) {
	if resolvedCfg == nil {
		return nil, fmt.Errorf("no configuration loaded")
	}

	return freta.New(resolvedCfg, freta.Options{
		Prompt:   os.Stderr,
		Progress: newProgress(os.Stderr, flagQuiet),
		Logger:   logger,
	})
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
