package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/freta/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigUpdateCmd())
	cmd.AddCommand(newConfigResetCmd())

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if resolvedCfg == nil {
				return fmt.Errorf("no configuration loaded")
			}

			return config.RenderEffective(resolvedCfg, cmd.OutOrStdout())
		},
	}
}

func newConfigUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change values in the config file",
		Long: `Change values in the config file. Only the given flags are written.
An empty --client-secret or --scope removes the stored value.`,
		Args: cobra.NoArgs,
		RunE: runConfigUpdate,
	}

	cmd.Flags().String("api-url", "", "service URL")
	cmd.Flags().String("client-id", "", "application (client) id")
	cmd.Flags().String("tenant-id", "", "directory (tenant) id")
	cmd.Flags().String("client-secret", "", "service principal secret")
	cmd.Flags().String("scope", "", "scope requested from the identity provider")
	cmd.Flags().String("authority-url", "", "identity provider URL")
	cmd.Flags().Bool("no-login-cache", false, "do not load or save cached credentials")
	cmd.Flags().String("log-level", "", "debug, info, warn or error")
	cmd.Flags().String("bandwidth-limit", "", `transfer limit such as "10MB/s" ("0" for none)`)
	cmd.Flags().String("timeout", "", "network timeout such as 5m")

	return cmd
}

func runConfigUpdate(cmd *cobra.Command, _ []string) error {
	path := configPath()

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return err
	}

	if err := applyConfigFlags(cmd, cfg); err != nil {
		return err
	}

	if err := config.Save(path, cfg); err != nil {
		return err
	}

	statusf("Config updated: %s\n", path)

	return config.RenderEffective(&config.Resolved{
		Config:    cfg,
		Path:      path,
		CachePath: cachePathFor(cfg, path),
	}, cmd.OutOrStdout())
}

// applyConfigFlags copies every flag the user set onto cfg.
func applyConfigFlags(cmd *cobra.Command, cfg *config.Config) error {
	strs := map[string]*string{
		"api-url":         &cfg.APIURL,
		"client-id":       &cfg.ClientID,
		"tenant-id":       &cfg.TenantID,
		"scope":           &cfg.Scope,
		"authority-url":   &cfg.AuthorityURL,
		"log-level":       &cfg.Logging.LogLevel,
		"bandwidth-limit": &cfg.Transfers.BandwidthLimit,
		"timeout":         &cfg.Network.Timeout,
	}

	for name, dst := range strs {
		if !cmd.Flags().Changed(name) {
			continue
		}

		v, err := cmd.Flags().GetString(name)
		if err != nil {
			return err
		}

		*dst = v
	}

	if cmd.Flags().Changed("client-secret") {
		v, err := cmd.Flags().GetString("client-secret")
		if err != nil {
			return err
		}

		cfg.ClientSecret = config.Secret(v)
	}

	if cmd.Flags().Changed("no-login-cache") {
		v, err := cmd.Flags().GetBool("no-login-cache")
		if err != nil {
			return err
		}

		cfg.NoLoginCache = v
	}

	return nil
}

func newConfigResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the config file to defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath()
			cfg := config.DefaultConfig()

			if err := config.Save(path, cfg); err != nil {
				return err
			}

			statusf("Config reset: %s\n", path)

			return config.RenderEffective(&config.Resolved{
				Config:    cfg,
				Path:      path,
				CachePath: cachePathFor(cfg, path),
			}, cmd.OutOrStdout())
		},
	}
}

func cachePathFor(cfg *config.Config, path string) string {
	if cfg.NoLoginCache {
		return ""
	}

	return config.LoginCachePath(path)
}
