package main

import (
	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to the service and cache the credential",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached credential",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	client, err := newClient(logger)
	if err != nil {
		return err
	}

	logger.Info("login started", "api_url", resolvedCfg.APIURL)

	if err := client.Login(cmd.Context()); err != nil {
		return err
	}

	logger.Info("login successful")
	statusf("Login successful.\n")

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	if resolvedCfg.CachePath == "" {
		statusf("Login cache is disabled; nothing to remove.\n")

		return nil
	}

	client, err := newClient(logger)
	if err != nil {
		return err
	}

	logger.Info("logout started", "cache", resolvedCfg.CachePath)

	if err := client.Logout(); err != nil {
		return err
	}

	statusf("Logged out.\n")

	return nil
}
