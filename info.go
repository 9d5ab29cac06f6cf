package main

import (
	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Display basic information about the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			info, err := client.Info(cmd.Context())
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

func newEulaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eula",
		Short: "Read, accept or reject the service terms",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			text, err := client.EULA(cmd.Context())
			if err != nil {
				return err
			}

			return printRaw(cmd.OutOrStdout(), text)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "accept",
		Short: "Accept the current terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			if err := client.AcceptEULA(cmd.Context()); err != nil {
				return err
			}

			statusf("Terms accepted.\n")

			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reject",
		Short: "Withdraw acceptance of the terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			if err := client.RejectEULA(cmd.Context()); err != nil {
				return err
			}

			statusf("Terms rejected.\n")

			return nil
		},
	})

	return cmd
}
