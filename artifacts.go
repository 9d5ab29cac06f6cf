package main

import (
	"github.com/spf13/cobra"

	"github.com/tonimelisma/freta/internal/api"
)

func newArtifactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Retrieve analysis artifacts",
		Long: `Retrieve analysis artifacts. Both subcommands wait for the
analysis of the image to complete first.`,
	}

	cmd.AddCommand(newArtifactsListCmd())
	cmd.AddCommand(newArtifactsGetCmd())

	return cmd
}

func newArtifactsListCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list <image-id>",
		Short: "List the artifacts of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}

			id, err := api.ParseImageID(args[0])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			return writeListing(cmd.OutOrStdout(), format, "", nil,
				client.ListArtifacts(cmd.Context(), id))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(outputJSON), "json, table or csv")

	return cmd
}

func newArtifactsGetCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "get <image-id> <name>",
		Short: "Print an artifact, or save it with --output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseImageID(args[0])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := client.DownloadArtifact(cmd.Context(), id, args[1], outPath); err != nil {
					return err
				}

				statusf("Saved %s to %s.\n", args[1], outPath)

				return nil
			}

			data, err := client.GetArtifact(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(data)

			return err
		},
	}

	cmd.Flags().StringVar(&outPath, "output", "", "save to this file instead of printing")

	return cmd
}
