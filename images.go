package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/freta/internal/api"
)

// defaultImageFields are the table and csv columns of "images list".
var defaultImageFields = []string{"image_id", "owner_id", "state", "format"}

// reportArtifact is the analysis summary printed by "upload --show-result".
const reportArtifact = "report.json"

func newImagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Manage images",
	}

	cmd.AddCommand(newImagesListCmd())
	cmd.AddCommand(newImagesGetCmd())
	cmd.AddCommand(newImagesCreateCmd())
	cmd.AddCommand(newImagesUploadCmd())
	cmd.AddCommand(newImagesUpdateCmd())
	cmd.AddCommand(newImagesDeleteCmd())
	cmd.AddCommand(newImagesReanalyzeCmd())
	cmd.AddCommand(newImagesMonitorCmd())
	cmd.AddCommand(newImagesDownloadCmd())

	return cmd
}

// parseTags turns repeated KEY=VALUE flags into a map.
func parseTags(pairs []string) (map[string]string, error) {
	tags := make(map[string]string, len(pairs))

	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid tag %q: want KEY=VALUE", p)
		}

		tags[k] = v
	}

	return tags, nil
}

func parseImageIDs(args []string) ([]api.ImageID, error) {
	ids := make([]api.ImageID, 0, len(args))

	for _, a := range args {
		id, err := api.ParseImageID(a)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func newImagesListCmd() *cobra.Command {
	var (
		imageID        string
		ownerID        string
		state          string
		includeSamples bool
		output         string
		fields         []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}

			var opts api.ListImagesOptions

			if imageID != "" {
				id, err := api.ParseImageID(imageID)
				if err != nil {
					return err
				}

				opts.ImageID = &id
			}

			if ownerID != "" {
				owner, err := api.ParseOwnerID(ownerID)
				if err != nil {
					return err
				}

				opts.OwnerID = &owner
			}

			if state != "" {
				if opts.State, err = api.ParseImageState(state); err != nil {
					return err
				}
			}

			opts.IncludeSamples = includeSamples

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			if len(fields) == 0 {
				fields = defaultImageFields
			}

			return writeListing(cmd.OutOrStdout(), format, "images", fields,
				client.ListImages(opts).All(cmd.Context()))
		},
	}

	cmd.Flags().StringVar(&imageID, "image-id", "", "only this image")
	cmd.Flags().StringVar(&ownerID, "owner-id", "", "only images of this owner")
	cmd.Flags().StringVar(&state, "state", "", "only images in this state")
	cmd.Flags().BoolVar(&includeSamples, "include-samples", false, "include sample images")
	cmd.Flags().StringVarP(&output, "output", "o", string(outputJSON), "json, table or csv")
	cmd.Flags().StringArrayVar(&fields, "fields", nil, "table and csv columns (repeatable)")

	return cmd
}

func newImagesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <image-id>",
		Short: "Show one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseImageID(args[0])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			img, err := client.GetImage(cmd.Context(), id)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), img)
		},
	}
}

func newImagesCreateCmd() *cobra.Command {
	var tagPairs []string

	cmd := &cobra.Command{
		Use:   "create <format>",
		Short: "Create an image record without uploading",
		Long: `Create an image record without uploading. The returned image_url
accepts the snapshot from any blob storage tool.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := api.ParseImageFormat(args[0])
			if err != nil {
				return err
			}

			tags, err := parseTags(tagPairs)
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			img, err := client.CreateImage(cmd.Context(), format, tags)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), img)
		},
	}

	cmd.Flags().StringArrayVar(&tagPairs, "tags", nil, "KEY=VALUE tag (repeatable)")

	return cmd
}

func newImagesUploadCmd() *cobra.Command {
	var (
		formatName string
		tagPairs   []string
		monitor    bool
		showResult bool
	)

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Create an image and upload the snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var format api.ImageFormat

			if formatName != "" {
				var err error
				if format, err = api.ParseImageFormat(formatName); err != nil {
					return err
				}
			}

			tags, err := parseTags(tagPairs)
			if err != nil {
				return err
			}

			logger := buildLogger()

			client, err := newClient(logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			img, err := client.UploadImage(ctx, args[0], format, tags)
			if err != nil {
				return err
			}

			statusf("Uploaded %s as image %s.\n", args[0], img.ImageID)

			if !monitor {
				img.ImageURL = ""

				return printJSON(cmd.OutOrStdout(), img)
			}

			done, err := client.MonitorImage(ctx, img.ImageID)
			if err != nil {
				return err
			}

			statusf("Image %s: %s\n", done.ImageID, done.State)

			if !showResult {
				return nil
			}

			report, err := client.GetArtifact(ctx, img.ImageID, reportArtifact)
			if err != nil {
				return err
			}

			return printRaw(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&formatName, "format", "", "image format (default: from the file extension)")
	cmd.Flags().StringArrayVar(&tagPairs, "tags", nil, "KEY=VALUE tag (repeatable)")
	cmd.Flags().BoolVar(&monitor, "monitor", false, "wait for the analysis to finish")
	cmd.Flags().BoolVar(&showResult, "show-result", false, "print the analysis report (with --monitor)")

	return cmd
}

func newImagesUpdateCmd() *cobra.Command {
	var (
		tagPairs  []string
		shareable bool
	)

	cmd := &cobra.Command{
		Use:   "update <image-id>",
		Short: "Change the tags or sharing of an image",
		Long: `Change the tags or sharing of an image. Given tags replace all
existing tags. Shared images are readable by any signed-in user.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseImageID(args[0])
			if err != nil {
				return err
			}

			var tags map[string]string

			if cmd.Flags().Changed("tags") {
				if tags, err = parseTags(tagPairs); err != nil {
					return err
				}
			}

			var share *bool
			if cmd.Flags().Changed("shareable") {
				share = &shareable
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			img, err := client.UpdateImage(cmd.Context(), id, tags, share)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), img)
		},
	}

	cmd.Flags().StringArrayVar(&tagPairs, "tags", nil, "KEY=VALUE tag (repeatable)")
	cmd.Flags().BoolVar(&shareable, "shareable", false, "share the image with all users")

	return cmd
}

func newImagesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <image-id>",
		Short: "Delete an image and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseImageID(args[0])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			ok, err := client.DeleteImage(cmd.Context(), id)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), ok)
		},
	}
}

func newImagesReanalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reanalyze <image-id>",
		Short: "Queue an image for analysis again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseImageID(args[0])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			ok, err := client.ReanalyzeImage(cmd.Context(), id)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), ok)
		},
	}
}

func newImagesMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor <image-id>...",
		Short: "Wait for the analysis of one or more images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseImageIDs(args)
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			return monitorAll(cmd.Context(), client, ids)
		},
	}
}

// imageMonitor is the part of the client monitorAll needs.
type imageMonitor interface {
	MonitorImage(ctx context.Context, id api.ImageID) (*api.Image, error)
}

// monitorAll waits for every image concurrently. The first failure cancels
// the rest.
func monitorAll(ctx context.Context, m imageMonitor, ids []api.ImageID) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, id := range ids {
		g.Go(func() error {
			img, err := m.MonitorImage(gctx, id)
			if err != nil {
				return fmt.Errorf("image %s: %w", id, err)
			}

			statusf("Image %s: %s\n", img.ImageID, img.State)

			return nil
		})
	}

	return g.Wait()
}

func newImagesDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <image-id> <path>",
		Short: "Download the snapshot of an analyzed image",
		Long: `Download the snapshot of an analyzed image. Only images whose
analysis completed can be downloaded.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseImageID(args[0])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			if err := client.DownloadImage(cmd.Context(), id, args[1]); err != nil {
				return err
			}

			statusf("Downloaded image %s to %s.\n", id, args[1])

			return nil
		},
	}
}
