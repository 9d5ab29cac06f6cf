// Package freta is the high-level client: it wires configuration, the
// credential manager, the service client and blob transfers together and
// implements the multi-step workflows (upload, download, artifacts, terms
// acceptance) on top of them.
package freta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"os"

	"github.com/tonimelisma/freta/internal/api"
	"github.com/tonimelisma/freta/internal/auth"
	"github.com/tonimelisma/freta/internal/blob"
	"github.com/tonimelisma/freta/internal/config"
)

// ErrInvalidResponse is returned when the service omits a field a workflow
// depends on, such as a capability URL.
var ErrInvalidResponse = errors.New("freta: invalid response")

// Options holds the collaborators of a Client that do not come from the
// configuration. Zero values are valid.
type Options struct {
	// Prompt receives device-code sign-in instructions.
	Prompt io.Writer
	// HTTPClient talks to the service and the identity provider. Defaults to
	// a client with the configured network timeout.
	HTTPClient *http.Client
	// Store is the blob backend. Defaults to Azure Blob Storage.
	Store    blob.Store
	Progress blob.ProgressFunc
	Logger   *slog.Logger
}

// Client is the freta service client. The embedded *api.Client exposes
// every single-request operation.
type Client struct {
	*api.Client

	auth      *auth.Manager
	transfer  *blob.Transfer
	cachePath string
	logger    *slog.Logger
}

// New builds a Client from a resolved configuration.
func New(cfg *config.Resolved, opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	scope, err := cfg.ResolvedScope()
	if err != nil {
		return nil, err
	}

	bandwidth, err := cfg.BandwidthBytes()
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TimeoutDuration()}
	}

	mgr := auth.NewManager(auth.Settings{
		APIURL:       cfg.APIURL,
		ClientID:     cfg.ClientID,
		TenantID:     cfg.TenantID,
		ClientSecret: cfg.ClientSecret.Reveal(),
		Scope:        scope,
		AuthorityURL: cfg.AuthorityURL,
		CachePath:    cfg.CachePath,
		Prompt:       opts.Prompt,
		HTTPClient:   httpClient,
		Logger:       logger,
	})

	store := opts.Store
	if store == nil {
		store = blob.NewAzureStore(nil, logger)
	}

	logger.Debug("client configured", slog.Any("config", cfg.Config))

	return &Client{
		Client: api.NewClient(cfg.APIURL, httpClient, mgr, logger),
		auth:   mgr,
		transfer: blob.NewTransfer(store, blob.Options{
			Limiter:  blob.NewBandwidthLimiter(bandwidth, logger),
			Progress: opts.Progress,
			Logger:   logger,
		}),
		cachePath: cfg.CachePath,
		logger:    logger,
	}, nil
}

// Login replaces any cached credential with a freshly acquired one.
func (c *Client) Login(ctx context.Context) error {
	return c.auth.Login(ctx)
}

// Logout removes the cached credential.
func (c *Client) Logout() error {
	return auth.Logout(c.cachePath)
}

// UploadImage registers a job for the snapshot at path and uploads it. An
// empty format is inferred from the file extension.
func (c *Client) UploadImage(ctx context.Context, path string, format api.ImageFormat, tags map[string]string) (*api.Image, error) {
	if format == "" {
		var err error
		if format, err = api.FormatFromPath(path); err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("freta: %w", err)
	}

	img, err := c.CreateImage(ctx, format, tags)
	if err != nil {
		return nil, err
	}

	c.logger.Info("uploading image",
		slog.String("image_id", img.ImageID.String()),
		slog.String("path", path),
	)

	if img.ImageURL == "" {
		return nil, fmt.Errorf("%w: missing image_url for image %s", ErrInvalidResponse, img.ImageID)
	}

	if err := c.transfer.UploadFile(ctx, path, img.ImageURL); err != nil {
		return nil, err
	}

	return img, nil
}

// DownloadImage waits for analysis to complete and downloads the snapshot
// to path.
func (c *Client) DownloadImage(ctx context.Context, id api.ImageID, path string) error {
	img, err := c.MonitorImage(ctx, id)
	if err != nil {
		return err
	}

	if img.ImageURL == "" {
		return fmt.Errorf("%w: missing image_url for image %s", ErrInvalidResponse, id)
	}

	return c.transfer.Download(ctx, img.ImageURL, "", path)
}

// artifactsURL waits for analysis to complete and returns the capability
// URL of the artifacts container.
func (c *Client) artifactsURL(ctx context.Context, id api.ImageID) (string, error) {
	img, err := c.MonitorImage(ctx, id)
	if err != nil {
		return "", err
	}

	if img.ArtifactsURL == "" {
		return "", fmt.Errorf("%w: missing artifacts_url for image %s", ErrInvalidResponse, id)
	}

	return img.ArtifactsURL, nil
}

// ListArtifacts yields the names of the artifacts extracted from an image.
func (c *Client) ListArtifacts(ctx context.Context, id api.ImageID) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		container, err := c.artifactsURL(ctx, id)
		if err != nil {
			yield("", err)
			return
		}

		for name, err := range c.transfer.List(ctx, container) {
			if !yield(name, err) || err != nil {
				return
			}
		}
	}
}

// GetArtifact reads one artifact into memory.
func (c *Client) GetArtifact(ctx context.Context, id api.ImageID, name string) ([]byte, error) {
	container, err := c.artifactsURL(ctx, id)
	if err != nil {
		return nil, err
	}

	return c.transfer.Get(ctx, container, name)
}

// DownloadArtifact writes one artifact to path.
func (c *Client) DownloadArtifact(ctx context.Context, id api.ImageID, name, path string) error {
	container, err := c.artifactsURL(ctx, id)
	if err != nil {
		return err
	}

	return c.transfer.Download(ctx, container, name, path)
}

// AcceptEULA records acceptance of the current terms, keeping the other
// user settings.
func (c *Client) AcceptEULA(ctx context.Context) error {
	info, err := c.Info(ctx)
	if err != nil {
		return err
	}

	current, err := c.GetUserConfig(ctx)
	if err != nil {
		return err
	}

	accepted := info.CurrentEULA
	current.EULAAccepted = &accepted

	_, err = c.UpdateUserConfig(ctx, *current)

	return err
}

// RejectEULA withdraws acceptance of the terms.
func (c *Client) RejectEULA(ctx context.Context) error {
	current, err := c.GetUserConfig(ctx)
	if err != nil {
		return err
	}

	current.EULAAccepted = nil

	_, err = c.UpdateUserConfig(ctx, *current)

	return err
}
