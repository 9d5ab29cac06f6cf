package blob

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	sdkblob "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// AzureStore is the Store backed by Azure Blob Storage. Capability URLs
// carry their own SAS, so every client is created without a credential.
type AzureStore struct {
	options azcore.ClientOptions
	logger  *slog.Logger
}

// NewAzureStore returns an AzureStore sending requests through httpClient,
// or the SDK default transport when httpClient is nil.
func NewAzureStore(httpClient *http.Client, logger *slog.Logger) *AzureStore {
	if logger == nil {
		logger = slog.Default()
	}

	s := &AzureStore{logger: logger}
	if httpClient != nil {
		s.options.Transport = httpClient
	}

	return s
}

// encodeBlockID converts a plain block id to the base64 form the service
// requires. All ids of a blob must have the same length.
func encodeBlockID(id string) string {
	return base64.StdEncoding.EncodeToString([]byte(id))
}

func (s *AzureStore) blockClient(target CapabilityURL) (*blockblob.Client, error) {
	c, err := blockblob.NewClientWithNoCredential(target.URL(), &blockblob.ClientOptions{ClientOptions: s.options})
	if err != nil {
		return nil, fmt.Errorf("%w: creating block blob client for %s: %w", ErrStorage, target, err)
	}

	return c, nil
}

// StageBlock implements Store.
func (s *AzureStore) StageBlock(ctx context.Context, target CapabilityURL, id string, data []byte) error {
	c, err := s.blockClient(target)
	if err != nil {
		return err
	}

	if _, err := c.StageBlock(ctx, encodeBlockID(id), streaming.NopCloser(bytes.NewReader(data)), nil); err != nil {
		return s.storageError("staging block "+id, target, err)
	}

	return nil
}

// CommitBlockList implements Store.
func (s *AzureStore) CommitBlockList(ctx context.Context, target CapabilityURL, ids []string) error {
	c, err := s.blockClient(target)
	if err != nil {
		return err
	}

	encoded := make([]string, len(ids))
	for i, id := range ids {
		encoded[i] = encodeBlockID(id)
	}

	if _, err := c.CommitBlockList(ctx, encoded, nil); err != nil {
		return s.storageError("committing block list", target, err)
	}

	return nil
}

// Download implements Store.
func (s *AzureStore) Download(ctx context.Context, target CapabilityURL) (io.ReadCloser, int64, error) {
	c, err := sdkblob.NewClientWithNoCredential(target.URL(), &sdkblob.ClientOptions{ClientOptions: s.options})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: creating blob client for %s: %w", ErrStorage, target, err)
	}

	resp, err := c.DownloadStream(ctx, nil)
	if err != nil {
		return nil, 0, s.storageError("downloading", target, err)
	}

	size := int64(-1)
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}

	return resp.Body, size, nil
}

// ListBlobs implements Store.
func (s *AzureStore) ListBlobs(ctx context.Context, target CapabilityURL) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		c, err := container.NewClientWithNoCredential(target.ContainerURL(), &container.ClientOptions{ClientOptions: s.options})
		if err != nil {
			yield("", fmt.Errorf("%w: creating container client for %s: %w", ErrStorage, target, err))

			return
		}

		pager := c.NewListBlobsFlatPager(nil)

		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				yield("", s.storageError("listing blobs", target, err))

				return
			}

			for _, item := range page.Segment.BlobItems {
				if item == nil || item.Name == nil {
					continue
				}

				if !yield(*item.Name, nil) {
					return
				}
			}
		}
	}
}

// storageError wraps err in ErrStorage, logging the service error code
// when the failure came from a storage response.
func (s *AzureStore) storageError(op string, target CapabilityURL, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		s.logger.Debug("storage request failed",
			slog.String("op", op),
			slog.String("blob", target.String()),
			slog.Int("status", respErr.StatusCode),
			slog.String("code", respErr.ErrorCode),
		)

		return fmt.Errorf("%w: %s %s: HTTP %d %s", ErrStorage, op, target, respErr.StatusCode, respErr.ErrorCode)
	}

	return fmt.Errorf("%w: %s %s: %w", ErrStorage, op, target, err)
}
