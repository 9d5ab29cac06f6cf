package blob

import (
	"context"
	"errors"
	"io"
	"iter"
)

// ErrStorage wraps every failure reported by the storage backend.
var ErrStorage = errors.New("blob: storage")

// Store is the storage backend a Transfer talks to. Block ids are passed
// in their plain form; encoding them for the wire is the store's concern.
type Store interface {
	// StageBlock uploads one uncommitted block of the target blob.
	StageBlock(ctx context.Context, target CapabilityURL, id string, data []byte) error
	// CommitBlockList makes the listed blocks, in order, the blob content.
	CommitBlockList(ctx context.Context, target CapabilityURL, ids []string) error
	// Download opens the blob for reading. size is -1 when unknown.
	Download(ctx context.Context, target CapabilityURL) (body io.ReadCloser, size int64, err error)
	// ListBlobs yields the name of every blob in the target's container.
	ListBlobs(ctx context.Context, target CapabilityURL) iter.Seq2[string, error]
}
