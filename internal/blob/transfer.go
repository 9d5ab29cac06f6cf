package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
)

// ProgressFunc receives the bytes moved so far and the total, which is -1
// when the size is unknown. It runs on the transferring goroutine.
type ProgressFunc func(done, total int64)

// Options configures a Transfer. Zero values are valid.
type Options struct {
	Limiter  *BandwidthLimiter
	Progress ProgressFunc
	Logger   *slog.Logger
}

// Transfer uploads and downloads blobs addressed by capability URLs. It is
// independent of the service client and safe for concurrent use when its
// Store is.
type Transfer struct {
	store    Store
	limiter  *BandwidthLimiter
	progress ProgressFunc
	logger   *slog.Logger
}

// NewTransfer returns a Transfer over store.
func NewTransfer(store Store, opts Options) *Transfer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	progress := opts.Progress
	if progress == nil {
		progress = func(int64, int64) {}
	}

	return &Transfer{store: store, limiter: opts.Limiter, progress: progress, logger: logger}
}

// Upload writes size bytes from r to the blob at dest as ordered blocks,
// then commits them in sequence order. Any failure returns before the
// commit, leaving the blob's committed content untouched.
func (t *Transfer) Upload(ctx context.Context, r io.Reader, size int64, dest string) error {
	target, err := ParseCapabilityURL(dest)
	if err != nil {
		return err
	}

	blockSize, err := BlockSize(size)
	if err != nil {
		return err
	}

	t.logger.Info("uploading blob",
		slog.String("blob", target.String()),
		slog.Int64("size", size),
		slog.Int("block_size", blockSize),
	)

	r = t.limiter.WrapReader(ctx, r)
	buf := make([]byte, blockSize)

	var (
		ids  []string
		done int64
	)

	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			id := blockID(len(ids))
			if err := t.store.StageBlock(ctx, target, id, buf[:n]); err != nil {
				return err
			}

			ids = append(ids, id)
			done += int64(n)
			t.progress(done, size)
		}

		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}

		if readErr != nil {
			return fmt.Errorf("blob: reading upload source: %w", readErr)
		}
	}

	if ids == nil {
		ids = []string{}
	}

	if err := t.store.CommitBlockList(ctx, target, ids); err != nil {
		return err
	}

	t.logger.Debug("upload committed",
		slog.String("blob", target.String()),
		slog.Int("blocks", len(ids)),
		slog.Int64("bytes", done),
	)

	return nil
}

// UploadFile uploads the file at path to dest.
func (t *Transfer) UploadFile(ctx context.Context, path, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("blob: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("blob: stat %s: %w", path, err)
	}

	return t.Upload(ctx, f, info.Size(), dest)
}

// Download streams the blob at src into path, creating or truncating it.
// When blobName is non-empty, src addresses a container and blobName the
// blob within it. On failure the partially written file is left in place.
func (t *Transfer) Download(ctx context.Context, src, blobName, path string) error {
	target, err := ParseCapabilityURL(src)
	if err != nil {
		return err
	}

	if blobName != "" {
		target = target.WithBlob(blobName)
	}

	body, size, err := t.store.Download(ctx, target)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("blob: creating %s: %w", path, err)
	}

	t.logger.Info("downloading blob",
		slog.String("blob", target.String()),
		slog.String("path", path),
		slog.Int64("size", size),
	)

	w := &progressWriter{w: t.limiter.WrapWriter(ctx, f), total: size, report: t.progress}

	if _, err := io.Copy(w, body); err != nil {
		f.Close()

		return fmt.Errorf("%w: downloading %s: %w", ErrStorage, target, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("blob: closing %s: %w", path, err)
	}

	return nil
}

// Get reads the named blob of the container into memory.
func (t *Transfer) Get(ctx context.Context, containerURL, name string) ([]byte, error) {
	target, err := ParseCapabilityURL(containerURL)
	if err != nil {
		return nil, err
	}

	body, _, err := t.store.Download(ctx, target.WithBlob(name))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(t.limiter.WrapReader(ctx, body))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrStorage, target.WithBlob(name), err)
	}

	return data, nil
}

// List yields the blob names of the container. A malformed URL is
// reported as the only element.
func (t *Transfer) List(ctx context.Context, containerURL string) iter.Seq2[string, error] {
	target, err := ParseCapabilityURL(containerURL)
	if err != nil {
		return func(yield func(string, error) bool) {
			yield("", err)
		}
	}

	return t.store.ListBlobs(ctx, target)
}

// progressWriter reports cumulative bytes after every write.
type progressWriter struct {
	w      io.Writer
	done   int64
	total  int64
	report ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)

	if n > 0 {
		p.report(p.done, p.total)
	}

	return n, err
}
