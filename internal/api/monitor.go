package api

import (
	"context"
	"fmt"
	"log/slog"
)

const unknownAnalysisError = "unknown error"

// MonitorImage polls the image once per second until analysis completes,
// returning the completed snapshot. The state is logged on the first read
// and whenever it differs from the previous read; no ordering between
// states is assumed, so a finalizing image going back to queued is logged
// like any other change. A failed image yields *AnalysisFailedError.
func (c *Client) MonitorImage(ctx context.Context, id ImageID) (*Image, error) {
	var prev ImageState

	for first := true; ; first = false {
		img, err := c.GetImage(ctx, id)
		if err != nil {
			return nil, err
		}

		if first || img.State != prev {
			c.logger.Info("image state changed",
				slog.String("image_id", id.String()),
				slog.String("state", string(img.State)),
			)
		}

		switch img.State {
		case StateCompleted:
			return img, nil
		case StateFailed:
			msg := img.Error
			if msg == "" {
				msg = unknownAnalysisError
			}

			return nil, &AnalysisFailedError{ImageID: id, Message: msg}
		}

		prev = img.State

		if err := c.sleepFunc(ctx, c.pollInterval); err != nil {
			return nil, fmt.Errorf("api: monitoring image %s: %w", id, err)
		}
	}
}
