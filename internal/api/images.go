package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const imagesPath = "/api/images"

func imagePath(id ImageID) string {
	return imagesPath + "/" + id.String()
}

// ListImages returns a lazy listing of the images visible to the caller.
func (c *Client) ListImages(opts ListImagesOptions) *Pager[Image] {
	return NewPager(func(ctx context.Context, continuation string) (Page[Image], error) {
		q := url.Values{}

		if opts.ImageID != nil {
			q.Set("image_id", opts.ImageID.String())
		}

		if opts.OwnerID != nil {
			q.Set("owner_id", opts.OwnerID.String())
		}

		if opts.State != "" {
			q.Set("state", string(opts.State))
		}

		q.Set("include_samples", strconv.FormatBool(opts.IncludeSamples))

		if continuation != "" {
			q.Set("continuation", continuation)
		}

		resp, err := ExecuteJSON[imagesPage](ctx, c, http.MethodGet, imagesPath, q, nil)
		if err != nil {
			return Page[Image]{}, err
		}

		return Page[Image]{Items: resp.Images, Continuation: resp.Continuation}, nil
	})
}

// CreateImage registers a new job. The returned image carries the upload
// capability URL in ImageURL.
func (c *Client) CreateImage(ctx context.Context, format ImageFormat, tags map[string]string) (*Image, error) {
	if tags == nil {
		tags = map[string]string{}
	}

	return executeObject[Image](ctx, c, http.MethodPost, imagesPath, nil, imageCreate{Format: format, Tags: tags})
}

// GetImage fetches one image.
func (c *Client) GetImage(ctx context.Context, id ImageID) (*Image, error) {
	return executeObject[Image](ctx, c, http.MethodGet, imagePath(id), nil, nil)
}

// DeleteImage deletes an image and its artifacts.
func (c *Client) DeleteImage(ctx context.Context, id ImageID) (bool, error) {
	return ExecuteJSON[bool](ctx, c, http.MethodDelete, imagePath(id), nil, nil)
}

// ReanalyzeImage queues an image for analysis again.
func (c *Client) ReanalyzeImage(ctx context.Context, id ImageID) (bool, error) {
	return ExecuteJSON[bool](ctx, c, http.MethodPatch, imagePath(id), nil, nil)
}

// UpdateImage overwrites tags when tags is non-nil and shareable when it is
// non-nil.
func (c *Client) UpdateImage(ctx context.Context, id ImageID, tags map[string]string, shareable *bool) (*Image, error) {
	return executeObject[Image](ctx, c, http.MethodPost, imagePath(id), nil, imageUpdate{Tags: tags, Shareable: shareable})
}
