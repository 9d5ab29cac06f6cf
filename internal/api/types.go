package api

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ImageState is the lifecycle state of an analysis job.
type ImageState string

// Image states as sent on the wire.
const (
	StateWaitingForUpload ImageState = "waiting_for_upload"
	StateToQueue          ImageState = "to_queue"
	StateQueued           ImageState = "queued"
	StateRunning          ImageState = "running"
	StateFinalizing       ImageState = "finalizing"
	StateCompleted        ImageState = "completed"
	StateFailed           ImageState = "failed"
	StateDeleting         ImageState = "deleting"
)

// ImageStates lists every state in lifecycle order.
var ImageStates = []ImageState{
	StateWaitingForUpload,
	StateToQueue,
	StateQueued,
	StateRunning,
	StateFinalizing,
	StateCompleted,
	StateFailed,
	StateDeleting,
}

// ParseImageState accepts the wire form of a state.
func ParseImageState(s string) (ImageState, error) {
	st := ImageState(s)
	if !slices.Contains(ImageStates, st) {
		return "", fmt.Errorf("api: unknown image state %q", s)
	}

	return st, nil
}

// CanReanalyze reports whether the service accepts a reanalysis request for
// an image in this state.
func (s ImageState) CanReanalyze() bool {
	switch s {
	case StateFailed, StateCompleted, StateFinalizing:
		return true
	default:
		return false
	}
}

// ReanalyzableStates returns the states for which CanReanalyze is true.
func ReanalyzableStates() []ImageState {
	var out []ImageState

	for _, s := range ImageStates {
		if s.CanReanalyze() {
			out = append(out, s)
		}
	}

	return out
}

// ImageFormat is the container format of a memory snapshot.
type ImageFormat string

// Supported snapshot formats.
const (
	FormatVMRS ImageFormat = "vmrs"
	FormatRaw  ImageFormat = "raw"
	FormatLiME ImageFormat = "lime"
	FormatCore ImageFormat = "core"
	FormatAVMH ImageFormat = "avmh"
)

// ImageFormats lists every supported format.
var ImageFormats = []ImageFormat{FormatVMRS, FormatRaw, FormatLiME, FormatCore, FormatAVMH}

// ParseImageFormat matches s case-insensitively against the supported
// formats.
func ParseImageFormat(s string) (ImageFormat, error) {
	f := ImageFormat(strings.ToLower(s))
	if !slices.Contains(ImageFormats, f) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}

	return f, nil
}

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) (ImageFormat, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no file extension", ErrUnsupportedFormat, path)
	}

	return ParseImageFormat(ext)
}

// Image is an analysis job. ImageURL and ArtifactsURL are short-lived
// capability URLs and must not be logged.
type Image struct {
	LastUpdated  *time.Time        `json:"last_updated,omitempty"`
	OwnerID      OwnerID           `json:"owner_id"`
	ImageID      ImageID           `json:"image_id"`
	State        ImageState        `json:"state"`
	Format       ImageFormat       `json:"format"`
	Error        string            `json:"error,omitempty"`
	ImageURL     string            `json:"image_url,omitempty"`
	ArtifactsURL string            `json:"artifacts_url,omitempty"`
	Tags         map[string]string `json:"tags"`
	Shareable    bool              `json:"shareable"`
}

// tableKeys are the storage-table names some responses use in place of
// last_updated, the owner/partition and the id/row.
type tableKeys[P, R any] struct {
	Timestamp    *time.Time `json:"Timestamp"`
	PartitionKey *P         `json:"PartitionKey"`
	RowKey       *R         `json:"RowKey"`
}

// UnmarshalJSON accepts both the plain and the storage-table field names.
func (i *Image) UnmarshalJSON(data []byte) error {
	type plain Image

	var aux struct {
		plain
		tableKeys[OwnerID, ImageID]
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*i = Image(aux.plain)

	if i.LastUpdated == nil {
		i.LastUpdated = aux.Timestamp
	}

	if aux.PartitionKey != nil {
		i.OwnerID = *aux.PartitionKey
	}

	if aux.RowKey != nil {
		i.ImageID = *aux.RowKey
	}

	if i.Tags == nil {
		i.Tags = map[string]string{}
	}

	return nil
}

// Info describes the service.
type Info struct {
	APIVersion    string        `json:"api_version"`
	ModelsVersion string        `json:"models_version"`
	CurrentEULA   string        `json:"current_eula"`
	Formats       []ImageFormat `json:"formats"`
}

// UserConfig holds per-user settings. EULAAccepted is the checksum of the
// accepted terms, nil if none.
type UserConfig struct {
	EULAAccepted   *string `json:"eula_accepted"`
	IncludeSamples bool    `json:"include_samples"`
}

// UnmarshalJSON defaults include_samples to true when absent.
func (u *UserConfig) UnmarshalJSON(data []byte) error {
	type plain UserConfig

	p := plain{IncludeSamples: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	*u = UserConfig(p)

	return nil
}

// ListImagesOptions filters an image listing. Zero values mean "no filter".
type ListImagesOptions struct {
	ImageID        *ImageID
	OwnerID        *OwnerID
	State          ImageState
	IncludeSamples bool
}

type imagesPage struct {
	Images       []Image `json:"images"`
	Continuation string  `json:"continuation"`
}

type imageCreate struct {
	Format ImageFormat       `json:"format"`
	Tags   map[string]string `json:"tags"`
}

type imageUpdate struct {
	Tags      map[string]string `json:"tags"`
	Shareable *bool             `json:"shareable"`
}
