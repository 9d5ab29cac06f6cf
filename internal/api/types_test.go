package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOwner = "72f988bf-86f1-41af-91ab-2d7cd011db47_0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
	testImage = "5d3c1f0e-8a2b-4c6d-9e8f-0a1b2c3d4e5f"
)

func TestImage_DecodesPlainNames(t *testing.T) {
	data := `{
		"last_updated": "2023-01-12T00:36:54Z",
		"owner_id": "` + testOwner + `",
		"image_id": "` + testImage + `",
		"state": "running",
		"format": "vmrs",
		"image_url": "https://acct.blob.core.windows.net/images/x?sig=s",
		"tags": {"case": "42"},
		"shareable": true
	}`

	var img Image
	require.NoError(t, json.Unmarshal([]byte(data), &img))

	assert.Equal(t, testOwner, img.OwnerID.String())
	assert.Equal(t, testImage, img.ImageID.String())
	assert.Equal(t, StateRunning, img.State)
	assert.Equal(t, FormatVMRS, img.Format)
	assert.Equal(t, map[string]string{"case": "42"}, img.Tags)
	assert.True(t, img.Shareable)
	require.NotNil(t, img.LastUpdated)
	assert.Equal(t, 2023, img.LastUpdated.Year())
}

func TestImage_DecodesTableNames(t *testing.T) {
	data := `{
		"Timestamp": "2023-01-12T00:36:54Z",
		"PartitionKey": "` + testOwner + `",
		"RowKey": "` + testImage + `",
		"state": "completed",
		"format": "lime"
	}`

	var img Image
	require.NoError(t, json.Unmarshal([]byte(data), &img))

	assert.Equal(t, testOwner, img.OwnerID.String())
	assert.Equal(t, testImage, img.ImageID.String())
	require.NotNil(t, img.LastUpdated)
	assert.NotNil(t, img.Tags)
	assert.Empty(t, img.Tags)
}

func TestImage_RejectsBadOwner(t *testing.T) {
	var img Image
	err := json.Unmarshal([]byte(`{"owner_id":"bogus","image_id":"`+testImage+`"}`), &img)
	require.Error(t, err)
}

func TestUserConfig_IncludeSamplesDefaultsTrue(t *testing.T) {
	tests := []struct {
		data        string
		wantSamples bool
		wantEULA    *string
	}{
		{`{}`, true, nil},
		{`{"include_samples": false}`, false, nil},
		{`{"eula_accepted": "abc"}`, true, ptr("abc")},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			var cfg UserConfig
			require.NoError(t, json.Unmarshal([]byte(tt.data), &cfg))
			assert.Equal(t, tt.wantSamples, cfg.IncludeSamples)
			assert.Equal(t, tt.wantEULA, cfg.EULAAccepted)
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestParseImageFormat(t *testing.T) {
	for _, s := range []string{"vmrs", "RAW", "LiME", "core", "Avmh"} {
		_, err := ParseImageFormat(s)
		assert.NoError(t, err, s)
	}

	_, err := ParseImageFormat("vhdx")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want ImageFormat
		ok   bool
	}{
		{"/tmp/host.lime", FormatLiME, true},
		{"C.RAW", FormatRaw, true},
		{"dir.v2/vm.vmrs", FormatVMRS, true},
		{"snapshot.bin", "", false},
		{"noext", "", false},
		{"archive.lime.gz", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if !tt.ok {
				require.ErrorIs(t, err, ErrUnsupportedFormat)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanReanalyze(t *testing.T) {
	assert.Equal(t, []ImageState{StateFinalizing, StateCompleted, StateFailed}, ReanalyzableStates())
	assert.False(t, StateQueued.CanReanalyze())
	assert.False(t, StateWaitingForUpload.CanReanalyze())
}

func TestParseImageState(t *testing.T) {
	st, err := ParseImageState("waiting_for_upload")
	require.NoError(t, err)
	assert.Equal(t, StateWaitingForUpload, st)

	_, err = ParseImageState("Running")
	require.Error(t, err)
}

func TestNormalizeEventTypes(t *testing.T) {
	got := normalizeEventTypes([]WebhookEventType{
		EventImageStateUpdated, EventPing, EventImageCreated, EventPing,
	})
	assert.Equal(t, []WebhookEventType{EventPing, EventImageCreated, EventImageStateUpdated}, got)
}

func TestWebhook_DecodesTableNames(t *testing.T) {
	data := `{
		"PartitionKey": "` + testOwner + `",
		"RowKey": "6a3a5b3c-1f64-4b1f-9f3b-0c0f0f0f0f0f",
		"url": "https://example.com/hook",
		"event_types": ["ping"],
		"hmac_token": null
	}`

	var w Webhook
	require.NoError(t, json.Unmarshal([]byte(data), &w))
	assert.Equal(t, testOwner, w.OwnerID.String())
	assert.Equal(t, "6a3a5b3c-1f64-4b1f-9f3b-0c0f0f0f0f0f", w.WebhookID.String())
	assert.Nil(t, w.HMACToken)
	assert.Equal(t, []WebhookEventType{EventPing}, w.EventTypes)
}
