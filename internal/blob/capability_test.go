package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCapabilityURL(t *testing.T) {
	c, err := ParseCapabilityURL("https://acct.blob.core.windows.net/images/dir/snap.lime?" + testSAS)
	require.NoError(t, err)

	assert.Equal(t, "acct", c.Account)
	assert.Equal(t, "images", c.Container)
	assert.Equal(t, "dir/snap.lime", c.BlobName)
	assert.Equal(t, testSAS, c.SAS)
	assert.Equal(t, "https://acct.blob.core.windows.net/images/dir/snap.lime?"+testSAS, c.URL())
	assert.Equal(t, "https://acct.blob.core.windows.net/images?"+testSAS, c.ContainerURL())
}

func TestParseCapabilityURL_Container(t *testing.T) {
	c, err := ParseCapabilityURL("https://acct.blob.core.windows.net/artifacts/?" + testSAS)
	require.NoError(t, err)

	assert.Equal(t, "artifacts", c.Container)
	assert.Empty(t, c.BlobName)
	assert.Equal(t, "https://acct.blob.core.windows.net/artifacts/report.json?"+testSAS, c.WithBlob("report.json").URL())
}

func TestParseCapabilityURL_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no host", "/images/x?" + testSAS},
		{"no token", "https://acct.blob.core.windows.net/images/x"},
		{"no container", "https://acct.blob.core.windows.net/?" + testSAS},
		{"unparseable", "https://acct.blob.core.windows.net/%zz?" + testSAS},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCapabilityURL(tt.raw)
			require.ErrorIs(t, err, ErrInvalidCapabilityURL)
		})
	}
}

func TestCapabilityURL_StringOmitsSignature(t *testing.T) {
	c, err := ParseCapabilityURL("https://acct.blob.core.windows.net/images/snap.lime?" + testSAS)
	require.NoError(t, err)

	assert.Equal(t, "https://acct.blob.core.windows.net/images/snap.lime", c.String())
	assert.NotContains(t, c.String(), "sig=")
}

func TestBlockSize(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want int
	}{
		{"empty", 0, MinBlockSize},
		{"small", 1, MinBlockSize},
		{"1 GiB", 1 << 30, MinBlockSize},
		{"at threshold", MinBlockSize * MaxBlocks, MinBlockSize},
		{"just above threshold", MinBlockSize*MaxBlocks + 1, MinBlockSize + 1},
		{"1 TiB", 1 << 40, (1<<40)/MaxBlocks + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BlockSize(tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBlockSize_CountStaysWithinLimit(t *testing.T) {
	for _, size := range []int64{
		1 << 30,
		MinBlockSize*MaxBlocks + MaxBlocks - 1,
		50_000*20_971_520 + 49_999,
		1 << 42,
	} {
		bs, err := BlockSize(size)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, bs, MinBlockSize)

		count := (size + int64(bs) - 1) / int64(bs)
		assert.LessOrEqual(t, count, int64(MaxBlocks), "size %d", size)
	}
}

func TestBlockSize_Negative(t *testing.T) {
	_, err := BlockSize(-1)
	require.ErrorIs(t, err, ErrConversion)
}

func TestBlockID(t *testing.T) {
	assert.Equal(t, "00000000000000000000000000000000", blockID(0))
	assert.Equal(t, "0000000000000000000000000000000a", blockID(10))
	assert.Len(t, blockID(49_999), 32)
}
