package blob

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinBlockSize is the smallest block staged for an upload.
	MinBlockSize = 10 << 20
	// MaxBlocks is the block-count limit of a single block blob.
	MaxBlocks = 50_000
)

// ErrConversion reports a size that cannot be expressed as a block length.
var ErrConversion = errors.New("blob: size conversion")

// BlockSize returns the block length for a payload of size bytes: at least
// MinBlockSize, and large enough that the payload fits in MaxBlocks blocks.
func BlockSize(size int64) (int, error) {
	if size < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrConversion, size)
	}

	// Ceiling division keeps the block count at or below MaxBlocks.
	perBlock := size / MaxBlocks
	if size%MaxBlocks != 0 {
		perBlock++
	}

	perBlock = max(MinBlockSize, perBlock)

	if perBlock > math.MaxInt {
		return 0, fmt.Errorf("%w: block size %d overflows int", ErrConversion, perBlock)
	}

	return int(perBlock), nil
}

// blockID is the zero-padded hexadecimal sequence id of block i.
func blockID(i int) string {
	return fmt.Sprintf("%032x", i)
}
