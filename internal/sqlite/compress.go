package sqlite

import (
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// compressionTag identifies how a blob is stored in blobs.data.
// Values are persisted; changing them breaks existing databases.
type compressionTag int

const (
	compressionNone compressionTag = 0
	compressionLZ4  compressionTag = 1
)

// errIncompressible reports that compression would not shrink the data.
var errIncompressible = errors.New("data is incompressible")

// compressLZ4 compresses data with block-mode LZ4. Returns errIncompressible
// when the output would not be smaller than the input.
func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return destination, nil
}

// encodeBlob picks the stored representation for data.
func encodeBlob(data []byte, mode string) (compressionTag, []byte, error) {
	if mode != types.CompressionLZ4 || len(data) == 0 {
		return compressionNone, data, nil
	}
	compressed, err := compressLZ4(data)
	if errors.Is(err, errIncompressible) {
		return compressionNone, data, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return compressionLZ4, compressed, nil
}

// decodeBlob reverses encodeBlob.
func decodeBlob(tag compressionTag, stored []byte, size int) ([]byte, error) {
	switch tag {
	case compressionNone:
		if len(stored) != size {
			return nil, fmt.Errorf("uncompressed blob: size %d does not match expected %d", len(stored), size)
		}
		return stored, nil
	case compressionLZ4:
		return decompressLZ4(stored, size)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}
