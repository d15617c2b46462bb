package snapshot

import (
	"fmt"

	"github.com/pierrec/lz4"
)

// Compressor compresses snapshot payloads before they hit the key-value
// store.
type Compressor interface {
	// Name identifies the algorithm inside the stored envelope.
	Name() string

	Compress(data []byte) ([]byte, error)

	// Decompress inflates data into a buffer of the recorded original
	// size.
	Decompress(data []byte, originalSize int) ([]byte, error)
}

// ForName returns the compressor for an algorithm name.
func ForName(name string) (Compressor, error) {
	switch name {
	case "", "none":
		return NoCompressor{}, nil
	case "lz4":
		return LZ4Compressor{}, nil
	default:
		return nil, fmt.Errorf("unknown compressor: %s", name)
	}
}

// NoCompressor passes payloads through unchanged.
type NoCompressor struct{}

func (NoCompressor) Name() string { return "none" }

func (NoCompressor) Compress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

func (NoCompressor) Decompress(data []byte, _ int) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// LZ4Compressor block-compresses payloads with lz4.
type LZ4Compressor struct{}

func (LZ4Compressor) Name() string { return "lz4" }

func (LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 {
		// Incompressible input; lz4 signals this with a zero length.
		return append([]byte(nil), data...), nil
	}
	return buf[:n], nil
}

func (LZ4Compressor) Decompress(data []byte, originalSize int) ([]byte, error) {
	if originalSize == 0 {
		return []byte{}, nil
	}
	if len(data) == originalSize {
		// Stored uncompressed because compression did not help.
		return append([]byte(nil), data...), nil
	}
	buf := make([]byte, originalSize)
	n, err := lz4.UncompressBlock(data, buf)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return buf[:n], nil
}
