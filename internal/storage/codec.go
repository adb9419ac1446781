package storage

import (
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"reflexion/internal/output"
)

// Compression names a payload encoding.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// ParseCompression converts a config value; empty means zstd.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionZstd:
		return CompressionZstd, nil
	case CompressionNone:
		return CompressionNone, nil
	}
	return "", fmt.Errorf("unknown compression %q", s)
}

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

func compress(c Compression, raw []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
	}
	return nil, fmt.Errorf("unknown compression %q", c)
}

func decompress(c Compression, payload []byte, rawSize int) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress payload: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown compression %q", c)
}

// Digest returns the hex BLAKE2b-256 of the deterministic encoding of parts.
// Equal inputs always produce equal digests, whatever their map ordering.
func Digest(parts ...interface{}) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	for _, p := range parts {
		b, err := output.DeterministicEncode(p)
		if err != nil {
			return "", fmt.Errorf("failed to encode digest input: %w", err)
		}
		_, _ = h.Write(b)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
