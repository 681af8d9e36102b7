package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/ljpprojects/kolloquy/errors"
)

// Compress brotli-encodes data. Every blob written to the object store
// goes through this; keys carry the .br suffix to mark it.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("brotli compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. A corrupt stream is reported as a
// deserialization failure so callers can tell it apart from a transport
// error.
func Decompress(data []byte) ([]byte, error) {
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: brotli: %v", errors.ErrDeserialization, err)
	}
	return out, nil
}
