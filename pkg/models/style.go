package models

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"io"
)

// Layer styles travel as urlsafe base64 over a zlib-compressed style
// document. The fabric treats the document itself as opaque.

// EncodeStyle compresses and encodes a style document for embedding in a
// dataset definition. An empty document encodes to the empty string.
func EncodeStyle(doc []byte) (string, error) {
	if len(doc) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(doc); err != nil {
		return "", fmt.Errorf("style compression failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("style compression failed: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeStyle reverses EncodeStyle. An empty style decodes to nil.
func DecodeStyle(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("style is not urlsafe base64: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("style is not zlib compressed: %w", err)
	}
	defer zr.Close()
	doc, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("style decompression failed: %w", err)
	}
	return doc, nil
}
