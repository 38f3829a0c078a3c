package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
)

// compressThreshold is the payload size above which gzip pays off.
const compressThreshold = 1024

// envelope is the wire form stored in both cache tiers.
type envelope struct {
	Compressed bool   `json:"compressed"`
	Data       string `json:"data"`
}

// pack compresses raw when it is large enough to benefit.
func pack(raw []byte) (payload string, compressed bool) {
	if len(raw) <= compressThreshold {
		return string(raw), false
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return string(raw), false
	}
	if err := zw.Close(); err != nil {
		return string(raw), false
	}
	if buf.Len() >= len(raw) {
		return string(raw), false
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), true
}

// unpack reverses pack.
func unpack(payload string, compressed bool) ([]byte, error) {
	if !compressed {
		return []byte(payload), nil
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode cache payload: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open cache payload: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress cache payload: %w", err)
	}
	return out, nil
}
