// Package codec compresses free-text content fields for storage.
//
// An encoded value is "z1:" followed by the standard base64 form of a zstd
// frame. Values without that shape are treated as legacy plain text.
package codec

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const prefix = "z1:"

// ErrCorrupt is reported by DecodeStrict for values that are not a valid encoding.
var ErrCorrupt = errors.New("codec: corrupt encoded content")

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(64<<20))
)

// Encode returns the storage form of text. Empty text stays empty.
func Encode(text string) string {
	if text == "" || encoder == nil {
		return text
	}
	compressed := encoder.EncodeAll([]byte(text), nil)
	return prefix + base64.StdEncoding.EncodeToString(compressed)
}

// Decode reverses Encode. Input that does not decode is returned unchanged,
// so callers may receive raw stored text when a record is damaged.
func Decode(code string) string {
	text, err := DecodeStrict(code)
	if err != nil {
		return code
	}
	return text
}

// DecodeStrict reverses Encode and reports ErrCorrupt instead of falling back.
func DecodeStrict(code string) (string, error) {
	if code == "" {
		return "", nil
	}
	if !strings.HasPrefix(code, prefix) || decoder == nil {
		return "", ErrCorrupt
	}
	raw, err := base64.StdEncoding.DecodeString(code[len(prefix):])
	if err != nil {
		return "", ErrCorrupt
	}
	out, err := decoder.DecodeAll(raw, nil)
	if err != nil {
		return "", ErrCorrupt
	}
	return string(out), nil
}

// IsEncoded reports whether code carries the encoded prefix.
func IsEncoded(code string) bool {
	return strings.HasPrefix(code, prefix)
}
