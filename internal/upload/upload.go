// Package upload stores cover and avatar images and returns their public URL.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"

	_ "golang.org/x/image/webp"
)

// MaxImageBytes 是单张图片的大小上限。
const MaxImageBytes = 10 << 20

var (
	ErrUploadFailed = errors.New("upload failed")
	ErrNotImage     = errors.New("file is not a supported image")
	ErrTooLarge     = errors.New("image exceeds size limit")
)

// File is an image received from a client.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader persists data at dest (a slash separated relative key) and
// returns the URL clients use to fetch it.
type Uploader interface {
	Upload(ctx context.Context, file File, dest string) (string, error)
}

// Detect checks that data decodes as png, jpeg, gif or webp and returns the
// file extension for the detected format.
func Detect(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNotImage
	}
	if len(data) > MaxImageBytes {
		return "", ErrTooLarge
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if format == "jpeg" {
		return "jpg", nil
	}
	return format, nil
}

// CleanKey normalizes dest and rejects keys escaping the upload root.
func CleanKey(dest string) (string, error) {
	key := path.Clean("/" + strings.TrimSpace(dest))
	key = strings.TrimPrefix(key, "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("%w: empty destination", ErrUploadFailed)
	}
	return key, nil
}

func failed(err error) error {
	if errors.Is(err, ErrUploadFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUploadFailed, err)
}
