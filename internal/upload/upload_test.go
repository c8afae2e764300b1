package upload

import (
	"bytes"
	"context"
	"hash/crc64"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	ext, err := Detect(samplePNG(t))
	require.NoError(t, err)
	assert.Equal(t, "png", ext)

	_, err = Detect([]byte("plain text"))
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = Detect(nil)
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestCleanKey(t *testing.T) {
	key, err := CleanKey("posts/p1/cover.png")
	require.NoError(t, err)
	assert.Equal(t, "posts/p1/cover.png", key)

	key, err = CleanKey("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "etc/passwd", key)

	_, err = CleanKey("  ")
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestLocalUploader(t *testing.T) {
	dir := t.TempDir()
	u := NewLocalUploader(dir, "/static/uploads/")
	data := samplePNG(t)

	url, err := u.Upload(context.Background(), File{Name: "a.png", Data: data}, "posts/p1/cover.png")
	require.NoError(t, err)
	assert.Equal(t, "/static/uploads/posts/p1/cover.png", url)

	stored, err := os.ReadFile(filepath.Join(dir, "posts", "p1", "cover.png"))
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	// 同一路径再次上传会覆盖。
	_, err = u.Upload(context.Background(), File{Data: []byte("x")}, "posts/p1/cover.png")
	require.NoError(t, err)
	stored, err = os.ReadFile(filepath.Join(dir, "posts", "p1", "cover.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), stored)
}

func TestLocalUploaderFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "posts")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o644))

	u := NewLocalUploader(dir, "")
	_, err := u.Upload(context.Background(), File{Data: []byte("x")}, "posts/p1/cover.png")
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestOSSUploader(t *testing.T) {
	var gotPath, gotType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		sum := crc64.Checksum(gotBody, crc64.MakeTable(crc64.ECMA))
		w.Header().Set("x-oss-hash-crc64ecma", strconv.FormatUint(sum, 10))
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	u, err := NewOSSUploader(OSSConfig{
		Endpoint:        server.URL,
		AccessKeyID:     "id",
		AccessKeySecret: "secret",
		BucketName:      "blog",
		PublicBaseURL:   "https://cdn.example.com/",
	})
	require.NoError(t, err)

	data := samplePNG(t)
	url, err := u.Upload(context.Background(), File{ContentType: "image/png", Data: data}, "posts/p1/cover.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/posts/p1/cover.png", url)
	assert.Equal(t, "/blog/posts/p1/cover.png", gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, data, gotBody)
}

func TestOSSUploaderRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	u, err := NewOSSUploader(OSSConfig{Endpoint: server.URL, AccessKeyID: "id", AccessKeySecret: "secret", BucketName: "blog"})
	require.NoError(t, err)
	_, err = u.Upload(context.Background(), File{Data: []byte("x")}, "a.png")
	assert.ErrorIs(t, err, ErrUploadFailed)
}
