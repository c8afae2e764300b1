package upload

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalUploader writes files below Dir and serves them under URLPath.
type LocalUploader struct {
	dir     string
	urlPath string
}

func NewLocalUploader(dir, urlPath string) *LocalUploader {
	if strings.TrimSpace(urlPath) == "" {
		urlPath = "/static/uploads"
	}
	return &LocalUploader{dir: dir, urlPath: "/" + strings.Trim(urlPath, "/")}
}

func (u *LocalUploader) Upload(ctx context.Context, file File, dest string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", failed(err)
	}
	key, err := CleanKey(dest)
	if err != nil {
		return "", err
	}

	target := filepath.Join(u.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", failed(err)
	}
	// 先写临时文件再重命名，覆盖时不会留下半截文件。
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, file.Data, 0o644); err != nil {
		return "", failed(err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", failed(err)
	}
	return path.Join(u.urlPath, key), nil
}
