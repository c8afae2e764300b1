package upload

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSConfig holds Aliyun OSS credentials.
type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	BucketName      string
	// PublicBaseURL overrides the default https://{bucket}.{endpoint} prefix,
	// e.g. when a CDN fronts the bucket.
	PublicBaseURL string
}

// OSSUploader puts objects into an Aliyun OSS bucket.
type OSSUploader struct {
	bucket  *oss.Bucket
	baseURL string
}

func NewOSSUploader(cfg OSSConfig) (*OSSUploader, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, err
	}
	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
		baseURL = fmt.Sprintf("https://%s.%s", cfg.BucketName, endpoint)
	}
	return &OSSUploader{bucket: bucket, baseURL: baseURL}, nil
}

func (u *OSSUploader) Upload(ctx context.Context, file File, dest string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", failed(err)
	}
	key, err := CleanKey(dest)
	if err != nil {
		return "", err
	}

	var options []oss.Option
	if file.ContentType != "" {
		options = append(options, oss.ContentType(file.ContentType))
	}
	if err := u.bucket.PutObject(key, bytes.NewReader(file.Data), options...); err != nil {
		return "", failed(err)
	}
	return u.baseURL + "/" + key, nil
}
