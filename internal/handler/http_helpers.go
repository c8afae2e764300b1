package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deLKM/Genteblog/internal/locale"
	"github.com/deLKM/Genteblog/internal/service"
	"github.com/deLKM/Genteblog/internal/store"
	"github.com/deLKM/Genteblog/internal/upload"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxPageSize = 100

func respondError(c *gin.Context, status int, key string) {
	c.JSON(status, gin.H{"error": locale.Message(requestLanguage(c), key), "code": key})
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, locale.MsgInvalidRequest)
		return false
	}
	return true
}

// respondServiceError 将服务层错误映射为 HTTP 状态码与本地化提示。
func (a *API) respondServiceError(c *gin.Context, err error) {
	var authErr *service.AuthError
	switch {
	case errors.As(err, &authErr):
		c.JSON(authStatus(authErr.Code), gin.H{
			"error": service.AuthMessage(requestLanguage(c), err),
			"code":  authErr.Code,
		})
	case errors.Is(err, service.ErrPostNotFound):
		respondError(c, http.StatusNotFound, locale.MsgPostNotFound)
	case errors.Is(err, service.ErrCommentNotFound):
		respondError(c, http.StatusNotFound, locale.MsgCommentNotFound)
	case errors.Is(err, service.ErrInvalidStatus):
		respondError(c, http.StatusBadRequest, locale.MsgInvalidStatus)
	case errors.Is(err, service.ErrInvalidInteraction):
		respondError(c, http.StatusBadRequest, locale.MsgInvalidInteraction)
	case errors.Is(err, service.ErrInvalidUser):
		respondError(c, http.StatusBadRequest, locale.MsgInvalidUser)
	case errors.Is(err, service.ErrEmptyComment):
		respondError(c, http.StatusBadRequest, locale.MsgEmptyComment)
	case errors.Is(err, service.ErrInvalidBackup):
		respondError(c, http.StatusBadRequest, locale.MsgInvalidBackup)
	case errors.Is(err, store.ErrVersionMismatch):
		respondError(c, http.StatusConflict, locale.MsgVersionMismatch)
	case errors.Is(err, upload.ErrNotImage):
		respondError(c, http.StatusBadRequest, locale.MsgNotImage)
	case errors.Is(err, upload.ErrTooLarge):
		respondError(c, http.StatusRequestEntityTooLarge, locale.MsgUploadFailed)
	case errors.Is(err, upload.ErrUploadFailed):
		a.log.Warn("upload failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusBadGateway, locale.MsgUploadFailed)
	case errors.Is(err, service.ErrCorruptRecord):
		a.log.Error("corrupt record", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, locale.MsgCorruptRecord)
	case errors.Is(err, store.ErrStorageUnavailable):
		a.log.Error("storage unavailable", zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, locale.MsgStorageUnavailable)
	default:
		a.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, locale.MsgInternal)
	}
}

func authStatus(code string) int {
	switch code {
	case service.AuthInvalidEmail, service.AuthWeakPassword:
		return http.StatusBadRequest
	case service.AuthEmailInUse:
		return http.StatusConflict
	case service.AuthUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusUnauthorized
	}
}

// parseCursor 读取 RFC 3339 格式的分页游标，缺省时返回 nil。
func parseCursor(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	t = t.UTC()
	return &t, nil
}

func parsePageSize(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("size"))
	if raw == "" {
		return 0, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid size")
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return size, nil
}

// pageParams 同时解析游标与分页大小，失败时已写出响应。
func pageParams(c *gin.Context, cursorKey string) (*time.Time, int, bool) {
	cursor, err := parseCursor(c, cursorKey)
	if err != nil {
		respondError(c, http.StatusBadRequest, locale.MsgInvalidRequest)
		return nil, 0, false
	}
	size, err := parsePageSize(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, locale.MsgInvalidRequest)
		return nil, 0, false
	}
	return cursor, size, true
}

// formImage 读取 multipart 中的图片字段；字段不存在时返回 nil。
func formImage(c *gin.Context, field string) (*upload.File, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if header.Size > upload.MaxImageBytes {
		return nil, upload.ErrTooLarge
	}
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, upload.MaxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > upload.MaxImageBytes {
		return nil, upload.ErrTooLarge
	}
	return &upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func formBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.PostForm(key)))
	return err == nil && v
}
