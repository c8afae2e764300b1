package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/deLKM/Genteblog/internal/locale"
	"github.com/deLKM/Genteblog/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UploadImage 接收编辑器插入的正文图片，返回可直接写进 markdown 的地址。
func (a *API) UploadImage(c *gin.Context) {
	file, err := formImage(c, "image")
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	if file == nil {
		respondError(c, http.StatusBadRequest, locale.MsgNotImage)
		return
	}
	if a.uploader == nil {
		a.respondServiceError(c, fmt.Errorf("%w: no uploader configured", upload.ErrUploadFailed))
		return
	}
	ext, err := upload.Detect(file.Data)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	dest := fmt.Sprintf("images/%s/%s-%s.%s", currentUserID(c), time.Now().UTC().Format("20060102"), uuid.New().String(), ext)
	url, err := a.uploader.Upload(c.Request.Context(), *file, dest)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	// 字段与编辑器期望的格式保持一致
	c.JSON(http.StatusOK, gin.H{
		"success": 1,
		"data": gin.H{
			"filePath": url,
			"url":      url,
		},
	})
}
