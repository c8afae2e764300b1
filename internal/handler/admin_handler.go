package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deLKM/Genteblog/internal/locale"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxBackupBytes = 64 << 20

// ExportBackup 以附件形式下载全部文章、互动与修订记录。
func (a *API) ExportBackup(c *gin.Context) {
	var buf bytes.Buffer
	if err := a.backup.WriteSnapshot(c.Request.Context(), &buf); err != nil {
		a.respondServiceError(c, err)
		return
	}
	filename := fmt.Sprintf("genteblog-backup-%s.json", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json; charset=utf-8", buf.Bytes())
}

// ImportBackup restores a snapshot sent as the request body or as the
// multipart field "file".
func (a *API) ImportBackup(c *gin.Context) {
	var body io.Reader = http.MaxBytesReader(c.Writer, c.Request.Body, maxBackupBytes)
	if isMultipart(c) {
		header, err := c.FormFile("file")
		if err != nil {
			respondError(c, http.StatusBadRequest, locale.MsgInvalidBackup)
			return
		}
		f, err := header.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, locale.MsgInvalidBackup)
			return
		}
		defer f.Close()
		body = io.LimitReader(f, maxBackupBytes)
	}

	result, err := a.backup.Import(c.Request.Context(), body)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	a.log.Info("backup imported", zap.String("uid", currentUserID(c)), zap.Int("posts", result.Posts))
	c.JSON(http.StatusOK, gin.H{"imported": result})
}

// Sweep 立即执行一次过期数据清理。
func (a *API) Sweep(c *gin.Context) {
	result, err := a.retention.Sweep(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": result})
}

// ReconcilePost 按互动与评论记录重算文章计数。
func (a *API) ReconcilePost(c *gin.Context) {
	counters, err := a.stats.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counters": counters})
}
