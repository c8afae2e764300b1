package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/deLKM/Genteblog/internal/locale"
	"github.com/deLKM/Genteblog/internal/upload"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type passwordRequest struct {
	Current string `json:"current"`
	Next    string `json:"next"`
}

// Signup 注册账号并直接建立会话。
func (a *API) Signup(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	account, err := a.auth.Signup(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	if !a.startSession(c, account.UID) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": account})
}

// Login 校验邮箱和密码并写入会话。
func (a *API) Login(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	account, err := a.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	if !a.startSession(c, account.UID) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": account})
}

func (a *API) startSession(c *gin.Context, uid string) bool {
	session := sessions.Default(c)
	session.Set(sessionUserKey, uid)
	if err := session.Save(); err != nil {
		a.log.Error("session save failed", zap.String("uid", uid), zap.Error(err))
		respondError(c, http.StatusInternalServerError, locale.MsgInternal)
		return false
	}
	return true
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, locale.MsgInternal)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me 返回当前登录的账号。
func (a *API) Me(c *gin.Context) {
	account, err := a.auth.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": account})
}

// UpdateProfile accepts JSON or multipart; an "avatar" file is uploaded
// to avatars/{uid}.{ext} and becomes the photo URL.
func (a *API) UpdateProfile(c *gin.Context) {
	ctx := c.Request.Context()
	uid := currentUserID(c)

	var displayName, photoURL string
	if isMultipart(c) {
		displayName = c.PostForm("displayName")
		photoURL = strings.TrimSpace(c.PostForm("photoURL"))
		avatar, err := formImage(c, "avatar")
		if err != nil {
			a.respondServiceError(c, err)
			return
		}
		if avatar != nil {
			url, err := a.uploadAvatar(c, uid, *avatar)
			if err != nil {
				a.respondServiceError(c, err)
				return
			}
			photoURL = url
		}
	} else {
		var req struct {
			DisplayName string `json:"displayName"`
			PhotoURL    string `json:"photoURL"`
		}
		if !bindJSON(c, &req) {
			return
		}
		displayName, photoURL = req.DisplayName, strings.TrimSpace(req.PhotoURL)
	}

	account, err := a.auth.UpdateProfile(ctx, uid, displayName, photoURL)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": account})
}

func (a *API) uploadAvatar(c *gin.Context, uid string, file upload.File) (string, error) {
	if a.uploader == nil {
		return "", fmt.Errorf("%w: no uploader configured", upload.ErrUploadFailed)
	}
	ext, err := upload.Detect(file.Data)
	if err != nil {
		return "", err
	}
	return a.uploader.Upload(c.Request.Context(), file, fmt.Sprintf("avatars/%s.%s", uid, ext))
}

// ChangePassword 修改当前账号的密码。
func (a *API) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := a.auth.ChangePassword(c.Request.Context(), currentUserID(c), req.Current, req.Next); err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
