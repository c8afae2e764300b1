package handler

import (
	"net/http"

	"github.com/deLKM/Genteblog/internal/locale"
	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parentId"`
}

// CreateComment 发表评论或回复。
func (a *API) CreateComment(c *gin.Context) {
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}
	if !a.visiblePost(c, c.Param("id")) {
		return
	}
	comment, err := a.comments.Create(c.Request.Context(), c.Param("id"), currentUserID(c), req.Content, req.ParentID)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// ListComments 分页返回文章的顶层评论，?before= 为上一页的 nextCursor。
func (a *API) ListComments(c *gin.Context) {
	before, size, ok := pageParams(c, "before")
	if !ok {
		return
	}
	page, err := a.comments.ListByPost(c.Request.Context(), c.Param("id"), before, size)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListReplies 按时间正序返回评论的回复。
func (a *API) ListReplies(c *gin.Context) {
	after, size, ok := pageParams(c, "after")
	if !ok {
		return
	}
	page, err := a.comments.Replies(c.Request.Context(), c.Param("id"), after, size)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ownsComment 检查当前用户是评论作者，失败时已写出响应。
func (a *API) ownsComment(c *gin.Context) bool {
	comment, err := a.comments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondServiceError(c, err)
		return false
	}
	if comment.UserID != currentUserID(c) {
		respondError(c, http.StatusForbidden, locale.MsgForbidden)
		return false
	}
	return true
}

// UpdateComment 修改自己的评论。
func (a *API) UpdateComment(c *gin.Context) {
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}
	if !a.ownsComment(c) {
		return
	}
	comment, err := a.comments.Update(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// DeleteComment 软删除自己的评论。
func (a *API) DeleteComment(c *gin.Context) {
	if !a.ownsComment(c) {
		return
	}
	if err := a.comments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleCommentInteraction 切换对评论的点赞。
func (a *API) ToggleCommentInteraction(c *gin.Context) {
	ctx := c.Request.Context()
	comment, err := a.comments.Get(ctx, c.Param("id"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	if !a.visiblePost(c, comment.PostID) {
		return
	}
	result, err := a.comments.HandleCommentInteraction(ctx, comment.ID, currentUserID(c), c.Param("type"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
