package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/deLKM/Genteblog/internal/locale"
	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/service"
	"github.com/gin-gonic/gin"
)

type postRequest struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Tags       string  `json:"tags"`
	Featured   bool    `json:"featured"`
	CoverImage *string `json:"coverImage"`
	Draft      bool    `json:"draft"`
}

func (r postRequest) toInput() service.PostInput {
	return service.PostInput{
		ID:         strings.TrimSpace(r.ID),
		Title:      r.Title,
		Content:    r.Content,
		Category:   r.Category,
		Tags:       r.Tags,
		Featured:   r.Featured,
		CoverImage: r.CoverImage,
	}
}

// SavePost 创建或更新文章，multipart 请求可以附带 cover 封面图。
func (a *API) SavePost(c *gin.Context) {
	ctx := c.Request.Context()
	uid := currentUserID(c)

	var req postRequest
	var input service.PostInput
	if isMultipart(c) {
		req = postRequest{
			ID:       c.PostForm("id"),
			Title:    c.PostForm("title"),
			Content:  c.PostForm("content"),
			Category: c.PostForm("category"),
			Tags:     c.PostForm("tags"),
			Featured: formBool(c, "featured"),
			Draft:    formBool(c, "draft"),
		}
		if cover := strings.TrimSpace(c.PostForm("coverImage")); cover != "" {
			req.CoverImage = &cover
		}
		input = req.toInput()
		cover, err := formImage(c, "cover")
		if err != nil {
			a.respondServiceError(c, err)
			return
		}
		input.Cover = cover
	} else {
		if !bindJSON(c, &req) {
			return
		}
		input = req.toInput()
	}

	if input.ID != "" && !a.ownsPost(c, input.ID, uid) {
		return
	}

	post, err := a.posts.SavePost(ctx, input, uid, req.Draft)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	status := http.StatusCreated
	if input.ID != "" {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"post": post})
}

// ownsPost 检查当前用户是否为文章作者，失败时已写出响应。
func (a *API) ownsPost(c *gin.Context, postID, uid string) bool {
	existing, err := a.posts.PeekPost(c.Request.Context(), postID)
	if err != nil {
		a.respondServiceError(c, err)
		return false
	}
	if existing.AuthorID != uid {
		respondError(c, http.StatusForbidden, locale.MsgForbidden)
		return false
	}
	return true
}

// visiblePost 不计浏览地读取文章，草稿对作者以外的用户按不存在处理。
// 失败时已写出响应。
func (a *API) visiblePost(c *gin.Context, postID string) bool {
	post, err := a.posts.PeekPost(c.Request.Context(), postID)
	if err != nil {
		a.respondServiceError(c, err)
		return false
	}
	if !post.IsPublished() && post.AuthorID != currentUserID(c) {
		respondError(c, http.StatusNotFound, locale.MsgPostNotFound)
		return false
	}
	return true
}

// GetPost returns a post and counts a view. Drafts are visible to their author only.
func (a *API) GetPost(c *gin.Context) {
	id := c.Param("id")
	if !a.visiblePost(c, id) {
		return
	}
	post, err := a.posts.GetPost(c.Request.Context(), id)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// UpdatePostStatus 切换文章的草稿/发布状态。
func (a *API) UpdatePostStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if !bindJSON(c, &req) {
		return
	}
	id := c.Param("id")
	if !a.ownsPost(c, id, currentUserID(c)) {
		return
	}
	post, err := a.posts.UpdatePostStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// ListRevisions 返回文章的历史版本，仅作者可见。
func (a *API) ListRevisions(c *gin.Context) {
	id := c.Param("id")
	if !a.ownsPost(c, id, currentUserID(c)) {
		return
	}
	revisions, err := a.posts.ListRevisions(c.Request.Context(), id)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revisions": revisions})
}

// ToggleInteraction flips the current user's like or bookmark on a post.
func (a *API) ToggleInteraction(c *gin.Context) {
	if !a.visiblePost(c, c.Param("id")) {
		return
	}
	result, err := a.posts.HandlePostInteraction(c.Request.Context(), c.Param("id"), currentUserID(c), c.Param("type"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PostInteractions 返回文章的实时点赞/收藏数，以及当前用户的状态。
func (a *API) PostInteractions(c *gin.Context) {
	ctx := c.Request.Context()
	postID := c.Param("id")
	stats, err := a.interactions.PostStats(ctx, postID)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	payload := gin.H{"stats": stats, "liked": false, "bookmarked": false}
	if uid := currentUserID(c); uid != "" {
		for key, kind := range map[string]string{"liked": model.InteractionLike, "bookmarked": model.InteractionBookmark} {
			active, err := a.interactions.IsActive(ctx, postID, uid, kind)
			if err != nil {
				a.respondServiceError(c, err)
				return
			}
			payload[key] = active
		}
	}
	c.JSON(http.StatusOK, payload)
}

// HotPosts 按热度返回指定时间范围内的文章。
func (a *API) HotPosts(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(c, http.StatusBadRequest, locale.MsgInvalidRequest)
			return
		}
		limit = min(parsed, maxPageSize)
	}
	hot, err := a.stats.HotPosts(c.Request.Context(), c.DefaultQuery("range", "7d"), limit)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": hot})
}
