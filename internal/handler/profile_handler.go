package handler

import (
	"net/http"

	"github.com/deLKM/Genteblog/internal/locale"
	"github.com/gin-gonic/gin"
)

// UserDrafts 返回用户的草稿，只有本人可以查看。
func (a *API) UserDrafts(c *gin.Context) {
	uid := c.Param("uid")
	if uid != currentUserID(c) {
		respondError(c, http.StatusForbidden, locale.MsgForbidden)
		return
	}
	drafts, err := a.posts.GetDrafts(c.Request.Context(), uid)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": drafts})
}

// UserPosts 返回用户已发布的文章。
func (a *API) UserPosts(c *gin.Context) {
	posts, err := a.posts.GetPublishedPosts(c.Request.Context(), c.Param("uid"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// UserStats 返回用户的统计数据。
func (a *API) UserStats(c *gin.Context) {
	stats, err := a.stats.UserStats(c.Request.Context(), c.Param("uid"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// UserProfile 聚合用户主页数据，部分失败时 missing 列出缺失的部分。
func (a *API) UserProfile(c *gin.Context) {
	profile, err := a.profiles.UserProfile(c.Request.Context(), c.Param("uid"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// UserInteractions 分页返回用户的互动历史。
func (a *API) UserInteractions(c *gin.Context) {
	before, size, ok := pageParams(c, "before")
	if !ok {
		return
	}
	page, err := a.interactions.UserInteractionHistory(c.Request.Context(), c.Param("uid"), before, size)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// MyBookmarks 分页返回当前用户的收藏。
func (a *API) MyBookmarks(c *gin.Context) {
	before, size, ok := pageParams(c, "before")
	if !ok {
		return
	}
	page, err := a.interactions.UserBookmarks(c.Request.Context(), currentUserID(c), before, size)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// MyLikes 分页返回当前用户点赞过的文章。
func (a *API) MyLikes(c *gin.Context) {
	before, size, ok := pageParams(c, "before")
	if !ok {
		return
	}
	page, err := a.interactions.UserLikes(c.Request.Context(), currentUserID(c), before, size)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
