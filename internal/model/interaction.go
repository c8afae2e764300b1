package model

import (
	"fmt"
	"time"
)

const (
	InteractionLike     = "like"
	InteractionBookmark = "bookmark"
)

// Interaction 记录用户对文章的可切换互动（点赞、收藏）。
// 每个 (post, user, type) 只会存在一条记录，切换只改变 Active。
// CommentID 非空时记录的是对评论的点赞，主键为 {commentId}_{userId}_{type}，
// PostID 指向评论所在的文章。
type Interaction struct {
	ID        string    `gorm:"primaryKey;size:255" json:"id"`
	PostID    string    `gorm:"size:64;index" json:"postId"`
	CommentID string    `gorm:"size:64;index" json:"commentId,omitempty"`
	UserID    string    `gorm:"size:128;index" json:"userId"`
	Type      string    `gorm:"size:16" json:"type"`
	CreatedAt time.Time `gorm:"autoCreateTime:false" json:"createdAt"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `gorm:"index;autoUpdateTime:false" json:"updatedAt"`
}

// InteractionKey builds the composite identity {postId}_{userId}_{type}.
func InteractionKey(postID, userID, kind string) string {
	return fmt.Sprintf("%s_%s_%s", postID, userID, kind)
}

// OnComment reports whether the interaction targets a comment rather than a post.
func (i *Interaction) OnComment() bool {
	return i.CommentID != ""
}

// ValidCommentInteractionType reports whether kind can be toggled on a comment.
// Comments only carry likes.
func ValidCommentInteractionType(kind string) bool {
	return kind == InteractionLike
}

// ValidInteractionType reports whether kind is a supported interaction.
func ValidInteractionType(kind string) bool {
	return kind == InteractionLike || kind == InteractionBookmark
}
