package model

import "time"

const (
	CommentActive  = "active"
	CommentDeleted = "deleted"
)

// Comment is a post comment; replies point at their parent through ParentID.
type Comment struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	PostID     string    `gorm:"size:64;index" json:"postId"`
	UserID     string    `gorm:"size:128;index" json:"userId"`
	Content    string    `gorm:"type:text" json:"content"`
	ParentID   *string   `gorm:"size:64;index" json:"parentId"`
	LikeCount  int       `json:"likeCount"`
	ReplyCount int       `json:"replyCount"`
	CreatedAt  time.Time `gorm:"index;autoCreateTime:false" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
	Status     string    `gorm:"size:16" json:"status"`
	IsEdited   bool      `json:"isEdited"`
}

// IsTopLevel reports whether the comment is a direct reply to the post.
func (c *Comment) IsTopLevel() bool {
	return c.ParentID == nil || *c.ParentID == ""
}
