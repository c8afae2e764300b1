package model

import "time"

const (
	RevisionReasonDraft   = "保存草稿"
	RevisionReasonPublish = "更新发布"
)

// Revision 记录文章在一次保存时的内容快照，只追加不修改。
type Revision struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    string    `gorm:"size:64;index" json:"postId"`
	Content   string    `gorm:"type:text" json:"content"`
	AuthorID  string    `gorm:"size:128" json:"authorId"`
	CreatedAt time.Time `gorm:"index;autoCreateTime:false" json:"createdAt"`
	Reason    string    `json:"reason"`
}
