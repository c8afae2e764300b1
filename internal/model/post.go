package model

import "time"

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Post 定义了文章文档。存储层中的 Content 与 ContentHTML 保存的是编码后的文本。
type Post struct {
	ID            string       `gorm:"primaryKey;size:64" json:"id"`
	Title         string       `json:"title"`
	Content       string       `gorm:"type:text" json:"content"`
	ContentHTML   string       `gorm:"type:text" json:"contentHtml"`
	Summary       string       `gorm:"type:text" json:"summary"`
	Category      string       `gorm:"size:64" json:"category"`
	Tags          []string     `gorm:"serializer:json" json:"tags"`
	AuthorID      string       `gorm:"size:128;index" json:"authorId"`
	Status        string       `gorm:"size:16;index" json:"status"`
	CoverImage    *string      `json:"coverImage"`
	Metadata      PostMetadata `gorm:"embedded" json:"metadata"`
	ViewCount     int          `json:"viewCount"`
	LikeCount     int          `json:"likeCount"`
	BookmarkCount int          `json:"bookmarkCount"`
	CommentCount  int          `json:"commentCount"`
	Featured      bool         `json:"featured"`
	SEO           PostSEO      `gorm:"serializer:json" json:"seo"`
}

// PostMetadata 汇总文章的统计与时间信息。
type PostMetadata struct {
	WordCount    int        `json:"wordCount"`
	ReadingTime  int        `json:"readingTime"`
	CreatedAt    time.Time  `gorm:"autoCreateTime:false" json:"createdAt"`
	LastEditedAt time.Time  `json:"lastEditedAt"`
	UpdatedAt    time.Time  `gorm:"index;autoUpdateTime:false" json:"updatedAt"`
	PublishedAt  *time.Time `gorm:"index" json:"publishedAt"`
}

// PostSEO is the derived search-engine block of a post.
type PostSEO struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	OGImage     *string  `json:"ogImage"`
}

// IsPublished reports whether the post is in the published state.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Tags = append([]string(nil), p.Tags...)
	cp.SEO.Keywords = append([]string(nil), p.SEO.Keywords...)
	if p.CoverImage != nil {
		v := *p.CoverImage
		cp.CoverImage = &v
	}
	if p.SEO.OGImage != nil {
		v := *p.SEO.OGImage
		cp.SEO.OGImage = &v
	}
	if p.Metadata.PublishedAt != nil {
		v := *p.Metadata.PublishedAt
		cp.Metadata.PublishedAt = &v
	}
	return &cp
}
