package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deLKM/Genteblog/internal/codec"
	"github.com/deLKM/Genteblog/internal/events"
	"github.com/deLKM/Genteblog/internal/metrics"
	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
	"github.com/deLKM/Genteblog/internal/upload"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	summaryLength        = 200
	seoDescriptionLength = 160
	readingSpeed         = 300
)

// ListPolicy decides what listing does with records that cannot be decoded.
type ListPolicy int

const (
	// SkipCorrupt logs and skips bad records, returning the rest.
	SkipCorrupt ListPolicy = iota
	// FailOnCorrupt aborts the listing with ErrCorruptRecord.
	FailOnCorrupt
)

// PostInput represents fields accepted when creating or updating a post.
type PostInput struct {
	// ID 为空时新建文章，否则覆盖已有文章。
	ID       string
	Title    string
	Content  string
	Category string
	// Tags 是逗号分隔的标签文本。
	Tags     string
	Featured bool
	// CoverImage keeps an already hosted cover when Cover is nil.
	CoverImage *string
	Cover      *upload.File
}

// InteractionResult is the state after a toggle.
type InteractionResult struct {
	Active        bool `json:"active"`
	LikeCount     int  `json:"likeCount"`
	BookmarkCount int  `json:"bookmarkCount"`
}

// PostService is the single read/write path for posts.
type PostService struct {
	store     store.Store
	renderer  Renderer
	uploader  upload.Uploader
	publisher events.Publisher
	log       *zap.Logger
	metrics   *metrics.Metrics
	clock     Clock
	policy    ListPolicy
}

// NewPostService creates a PostService with a markdown renderer, no uploader
// and a no-op event publisher.
func NewPostService(s store.Store) *PostService {
	return &PostService{
		store:     s,
		renderer:  NewMarkdownRenderer(),
		publisher: events.NopPublisher{},
		log:       zap.NewNop(),
	}
}

func (s *PostService) WithRenderer(r Renderer) *PostService {
	if r != nil {
		s.renderer = r
	}
	return s
}

func (s *PostService) WithUploader(u upload.Uploader) *PostService {
	s.uploader = u
	return s
}

func (s *PostService) WithPublisher(p events.Publisher) *PostService {
	if p != nil {
		s.publisher = p
	}
	return s
}

func (s *PostService) WithLogger(l *zap.Logger) *PostService {
	if l != nil {
		s.log = l
	}
	return s
}

func (s *PostService) WithMetrics(m *metrics.Metrics) *PostService {
	s.metrics = m
	return s
}

// WithClock 允许测试固定当前时间。
func (s *PostService) WithClock(c Clock) *PostService {
	s.clock = c
	return s
}

func (s *PostService) WithListPolicy(p ListPolicy) *PostService {
	s.policy = p
	return s
}

// SavePost creates a post when input.ID is empty, otherwise overwrites the
// stored post and appends a revision. The returned post has plain content.
func (s *PostService) SavePost(ctx context.Context, input PostInput, userID string, isDraft bool) (post *model.Post, err error) {
	defer func() { s.metrics.Operation("save_post", err) }()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	now := utcNow(s.clock)
	isUpdate := strings.TrimSpace(input.ID) != ""

	id := strings.TrimSpace(input.ID)
	if !isUpdate {
		generated, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate post id: %w", err)
		}
		id = generated.String()
	}

	renderedHTML, err := s.renderer.Render(input.Content)
	if err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	cover := input.CoverImage
	var coverKey string
	if input.Cover != nil {
		if isUpdate {
			if err := s.requirePost(ctx, id); err != nil {
				return nil, err
			}
		}
		url, key, err := s.uploadCover(ctx, id, *input.Cover)
		if err != nil {
			return nil, err
		}
		cover, coverKey = &url, key
	}

	tags := parseTags(input.Tags)
	status := model.StatusPublished
	reason := model.RevisionReasonPublish
	if isDraft {
		status = model.StatusDraft
		reason = model.RevisionReasonDraft
	}
	wordCount := utf8.RuneCountInString(input.Content)

	stored := &model.Post{
		ID:          id,
		Title:       strings.TrimSpace(input.Title),
		Content:     codec.Encode(input.Content),
		ContentHTML: codec.Encode(renderedHTML),
		Summary:     buildSummary(input.Content, summaryLength),
		Category:    strings.TrimSpace(input.Category),
		Tags:        tags,
		AuthorID:    userID,
		Status:      status,
		CoverImage:  cover,
		Featured:    input.Featured,
		Metadata: model.PostMetadata{
			WordCount:    wordCount,
			ReadingTime:  readingTime(wordCount),
			CreatedAt:    now,
			LastEditedAt: now,
			UpdatedAt:    now,
		},
		SEO: model.PostSEO{
			Description: buildSummary(input.Content, seoDescriptionLength),
			Keywords:    seoKeywords(tags, input.Category),
			OGImage:     cover,
		},
	}
	if !isDraft {
		published := now
		stored.Metadata.PublishedAt = &published
	}

	err = s.store.WithTransaction(ctx, []store.Collection{store.Posts, store.Revisions}, store.ReadWrite, func(tx store.Tx) error {
		if isUpdate {
			existing, err := tx.Posts().Get(id)
			if err != nil {
				return notFound(err, ErrPostNotFound)
			}
			stored.AuthorID = existing.AuthorID
			stored.Metadata.CreatedAt = existing.Metadata.CreatedAt
			if isDraft {
				stored.Metadata.PublishedAt = existing.Metadata.PublishedAt
			}
			stored.ViewCount = existing.ViewCount
			stored.LikeCount = existing.LikeCount
			stored.BookmarkCount = existing.BookmarkCount
			stored.CommentCount = existing.CommentCount
		}
		if err := tx.Posts().Put(stored); err != nil {
			return err
		}
		if !isUpdate {
			return nil
		}
		return tx.Revisions().Add(&model.Revision{
			PostID:    id,
			Content:   stored.Content,
			AuthorID:  userID,
			CreatedAt: now,
			Reason:    reason,
		})
	})
	if err != nil {
		if coverKey != "" {
			// 上传器没有删除接口，留给运维清理
			s.log.Warn("orphaned cover upload",
				zap.String("post_id", id),
				zap.String("key", coverKey),
				zap.String("url", *cover),
				zap.Error(err),
			)
		}
		return nil, err
	}

	event := events.PostEvent{
		PostID:    stored.ID,
		AuthorID:  stored.AuthorID,
		Title:     stored.Title,
		Status:    stored.Status,
		Updated:   isUpdate,
		Timestamp: now,
	}
	s.publish(ctx, events.SubjectPostSaved, event)
	if !isDraft {
		s.publish(ctx, events.SubjectPostPublished, event)
	}

	s.log.Info("post saved",
		zap.String("post_id", stored.ID),
		zap.String("status", stored.Status),
		zap.Bool("update", isUpdate),
	)
	return decodedPost(stored), nil
}

// GetPost loads a post and counts one view.
func (s *PostService) GetPost(ctx context.Context, id string) (post *model.Post, err error) {
	defer func() { s.metrics.Operation("get_post", err) }()

	err = s.store.WithTransaction(ctx, []store.Collection{store.Posts}, store.ReadWrite, func(tx store.Tx) error {
		stored, err := tx.Posts().Get(id)
		if err != nil {
			return notFound(err, ErrPostNotFound)
		}
		stored.ViewCount++
		if err := tx.Posts().Put(stored); err != nil {
			return err
		}
		post = decodedPost(stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// PeekPost loads a post without counting a view, for ownership checks.
func (s *PostService) PeekPost(ctx context.Context, id string) (*model.Post, error) {
	var post *model.Post
	err := s.store.WithTransaction(ctx, []store.Collection{store.Posts}, store.ReadOnly, func(tx store.Tx) error {
		stored, err := tx.Posts().Get(id)
		if err != nil {
			return notFound(err, ErrPostNotFound)
		}
		post = decodedPost(stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// GetDrafts returns the user's drafts, most recently updated first.
func (s *PostService) GetDrafts(ctx context.Context, userID string) ([]model.Post, error) {
	posts, err := s.listByAuthor(ctx, userID, model.StatusDraft)
	s.metrics.Operation("get_drafts", err)
	if err != nil {
		return nil, err
	}
	sortPosts(posts, func(p *model.Post) time.Time { return p.Metadata.UpdatedAt })
	return posts, nil
}

// GetPublishedPosts returns the user's published posts, newest publication first.
func (s *PostService) GetPublishedPosts(ctx context.Context, userID string) ([]model.Post, error) {
	posts, err := s.listByAuthor(ctx, userID, model.StatusPublished)
	s.metrics.Operation("get_published_posts", err)
	if err != nil {
		return nil, err
	}
	sortPosts(posts, publishedAt)
	return posts, nil
}

func (s *PostService) listByAuthor(ctx context.Context, userID, status string) ([]model.Post, error) {
	posts := []model.Post{}
	err := s.store.WithTransaction(ctx, []store.Collection{store.Posts}, store.ReadOnly, func(tx store.Tx) error {
		return tx.Posts().Scan(func(p *model.Post, err error) error {
			if err != nil {
				return s.corrupt("", err)
			}
			if p.AuthorID != userID || p.Status != status {
				return nil
			}
			decoded, err := strictDecodedPost(p)
			if err != nil {
				return s.corrupt(p.ID, err)
			}
			posts = append(posts, *decoded)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// corrupt applies the list policy to one unreadable record.
func (s *PostService) corrupt(id string, cause error) error {
	if s.policy == FailOnCorrupt {
		return fmt.Errorf("%w: post %q: %v", ErrCorruptRecord, id, cause)
	}
	s.metrics.SkippedRecord()
	s.log.Warn("skip unreadable post", zap.String("post_id", id), zap.Error(cause))
	return nil
}

// UpdatePostStatus sets the status; publishing stamps publishedAt.
func (s *PostService) UpdatePostStatus(ctx context.Context, id, status string) (post *model.Post, err error) {
	defer func() { s.metrics.Operation("update_post_status", err) }()

	if status != model.StatusDraft && status != model.StatusPublished {
		return nil, ErrInvalidStatus
	}
	now := utcNow(s.clock)
	err = s.store.WithTransaction(ctx, []store.Collection{store.Posts}, store.ReadWrite, func(tx store.Tx) error {
		stored, err := tx.Posts().Get(id)
		if err != nil {
			return notFound(err, ErrPostNotFound)
		}
		stored.Status = status
		stored.Metadata.UpdatedAt = now
		if status == model.StatusPublished {
			published := now
			stored.Metadata.PublishedAt = &published
		}
		if err := tx.Posts().Put(stored); err != nil {
			return err
		}
		post = decodedPost(stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if status == model.StatusPublished {
		s.publish(ctx, events.SubjectPostPublished, events.PostEvent{
			PostID:    post.ID,
			AuthorID:  post.AuthorID,
			Title:     post.Title,
			Status:    post.Status,
			Updated:   true,
			Timestamp: now,
		})
	}
	return post, nil
}

// HandlePostInteraction toggles a like or bookmark and adjusts the post's
// counter in the same transaction.
func (s *PostService) HandlePostInteraction(ctx context.Context, postID, userID, kind string) (result *InteractionResult, err error) {
	defer func() { s.metrics.Operation("handle_interaction", err) }()

	if !model.ValidInteractionType(kind) {
		return nil, ErrInvalidInteraction
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	now := utcNow(s.clock)
	err = s.store.WithTransaction(ctx, []store.Collection{store.Interactions, store.Posts}, store.ReadWrite, func(tx store.Tx) error {
		post, err := tx.Posts().Get(postID)
		if err != nil {
			return notFound(err, ErrPostNotFound)
		}

		key := model.InteractionKey(postID, userID, kind)
		interaction, err := tx.Interactions().Get(key)
		if err != nil && !isNotFound(err) {
			return err
		}

		delta := 1
		switch {
		case interaction == nil:
			interaction = &model.Interaction{
				ID:        key,
				PostID:    postID,
				UserID:    userID,
				Type:      kind,
				CreatedAt: now,
				Active:    true,
				UpdatedAt: now,
			}
		case interaction.Active:
			interaction.Active = false
			interaction.UpdatedAt = now
			delta = -1
		default:
			interaction.Active = true
			interaction.UpdatedAt = now
		}

		if kind == model.InteractionLike {
			post.LikeCount = floorZero(post.LikeCount + delta)
		} else {
			post.BookmarkCount = floorZero(post.BookmarkCount + delta)
		}
		if err := tx.Interactions().Put(interaction); err != nil {
			return err
		}
		if err := tx.Posts().Put(post); err != nil {
			return err
		}
		result = &InteractionResult{
			Active:        interaction.Active,
			LikeCount:     post.LikeCount,
			BookmarkCount: post.BookmarkCount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Interaction(kind, result.Active)
	s.publish(ctx, events.SubjectPostInteraction, events.InteractionEvent{
		PostID:        postID,
		UserID:        userID,
		Type:          kind,
		Active:        result.Active,
		LikeCount:     result.LikeCount,
		BookmarkCount: result.BookmarkCount,
		Timestamp:     now,
	})
	return result, nil
}

// ListRevisions returns a post's revisions with decoded content, newest first.
func (s *PostService) ListRevisions(ctx context.Context, postID string) ([]model.Revision, error) {
	var revisions []model.Revision
	err := s.store.WithTransaction(ctx, []store.Collection{store.Posts, store.Revisions}, store.ReadOnly, func(tx store.Tx) error {
		if _, err := tx.Posts().Get(postID); err != nil {
			return notFound(err, ErrPostNotFound)
		}
		list, err := tx.Revisions().ListByPost(postID)
		if err != nil {
			return err
		}
		revisions = list
		return nil
	})
	s.metrics.Operation("list_revisions", err)
	if err != nil {
		return nil, err
	}
	for i := range revisions {
		revisions[i].Content = codec.Decode(revisions[i].Content)
	}
	if revisions == nil {
		revisions = []model.Revision{}
	}
	return revisions, nil
}

func (s *PostService) requirePost(ctx context.Context, id string) error {
	return s.store.WithTransaction(ctx, []store.Collection{store.Posts}, store.ReadOnly, func(tx store.Tx) error {
		_, err := tx.Posts().Get(id)
		return notFound(err, ErrPostNotFound)
	})
}

// uploadCover 返回封面的公开地址和存储键。
func (s *PostService) uploadCover(ctx context.Context, postID string, file upload.File) (url, key string, err error) {
	if s.uploader == nil {
		return "", "", fmt.Errorf("%w: no uploader configured", upload.ErrUploadFailed)
	}
	ext, err := upload.Detect(file.Data)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", upload.ErrUploadFailed, err)
	}
	key = fmt.Sprintf("posts/%s/cover.%s", postID, ext)
	url, err = s.uploader.Upload(ctx, file, key)
	if err != nil {
		s.log.Warn("cover upload failed", zap.String("post_id", postID), zap.Error(err))
		return "", "", err
	}
	return url, key, nil
}

func (s *PostService) publish(ctx context.Context, subject string, event any) {
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		s.log.Warn("publish event failed", zap.String("subject", subject), zap.Error(err))
	}
}

// parseTags splits comma separated tags, trimming and dropping empties and
// duplicates while keeping the first-seen order.
func parseTags(raw string) []string {
	tags := []string{}
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

var markdownMarks = strings.NewReplacer("#", "", "*", "", "`", "")

// buildSummary 去掉 # * ` 标记并修剪首尾空白，截取前 limit 个字符，超出部分以 ... 结尾。
// 正文内部的换行与空白原样保留。
func buildSummary(content string, limit int) string {
	plain := strings.TrimSpace(markdownMarks.Replace(content))
	if utf8.RuneCountInString(plain) <= limit {
		return plain
	}
	return string([]rune(plain)[:limit]) + "..."
}

func readingTime(wordCount int) int {
	return (wordCount + readingSpeed - 1) / readingSpeed
}

func seoKeywords(tags []string, category string) []string {
	keywords := append([]string{}, tags...)
	if c := strings.TrimSpace(category); c != "" {
		keywords = append(keywords, c)
	}
	return keywords
}

func publishedAt(p *model.Post) time.Time {
	if p.Metadata.PublishedAt == nil {
		return time.Time{}
	}
	return *p.Metadata.PublishedAt
}

// sortPosts orders by key descending, ties by id descending.
func sortPosts(posts []model.Post, key func(*model.Post) time.Time) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := key(&posts[i]), key(&posts[j])
		if !a.Equal(b) {
			return a.After(b)
		}
		return posts[i].ID > posts[j].ID
	})
}
