package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/deLKM/Genteblog/internal/events"
	"github.com/deLKM/Genteblog/internal/metrics"
	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CommentPage is one page of comments with the cursor for the next one.
type CommentPage struct {
	Items      []model.Comment `json:"items"`
	NextCursor *time.Time      `json:"nextCursor"`
}

// CommentService 负责评论的增删改查，并维护文章的评论数与父评论的回复数。
type CommentService struct {
	store     store.Store
	publisher events.Publisher
	log       *zap.Logger
	metrics   *metrics.Metrics
	clock     Clock
}

func NewCommentService(s store.Store) *CommentService {
	return &CommentService{store: s, publisher: events.NopPublisher{}, log: zap.NewNop()}
}

func (s *CommentService) WithPublisher(p events.Publisher) *CommentService {
	if p != nil {
		s.publisher = p
	}
	return s
}

func (s *CommentService) WithLogger(l *zap.Logger) *CommentService {
	if l != nil {
		s.log = l
	}
	return s
}

func (s *CommentService) WithMetrics(m *metrics.Metrics) *CommentService {
	s.metrics = m
	return s
}

func (s *CommentService) WithClock(c Clock) *CommentService {
	s.clock = c
	return s
}

var commentScope = []store.Collection{store.Comments, store.Posts}

// Create adds a comment to a post, or a reply when parentID is set.
func (s *CommentService) Create(ctx context.Context, postID, userID, content string, parentID *string) (comment *model.Comment, err error) {
	defer func() { s.metrics.Operation("create_comment", err) }()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}
	if userID == "" {
		return nil, ErrInvalidUser
	}
	if parentID != nil && strings.TrimSpace(*parentID) == "" {
		parentID = nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate comment id: %w", err)
	}
	now := utcNow(s.clock)
	comment = &model.Comment{
		ID:        id.String(),
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    model.CommentActive,
	}

	err = s.store.WithTransaction(ctx, commentScope, store.ReadWrite, func(tx store.Tx) error {
		post, err := tx.Posts().Get(postID)
		if err != nil {
			return notFound(err, ErrPostNotFound)
		}
		if parentID != nil {
			parent, err := tx.Comments().Get(*parentID)
			if err != nil {
				return notFound(err, ErrCommentNotFound)
			}
			if parent.PostID != postID || parent.Status == model.CommentDeleted {
				return ErrCommentNotFound
			}
			parent.ReplyCount++
			if err := tx.Comments().Put(parent); err != nil {
				return err
			}
		}
		post.CommentCount++
		if err := tx.Posts().Put(post); err != nil {
			return err
		}
		return tx.Comments().Put(comment)
	})
	if err != nil {
		return nil, err
	}

	if perr := s.publisher.Publish(ctx, events.SubjectCommentCreated, events.CommentEvent{
		CommentID: comment.ID,
		PostID:    postID,
		UserID:    userID,
		ParentID:  parentID,
		Timestamp: now,
	}); perr != nil {
		s.log.Warn("publish event failed", zap.String("subject", events.SubjectCommentCreated), zap.Error(perr))
	}
	return comment, nil
}

// CommentInteractionResult is the state of a comment like after a toggle.
type CommentInteractionResult struct {
	Active    bool `json:"active"`
	LikeCount int  `json:"likeCount"`
}

// HandleCommentInteraction toggles a like on a comment and adjusts the
// comment's LikeCount in the same transaction. The counter never drops below 0.
func (s *CommentService) HandleCommentInteraction(ctx context.Context, commentID, userID, kind string) (result *CommentInteractionResult, err error) {
	defer func() { s.metrics.Operation("handle_comment_interaction", err) }()

	if !model.ValidCommentInteractionType(kind) {
		return nil, ErrInvalidInteraction
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	now := utcNow(s.clock)
	var postID string
	err = s.store.WithTransaction(ctx, []store.Collection{store.Interactions, store.Comments}, store.ReadWrite, func(tx store.Tx) error {
		comment, err := tx.Comments().Get(commentID)
		if err != nil {
			return notFound(err, ErrCommentNotFound)
		}
		if comment.Status == model.CommentDeleted {
			return ErrCommentNotFound
		}
		postID = comment.PostID

		key := model.InteractionKey(commentID, userID, kind)
		interaction, err := tx.Interactions().Get(key)
		if err != nil && !isNotFound(err) {
			return err
		}

		delta := 1
		switch {
		case interaction == nil:
			interaction = &model.Interaction{
				ID:        key,
				PostID:    comment.PostID,
				CommentID: commentID,
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

		comment.LikeCount = floorZero(comment.LikeCount + delta)
		if err := tx.Interactions().Put(interaction); err != nil {
			return err
		}
		if err := tx.Comments().Put(comment); err != nil {
			return err
		}
		result = &CommentInteractionResult{Active: interaction.Active, LikeCount: comment.LikeCount}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Interaction("comment_"+kind, result.Active)
	if perr := s.publisher.Publish(ctx, events.SubjectCommentInteraction, events.InteractionEvent{
		PostID:    postID,
		CommentID: commentID,
		UserID:    userID,
		Type:      kind,
		Active:    result.Active,
		LikeCount: result.LikeCount,
		Timestamp: now,
	}); perr != nil {
		s.log.Warn("publish event failed", zap.String("subject", events.SubjectCommentInteraction), zap.Error(perr))
	}
	return result, nil
}

// ListByPost returns active top-level comments, newest first, strictly before the cursor.
func (s *CommentService) ListByPost(ctx context.Context, postID string, before *time.Time, size int) (*CommentPage, error) {
	items, err := s.collect(ctx, func(c *model.Comment) bool {
		if c.PostID != postID || !c.IsTopLevel() {
			return false
		}
		return before == nil || c.CreatedAt.Before(*before)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	return commentPage(items, size), nil
}

// Replies returns active replies to a comment, oldest first, strictly after the cursor.
func (s *CommentService) Replies(ctx context.Context, commentID string, after *time.Time, size int) (*CommentPage, error) {
	items, err := s.collect(ctx, func(c *model.Comment) bool {
		if c.ParentID == nil || *c.ParentID != commentID {
			return false
		}
		return after == nil || c.CreatedAt.After(*after)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return commentPage(items, size), nil
}

func (s *CommentService) collect(ctx context.Context, keep func(*model.Comment) bool) ([]model.Comment, error) {
	var items []model.Comment
	err := s.store.WithTransaction(ctx, []store.Collection{store.Comments}, store.ReadOnly, func(tx store.Tx) error {
		return tx.Comments().Scan(func(c *model.Comment, err error) error {
			if err != nil {
				s.log.Warn("skip unreadable comment", zap.Error(err))
				return nil
			}
			if c.Status == model.CommentActive && keep(c) {
				items = append(items, *c)
			}
			return nil
		})
	})
	return items, err
}

func commentPage(items []model.Comment, size int) *CommentPage {
	if size <= 0 {
		size = defaultPageSize
	}
	page := &CommentPage{Items: []model.Comment{}}
	if len(items) > size {
		page.Items = items[:size]
		cursor := page.Items[size-1].CreatedAt
		page.NextCursor = &cursor
	} else if len(items) > 0 {
		page.Items = items
	}
	return page
}

// Get returns one comment, deleted or not.
func (s *CommentService) Get(ctx context.Context, id string) (*model.Comment, error) {
	var comment *model.Comment
	err := s.store.WithTransaction(ctx, []store.Collection{store.Comments}, store.ReadOnly, func(tx store.Tx) error {
		c, err := tx.Comments().Get(id)
		if err != nil {
			return notFound(err, ErrCommentNotFound)
		}
		comment = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// Update replaces the content of an active comment.
func (s *CommentService) Update(ctx context.Context, id, content string) (comment *model.Comment, err error) {
	defer func() { s.metrics.Operation("update_comment", err) }()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}
	now := utcNow(s.clock)
	err = s.store.WithTransaction(ctx, []store.Collection{store.Comments}, store.ReadWrite, func(tx store.Tx) error {
		c, err := tx.Comments().Get(id)
		if err != nil {
			return notFound(err, ErrCommentNotFound)
		}
		if c.Status == model.CommentDeleted {
			return ErrCommentNotFound
		}
		c.Content = content
		c.IsEdited = true
		c.UpdatedAt = now
		comment = c
		return tx.Comments().Put(c)
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// Delete soft deletes a comment and releases its share of the counters.
// Deleting an already deleted comment does nothing.
func (s *CommentService) Delete(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.Operation("delete_comment", err) }()

	now := utcNow(s.clock)
	return s.store.WithTransaction(ctx, commentScope, store.ReadWrite, func(tx store.Tx) error {
		c, err := tx.Comments().Get(id)
		if err != nil {
			return notFound(err, ErrCommentNotFound)
		}
		if c.Status == model.CommentDeleted {
			return nil
		}
		c.Status = model.CommentDeleted
		c.UpdatedAt = now
		if err := tx.Comments().Put(c); err != nil {
			return err
		}

		if !c.IsTopLevel() {
			parent, err := tx.Comments().Get(*c.ParentID)
			switch {
			case err == nil:
				parent.ReplyCount = floorZero(parent.ReplyCount - 1)
				if err := tx.Comments().Put(parent); err != nil {
					return err
				}
			case !isNotFound(err):
				return err
			}
		}

		post, err := tx.Posts().Get(c.PostID)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		post.CommentCount = floorZero(post.CommentCount - 1)
		return tx.Posts().Put(post)
	})
}
