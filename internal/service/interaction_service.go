package service

import (
	"context"
	"sort"
	"time"

	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
)

const defaultPageSize = 20

// InteractionPage is one page of a user's interactions. NextCursor is the
// createdAt of the last item, nil when there is nothing more.
type InteractionPage struct {
	Items      []model.Interaction `json:"items"`
	NextCursor *time.Time          `json:"nextCursor"`
}

// PostStats is the live count of active interactions on a post.
type PostStats struct {
	Likes     int `json:"likes"`
	Bookmarks int `json:"bookmarks"`
}

// InteractionService answers read-only questions about likes and bookmarks.
type InteractionService struct {
	store store.Store
}

func NewInteractionService(s store.Store) *InteractionService {
	return &InteractionService{store: s}
}

// UserBookmarks lists the user's active bookmarks, newest first.
func (s *InteractionService) UserBookmarks(ctx context.Context, userID string, before *time.Time, pageSize int) (*InteractionPage, error) {
	return s.page(ctx, userID, model.InteractionBookmark, before, pageSize)
}

// UserLikes lists the user's active likes, newest first.
func (s *InteractionService) UserLikes(ctx context.Context, userID string, before *time.Time, pageSize int) (*InteractionPage, error) {
	return s.page(ctx, userID, model.InteractionLike, before, pageSize)
}

// UserInteractionHistory lists every active interaction of the user.
func (s *InteractionService) UserInteractionHistory(ctx context.Context, userID string, before *time.Time, pageSize int) (*InteractionPage, error) {
	return s.page(ctx, userID, "", before, pageSize)
}

func (s *InteractionService) page(ctx context.Context, userID, kind string, before *time.Time, pageSize int) (*InteractionPage, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var matched []model.Interaction
	err := s.store.WithTransaction(ctx, []store.Collection{store.Interactions}, store.ReadOnly, func(tx store.Tx) error {
		return tx.Interactions().Scan(func(i *model.Interaction, err error) error {
			if err != nil {
				return nil
			}
			if !i.Active || i.OnComment() || i.UserID != userID || (kind != "" && i.Type != kind) {
				return nil
			}
			if before != nil && !i.CreatedAt.Before(*before) {
				return nil
			}
			matched = append(matched, *i)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matched, func(a, b int) bool {
		if !matched[a].CreatedAt.Equal(matched[b].CreatedAt) {
			return matched[a].CreatedAt.After(matched[b].CreatedAt)
		}
		return matched[a].ID > matched[b].ID
	})

	page := &InteractionPage{Items: []model.Interaction{}}
	if len(matched) > pageSize {
		page.Items = matched[:pageSize]
		cursor := page.Items[pageSize-1].CreatedAt
		page.NextCursor = &cursor
	} else if len(matched) > 0 {
		page.Items = matched
	}
	return page, nil
}

// IsActive reports whether the user currently has an active interaction of kind on the post.
func (s *InteractionService) IsActive(ctx context.Context, postID, userID, kind string) (bool, error) {
	if !model.ValidInteractionType(kind) {
		return false, ErrInvalidInteraction
	}
	active := false
	err := s.store.WithTransaction(ctx, []store.Collection{store.Interactions}, store.ReadOnly, func(tx store.Tx) error {
		i, err := tx.Interactions().Get(model.InteractionKey(postID, userID, kind))
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		active = i.Active
		return nil
	})
	return active, err
}

// PostStats counts active likes and bookmarks from the interaction records.
func (s *InteractionService) PostStats(ctx context.Context, postID string) (*PostStats, error) {
	stats := &PostStats{}
	err := s.store.WithTransaction(ctx, []store.Collection{store.Interactions}, store.ReadOnly, func(tx store.Tx) error {
		return countInteractions(tx, postID, stats)
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func countInteractions(tx store.Tx, postID string, stats *PostStats) error {
	return tx.Interactions().Scan(func(i *model.Interaction, err error) error {
		if err != nil || !i.Active || i.OnComment() || i.PostID != postID {
			return nil
		}
		switch i.Type {
		case model.InteractionLike:
			stats.Likes++
		case model.InteractionBookmark:
			stats.Bookmarks++
		}
		return nil
	})
}
