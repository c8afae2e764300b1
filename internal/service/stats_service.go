package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
	"go.uber.org/zap"
)

// 热度计算参数。
const (
	hotLikeWeight     = 4
	hotCommentWeight  = 2
	hotBookmarkWeight = 3
	hotViewDivisor    = 100.0
	hotAgeOffsetHours = 2.0
	hotGravity        = 1.8

	defaultHotLimit = 10
)

var hotRanges = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// UserStats summarizes a user's activity.
type UserStats struct {
	PublishedPosts int `json:"publishedPosts"`
	TotalViews     int `json:"totalViews"`
	LikesReceived  int `json:"likesReceived"`
	LikesGiven     int `json:"likesGiven"`
	Comments       int `json:"comments"`
}

// HotPost pairs a post with its hot score.
type HotPost struct {
	Post  model.Post `json:"post"`
	Score float64    `json:"score"`
}

// Counters are the denormalized post counters.
type Counters struct {
	LikeCount     int `json:"likeCount"`
	BookmarkCount int `json:"bookmarkCount"`
	CommentCount  int `json:"commentCount"`
}

// StatsService derives rankings and counts from the stored records.
type StatsService struct {
	store store.Store
	log   *zap.Logger
	clock Clock
}

func NewStatsService(s store.Store) *StatsService {
	return &StatsService{store: s, log: zap.NewNop()}
}

func (s *StatsService) WithLogger(l *zap.Logger) *StatsService {
	if l != nil {
		s.log = l
	}
	return s
}

func (s *StatsService) WithClock(c Clock) *StatsService {
	s.clock = c
	return s
}

// HotScore 按互动加权后随发布时长衰减。
func HotScore(post *model.Post, now time.Time) float64 {
	published := post.Metadata.CreatedAt
	if post.Metadata.PublishedAt != nil {
		published = *post.Metadata.PublishedAt
	}
	ageHours := now.Sub(published).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	weight := float64(post.LikeCount*hotLikeWeight+post.CommentCount*hotCommentWeight+post.BookmarkCount*hotBookmarkWeight) +
		float64(post.ViewCount)/hotViewDivisor
	return weight / math.Pow(ageHours+hotAgeOffsetHours, hotGravity)
}

// HotPosts ranks posts published within rangeKey (24h, 7d or 30d; default 7d).
func (s *StatsService) HotPosts(ctx context.Context, rangeKey string, limit int) ([]HotPost, error) {
	window, ok := hotRanges[rangeKey]
	if !ok {
		window = hotRanges["7d"]
	}
	if limit <= 0 {
		limit = defaultHotLimit
	}
	now := utcNow(s.clock)
	since := now.Add(-window)

	hot := []HotPost{}
	err := s.store.WithTransaction(ctx, []store.Collection{store.Posts}, store.ReadOnly, func(tx store.Tx) error {
		return tx.Posts().Scan(func(p *model.Post, err error) error {
			if err != nil {
				s.log.Warn("skip unreadable post", zap.Error(err))
				return nil
			}
			if !p.IsPublished() || p.Metadata.PublishedAt == nil || p.Metadata.PublishedAt.Before(since) {
				return nil
			}
			hot = append(hot, HotPost{Post: *decodedPost(p), Score: HotScore(p, now)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hot, func(i, j int) bool {
		if hot[i].Score != hot[j].Score {
			return hot[i].Score > hot[j].Score
		}
		return hot[i].Post.ID > hot[j].Post.ID
	})
	if len(hot) > limit {
		hot = hot[:limit]
	}
	return hot, nil
}

// UserStats counts the user's published posts, likes given and active comments.
func (s *StatsService) UserStats(ctx context.Context, userID string) (*UserStats, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	stats := &UserStats{}
	scope := []store.Collection{store.Posts, store.Interactions, store.Comments}
	err := s.store.WithTransaction(ctx, scope, store.ReadOnly, func(tx store.Tx) error {
		if err := tx.Posts().Scan(func(p *model.Post, err error) error {
			if err != nil || p.AuthorID != userID || !p.IsPublished() {
				return nil
			}
			stats.PublishedPosts++
			stats.TotalViews += p.ViewCount
			stats.LikesReceived += p.LikeCount
			return nil
		}); err != nil {
			return err
		}
		if err := tx.Interactions().Scan(func(i *model.Interaction, err error) error {
			if err == nil && i.Active && !i.OnComment() && i.UserID == userID && i.Type == model.InteractionLike {
				stats.LikesGiven++
			}
			return nil
		}); err != nil {
			return err
		}
		return tx.Comments().Scan(func(c *model.Comment, err error) error {
			if err == nil && c.UserID == userID && c.Status == model.CommentActive {
				stats.Comments++
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Reconcile rewrites a post's counters from its active interactions and comments.
func (s *StatsService) Reconcile(ctx context.Context, postID string) (*Counters, error) {
	var counters *Counters
	scope := []store.Collection{store.Posts, store.Interactions, store.Comments}
	err := s.store.WithTransaction(ctx, scope, store.ReadWrite, func(tx store.Tx) error {
		post, err := tx.Posts().Get(postID)
		if err != nil {
			return notFound(err, ErrPostNotFound)
		}

		var live PostStats
		if err := countInteractions(tx, postID, &live); err != nil {
			return err
		}
		comments := 0
		if err := tx.Comments().Scan(func(c *model.Comment, err error) error {
			if err == nil && c.PostID == postID && c.Status == model.CommentActive {
				comments++
			}
			return nil
		}); err != nil {
			return err
		}

		if post.LikeCount != live.Likes || post.BookmarkCount != live.Bookmarks || post.CommentCount != comments {
			s.log.Info("counter drift repaired",
				zap.String("post_id", postID),
				zap.Int("likes_before", post.LikeCount),
				zap.Int("likes_after", live.Likes),
				zap.Int("comments_before", post.CommentCount),
				zap.Int("comments_after", comments),
			)
		}
		post.LikeCount = live.Likes
		post.BookmarkCount = live.Bookmarks
		post.CommentCount = comments
		counters = &Counters{LikeCount: live.Likes, BookmarkCount: live.Bookmarks, CommentCount: comments}
		return tx.Posts().Put(post)
	})
	if err != nil {
		return nil, err
	}
	return counters, nil
}
