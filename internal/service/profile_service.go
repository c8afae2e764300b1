package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deLKM/Genteblog/internal/model"
	"go.uber.org/zap"
)

const (
	profileAttempts    = 3
	profileBaseBackoff = time.Second
	profileHistorySize = 20
)

// Profile 聚合用户主页所需的数据；某一部分加载失败时为空，并记录在 Missing 中。
type Profile struct {
	UserID  string           `json:"userId"`
	Posts   []model.Post     `json:"posts"`
	Stats   *UserStats       `json:"stats"`
	History *InteractionPage `json:"history"`
	Missing []string         `json:"missing,omitempty"`
}

type publishedLister interface {
	GetPublishedPosts(ctx context.Context, userID string) ([]model.Post, error)
}

type userStatsReader interface {
	UserStats(ctx context.Context, userID string) (*UserStats, error)
}

type historyReader interface {
	UserInteractionHistory(ctx context.Context, userID string, before *time.Time, pageSize int) (*InteractionPage, error)
}

// ProfileService 并发读取文章、统计与互动历史，整体失败时按指数退避重试。
type ProfileService struct {
	posts   publishedLister
	stats   userStatsReader
	history historyReader
	log     *zap.Logger
	backoff time.Duration
}

// NewProfileService 构造 ProfileService
func NewProfileService(posts publishedLister, stats userStatsReader, history historyReader) *ProfileService {
	return &ProfileService{
		posts:   posts,
		stats:   stats,
		history: history,
		log:     zap.NewNop(),
		backoff: profileBaseBackoff,
	}
}

func (s *ProfileService) WithLogger(l *zap.Logger) *ProfileService {
	if l != nil {
		s.log = l
	}
	return s
}

// WithBackoff 调整首次重试的等待时间，之后每次翻倍。
func (s *ProfileService) WithBackoff(d time.Duration) *ProfileService {
	if d > 0 {
		s.backoff = d
	}
	return s
}

// UserProfile loads the profile, retrying up to three attempts when every part fails.
func (s *ProfileService) UserProfile(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}

	var lastErr error
	wait := s.backoff
	for attempt := 1; attempt <= profileAttempts; attempt++ {
		profile, err := s.fetch(ctx, userID)
		if err == nil {
			return profile, nil
		}
		lastErr = err
		s.log.Warn("profile fetch failed",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == profileAttempts {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		wait *= 2
	}
	return nil, fmt.Errorf("load profile after %d attempts: %w", profileAttempts, lastErr)
}

func (s *ProfileService) fetch(ctx context.Context, userID string) (*Profile, error) {
	profile := &Profile{UserID: userID, Posts: []model.Post{}}

	var (
		wg                          sync.WaitGroup
		postsErr, statsErr, histErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		posts, err := s.posts.GetPublishedPosts(ctx, userID)
		if err == nil {
			profile.Posts = posts
		}
		postsErr = err
	}()
	go func() {
		defer wg.Done()
		stats, err := s.stats.UserStats(ctx, userID)
		profile.Stats, statsErr = stats, err
	}()
	go func() {
		defer wg.Done()
		history, err := s.history.UserInteractionHistory(ctx, userID, nil, profileHistorySize)
		profile.History, histErr = history, err
	}()
	wg.Wait()

	if postsErr != nil && statsErr != nil && histErr != nil {
		return nil, errors.Join(postsErr, statsErr, histErr)
	}
	// Missing 按固定顺序列出缺失部分
	parts := []struct {
		name string
		err  error
	}{{"posts", postsErr}, {"stats", statsErr}, {"history", histErr}}
	for _, part := range parts {
		if part.err == nil {
			continue
		}
		profile.Missing = append(profile.Missing, part.name)
		s.log.Warn("profile part unavailable", zap.String("user_id", userID), zap.String("part", part.name), zap.Error(part.err))
	}
	if profile.Stats == nil {
		profile.Stats = &UserStats{}
	}
	if profile.History == nil {
		profile.History = &InteractionPage{Items: []model.Interaction{}}
	}
	return profile, nil
}
