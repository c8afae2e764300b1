package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/deLKM/Genteblog/internal/db"
	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
	"github.com/deLKM/Genteblog/internal/upload"
	"gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) *db.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	s, err := db.Open(context.Background(), db.Config{
		Driver: db.DriverSQLite,
		Path:   dsn,
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testClock 返回可手动推进的时钟。
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// putRaw 绕过服务层直接写入记录。
func putRaw(t *testing.T, s store.Store, posts ...*model.Post) {
	t.Helper()
	err := s.WithTransaction(context.Background(), []store.Collection{store.Posts}, store.ReadWrite, func(tx store.Tx) error {
		for _, p := range posts {
			if err := tx.Posts().Put(p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("put raw posts: %v", err)
	}
}

func mustSave(t *testing.T, svc *PostService, input PostInput, userID string, draft bool) *model.Post {
	t.Helper()
	post, err := svc.SavePost(context.Background(), input, userID, draft)
	if err != nil {
		t.Fatalf("save post: %v", err)
	}
	return post
}

type memoryUploader struct {
	mu    sync.Mutex
	files map[string]upload.File
	err   error
}

func (u *memoryUploader) Upload(_ context.Context, file upload.File, dest string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.files == nil {
		u.files = make(map[string]upload.File)
	}
	u.files[dest] = file
	return "https://cdn.test/" + dest, nil
}
