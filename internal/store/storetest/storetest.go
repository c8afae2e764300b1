// Package storetest holds behaviour checks shared by every store.Store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener returns a fresh, empty store for one subtest.
type Opener func(t *testing.T) store.Store

// Run exercises the storage port contract against a backend.
func Run(t *testing.T, open Opener) {
	t.Run("PostPutGet", func(t *testing.T) { testPostPutGet(t, open(t)) })
	t.Run("PostScan", func(t *testing.T) { testPostScan(t, open(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("ScopeEnforced", func(t *testing.T) { testScope(t, open(t)) })
	t.Run("Revisions", func(t *testing.T) { testRevisions(t, open(t)) })
	t.Run("RevisionRetention", func(t *testing.T) { testRevisionRetention(t, open(t)) })
	t.Run("InteractionRetention", func(t *testing.T) { testInteractionRetention(t, open(t)) })
	t.Run("Comments", func(t *testing.T) { testComments(t, open(t)) })
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func update(t *testing.T, s store.Store, cols []store.Collection, fn func(tx store.Tx) error) {
	t.Helper()
	require.NoError(t, s.WithTransaction(context.Background(), cols, store.ReadWrite, fn))
}

func view(t *testing.T, s store.Store, cols []store.Collection, fn func(tx store.Tx) error) {
	t.Helper()
	require.NoError(t, s.WithTransaction(context.Background(), cols, store.ReadOnly, fn))
}

func samplePost(id string) *model.Post {
	cover := "https://cdn.example.com/" + id + ".png"
	published := base.Add(time.Hour)
	return &model.Post{
		ID:          id,
		Title:       "标题 " + id,
		Content:     "z1:encoded",
		ContentHTML: "z1:html",
		Summary:     "summary",
		Category:    "tech",
		Tags:        []string{"go", "存储"},
		AuthorID:    "author-1",
		Status:      model.StatusPublished,
		CoverImage:  &cover,
		Metadata: model.PostMetadata{
			WordCount:    10,
			ReadingTime:  1,
			CreatedAt:    base,
			LastEditedAt: base,
			UpdatedAt:    base,
			PublishedAt:  &published,
		},
		ViewCount: 3,
		LikeCount: 2,
		SEO: model.PostSEO{
			Description: "summary",
			Keywords:    []string{"go", "存储", "tech"},
			OGImage:     &cover,
		},
	}
}

func testPostPutGet(t *testing.T, s store.Store) {
	post := samplePost("p1")
	update(t, s, []store.Collection{store.Posts}, func(tx store.Tx) error {
		return tx.Posts().Put(post)
	})

	view(t, s, []store.Collection{store.Posts}, func(tx store.Tx) error {
		got, err := tx.Posts().Get("p1")
		require.NoError(t, err)
		assert.Equal(t, post.Title, got.Title)
		assert.Equal(t, post.Tags, got.Tags)
		assert.Equal(t, post.SEO.Keywords, got.SEO.Keywords)
		require.NotNil(t, got.CoverImage)
		assert.Equal(t, *post.CoverImage, *got.CoverImage)
		assert.True(t, post.Metadata.CreatedAt.Equal(got.Metadata.CreatedAt))
		require.NotNil(t, got.Metadata.PublishedAt)
		assert.True(t, post.Metadata.PublishedAt.Equal(*got.Metadata.PublishedAt))
		assert.Equal(t, 3, got.ViewCount)

		_, err = tx.Posts().Get("missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})

	// Put overwrites in place.
	post.Title = "新标题"
	post.ViewCount = 4
	update(t, s, []store.Collection{store.Posts}, func(tx store.Tx) error {
		return tx.Posts().Put(post)
	})
	view(t, s, []store.Collection{store.Posts}, func(tx store.Tx) error {
		got, err := tx.Posts().Get("p1")
		require.NoError(t, err)
		assert.Equal(t, "新标题", got.Title)
		assert.Equal(t, 4, got.ViewCount)
		return nil
	})
}

func testPostScan(t *testing.T, s store.Store) {
	update(t, s, []store.Collection{store.Posts}, func(tx store.Tx) error {
		for _, id := range []string{"b", "a", "c"} {
			if err := tx.Posts().Put(samplePost(id)); err != nil {
				return err
			}
		}
		return nil
	})

	var seen []string
	view(t, s, []store.Collection{store.Posts}, func(tx store.Tx) error {
		return tx.Posts().Scan(func(p *model.Post, err error) error {
			require.NoError(t, err)
			seen = append(seen, p.ID)
			return nil
		})
	})
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)

	stop := errors.New("stop")
	err := s.WithTransaction(context.Background(), []store.Collection{store.Posts}, store.ReadOnly, func(tx store.Tx) error {
		return tx.Posts().Scan(func(*model.Post, error) error { return stop })
	})
	assert.ErrorIs(t, err, stop)
}

func testRollback(t *testing.T, s store.Store) {
	boom := errors.New("boom")
	err := s.WithTransaction(context.Background(), []store.Collection{store.Posts, store.Revisions}, store.ReadWrite, func(tx store.Tx) error {
		if err := tx.Posts().Put(samplePost("rolled")); err != nil {
			return err
		}
		if err := tx.Revisions().Add(&model.Revision{PostID: "rolled", CreatedAt: base}); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrTransactionFailed)
	assert.ErrorIs(t, err, boom)

	view(t, s, []store.Collection{store.Posts, store.Revisions}, func(tx store.Tx) error {
		_, err := tx.Posts().Get("rolled")
		assert.ErrorIs(t, err, store.ErrNotFound)
		revisions, err := tx.Revisions().ListByPost("rolled")
		require.NoError(t, err)
		assert.Empty(t, revisions)
		return nil
	})
}

func testScope(t *testing.T, s store.Store) {
	err := s.WithTransaction(context.Background(), []store.Collection{store.Posts}, store.ReadOnly, func(tx store.Tx) error {
		return tx.Posts().Put(samplePost("ro"))
	})
	assert.ErrorIs(t, err, store.ErrReadOnly)

	err = s.WithTransaction(context.Background(), []store.Collection{store.Posts}, store.ReadWrite, func(tx store.Tx) error {
		_, err := tx.Interactions().Get("x")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotInScope)
}

func testRevisions(t *testing.T, s store.Store) {
	var first, second model.Revision
	first = model.Revision{PostID: "p1", Content: "v1", AuthorID: "u", CreatedAt: base, Reason: model.RevisionReasonDraft}
	second = model.Revision{PostID: "p1", Content: "v2", AuthorID: "u", CreatedAt: base.Add(time.Minute), Reason: model.RevisionReasonPublish}
	update(t, s, []store.Collection{store.Revisions}, func(tx store.Tx) error {
		if err := tx.Revisions().Add(&first); err != nil {
			return err
		}
		return tx.Revisions().Add(&second)
	})
	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	restored := model.Revision{ID: 100, PostID: "p2", Content: "old", CreatedAt: base}
	update(t, s, []store.Collection{store.Revisions}, func(tx store.Tx) error {
		return tx.Revisions().Put(&restored)
	})

	next := model.Revision{PostID: "p2", Content: "new", CreatedAt: base.Add(time.Hour)}
	update(t, s, []store.Collection{store.Revisions}, func(tx store.Tx) error {
		return tx.Revisions().Add(&next)
	})
	assert.Greater(t, next.ID, uint64(100))

	view(t, s, []store.Collection{store.Revisions}, func(tx store.Tx) error {
		list, err := tx.Revisions().ListByPost("p1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "v2", list[0].Content)
		assert.Equal(t, model.RevisionReasonPublish, list[0].Reason)

		count := 0
		err = tx.Revisions().Scan(func(r *model.Revision, err error) error {
			require.NoError(t, err)
			count++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 4, count)
		return nil
	})
}

func testRevisionRetention(t *testing.T, s store.Store) {
	cutoff := base
	times := map[string]time.Time{
		"old":    cutoff.Add(-48 * time.Hour),
		"older":  cutoff.Add(-time.Second),
		"edge":   cutoff,
		"recent": cutoff.Add(time.Second),
	}
	update(t, s, []store.Collection{store.Revisions}, func(tx store.Tx) error {
		for name, at := range times {
			if err := tx.Revisions().Add(&model.Revision{PostID: name, CreatedAt: at}); err != nil {
				return err
			}
		}
		return nil
	})

	var deleted int
	update(t, s, []store.Collection{store.Revisions}, func(tx store.Tx) error {
		var err error
		deleted, err = tx.Revisions().DeleteBefore(cutoff)
		return err
	})
	assert.Equal(t, 2, deleted)

	view(t, s, []store.Collection{store.Revisions}, func(tx store.Tx) error {
		var left []string
		err := tx.Revisions().Scan(func(r *model.Revision, err error) error {
			require.NoError(t, err)
			left = append(left, r.PostID)
			return nil
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"edge", "recent"}, left)
		return nil
	})
}

func testInteractionRetention(t *testing.T, s store.Store) {
	cutoff := base
	records := []model.Interaction{
		{ID: "p_u1_like", PostID: "p", UserID: "u1", Type: model.InteractionLike, Active: false, CreatedAt: cutoff.Add(-72 * time.Hour), UpdatedAt: cutoff.Add(-time.Hour)},
		{ID: "p_u2_like", PostID: "p", UserID: "u2", Type: model.InteractionLike, Active: true, CreatedAt: cutoff.Add(-72 * time.Hour), UpdatedAt: cutoff.Add(-time.Hour)},
		{ID: "p_u3_like", PostID: "p", UserID: "u3", Type: model.InteractionLike, Active: false, CreatedAt: cutoff.Add(-72 * time.Hour), UpdatedAt: cutoff.Add(time.Hour)},
	}
	update(t, s, []store.Collection{store.Interactions}, func(tx store.Tx) error {
		for i := range records {
			if err := tx.Interactions().Put(&records[i]); err != nil {
				return err
			}
		}
		return nil
	})

	var deleted int
	update(t, s, []store.Collection{store.Interactions}, func(tx store.Tx) error {
		var err error
		deleted, err = tx.Interactions().DeleteInactiveBefore(cutoff)
		return err
	})
	assert.Equal(t, 1, deleted)

	view(t, s, []store.Collection{store.Interactions}, func(tx store.Tx) error {
		_, err := tx.Interactions().Get("p_u1_like")
		assert.ErrorIs(t, err, store.ErrNotFound)
		active, err := tx.Interactions().Get("p_u2_like")
		require.NoError(t, err)
		assert.True(t, active.Active)
		_, err = tx.Interactions().Get("p_u3_like")
		assert.NoError(t, err)
		return nil
	})
}

func testComments(t *testing.T, s store.Store) {
	parent := "c1"
	comments := []model.Comment{
		{ID: "c1", PostID: "p", UserID: "u", Content: "first", CreatedAt: base, UpdatedAt: base, Status: model.CommentActive},
		{ID: "c2", PostID: "p", UserID: "u", Content: "reply", ParentID: &parent, CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute), Status: model.CommentActive},
	}
	update(t, s, []store.Collection{store.Comments}, func(tx store.Tx) error {
		for i := range comments {
			if err := tx.Comments().Put(&comments[i]); err != nil {
				return err
			}
		}
		return nil
	})

	view(t, s, []store.Collection{store.Comments}, func(tx store.Tx) error {
		got, err := tx.Comments().Get("c2")
		require.NoError(t, err)
		require.NotNil(t, got.ParentID)
		assert.Equal(t, "c1", *got.ParentID)
		assert.False(t, got.IsTopLevel())

		var ids []string
		err = tx.Comments().Scan(func(c *model.Comment, err error) error {
			require.NoError(t, err)
			ids = append(ids, c.ID)
			return nil
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
		return nil
	})
}
