package service

import (
	"context"
	"testing"
	"time"

	"github.com/deLKM/Genteblog/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionService_UserPages(t *testing.T) {
	ctx := context.Background()
	posts, s, clock := newTestPostService(t)

	var ids []string
	for i := 0; i < 3; i++ {
		p := mustSave(t, posts, PostInput{Title: "t", Content: "c"}, "author", false)
		ids = append(ids, p.ID)
	}
	for _, id := range ids {
		clock.Advance(time.Minute)
		if _, err := posts.HandlePostInteraction(ctx, id, "u1", model.InteractionBookmark); err != nil {
			t.Fatalf("bookmark: %v", err)
		}
	}
	clock.Advance(time.Minute)
	if _, err := posts.HandlePostInteraction(ctx, ids[0], "u1", model.InteractionLike); err != nil {
		t.Fatalf("like: %v", err)
	}
	// 取消第二篇的收藏
	if _, err := posts.HandlePostInteraction(ctx, ids[1], "u1", model.InteractionBookmark); err != nil {
		t.Fatalf("unbookmark: %v", err)
	}

	svc := NewInteractionService(s)
	bookmarks, err := svc.UserBookmarks(ctx, "u1", nil, 1)
	require.NoError(t, err)
	require.Len(t, bookmarks.Items, 1)
	assert.Equal(t, ids[2], bookmarks.Items[0].PostID)
	require.NotNil(t, bookmarks.NextCursor)

	next, err := svc.UserBookmarks(ctx, "u1", bookmarks.NextCursor, 1)
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.Equal(t, ids[0], next.Items[0].PostID)
	assert.Nil(t, next.NextCursor)

	likes, err := svc.UserLikes(ctx, "u1", nil, 0)
	require.NoError(t, err)
	require.Len(t, likes.Items, 1)
	assert.Equal(t, ids[0], likes.Items[0].PostID)

	history, err := svc.UserInteractionHistory(ctx, "u1", nil, 10)
	require.NoError(t, err)
	require.Len(t, history.Items, 3)
	assert.Equal(t, model.InteractionLike, history.Items[0].Type)

	empty, err := svc.UserLikes(ctx, "u2", nil, 10)
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)

	_, err = svc.UserLikes(ctx, "", nil, 10)
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestInteractionService_IsActiveAndStats(t *testing.T) {
	ctx := context.Background()
	posts, s, _ := newTestPostService(t)
	p := mustSave(t, posts, PostInput{Title: "t", Content: "c"}, "author", false)

	for _, user := range []string{"u1", "u2"} {
		if _, err := posts.HandlePostInteraction(ctx, p.ID, user, model.InteractionLike); err != nil {
			t.Fatalf("like: %v", err)
		}
	}
	if _, err := posts.HandlePostInteraction(ctx, p.ID, "u1", model.InteractionBookmark); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	if _, err := posts.HandlePostInteraction(ctx, p.ID, "u2", model.InteractionLike); err != nil {
		t.Fatalf("unlike: %v", err)
	}

	svc := NewInteractionService(s)
	active, err := svc.IsActive(ctx, p.ID, "u1", model.InteractionLike)
	require.NoError(t, err)
	assert.True(t, active)
	active, err = svc.IsActive(ctx, p.ID, "u2", model.InteractionLike)
	require.NoError(t, err)
	assert.False(t, active)
	active, err = svc.IsActive(ctx, p.ID, "u3", model.InteractionBookmark)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = svc.IsActive(ctx, p.ID, "u1", "share")
	assert.ErrorIs(t, err, ErrInvalidInteraction)

	stats, err := svc.PostStats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, &PostStats{Likes: 1, Bookmarks: 1}, stats)
}
