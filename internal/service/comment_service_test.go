package service

import (
	"context"
	"testing"
	"time"

	"github.com/deLKM/Genteblog/internal/events"
	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommentService(t *testing.T) (*CommentService, *PostService, store.Store, *testClock) {
	t.Helper()
	posts, s, clock := newTestPostService(t)
	return NewCommentService(s).WithClock(clock.Now), posts, s, clock
}

func TestCommentService_CreateAndCounters(t *testing.T) {
	ctx := context.Background()
	comments, posts, s, clock := newTestCommentService(t)
	rec := &events.Recorder{}
	comments.WithPublisher(rec)
	post := mustSave(t, posts, PostInput{Title: "t", Content: "c"}, "author", false)

	top, err := comments.Create(ctx, post.ID, "u1", "  第一条  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "第一条", top.Content)
	assert.Equal(t, model.CommentActive, top.Status)

	clock.Advance(time.Minute)
	reply, err := comments.Create(ctx, post.ID, "u2", "回复", &top.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)

	parent, err := comments.Get(ctx, top.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, parent.ReplyCount)
	assert.Equal(t, 2, loadRaw(t, s, post.ID).CommentCount)

	assert.Equal(t, []string{events.SubjectCommentCreated, events.SubjectCommentCreated}, rec.Subjects())
}

func TestCommentService_CreateErrors(t *testing.T) {
	ctx := context.Background()
	comments, posts, _, _ := newTestCommentService(t)
	post := mustSave(t, posts, PostInput{Title: "t", Content: "c"}, "author", false)
	other := mustSave(t, posts, PostInput{Title: "o", Content: "c"}, "author", false)
	foreign, err := comments.Create(ctx, other.ID, "u1", "elsewhere", nil)
	require.NoError(t, err)

	_, err = comments.Create(ctx, post.ID, "u1", "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyComment)
	_, err = comments.Create(ctx, post.ID, "", "hi", nil)
	assert.ErrorIs(t, err, ErrInvalidUser)
	_, err = comments.Create(ctx, "missing", "u1", "hi", nil)
	assert.ErrorIs(t, err, ErrPostNotFound)

	missing := "nope"
	_, err = comments.Create(ctx, post.ID, "u1", "hi", &missing)
	assert.ErrorIs(t, err, ErrCommentNotFound)
	_, err = comments.Create(ctx, post.ID, "u1", "hi", &foreign.ID)
	assert.ErrorIs(t, err, ErrCommentNotFound, "parent must belong to the same post")
}

func TestCommentService_ListAndReplies(t *testing.T) {
	ctx := context.Background()
	comments, posts, _, clock := newTestCommentService(t)
	post := mustSave(t, posts, PostInput{Title: "t", Content: "c"}, "author", false)

	var tops []*model.Comment
	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		c, err := comments.Create(ctx, post.ID, "u1", "top", nil)
		require.NoError(t, err)
		tops = append(tops, c)
	}
	var replies []*model.Comment
	for i := 0; i < 2; i++ {
		clock.Advance(time.Minute)
		c, err := comments.Create(ctx, post.ID, "u2", "reply", &tops[0].ID)
		require.NoError(t, err)
		replies = append(replies, c)
	}

	page, err := comments.ListByPost(ctx, post.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, tops[2].ID, page.Items[0].ID)
	assert.Equal(t, tops[1].ID, page.Items[1].ID)
	require.NotNil(t, page.NextCursor)

	page, err = comments.ListByPost(ctx, post.ID, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, tops[0].ID, page.Items[0].ID)
	assert.Nil(t, page.NextCursor)

	thread, err := comments.Replies(ctx, tops[0].ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, thread.Items, 2)
	assert.Equal(t, replies[0].ID, thread.Items[0].ID)

	after := replies[0].CreatedAt
	thread, err = comments.Replies(ctx, tops[0].ID, &after, 10)
	require.NoError(t, err)
	require.Len(t, thread.Items, 1)
	assert.Equal(t, replies[1].ID, thread.Items[0].ID)
}

func TestCommentService_Update(t *testing.T) {
	ctx := context.Background()
	comments, posts, _, clock := newTestCommentService(t)
	post := mustSave(t, posts, PostInput{Title: "t", Content: "c"}, "author", false)
	c, err := comments.Create(ctx, post.ID, "u1", "before", nil)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	updated, err := comments.Update(ctx, c.ID, "after")
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Content)
	assert.True(t, updated.IsEdited)
	assert.True(t, updated.UpdatedAt.After(c.CreatedAt))

	_, err = comments.Update(ctx, c.ID, " ")
	assert.ErrorIs(t, err, ErrEmptyComment)
	_, err = comments.Update(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrCommentNotFound)

	require.NoError(t, comments.Delete(ctx, c.ID))
	_, err = comments.Update(ctx, c.ID, "again")
	assert.ErrorIs(t, err, ErrCommentNotFound)
}

func TestCommentService_DeleteIsSoftAndIdempotent(t *testing.T) {
	ctx := context.Background()
	comments, posts, s, _ := newTestCommentService(t)
	post := mustSave(t, posts, PostInput{Title: "t", Content: "c"}, "author", false)
	top, err := comments.Create(ctx, post.ID, "u1", "top", nil)
	require.NoError(t, err)
	reply, err := comments.Create(ctx, post.ID, "u2", "reply", &top.ID)
	require.NoError(t, err)

	require.NoError(t, comments.Delete(ctx, reply.ID))
	require.NoError(t, comments.Delete(ctx, reply.ID))

	stored, err := comments.Get(ctx, reply.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CommentDeleted, stored.Status)

	parent, err := comments.Get(ctx, top.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, parent.ReplyCount)
	assert.Equal(t, 1, loadRaw(t, s, post.ID).CommentCount)

	thread, err := comments.Replies(ctx, top.ID, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, thread.Items)

	assert.ErrorIs(t, comments.Delete(ctx, "missing"), ErrCommentNotFound)
}

func TestCommentService_CounterFloor(t *testing.T) {
	ctx := context.Background()
	comments, posts, s, _ := newTestCommentService(t)
	post := mustSave(t, posts, PostInput{Title: "t", Content: "c"}, "author", false)
	c, err := comments.Create(ctx, post.ID, "u1", "top", nil)
	require.NoError(t, err)

	raw := loadRaw(t, s, post.ID)
	raw.CommentCount = 0
	putRaw(t, s, raw)

	require.NoError(t, comments.Delete(ctx, c.ID))
	assert.Equal(t, 0, loadRaw(t, s, post.ID).CommentCount)
}

func TestCommentService_HandleCommentInteractionToggles(t *testing.T) {
	ctx := context.Background()
	comments, posts, s, _ := newTestCommentService(t)
	rec := &events.Recorder{}
	comments.WithPublisher(rec)
	interactions := NewInteractionService(s)
	post := mustSave(t, posts, PostInput{Title: "t", Content: "c"}, "author", false)
	c, err := comments.Create(ctx, post.ID, "u1", "好文", nil)
	require.NoError(t, err)

	res, err := comments.HandleCommentInteraction(ctx, c.ID, "u2", model.InteractionLike)
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, 1, res.LikeCount)

	stored, err := comments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LikeCount)

	// 评论点赞不计入文章的点赞统计与用户的互动历史
	stats, err := interactions.PostStats(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Likes)
	history, err := interactions.UserInteractionHistory(ctx, "u2", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, history.Items)
	assert.Zero(t, loadRaw(t, s, post.ID).LikeCount)

	res, err = comments.HandleCommentInteraction(ctx, c.ID, "u2", model.InteractionLike)
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Equal(t, 0, res.LikeCount)

	res, err = comments.HandleCommentInteraction(ctx, c.ID, "u2", model.InteractionLike)
	require.NoError(t, err)
	assert.True(t, res.Active, "an inactive record is reactivated")
	assert.Equal(t, 1, res.LikeCount)

	require.NoError(t, s.WithTransaction(ctx, []store.Collection{store.Interactions}, store.ReadOnly, func(tx store.Tx) error {
		i, err := tx.Interactions().Get(c.ID + "_u2_like")
		require.NoError(t, err)
		assert.Equal(t, c.ID, i.CommentID)
		assert.Equal(t, post.ID, i.PostID)
		return nil
	}))
	assert.Equal(t, []string{
		events.SubjectCommentCreated,
		events.SubjectCommentInteraction,
		events.SubjectCommentInteraction,
		events.SubjectCommentInteraction,
	}, rec.Subjects())
}

func TestCommentService_HandleCommentInteractionFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	comments, posts, s, clock := newTestCommentService(t)
	post := mustSave(t, posts, PostInput{Title: "t", Content: "c"}, "author", false)
	c, err := comments.Create(ctx, post.ID, "u1", "好文", nil)
	require.NoError(t, err)

	// 计数与互动记录不一致：记录为激活，但计数已是 0
	now := clock.Now()
	require.NoError(t, s.WithTransaction(ctx, []store.Collection{store.Interactions}, store.ReadWrite, func(tx store.Tx) error {
		return tx.Interactions().Put(&model.Interaction{
			ID: model.InteractionKey(c.ID, "u2", model.InteractionLike), PostID: post.ID, CommentID: c.ID,
			UserID: "u2", Type: model.InteractionLike, Active: true, CreatedAt: now, UpdatedAt: now,
		})
	}))

	res, err := comments.HandleCommentInteraction(ctx, c.ID, "u2", model.InteractionLike)
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Equal(t, 0, res.LikeCount)
}

func TestCommentService_HandleCommentInteractionErrors(t *testing.T) {
	ctx := context.Background()
	comments, posts, _, _ := newTestCommentService(t)
	post := mustSave(t, posts, PostInput{Title: "t", Content: "c"}, "author", false)
	c, err := comments.Create(ctx, post.ID, "u1", "好文", nil)
	require.NoError(t, err)

	_, err = comments.HandleCommentInteraction(ctx, c.ID, "u2", model.InteractionBookmark)
	assert.ErrorIs(t, err, ErrInvalidInteraction)
	_, err = comments.HandleCommentInteraction(ctx, c.ID, " ", model.InteractionLike)
	assert.ErrorIs(t, err, ErrInvalidUser)
	_, err = comments.HandleCommentInteraction(ctx, "missing", "u2", model.InteractionLike)
	assert.ErrorIs(t, err, ErrCommentNotFound)

	require.NoError(t, comments.Delete(ctx, c.ID))
	_, err = comments.HandleCommentInteraction(ctx, c.ID, "u2", model.InteractionLike)
	assert.ErrorIs(t, err, ErrCommentNotFound)
}
