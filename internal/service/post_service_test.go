package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/deLKM/Genteblog/internal/codec"
	"github.com/deLKM/Genteblog/internal/events"
	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
	"github.com/deLKM/Genteblog/internal/upload"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestPostService(t *testing.T) (*PostService, store.Store, *testClock) {
	t.Helper()
	s := setupTestStore(t)
	clock := newTestClock()
	return NewPostService(s).WithClock(clock.Now), s, clock
}

func loadRaw(t *testing.T, s store.Store, id string) *model.Post {
	t.Helper()
	var post *model.Post
	err := s.WithTransaction(context.Background(), []store.Collection{store.Posts}, store.ReadOnly, func(tx store.Tx) error {
		var err error
		post, err = tx.Posts().Get(id)
		return err
	})
	if err != nil {
		t.Fatalf("load raw post: %v", err)
	}
	return post
}

func revisionsOf(t *testing.T, svc *PostService, id string) []model.Revision {
	t.Helper()
	revisions, err := svc.ListRevisions(context.Background(), id)
	if err != nil {
		t.Fatalf("list revisions: %v", err)
	}
	return revisions
}

func TestPostService_SaveNewPost(t *testing.T) {
	svc, s, clock := newTestPostService(t)
	content := "# 标题\n\n这是 **正文** 内容。"

	post := mustSave(t, svc, PostInput{
		Title:    " 第一篇 ",
		Content:  content,
		Category: "随笔",
		Tags:     " go, 存储 ,, go ,",
	}, "author-1", true)

	parsed, err := uuid.Parse(post.ID)
	if err != nil {
		t.Fatalf("post id is not a uuid: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected uuid v7, got v%d", parsed.Version())
	}
	if post.Title != "第一篇" {
		t.Fatalf("unexpected title %q", post.Title)
	}
	if post.Content != content {
		t.Fatalf("returned content should be decoded, got %q", post.Content)
	}
	if !strings.Contains(post.ContentHTML, "<strong>正文</strong>") {
		t.Fatalf("unexpected html %q", post.ContentHTML)
	}
	assert.Equal(t, []string{"go", "存储"}, post.Tags)
	assert.Equal(t, []string{"go", "存储", "随笔"}, post.SEO.Keywords)
	assert.Equal(t, model.StatusDraft, post.Status)
	assert.Nil(t, post.Metadata.PublishedAt)
	assert.Equal(t, len([]rune(content)), post.Metadata.WordCount)
	assert.Equal(t, 1, post.Metadata.ReadingTime)
	assert.True(t, post.Metadata.CreatedAt.Equal(clock.Now()))
	assert.Equal(t, "标题\n\n这是 正文 内容。", post.Summary)

	raw := loadRaw(t, s, post.ID)
	if !codec.IsEncoded(raw.Content) || !codec.IsEncoded(raw.ContentHTML) {
		t.Fatalf("content should be encoded at rest")
	}
	if codec.Decode(raw.Content) != content {
		t.Fatalf("stored content does not round trip")
	}

	if revisions := revisionsOf(t, svc, post.ID); len(revisions) != 0 {
		t.Fatalf("insert should not append a revision, got %d", len(revisions))
	}
}

func TestPostService_ResaveAppendsRevision(t *testing.T) {
	svc, s, clock := newTestPostService(t)
	created := mustSave(t, svc, PostInput{Title: "v1", Content: "first"}, "author-1", false)
	firstPublished := *created.Metadata.PublishedAt

	// 浏览与点赞不应被覆盖。
	if _, err := svc.GetPost(context.Background(), created.ID); err != nil {
		t.Fatalf("get post: %v", err)
	}
	if _, err := svc.HandlePostInteraction(context.Background(), created.ID, "reader", model.InteractionLike); err != nil {
		t.Fatalf("like: %v", err)
	}

	clock.Advance(time.Hour)
	updated := mustSave(t, svc, PostInput{ID: created.ID, Title: "v2", Content: "second"}, "author-1", true)

	if updated.ID != created.ID {
		t.Fatalf("id changed on update: %s -> %s", created.ID, updated.ID)
	}
	assert.Equal(t, "second", updated.Content)
	assert.Equal(t, model.StatusDraft, updated.Status)
	assert.True(t, updated.Metadata.CreatedAt.Equal(created.Metadata.CreatedAt))
	assert.True(t, updated.Metadata.UpdatedAt.Equal(clock.Now()))
	require.NotNil(t, updated.Metadata.PublishedAt)
	assert.True(t, updated.Metadata.PublishedAt.Equal(firstPublished))

	raw := loadRaw(t, s, created.ID)
	assert.Equal(t, 1, raw.ViewCount)
	assert.Equal(t, 1, raw.LikeCount)

	revisions := revisionsOf(t, svc, created.ID)
	require.Len(t, revisions, 1)
	assert.Equal(t, "second", revisions[0].Content)
	assert.Equal(t, model.RevisionReasonDraft, revisions[0].Reason)
	assert.Equal(t, "author-1", revisions[0].AuthorID)

	clock.Advance(time.Minute)
	mustSave(t, svc, PostInput{ID: created.ID, Title: "v3", Content: "third"}, "author-1", false)
	revisions = revisionsOf(t, svc, created.ID)
	require.Len(t, revisions, 2)
	assert.Equal(t, "third", revisions[0].Content)
	assert.Equal(t, model.RevisionReasonPublish, revisions[0].Reason)
}

func TestPostService_UpdateUnknownPost(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	_, err := svc.SavePost(context.Background(), PostInput{ID: "missing", Content: "x"}, "author-1", true)
	if !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestPostService_SaveRequiresUser(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	_, err := svc.SavePost(context.Background(), PostInput{Content: "x"}, " ", true)
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestPostService_GetPostCountsViews(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	created := mustSave(t, svc, PostInput{Title: "t", Content: "hello"}, "author-1", false)

	for want := 1; want <= 3; want++ {
		post, err := svc.GetPost(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("get post: %v", err)
		}
		if post.ViewCount != want {
			t.Fatalf("expected view count %d, got %d", want, post.ViewCount)
		}
		if post.Content != "hello" {
			t.Fatalf("content should be decoded, got %q", post.Content)
		}
	}

	_, err := svc.GetPost(context.Background(), "missing")
	if !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	if !errors.Is(err, store.ErrTransactionFailed) {
		t.Fatalf("expected transaction failure wrapper, got %v", err)
	}
}

func TestPostService_ListsFilterAndSort(t *testing.T) {
	svc, _, clock := newTestPostService(t)

	var drafts, published []string
	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		drafts = append(drafts, mustSave(t, svc, PostInput{Title: "d", Content: "draft"}, "author-1", true).ID)
		clock.Advance(time.Minute)
		published = append(published, mustSave(t, svc, PostInput{Title: "p", Content: "pub"}, "author-1", false).ID)
	}
	mustSave(t, svc, PostInput{Title: "other", Content: "x"}, "author-2", true)

	gotDrafts, err := svc.GetDrafts(context.Background(), "author-1")
	if err != nil {
		t.Fatalf("get drafts: %v", err)
	}
	require.Len(t, gotDrafts, 3)
	for i, p := range gotDrafts {
		if p.Status != model.StatusDraft {
			t.Fatalf("draft list returned status %q", p.Status)
		}
		if p.ID != drafts[len(drafts)-1-i] {
			t.Fatalf("drafts not sorted by updatedAt desc at %d", i)
		}
		if p.Content != "draft" {
			t.Fatalf("draft content should be decoded")
		}
	}

	gotPublished, err := svc.GetPublishedPosts(context.Background(), "author-1")
	if err != nil {
		t.Fatalf("get published: %v", err)
	}
	require.Len(t, gotPublished, 3)
	for i := 1; i < len(gotPublished); i++ {
		if gotPublished[i].Status != model.StatusPublished {
			t.Fatalf("published list returned status %q", gotPublished[i].Status)
		}
		prev, cur := gotPublished[i-1].Metadata.PublishedAt, gotPublished[i].Metadata.PublishedAt
		if !prev.After(*cur) {
			t.Fatalf("published posts not strictly descending at %d", i)
		}
	}
	assert.Equal(t, published[2], gotPublished[0].ID)

	empty, err := svc.GetDrafts(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestPostService_CorruptRecordPolicy(t *testing.T) {
	svc, s, clock := newTestPostService(t)
	good := mustSave(t, svc, PostInput{Title: "good", Content: "fine"}, "author-1", true)
	putRaw(t, s, &model.Post{
		ID:       "broken",
		AuthorID: "author-1",
		Status:   model.StatusDraft,
		Content:  "z1:not-base64!!",
		Metadata: model.PostMetadata{CreatedAt: clock.Now(), UpdatedAt: clock.Now()},
	})
	// 旧版未编码的明文记录不算损坏。
	putRaw(t, s, &model.Post{
		ID:       "legacy",
		AuthorID: "author-1",
		Status:   model.StatusDraft,
		Content:  "plain legacy text",
		Metadata: model.PostMetadata{CreatedAt: clock.Now(), UpdatedAt: clock.Now()},
	})

	posts, err := svc.GetDrafts(context.Background(), "author-1")
	require.NoError(t, err)
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{good.ID, "legacy"}, ids)

	svc.WithListPolicy(FailOnCorrupt)
	_, err = svc.GetDrafts(context.Background(), "author-1")
	if !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}

	// 读取单篇时仍然降级为原文。
	post, err := svc.GetPost(context.Background(), "broken")
	require.NoError(t, err)
	assert.Equal(t, "z1:not-base64!!", post.Content)
}

func TestPostService_UpdatePostStatus(t *testing.T) {
	svc, _, clock := newTestPostService(t)
	created := mustSave(t, svc, PostInput{Title: "t", Content: "c"}, "author-1", true)

	if _, err := svc.UpdatePostStatus(context.Background(), created.ID, "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.UpdatePostStatus(context.Background(), "missing", model.StatusPublished); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}

	clock.Advance(time.Hour)
	post, err := svc.UpdatePostStatus(context.Background(), created.ID, model.StatusPublished)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if post.Status != model.StatusPublished {
		t.Fatalf("expected published, got %q", post.Status)
	}
	if post.Metadata.PublishedAt == nil || !post.Metadata.PublishedAt.Equal(clock.Now()) {
		t.Fatalf("publishedAt should be set to now, got %v", post.Metadata.PublishedAt)
	}
	assert.Equal(t, "c", post.Content)
}

func TestPostService_InteractionToggle(t *testing.T) {
	svc, s, _ := newTestPostService(t)
	ctx := context.Background()
	post := mustSave(t, svc, PostInput{Title: "t", Content: "c"}, "author-1", false)

	first, err := svc.HandlePostInteraction(ctx, post.ID, "reader", model.InteractionLike)
	require.NoError(t, err)
	assert.True(t, first.Active)
	assert.Equal(t, 1, first.LikeCount)

	second, err := svc.HandlePostInteraction(ctx, post.ID, "reader", model.InteractionLike)
	require.NoError(t, err)
	assert.False(t, second.Active)
	assert.Equal(t, 0, second.LikeCount)

	third, err := svc.HandlePostInteraction(ctx, post.ID, "reader", model.InteractionLike)
	require.NoError(t, err)
	assert.Equal(t, *first, *third)

	bookmark, err := svc.HandlePostInteraction(ctx, post.ID, "reader", model.InteractionBookmark)
	require.NoError(t, err)
	assert.True(t, bookmark.Active)
	assert.Equal(t, 1, bookmark.BookmarkCount)
	assert.Equal(t, 1, bookmark.LikeCount)

	// 只有一条复合键记录。
	count := 0
	err = s.WithTransaction(ctx, []store.Collection{store.Interactions}, store.ReadOnly, func(tx store.Tx) error {
		return tx.Interactions().Scan(func(i *model.Interaction, err error) error {
			if err != nil {
				return err
			}
			if i.Type == model.InteractionLike {
				count++
				assert.Equal(t, model.InteractionKey(post.ID, "reader", model.InteractionLike), i.ID)
			}
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPostService_InteractionCounterFloor(t *testing.T) {
	svc, s, _ := newTestPostService(t)
	ctx := context.Background()
	post := mustSave(t, svc, PostInput{Title: "t", Content: "c"}, "author-1", false)
	if _, err := svc.HandlePostInteraction(ctx, post.ID, "reader", model.InteractionLike); err != nil {
		t.Fatalf("like: %v", err)
	}

	// 人为制造计数漂移：记录为 active，计数却为 0。
	raw := loadRaw(t, s, post.ID)
	raw.LikeCount = 0
	putRaw(t, s, raw)

	result, err := svc.HandlePostInteraction(ctx, post.ID, "reader", model.InteractionLike)
	require.NoError(t, err)
	assert.False(t, result.Active)
	assert.Equal(t, 0, result.LikeCount)
}

func TestPostService_InteractionErrors(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	ctx := context.Background()

	_, err := svc.HandlePostInteraction(ctx, "missing", "reader", model.InteractionLike)
	assert.ErrorIs(t, err, ErrPostNotFound)

	_, err = svc.HandlePostInteraction(ctx, "p", "reader", "share")
	assert.ErrorIs(t, err, ErrInvalidInteraction)

	_, err = svc.HandlePostInteraction(ctx, "p", "", model.InteractionLike)
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPostService_CoverUpload(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	uploader := &memoryUploader{}
	svc.WithUploader(uploader)

	post := mustSave(t, svc, PostInput{
		Title:   "cover",
		Content: "c",
		Cover:   &upload.File{Name: "cover.png", ContentType: "image/png", Data: testPNG(t)},
	}, "author-1", false)

	want := "https://cdn.test/posts/" + post.ID + "/cover.png"
	require.NotNil(t, post.CoverImage)
	assert.Equal(t, want, *post.CoverImage)
	require.NotNil(t, post.SEO.OGImage)
	assert.Equal(t, want, *post.SEO.OGImage)
	assert.Contains(t, uploader.files, "posts/"+post.ID+"/cover.png")

	_, err := svc.SavePost(context.Background(), PostInput{
		Content: "c",
		Cover:   &upload.File{Data: []byte("not an image")},
	}, "author-1", true)
	assert.ErrorIs(t, err, upload.ErrUploadFailed)
	assert.ErrorIs(t, err, upload.ErrNotImage)

	uploader.err = errors.New("bucket offline")
	_, err = svc.SavePost(context.Background(), PostInput{
		Content: "c",
		Cover:   &upload.File{Data: testPNG(t)},
	}, "author-1", true)
	assert.Error(t, err)
}

// writeFailingStore 让所有读写事务失败，只读事务照常执行。
type writeFailingStore struct {
	store.Store
	err error
}

func (s writeFailingStore) WithTransaction(ctx context.Context, cols []store.Collection, mode store.Mode, body func(store.Tx) error) error {
	if mode == store.ReadWrite {
		return store.Abort(cols, mode, s.err)
	}
	return s.Store.WithTransaction(ctx, cols, mode, body)
}

func TestPostService_LogsOrphanedCoverWhenSaveFails(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	uploader := &memoryUploader{}
	base := setupTestStore(t)
	putRaw(t, base, &model.Post{ID: "p1", Title: "cover", AuthorID: "author-1", Status: model.StatusPublished})
	failing := writeFailingStore{Store: base, err: errors.New("disk full")}
	svc := NewPostService(failing).WithUploader(uploader).WithLogger(zap.New(core))

	_, err := svc.SavePost(context.Background(), PostInput{
		ID:      "p1",
		Title:   "cover",
		Content: "c",
		Cover:   &upload.File{Data: testPNG(t)},
	}, "author-1", false)
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	require.Contains(t, uploader.files, "posts/p1/cover.png")

	entries := logs.FilterMessage("orphaned cover upload").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "posts/p1/cover.png", fields["key"])
	assert.Equal(t, "https://cdn.test/posts/p1/cover.png", fields["url"])
	assert.Equal(t, "p1", fields["post_id"])
}

func TestPostService_PublishesEvents(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	recorder := &events.Recorder{}
	svc.WithPublisher(recorder)

	draft := mustSave(t, svc, PostInput{Title: "t", Content: "c"}, "author-1", true)
	mustSave(t, svc, PostInput{ID: draft.ID, Title: "t", Content: "c2"}, "author-1", false)
	if _, err := svc.HandlePostInteraction(context.Background(), draft.ID, "reader", model.InteractionLike); err != nil {
		t.Fatalf("like: %v", err)
	}

	assert.Equal(t, []string{
		events.SubjectPostSaved,
		events.SubjectPostSaved,
		events.SubjectPostPublished,
		events.SubjectPostInteraction,
	}, recorder.Subjects())

	saved := recorder.Events()[1].Event.(events.PostEvent)
	assert.True(t, saved.Updated)
	liked := recorder.Events()[3].Event.(events.InteractionEvent)
	assert.True(t, liked.Active)
	assert.Equal(t, 1, liked.LikeCount)
}

func TestParseTags(t *testing.T) {
	cases := map[string][]string{
		"":              {},
		" , ,":          {},
		"go":            {"go"},
		" go , 存储,go ": {"go", "存储"},
	}
	for input, want := range cases {
		assert.Equal(t, want, parseTags(input), input)
	}
}

func TestBuildSummary(t *testing.T) {
	assert.Equal(t, "标题\n正文 code", buildSummary("## 标题\n**正文** `code`", 200))
	assert.Equal(t, "a\n\n  b", buildSummary("  # a\n\n  b\t\n", 200))

	long := strings.Repeat("字", 250)
	got := buildSummary(long, 200)
	assert.Equal(t, strings.Repeat("字", 200)+"...", got)
	assert.Equal(t, strings.Repeat("字", 160)+"...", buildSummary(long, 160))
}

func TestReadingTime(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 300: 1, 301: 2, 900: 3}
	for words, want := range cases {
		if got := readingTime(words); got != want {
			t.Fatalf("readingTime(%d) = %d, want %d", words, got, want)
		}
	}
}
