package kvstore

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

type postCollection struct{ t *txn }

func (c postCollection) recordKey(id string) string { return c.t.s.key("post", id) }

func (c postCollection) Get(id string) (*model.Post, error) {
	if err := c.t.scope.Check(store.Posts, false); err != nil {
		return nil, err
	}
	var post model.Post
	if err := c.t.getJSON(c.recordKey(id), &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c postCollection) Put(post *model.Post) error {
	if err := c.t.scope.Check(store.Posts, true); err != nil {
		return err
	}
	return c.t.putJSON(c.recordKey(post.ID), post, c.t.s.key("posts"), post.Metadata.UpdatedAt, post.ID)
}

func (c postCollection) Scan(fn func(*model.Post, error) error) error {
	if err := c.t.scope.Check(store.Posts, false); err != nil {
		return err
	}
	ids, err := c.t.members(c.t.s.key("posts"))
	if err != nil {
		return err
	}
	raws, err := c.t.loadAll(c.recordKey, ids)
	if err != nil {
		return err
	}
	return scanJSON(raws, fn)
}

type interactionCollection struct{ t *txn }

func (c interactionCollection) recordKey(id string) string { return c.t.s.key("interaction", id) }

func (c interactionCollection) Get(id string) (*model.Interaction, error) {
	if err := c.t.scope.Check(store.Interactions, false); err != nil {
		return nil, err
	}
	var interaction model.Interaction
	if err := c.t.getJSON(c.recordKey(id), &interaction); err != nil {
		return nil, err
	}
	return &interaction, nil
}

func (c interactionCollection) Put(interaction *model.Interaction) error {
	if err := c.t.scope.Check(store.Interactions, true); err != nil {
		return err
	}
	return c.t.putJSON(c.recordKey(interaction.ID), interaction, c.t.s.key("interactions"), interaction.UpdatedAt, interaction.ID)
}

func (c interactionCollection) Scan(fn func(*model.Interaction, error) error) error {
	if err := c.t.scope.Check(store.Interactions, false); err != nil {
		return err
	}
	ids, err := c.t.members(c.t.s.key("interactions"))
	if err != nil {
		return err
	}
	raws, err := c.t.loadAll(c.recordKey, ids)
	if err != nil {
		return err
	}
	return scanJSON(raws, fn)
}

func (c interactionCollection) DeleteInactiveBefore(cutoff time.Time) (int, error) {
	if err := c.t.scope.Check(store.Interactions, true); err != nil {
		return 0, err
	}
	index := c.t.s.key("interactions")
	ids, err := c.t.membersUpTo(index, cutoff)
	if err != nil {
		return 0, err
	}
	raws, err := c.t.loadAll(c.recordKey, ids)
	if err != nil {
		return 0, err
	}

	deleted := 0
	err = scanJSON(raws, func(i *model.Interaction, err error) error {
		if err != nil || i.Active || !i.UpdatedAt.Before(cutoff) {
			return nil
		}
		key, id := c.recordKey(i.ID), i.ID
		c.t.queue(func(pipe redis.Pipeliner) {
			pipe.Del(c.t.ctx, key)
			pipe.ZRem(c.t.ctx, index, id)
		})
		deleted++
		return nil
	})
	return deleted, err
}

type revisionCollection struct{ t *txn }

func (c revisionCollection) recordKey(id string) string { return c.t.s.key("revision", id) }

func (c revisionCollection) postIndex(postID string) string {
	return c.t.s.key("revisions", "post", postID)
}

func (c revisionCollection) Add(revision *model.Revision) error {
	if err := c.t.scope.Check(store.Revisions, true); err != nil {
		return err
	}
	// 序列号在事务外立即分配，回滚会留下空号。
	id, err := c.t.rtx.Incr(c.t.ctx, c.t.s.key("revisions", "seq")).Uint64()
	if err != nil {
		return err
	}
	revision.ID = id
	return c.put(revision)
}

func (c revisionCollection) Put(revision *model.Revision) error {
	if err := c.t.scope.Check(store.Revisions, true); err != nil {
		return err
	}
	seqKey := c.t.s.key("revisions", "seq")
	if err := c.t.watch(seqKey); err != nil {
		return err
	}
	current, err := c.t.rtx.Get(c.t.ctx, seqKey).Uint64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if revision.ID > current && revision.ID > c.t.revisionAt {
		c.t.revisionAt = revision.ID
	}
	return c.put(revision)
}

func (c revisionCollection) put(revision *model.Revision) error {
	id := strconv.FormatUint(revision.ID, 10)
	if err := c.t.putJSON(c.recordKey(id), revision, c.t.s.key("revisions"), revision.CreatedAt, id); err != nil {
		return err
	}
	postIndex, score := c.postIndex(revision.PostID), scoreOf(revision.CreatedAt)
	c.t.queue(func(pipe redis.Pipeliner) {
		pipe.ZAdd(c.t.ctx, postIndex, redis.Z{Score: score, Member: id})
	})
	return nil
}

func (c revisionCollection) ListByPost(postID string) ([]model.Revision, error) {
	if err := c.t.scope.Check(store.Revisions, false); err != nil {
		return nil, err
	}
	ids, err := c.t.members(c.postIndex(postID))
	if err != nil {
		return nil, err
	}
	raws, err := c.t.loadAll(c.recordKey, ids)
	if err != nil {
		return nil, err
	}

	revisions := make([]model.Revision, 0, len(raws))
	for _, raw := range raws {
		var r model.Revision
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		revisions = append(revisions, r)
	}
	sort.Slice(revisions, func(i, j int) bool {
		if !revisions[i].CreatedAt.Equal(revisions[j].CreatedAt) {
			return revisions[i].CreatedAt.After(revisions[j].CreatedAt)
		}
		return revisions[i].ID > revisions[j].ID
	})
	return revisions, nil
}

func (c revisionCollection) Scan(fn func(*model.Revision, error) error) error {
	if err := c.t.scope.Check(store.Revisions, false); err != nil {
		return err
	}
	ids, err := c.t.members(c.t.s.key("revisions"))
	if err != nil {
		return err
	}
	raws, err := c.t.loadAll(c.recordKey, ids)
	if err != nil {
		return err
	}
	return scanJSON(raws, fn)
}

func (c revisionCollection) DeleteBefore(cutoff time.Time) (int, error) {
	if err := c.t.scope.Check(store.Revisions, true); err != nil {
		return 0, err
	}
	index := c.t.s.key("revisions")
	ids, err := c.t.membersUpTo(index, cutoff)
	if err != nil {
		return 0, err
	}
	raws, err := c.t.loadAll(c.recordKey, ids)
	if err != nil {
		return 0, err
	}

	deleted := 0
	err = scanJSON(raws, func(r *model.Revision, err error) error {
		if err != nil || !r.CreatedAt.Before(cutoff) {
			return nil
		}
		id := strconv.FormatUint(r.ID, 10)
		key, postIndex := c.recordKey(id), c.postIndex(r.PostID)
		c.t.queue(func(pipe redis.Pipeliner) {
			pipe.Del(c.t.ctx, key)
			pipe.ZRem(c.t.ctx, index, id)
			pipe.ZRem(c.t.ctx, postIndex, id)
		})
		deleted++
		return nil
	})
	return deleted, err
}

type commentCollection struct{ t *txn }

func (c commentCollection) recordKey(id string) string { return c.t.s.key("comment", id) }

func (c commentCollection) Get(id string) (*model.Comment, error) {
	if err := c.t.scope.Check(store.Comments, false); err != nil {
		return nil, err
	}
	var comment model.Comment
	if err := c.t.getJSON(c.recordKey(id), &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c commentCollection) Put(comment *model.Comment) error {
	if err := c.t.scope.Check(store.Comments, true); err != nil {
		return err
	}
	return c.t.putJSON(c.recordKey(comment.ID), comment, c.t.s.key("comments"), comment.CreatedAt, comment.ID)
}

func (c commentCollection) Scan(fn func(*model.Comment, error) error) error {
	if err := c.t.scope.Check(store.Comments, false); err != nil {
		return err
	}
	ids, err := c.t.members(c.t.s.key("comments"))
	if err != nil {
		return err
	}
	raws, err := c.t.loadAll(c.recordKey, ids)
	if err != nil {
		return err
	}
	return scanJSON(raws, fn)
}
