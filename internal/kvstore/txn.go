package kvstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/deLKM/Genteblog/internal/store"
	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const mgetChunk = 500

type txn struct {
	ctx   context.Context
	s     *Store
	rtx   *redis.Tx
	scope store.Scope

	ops        []func(pipe redis.Pipeliner)
	revisionAt uint64
}

func (t *txn) Posts() store.PostCollection               { return postCollection{t} }
func (t *txn) Interactions() store.InteractionCollection { return interactionCollection{t} }
func (t *txn) Revisions() store.RevisionCollection       { return revisionCollection{t} }
func (t *txn) Comments() store.CommentCollection         { return commentCollection{t} }

func (t *txn) commit() error {
	if t.revisionAt > 0 {
		seq, at := t.s.key("revisions", "seq"), t.revisionAt
		t.queue(func(pipe redis.Pipeliner) { pipe.Set(t.ctx, seq, at, 0) })
	}
	if len(t.ops) == 0 {
		return nil
	}
	_, err := t.rtx.TxPipelined(t.ctx, func(pipe redis.Pipeliner) error {
		for _, op := range t.ops {
			op(pipe)
		}
		return nil
	})
	return err
}

func (t *txn) queue(op func(pipe redis.Pipeliner)) {
	t.ops = append(t.ops, op)
}

// watch 只在读写事务中生效，只读事务不需要乐观锁。
func (t *txn) watch(keys ...string) error {
	if t.scope.Mode() != store.ReadWrite || len(keys) == 0 {
		return nil
	}
	return t.rtx.Watch(t.ctx, keys...).Err()
}

func (t *txn) getJSON(key string, dst any) error {
	if err := t.watch(key); err != nil {
		return err
	}
	raw, err := t.rtx.Get(t.ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (t *txn) putJSON(key string, value any, index string, score time.Time, member string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	t.queue(func(pipe redis.Pipeliner) {
		pipe.Set(t.ctx, key, raw, 0)
		pipe.ZAdd(t.ctx, index, redis.Z{Score: scoreOf(score), Member: member})
	})
	return nil
}

// loadAll 按索引顺序批量读取记录，返回原始 JSON；已被删除的成员会被跳过。
func (t *txn) loadAll(recordKey func(id string) string, ids []string) ([][]byte, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}
	if err := t.watch(keys...); err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(ids))
	for start := 0; start < len(keys); start += mgetChunk {
		end := start + mgetChunk
		if end > len(keys) {
			end = len(keys)
		}
		values, err := t.rtx.MGet(t.ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			out = append(out, []byte(s))
		}
	}
	return out, nil
}

func (t *txn) members(index string) ([]string, error) {
	if err := t.watch(index); err != nil {
		return nil, err
	}
	return t.rtx.ZRange(t.ctx, index, 0, -1).Result()
}

// membersUpTo 返回分数不超过 cutoff 的成员，调用方还需按精确时间过滤。
func (t *txn) membersUpTo(index string, cutoff time.Time) ([]string, error) {
	if err := t.watch(index); err != nil {
		return nil, err
	}
	return t.rtx.ZRangeByScore(t.ctx, index, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(scoreOf(cutoff), 'f', -1, 64),
	}).Result()
}

func scoreOf(at time.Time) float64 {
	return float64(at.UnixMicro())
}

func scanJSON[T any](raws [][]byte, fn func(*T, error) error) error {
	for _, raw := range raws {
		var record T
		if err := json.Unmarshal(raw, &record); err != nil {
			if err := fn(nil, err); err != nil {
				return err
			}
			continue
		}
		if err := fn(&record, nil); err != nil {
			return err
		}
	}
	return nil
}
