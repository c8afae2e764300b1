// Package kvstore implements store.Store on top of Redis.
//
// Records are JSON strings; secondary indexes are sorted sets scored by
// microsecond timestamps. A transaction WATCHes every key it reads, queues
// its writes and applies them with MULTI/EXEC. When another client touches a
// watched key the transaction body is run again after a short randomized
// backoff.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/deLKM/Genteblog/internal/store"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix      = "genteblog:"
	defaultMaxAttempts = 32
	// 冲突后的等待在 [0, min(base<<attempt, max)) 内随机取值
	defaultBackoffBase = time.Millisecond
	defaultBackoffMax  = 50 * time.Millisecond
)

// ErrConflict is returned when a transaction keeps losing the optimistic race.
var ErrConflict = errors.New("kvstore: transaction conflict, retries exhausted")

// Config holds the redis connection settings.
type Config struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string
	MaxAttempts int
	// BackoffBase 和 BackoffMax 控制冲突重试的等待，零值使用默认值。
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Store is the redis backed store.Store.
type Store struct {
	client      *redis.Client
	prefix      string
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
}

var _ store.Store = (*Store)(nil)

// Open connects to redis and records the schema version on first use.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, store.Unavailable(err)
	}

	s := &Store{
		client:      client,
		prefix:      cfg.Prefix,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffMax:  cfg.BackoffMax,
	}
	if s.prefix == "" {
		s.prefix = defaultPrefix
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.backoffBase <= 0 {
		s.backoffBase = defaultBackoffBase
	}
	if s.backoffMax <= 0 {
		s.backoffMax = defaultBackoffMax
	}
	if s.backoffMax < s.backoffBase {
		s.backoffMax = s.backoffBase
	}
	if err := s.ensureSchemaVersion(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(parts ...string) string {
	return s.prefix + strings.Join(parts, ":")
}

func (s *Store) ensureSchemaVersion(ctx context.Context) error {
	key := s.key("meta", "schema_version")
	if err := s.client.SetNX(ctx, key, store.SchemaVersion, 0).Err(); err != nil {
		return store.Unavailable(err)
	}
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return store.Unavailable(err)
	}
	if v, err := strconv.Atoi(raw); err != nil || v != store.SchemaVersion {
		return fmt.Errorf("%w: redis has %q, code expects %d", store.ErrVersionMismatch, raw, store.SchemaVersion)
	}
	return nil
}

// WithTransaction runs body with optimistic locking. Reads observe the state
// before the transaction; writes become visible together at commit.
func (s *Store) WithTransaction(ctx context.Context, collections []store.Collection, mode store.Mode, body func(tx store.Tx) error) error {
	scope := store.NewScope(collections, mode)
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			t := &txn{ctx: ctx, s: s, rtx: rtx, scope: scope}
			if err := body(t); err != nil {
				return err
			}
			return t.commit()
		})
		if errors.Is(err, redis.TxFailedErr) {
			if attempt+1 == s.maxAttempts {
				break
			}
			if werr := s.wait(ctx, attempt); werr != nil {
				return store.Abort(collections, mode, werr)
			}
			continue
		}
		return store.Abort(collections, mode, err)
	}
	return store.Abort(collections, mode, ErrConflict)
}

// wait 在两次尝试之间随机退避，ctx 结束时立即返回。
func (s *Store) wait(ctx context.Context, attempt int) error {
	ceiling := s.backoffMax
	if shift := min(attempt, 16); s.backoffBase<<shift < ceiling {
		ceiling = s.backoffBase << shift
	}
	timer := time.NewTimer(time.Duration(rand.Int63n(int64(ceiling))) + 1)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
