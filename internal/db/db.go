package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultDatabasePath = "genteblog.db"
)

// Config 描述数据库连接参数。
type Config struct {
	Driver string
	// Path 是 SQLite 文件路径，也可以是 file: 开头的 DSN。
	Path string
	// DSN 用于 Postgres。
	DSN    string
	Logger logger.Interface
}

// Store 是基于 gorm 的嵌入式文档存储，实现 store.Store。
type Store struct {
	db       *gorm.DB
	postgres bool
}

var _ store.Store = (*Store)(nil)

// Open 打开数据库并在首次使用时创建集合与索引。
// 已存在的数据库若记录了不同的 schema 版本则直接失败。
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gormLogger := cfg.Logger
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, store.Unavailable(err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, store.Unavailable(err)
	}
	if dialector.Name() == DriverSQLite {
		// 单连接：事务天然串行，计数器读改写不会交错。
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, store.Unavailable(err)
	}

	if err := gdb.WithContext(ctx).AutoMigrate(
		&model.Post{},
		&model.Interaction{},
		&model.Revision{},
		&model.Comment{},
		&SchemaMeta{},
		&User{},
	); err != nil {
		sqlDB.Close()
		return nil, store.Unavailable(err)
	}

	if err := ensureSchemaVersion(ctx, gdb); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Store{db: gdb, postgres: dialector.Name() == DriverPostgres}, nil
}

// Gorm exposes the handle for tables outside the document store (accounts).
func (s *Store) Gorm() *gorm.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTransaction runs body in a gorm transaction; any error rolls back every write.
func (s *Store) WithTransaction(ctx context.Context, collections []store.Collection, mode store.Mode, body func(tx store.Tx) error) error {
	scope := store.NewScope(collections, mode)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return body(&txn{db: tx, scope: scope, postgres: s.postgres})
	})
	return store.Abort(collections, mode, err)
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverSQLite:
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			path = defaultDatabasePath
		}
		if !strings.HasPrefix(path, "file:") {
			if err := ensureParentDir(path); err != nil {
				return nil, store.Unavailable(err)
			}
		}
		return sqlite.Open(path), nil
	case DriverPostgres:
		dsn := strings.TrimSpace(cfg.DSN)
		if dsn == "" {
			return nil, store.Unavailable(errors.New("postgres dsn is empty"))
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
