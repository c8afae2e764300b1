package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/deLKM/Genteblog/internal/store"
	"gorm.io/gorm"
)

const schemaVersionKey = "schema_version"

// SchemaMeta 存储数据库级别的键值元信息，目前只有 schema 版本。
type SchemaMeta struct {
	Name      string `gorm:"primaryKey;size:100"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName 自定义表名以保持命名一致。
func (SchemaMeta) TableName() string {
	return "schema_meta"
}

func ensureSchemaVersion(ctx context.Context, gdb *gorm.DB) error {
	var meta SchemaMeta
	err := gdb.WithContext(ctx).Where(&SchemaMeta{Name: schemaVersionKey}).Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return gdb.WithContext(ctx).Create(&SchemaMeta{
			Name:  schemaVersionKey,
			Value: strconv.Itoa(store.SchemaVersion),
		}).Error
	}
	if err != nil {
		return store.Unavailable(err)
	}

	stored, err := strconv.Atoi(meta.Value)
	if err != nil || stored != store.SchemaVersion {
		return fmt.Errorf("%w: database has %q, code expects %d", store.ErrVersionMismatch, meta.Value, store.SchemaVersion)
	}
	return nil
}

// SchemaVersion returns the version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var meta SchemaMeta
	if err := s.db.WithContext(ctx).Where(&SchemaMeta{Name: schemaVersionKey}).Take(&meta).Error; err != nil {
		return 0, err
	}
	return strconv.Atoi(meta.Value)
}
