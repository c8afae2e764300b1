package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:docstore-%d?mode=memory&cache=shared", time.Now().UnixNano())
	s, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		Path:   dsn,
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
