package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Snapshot 是导出文件的结构，记录保持存储时的原样（内容仍为编码后文本）。
type Snapshot struct {
	Posts        []model.Post        `json:"posts"`
	Interactions []model.Interaction `json:"interactions"`
	Revisions    []model.Revision    `json:"revisions"`
	ExportDate   string              `json:"exportDate"`
	Version      int                 `json:"version"`
}

// ImportResult counts the records written by an import.
type ImportResult struct {
	Posts        int `json:"posts"`
	Interactions int `json:"interactions"`
	Revisions    int `json:"revisions"`
}

var backupScope = []store.Collection{store.Posts, store.Interactions, store.Revisions}

// BackupService exports and restores the post collections as one JSON document.
type BackupService struct {
	store store.Store
	log   *zap.Logger
	clock Clock
}

func NewBackupService(s store.Store) *BackupService {
	return &BackupService{store: s, log: zap.NewNop()}
}

func (s *BackupService) WithLogger(l *zap.Logger) *BackupService {
	if l != nil {
		s.log = l
	}
	return s
}

func (s *BackupService) WithClock(c Clock) *BackupService {
	s.clock = c
	return s
}

// Export reads all three collections inside a single read-only transaction.
// Records that cannot be decoded are left out and logged.
func (s *BackupService) Export(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Posts:        []model.Post{},
		Interactions: []model.Interaction{},
		Revisions:    []model.Revision{},
		Version:      store.SchemaVersion,
	}
	err := s.store.WithTransaction(ctx, backupScope, store.ReadOnly, func(tx store.Tx) error {
		if err := tx.Posts().Scan(func(p *model.Post, err error) error {
			if err != nil {
				s.log.Warn("export skipped unreadable post", zap.Error(err))
				return nil
			}
			snap.Posts = append(snap.Posts, *p)
			return nil
		}); err != nil {
			return err
		}
		if err := tx.Interactions().Scan(func(i *model.Interaction, err error) error {
			if err != nil {
				s.log.Warn("export skipped unreadable interaction", zap.Error(err))
				return nil
			}
			snap.Interactions = append(snap.Interactions, *i)
			return nil
		}); err != nil {
			return err
		}
		return tx.Revisions().Scan(func(r *model.Revision, err error) error {
			if err != nil {
				s.log.Warn("export skipped unreadable revision", zap.Error(err))
				return nil
			}
			snap.Revisions = append(snap.Revisions, *r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	snap.ExportDate = utcNow(s.clock).Format(time.RFC3339)
	return snap, nil
}

// WriteSnapshot exports and encodes the snapshot to w.
func (s *BackupService) WriteSnapshot(ctx context.Context, w io.Writer) error {
	snap, err := s.Export(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Import decodes a snapshot from r and upserts every record in one
// read-write transaction. A version other than store.SchemaVersion is
// rejected before the store is touched.
func (s *BackupService) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	return s.Restore(ctx, &snap)
}

// Restore writes an already decoded snapshot.
func (s *BackupService) Restore(ctx context.Context, snap *Snapshot) (*ImportResult, error) {
	if snap.Version != store.SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", store.ErrVersionMismatch, snap.Version, store.SchemaVersion)
	}

	result := &ImportResult{}
	err := s.store.WithTransaction(ctx, backupScope, store.ReadWrite, func(tx store.Tx) error {
		for i := range snap.Posts {
			p := snap.Posts[i]
			if p.ID == "" {
				return fmt.Errorf("%w: post without id", ErrInvalidBackup)
			}
			normalizePostTimes(&p)
			if err := tx.Posts().Put(&p); err != nil {
				return fmt.Errorf("restore post %s: %w", p.ID, err)
			}
			result.Posts++
		}
		for i := range snap.Interactions {
			it := snap.Interactions[i]
			switch {
			case it.ID != "":
			case it.OnComment():
				it.ID = model.InteractionKey(it.CommentID, it.UserID, it.Type)
			default:
				it.ID = model.InteractionKey(it.PostID, it.UserID, it.Type)
			}
			it.CreatedAt = it.CreatedAt.UTC()
			it.UpdatedAt = it.UpdatedAt.UTC()
			if err := tx.Interactions().Put(&it); err != nil {
				return fmt.Errorf("restore interaction %s: %w", it.ID, err)
			}
			result.Interactions++
		}
		for i := range snap.Revisions {
			rev := snap.Revisions[i]
			rev.CreatedAt = rev.CreatedAt.UTC()
			var err error
			if rev.ID == 0 {
				err = tx.Revisions().Add(&rev)
			} else {
				err = tx.Revisions().Put(&rev)
			}
			if err != nil {
				return fmt.Errorf("restore revision %d: %w", rev.ID, err)
			}
			result.Revisions++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("snapshot restored",
		zap.Int("posts", result.Posts),
		zap.Int("interactions", result.Interactions),
		zap.Int("revisions", result.Revisions),
	)
	return result, nil
}

func normalizePostTimes(p *model.Post) {
	m := &p.Metadata
	m.CreatedAt = m.CreatedAt.UTC()
	m.LastEditedAt = m.LastEditedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	if m.PublishedAt != nil {
		v := m.PublishedAt.UTC()
		m.PublishedAt = &v
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
}
