package db

import (
	"errors"
	"time"

	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
	"gorm.io/gorm"
)

type txn struct {
	db       *gorm.DB
	scope    store.Scope
	postgres bool
}

func (t *txn) Posts() store.PostCollection               { return postCollection{t} }
func (t *txn) Interactions() store.InteractionCollection { return interactionCollection{t} }
func (t *txn) Revisions() store.RevisionCollection       { return revisionCollection{t} }
func (t *txn) Comments() store.CommentCollection         { return commentCollection{t} }

func takeByID[T any](t *txn, c store.Collection, column string, id any) (*T, error) {
	if err := t.scope.Check(c, false); err != nil {
		return nil, err
	}
	var record T
	if err := t.db.Where(column+" = ?", id).Take(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func save(t *txn, c store.Collection, record any) error {
	if err := t.scope.Check(c, true); err != nil {
		return err
	}
	return t.db.Save(record).Error
}

// scan 以游标方式读取整张表，逐行解码；解码失败的行以 (nil, err) 交给回调。
// 先读完再回调，回调内可以安全地继续使用同一事务。
func scan[T any](t *txn, c store.Collection, order string, fn func(*T, error) error) error {
	if err := t.scope.Check(c, false); err != nil {
		return err
	}

	rows, err := t.db.Model(new(T)).Order(order).Rows()
	if err != nil {
		return err
	}

	var (
		records []*T
		errs    []error
	)
	for rows.Next() {
		var record T
		if err := t.db.ScanRows(rows, &record); err != nil {
			records = append(records, nil)
			errs = append(errs, err)
			continue
		}
		records = append(records, &record)
		errs = append(errs, nil)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for i := range records {
		if err := fn(records[i], errs[i]); err != nil {
			return err
		}
	}
	return nil
}

type postCollection struct{ t *txn }

func (c postCollection) Get(id string) (*model.Post, error) {
	return takeByID[model.Post](c.t, store.Posts, "id", id)
}

func (c postCollection) Put(post *model.Post) error {
	return save(c.t, store.Posts, post)
}

func (c postCollection) Scan(fn func(*model.Post, error) error) error {
	return scan(c.t, store.Posts, "id", fn)
}

type interactionCollection struct{ t *txn }

func (c interactionCollection) Get(id string) (*model.Interaction, error) {
	return takeByID[model.Interaction](c.t, store.Interactions, "id", id)
}

func (c interactionCollection) Put(interaction *model.Interaction) error {
	return save(c.t, store.Interactions, interaction)
}

func (c interactionCollection) Scan(fn func(*model.Interaction, error) error) error {
	return scan(c.t, store.Interactions, "id", fn)
}

func (c interactionCollection) DeleteInactiveBefore(cutoff time.Time) (int, error) {
	if err := c.t.scope.Check(store.Interactions, true); err != nil {
		return 0, err
	}
	res := c.t.db.Where("active = ? AND updated_at < ?", false, cutoff.UTC()).Delete(&model.Interaction{})
	return int(res.RowsAffected), res.Error
}

type revisionCollection struct{ t *txn }

func (c revisionCollection) Add(revision *model.Revision) error {
	if err := c.t.scope.Check(store.Revisions, true); err != nil {
		return err
	}
	revision.ID = 0
	return c.t.db.Create(revision).Error
}

func (c revisionCollection) Put(revision *model.Revision) error {
	if err := save(c.t, store.Revisions, revision); err != nil {
		return err
	}
	if c.t.postgres {
		// 显式写入的 id 不会推进序列，需要手动对齐。
		return c.t.db.Exec("SELECT setval(pg_get_serial_sequence('revisions', 'id'), GREATEST((SELECT MAX(id) FROM revisions), 1))").Error
	}
	return nil
}

func (c revisionCollection) ListByPost(postID string) ([]model.Revision, error) {
	if err := c.t.scope.Check(store.Revisions, false); err != nil {
		return nil, err
	}
	var revisions []model.Revision
	if err := c.t.db.Where("post_id = ?", postID).Order("created_at desc, id desc").Find(&revisions).Error; err != nil {
		return nil, err
	}
	return revisions, nil
}

func (c revisionCollection) Scan(fn func(*model.Revision, error) error) error {
	return scan(c.t, store.Revisions, "id", fn)
}

func (c revisionCollection) DeleteBefore(cutoff time.Time) (int, error) {
	if err := c.t.scope.Check(store.Revisions, true); err != nil {
		return 0, err
	}
	res := c.t.db.Where("created_at < ?", cutoff.UTC()).Delete(&model.Revision{})
	return int(res.RowsAffected), res.Error
}

type commentCollection struct{ t *txn }

func (c commentCollection) Get(id string) (*model.Comment, error) {
	return takeByID[model.Comment](c.t, store.Comments, "id", id)
}

func (c commentCollection) Put(comment *model.Comment) error {
	return save(c.t, store.Comments, comment)
}

func (c commentCollection) Scan(fn func(*model.Comment, error) error) error {
	return scan(c.t, store.Comments, "created_at, id", fn)
}
