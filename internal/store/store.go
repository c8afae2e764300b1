// Package store defines the storage port that the post repository talks to.
// Backends (internal/db over gorm, internal/kvstore over redis) implement
// Store and are chosen once at process start.
package store

import (
	"context"
	"time"

	"github.com/deLKM/Genteblog/internal/model"
)

// SchemaVersion is the version of the collection layout. Snapshots carrying
// another version are rejected; there is no migration path.
const SchemaVersion = 1

// Mode selects read-only or read-write transactions.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

// Collection names one of the record collections.
type Collection string

const (
	Posts        Collection = "posts"
	Interactions Collection = "interactions"
	Revisions    Collection = "revisions"
	Comments     Collection = "comments"
)

// AllCollections lists every collection in declaration order.
var AllCollections = []Collection{Posts, Interactions, Revisions, Comments}

// Store opens scoped transactions over the collections.
type Store interface {
	// WithTransaction runs body inside one transaction scoped to collections.
	// All writes made through tx are committed when body returns nil and
	// discarded when it returns an error.
	WithTransaction(ctx context.Context, collections []Collection, mode Mode, body func(tx Tx) error) error
	// Close releases the underlying handle.
	Close() error
}

// Tx exposes the collection handles of a running transaction. Handles for
// collections outside the scope fail with ErrNotInScope.
type Tx interface {
	Posts() PostCollection
	Interactions() InteractionCollection
	Revisions() RevisionCollection
	Comments() CommentCollection
}

// PostCollection is keyed by Post.ID.
type PostCollection interface {
	Get(id string) (*model.Post, error)
	Put(post *model.Post) error
	// Scan walks every post. A record that cannot be decoded is reported
	// as (nil, err); returning an error from fn stops the walk.
	Scan(fn func(post *model.Post, err error) error) error
}

// InteractionCollection is keyed by the composite interaction id.
type InteractionCollection interface {
	Get(id string) (*model.Interaction, error)
	Put(interaction *model.Interaction) error
	Scan(fn func(interaction *model.Interaction, err error) error) error
	// DeleteInactiveBefore removes inactive interactions whose UpdatedAt is
	// strictly older than cutoff.
	DeleteInactiveBefore(cutoff time.Time) (int, error)
}

// RevisionCollection holds append-only revisions with sequence ids.
type RevisionCollection interface {
	// Add assigns the next sequence id and stores the revision.
	Add(revision *model.Revision) error
	// Put stores a revision keeping its id, used by restore.
	Put(revision *model.Revision) error
	ListByPost(postID string) ([]model.Revision, error)
	Scan(fn func(revision *model.Revision, err error) error) error
	// DeleteBefore removes revisions whose CreatedAt is strictly older than cutoff.
	DeleteBefore(cutoff time.Time) (int, error)
}

// CommentCollection is keyed by Comment.ID.
type CommentCollection interface {
	Get(id string) (*model.Comment, error)
	Put(comment *model.Comment) error
	Scan(fn func(comment *model.Comment, err error) error) error
}
