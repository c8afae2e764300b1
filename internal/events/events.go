// Package events publishes post domain events to a message broker.
package events

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// 事件主题。
const (
	SubjectPostSaved       = "post.saved"
	SubjectPostPublished   = "post.published"
	SubjectPostInteraction = "post.interaction"
	SubjectCommentCreated  = "comment.created"
	// 评论点赞切换
	SubjectCommentInteraction = "comment.interaction"
)

// PostEvent 在文章保存或发布后发出。
type PostEvent struct {
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Updated   bool      `json:"updated"`
	Timestamp time.Time `json:"timestamp"`
}

// InteractionEvent 在点赞或收藏切换后发出。评论点赞会带上 CommentID。
type InteractionEvent struct {
	PostID        string    `json:"post_id"`
	CommentID     string    `json:"comment_id,omitempty"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Active        bool      `json:"active"`
	LikeCount     int       `json:"like_count"`
	BookmarkCount int       `json:"bookmark_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// CommentEvent 在评论创建后发出。
type CommentEvent struct {
	CommentID string    `json:"comment_id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	ParentID  *string   `json:"parent_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers an event payload to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// NATSPublisher publishes JSON payloads over a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

// ConnectNATS dials url and returns a publisher owning the connection.
func ConnectNATS(url string, opts ...nats.Option) (*NATSPublisher, error) {
	opts = append([]nats.Option{nats.Name("genteblog")}, opts...)
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, payload)
}

// Subscribe registers handler for subjects matching pattern, e.g. "post.*".
func (p *NATSPublisher) Subscribe(pattern string, handler func(subject string, data []byte)) (*nats.Subscription, error) {
	return p.conn.Subscribe(pattern, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	if err == nats.ErrConnectionClosed {
		err = nil
	}
	return err
}
