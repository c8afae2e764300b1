package service

import (
	"errors"
	"time"

	"github.com/deLKM/Genteblog/internal/codec"
	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
)

var (
	ErrPostNotFound       = errors.New("post not found")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrInvalidStatus      = errors.New("invalid post status")
	ErrInvalidInteraction = errors.New("invalid interaction type")
	ErrCorruptRecord      = errors.New("corrupt record")
	ErrInvalidUser        = errors.New("invalid user")
	ErrEmptyComment       = errors.New("comment content is empty")
	ErrInvalidBackup      = errors.New("invalid backup file")
)

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func utcNow(clock Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}

// notFound 将存储层的 ErrNotFound 转换为业务层错误，其余错误原样返回。
func notFound(err, target error) error {
	if errors.Is(err, store.ErrNotFound) {
		return target
	}
	return err
}

// decodedPost 返回一份内容已解码的副本，存储中的记录不受影响。
func decodedPost(p *model.Post) *model.Post {
	out := p.Clone()
	out.Content = codec.Decode(p.Content)
	out.ContentHTML = codec.Decode(p.ContentHTML)
	return out
}

// strictDecodedPost 与 decodedPost 相同，但带前缀却无法解码的内容会报告 ErrCorruptRecord。
// 不带前缀的旧记录按明文处理。
func strictDecodedPost(p *model.Post) (*model.Post, error) {
	out := p.Clone()
	for _, field := range []*string{&out.Content, &out.ContentHTML} {
		if !codec.IsEncoded(*field) {
			continue
		}
		text, err := codec.DecodeStrict(*field)
		if err != nil {
			return nil, ErrCorruptRecord
		}
		*field = text
	}
	return out, nil
}

func floorZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
