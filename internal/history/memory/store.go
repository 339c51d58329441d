// Package memory provides an in-process history store.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/history"
)

type store struct {
	messages []chat.Message
	maxPage  int
	closed   bool
	sync.RWMutex
}

// NewStore creates a memory-based history store whose pages never exceed
// maxPage messages.
func NewStore(maxPage int) history.Store {
	return &store{
		maxPage: history.PageSize(0, maxPage),
	}
}

func (s *store) Save(_ context.Context, msg chat.Message) error {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return history.ErrClosed
	}

	// Archiver workers may finish out of order, so insert by send time.
	i := len(s.messages)
	for i > 0 && s.messages[i-1].SentAt.After(msg.SentAt) {
		i--
	}
	s.messages = slices.Insert(s.messages, i, msg)
	return nil
}

func (s *store) ListByRoom(_ context.Context, room string, limit int) ([]chat.Message, error) {
	return s.collect(limit, func(m chat.Message) bool {
		return !m.Private() && m.Room == room
	})
}

func (s *store) ListByUserPair(_ context.Context, user1, user2 string, limit int) ([]chat.Message, error) {
	return s.collect(limit, func(m chat.Message) bool {
		return history.Between(m, user1, user2)
	})
}

func (s *store) Close() error {
	s.Lock()
	defer s.Unlock()
	s.closed = true
	return nil
}

func (s *store) collect(limit int, match func(chat.Message) bool) ([]chat.Message, error) {
	s.RLock()
	defer s.RUnlock()

	if s.closed {
		return nil, history.ErrClosed
	}

	limit = history.PageSize(limit, s.maxPage)
	out := make([]chat.Message, 0)
	for _, m := range s.messages {
		if !match(m) {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
