// Package history defines the persistence collaborator of the relay: a store
// that appends accepted messages and serves them back by room or by user
// pair, oldest first, in bounded pages.
package history

import (
	"context"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// DefaultPageSize caps history listings when no limit is configured.
const DefaultPageSize = 100

// Reader serves message history.
type Reader interface {
	ListByRoom(ctx context.Context, room string, limit int) ([]chat.Message, error)
	ListByUserPair(ctx context.Context, user1, user2 string, limit int) ([]chat.Message, error)
}

// Store is implemented by every history backend.
type Store interface {
	Reader
	Save(ctx context.Context, msg chat.Message) error
	Close() error
}

// PageSize clamps a requested limit to (0, max]. A max of zero or less
// means DefaultPageSize.
func PageSize(limit, max int) int {
	if max <= 0 {
		max = DefaultPageSize
	}
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

// Between reports whether msg is a private message exchanged between user1
// and user2, in either direction.
func Between(msg chat.Message, user1, user2 string) bool {
	if !msg.Private() {
		return false
	}
	return (msg.From == user1 && msg.To == user2) || (msg.From == user2 && msg.To == user1)
}
