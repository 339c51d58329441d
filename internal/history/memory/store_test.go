package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func at(minute int) time.Time {
	return base.Add(time.Duration(minute) * time.Minute)
}

func TestStoreListByRoomOrdersBySendTime(t *testing.T) {
	ctx := context.Background()
	s := NewStore(100)

	require.NoError(t, s.Save(ctx, chat.Message{ID: "2", From: "bob", Room: "sports", Body: "second", SentAt: at(2)}))
	require.NoError(t, s.Save(ctx, chat.Message{ID: "1", From: "alice", Room: "sports", Body: "first", SentAt: at(1)}))
	require.NoError(t, s.Save(ctx, chat.Message{ID: "3", From: "carol", Room: "devops", Body: "elsewhere", SentAt: at(3)}))
	require.NoError(t, s.Save(ctx, chat.Message{ID: "4", From: "alice", To: "bob", Body: "dm", SentAt: at(4)}))

	msgs, err := s.ListByRoom(ctx, "sports", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "1", msgs[0].ID)
	assert.Equal(t, "2", msgs[1].ID)
}

func TestStoreListByUserPairIsSymmetric(t *testing.T) {
	ctx := context.Background()
	s := NewStore(100)

	require.NoError(t, s.Save(ctx, chat.Message{ID: "1", From: "alice", To: "bob", Body: "hey", SentAt: at(1)}))
	require.NoError(t, s.Save(ctx, chat.Message{ID: "2", From: "bob", To: "alice", Body: "hi", SentAt: at(2)}))
	require.NoError(t, s.Save(ctx, chat.Message{ID: "3", From: "alice", To: "carol", Body: "psst", SentAt: at(3)}))
	require.NoError(t, s.Save(ctx, chat.Message{ID: "4", From: "alice", Room: "bob", Body: "room named bob", SentAt: at(4)}))

	ab, err := s.ListByUserPair(ctx, "alice", "bob", 0)
	require.NoError(t, err)
	ba, err := s.ListByUserPair(ctx, "bob", "alice", 0)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	require.Len(t, ab, 2)
	assert.Equal(t, "1", ab[0].ID)
	assert.Equal(t, "2", ab[1].ID)
}

func TestStorePageIsCapped(t *testing.T) {
	ctx := context.Background()
	s := NewStore(3)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Save(ctx, chat.Message{ID: string(rune('a' + i)), Room: "sports", SentAt: at(i)}))
	}

	msgs, err := s.ListByRoom(ctx, "sports", 50)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
	assert.Equal(t, "a", msgs[0].ID)

	msgs, err = s.ListByRoom(ctx, "sports", 2)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestStoreClosed(t *testing.T) {
	ctx := context.Background()
	s := NewStore(0)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Save(ctx, chat.Message{ID: "x"}), history.ErrClosed)
	_, err := s.ListByRoom(ctx, "sports", 0)
	assert.ErrorIs(t, err, history.ErrClosed)
}
