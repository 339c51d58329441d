package history

import (
	"testing"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/stretchr/testify/assert"
)

func TestPageSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, PageSize(0, 0))
	assert.Equal(t, 10, PageSize(10, 0))
	assert.Equal(t, 50, PageSize(500, 50))
	assert.Equal(t, 50, PageSize(-1, 50))
	assert.Equal(t, 7, PageSize(7, 50))
}

func TestBetween(t *testing.T) {
	dm := chat.Message{From: "alice", To: "bob"}
	assert.True(t, Between(dm, "alice", "bob"))
	assert.True(t, Between(dm, "bob", "alice"))
	assert.False(t, Between(dm, "alice", "carol"))
	assert.False(t, Between(chat.Message{From: "alice", Room: "bob"}, "alice", "bob"))
}
