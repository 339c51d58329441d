package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEventKind(t *testing.T) {
	tests := []struct {
		name string
		want EventKind
		ok   bool
	}{
		{"join", EventJoin, true},
		{"joinRoom", EventJoin, true},
		{"leave", EventLeave, true},
		{"leaveRoom", EventLeave, true},
		{"chatMessage", EventChatMessage, true},
		{"privateMessage", EventPrivateMessage, true},
		{"typing", EventTyping, true},
		{"stopTyping", EventStopTyping, true},
		{"privateTyping", EventPrivateTyping, true},
		{"privateStopTyping", EventPrivateStopTyping, true},
		{"disconnect", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseEventKind(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventKindStringRoundTrip(t *testing.T) {
	for kind := EventJoin; kind <= EventPrivateStopTyping; kind++ {
		parsed, ok := ParseEventKind(kind.String())
		assert.True(t, ok, kind.String())
		assert.Equal(t, kind, parsed)
	}
	assert.Equal(t, "unknown", EventKind(0).String())
}
