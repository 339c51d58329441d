package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	return NewHub(HubConfig{}, logger)
}

// attachClient registers a connectionless client whose send buffer can be
// inspected directly.
func attachClient(h *Hub, id string, buffer int) *Client {
	c := &Client{id: id, send: make(chan []byte, buffer), hub: h, log: h.log}
	h.mutex.Lock()
	h.clients[id] = c
	h.mutex.Unlock()
	return c
}

func TestHubDeliveryTargetsOnlyAddressedClients(t *testing.T) {
	hub := newTestHub(t)
	alice := attachClient(hub, "alice", 4)
	bob := attachClient(hub, "bob", 4)

	hub.handleDelivery(delivery{targets: []string{"alice", "ghost"}, payload: []byte("hello")})

	require.Len(t, alice.send, 1)
	assert.Equal(t, []byte("hello"), <-alice.send)
	assert.Empty(t, bob.send)
	assert.Equal(t, 2, hub.ClientCount())
}

func TestHubRemovesClientWithFullBuffer(t *testing.T) {
	hub := newTestHub(t)
	slow := attachClient(hub, "slow", 1)

	hub.handleDelivery(delivery{targets: []string{"slow"}, payload: []byte("one")})
	hub.handleDelivery(delivery{targets: []string{"slow"}, payload: []byte("two")})

	assert.Equal(t, 0, hub.ClientCount())
	assert.True(t, slow.closed)

	first, ok := <-slow.send
	require.True(t, ok)
	assert.Equal(t, []byte("one"), first)
	_, ok = <-slow.send
	assert.False(t, ok, "send channel should be closed")

	assert.NotPanics(t, func() {
		hub.handleDelivery(delivery{targets: []string{"slow"}, payload: []byte("three")})
	})
}

func TestHubDeliverPreservesOrder(t *testing.T) {
	hub := newTestHub(t)
	c := attachClient(hub, "c1", 16)
	go hub.Run()

	for i := 0; i < 5; i++ {
		hub.Deliver([]string{"c1"}, chat.Outbound{Event: chat.OutTyping, Data: chat.TypingPayload{Username: string(rune('a' + i))}})
	}
	hub.Deliver(nil, chat.Outbound{Event: chat.OutTyping})

	for i := 0; i < 5; i++ {
		select {
		case raw := <-c.send:
			var frame struct {
				Event string             `json:"event"`
				Data  chat.TypingPayload `json:"data"`
			}
			require.NoError(t, json.Unmarshal(raw, &frame))
			assert.Equal(t, "typing", frame.Event)
			assert.Equal(t, string(rune('a'+i)), frame.Data.Username)
		case <-time.After(time.Second):
			t.Fatalf("frame %d not delivered", i)
		}
	}

	require.NoError(t, hub.Shutdown(time.Second))
}

func TestHubShutdownUnblocksProducers(t *testing.T) {
	hub := newTestHub(t)
	go hub.Run()
	require.NoError(t, hub.Shutdown(time.Second))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Deliver([]string{"c1"}, chat.Outbound{Event: chat.OutTyping})
		}
		assert.False(t, hub.Register(&Client{id: "late"}))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producers blocked after shutdown")
	}
}
