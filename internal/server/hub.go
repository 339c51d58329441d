// Package server coordinates client registration, addressed delivery, and
// connection cleanup for the roomchat WebSocket system via the Hub type.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/sirupsen/logrus"
)

// Lifecycle receives connection events from the transport.
type Lifecycle interface {
	Connect(connID string)
	Dispatch(connID string, ev chat.Inbound)
	Disconnect(connID string)
}

// HubConfig sizes per-client resources.
type HubConfig struct {
	SendBuffer     int
	MaxMessageSize int64
}

// Hub owns every live WebSocket connection, keyed by connection id, and
// serializes deliveries so that frames reach each client in submission order.
type Hub struct {
	clients    map[string]*Client
	broadcast  chan delivery
	register   chan *Client
	unregister chan *Client
	events     Lifecycle
	cfg        HubConfig
	log        logrus.FieldLogger
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a hub. SetLifecycle must be called before Run.
func NewHub(cfg HubConfig, logger logrus.FieldLogger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan delivery, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		cfg:        cfg,
		log:        logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// SetLifecycle attaches the receiver of connection events.
func (h *Hub) SetLifecycle(events Lifecycle) {
	h.events = events
}

// Register hands a new client to the hub, which starts its pumps. It returns
// false when the hub is shutting down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Deliver encodes ev once and queues it for the given connections. Unknown
// or departed connections are skipped.
func (h *Hub) Deliver(connIDs []string, ev chat.Outbound) {
	if len(connIDs) == 0 {
		return
	}

	payload, err := encodeOutbound(ev)
	if err != nil {
		h.log.WithError(err).WithField("event", ev.Event).Error("Dropping undeliverable event")
		return
	}

	select {
	case h.broadcast <- delivery{targets: connIDs, payload: payload}:
	case <-h.ctx.Done():
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.WithField("panic", r).Error("Recovered from panic in safeSend")
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client.id]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's event loop. It returns after Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case d := <-h.broadcast:
			h.handleDelivery(d)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()

	if h.events != nil {
		h.events.Connect(client.id)
	}
	h.log.WithFields(logrus.Fields{
		"conn":    client.id,
		"addr":    client.addr,
		"clients": clientCount,
	}).Info("Client registered")

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if current, ok := h.clients[client.id]; ok && current == client {
		delete(h.clients, client.id)
		client.closed = true
		clientCount := len(h.clients)
		h.mutex.Unlock()
		close(client.send)
		h.log.WithFields(logrus.Fields{
			"conn":    client.id,
			"addr":    client.addr,
			"clients": clientCount,
		}).Info("Client unregistered")
		return
	}
	h.mutex.Unlock()
}

// handleDelivery sends a frame to each addressed client that is still
// registered and removes clients whose buffers are full.
func (h *Hub) handleDelivery(d delivery) {
	var clientsToRemove []*Client

	for _, id := range d.targets {
		h.mutex.RLock()
		client, ok := h.clients[id]
		h.mutex.RUnlock()
		if !ok {
			continue
		}
		if !h.safeSend(client, d.payload) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}

	h.removeFailedClients(clientsToRemove)
}

// removeFailedClients removes clients that failed to receive messages and closes their channels
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if current, exists := h.clients[client.id]; exists && current == client {
			delete(h.clients, client.id)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			h.log.WithFields(logrus.Fields{
				"conn": client.id,
				"addr": client.addr,
			}).Warn("Client removed due to full send buffer")
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients forgets every client and closes its connection. Read pumps
// then run the normal disconnect path.
func (h *Hub) shutdownClients() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		client.closed = true
		clients = append(clients, client)
		delete(h.clients, id)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.WithError(err).WithField("addr", client.addr).Warn("Error closing client connection")
		}
	}

	h.log.WithField("clients", len(clients)).Info("Closed client connections")
}

// Shutdown stops the hub and waits for every client goroutine to finish or
// for the timeout to expire.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown")
	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
