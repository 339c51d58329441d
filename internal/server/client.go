// Package server manages individual WebSocket clients, handling read/write
// pumps and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Client represents one WebSocket connection. Its id is the connection id
// used by the chat engine.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool
	maxMessageSize int64
	log            logrus.FieldLogger
}

// NewClient creates a client with a fresh connection id and a send buffer
// sized by the hub configuration.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	if conn != nil {
		conn.SetReadLimit(hub.cfg.MaxMessageSize)
	}
	id := uuid.NewString()

	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, hub.cfg.SendBuffer),
		hub:            hub,
		addr:           addr,
		maxMessageSize: hub.cfg.MaxMessageSize,
		log: hub.log.WithFields(logrus.Fields{
			"conn": id,
			"addr": addr,
		}),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.WithError(err).Debug("Error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.WithError(err).Debug("Error setting read deadline in pong handler")
		}
		return nil
	})
}

// logReadError logs why the read loop ended.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.WithField("limit", c.maxMessageSize).Warn("Frame exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure):
		c.log.WithError(err).Debug("Client disconnected")
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.WithError(err).Debug("Client connection closed")
	default:
		c.log.WithError(err).Warn("WebSocket read error")
	}
}

// processMessage decodes a frame and hands it to the chat engine. Malformed
// frames are dropped.
func (c *Client) processMessage(raw []byte) bool {
	ev, err := decodeInbound(raw)
	if err != nil {
		c.log.WithError(err).Debug("Dropping malformed frame")
		return false
	}

	c.hub.events.Dispatch(c.id, ev)
	return true
}

// readPump dispatches frames in arrival order. When the socket closes it runs
// the disconnect path before leaving the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.events.Disconnect(c.id)
		c.hub.unregisterClient(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.WithError(err).Debug("Error closing connection in readPump")
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		c.processMessage(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	case <-c.hub.ctx.Done():
		return false
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.WithError(err).Debug("Error closing connection in writePump")
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.log.WithError(err).Debug("Error setting write deadline")
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.log.WithError(err).Debug("Error writing close message")
	}
	return false
}

// writeTextMessage writes a frame followed by any frames already queued,
// separated by newlines.
func (c *Client) writeTextMessage(message []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		c.log.WithError(err).Debug("Error creating writer")
		return false
	}

	if _, err := w.Write(message); err != nil {
		c.log.WithError(err).Debug("Error writing message")
		return false
	}

	if !c.writeQueuedMessages(w) {
		return false
	}

	if err := w.Close(); err != nil {
		c.log.WithError(err).Debug("Error closing writer")
		return false
	}
	return true
}

func (c *Client) writeQueuedMessages(w io.Writer) bool {
	n := len(c.send)
	for i := 0; i < n; i++ {
		queued, ok := <-c.send
		if !ok {
			return true
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			c.log.WithError(err).Debug("Error writing newline")
			return false
		}
		if _, err := w.Write(queued); err != nil {
			c.log.WithError(err).Debug("Error writing queued message")
			return false
		}
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.log.WithError(err).Debug("Error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.WithError(err).Debug("Error writing ping message")
		return false
	}
	return true
}
