// Package server defines the wire envelope and utility helpers that are
// reused across client and hub logic.
package server

import (
	"encoding/json"
	"strings"
)

// Envelope is the JSON frame exchanged with clients in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// delivery is a frame addressed to a set of connections.
type delivery struct {
	targets []string
	payload []byte
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
