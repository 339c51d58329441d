// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, room and history queries, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/history"
	"github.com/sirupsen/logrus"
)

// historyItem is one message in a history listing.
type historyItem struct {
	ID string `json:"id"`
	chat.MessagePayload
}

type errorBody struct {
	Error string `json:"error"`
}

// handleWebSocket upgrades a GET request and registers the new client with
// the hub, which starts its pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("WebSocket upgrade failed")
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr)
	if !s.hub.Register(client) {
		_ = conn.Close()
	}
}

// handleHealth reports that the server is up.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomchat server is running!")
}

// handleRooms lists the configured rooms.
func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.Rooms)
}

// handleRoomUsers lists the usernames currently in a room.
func (s *Server) handleRoomUsers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.router.Members(r.PathValue("room")))
}

func (s *Server) handleRoomMessages(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.pageLimit(w, r)
	if !ok {
		return
	}

	room := r.PathValue("room")
	messages, err := s.history.ListByRoom(r.Context(), room, limit)
	if err != nil {
		s.log.WithError(err).WithField("room", room).Error("Failed to list room history")
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Error fetching messages"})
		return
	}
	s.writeJSON(w, http.StatusOK, historyItems(messages))
}

func (s *Server) handlePrivateMessages(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.pageLimit(w, r)
	if !ok {
		return
	}

	user1, user2 := r.PathValue("user1"), r.PathValue("user2")
	messages, err := s.history.ListByUserPair(r.Context(), user1, user2, limit)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user1": user1,
			"user2": user2,
		}).Error("Failed to list private history")
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Error fetching messages"})
		return
	}
	s.writeJSON(w, http.StatusOK, historyItems(messages))
}

// pageLimit reads the optional limit query parameter, clamped to the
// configured history limit.
func (s *Server) pageLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return history.PageSize(0, s.cfg.HistoryLimit), true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
		return 0, false
	}
	return history.PageSize(limit, s.cfg.HistoryLimit), true
}

func historyItems(messages []chat.Message) []historyItem {
	items := make([]historyItem, 0, len(messages))
	for _, msg := range messages {
		items = append(items, historyItem{ID: msg.ID, MessagePayload: msg.Payload()})
	}
	return items
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Debug("Error writing JSON response")
	}
}

// handleTestPage serves an HTML page for exercising the chat by hand.
func (s *Server) handleTestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		s.log.WithError(err).Debug("Error writing HTML response")
	}
}
