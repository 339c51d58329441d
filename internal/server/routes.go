// Package server wires HTTP handlers into a ServeMux for the roomchat
// application via routing helpers.
package server

import "net/http"

// Routes returns a ServeMux with all application routes.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /test", s.handleTestPage)
	mux.HandleFunc("GET /api/rooms", s.handleRooms)
	mux.HandleFunc("GET /api/rooms/{room}/users", s.handleRoomUsers)
	mux.HandleFunc("GET /api/messages/{room}", s.handleRoomMessages)
	mux.HandleFunc("GET /api/private-messages/{user1}/{user2}", s.handlePrivateMessages)
	return mux
}
