// Package server implements the HTTP server functionality for roomchat.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/history"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Server ties the chat engine to its WebSocket and HTTP surface.
type Server struct {
	cfg      *config.Config
	hub      *Hub
	router   *chat.Router
	history  history.Reader
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// New builds the chat engine around a fresh hub. Accepted messages are handed
// to archive; history is served from reader.
func New(cfg *config.Config, reader history.Reader, archive chat.Archive, logger logrus.FieldLogger) *Server {
	hub := NewHub(HubConfig{
		SendBuffer:     cfg.SendBuffer,
		MaxMessageSize: cfg.MaxMessageSize,
	}, logger)

	sessions := chat.NewRegistry()
	router := chat.NewRouter(sessions, hub, archive, logger)
	hub.SetLifecycle(chat.NewHandler(sessions, router, logger))

	origins := newOriginPolicy(cfg.AllowedOrigins, logger)

	return &Server{
		cfg:     cfg,
		hub:     hub,
		router:  router,
		history: reader,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		log: logger,
	}
}

// Hub returns the connection hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run starts the hub loop in the background.
func (s *Server) Run() {
	go s.hub.Run()
}

// CreateServer creates and configures the HTTP server with security settings
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer starts the HTTP server and blocks until it exits. A server
// closed by Shutdown is not an error.
func StartServer(server *http.Server, logger logrus.FieldLogger) error {
	logger.WithField("addr", server.Addr).Info("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// ShutdownServer stops accepting HTTP requests and waits for in-flight ones.
func ShutdownServer(ctx context.Context, server *http.Server) error {
	return errors.Wrap(server.Shutdown(ctx), "http server shutdown")
}
