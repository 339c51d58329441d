package chat

import "github.com/sirupsen/logrus"

// Handler adapts transport notifications onto the Router. It holds no state
// of its own beyond routing.
type Handler struct {
	sessions *Registry
	router   *Router
	log      logrus.FieldLogger
}

// NewHandler creates a lifecycle handler.
func NewHandler(sessions *Registry, router *Router, logger logrus.FieldLogger) *Handler {
	return &Handler{
		sessions: sessions,
		router:   router,
		log:      logger,
	}
}

// Connect registers an empty session for a new connection.
func (h *Handler) Connect(connID string) {
	h.sessions.Put(connID, "", "")
	h.log.WithField("conn", connID).Debug("Session created")
}

// Dispatch routes one inbound event from connID.
func (h *Handler) Dispatch(connID string, ev Inbound) {
	switch ev.Kind {
	case EventJoin:
		h.router.Join(connID, ev.Username, ev.Room)
	case EventLeave:
		h.router.Leave(connID)
	case EventChatMessage:
		h.router.ChatMessage(connID, ev.Message)
	case EventPrivateMessage:
		h.router.PrivateMessage(connID, ev.ToUser, ev.Message)
	case EventTyping:
		h.router.Typing(connID, false)
	case EventStopTyping:
		h.router.Typing(connID, true)
	case EventPrivateTyping:
		h.router.PrivateTyping(connID, ev.ToUser, false)
	case EventPrivateStopTyping:
		h.router.PrivateTyping(connID, ev.ToUser, true)
	default:
		h.log.WithFields(logrus.Fields{"conn": connID, "kind": int(ev.Kind)}).Warn("Unhandled event kind")
	}
}

// Disconnect runs the disconnect transition, which removes the session.
func (h *Handler) Disconnect(connID string) {
	h.router.Disconnect(connID)
	h.log.WithField("conn", connID).Debug("Session removed")
}
