package chat

import (
	"strings"
	"time"
)

// SystemSender is the from_user of join, leave and disconnect notices.
const SystemSender = "System"

// EventKind enumerates the inbound events a connection can send.
type EventKind int

// Inbound event kinds. Disconnect is not listed: it comes from the
// transport, not from a client frame.
const (
	EventJoin EventKind = iota + 1
	EventLeave
	EventChatMessage
	EventPrivateMessage
	EventTyping
	EventStopTyping
	EventPrivateTyping
	EventPrivateStopTyping
)

var eventNames = map[EventKind]string{
	EventJoin:              "join",
	EventLeave:             "leave",
	EventChatMessage:       "chatMessage",
	EventPrivateMessage:    "privateMessage",
	EventTyping:            "typing",
	EventStopTyping:        "stopTyping",
	EventPrivateTyping:     "privateTyping",
	EventPrivateStopTyping: "privateStopTyping",
}

var eventAliases = map[string]EventKind{
	"joinRoom":  EventJoin,
	"leaveRoom": EventLeave,
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseEventKind maps a wire event name to its kind.
func ParseEventKind(name string) (EventKind, bool) {
	for kind, n := range eventNames {
		if n == name {
			return kind, true
		}
	}
	kind, ok := eventAliases[name]
	return kind, ok
}

// Inbound is a decoded client event. Only the fields relevant to Kind are
// populated.
type Inbound struct {
	Kind     EventKind
	Username string
	Room     string
	ToUser   string
	Message  string
}

// Outbound event names.
const (
	OutMessage           = "message"
	OutRoomUsers         = "roomUsers"
	OutTyping            = "typing"
	OutStopTyping        = "stopTyping"
	OutPrivateMessage    = "privateMessage"
	OutPrivateTyping     = "privateTyping"
	OutPrivateStopTyping = "privateStopTyping"
)

// Outbound is an event pushed to one or more connections.
type Outbound struct {
	Event string
	Data  any
}

// MessagePayload is the data of message and privateMessage events.
type MessagePayload struct {
	FromUser string    `json:"from_user"`
	ToUser   string    `json:"to_user,omitempty"`
	Room     string    `json:"room,omitempty"`
	Message  string    `json:"message"`
	DateSent time.Time `json:"date_sent"`
}

// TypingPayload is the data of the typing indicator events.
type TypingPayload struct {
	Username string `json:"username"`
}

// Message is an accepted chat or private message. It is never modified after
// construction.
type Message struct {
	ID     string
	From   string
	To     string
	Room   string
	Body   string
	SentAt time.Time
}

// Private reports whether the message is addressed to a single user.
func (m Message) Private() bool {
	return m.To != ""
}

// Payload converts the message into its wire representation.
func (m Message) Payload() MessagePayload {
	return MessagePayload{
		FromUser: m.From,
		ToUser:   m.To,
		Room:     m.Room,
		Message:  m.Body,
		DateSent: m.SentAt,
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
