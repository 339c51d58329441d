package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Sink pushes an outbound event to a set of connections.
type Sink interface {
	Deliver(connIDs []string, ev Outbound)
}

// Archive accepts messages for persistence. Submit must not block and may
// drop the message; callers never learn about persistence failures.
type Archive interface {
	Submit(msg Message)
}

// Router applies inbound events to the registry and decides which
// connections receive which outbound events.
//
// Every transition for a given connection is driven from that connection's
// own read loop, so a session is only ever mutated by one goroutine.
type Router struct {
	sessions *Registry
	rooms    *Directory
	sink     Sink
	archive  Archive
	log      logrus.FieldLogger

	now   func() time.Time
	newID func() string
}

// NewRouter creates a router over the given registry.
func NewRouter(sessions *Registry, sink Sink, archive Archive, logger logrus.FieldLogger) *Router {
	return &Router{
		sessions: sessions,
		rooms:    NewDirectory(sessions),
		sink:     sink,
		archive:  archive,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Join binds the username on first use and moves the session into room.
// A session already in another room leaves it first.
func (rt *Router) Join(connID, username, room string) {
	if blank(username) || blank(room) {
		rt.drop(connID, EventJoin, "missing username or room")
		return
	}

	sess, ok := rt.sessions.Get(connID)
	if !ok {
		return
	}
	if sess.InRoom() && sess.Room != room {
		rt.depart(connID, "has left the room", false)
	}
	if sess.Identified() {
		username = sess.Username
	}

	rt.sessions.Put(connID, username, room)

	occupants := rt.rooms.roster(room)
	rt.notice(connections(occupants, connID), room, fmt.Sprintf("%s has joined the room", username))
	rt.sink.Deliver(connections(occupants, ""), Outbound{Event: OutRoomUsers, Data: usernames(occupants, "")})

	rt.log.WithFields(logrus.Fields{"conn": connID, "user": username, "room": room}).Info("Joined room")
}

// Leave takes the session out of its current room.
func (rt *Router) Leave(connID string) {
	rt.depart(connID, "has left the room", false)
}

// Disconnect announces the departure of a session that was in a room and
// then removes it unconditionally.
func (rt *Router) Disconnect(connID string) {
	rt.depart(connID, "has disconnected", true)
	rt.sessions.Remove(connID)
}

// depart pushes a notice to the other members of the session's room, clears
// the room and pushes the remaining roster.
func (rt *Router) depart(connID, verb string, disconnecting bool) {
	sess, ok := rt.sessions.Get(connID)
	if !ok || !sess.InRoom() {
		return
	}

	before := rt.rooms.roster(sess.Room)
	rt.notice(connections(before, connID), sess.Room, fmt.Sprintf("%s %s", sess.Username, verb))

	rt.sessions.SetRoom(connID, "")

	after := rt.rooms.roster(sess.Room)
	rt.sink.Deliver(connections(after, ""), Outbound{Event: OutRoomUsers, Data: usernames(after, "")})

	fields := logrus.Fields{"conn": connID, "user": sess.Username, "room": sess.Room}
	if disconnecting {
		rt.log.WithFields(fields).Info("Disconnected from room")
		return
	}
	rt.log.WithFields(fields).Info("Left room")
}

// ChatMessage persists body and broadcasts it to every member of the
// sender's room, sender included.
func (rt *Router) ChatMessage(connID, body string) {
	if blank(body) {
		rt.drop(connID, EventChatMessage, "missing message")
		return
	}
	sess, ok := rt.sessions.Get(connID)
	if !ok || !sess.InRoom() {
		rt.drop(connID, EventChatMessage, "not in a room")
		return
	}

	msg := Message{
		ID:     rt.newID(),
		From:   sess.Username,
		Room:   sess.Room,
		Body:   body,
		SentAt: rt.now(),
	}
	rt.archive.Submit(msg)

	occupants := rt.rooms.roster(sess.Room)
	rt.sink.Deliver(connections(occupants, ""), Outbound{Event: OutMessage, Data: msg.Payload()})
}

// PrivateMessage persists body, echoes it to the sender and delivers it to
// the recipient when the recipient is online.
func (rt *Router) PrivateMessage(connID, toUser, body string) {
	if blank(toUser) || blank(body) {
		rt.drop(connID, EventPrivateMessage, "missing to_user or message")
		return
	}
	sess, ok := rt.sessions.Get(connID)
	if !ok || !sess.Identified() {
		rt.drop(connID, EventPrivateMessage, "session not identified")
		return
	}

	msg := Message{
		ID:     rt.newID(),
		From:   sess.Username,
		To:     toUser,
		Body:   body,
		SentAt: rt.now(),
	}
	rt.archive.Submit(msg)

	ev := Outbound{Event: OutPrivateMessage, Data: msg.Payload()}
	rt.sink.Deliver([]string{connID}, ev)

	recipient, online := rt.sessions.FindByUsername(toUser)
	if !online {
		rt.log.WithFields(logrus.Fields{"conn": connID, "to": toUser}).Debug("Private message recipient offline")
		return
	}
	rt.sink.Deliver([]string{recipient}, ev)
}

// Typing relays a room typing indicator to everyone in the room but the
// sender.
func (rt *Router) Typing(connID string, stop bool) {
	sess, ok := rt.sessions.Get(connID)
	if !ok || !sess.InRoom() {
		return
	}

	event := OutTyping
	if stop {
		event = OutStopTyping
	}
	others := connections(rt.rooms.roster(sess.Room), connID)
	rt.sink.Deliver(others, Outbound{Event: event, Data: TypingPayload{Username: sess.Username}})
}

// PrivateTyping relays a typing indicator to toUser only, if online.
func (rt *Router) PrivateTyping(connID, toUser string, stop bool) {
	if blank(toUser) {
		return
	}
	sess, ok := rt.sessions.Get(connID)
	if !ok || !sess.Identified() {
		return
	}
	recipient, online := rt.sessions.FindByUsername(toUser)
	if !online {
		return
	}

	event := OutPrivateTyping
	if stop {
		event = OutPrivateStopTyping
	}
	rt.sink.Deliver([]string{recipient}, Outbound{Event: event, Data: TypingPayload{Username: sess.Username}})
}

// Members exposes the room directory.
func (rt *Router) Members(room string) []string {
	return rt.rooms.MembersOf(room, "")
}

func (rt *Router) notice(connIDs []string, room, text string) {
	msg := MessagePayload{
		FromUser: SystemSender,
		Room:     room,
		Message:  text,
		DateSent: rt.now(),
	}
	rt.sink.Deliver(connIDs, Outbound{Event: OutMessage, Data: msg})
}

func (rt *Router) drop(connID string, kind EventKind, reason string) {
	rt.log.WithFields(logrus.Fields{"conn": connID, "event": kind.String()}).Debugf("Dropping event: %s", reason)
}
