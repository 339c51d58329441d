// Package server implements the HTTP and WebSocket transport of roomchat.
//
// The implementation is organized into specialized files for the hub, clients,
// the frame codec, origin checks, routing, and HTTP handlers. Presence and
// routing decisions live in package chat; this package only moves frames
// between sockets and the chat engine.
package server
