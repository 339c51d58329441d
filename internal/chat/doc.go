// Package chat implements the presence and room-routing engine of the relay.
//
// A Registry holds one Session per live connection. A Directory derives room
// membership from the registry on demand, the Router turns inbound events
// into outbound pushes, and the Handler adapts transport connect, frame and
// disconnect notifications onto the Router. Accepted messages are handed to
// an Archiver, which writes them to a history store in the background.
package chat
