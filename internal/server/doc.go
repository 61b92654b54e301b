// Package server implements the HTTP and WebSocket transport for roomchat.
//
// The Hub owns the live connections and feeds their join, chat and
// disconnect events, one at a time, into a presence.Controller. Outbound
// frames come back through Hub.Deliver, which never blocks: a client whose
// send buffer is full is evicted instead of stalling the room.
package server
