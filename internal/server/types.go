// Package server defines the wire frames exchanged with browser clients and
// utility helpers that are reused across client and hub logic.
package server

import "strings"

// Inbound frame types.
const (
	FrameJoin        = "join"
	FrameChatMessage = "chatMessage"
)

// InboundFrame is the JSON envelope a client sends. Join frames carry
// Username and Room, chat frames carry Text.
type InboundFrame struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Room     string `json:"room,omitempty"`
	Text     string `json:"text,omitempty"`
}

// InboundMessage pairs a decoded frame with the client that sent it so the
// hub can process it on its own goroutine.
type InboundMessage struct {
	Sender *Client
	Frame  InboundFrame
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
