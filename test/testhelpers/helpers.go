// Package testhelpers provides common utilities for exercising the roomchat
// server over real HTTP and WebSocket connections in tests.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// DefaultOrigin matches the server's default origin allow-list.
const DefaultOrigin = "http://localhost:8080"

// User is one entry of a presence frame.
type User struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// Frame is any outbound frame the server emits.
type Frame struct {
	Type      string `json:"type"`
	From      string `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Room      string `json:"room,omitempty"`
	Users     []User `json:"users,omitempty"`
}

// Usernames lists the usernames of a presence frame in order.
func (f Frame) Usernames() []string {
	names := make([]string, 0, len(f.Users))
	for _, u := range f.Users {
		names = append(names, u.Username)
	}
	return names
}

// Peer is a test WebSocket client. The server may batch several frames into
// one WebSocket message separated by newlines; Peer splits them back apart.
type Peer struct {
	Conn    *websocket.Conn
	pending [][]byte
}

// WebSocketURL turns an httptest server URL into its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// ConnectWebSocket dials url with the given Origin header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	return dialer.Dial(url, headers)
}

// Dial connects a Peer using DefaultOrigin and closes it on cleanup.
func Dial(t *testing.T, url string) *Peer {
	t.Helper()
	conn, resp, err := ConnectWebSocket(url, DefaultOrigin)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &Peer{Conn: conn}
}

// Join sends a join frame.
func (p *Peer) Join(t *testing.T, username, room string) {
	t.Helper()
	require.NoError(t, p.Conn.WriteJSON(map[string]string{
		"type":     "join",
		"username": username,
		"room":     room,
	}))
}

// Say sends a chat frame.
func (p *Peer) Say(t *testing.T, text string) {
	t.Helper()
	require.NoError(t, p.Conn.WriteJSON(map[string]string{
		"type": "chatMessage",
		"text": text,
	}))
}

// Next returns the next frame, failing the test if none arrives in time.
func (p *Peer) Next(t *testing.T) Frame {
	t.Helper()
	raw, err := p.next(2 * time.Second)
	require.NoError(t, err, "expected a frame")

	var frame Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

// ExpectNone fails the test if any frame arrives within timeout.
func (p *Peer) ExpectNone(t *testing.T, timeout time.Duration) {
	t.Helper()
	raw, err := p.next(timeout)
	if err == nil {
		t.Fatalf("expected no frame, got %s", raw)
	}
}

// Close sends a close frame and closes the socket.
func (p *Peer) Close() error {
	_ = p.Conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return p.Conn.Close()
}

func (p *Peer) next(timeout time.Duration) ([]byte, error) {
	if len(p.pending) > 0 {
		frame := p.pending[0]
		p.pending = p.pending[1:]
		return frame, nil
	}

	if err := p.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	_, message, err := p.Conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	parts := bytes.Split(message, []byte{'\n'})
	p.pending = append(p.pending, parts[1:]...)
	return parts[0], nil
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	require.Equal(t, expected, resp.StatusCode)
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
