package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/presence"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(discardLogger())
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })
	return hub
}

// registerOffline registers a client that has no socket, so its frames stay
// in the send channel for the test to read.
func registerOffline(t *testing.T, hub *Hub, id presence.ConnID) *Client {
	t.Helper()
	client := NewClient(id, nil, hub, "127.0.0.1:0")
	hub.GetRegisterChan() <- client
	return client
}

func readFrame(t *testing.T, client *Client) map[string]any {
	t.Helper()
	select {
	case raw, ok := <-client.GetSendChan():
		require.True(t, ok, "send channel closed")
		var frame map[string]any
		require.NoError(t, json.Unmarshal(raw, &frame))
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func expectNoFrame(t *testing.T, client *Client) {
	t.Helper()
	select {
	case raw := <-client.GetSendChan():
		t.Fatalf("unexpected frame %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(discardLogger())

	require.NotNil(t, hub.GetRegisterChan())
	require.NotNil(t, hub.GetUnregisterChan())
	require.NotNil(t, hub.GetInboundChan())
	require.NotNil(t, hub.Engine())

	connections, sessions, rooms := hub.Stats()
	require.Zero(t, connections)
	require.Zero(t, sessions)
	require.Zero(t, rooms)
}

func TestHub_Deliver_UnknownConnection(t *testing.T) {
	hub := NewHub(discardLogger())
	require.False(t, hub.Deliver("ghost", []byte(`{}`)))
}

func TestHub_JoinAndChat(t *testing.T) {
	req := require.New(t)
	hub := startTestHub(t)
	alice := registerOffline(t, hub, "a")
	bob := registerOffline(t, hub, "b")

	hub.GetInboundChan() <- InboundMessage{Sender: alice, Frame: InboundFrame{Type: FrameJoin, Username: "alice", Room: "lobby"}}
	req.Equal("Welcome to room lobby!", readFrame(t, alice)["text"])
	req.Equal(presence.TypePresence, readFrame(t, alice)["type"])

	hub.GetInboundChan() <- InboundMessage{Sender: bob, Frame: InboundFrame{Type: FrameJoin, Username: "bob", Room: "lobby"}}
	req.Equal("Welcome to room lobby!", readFrame(t, bob)["text"])
	req.Equal(presence.TypePresence, readFrame(t, bob)["type"])
	req.Equal("bob has joined the chat", readFrame(t, alice)["text"])
	req.Equal(presence.TypePresence, readFrame(t, alice)["type"])

	hub.GetInboundChan() <- InboundMessage{Sender: alice, Frame: InboundFrame{Type: FrameChatMessage, Text: "hi"}}
	for _, c := range []*Client{alice, bob} {
		frame := readFrame(t, c)
		req.Equal("alice", frame["from"])
		req.Equal("hi", frame["text"])
	}

	connections, sessions, rooms := hub.Stats()
	req.Equal(2, connections)
	req.Equal(2, sessions)
	req.Equal(1, rooms)
}

func TestHub_UnregisterAnnouncesDeparture(t *testing.T) {
	req := require.New(t)
	hub := startTestHub(t)
	alice := registerOffline(t, hub, "a")
	bob := registerOffline(t, hub, "b")

	hub.GetInboundChan() <- InboundMessage{Sender: alice, Frame: InboundFrame{Type: FrameJoin, Username: "alice", Room: "lobby"}}
	hub.GetInboundChan() <- InboundMessage{Sender: bob, Frame: InboundFrame{Type: FrameJoin, Username: "bob", Room: "lobby"}}
	for i := 0; i < 4; i++ {
		readFrame(t, alice)
	}

	hub.GetUnregisterChan() <- bob
	hub.GetUnregisterChan() <- bob

	req.Equal("bob has left the chat", readFrame(t, alice)["text"])
	snapshot := readFrame(t, alice)
	req.Len(snapshot["users"], 1)
	expectNoFrame(t, alice)
}

func TestHub_IgnoresFramesFromUnregisteredClients(t *testing.T) {
	hub := startTestHub(t)
	alice := registerOffline(t, hub, "a")
	stranger := NewClient("s", nil, hub, "127.0.0.1:0")

	hub.GetInboundChan() <- InboundMessage{Sender: alice, Frame: InboundFrame{Type: FrameJoin, Username: "alice", Room: "lobby"}}
	readFrame(t, alice)
	readFrame(t, alice)

	hub.GetInboundChan() <- InboundMessage{Sender: stranger, Frame: InboundFrame{Type: FrameJoin, Username: "eve", Room: "lobby"}}
	hub.GetInboundChan() <- InboundMessage{Sender: alice, Frame: InboundFrame{Type: "shout", Text: "?"}}
	expectNoFrame(t, alice)

	_, sessions, _ := hub.Stats()
	require.Equal(t, 1, sessions)
}

func TestHub_EvictsSlowClient(t *testing.T) {
	req := require.New(t)
	hub := startTestHub(t)
	alice := registerOffline(t, hub, "a")
	bob := NewClient("b", nil, hub, "127.0.0.1:0")
	bob.send = make(chan []byte, 1)
	hub.GetRegisterChan() <- bob

	hub.GetInboundChan() <- InboundMessage{Sender: alice, Frame: InboundFrame{Type: FrameJoin, Username: "alice", Room: "lobby"}}
	readFrame(t, alice)
	readFrame(t, alice)

	// Bob's buffer only holds his welcome; the snapshot overflows it
	hub.GetInboundChan() <- InboundMessage{Sender: bob, Frame: InboundFrame{Type: FrameJoin, Username: "bob", Room: "lobby"}}

	req.Equal("bob has joined the chat", readFrame(t, alice)["text"])
	req.Len(readFrame(t, alice)["users"], 2)
	req.Equal("bob has left the chat", readFrame(t, alice)["text"])
	req.Len(readFrame(t, alice)["users"], 1)

	req.Equal("Welcome to room lobby!", readFrame(t, bob)["text"])
	_, ok := <-bob.GetSendChan()
	req.False(ok, "evicted client's channel is closed")

	connections, sessions, _ := hub.Stats()
	req.Equal(1, connections)
	req.Equal(1, sessions)
}

func TestHub_ShutdownWithoutClients(t *testing.T) {
	hub := NewHub(discardLogger())
	go hub.Run()
	require.NoError(t, hub.Shutdown(time.Second))
}

func TestHub_ShutdownClosesSendChannels(t *testing.T) {
	hub := NewHub(discardLogger())
	go hub.Run()
	alice := registerOffline(t, hub, "a")
	hub.GetInboundChan() <- InboundMessage{Sender: alice, Frame: InboundFrame{Type: FrameJoin, Username: "alice", Room: "lobby"}}
	readFrame(t, alice)
	readFrame(t, alice)

	require.NoError(t, hub.Shutdown(time.Second))

	_, open := <-alice.GetSendChan()
	require.False(t, open)
	connections, _, _ := hub.Stats()
	require.Zero(t, connections)
}
