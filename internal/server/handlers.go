// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, room statistics, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/presence"
)

// StatsResponse is the body served by the stats endpoint.
type StatsResponse struct {
	Connections int `json:"connections"`
	Sessions    int `json:"sessions"`
	Rooms       int `json:"rooms"`
}

// WebSocketHandler upgrades GET requests to WebSocket, assigns the new
// connection a unique id and registers it with hub. The connection starts
// unjoined until it sends a join frame.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(hub.log),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(presence.ConnID(uuid.NewString()), conn, hub, r.RemoteAddr)

		select {
		case hub.register <- client:
		case <-hub.ctx.Done():
			_ = conn.Close()
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomchat server is running!")
}

// StatsHandler reports live connection, session and room counts as JSON.
func StatsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		connections, sessions, rooms := hub.Stats()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(StatsResponse{
			Connections: connections,
			Sessions:    sessions,
			Rooms:       rooms,
		}); err != nil {
			hub.log.Error("error writing stats response", "error", err)
		}
	}
}

// TestPageHandler serves an HTML page for trying the join and chat protocol
// from a browser.
func TestPageHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := fmt.Fprint(w, testPage); err != nil {
			hub.log.Error("error writing HTML response", "error", err)
		}
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>roomchat test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #layout { display: flex; gap: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            width: 480px;
            padding: 10px;
            overflow-y: scroll;
            background-color: #f9f9f9;
        }
        #users { border: 1px solid #ccc; width: 160px; padding: 10px; }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .system { color: gray; font-style: italic; }
        .error { color: #721c24; }
    </style>
</head>
<body>
    <h1>roomchat</h1>

    <div>
        <input type="text" id="username" placeholder="Username">
        <input type="text" id="room" placeholder="Room" value="lobby">
        <button onclick="join()">Join</button>
    </div>

    <div id="layout">
        <div id="messages"></div>
        <div id="users"><strong id="roomName">No room</strong><ul id="userList"></ul></div>
    </div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <script>
        const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(scheme + location.host + '/ws');
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');

        function addLine(frame) {
            const line = document.createElement('div');
            line.className = frame.type === 'error' ? 'error' : (frame.from === 'system' ? 'system' : '');
            line.textContent = '[' + frame.timestamp + '] ' + frame.from + ': ' + frame.text;
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function showPresence(frame) {
            document.getElementById('roomName').textContent = frame.room;
            const list = document.getElementById('userList');
            list.innerHTML = '';
            frame.users.forEach(function(u) {
                const item = document.createElement('li');
                item.textContent = u.username;
                list.appendChild(item);
            });
            messageInput.disabled = false;
            sendButton.disabled = false;
        }

        ws.onmessage = function(event) {
            event.data.split('\n').forEach(function(raw) {
                const frame = JSON.parse(raw);
                if (frame.type === 'presence') {
                    showPresence(frame);
                } else {
                    addLine(frame);
                }
            });
        };

        ws.onclose = function() {
            addLine({type: 'error', from: 'system', text: 'Connection closed', timestamp: '--:--:--'});
        };

        function join() {
            ws.send(JSON.stringify({
                type: 'join',
                username: document.getElementById('username').value,
                room: document.getElementById('room').value
            }));
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (text) {
                ws.send(JSON.stringify({type: 'chatMessage', text: text}));
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
