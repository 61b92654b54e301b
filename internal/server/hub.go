// Package server coordinates client registration, inbound event dispatch, and
// connection cleanup for the room chat WebSocket system via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/Tyrowin/roomchat/internal/presence"
)

// Hub manages all WebSocket client connections. Registration, inbound frames
// and disconnects are processed one at a time on the Run goroutine, which is
// the only caller of the presence controller.
type Hub struct {
	clients    map[presence.ConnID]*Client
	inbound    chan InboundMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	slowMu     sync.Mutex
	slow       []*Client
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	engine     *presence.Controller
	log        *slog.Logger
}

// NewHub creates a Hub with its own presence engine. The returned Hub is
// ready to manage WebSocket connections once Run is started.
func NewHub(log *slog.Logger, opts ...presence.RouterOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[presence.ConnID]*Client),
		inbound:    make(chan InboundMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
	}
	h.engine = presence.NewController(h, log, opts...)
	return h
}

// Engine returns the presence controller driven by this hub.
func (h *Hub) Engine() *presence.Controller {
	return h.engine
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// GetInboundChan returns the channel carrying decoded client frames.
func (h *Hub) GetInboundChan() chan<- InboundMessage {
	return h.inbound
}

// Deliver queues payload on the client's send buffer without blocking. A
// client whose buffer is full is scheduled for eviction and the frame is
// dropped.
func (h *Hub) Deliver(id presence.ConnID, payload []byte) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	client, exists := h.clients[id]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		h.slowMu.Lock()
		h.slow = append(h.slow, client)
		h.slowMu.Unlock()
		return false
	}
}

// Stats reports live connections, joined sessions and non-empty rooms.
func (h *Hub) Stats() (connections, sessions, rooms int) {
	h.mutex.RLock()
	connections = len(h.clients)
	h.mutex.RUnlock()

	registry := h.engine.Registry()
	return connections, registry.Len(), len(registry.Rooms())
}

// Run starts the hub's main event loop, handling client registration,
// unregistration and inbound frames. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			if client == nil {
				continue
			}
			if h.detach(client) {
				h.engine.Disconnect(client.id)
				h.log.Info("client unregistered", "conn", client.id, "addr", client.addr, "clients", h.clientCount())
			}
			h.evictSlowClients()

		case msg := <-h.inbound:
			h.handleInbound(msg)
			h.evictSlowClients()
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.log.Info("client registered", "conn", client.id, "addr", client.addr, "clients", clientCount)

	if client.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// handleInbound routes a decoded frame to the presence engine. Frames from
// clients that were already evicted are ignored.
func (h *Hub) handleInbound(msg InboundMessage) {
	if msg.Sender == nil || !h.isRegistered(msg.Sender) {
		return
	}

	id := msg.Sender.id
	switch msg.Frame.Type {
	case FrameJoin:
		if _, err := h.engine.Join(id, msg.Frame.Username, msg.Frame.Room); err != nil {
			h.log.Debug("join failed", "conn", id, "error", err)
		}
	case FrameChatMessage:
		if err := h.engine.Message(id, msg.Frame.Text); err != nil {
			h.log.Debug("message dropped", "conn", id, "error", err)
		}
	default:
		h.log.Warn("ignoring frame with unknown type", "conn", id, "type", msg.Frame.Type)
	}
}

func (h *Hub) isRegistered(client *Client) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	current, ok := h.clients[client.id]
	return ok && current == client && !client.closed
}

func (h *Hub) clientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// detach removes client from the hub and closes its send channel. It reports
// false when the client was already gone.
func (h *Hub) detach(client *Client) bool {
	h.mutex.Lock()
	current, ok := h.clients[client.id]
	if !ok || current != client {
		h.mutex.Unlock()
		return false
	}
	delete(h.clients, client.id)
	client.closed = true
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	return true
}

// evictSlowClients removes clients whose send buffer overflowed. Their
// departure is itself a presence event, which may overflow further buffers,
// so the loop runs until no slow client remains.
func (h *Hub) evictSlowClients() {
	for {
		h.slowMu.Lock()
		slow := lo.Uniq(h.slow)
		h.slow = nil
		h.slowMu.Unlock()

		if len(slow) == 0 {
			return
		}
		for _, client := range slow {
			if !h.detach(client) {
				continue
			}
			h.log.Warn("client removed due to full send buffer", "conn", client.id, "addr", client.addr)
			h.engine.Disconnect(client.id)
		}
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	h.mutex.RLock()
	clients := lo.Values(h.clients)
	h.mutex.RUnlock()

	for _, client := range clients {
		// Closing send lets the write pump emit a close frame and exit
		// instead of waiting for its next ping tick.
		h.detach(client)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Error("error closing client connection", "addr", client.addr, "error", err)
			}
		}
	}

	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
