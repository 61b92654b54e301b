package presence

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Controller drives the per-connection lifecycle. Each event runs to
// completion under one lock, so the registry mutation and every frame it
// triggers form a single unit with respect to other events.
type Controller struct {
	mu        sync.Mutex
	registry  *Registry
	router    *Router
	publisher *Publisher
	log       *slog.Logger
}

// NewController wires a registry, router and publisher around deliverer.
func NewController(deliverer Deliverer, log *slog.Logger, opts ...RouterOption) *Controller {
	registry := NewRegistry()
	router := NewRouter(registry, deliverer, log, opts...)
	return &Controller{
		registry:  registry,
		router:    router,
		publisher: NewPublisher(registry, router),
		log:       log,
	}
}

// Registry exposes the session registry for read-only queries.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Join binds id to room under username. Moving from another room first
// announces the departure there and republishes its presence. The joiner
// then receives a private welcome before the room hears about the join.
//
// Invalid input is reported to id alone and leaves all state untouched.
func (c *Controller) Join(id ConnID, username, room string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prior, hadPrior := c.registry.Get(id)

	session, err := c.registry.Join(id, username, room)
	if err != nil {
		c.log.Warn("join rejected", "conn", id, "error", err)
		c.router.SendTo(id, Envelope{Type: TypeError, From: SystemSender, Text: rejectionText(err)})
		return Session{}, err
	}

	if hadPrior && prior.Room != session.Room {
		c.router.SendToRoom(prior.Room, leftNotice(prior.Username), id)
		c.publisher.Publish(prior.Room)
		c.log.Info("session moved", "conn", id, "from", prior.Room, "to", session.Room)
	}

	c.router.SendTo(id, Envelope{From: SystemSender, Text: fmt.Sprintf("Welcome to room %s!", session.Room)})
	c.router.SendToRoom(session.Room, Envelope{From: SystemSender, Text: session.Username + " has joined the chat"}, id)
	c.publisher.Publish(session.Room)

	c.log.Info("session joined", "conn", id, "username", session.Username, "room", session.Room)
	return session, nil
}

// Message echoes text to every member of the sender's room, the sender
// included. A sender without a session is dropped with ErrUnjoinedSender
// and nothing is sent.
func (c *Controller) Message(id ConnID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.registry.Get(id)
	if !ok {
		c.log.Warn("message from unjoined connection dropped", "conn", id)
		return ErrUnjoinedSender
	}

	delivered := c.router.SendToRoom(session.Room, Envelope{From: session.Username, Text: text}, "")
	c.log.Debug("message broadcast", "conn", id, "room", session.Room, "recipients", delivered)
	return nil
}

// Disconnect drops the session held by id, if any, and tells the remaining
// members of its room. It reports whether a session existed, so a repeated
// disconnect is a silent no-op.
func (c *Controller) Disconnect(id ConnID) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.registry.Remove(id)
	if !ok {
		return Session{}, false
	}

	c.router.SendToRoom(session.Room, leftNotice(session.Username), id)
	c.publisher.Publish(session.Room)

	c.log.Info("session left", "conn", id, "username", session.Username, "room", session.Room)
	return session, true
}

func leftNotice(username string) Envelope {
	return Envelope{From: SystemSender, Text: username + " has left the chat"}
}

func rejectionText(err error) string {
	if errors.Is(err, ErrInvalidArgument) {
		return "Cannot join: " + strings.TrimPrefix(err.Error(), ErrInvalidArgument.Error()+": ")
	}
	return "Cannot join: " + err.Error()
}
