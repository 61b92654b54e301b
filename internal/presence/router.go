package presence

import (
	"encoding/json"
	"log/slog"
	"time"
)

// DefaultTimestampLayout renders envelope timestamps as local HH:MM:SS.
const DefaultTimestampLayout = "15:04:05"

// Outbound frame types.
const (
	TypeMessage  = "message"
	TypePresence = "presence"
	TypeError    = "error"
)

// Deliverer hands an encoded frame to the transport of one connection. It
// reports false when the connection is unknown or cannot accept the frame.
// Implementations must not block.
type Deliverer interface {
	Deliver(id ConnID, payload []byte) bool
}

// Outbound is a frame the router can encode and deliver.
type Outbound interface {
	stamp(ts string) Outbound
}

// Envelope is a chat or system notification.
type Envelope struct {
	Type      string `json:"type"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

func (e Envelope) stamp(ts string) Outbound {
	if e.Type == "" {
		e.Type = TypeMessage
	}
	e.Timestamp = ts
	return e
}

// Router delivers frames to single connections or whole rooms.
type Router struct {
	registry  *Registry
	deliverer Deliverer
	log       *slog.Logger
	now       func() time.Time
	layout    string
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithClock overrides the time source used for envelope timestamps.
func WithClock(now func() time.Time) RouterOption {
	return func(rt *Router) {
		if now != nil {
			rt.now = now
		}
	}
}

// WithTimestampLayout sets the time.Format layout used for envelope
// timestamps. An empty layout keeps DefaultTimestampLayout.
func WithTimestampLayout(layout string) RouterOption {
	return func(rt *Router) {
		if layout != "" {
			rt.layout = layout
		}
	}
}

// NewRouter creates a router reading room membership from registry.
func NewRouter(registry *Registry, deliverer Deliverer, log *slog.Logger, opts ...RouterOption) *Router {
	rt := &Router{
		registry:  registry,
		deliverer: deliverer,
		log:       log,
		now:       time.Now,
		layout:    DefaultTimestampLayout,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// SendTo delivers out to exactly one connection. A dead or unknown
// connection is silently skipped.
func (rt *Router) SendTo(id ConnID, out Outbound) {
	payload, ok := rt.encode(out)
	if !ok {
		return
	}
	rt.deliver(id, payload)
}

// SendToRoom delivers out to every member of room except excluding, which
// may be empty. Recipients come from a single membership snapshot.
func (rt *Router) SendToRoom(room string, out Outbound, excluding ConnID) int {
	return rt.sendToMembers(rt.registry.MembersOf(room), out, excluding)
}

func (rt *Router) sendToMembers(members []Session, out Outbound, excluding ConnID) int {
	payload, ok := rt.encode(out)
	if !ok {
		return 0
	}

	delivered := 0
	for _, member := range members {
		if excluding != "" && member.ConnID == excluding {
			continue
		}
		if rt.deliver(member.ConnID, payload) {
			delivered++
		}
	}
	return delivered
}

func (rt *Router) encode(out Outbound) ([]byte, bool) {
	payload, err := json.Marshal(out.stamp(rt.now().Format(rt.layout)))
	if err != nil {
		rt.log.Error("encode outbound frame", "error", err)
		return nil, false
	}
	return payload, true
}

func (rt *Router) deliver(id ConnID, payload []byte) bool {
	if rt.deliverer.Deliver(id, payload) {
		return true
	}
	rt.log.Debug("frame dropped", "conn", id, "error", ErrUnknownConnection)
	return false
}
