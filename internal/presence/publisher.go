package presence

import "github.com/samber/lo"

// PresenceUser is one entry of a presence snapshot.
type PresenceUser struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// Snapshot is the full membership list of a room.
type Snapshot struct {
	Type  string         `json:"type"`
	Room  string         `json:"room"`
	Users []PresenceUser `json:"users"`
}

func (s Snapshot) stamp(string) Outbound {
	s.Type = TypePresence
	return s
}

// Publisher broadcasts presence snapshots.
type Publisher struct {
	registry *Registry
	router   *Router
}

// NewPublisher creates a publisher sending through router.
func NewPublisher(registry *Registry, router *Router) *Publisher {
	return &Publisher{registry: registry, router: router}
}

// Snapshot computes the current presence snapshot of room.
func (p *Publisher) Snapshot(room string) Snapshot {
	return snapshotOf(room, p.registry.MembersOf(room))
}

// Publish sends the current snapshot of room to all of its members. An
// empty room yields an empty user list and no recipients.
func (p *Publisher) Publish(room string) Snapshot {
	members := p.registry.MembersOf(room)
	snapshot := snapshotOf(room, members)
	p.router.sendToMembers(members, snapshot, "")
	return snapshot
}

func snapshotOf(room string, members []Session) Snapshot {
	users := lo.Map(members, func(s Session, _ int) PresenceUser {
		return PresenceUser{Username: s.Username, Room: s.Room}
	})
	return Snapshot{Type: TypePresence, Room: room, Users: users}
}
