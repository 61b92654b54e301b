package presence

import "slices"

// roomIndex is the inverted room -> members mapping. It is only mutated by
// Registry while holding the registry lock, so it never diverges from the
// session map.
type roomIndex struct {
	rooms map[string][]ConnID
}

func newRoomIndex() *roomIndex {
	return &roomIndex{rooms: make(map[string][]ConnID)}
}

func (ix *roomIndex) add(room string, id ConnID) {
	ix.rooms[room] = append(ix.rooms[room], id)
}

func (ix *roomIndex) remove(room string, id ConnID) {
	members := ix.rooms[room]
	i := slices.Index(members, id)
	if i < 0 {
		return
	}
	members = slices.Delete(members, i, i+1)
	if len(members) == 0 {
		delete(ix.rooms, room)
		return
	}
	ix.rooms[room] = members
}

// members returns a copy of the room's connection ids in join order.
func (ix *roomIndex) members(room string) []ConnID {
	return slices.Clone(ix.rooms[room])
}

func (ix *roomIndex) names() []string {
	names := make([]string, 0, len(ix.rooms))
	for room := range ix.rooms {
		names = append(names, room)
	}
	slices.Sort(names)
	return names
}
