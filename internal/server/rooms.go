package server

import (
	"sort"
	"strings"
	"sync"
)

const roomKeySeparator = "-"

// DirectRoomKey derives the canonical key for a two-party room: the two
// usernames sorted and joined. Both participants compute the same key no
// matter who initiates, which keeps chat and call signaling on one room.
func DirectRoomKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + roomKeySeparator + b
}

// RoomParticipants parses a room key back into its participant usernames.
func RoomParticipants(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, roomKeySeparator)
}

// PeerOf resolves "the other party" of a two-party room key. Returns the
// empty string when the key does not name exactly two participants.
func PeerOf(key, username string) string {
	participants := RoomParticipants(key)
	if len(participants) != 2 {
		return ""
	}
	for _, p := range participants {
		if p != username {
			return p
		}
	}
	return ""
}

// RoomRouter tracks transient room membership, used only to scope
// broadcasts. A room is an address, not an entity: it exists exactly as
// long as it has members.
type RoomRouter struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewRoomRouter() *RoomRouter {
	return &RoomRouter{rooms: make(map[string]map[*Client]struct{})}
}

func (rr *RoomRouter) Join(room string, c *Client) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	members, ok := rr.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		rr.rooms[room] = members
	}
	members[c] = struct{}{}
}

// Leave removes c from room. Leaving a room you are not in is a no-op.
func (rr *RoomRouter) Leave(room string, c *Client) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	members, ok := rr.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(rr.rooms, room)
	}
}

// LeaveAll drops c from every room, used on disconnect.
func (rr *RoomRouter) LeaveAll(c *Client) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	for room, members := range rr.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(rr.rooms, room)
		}
	}
}

// Members returns the current membership of room.
func (rr *RoomRouter) Members(room string) []*Client {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	members := rr.rooms[room]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

func (rr *RoomRouter) NumRooms() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	return len(rr.rooms)
}

// RoomKeys returns the keys of all rooms with at least one member, sorted
// for deterministic iteration.
func (rr *RoomRouter) RoomKeys() []string {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	keys := make([]string, 0, len(rr.rooms))
	for k := range rr.rooms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
