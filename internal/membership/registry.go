// Package membership tracks which live connection sits in which room.
package membership

import (
	"sort"

	"github.com/samber/lo"
)

type set map[string]struct{}

// Registry maps rooms to their members and members to their single current
// room. It is not safe for concurrent use; the session coordinator owns it
// and serialises every call.
type Registry struct {
	rooms  map[string]set    // roomID -> participant ids
	member map[string]string // participantID -> roomID
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]set),
		member: make(map[string]string),
	}
}

// Join puts the participant into roomID, leaving any other room first, and
// returns the new member count of roomID. Joining the current room again
// changes nothing.
func (r *Registry) Join(participantID, roomID string) int {
	if cur, ok := r.member[participantID]; ok && cur != roomID {
		r.Leave(participantID)
	}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(set)
		r.rooms[roomID] = members
	}
	members[participantID] = struct{}{}
	r.member[participantID] = roomID
	return len(members)
}

// Leave removes the participant from its room. ok is false when it was not
// in one. A room left empty is dropped.
func (r *Registry) Leave(participantID string) (roomID string, remaining int, ok bool) {
	roomID, ok = r.member[participantID]
	if !ok {
		return "", 0, false
	}
	delete(r.member, participantID)

	members := r.rooms[roomID]
	delete(members, participantID)
	remaining = len(members)
	if remaining == 0 {
		delete(r.rooms, roomID)
	}
	return roomID, remaining, true
}

func (r *Registry) MemberCount(roomID string) int {
	return len(r.rooms[roomID])
}

func (r *Registry) RoomOf(participantID string) (string, bool) {
	roomID, ok := r.member[participantID]
	return roomID, ok
}

// Members returns the member ids of roomID in sorted order.
func (r *Registry) Members(roomID string) []string {
	ids := lo.Keys(r.rooms[roomID])
	sort.Strings(ids)
	return ids
}

// Rooms is the number of rooms with at least one member.
func (r *Registry) Rooms() int {
	return len(r.rooms)
}
