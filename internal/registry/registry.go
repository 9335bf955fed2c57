package registry

import "sync"

// User is a participant registered in a room.
type User struct {
	Username string `json:"username"`
	RoomID   string `json:"room_id"`
}

// RoomInfo summarizes one room for the HTTP API.
type RoomInfo struct {
	ID      string `json:"id"`
	Members int    `json:"members"`
}

// Registry holds the canonical connection state: which transport address
// belongs to which user, which address a username resolves to, and which
// addresses each room contains. It does no I/O; the signaling router is the
// only caller.
//
// Each connection's read loop runs on its own goroutine, so all three maps
// are guarded by a single mutex to serialize access.
type Registry struct {
	mu             sync.RWMutex
	userByAddr     map[string]User
	addrByUsername map[string]string
	roomMembers    map[string][]string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		userByAddr:     make(map[string]User),
		addrByUsername: make(map[string]string),
		roomMembers:    make(map[string][]string),
	}
}

// Join registers a user at the given address and adds the address to the
// room's member set, under one lock so the two structures cannot drift.
// The room is created on first join. Joining the same room twice from the
// same address does not duplicate the membership entry.
//
// Registering a username that is already registered points the username
// index at the new address; the previous address's own user record is left
// untouched until that address leaves. Last-registration-wins is inherited
// behavior: it lets a reconnecting client take its name back, but it also
// means no collision is ever reported.
func (r *Registry) Join(username, roomID, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userByAddr[addr] = User{Username: username, RoomID: roomID}
	r.addrByUsername[username] = addr
	r.addMemberLocked(roomID, addr)
}

// Register inserts or overwrites the identity entries for addr without
// touching room membership. Most callers want Join.
func (r *Registry) Register(username, roomID, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userByAddr[addr] = User{Username: username, RoomID: roomID}
	r.addrByUsername[username] = addr
}

// Leave removes the user registered at addr and drops the address from its
// room's member set. It returns the removed user, or false if the address
// had no user; a double disconnect is an expected no-op, not an error.
//
// The username index entry is removed only if it still points at addr, so a
// re-registration from a newer address is not clobbered by a stale leave.
func (r *Registry) Leave(addr string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.userByAddr[addr]
	if !ok {
		return User{}, false
	}
	r.removeMemberLocked(user.RoomID, addr)
	delete(r.userByAddr, addr)
	if r.addrByUsername[user.Username] == addr {
		delete(r.addrByUsername, user.Username)
	}
	return user, true
}

// AddMember adds addr to the room's member set, creating the room if needed.
// Adding an address that is already a member is a no-op.
func (r *Registry) AddMember(roomID, addr string) {
	r.mu.Lock()
	r.addMemberLocked(roomID, addr)
	r.mu.Unlock()
}

// RemoveMember removes addr from the room's member set. It is a no-op if the
// room does not exist or the address is not a member.
func (r *Registry) RemoveMember(roomID, addr string) {
	r.mu.Lock()
	r.removeMemberLocked(roomID, addr)
	r.mu.Unlock()
}

func (r *Registry) addMemberLocked(roomID, addr string) {
	members := r.roomMembers[roomID]
	for _, m := range members {
		if m == addr {
			return
		}
	}
	r.roomMembers[roomID] = append(members, addr)
}

func (r *Registry) removeMemberLocked(roomID, addr string) {
	members, ok := r.roomMembers[roomID]
	if !ok {
		return
	}
	for i, m := range members {
		if m == addr {
			r.roomMembers[roomID] = append(members[:i], members[i+1:]...)
			return
		}
	}
}

// Members returns the room's member addresses in join order. A room that was
// never created yields an empty slice.
//
// Empty rooms are retained for the life of the process; the relay holds no
// state across restarts, so room garbage collection is a deliberate non-goal.
func (r *Registry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.roomMembers[roomID]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// MemberUsernames returns the usernames of the room's members in join order.
// Addresses without a registered user are skipped.
func (r *Registry) MemberUsernames(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.roomMembers[roomID]
	out := make([]string, 0, len(members))
	for _, addr := range members {
		if user, ok := r.userByAddr[addr]; ok {
			out = append(out, user.Username)
		}
	}
	return out
}

// UserByAddr returns the user registered at addr.
func (r *Registry) UserByAddr(addr string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.userByAddr[addr]
	return user, ok
}

// AddrByUsername returns the address the username is currently registered at.
func (r *Registry) AddrByUsername(username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.addrByUsername[username]
	return addr, ok
}

// Rooms returns a summary of every room, including empty ones.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.roomMembers))
	for id, members := range r.roomMembers {
		out = append(out, RoomInfo{ID: id, Members: len(members)})
	}
	return out
}

// UserCount returns the number of registered users.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userByAddr)
}
