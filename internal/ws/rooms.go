package ws

import "sync"

/*
Rooms tracks which connections are joined to which group rooms.

Both directions are indexed: room → connections for fan-out, and connection →
rooms so a disconnect can leave everything in one pass.  Membership here is a
derived cache of persisted group membership: it is rebuilt from the store at
connect time and patched incrementally on every membership-changing event.
*/
type Rooms struct {
	mu     sync.RWMutex
	byRoom map[string]map[*client]struct{}
	byConn map[*client]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		byRoom: make(map[string]map[*client]struct{}),
		byConn: make(map[*client]map[string]struct{}),
	}
}

func (r *Rooms) Join(roomID string, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byRoom[roomID] == nil {
		r.byRoom[roomID] = make(map[*client]struct{})
	}
	r.byRoom[roomID][c] = struct{}{}
	if r.byConn[c] == nil {
		r.byConn[c] = make(map[string]struct{})
	}
	r.byConn[c][roomID] = struct{}{}
}

func (r *Rooms) Leave(roomID string, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(roomID, c)
}

func (r *Rooms) leaveLocked(roomID string, c *client) {
	if members, ok := r.byRoom[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.byRoom, roomID)
		}
	}
	if rooms, ok := r.byConn[c]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.byConn, c)
		}
	}
}

// Drop removes the connection from every room it is joined to and returns
// the ids of the affected rooms.
func (r *Rooms) Drop(c *client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms, ok := r.byConn[c]
	if !ok {
		return nil
	}
	affected := make([]string, 0, len(rooms))
	for roomID := range rooms {
		affected = append(affected, roomID)
		if members, ok := r.byRoom[roomID]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(r.byRoom, roomID)
			}
		}
	}
	delete(r.byConn, c)
	return affected
}

// DropRoom dissolves a room entirely, detaching every joined connection.
func (r *Rooms) DropRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.byRoom[roomID] {
		if rooms, ok := r.byConn[c]; ok {
			delete(rooms, roomID)
			if len(rooms) == 0 {
				delete(r.byConn, c)
			}
		}
	}
	delete(r.byRoom, roomID)
}

func (r *Rooms) Contains(roomID string, c *client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byRoom[roomID][c]
	return ok
}

/*
Broadcast writes raw bytes to every connection joined to the room except the
given one and returns how many connections were targeted.  Sends are
non-blocking; a slow consumer loses the frame rather than stalling the room.
*/
func (r *Rooms) Broadcast(roomID string, raw []byte, except *client) int {
	r.mu.RLock()
	snapshot := make([]*client, 0, len(r.byRoom[roomID]))
	for c := range r.byRoom[roomID] {
		if c != except {
			snapshot = append(snapshot, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		c.trySend(raw)
	}
	return len(snapshot)
}
