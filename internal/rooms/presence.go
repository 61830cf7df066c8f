package rooms

// Presence tracks which users are in each room's chat view. Counts are always
// derived from the member list held by the registry; nothing is cached.
type Presence struct {
	reg *Registry
}

func NewPresence(reg *Registry) *Presence {
	return &Presence{reg: reg}
}

// Join adds userID to the room. It returns false without error when the user
// is already present. New members are refused once the room is full or closed.
func (p *Presence) Join(roomID, userID string) (bool, error) {
	p.reg.mu.Lock()
	defer p.reg.mu.Unlock()

	rm, ok := p.reg.rooms[roomID]
	if !ok {
		return false, ErrRoomNotFound
	}
	if rm.memberIndex(userID) >= 0 {
		return false, nil
	}
	if StatusAt(p.reg.now(), rm.expiresAt) == StatusClosed {
		return false, ErrRoomClosed
	}
	if len(rm.members) >= rm.userLimit {
		return false, ErrCapacityExceeded
	}
	rm.members = append(rm.members, userID)
	return true, nil
}

// Leave removes userID from the room and reports whether anything changed.
// Leaving a deleted room is a no-op.
func (p *Presence) Leave(roomID, userID string) bool {
	p.reg.mu.Lock()
	defer p.reg.mu.Unlock()

	rm, ok := p.reg.rooms[roomID]
	if !ok {
		return false
	}
	i := rm.memberIndex(userID)
	if i < 0 {
		return false
	}
	rm.members = append(rm.members[:i], rm.members[i+1:]...)
	return true
}

func (p *Presence) CountFor(roomID string) int {
	p.reg.mu.RLock()
	defer p.reg.mu.RUnlock()

	if rm, ok := p.reg.rooms[roomID]; ok {
		return len(rm.members)
	}
	return 0
}

func (p *Presence) IsMember(roomID, userID string) bool {
	p.reg.mu.RLock()
	defer p.reg.mu.RUnlock()

	rm, ok := p.reg.rooms[roomID]
	return ok && rm.memberIndex(userID) >= 0
}

// Members returns the user ids in join order, or nil for an unknown room.
func (p *Presence) Members(roomID string) []string {
	p.reg.mu.RLock()
	defer p.reg.mu.RUnlock()

	rm, ok := p.reg.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, len(rm.members))
	copy(out, rm.members)
	return out
}

// Counts returns the online count of every room.
func (p *Presence) Counts() map[string]int {
	p.reg.mu.RLock()
	defer p.reg.mu.RUnlock()

	counts := make(map[string]int, len(p.reg.rooms))
	for id, rm := range p.reg.rooms {
		counts[id] = len(rm.members)
	}
	return counts
}
