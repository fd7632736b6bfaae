package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Dedup remembers which rooms this hub has already announced as full, so a
// completion is broadcast at most once per transition. When a room drops
// back below capacity the mark is cleared and a later re-completion
// announces again. State is owned by the hub instance, not global.
type Dedup struct {
	mu        sync.Mutex
	announced map[uuid.UUID]struct{}
}

func NewDedup() *Dedup {
	return &Dedup{announced: make(map[uuid.UUID]struct{})}
}

// MarkFull records a completion and reports whether it should be announced
// (true only the first time since the room last reopened).
func (d *Dedup) MarkFull(roomID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, seen := d.announced[roomID]; seen {
		return false
	}
	d.announced[roomID] = struct{}{}
	return true
}

// Reopen clears the completion mark for a room.
func (d *Dedup) Reopen(roomID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.announced, roomID)
}

// Forget drops a room entirely (deleted rooms can't complete again).
func (d *Dedup) Forget(roomID uuid.UUID) {
	d.Reopen(roomID)
}
