// Package lifecycle decides when rooms die and removes the ones past their
// deadline.
package lifecycle

import (
	"time"

	"github.com/groupquest/partyboard/internal/models"
)

const (
	// Immediate rooms live one hour from creation.
	immediateTTL = time.Hour
	// Rooms missing an expiration (legacy rows) fall back to two hours
	// after creation.
	legacyTTL = 2 * time.Hour
)

// ExpireAt computes a room's deadline at creation time. A scheduled room
// expires at the moment its activity was due to begin, whether or not it
// filled; an immediate room expires an hour after creation.
func ExpireAt(createdAt time.Time, scheduledFor *time.Time) time.Time {
	if scheduledFor != nil {
		return *scheduledFor
	}
	return createdAt.Add(immediateTTL)
}

// Expired reports whether the room's deadline has strictly passed at now.
func Expired(r *models.Room, now time.Time) bool {
	deadline := r.ExpiresAt
	if deadline.IsZero() {
		deadline = r.CreatedAt.Add(legacyTTL)
	}
	return now.After(deadline)
}
