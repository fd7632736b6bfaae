package rooms

import (
	"strings"

	"github.com/groupquest/partyboard/internal/models"
)

// Filter is the room-list search criteria. Zero-valued criteria are
// inactive; a zero Filter passes every room through unchanged.
type Filter struct {
	// Query matches as a case-insensitive substring against title,
	// description and target names.
	Query string
	// Activity matches by equality against the closed activity set.
	Activity string
	// World matches by equality, for "my world only".
	World string
	// Level, when positive, keeps rooms whose minimum level the viewer
	// meets, for "my level only".
	Level int
}

// Apply returns the subset of rooms matching every active criterion,
// preserving input order. It never mutates its input and is idempotent:
// filtering an already-filtered result with the same criteria is a no-op.
func (f Filter) Apply(rooms []models.Room) []models.Room {
	out := make([]models.Room, 0, len(rooms))
	for _, r := range rooms {
		if f.matches(&r) {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) matches(r *models.Room) bool {
	if f.Activity != "" && r.Activity != f.Activity {
		return false
	}
	if f.World != "" && r.World != f.World {
		return false
	}
	if f.Level > 0 && f.Level < r.MinLevel {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(r.Title), q) &&
			!strings.Contains(strings.ToLower(r.Description), q) &&
			!containsTarget(r.Targets, q) {
			return false
		}
	}
	return true
}

func containsTarget(targets []string, q string) bool {
	for _, t := range targets {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}
