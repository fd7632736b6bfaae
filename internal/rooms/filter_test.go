package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/groupquest/partyboard/internal/models"
)

func sampleRooms() []models.Room {
	return []models.Room{
		{Title: "Ferumbras raid", Description: "bring sd", Activity: models.ActivityBoss, Targets: models.StringList{"Ferumbras"}, World: "Antica", MinLevel: 100},
		{Title: "Medusa tower", Description: "profit split", Activity: models.ActivityHunt, Targets: models.StringList{"Medusa"}, World: "Secura", MinLevel: 130},
		{Title: "Inquisition", Description: "full quest", Activity: models.ActivityQuest, Targets: models.StringList{"The Inquisition"}, World: "Antica", MinLevel: 100},
		{Title: "Dragon lair", Description: "chill hunt", Activity: models.ActivityHunt, Targets: models.StringList{"Dragon", "Dragon Lord"}, World: "Antica", MinLevel: 45},
	}
}

func TestFilterNoCriteriaPassThrough(t *testing.T) {
	in := sampleRooms()
	out := Filter{}.Apply(in)
	assert.Equal(t, in, out, "no active criteria returns the input unchanged, same order")
}

func TestFilterIdempotent(t *testing.T) {
	f := Filter{Activity: models.ActivityHunt, World: "Antica"}
	once := f.Apply(sampleRooms())
	twice := f.Apply(once)
	assert.Equal(t, once, twice)
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	in := sampleRooms()
	Filter{Query: "medusa"}.Apply(in)
	assert.Equal(t, sampleRooms(), in)
}

func TestFilterByActivity(t *testing.T) {
	out := Filter{Activity: models.ActivityHunt}.Apply(sampleRooms())
	assert.Len(t, out, 2)
	assert.Equal(t, "Medusa tower", out[0].Title)
	assert.Equal(t, "Dragon lair", out[1].Title, "input order is preserved")
}

func TestFilterByWorld(t *testing.T) {
	out := Filter{World: "Secura"}.Apply(sampleRooms())
	assert.Len(t, out, 1)
	assert.Equal(t, "Medusa tower", out[0].Title)
}

func TestFilterByLevel(t *testing.T) {
	// A level 110 viewer meets min level 100 and 45 but not 130.
	out := Filter{Level: 110}.Apply(sampleRooms())
	assert.Len(t, out, 3)
	for _, r := range out {
		assert.LessOrEqual(t, r.MinLevel, 110)
	}
}

func TestFilterByQuery(t *testing.T) {
	// Matches title, description and target names, case-insensitively.
	assert.Len(t, Filter{Query: "FERUMBRAS"}.Apply(sampleRooms()), 1)
	assert.Len(t, Filter{Query: "profit"}.Apply(sampleRooms()), 1)
	assert.Len(t, Filter{Query: "dragon lord"}.Apply(sampleRooms()), 1)
	assert.Empty(t, Filter{Query: "orshabaal"}.Apply(sampleRooms()))
}

func TestFilterCombined(t *testing.T) {
	out := Filter{Activity: models.ActivityHunt, World: "Antica", Level: 50, Query: "dragon"}.Apply(sampleRooms())
	assert.Len(t, out, 1)
	assert.Equal(t, "Dragon lair", out[0].Title)
}
