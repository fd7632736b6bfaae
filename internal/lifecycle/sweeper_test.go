package lifecycle

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/groupquest/partyboard/internal/database"
	"github.com/groupquest/partyboard/internal/events"
	"github.com/groupquest/partyboard/internal/models"
)

var t0 = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) deleted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == events.RoomDeleted {
			n++
		}
	}
	return n
}

func testDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := database.Connect("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func seedRoom(t *testing.T, db *bun.DB, owner uuid.UUID, createdAt, expiresAt time.Time) uuid.UUID {
	t.Helper()
	room := &models.Room{
		ID:             uuid.New(),
		OwnerID:        owner,
		Title:          "test room",
		Activity:       models.ActivityHunt,
		MinLevel:       1,
		MaxMembers:     4,
		CurrentMembers: 1,
		World:          "Antica",
		ExpiresAt:      expiresAt,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	_, err := db.NewInsert().Model(room).Exec(context.Background())
	require.NoError(t, err)

	member := &models.RoomMember{
		RoomID: room.ID, AccountID: owner, Position: 0, Role: models.RoleOwner,
		JoinedAt: createdAt, Snapshot: models.Snapshot{CharacterName: "Grimfang"},
	}
	_, err = db.NewInsert().Model(member).Exec(context.Background())
	require.NoError(t, err)
	return room.ID
}

func roomExists(t *testing.T, db *bun.DB, id uuid.UUID) bool {
	t.Helper()
	n, err := db.NewSelect().Model((*models.Room)(nil)).Where("id = ?", id).Count(context.Background())
	require.NoError(t, err)
	return n > 0
}

func TestExpireAt(t *testing.T) {
	scheduled := t0.Add(2 * time.Hour)
	assert.Equal(t, scheduled, ExpireAt(t0, &scheduled), "scheduled rooms expire at their start time")
	assert.Equal(t, t0.Add(time.Hour), ExpireAt(t0, nil), "immediate rooms expire an hour after creation")
}

func TestExpired(t *testing.T) {
	r := &models.Room{CreatedAt: t0, ExpiresAt: t0.Add(time.Hour)}
	assert.False(t, Expired(r, t0.Add(time.Hour)), "deadline itself is not past")
	assert.True(t, Expired(r, t0.Add(time.Hour+time.Second)))

	// Legacy rows without an expiration fall back to two hours.
	legacy := &models.Room{CreatedAt: t0}
	assert.False(t, Expired(legacy, t0.Add(2*time.Hour)))
	assert.True(t, Expired(legacy, t0.Add(2*time.Hour+time.Minute)))
}

// Scenario: an immediate room created at t0 is gone 61 minutes later.
func TestSweepDeletesExpiredImmediateRoom(t *testing.T) {
	db := testDB(t)
	rec := &recorder{}
	owner := uuid.New()
	roomID := seedRoom(t, db, owner, t0, t0.Add(time.Hour))

	now := t0.Add(61 * time.Minute)
	sw := NewSweeper(db, rec).WithClock(func() time.Time { return now })

	assert.Equal(t, 1, sw.SweepOwner(context.Background(), owner))
	assert.False(t, roomExists(t, db, roomID))
	assert.Equal(t, 1, rec.deleted())
}

// Scenario: a scheduled room dies at its start time whether or not it
// filled.
func TestSweepDeletesExpiredScheduledRoom(t *testing.T) {
	db := testDB(t)
	rec := &recorder{}
	owner := uuid.New()
	scheduled := t0.Add(2 * time.Hour)
	roomID := seedRoom(t, db, owner, t0, scheduled)

	now := scheduled.Add(time.Minute)
	sw := NewSweeper(db, rec).WithClock(func() time.Time { return now })

	assert.Equal(t, 1, sw.Sweep(context.Background()))
	assert.False(t, roomExists(t, db, roomID))
}

func TestSweepKeepsLiveRooms(t *testing.T) {
	db := testDB(t)
	rec := &recorder{}
	owner := uuid.New()
	roomID := seedRoom(t, db, owner, t0, t0.Add(time.Hour))

	// Exactly at the deadline is not yet expired.
	sw := NewSweeper(db, rec).WithClock(func() time.Time { return t0.Add(time.Hour) })
	assert.Zero(t, sw.Sweep(context.Background()))
	assert.True(t, roomExists(t, db, roomID))
}

func TestSweepOwnerScopesToOwner(t *testing.T) {
	db := testDB(t)
	rec := &recorder{}
	mine, theirs := uuid.New(), uuid.New()
	myRoom := seedRoom(t, db, mine, t0, t0.Add(time.Hour))
	theirRoom := seedRoom(t, db, theirs, t0, t0.Add(time.Hour))

	now := t0.Add(2 * time.Hour)
	sw := NewSweeper(db, rec).WithClock(func() time.Time { return now })

	assert.Equal(t, 1, sw.SweepOwner(context.Background(), mine))
	assert.False(t, roomExists(t, db, myRoom))
	assert.True(t, roomExists(t, db, theirRoom), "a session only cleans up its own rooms")
}

func TestSweepRemovesMembershipsAndRequests(t *testing.T) {
	db := testDB(t)
	rec := &recorder{}
	owner := uuid.New()
	roomID := seedRoom(t, db, owner, t0, t0.Add(time.Hour))

	req := &models.JoinRequest{
		RoomID: roomID, AccountID: uuid.New(), CreatedAt: t0,
		Snapshot: models.Snapshot{CharacterName: "Sylra"},
	}
	_, err := db.NewInsert().Model(req).Exec(context.Background())
	require.NoError(t, err)

	sw := NewSweeper(db, rec).WithClock(func() time.Time { return t0.Add(2 * time.Hour) })
	require.Equal(t, 1, sw.Sweep(context.Background()))

	n, err := db.NewSelect().Model((*models.RoomMember)(nil)).Where("room_id = ?", roomID).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = db.NewSelect().Model((*models.JoinRequest)(nil)).Where("room_id = ?", roomID).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepLegacyRoomWithoutExpiration(t *testing.T) {
	db := testDB(t)
	rec := &recorder{}
	owner := uuid.New()
	roomID := seedRoom(t, db, owner, t0, time.Time{})

	sw := NewSweeper(db, rec).WithClock(func() time.Time { return t0.Add(2 * time.Hour) })
	assert.Zero(t, sw.Sweep(context.Background()), "still inside the fallback window")
	assert.True(t, roomExists(t, db, roomID))

	sw = NewSweeper(db, rec).WithClock(func() time.Time { return t0.Add(2*time.Hour + time.Minute) })
	assert.Equal(t, 1, sw.Sweep(context.Background()))
	assert.False(t, roomExists(t, db, roomID))
}
