package lifecycle

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/groupquest/partyboard/internal/events"
	"github.com/groupquest/partyboard/internal/models"
)

// Sweeper deletes rooms past their deadline. Cleanup is background hygiene:
// individual failures are logged and skipped, never surfaced, and the next
// sweep is the retry.
type Sweeper struct {
	db  *bun.DB
	pub events.Publisher
	now func() time.Time
}

func NewSweeper(db *bun.DB, pub events.Publisher) *Sweeper {
	return &Sweeper{db: db, pub: pub, now: time.Now}
}

// WithClock overrides the wall clock, for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep scans every room and deletes the expired ones. This is the
// server-side job; no client has to be online for cleanup to happen.
func (s *Sweeper) Sweep(ctx context.Context) int {
	return s.sweep(ctx, nil)
}

// SweepOwner scans only the rooms owned by one account, mirroring the
// client-triggered cleanup a session runs for its own rooms.
func (s *Sweeper) SweepOwner(ctx context.Context, ownerID uuid.UUID) int {
	return s.sweep(ctx, &ownerID)
}

func (s *Sweeper) sweep(ctx context.Context, ownerID *uuid.UUID) int {
	q := s.db.NewSelect().Model((*models.Room)(nil))
	if ownerID != nil {
		q = q.Where("owner_id = ?", *ownerID)
	}

	var rooms []models.Room
	if err := q.Scan(ctx, &rooms); err != nil {
		logrus.WithError(err).Error("sweep: failed to list rooms")
		return 0
	}

	now := s.now().UTC()
	var expired []models.Room
	for _, r := range rooms {
		if Expired(&r, now) {
			expired = append(expired, r)
		}
	}
	if len(expired) == 0 {
		return 0
	}

	// Deletions run independently; one failure must not block the rest.
	var wg sync.WaitGroup
	var mu sync.Mutex
	deleted := 0
	for _, r := range expired {
		wg.Add(1)
		go func(room models.Room) {
			defer wg.Done()
			if err := s.deleteRoom(ctx, room); err != nil {
				logrus.WithError(err).WithField("room_id", room.ID).Warn("sweep: failed to delete expired room")
				return
			}
			mu.Lock()
			deleted++
			mu.Unlock()
			s.pub.Publish(ctx, events.Event{Type: events.RoomDeleted, RoomID: room.ID, Title: room.Title, At: now})
		}(r)
	}
	wg.Wait()

	logrus.WithFields(logrus.Fields{"expired": len(expired), "deleted": deleted}).Info("sweep complete")
	return deleted
}

func (s *Sweeper) deleteRoom(ctx context.Context, room models.Room) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.RoomMember)(nil)).
			Where("room_id = ?", room.ID).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.JoinRequest)(nil)).
			Where("room_id = ?", room.ID).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*models.Room)(nil)).
			Where("id = ?", room.ID).Exec(ctx)
		return err
	})
}
