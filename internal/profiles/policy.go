// Package profiles holds the account tier and the room-creation rate policy.
package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/groupquest/partyboard/internal/models"
)

var (
	ErrDailyLimitReached = errors.New("profiles: daily room creation limit reached")
	ErrRoomLimitReached  = errors.New("profiles: active room limit reached")
)

const (
	freeDailyLimit     = 1
	freeActiveLimit    = 1
	premiumActiveLimit = 2
)

const dateLayout = "2006-01-02"

type Service struct {
	db  *bun.DB
	now func() time.Time
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// WithClock overrides the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns the profile for an account, creating a free-tier one on first
// sight.
func (s *Service) Get(ctx context.Context, accountID uuid.UUID) (*models.Profile, error) {
	p := new(models.Profile)
	err := s.db.NewSelect().Model(p).Where("account_id = ?", accountID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		p = &models.Profile{AccountID: accountID, UpdatedAt: s.now().UTC()}
		if _, err := s.db.NewInsert().Model(p).Exec(ctx); err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

// SetPremium flips the account tier.
func (s *Service) SetPremium(ctx context.Context, accountID uuid.UUID, premium bool) error {
	if _, err := s.Get(ctx, accountID); err != nil {
		return err
	}
	_, err := s.db.NewUpdate().
		Model((*models.Profile)(nil)).
		Set("premium = ?", premium).
		Set("updated_at = ?", s.now().UTC()).
		Where("account_id = ?", accountID).
		Exec(ctx)
	return err
}

// CheckCreate decides whether the account may create a room right now.
// Free tier: one concurrently owned room and one creation per calendar day.
// Premium: two concurrently owned rooms, no daily cap. The daily counter
// resets when the stored date differs from today.
func (s *Service) CheckCreate(ctx context.Context, accountID uuid.UUID) error {
	p, err := s.Get(ctx, accountID)
	if err != nil {
		return err
	}

	owned, err := s.db.NewSelect().
		Model((*models.Room)(nil)).
		Where("owner_id = ?", accountID).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("count owned rooms: %w", err)
	}

	limit := freeActiveLimit
	if p.Premium {
		limit = premiumActiveLimit
	}
	if owned >= limit {
		return ErrRoomLimitReached
	}

	if !p.Premium {
		today := s.now().UTC().Format(dateLayout)
		if p.LastCreatedDate == today && p.RoomsCreatedToday >= freeDailyLimit {
			return ErrDailyLimitReached
		}
	}
	return nil
}

// RecordCreation bumps the daily counter, resetting it on date rollover.
func (s *Service) RecordCreation(ctx context.Context, accountID uuid.UUID) error {
	p, err := s.Get(ctx, accountID)
	if err != nil {
		return err
	}

	today := s.now().UTC().Format(dateLayout)
	count := 1
	if p.LastCreatedDate == today {
		count = p.RoomsCreatedToday + 1
	}

	_, err = s.db.NewUpdate().
		Model((*models.Profile)(nil)).
		Set("rooms_created_today = ?", count).
		Set("last_created_date = ?", today).
		Set("updated_at = ?", s.now().UTC()).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("record creation: %w", err)
	}
	return nil
}
