package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/groupquest/partyboard/internal/events"
	"github.com/groupquest/partyboard/internal/gamedata"
	"github.com/groupquest/partyboard/internal/lifecycle"
	"github.com/groupquest/partyboard/internal/models"
	"github.com/groupquest/partyboard/internal/profiles"
)

var (
	ErrValidation        = errors.New("rooms: invalid input")
	ErrRoomNotFound      = errors.New("rooms: room not found")
	ErrRequestNotFound   = errors.New("rooms: join request not found")
	ErrMemberNotFound    = errors.New("rooms: member not found")
	ErrNotOwner          = errors.New("rooms: only the room owner may do this")
	ErrRoomFull          = errors.New("rooms: room is full")
	ErrAlreadyMember     = errors.New("rooms: already a member of this room")
	ErrAlreadyInRoom     = errors.New("rooms: already in another room, leave it first")
	ErrDuplicateRequest  = errors.New("rooms: join request already pending")
	ErrOwnerCannotLeave  = errors.New("rooms: the owner cannot leave, delete the room instead")
	ErrCannotRemoveOwner = errors.New("rooms: the owner cannot be removed")
)

// CharacterLookup is the slice of the game-data service the state machine
// needs.
type CharacterLookup interface {
	Character(ctx context.Context, name string) (*gamedata.Character, error)
}

type Service struct {
	db       *bun.DB
	lookup   CharacterLookup
	profiles *profiles.Service
	pub      events.Publisher
	now      func() time.Time
}

func NewService(db *bun.DB, lookup CharacterLookup, prof *profiles.Service, pub events.Publisher) *Service {
	return &Service{
		db:       db,
		lookup:   lookup,
		profiles: prof,
		pub:      pub,
		now:      time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateParams struct {
	Title         string
	Description   string
	Activity      string
	Targets       []string
	MinLevel      int
	MaxMembers    int
	CharacterName string
	Email         string
	ScheduledFor  *time.Time
}

func (p CreateParams) validate(now time.Time) error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !models.ValidActivity(p.Activity) {
		return fmt.Errorf("%w: activity must be boss, hunt or quest", ErrValidation)
	}
	if p.MaxMembers < models.MinRoomSize || p.MaxMembers > models.MaxRoomSize {
		return fmt.Errorf("%w: max_members must be between %d and %d", ErrValidation, models.MinRoomSize, models.MaxRoomSize)
	}
	if p.MinLevel < 0 {
		return fmt.Errorf("%w: min_level cannot be negative", ErrValidation)
	}
	if strings.TrimSpace(p.CharacterName) == "" {
		return fmt.Errorf("%w: character_name is required", ErrValidation)
	}
	if p.ScheduledFor != nil && !p.ScheduledFor.After(now) {
		return fmt.Errorf("%w: scheduled_for must be in the future", ErrValidation)
	}
	return nil
}

// Create makes a new room with the creator as sole member at position 0.
// The creator's character must resolve through the game-data service and the
// account's creation policy must allow another room.
func (s *Service) Create(ctx context.Context, accountID uuid.UUID, p CreateParams) (*models.Room, error) {
	now := s.now().UTC()
	if err := p.validate(now); err != nil {
		return nil, err
	}

	if err := s.profiles.CheckCreate(ctx, accountID); err != nil {
		return nil, err
	}

	ch, err := s.lookup.Character(ctx, p.CharacterName)
	if err != nil {
		return nil, err
	}

	room := &models.Room{
		ID:             uuid.New(),
		OwnerID:        accountID,
		Title:          strings.TrimSpace(p.Title),
		Description:    p.Description,
		Activity:       p.Activity,
		Targets:        p.Targets,
		MinLevel:       p.MinLevel,
		MaxMembers:     p.MaxMembers,
		CurrentMembers: 1,
		World:          ch.World,
		ScheduledFor:   p.ScheduledFor,
		ExpiresAt:      lifecycle.ExpireAt(now, p.ScheduledFor),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	owner := &models.RoomMember{
		RoomID:    room.ID,
		AccountID: accountID,
		Position:  0,
		Role:      models.RoleOwner,
		JoinedAt:  now,
		Snapshot:  snapshotFrom(ch),
	}

	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(room).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(owner).Exec(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	if err := s.profiles.RecordCreation(ctx, accountID); err != nil {
		logrus.WithError(err).WithField("account_id", accountID).Warn("rooms: failed to record creation")
	}

	room.Members = []models.RoomMember{*owner}
	s.pub.Publish(ctx, events.Event{Type: events.RoomCreated, RoomID: room.ID, Title: room.Title, At: now})
	return room, nil
}

type JoinParams struct {
	CharacterName string
	Email         string
	// Switch leaves the caller's current room in the same transaction as
	// submitting the request, so there is no window of being in two rooms.
	Switch bool
}

// RequestJoin records a pending join request. At most one pending request
// per (room, requester) pair; the unique index makes a duplicate fail
// atomically at write time.
func (s *Service) RequestJoin(ctx context.Context, accountID, roomID uuid.UUID, p JoinParams) error {
	if strings.TrimSpace(p.CharacterName) == "" {
		return fmt.Errorf("%w: character_name is required", ErrValidation)
	}

	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID == accountID {
		return ErrAlreadyMember
	}

	inThisRoom, err := s.isMember(ctx, roomID, accountID)
	if err != nil {
		return err
	}
	if inThisRoom {
		return ErrAlreadyMember
	}

	current, err := s.currentMembership(ctx, accountID)
	if err != nil {
		return err
	}
	if current != nil && !p.Switch {
		return ErrAlreadyInRoom
	}

	// Re-validation against the lookup service is best effort: a failure
	// degrades to a name-only snapshot instead of blocking the request.
	snap := models.Snapshot{CharacterName: strings.TrimSpace(p.CharacterName)}
	if ch, err := s.lookup.Character(ctx, p.CharacterName); err == nil {
		snap = snapshotFrom(ch)
	}

	now := s.now().UTC()
	req := &models.JoinRequest{
		RoomID:    roomID,
		AccountID: accountID,
		Email:     p.Email,
		CreatedAt: now,
		Snapshot:  snap,
	}

	var leftRoom *models.Room
	var reopened bool
	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if current != nil {
			old, err := s.getRoomTx(ctx, tx, current.RoomID)
			if err != nil {
				return err
			}
			wasFull := old.Full()
			if err := s.removeMemberTx(ctx, tx, old, current, now); err != nil {
				return err
			}
			leftRoom = old
			reopened = wasFull
		}
		if _, err := tx.NewInsert().Model(req).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateRequest
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			return ErrDuplicateRequest
		}
		return fmt.Errorf("request join: %w", err)
	}

	if leftRoom != nil {
		s.publishMembershipChange(ctx, leftRoom, reopened, now)
	}
	s.pub.Publish(ctx, events.Event{Type: events.RoomUpdated, RoomID: roomID, Title: room.Title, At: now})
	return nil
}

// Approve turns a pending request into a membership: the requester is
// appended to the roster with their snapshot, the request is removed and the
// member count incremented, all in one transaction. A full room rejects the
// approval outright without mutating anything.
func (s *Service) Approve(ctx context.Context, ownerID, roomID, requesterID uuid.UUID) error {
	now := s.now().UTC()
	var becameFull bool
	var title string

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		room, err := s.getRoomTx(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if room.OwnerID != ownerID {
			return ErrNotOwner
		}
		if room.Full() {
			return ErrRoomFull
		}
		title = room.Title

		req := new(models.JoinRequest)
		err = tx.NewSelect().Model(req).
			Where("room_id = ? AND account_id = ?", roomID, requesterID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}

		member := &models.RoomMember{
			RoomID:    roomID,
			AccountID: requesterID,
			Position:  room.CurrentMembers,
			Role:      models.RoleMember,
			JoinedAt:  now,
			Snapshot:  req.Snapshot,
		}
		if _, err := tx.NewInsert().Model(member).Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model((*models.JoinRequest)(nil)).
			Where("room_id = ? AND account_id = ?", roomID, requesterID).
			Exec(ctx); err != nil {
			return err
		}

		room.CurrentMembers++
		becameFull = room.Full()
		_, err = tx.NewUpdate().Model((*models.Room)(nil)).
			Set("current_members = ?", room.CurrentMembers).
			Set("updated_at = ?", now).
			Where("id = ?", roomID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return svcErr("approve request", err)
	}

	s.pub.Publish(ctx, events.Event{Type: events.RoomUpdated, RoomID: roomID, Title: title, At: now})
	if becameFull {
		s.pub.Publish(ctx, events.Event{Type: events.RoomFull, RoomID: roomID, Title: title, At: now})
	}
	return nil
}

// Reject drops a pending request without any other mutation.
func (s *Service) Reject(ctx context.Context, ownerID, roomID, requesterID uuid.UUID) error {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != ownerID {
		return ErrNotOwner
	}

	res, err := s.db.NewDelete().Model((*models.JoinRequest)(nil)).
		Where("room_id = ? AND account_id = ?", roomID, requesterID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// RemoveMember kicks a non-owner member. Owner only.
func (s *Service) RemoveMember(ctx context.Context, ownerID, roomID, targetID uuid.UUID) error {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != ownerID {
		return ErrNotOwner
	}
	if targetID == ownerID {
		return ErrCannotRemoveOwner
	}
	return s.removeMember(ctx, room, targetID)
}

// Leave removes the caller from a room. The owner has no leave path; room
// deletion is the owner's only exit.
func (s *Service) Leave(ctx context.Context, accountID, roomID uuid.UUID) error {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID == accountID {
		return ErrOwnerCannotLeave
	}
	return s.removeMember(ctx, room, accountID)
}

// Delete removes the room outright, terminating all memberships and pending
// requests with it. Owner only.
func (s *Service) Delete(ctx context.Context, ownerID, roomID uuid.UUID) error {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != ownerID {
		return ErrNotOwner
	}

	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.RoomMember)(nil)).
			Where("room_id = ?", roomID).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.JoinRequest)(nil)).
			Where("room_id = ?", roomID).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*models.Room)(nil)).
			Where("id = ?", roomID).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}

	s.pub.Publish(ctx, events.Event{Type: events.RoomDeleted, RoomID: roomID, Title: room.Title, At: s.now().UTC()})
	return nil
}

// Get returns a room with its roster (ordered by position, owner first) and
// pending requests.
func (s *Service) Get(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room := new(models.Room)
	err := s.db.NewSelect().Model(room).
		Relation("Members", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Relation("Requests", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at ASC")
		}).
		Where("r.id = ?", roomID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// ListActive returns all rooms, newest first.
func (s *Service) ListActive(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.NewSelect().Model(&rooms).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListMine returns the rooms the account owns or has joined, newest first.
func (s *Service) ListMine(ctx context.Context, accountID uuid.UUID) ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.NewSelect().Model(&rooms).
		Relation("Members", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("r.owner_id = ? OR r.id IN (SELECT room_id FROM room_members WHERE account_id = ?)", accountID, accountID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list my rooms: %w", err)
	}
	return rooms, nil
}

// --- Helpers ---

func (s *Service) getRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room := new(models.Room)
	err := s.db.NewSelect().Model(room).Where("id = ?", roomID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

func (s *Service) getRoomTx(ctx context.Context, tx bun.Tx, roomID uuid.UUID) (*models.Room, error) {
	room := new(models.Room)
	err := tx.NewSelect().Model(room).Where("id = ?", roomID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Service) isMember(ctx context.Context, roomID, accountID uuid.UUID) (bool, error) {
	n, err := s.db.NewSelect().Model((*models.RoomMember)(nil)).
		Where("room_id = ? AND account_id = ?", roomID, accountID).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return n > 0, nil
}

// currentMembership finds the caller's non-owner membership, if any. Owned
// rooms do not count: the owner's exit is deletion, not leaving.
func (s *Service) currentMembership(ctx context.Context, accountID uuid.UUID) (*models.RoomMember, error) {
	member := new(models.RoomMember)
	err := s.db.NewSelect().Model(member).
		Where("account_id = ? AND role = ?", accountID, models.RoleMember).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return member, nil
}

func (s *Service) removeMember(ctx context.Context, room *models.Room, targetID uuid.UUID) error {
	now := s.now().UTC()
	wasFull := room.Full()

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		member := new(models.RoomMember)
		err := tx.NewSelect().Model(member).
			Where("room_id = ? AND account_id = ?", room.ID, targetID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMemberNotFound
		}
		if err != nil {
			return err
		}
		return s.removeMemberTx(ctx, tx, room, member, now)
	})
	if err != nil {
		return svcErr("remove member", err)
	}

	s.publishMembershipChange(ctx, room, wasFull, now)
	return nil
}

// removeMemberTx deletes a membership row, compacts positions so the roster
// stays dense with the owner fixed at 0, and recomputes current_members from
// the rows that remain.
func (s *Service) removeMemberTx(ctx context.Context, tx bun.Tx, room *models.Room, member *models.RoomMember, now time.Time) error {
	if member.Role == models.RoleOwner {
		return ErrCannotRemoveOwner
	}

	if _, err := tx.NewDelete().Model((*models.RoomMember)(nil)).
		Where("room_id = ? AND account_id = ?", room.ID, member.AccountID).
		Exec(ctx); err != nil {
		return err
	}

	if _, err := tx.NewUpdate().Model((*models.RoomMember)(nil)).
		Set("position = position - 1").
		Where("room_id = ? AND position > ?", room.ID, member.Position).
		Exec(ctx); err != nil {
		return err
	}

	remaining, err := tx.NewSelect().Model((*models.RoomMember)(nil)).
		Where("room_id = ?", room.ID).
		Count(ctx)
	if err != nil {
		return err
	}

	room.CurrentMembers = remaining
	_, err = tx.NewUpdate().Model((*models.Room)(nil)).
		Set("current_members = ?", remaining).
		Set("updated_at = ?", now).
		Where("id = ?", room.ID).
		Exec(ctx)
	return err
}

func (s *Service) publishMembershipChange(ctx context.Context, room *models.Room, wasFull bool, now time.Time) {
	typ := events.RoomUpdated
	if wasFull {
		// Dropping below capacity re-arms the completion notification
		// for this room.
		typ = events.RoomReopened
	}
	s.pub.Publish(ctx, events.Event{Type: typ, RoomID: room.ID, Title: room.Title, At: now})
}

func snapshotFrom(ch *gamedata.Character) models.Snapshot {
	return models.Snapshot{
		CharacterName: ch.Name,
		Level:         ch.Level,
		Vocation:      ch.Vocation,
		Guild:         ch.Guild,
		World:         ch.World,
	}
}

// svcErr passes sentinel errors through untouched and wraps everything else.
func svcErr(op string, err error) error {
	for _, sentinel := range []error{
		ErrRoomNotFound, ErrRequestNotFound, ErrMemberNotFound, ErrNotOwner,
		ErrRoomFull, ErrAlreadyMember, ErrAlreadyInRoom, ErrDuplicateRequest,
		ErrOwnerCannotLeave, ErrCannotRemoveOwner,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
