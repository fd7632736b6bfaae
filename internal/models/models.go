package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	ActivityBoss  = "boss"
	ActivityHunt  = "hunt"
	ActivityQuest = "quest"

	RoleOwner  = "owner"
	RoleMember = "member"

	MinRoomSize = 2
	MaxRoomSize = 30
)

// ValidActivity reports whether s is one of the closed activity set.
func ValidActivity(s string) bool {
	return s == ActivityBoss || s == ActivityHunt || s == ActivityQuest
}

// StringList is a JSON-encoded text column. SQLite has no native array type.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		return json.Unmarshal([]byte(v), l)
	case []byte:
		return json.Unmarshal(v, l)
	default:
		return fmt.Errorf("stringlist: cannot scan %T", src)
	}
}

type Room struct {
	bun.BaseModel `bun:"table:rooms,alias:r"`

	ID             uuid.UUID  `bun:"id,pk,type:text"             json:"id"`
	OwnerID        uuid.UUID  `bun:"owner_id,notnull,type:text"  json:"owner_id"`
	Title          string     `bun:"title,notnull"               json:"title"`
	Description    string     `bun:"description"                 json:"description"`
	Activity       string     `bun:"activity,notnull"            json:"activity"`
	Targets        StringList `bun:"targets,type:text"           json:"targets"`
	MinLevel       int        `bun:"min_level,notnull"           json:"min_level"`
	MaxMembers     int        `bun:"max_members,notnull"         json:"max_members"`
	CurrentMembers int        `bun:"current_members,notnull"     json:"current_members"`
	World          string     `bun:"world,notnull"               json:"world"`
	ScheduledFor   *time.Time `bun:"scheduled_for,nullzero"      json:"scheduled_for,omitempty"`
	ExpiresAt      time.Time  `bun:"expires_at,nullzero"         json:"expires_at"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull" json:"updated_at"`

	Members  []RoomMember  `bun:"rel:has-many,join:id=room_id" json:"members,omitempty"`
	Requests []JoinRequest `bun:"rel:has-many,join:id=room_id" json:"requests,omitempty"`
}

// Full reports whether the room has reached capacity.
func (r *Room) Full() bool {
	return r.CurrentMembers >= r.MaxMembers
}

// Scheduled reports whether the room targets a planned future start rather
// than an immediate activity.
func (r *Room) Scheduled() bool {
	return r.ScheduledFor != nil
}

// Snapshot is character data copied from the game-data service at a specific
// event (room creation, join request). It is never refreshed afterwards;
// stale values are expected. Optional fields left at their zero value map to
// nullzero columns, so an absent field is omitted rather than written as an
// explicit NULL.
type Snapshot struct {
	CharacterName string `bun:"character_name,notnull" json:"character_name"`
	Level         int    `bun:"level,nullzero"         json:"level,omitempty"`
	Vocation      string `bun:"vocation,nullzero"      json:"vocation,omitempty"`
	Guild         string `bun:"guild,nullzero"         json:"guild,omitempty"`
	World         string `bun:"world,nullzero"         json:"world,omitempty"`
}

type RoomMember struct {
	bun.BaseModel `bun:"table:room_members,alias:rm"`

	RoomID    uuid.UUID `bun:"room_id,notnull,type:text"    json:"room_id"`
	AccountID uuid.UUID `bun:"account_id,notnull,type:text" json:"account_id"`
	Position  int       `bun:"position,notnull"             json:"position"`
	Role      string    `bun:"role,notnull"                 json:"role"`
	JoinedAt  time.Time `bun:"joined_at,nullzero,notnull"   json:"joined_at"`

	Snapshot
}

type JoinRequest struct {
	bun.BaseModel `bun:"table:join_requests,alias:jr"`

	RoomID    uuid.UUID `bun:"room_id,notnull,type:text"    json:"room_id"`
	AccountID uuid.UUID `bun:"account_id,notnull,type:text" json:"account_id"`
	Email     string    `bun:"email,notnull"                json:"email"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull"  json:"created_at"`

	Snapshot
}

type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:pr"`

	AccountID         uuid.UUID `bun:"account_id,pk,type:text"     json:"account_id"`
	Premium           bool      `bun:"premium,notnull"             json:"premium"`
	RoomsCreatedToday int       `bun:"rooms_created_today,notnull" json:"rooms_created_today"`
	LastCreatedDate   string    `bun:"last_created_date"           json:"last_created_date"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull" json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
