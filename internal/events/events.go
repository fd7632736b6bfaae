// Package events carries room change notifications between the mutation
// path and observing sessions. Delivery is best effort: nothing is queued or
// persisted, a notification published while nobody listens is simply missed.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RoomCreated  = "room_created"
	RoomUpdated  = "room_updated"
	RoomFull     = "room_full"
	RoomReopened = "room_reopened"
	RoomDeleted  = "room_deleted"
)

// Channel is the Redis pub/sub channel room events travel on.
const Channel = "partyboard:rooms"

type Event struct {
	Type   string    `json:"type"`
	RoomID uuid.UUID `json:"room_id"`
	Title  string    `json:"title,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher pushes room events to whoever is observing. Implementations must
// not block the mutation path on delivery.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// RedisPublisher fans events out over Redis pub/sub so every server
// instance's hub sees them.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).Error("events: marshal failed")
		return
	}
	if err := p.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		// Best effort only. A dropped event means a missed toast, not
		// lost state.
		logrus.WithError(err).WithField("type", ev.Type).Warn("events: publish failed")
	}
}
