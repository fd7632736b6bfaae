// Package hub fans room events out to observing WebSocket sessions. The room
// list and "my rooms" views replace their local state wholesale on every
// event; clients are pushed snapshot invalidations, never partial merges.
package hub

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/groupquest/partyboard/internal/events"
)

type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	clients map[*Client]bool
	dedup   *Dedup

	rdb    *redis.Client
	cancel context.CancelFunc
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		clients:    make(map[*Client]bool),
		dedup:      NewDedup(),
		rdb:        rdb,
	}
}

// Run owns the client set. Call from a goroutine; Stop ends it.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.subscribe(ctx)

	log.Info("hub running")
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case msg, ok := <-h.broadcast:
			if !ok {
				for client := range h.clients {
					close(client.send)
				}
				log.Info("hub stopped")
				return
			}
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow consumer; drop it rather than block
					// everyone else.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Stop tears down the Redis subscription and the run loop.
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	close(h.broadcast)
}

func (h *Hub) subscribe(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, events.Channel)
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			h.handleEvent([]byte(msg.Payload))
		}
	}
}

// handleEvent applies the completion dedup before forwarding. room_full is
// forwarded at most once per room until a room_reopened clears the mark.
func (h *Hub) handleEvent(payload []byte) {
	var ev events.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		logrus.WithError(err).Warn("hub: dropping malformed event")
		return
	}

	switch ev.Type {
	case events.RoomFull:
		if !h.dedup.MarkFull(ev.RoomID) {
			return
		}
	case events.RoomReopened:
		h.dedup.Reopen(ev.RoomID)
	case events.RoomDeleted:
		h.dedup.Forget(ev.RoomID)
	}

	select {
	case h.broadcast <- payload:
	default:
		logrus.Warn("hub: broadcast buffer full, dropping event")
	}
}
