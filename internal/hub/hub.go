package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/collabcanvas/backend/internal/room"
)

type HubMsg interface{ isHubMsg() }

// EnsureRoom returns the live actor for a code, creating (and hydrating) it
// on first access.
type EnsureRoom struct {
	Code  string
	Reply chan *room.Room
}

// GetRoom returns the live actor or nil without creating one.
type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct {
	Code string
}

type ShutdownHub struct{}

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the map of room actors. Rooms are created lazily on first access
// and evicted after an idle interval with no clients; state persists on every
// update, so a later access simply re-hydrates.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	store  room.Store
	idle   time.Duration
	log    *zap.SugaredLogger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, store room.Store, idle time.Duration, log *zap.SugaredLogger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		store:  store,
		idle:   idle,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	var sweep <-chan time.Time
	if h.idle > 0 {
		t := time.NewTicker(h.idle)
		defer t.Stop()
		sweep = t.C
	}

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case <-sweep:
			h.evictIdle()

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				rm := h.rooms[msg.Code]
				if rm == nil {
					rm = room.New(h.ctx, msg.Code, h.store, h.log)
					h.rooms[msg.Code] = rm
					h.log.Debugw("room actor created", "room", msg.Code)
				}
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // may be nil

			case RemoveRoom:
				if rm := h.rooms[msg.Code]; rm != nil {
					delete(h.rooms, msg.Code)
					rm.Inbox() <- room.Shutdown{}
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

// evictIdle removes every room that reported no clients and no traffic since
// the previous sweep. The room keeps answering late messages after shutdown,
// so a caller racing the eviction re-resolves through EnsureRoom.
func (h *Hub) evictIdle() {
	for code, rm := range h.rooms {
		reply := make(chan bool, 1)
		rm.Inbox() <- room.IdleCheck{Reply: reply}
		if <-reply {
			delete(h.rooms, code)
			rm.Inbox() <- room.Shutdown{}
			h.log.Infow("idle room evicted", "room", code)
		}
	}
}

func (h *Hub) shutdown() {
	for _, rm := range h.rooms {
		rm.Inbox() <- room.Shutdown{}
	}
	clear(h.rooms)
	h.cancel()
}
