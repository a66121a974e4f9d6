package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/collabcanvas/backend/internal/auth"
	"github.com/collabcanvas/backend/internal/canvas"
	"github.com/collabcanvas/backend/internal/types"
)

// Store is the snapshot persistence the room hydrates from and writes to.
type Store interface {
	Load(roomCode string) (canvas.Tree, error)
	Save(roomCode string, components canvas.Tree) error
}

type Msg interface{ isRoomMsg() }

// Join registers a client's outbox with the room. Reply reports whether the
// room accepted the join; false means the room shut down and the caller must
// re-resolve it through the hub.
type Join struct {
	ClientID string
	Identity auth.Identity
	Outbox   chan types.Event
	Reply    chan bool
}

// Leave is an explicit leaveRoom: peers get userLeft.
type Leave struct{ ClientID string }

// Disconnect is a dropped socket: peers get userDisconnected.
type Disconnect struct{ ClientID string }

// Submit applies one edit to the canvas under the room's total order.
type Submit struct {
	SenderID string
	Edit     canvas.Edit
}

// Broadcast fans an event out to every client in the room.
type Broadcast struct{ Event types.Event }

// Connected asks for the identities currently attached to the room.
type Connected struct{ Reply chan []auth.Identity }

// Replace installs an externally built canvas (batch import), persists it and
// pushes it to every client as a fresh initial load. Reply, when non-nil,
// receives the persistence outcome.
type Replace struct {
	Components canvas.Tree
	Reply      chan error
}

// IdleCheck reports whether the room saw no clients and no traffic since the
// previous check. Used by the hub's eviction sweep.
type IdleCheck struct{ Reply chan bool }

// GetView reflects internal state without data races. Test support.
type GetView struct{ Reply chan View }

type Shutdown struct{}

func (Join) isRoomMsg()       {}
func (Leave) isRoomMsg()      {}
func (Disconnect) isRoomMsg() {}
func (Submit) isRoomMsg()     {}
func (Broadcast) isRoomMsg()  {}
func (Connected) isRoomMsg()  {}
func (Replace) isRoomMsg()    {}
func (IdleCheck) isRoomMsg()  {}
func (GetView) isRoomMsg()    {}
func (Shutdown) isRoomMsg()   {}

type View struct {
	NumClients int
	Components canvas.Tree
}

type client struct {
	identity auth.Identity
	outbox   chan types.Event
}

// Room owns one canvas. Every mutation flows through the inbox, so edits for
// a given room are applied in a single total order while different rooms run
// in parallel.
type Room struct {
	code    string
	inbox   chan Msg
	state   canvas.Tree
	clients map[string]*client
	store   Store
	log     *zap.SugaredLogger
	active  bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, code string, store Store, log *zap.SugaredLogger) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		code:    code,
		inbox:   make(chan Msg, 64),
		clients: make(map[string]*client),
		store:   store,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the room shut down. Callers sending to the inbox or
// waiting on a reply select against it so a message to an evicted room can
// never wedge them; on Done they re-resolve the room through the hub.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	// Hydrate once, before the first message is served. Messages queue in
	// the inbox meanwhile.
	state, err := r.store.Load(r.code)
	if err != nil {
		r.log.Errorw("canvas hydration failed, starting empty", "room", r.code, "error", err)
		state = canvas.Tree{}
	}
	r.state = state

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.active = true
				r.clients[msg.ClientID] = &client{identity: msg.Identity, outbox: msg.Outbox}
				msg.Reply <- true
				r.sendExcept(msg.ClientID, types.Event{
					Type:    "newUserJoined",
					Payload: types.UserPayload{Email: msg.Identity.Email},
				})
				if len(r.state) > 0 {
					r.sendTo(msg.ClientID, types.Event{
						Type:    "initialCanvasLoad",
						Payload: r.state.Clone(),
					})
				}

			case Leave:
				r.active = true
				if c := r.clients[msg.ClientID]; c != nil {
					delete(r.clients, msg.ClientID)
					r.sendAll(types.Event{
						Type:    "userLeft",
						Payload: types.UserPayload{Email: c.identity.Email},
					})
				}

			case Disconnect:
				r.active = true
				if c := r.clients[msg.ClientID]; c != nil {
					delete(r.clients, msg.ClientID)
					r.sendAll(types.Event{
						Type:    "userDisconnected",
						Payload: types.UserPayload{Email: c.identity.Email},
					})
				}

			case Submit:
				r.active = true
				r.apply(msg)

			case Broadcast:
				r.sendAll(msg.Event)

			case Connected:
				ids := make([]auth.Identity, 0, len(r.clients))
				for _, c := range r.clients {
					ids = append(ids, c.identity)
				}
				msg.Reply <- ids

			case Replace:
				r.active = true
				r.state = msg.Components.Clone()
				err := r.store.Save(r.code, r.state)
				if err != nil {
					r.log.Errorw("snapshot write failed", "room", r.code, "error", err)
				}
				if msg.Reply != nil {
					msg.Reply <- err
				}
				r.sendAll(types.Event{Type: "initialCanvasLoad", Payload: r.state.Clone()})

			case IdleCheck:
				idle := len(r.clients) == 0 && !r.active
				r.active = false
				msg.Reply <- idle

			case GetView:
				msg.Reply <- View{NumClients: len(r.clients), Components: r.state.Clone()}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

// apply runs the clone-apply-install-persist sequence for one edit and then
// broadcasts. Persistence failure is logged but does not roll back memory:
// the in-memory state stays authoritative until the next successful write.
// Nothing is broadcast before the update has committed.
func (r *Room) apply(msg Submit) {
	next := r.state.Clone()
	if !canvas.Apply(&next, msg.Edit) {
		// Target vanished under a concurrent delete. Drop silently.
		return
	}
	r.state = next

	if err := r.store.Save(r.code, r.state); err != nil {
		r.log.Errorw("snapshot write failed", "room", r.code, "error", err)
	}

	ev, includeSender := eventFor(msg.Edit)
	if includeSender {
		r.sendAll(ev)
	} else {
		r.sendExcept(msg.SenderID, ev)
	}
}

// eventFor builds the broadcast for an applied edit. Only property updates
// echo back to the sender: that operation reconciles optimistic local state
// against the authoritative result, while the rest assume the sender already
// applied the edit locally.
func eventFor(e canvas.Edit) (types.Event, bool) {
	switch e := e.(type) {
	case canvas.AddRoot:
		return types.Event{Type: "componentAdded", Payload: e.Component.Clone()}, false
	case canvas.AddChild:
		return types.Event{Type: "childComponentAdded", Payload: types.ChildAddedPayload{
			ParentID:       e.ParentID,
			ChildComponent: e.Child.Clone(),
		}}, false
	case canvas.RemoveComponent:
		return types.Event{Type: "componentRemoved", Payload: types.RemovedPayload{
			ComponentID: e.ComponentID,
		}}, false
	case canvas.Move:
		return types.Event{Type: "componentMoved", Payload: types.MovedPayload{
			ComponentID: e.ComponentID,
			NewPosition: e.NewPosition,
		}}, false
	case canvas.Resize:
		return types.Event{Type: "componentTransformed", Payload: types.TransformedPayload{
			ComponentID: e.ComponentID,
			NewSize:     e.NewSize,
		}}, false
	case canvas.StyleMerge:
		return types.Event{Type: "componentStyleUpdated", Payload: types.StyleUpdatedPayload{
			ComponentID:  e.ComponentID,
			StyleUpdates: e.Updates,
		}}, false
	case canvas.PropertyUpdate:
		return types.Event{Type: "componentPropertiesUpdated", Payload: types.PropertiesUpdatedPayload{
			ComponentID: e.ComponentID,
			Updates:     e.Updates,
		}}, true
	}
	return types.Event{}, false
}

func (r *Room) sendAll(ev types.Event) {
	for id := range r.clients {
		r.sendTo(id, ev)
	}
}

func (r *Room) sendExcept(senderID string, ev types.Event) {
	for id := range r.clients {
		if id == senderID {
			continue
		}
		r.sendTo(id, ev)
	}
}

// sendTo never blocks the room loop. An outbox that stays full means a
// client that stopped draining; it is dropped from this room. The outbox is
// shared with the client's other rooms, so it is never closed here.
func (r *Room) sendTo(clientID string, ev types.Event) {
	c := r.clients[clientID]
	if c == nil {
		return
	}
	select {
	case c.outbox <- ev:
	default:
		r.log.Warnw("dropping slow client", "room", r.code, "client", clientID)
		delete(r.clients, clientID)
	}
}

func (r *Room) shutdown() {
	clear(r.clients)
	r.cancel()
	// Late messages can still arrive from callers that resolved this room
	// just before it was evicted. Answer the ones that would otherwise hang
	// so the caller retries through the hub.
	go r.drain()
}

func (r *Room) drain() {
	// The race window is one hub roundtrip; a minute of draining is far
	// more than enough, after which the goroutine exits.
	timeout := time.NewTimer(time.Minute)
	defer timeout.Stop()
	for {
		select {
		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- false
			case Connected:
				msg.Reply <- nil
			case IdleCheck:
				msg.Reply <- true
			case GetView:
				msg.Reply <- View{}
			case Replace:
				// An import that raced the eviction still has to land.
				err := r.store.Save(r.code, msg.Components)
				if err != nil {
					r.log.Errorw("snapshot write failed", "room", r.code, "error", err)
				}
				if msg.Reply != nil {
					msg.Reply <- err
				}
			}
		case <-timeout.C:
			return
		}
	}
}
