package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collabcanvas/backend/internal/auth"
	"github.com/collabcanvas/backend/internal/canvas"
	"github.com/collabcanvas/backend/internal/hub"
	"github.com/collabcanvas/backend/internal/room"
	"github.com/collabcanvas/backend/internal/roomdb"
	"github.com/collabcanvas/backend/internal/types"
)

// pingInterval is the keepalive cadence; a var so tests can shorten it.
var pingInterval = 30 * time.Second

// Directory is the room/membership lookup surface the gateway needs.
// *roomdb.Repository satisfies it.
type Directory interface {
	FindRoomByCode(code string) (*roomdb.Room, error)
	CreateRoom(code, name string, creator auth.Identity) (*roomdb.Room, error)
	EnsureMembership(roomID uint, identity auth.Identity) error
	ListMembers(code string) ([]roomdb.Member, error)
	CodeInUse(code string) (bool, error)
}

// Handler upgrades the connection, verifies the token once and serves the
// room protocol until the socket drops.
func Handler(h *hub.Hub, dir Directory, verifier *auth.Verifier, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		identity, err := verifier.Verify(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		s := &session{
			id:       uuid.NewString(),
			identity: identity,
			conn:     conn,
			outbox:   make(chan types.Event, 64),
			rooms:    make(map[string]*room.Room),
			hub:      h,
			dir:      dir,
			log:      log,
		}
		log.Infow("user connected", "user", identity.Email, "session", s.id)
		s.run(r.Context())
		log.Infow("user disconnected", "user", identity.Email, "session", s.id)
	}
}

// session is one authenticated connection. It may be joined to several rooms
// at once; all of them share the single outbox the writer goroutine drains.
type session struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	outbox   chan types.Event
	rooms    map[string]*room.Room
	hub      *hub.Hub
	dir      Directory
	log      *zap.SugaredLogger
}

func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.disconnectAll()

	// Writer goroutine. Rooms and handlers only ever touch the outbox, so
	// all socket writes happen here, in event order.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-s.outbox:
				payload, err := json.Marshal(ev)
				if err != nil {
					s.log.Errorw("marshal event", "type", ev.Type, "error", err)
					continue
				}
				writeCtx, writeCancel := context.WithTimeout(ctx, 3*time.Second)
				err = s.conn.Write(writeCtx, websocket.MessageText, payload)
				writeCancel()
				if err != nil {
					return
				}
			}
		}
	}()

	// Keepalive. The read loop has no deadline of its own, so a half-open
	// socket would otherwise hold the session forever; a failed ping tears
	// it down.
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, pingCancel := context.WithTimeout(ctx, pingInterval)
				err := s.conn.Ping(pingCtx)
				pingCancel()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			// Clean close/going-away is normal; anything else just ends
			// the session the same way.
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			s.sendSelf(types.ErrorEvent("malformed message"))
			continue
		}
		s.dispatch(cm)
	}
}

func (s *session) dispatch(cm types.ClientMessage) {
	switch cm.Type {
	case "createRoom":
		s.handleCreateRoom(cm)
	case "joinRoom":
		s.handleJoinRoom(cm)
	case "leaveRoom":
		s.handleLeaveRoom(cm)
	case "addComponent", "addChildComponent", "removeComponent",
		"moveComponent", "transformComponent",
		"updateComponentStyle", "updateComponentProperties":
		s.handleEdit(cm)
	default:
		s.sendSelf(types.ErrorEvent("unknown message type"))
	}
}

func (s *session) handleCreateRoom(cm types.ClientMessage) {
	code, err := s.freshCode()
	if err != nil {
		s.sendSelf(types.ErrorEvent("failed to generate room code"))
		return
	}
	rm, err := s.dir.CreateRoom(code, cm.RoomName, s.identity)
	if err != nil {
		s.log.Errorw("create room", "error", err)
		s.sendSelf(types.ErrorEvent("failed to create room"))
		return
	}
	if !s.joinActor(code) {
		s.sendSelf(types.ErrorEvent("failed to join room"))
		return
	}
	s.sendSelf(types.Event{Type: "roomCreated", Payload: types.RoomPayload{Code: rm.Code, Name: rm.Name}})
	s.log.Infow("room created", "room", rm.Code, "user", s.identity.Email)
}

func (s *session) freshCode() (string, error) {
	for {
		code, err := roomdb.GenerateCode()
		if err != nil {
			return "", err
		}
		inUse, err := s.dir.CodeInUse(code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
		s.log.Debugw("room code collision, regenerating")
	}
}

func (s *session) handleJoinRoom(cm types.ClientMessage) {
	if cm.RoomCode == "" {
		s.sendSelf(types.ErrorEvent("missing roomCode"))
		return
	}
	rm, err := s.dir.FindRoomByCode(cm.RoomCode)
	if err != nil {
		s.sendSelf(types.ErrorEvent("room not found"))
		return
	}
	if err := s.dir.EnsureMembership(rm.ID, s.identity); err != nil {
		s.log.Errorw("record membership", "room", rm.Code, "error", err)
		s.sendSelf(types.ErrorEvent("failed to join room"))
		return
	}
	if !s.joinActor(rm.Code) {
		s.sendSelf(types.ErrorEvent("failed to join room"))
		return
	}
	s.broadcastRoster(rm.Code)
	s.sendSelf(types.Event{Type: "joinedRoom", Payload: types.RoomPayload{Code: rm.Code, Name: rm.Name}})
	s.log.Infow("user joined room", "room", rm.Code, "user", s.identity.Email)
}

// joinActor resolves the room actor through the hub and registers this
// session. A join can lose a race against idle eviction, in which case the
// dead actor rejects it and a fresh resolve succeeds.
func (s *session) joinActor(code string) bool {
	for attempt := 0; attempt < 3; attempt++ {
		reply := make(chan *room.Room, 1)
		s.hub.Inbox() <- hub.EnsureRoom{Code: code, Reply: reply}
		actor := <-reply

		joined := make(chan bool, 1)
		if !s.sendRoom(code, actor, room.Join{
			ClientID: s.id,
			Identity: s.identity,
			Outbox:   s.outbox,
			Reply:    joined,
		}) {
			continue
		}
		select {
		case ok := <-joined:
			if ok {
				s.rooms[code] = actor
				return true
			}
		case <-actor.Done():
		}
	}
	return false
}

// sendRoom delivers msg to the actor unless it has shut down. An evicted
// actor's drain keeps the inbox serviced only briefly; without the guard a
// send after that would block forever. A false return means the actor is
// gone, and the stale pointer is dropped so the next operation re-resolves
// through the hub.
func (s *session) sendRoom(code string, actor *room.Room, msg room.Msg) bool {
	select {
	case <-actor.Done():
		// Already shut down. Its drain would swallow the message, so do
		// not offer it at all.
	default:
		select {
		case actor.Inbox() <- msg:
			return true
		case <-actor.Done():
		}
	}
	if s.rooms[code] == actor {
		delete(s.rooms, code)
	}
	return false
}

func (s *session) handleLeaveRoom(cm types.ClientMessage) {
	actor := s.rooms[cm.RoomCode]
	if actor == nil {
		s.sendSelf(types.ErrorEvent("not in that room"))
		return
	}
	s.sendRoom(cm.RoomCode, actor, room.Leave{ClientID: s.id})
	delete(s.rooms, cm.RoomCode)
	s.sendSelf(types.Event{Type: "leftRoom", Payload: types.LeftRoomPayload{RoomCode: cm.RoomCode}})
	s.broadcastRosterVia(cm.RoomCode, actor)
	s.log.Infow("user left room", "room", cm.RoomCode, "user", s.identity.Email)
}

func (s *session) handleEdit(cm types.ClientMessage) {
	actor := s.rooms[cm.RoomCode]
	if actor == nil {
		s.sendSelf(types.ErrorEvent("join the room before editing"))
		return
	}
	edit, ok := toEdit(cm)
	if !ok {
		s.sendSelf(types.ErrorEvent("malformed " + cm.Type + " payload"))
		return
	}
	if !s.sendRoom(cm.RoomCode, actor, room.Submit{SenderID: s.id, Edit: edit}) {
		// Eviction raced the edit; rejoin through the hub and retry once.
		if !s.joinActor(cm.RoomCode) {
			s.sendSelf(types.ErrorEvent("failed to join room"))
			return
		}
		s.sendRoom(cm.RoomCode, s.rooms[cm.RoomCode], room.Submit{SenderID: s.id, Edit: edit})
	}
}

// toEdit validates the per-operation fields and builds the edit variant.
func toEdit(cm types.ClientMessage) (canvas.Edit, bool) {
	switch cm.Type {
	case "addComponent":
		if cm.Component == nil || cm.Component.ID == "" {
			return nil, false
		}
		return canvas.AddRoot{Component: cm.Component}, true
	case "addChildComponent":
		if cm.ParentID == "" || cm.ChildComponent == nil || cm.ChildComponent.ID == "" {
			return nil, false
		}
		return canvas.AddChild{ParentID: cm.ParentID, Child: cm.ChildComponent}, true
	case "removeComponent":
		if cm.ComponentID == "" {
			return nil, false
		}
		return canvas.RemoveComponent{ComponentID: cm.ComponentID}, true
	case "moveComponent":
		if cm.ComponentID == "" || cm.NewPosition == nil {
			return nil, false
		}
		return canvas.Move{ComponentID: cm.ComponentID, NewPosition: *cm.NewPosition}, true
	case "transformComponent":
		if cm.ComponentID == "" || cm.NewSize == nil {
			return nil, false
		}
		return canvas.Resize{ComponentID: cm.ComponentID, NewSize: *cm.NewSize}, true
	case "updateComponentStyle":
		if cm.ComponentID == "" || len(cm.StyleUpdates) == 0 {
			return nil, false
		}
		return canvas.StyleMerge{ComponentID: cm.ComponentID, Updates: cm.StyleUpdates}, true
	case "updateComponentProperties":
		if cm.ComponentID == "" || len(cm.Updates) == 0 {
			return nil, false
		}
		return canvas.PropertyUpdate{ComponentID: cm.ComponentID, Updates: cm.Updates}, true
	default:
		return nil, false
	}
}

func (s *session) disconnectAll() {
	for code, actor := range s.rooms {
		if s.sendRoom(code, actor, room.Disconnect{ClientID: s.id}) {
			s.broadcastRosterVia(code, actor)
		}
	}
	clear(s.rooms)
}

func (s *session) broadcastRoster(code string) {
	if actor := s.rooms[code]; actor != nil {
		s.broadcastRosterVia(code, actor)
	}
}

// broadcastRosterVia recomputes the roster (recorded members crossed with
// the actor's live connections) and fans it out to the whole room. Presence
// is derived fresh each time, never stored.
func (s *session) broadcastRosterVia(code string, actor *room.Room) {
	members, err := s.dir.ListMembers(code)
	if err != nil {
		s.log.Errorw("list members", "room", code, "error", err)
		return
	}
	reply := make(chan []auth.Identity, 1)
	if !s.sendRoom(code, actor, room.Connected{Reply: reply}) {
		return
	}
	var connected []auth.Identity
	select {
	case connected = <-reply:
	case <-actor.Done():
		// Shut down before answering; nobody is left to tell.
		return
	}

	roster := BuildRoster(members, connected)
	s.sendRoom(code, actor, room.Broadcast{Event: types.Event{Type: "updateUsersList", Payload: roster}})
}

// BuildRoster marks each recorded member as connected when some live
// session's identity matches it.
func BuildRoster(members []roomdb.Member, connected []auth.Identity) []types.UserStatus {
	roster := make([]types.UserStatus, len(members))
	for i, m := range members {
		status := types.UserStatus{Email: m.Email, Name: m.Name}
		for _, id := range connected {
			if id.Email == m.Email {
				status.IsConnected = true
				break
			}
		}
		roster[i] = status
	}
	return roster
}

// sendSelf queues an event for this session only.
func (s *session) sendSelf(ev types.Event) {
	select {
	case s.outbox <- ev:
	default:
		s.log.Warnw("outbox full, dropping event", "session", s.id, "type", ev.Type)
	}
}
