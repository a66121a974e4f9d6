package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/collabcanvas/backend/internal/auth"
	"github.com/collabcanvas/backend/internal/canvas"
	"github.com/collabcanvas/backend/internal/hub"
	"github.com/collabcanvas/backend/internal/room"
	"github.com/collabcanvas/backend/internal/roomdb"
	"github.com/collabcanvas/backend/internal/types"
)

// stubDirectory satisfies Directory without a database.
type stubDirectory struct{ members []roomdb.Member }

func (d stubDirectory) FindRoomByCode(code string) (*roomdb.Room, error) {
	return &roomdb.Room{ID: 1, Code: code}, nil
}

func (d stubDirectory) CreateRoom(code, name string, creator auth.Identity) (*roomdb.Room, error) {
	return &roomdb.Room{ID: 1, Code: code, Name: name}, nil
}

func (d stubDirectory) EnsureMembership(roomID uint, identity auth.Identity) error { return nil }

func (d stubDirectory) ListMembers(code string) ([]roomdb.Member, error) { return d.members, nil }

func (d stubDirectory) CodeInUse(code string) (bool, error) { return false, nil }

type memStore struct {
	mu    sync.Mutex
	trees map[string]canvas.Tree
}

func newMemStore() *memStore { return &memStore{trees: map[string]canvas.Tree{}} }

func (m *memStore) Load(code string) (canvas.Tree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trees[code].Clone(), nil
}

func (m *memStore) Save(code string, components canvas.Tree) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trees[code] = components.Clone()
	return nil
}

func newTestSession(t *testing.T, h *hub.Hub) *session {
	t.Helper()
	return &session{
		id:       "sess-1",
		identity: auth.Identity{Email: "a@x.com", Name: "A"},
		outbox:   make(chan types.Event, 16),
		rooms:    make(map[string]*room.Room),
		hub:      h,
		dir:      stubDirectory{members: []roomdb.Member{{Email: "a@x.com", Name: "A"}}},
		log:      zaptest.NewLogger(t).Sugar(),
	}
}

func awaitDone(t *testing.T, rm *room.Room) {
	t.Helper()
	select {
	case <-rm.Done():
	case <-time.After(time.Second):
		t.Fatal("room did not shut down")
	}
}

func TestRosterBroadcastReturnsAfterEviction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rm := room.New(ctx, "ABC123", newMemStore(), zaptest.NewLogger(t).Sugar())

	s := newTestSession(t, nil)
	s.rooms["ABC123"] = rm

	rm.Inbox() <- room.Shutdown{}
	awaitDone(t, rm)

	finished := make(chan struct{})
	go func() {
		s.broadcastRosterVia("ABC123", rm)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("roster broadcast against an evicted room must return")
	}
	if s.rooms["ABC123"] != nil {
		t.Fatal("stale actor pointer must be dropped")
	}
}

func TestDisconnectAllReturnsAfterEviction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rm := room.New(ctx, "ABC123", newMemStore(), zaptest.NewLogger(t).Sugar())

	s := newTestSession(t, nil)
	s.rooms["ABC123"] = rm

	rm.Inbox() <- room.Shutdown{}
	awaitDone(t, rm)

	finished := make(chan struct{})
	go func() {
		s.disconnectAll()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect against an evicted room must return")
	}
	if len(s.rooms) != 0 {
		t.Fatal("disconnect must clear the joined rooms")
	}
}

func TestEditAfterEvictionRejoinsFreshActor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	log := zaptest.NewLogger(t).Sugar()
	h := hub.NewHub(ctx, newMemStore(), 0, log)

	s := newTestSession(t, h)
	if !s.joinActor("ABC123") {
		t.Fatal("initial join failed")
	}
	stale := s.rooms["ABC123"]

	h.Inbox() <- hub.RemoveRoom{Code: "ABC123"}
	awaitDone(t, stale)

	s.handleEdit(types.ClientMessage{
		Type:      "addComponent",
		RoomCode:  "ABC123",
		Component: &canvas.Component{ID: "c1"},
	})

	fresh := s.rooms["ABC123"]
	if fresh == nil || fresh == stale {
		t.Fatal("edit after eviction must land on a fresh actor")
	}

	deadline := time.After(2 * time.Second)
	for {
		reply := make(chan room.View, 1)
		fresh.Inbox() <- room.GetView{Reply: reply}
		if v := <-reply; len(v.Components) == 1 && v.Components[0].ID == "c1" {
			return
		}
		select {
		case <-deadline:
			t.Fatal("edit never reached the fresh actor")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSessionKeepaliveReapsUnresponsivePeer(t *testing.T) {
	old := pingInterval
	pingInterval = 50 * time.Millisecond
	t.Cleanup(func() { pingInterval = old })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	log := zaptest.NewLogger(t).Sugar()
	h := hub.NewHub(ctx, newMemStore(), 0, log)
	verifier := auth.NewVerifier("test-secret")
	token, err := verifier.Sign(auth.Identity{Email: "a@x.com", Name: "A"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	sessionOver := make(chan struct{})
	handle := Handler(h, stubDirectory{}, verifier, log)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle(w, r)
		close(sessionOver)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
	conn, _, err := websocket.Dial(context.Background(), url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })

	// The peer never reads, so it never answers pings; the keepalive must
	// tear the session down instead of holding it open forever.
	select {
	case <-sessionOver:
	case <-time.After(5 * time.Second):
		t.Fatal("session with an unresponsive peer must be reaped")
	}
}
