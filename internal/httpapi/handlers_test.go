package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/collabcanvas/backend/internal/auth"
	"github.com/collabcanvas/backend/internal/canvas"
	"github.com/collabcanvas/backend/internal/hub"
	"github.com/collabcanvas/backend/internal/room"
	"github.com/collabcanvas/backend/internal/roomdb"
	"github.com/collabcanvas/backend/internal/store"
)

// stubDirectory satisfies ws.Directory without a database.
type stubDirectory struct{}

func (stubDirectory) FindRoomByCode(code string) (*roomdb.Room, error) {
	return &roomdb.Room{ID: 1, Code: code}, nil
}

func (stubDirectory) CreateRoom(code, name string, creator auth.Identity) (*roomdb.Room, error) {
	return &roomdb.Room{ID: 1, Code: code, Name: name}, nil
}

func (stubDirectory) EnsureMembership(roomID uint, identity auth.Identity) error { return nil }

func (stubDirectory) ListMembers(code string) ([]roomdb.Member, error) { return nil, nil }

func (stubDirectory) CodeInUse(code string) (bool, error) { return false, nil }

// failStore refuses every write.
type failStore struct{}

func (failStore) Load(code string) (canvas.Tree, error) { return canvas.Tree{}, nil }

func (failStore) Save(code string, components canvas.Tree) error {
	return errors.New("disk full")
}

// testDeps wires the HTTP surface against a temp-dir file store. A nil
// roomStore backs the hub's actors with that same file store; pass one to
// make actor persistence misbehave independently.
func testDeps(t *testing.T, roomStore room.Store) Deps {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	fs, err := store.New(t.TempDir(), log)
	if err != nil {
		t.Fatal(err)
	}
	if roomStore == nil {
		roomStore = fs
	}
	return Deps{
		Hub:      hub.NewHub(ctx, roomStore, 0, log),
		Dir:      stubDirectory{},
		Store:    fs,
		Verifier: auth.NewVerifier("test-secret"),
		Log:      log,
	}
}

func bearer(t *testing.T, d Deps) string {
	t.Helper()
	token, err := d.Verifier.Sign(auth.Identity{Email: "a@x.com", Name: "A"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + token
}

func ensureLive(t *testing.T, d Deps, code string) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	d.Hub.Inbox() <- hub.EnsureRoom{Code: code, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatal("timed out resolving room actor")
		return nil
	}
}

func postImport(t *testing.T, d Deps, code, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rooms/"+code+"/ocr", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, d))
	rec := httptest.NewRecorder()
	SetupRoutes(d).ServeHTTP(rec, req)
	return rec
}

func TestImportLiveRoomInstallsAndPersists(t *testing.T) {
	d := testDeps(t, nil)
	actor := ensureLive(t, d, "ABC123")

	rec := postImport(t, d, "ABC123", `{"components":[{"id":"c1","type":"div"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// the actor installed the import
	reply := make(chan room.View, 1)
	actor.Inbox() <- room.GetView{Reply: reply}
	if v := <-reply; len(v.Components) != 1 || v.Components[0].ID != "c1" {
		t.Fatalf("live actor must install the import: %+v", v.Components)
	}

	// and the snapshot committed before the handler answered
	components, err := d.Store.Load("ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if len(components) != 1 || components[0].ID != "c1" {
		t.Fatalf("import must persist: %+v", components)
	}
}

func TestImportLiveRoomReportsPersistenceFailure(t *testing.T) {
	d := testDeps(t, failStore{})
	ensureLive(t, d, "ABC123")

	rec := postImport(t, d, "ABC123", `{"components":[{"id":"c1"}]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("failed write behind a live room must yield 500, got %d", rec.Code)
	}
}

func TestImportDeadRoomPersistsDirectly(t *testing.T) {
	d := testDeps(t, failStore{})

	rec := postImport(t, d, "ABC123", `{"components":[{"id":"c1"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	components, err := d.Store.Load("ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if len(components) != 1 || components[0].ID != "c1" {
		t.Fatalf("dead-room import must write the store: %+v", components)
	}
}

func TestImportRejectsMalformedRoomCode(t *testing.T) {
	d := testDeps(t, failStore{})
	rec := postImport(t, d, "abc123", `{"components":[{"id":"c1"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for a bad code, got %d", rec.Code)
	}
}
