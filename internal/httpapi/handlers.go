package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/collabcanvas/backend/internal/auth"
	"github.com/collabcanvas/backend/internal/canvas"
	"github.com/collabcanvas/backend/internal/export"
	"github.com/collabcanvas/backend/internal/hub"
	"github.com/collabcanvas/backend/internal/room"
	"github.com/collabcanvas/backend/internal/roomdb"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// bearerIdentity verifies the Authorization header and returns the caller,
// or writes a 401 and returns false.
func bearerIdentity(d Deps, w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return auth.Identity{}, false
	}
	identity, err := d.Verifier.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return auth.Identity{}, false
	}
	return identity, true
}

// CreateRoom is the REST counterpart of the createRoom socket event.
func CreateRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := bearerIdentity(d, w, r)
		if !ok {
			return
		}

		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		var code string
		for {
			c, err := roomdb.GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			inUse, err := d.Dir.CodeInUse(c)
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			if !inUse {
				code = c
				break
			}
			d.Log.Debugw("room code collision, regenerating")
		}

		rm, err := d.Dir.CreateRoom(code, body.Name, identity)
		if err != nil {
			d.Log.Errorw("create room", "error", err)
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Code string `json:"code"`
			Name string `json:"name,omitempty"`
		}{Code: rm.Code, Name: rm.Name})
	}
}

// ImportCanvas is the OCR collaborator boundary: a pre-built component array
// replaces the room snapshot wholesale. If the room is live its actor
// installs the import too, so the cache never serves pre-import state.
func ImportCanvas(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := bearerIdentity(d, w, r); !ok {
			return
		}
		code := chi.URLParam(r, "code")
		if !codePattern.MatchString(code) {
			http.Error(w, "invalid room code", http.StatusBadRequest)
			return
		}
		if _, err := d.Dir.FindRoomByCode(code); err != nil {
			if errors.Is(err, roomdb.ErrRoomNotFound) {
				http.Error(w, "room not found", http.StatusNotFound)
				return
			}
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}

		var body struct {
			Components canvas.Tree `json:"components"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		for _, c := range body.Components {
			assignIDs(c)
		}

		if err := installImport(d, code, body.Components); err != nil {
			d.Log.Errorw("import save failed", "room", code, "error", err)
			http.Error(w, "failed to store canvas", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Message    string      `json:"message"`
			Components canvas.Tree `json:"components"`
		}{Message: "components imported", Components: body.Components})
	}
}

// installImport lands the imported tree in both the cache and the store. A
// live room installs it through its actor, in the room's serialization
// order, and reports the persistence outcome on the reply channel; a dead
// room writes the store directly. Either way the caller learns whether the
// snapshot actually committed.
func installImport(d Deps, code string, components canvas.Tree) error {
	lookup := make(chan *room.Room, 1)
	d.Hub.Inbox() <- hub.GetRoom{Code: code, Reply: lookup}
	actor := <-lookup
	if actor == nil {
		return d.Store.Save(code, components)
	}

	saved := make(chan error, 1)
	select {
	case actor.Inbox() <- room.Replace{Components: components, Reply: saved}:
	case <-actor.Done():
		return d.Store.Save(code, components)
	}
	select {
	case err := <-saved:
		return err
	case <-actor.Done():
		// Evicted before answering; the drain persists direct writes, but
		// this one raced it, so write the store here.
		select {
		case err := <-saved:
			return err
		default:
			return d.Store.Save(code, components)
		}
	}
}

// assignIDs fills in ids the importer did not set.
func assignIDs(c *canvas.Component) {
	if c.ID == "" {
		c.ID = fmt.Sprintf("comp-%s", uuid.NewString())
	}
	for _, child := range c.Children {
		assignIDs(child)
	}
}

// ExportRoom serves the persisted snapshot as a zipped static page. It reads
// the store only; the live cache is never touched.
func ExportRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := bearerIdentity(d, w, r); !ok {
			return
		}
		code := chi.URLParam(r, "code")
		if !codePattern.MatchString(code) {
			http.Error(w, "invalid room code", http.StatusBadRequest)
			return
		}

		components, err := d.Store.Load(code)
		if err != nil {
			d.Log.Errorw("export load failed", "room", code, "error", err)
			http.Error(w, "failed to load canvas", http.StatusInternalServerError)
			return
		}
		if len(components) == 0 {
			http.Error(w, "no canvas for room", http.StatusNotFound)
			return
		}

		archive, err := export.Archive(code, components)
		if err != nil {
			d.Log.Errorw("export archive failed", "room", code, "error", err)
			http.Error(w, "failed to build archive", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", code+".zip"))
		_, _ = w.Write(archive)
	}
}
