package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/collabcanvas/backend/internal/auth"
	"github.com/collabcanvas/backend/internal/hub"
	"github.com/collabcanvas/backend/internal/store"
	"github.com/collabcanvas/backend/internal/ws"
)

// Deps bundles what the HTTP surface needs.
type Deps struct {
	Hub      *hub.Hub
	Dir      ws.Directory
	Store    *store.FileStore
	Verifier *auth.Verifier
	Log      *zap.SugaredLogger
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Hub, d.Dir, d.Verifier, d.Log))

	// Token-carrying routes
	r.Post("/rooms", CreateRoom(d))
	r.Post("/rooms/{code}/ocr", ImportCanvas(d))
	r.Get("/rooms/{code}/export", ExportRoom(d))
	return r
}
