package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/collabcanvas/backend/internal/auth"
	"github.com/collabcanvas/backend/internal/config"
	"github.com/collabcanvas/backend/internal/httpapi"
	"github.com/collabcanvas/backend/internal/hub"
	"github.com/collabcanvas/backend/internal/roomdb"
	"github.com/collabcanvas/backend/internal/store"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	repo, err := roomdb.Open(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalw("database", "error", err)
	}

	canvasStore, err := store.New(cfg.CanvasDir, sugar)
	if err != nil {
		sugar.Fatalw("canvas store", "error", err)
	}

	ctx := context.Background()
	h := hub.NewHub(ctx, canvasStore, cfg.RoomIdleTimeout, sugar)

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:      h,
		Dir:      repo,
		Store:    canvasStore,
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		Log:      sugar,
	})

	sugar.Infow("listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		sugar.Fatalw("server", "error", err)
	}
}
