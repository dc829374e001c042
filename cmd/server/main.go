package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/text/language"

	"github.com/rayscope/rayscope/backend-go/internal/auth"
	"github.com/rayscope/rayscope/backend-go/internal/collab"
	"github.com/rayscope/rayscope/backend-go/internal/config"
	"github.com/rayscope/rayscope/backend-go/internal/db"
	"github.com/rayscope/rayscope/backend-go/internal/export"
	"github.com/rayscope/rayscope/backend-go/internal/loader"
	mw "github.com/rayscope/rayscope/backend-go/internal/middleware"
	"github.com/rayscope/rayscope/backend-go/internal/panel"
	"github.com/rayscope/rayscope/backend-go/internal/raster"
	"github.com/rayscope/rayscope/backend-go/internal/store"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-key" {
		hashKey(os.Args[2:])
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	level, err := cfg.Level()
	if err != nil {
		slog.Warn("invalid log level, using info", "error", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	raster.UseLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The database is only needed for pgdoc:// sources.
	var querier loader.Querier
	if cfg.DatasetDBURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatasetDBURL)
		if err != nil {
			slog.Error("connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		querier = pool
	}

	formatter := panel.NewFormatter(language.English)

	ld := loader.New(&http.Client{}, querier, cfg.FetchTimeout)
	datasets := store.New(ld, loader.Sources(cfg.RayDataSource, cfg.MediumDataSource))
	datasetHandler := store.NewHandler(datasets, formatter)

	// A failed initial load is not fatal: the viewer shows the error until
	// a reload or upload succeeds.
	if err := datasets.Reload(ctx); err != nil {
		slog.Warn("initial dataset load failed", "error", err)
	}

	authService := auth.NewService(cfg.JWTSecret, cfg.AccessKeyHash)
	authHandler := auth.NewHandler(authService)
	if authService.Open() {
		slog.Warn("ACCESS_KEY_HASH not set, viewer is open to anyone")
	}

	hub := collab.NewHub(datasets, cfg.Engine(), formatter)
	go hub.Run(ctx)
	sessionHandler := collab.NewHandler(hub)

	exportHandler := export.NewHandler(hub, cfg.FfmpegPath)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)

	// Auth routes (public)
	r.HandleFunc("/auth/token", authHandler.Token).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/dataset", datasetHandler.Dataset).Methods("GET")
	api.HandleFunc("/dataset/info", datasetHandler.Info).Methods("GET")
	api.HandleFunc("/dataset/upload", datasetHandler.Upload).Methods("POST")
	api.HandleFunc("/dataset/reload", datasetHandler.Reload).Methods("POST")

	api.HandleFunc("/sessions", sessionHandler.Create).Methods("POST")
	api.HandleFunc("/sessions/{sessionId}", sessionHandler.Get).Methods("GET")
	api.HandleFunc("/sessions/{sessionId}", sessionHandler.Delete).Methods("DELETE")
	api.HandleFunc("/sessions/{sessionId}/frame", sessionHandler.Frame).Methods("GET")
	api.HandleFunc("/sessions/{sessionId}/frame.png", exportHandler.FramePNG).Methods("GET")
	api.HandleFunc("/sessions/{sessionId}/export/video", exportHandler.ExportVideo).Methods("POST")

	// WebSocket endpoint
	originPatterns := cfg.OriginPatterns()
	r.Handle("/ws/view/{sessionId}", authService.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, originPatterns)
	})))

	// Frontend
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir))).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mw.CORS(cfg.Origins())(r), // preflights are answered before routing
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop sessions first so websocket clients are closed
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "ray_source", cfg.RayDataSource, "medium_source", cfg.MediumDataSource)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, originPatterns []string) {
	sessionID := mux.Vars(r)["sessionId"]
	if _, err := hub.Session(sessionID); err != nil {
		if errors.Is(err, collab.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	viewer := auth.ViewerFromContext(r.Context())
	if viewer == nil {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := collab.NewClient(hub, conn, viewer.ID, viewer.DisplayName, sessionID, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// hashKey prints the bcrypt hash to use as ACCESS_KEY_HASH.
func hashKey(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: server hash-key <access-key>")
		os.Exit(2)
	}
	hash, err := auth.HashKey(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
