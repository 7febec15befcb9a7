package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timeline-editor/internal/clip"
	"timeline-editor/internal/editor"
	"timeline-editor/internal/platform/config"
	"timeline-editor/internal/platform/logger"
	"timeline-editor/internal/platform/metrics"
	"timeline-editor/internal/playback"
	"timeline-editor/internal/remote"
	"timeline-editor/internal/timeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	tl, err := timeline.LoadFile(cfg.SessionFile)
	if err != nil {
		log.Error("load session", "file", cfg.SessionFile, "error", err)
		os.Exit(1)
	}
	store := timeline.NewStore(tl)

	var svc remote.Service
	if cfg.SegmentServiceURL != "" {
		svc = remote.NewClient(cfg.SegmentServiceURL, cfg.SegmentServiceTimeout, log)
	} else {
		log.Warn("SEGMENT_SERVICE_URL not set, edits are confirmed locally")
		svc = remote.NewLocal(store)
	}

	met := metrics.New()
	hub := editor.NewHub(log, met.SetWebsocketClients)
	clock := playback.SystemClock{}
	loader := clip.NewLoader(&http.Client{}, clock, log, cfg.ProbeTimeout)

	session := editor.NewSession(editor.Options{
		Store:        store,
		Sources:      loader.Open,
		Clock:        clock,
		Service:      svc,
		TickInterval: cfg.TickInterval,
		LeftMargin:   cfg.LabelMarginPx,
		Log:          log,
		Metrics:      met,
		Hub:          hub,
	})
	h := editor.NewHandler(session, hub, log)

	ctx, stop := context.WithCancel(context.Background())
	sessionDone := make(chan struct{})
	go func() {
		session.Run(ctx)
		close(sessionDone)
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetSegments(store.SegmentCount()) }).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"session_file", cfg.SessionFile,
		"tracks", len(tl.Tracks),
		"segments", store.SegmentCount(),
		"segment_service", cfg.SegmentServiceURL,
		"tick_interval", cfg.TickInterval.String(),
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	stop()
	<-sessionDone

	log.Info("server stopped")
}
