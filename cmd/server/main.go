package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dartagnan/server"
	"dartagnan/server/internal/lobby"
	"dartagnan/server/internal/sim"
	"dartagnan/server/internal/telemetry"
	"dartagnan/server/logging"
	"dartagnan/server/logging/sinks"
)

func main() {
	cfg := server.ConfigFromEnv()

	stdLogger := log.New(os.Stdout, "", log.LstdFlags)
	logger := telemetry.WrapLogger(stdLogger)
	metrics := telemetry.NewCounters()

	router, routerCleanup := buildRouter(stdLogger)
	defer routerCleanup()

	lobbyClient := lobby.NewClient(lobby.Config{
		BaseURL: cfg.LobbyURL,
		RoomID:  cfg.RoomID,
		Secret:  cfg.LobbySecret,
	}, logger)
	if lobbyClient.Offline() {
		stdLogger.Printf("no LOBBY_URL set, running in offline mode")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := server.NewHub(logger, metrics)

	var queue *sim.Queue
	world := sim.NewWorld(cfg.RoomName, sim.Deps{
		Delivery:  hub,
		Reporter:  lobby.NewReporter(lobbyClient),
		Logger:    logger,
		Metrics:   metrics,
		Publisher: router,
		Seed:      cfg.Seed,
		Submit:    func(cmd sim.Command) { queue.Submit(cmd) },
		OnIdleShutdown: func() {
			stdLogger.Printf("room idle past timeout, shutting down")
			cancel()
		},
	})
	queue = sim.NewQueue(world.Apply, logger, metrics)
	loop := sim.NewLoop(logging.SystemClock{}, queue.Submit)

	stop := make(chan struct{})
	go queue.Run(stop)
	go loop.Run(stop)

	sessionDeps := server.SessionDeps{
		Config:  cfg,
		Submit:  queue.Submit,
		Lobby:   lobbyClient,
		Logger:  logger,
		Metrics: metrics,
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		stdLogger.Fatalf("listen %s: %v", cfg.ListenAddr, err)
	}
	stdLogger.Printf("room %q accepting tcp on %s", cfg.RoomName, cfg.ListenAddr)
	go acceptLoop(ctx, listener, sessionDeps, stdLogger)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: buildMux(sessionDeps, metrics, router),
	}
	go func() {
		stdLogger.Printf("http endpoints on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stdLogger.Printf("http server: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	stdLogger.Printf("shutting down")

	listener.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	close(stop)
	router.Close(shutdownCtx)
}

// buildRouter wires the event pipeline: console always, ndjson when
// EVENT_LOG names a file.
func buildRouter(fallback *log.Logger) (*logging.Router, func()) {
	named := []logging.NamedSink{
		{Name: "console", Sink: sinks.NewConsoleSink(os.Stdout)},
	}
	var files []*os.File
	if path := os.Getenv("EVENT_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fallback.Printf("event log %s: %v", path, err)
		} else {
			named = append(named, logging.NamedSink{Name: "json", Sink: sinks.NewJSONSink(f)})
			files = append(files, f)
		}
	}
	router := logging.NewRouter(logging.SystemClock{}, logging.DefaultConfig(), named)
	cleanup := func() {
		for _, f := range files {
			f.Close()
		}
	}
	return router, cleanup
}

func acceptLoop(ctx context.Context, listener net.Listener, deps server.SessionDeps, logger *log.Logger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Printf("accept: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		go server.ServeConn(ctx, conn, deps)
	}
}

func buildMux(deps server.SessionDeps, metrics *telemetry.Counters, router *logging.Router) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.WSHandler(deps))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, _ *http.Request) {
		stats := router.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"counters":      metrics.Snapshot(),
			"eventsTotal":   stats.EventsTotal,
			"eventsDropped": stats.DroppedTotal,
		})
	})
	return mux
}
