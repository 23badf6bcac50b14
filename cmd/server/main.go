// Package main provides the session server binary: a WebSocket endpoint for
// room creation, membership, and real-time position/chat fan-out.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/playfield/internal/config"
	"github.com/cory-johannsen/playfield/internal/game/room"
	"github.com/cory-johannsen/playfield/internal/gateway"
	"github.com/cory-johannsen/playfield/internal/observability"
	"github.com/cory-johannsen/playfield/internal/server"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting session server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_players", cfg.Rooms.MaxPlayers),
		zap.Duration("idle_timeout", cfg.Rooms.IdleTimeout),
	)

	spawn := room.SpawnArea{
		MinX: cfg.Rooms.SpawnMinX,
		MaxX: cfg.Rooms.SpawnMaxX,
		MinY: cfg.Rooms.SpawnMinY,
		MaxY: cfg.Rooms.SpawnMaxY,
	}
	registry := room.NewRegistry(spawn, logger)
	reaper := room.NewReaper(registry, cfg.Rooms.IdleTimeout, cfg.Rooms.SweepInterval(), logger)

	table := gateway.NewTable()
	dispatcher := gateway.NewDispatcher(registry, table, logger)
	handler := gateway.NewSessionHandler(registry, dispatcher, room.Settings{
		MaxPlayers: cfg.Rooms.MaxPlayers,
		GameMode:   cfg.Rooms.GameMode,
	}, logger)
	gw := gateway.NewGateway(cfg.Server, table, handler, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		rooms, players := registry.Stats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"rooms":       rooms,
			"players":     players,
			"connections": table.Len(),
		})
	})

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: mux,
	}

	run := server.NewRunner(logger)
	run.Go("http", func() error {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	run.Go("reaper", reaper.Start)

	// Teardown order: stop accepting, drain live connections, then the
	// reaper.
	run.OnShutdown("reaper", reaper.Stop)
	run.OnShutdown("connections", gw.Stop)
	run.OnShutdown("listener", func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
	})

	if err := run.Wait(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
