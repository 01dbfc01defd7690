// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/svalle/lamente/internal/config"
	"github.com/svalle/lamente/internal/handlers"
	"github.com/svalle/lamente/internal/middleware"
	"github.com/svalle/lamente/internal/room"
	"github.com/svalle/lamente/internal/session"
)

func main() {
	logger := logrus.New()
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Load(logger)

	registry := room.NewRegistry(logger, cfg.RoomTTL, cfg.EmptyGrace)
	hub := handlers.NewHub(logger)
	coord := session.NewCoordinator(registry, hub, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", http.HandlerFunc(handlers.WSHandler(logger, coord, hub)))
	mux.Handle("/rooms", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListRoomsHandler(registry),
	)))
	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- server.ListenAndServe()
	}()
	logger.Infof("listening on %s", cfg.Addr)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Fatalf("server exited: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
