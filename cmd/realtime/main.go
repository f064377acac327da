package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"github.com/moahnaf11/Messaging-App-Backend/internal/auth"
	"github.com/moahnaf11/Messaging-App-Backend/internal/config"
	"github.com/moahnaf11/Messaging-App-Backend/internal/mq"
	"github.com/moahnaf11/Messaging-App-Backend/internal/store"
	"github.com/moahnaf11/Messaging-App-Backend/internal/ws"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "realtime terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires configuration, storage, the broker bridge and the WebSocket
// server, then blocks until a shutdown signal.  Keeping the wiring out of
// main ensures every defer (database close, broker close) executes before
// the process exits.
func run() (int, error) {
	_ = godotenv.Load()

	var cfg config.Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(cfg.BadgerFilepath).WithLogger(nil))
	if err != nil {
		return exitRuntime, fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		logger.Info("closing BadgerDB")
		_ = db.Close()
	}()

	st := store.NewBadgerStore(db, logger)

	var bridge ws.Bridge = ws.NopBridge{}
	if cfg.AmqpURL != "" {
		dialer, err := mq.NewDialer(cfg.AmqpURL)
		if err != nil {
			return exitRuntime, err
		}
		defer dialer.Close()

		publisher, err := mq.NewPublisher(dialer, logger)
		if err != nil {
			return exitRuntime, err
		}
		defer publisher.Close()
		bridge = publisher
		logger.Info("event bridge enabled", "exchange", mq.Exchange)
	}

	router := ws.NewRouter(st, bridge, logger)
	server := ws.NewServer(router, logger, ws.ServerOptions{
		WriteWait:      cfg.WriteWait,
		PongWait:       cfg.PongWait,
		SendBufferSize: cfg.SendBufferSize,
	})
	verifier := auth.NewVerifier(cfg.JWTSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", ws.Authorize(verifier, server.HandleConnection))
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(rw, "ok %d\n", router.Registry().Len())
	})

	httpServer := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return exitRuntime, fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return exitRuntime, fmt.Errorf("shutdown: %w", err)
	}
	return exitOK, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
