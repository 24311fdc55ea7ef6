package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/housie-backend/internal/archive"
	"github.com/DoyleJ11/housie-backend/internal/auth"
	"github.com/DoyleJ11/housie-backend/internal/config"
	"github.com/DoyleJ11/housie-backend/internal/httpapi"
	"github.com/DoyleJ11/housie-backend/internal/hub"
	"github.com/DoyleJ11/housie-backend/internal/lobby"
	"github.com/DoyleJ11/housie-backend/internal/logging"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logging.New(cfg.Debug, cfg.Pretty)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder, err := openRecorder(cfg, log)
	if err != nil {
		return err
	}

	h := hub.NewHub(ctx,
		hub.WithRules(cfg.Rules()),
		hub.WithLogger(log),
		hub.WithLobbyOptions(lobby.WithRecorder(recorder)),
	)
	reply := make(chan *lobby.Lobby, 1)
	h.Inbox() <- hub.EnsureLobby{Code: cfg.DefaultRoom, Reply: reply}
	if <-reply == nil {
		return fmt.Errorf("create room %q: rules rejected", cfg.DefaultRoom)
	}

	gate := auth.NewGate(cfg.HostSecret)
	if !gate.Enabled() {
		log.Warn("no host secret configured, nobody can host")
	}

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, httpapi.Deps{
		Gate:           gate,
		Rules:          cfg.Rules(),
		Log:            log,
		OriginPatterns: cfg.AllowedOrigins,
		Results:        recorder,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("room", cfg.DefaultRoom))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// The hub and its lobbies stop with ctx; this drains HTTP and websocket handlers.
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openRecorder(cfg config.Config, log *zap.Logger) (archive.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("results archive disabled")
		return archive.Nop{}, nil
	}
	rec, err := archive.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return rec, nil
}
