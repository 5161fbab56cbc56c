package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/l3kza08/ichat-api/internal/config"
	"github.com/l3kza08/ichat-api/internal/httpserver"
	"github.com/l3kza08/ichat-api/internal/identity"
	"github.com/l3kza08/ichat-api/internal/metrics"
	"github.com/l3kza08/ichat-api/internal/presence"
	"github.com/l3kza08/ichat-api/internal/registry"
	"github.com/l3kza08/ichat-api/internal/signaling"
	"github.com/l3kza08/ichat-api/internal/turnrest"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("starting ichat-signald",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"db_path", cfg.DBPath,
		"tls", cfg.TLSEnabled(),
		"heartbeat_interval", cfg.HeartbeatInterval,
		"max_message_bytes", cfg.MaxMessageBytes,
		"ice_servers", len(cfg.ICEServers),
	)

	logStartupSecurityWarnings(logger, cfg)

	var turnGen *turnrest.Generator
	if cfg.TURNREST.SharedSecret != "" {
		turnGen, err = turnrest.NewGenerator(turnrest.GeneratorConfig{
			SharedSecret:   cfg.TURNREST.SharedSecret,
			TTLSeconds:     cfg.TURNREST.TTLSeconds,
			UsernamePrefix: cfg.TURNREST.UsernamePrefix,
		})
		if err != nil {
			logger.Error("failed to configure TURN REST credentials", "err", err)
			os.Exit(2)
		}
	}

	store := identity.Open(cfg.DBPath, logger)
	defer store.Close()

	m := metrics.New()
	reg := registry.New()
	broadcaster := presence.NewBroadcaster(store, reg, logger, m)
	router := signaling.NewRouter(store, reg, broadcaster, logger, m)

	srv := httpserver.New(&cfg, store, reg, turnGen, logger, m)
	srv.Mux().Handle("GET /ws", signaling.NewWebSocketServer(&cfg, router, reg, logger))

	monitor := signaling.NewMonitor(store, reg, broadcaster, cfg.HeartbeatInterval, logger, m)
	monitor.Start()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLSEnabled() {
			errCh <- srv.ServeTLS(ln, cfg.TLSCertFile, cfg.TLSKeyFile)
			return
		}
		errCh <- srv.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		monitor.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}
	monitor.Stop()

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}
