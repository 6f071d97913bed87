package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anuragrao04/qr-attendance/auth"
	"github.com/anuragrao04/qr-attendance/clock"
	"github.com/anuragrao04/qr-attendance/config"
	"github.com/anuragrao04/qr-attendance/database"
	"github.com/anuragrao04/qr-attendance/handlers"
	"github.com/anuragrao04/qr-attendance/notify"
	"github.com/anuragrao04/qr-attendance/sessions"
	"github.com/anuragrao04/qr-attendance/tokens"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// database
	store, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// engine
	clk := clock.Real()
	registry := sessions.NewRegistry()
	issuer := tokens.NewIssuer(registry, clk, cfg.RetiredRetention, logger.With("component", "tokens"))
	hub := notify.NewHub(logger.With("component", "notify"))
	engine := sessions.NewEngine(registry, issuer, store, hub, clk, sessions.Config{
		TokenTTL:           cfg.TokenTTL,
		RequireFingerprint: cfg.RequireFingerprint,
		BindDevices:        cfg.BindDevices,
	}, logger.With("component", "sessions"))

	go issuer.Run(ctx, cfg.SweepInterval)

	// webauthn
	passkeys, err := auth.New(cfg.WebAuthn, store, logger.With("component", "auth"))
	if err != nil {
		return err
	}

	// router
	gin.SetMode(gin.ReleaseMode)
	h := handlers.New(engine, store, hub, passkeys, handlers.Options{
		RotateInterval: cfg.RotateInterval,
		AllowedOrigins: cfg.AllowedOrigins,
		RequirePasskey: cfg.RequirePasskey,
	}, logger.With("component", "http"))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
