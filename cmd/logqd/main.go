package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raj2399/Task-Evallo/internal/api"
	"github.com/raj2399/Task-Evallo/internal/config"
	"github.com/raj2399/Task-Evallo/internal/engine"
	"github.com/raj2399/Task-Evallo/internal/logger"
	"github.com/raj2399/Task-Evallo/internal/logs"
	"github.com/raj2399/Task-Evallo/internal/server"
	"github.com/raj2399/Task-Evallo/internal/validate"
	"github.com/raj2399/Task-Evallo/internal/vault"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "logqd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// 2. Open the log collection
	store, err := engine.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	defer store.Close()
	log.Info("store opened", "backend", cfg.Store.Backend, "path", cfg.Store.Path)

	validator, err := validate.New()
	if err != nil {
		return err
	}
	svc := logs.NewService(store, validator, log)

	// 3. HTTP API
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(&api.Handler{Logs: svc}, api.Options{
		CORSOrigin:         cfg.CORS.Origin,
		RateLimitPerMinute: cfg.RateLimit.PerMinute,
		RateLimitBurst:     cfg.RateLimit.Burst,
		Logger:             log,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("HTTP API listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	// 4. Optional TCP line protocol
	var tcp *server.Router
	if cfg.TCP.Addr != "" {
		tcp = server.NewRouter(svc, log)
		if cfg.TCP.TLS {
			cert, err := vault.GenerateSelfSignedCert()
			if err != nil {
				return fmt.Errorf("failed to generate TLS certificate: %w", err)
			}
			tcp.SetCertificate(cert)
		}
		go func() {
			log.Info("TCP protocol listening", "addr", cfg.TCP.Addr, "tls", cfg.TCP.TLS)
			if err := tcp.Listen(cfg.TCP.Addr); err != nil {
				errCh <- fmt.Errorf("TCP server failed: %w", err)
			}
		}()
	}

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		log.Error("listener stopped", "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if tcp != nil {
		tcp.Stop()
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	log.Info("logqd exited")
	return nil
}
