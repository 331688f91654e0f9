package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"upqueue/internal/blobstore"
	"upqueue/internal/config"
	"upqueue/internal/handler"
	"upqueue/internal/logging"
	"upqueue/internal/processor"
	"upqueue/internal/session"
	"upqueue/internal/storage"
	"upqueue/internal/websocket"
)

const (
	sessionTTL     = 72 * time.Hour
	updateInterval = 30 * time.Second
	devUser        = "dev"
)

func main() {
	config.LoadDotEnv(".env")
	cfg := config.LoadServerConfig()
	log := logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := storage.New(cfg.DataDir)
	hub := websocket.NewHub(log)
	go hub.Run(ctx)
	go hub.StartTicker(ctx, updateInterval)

	deps := handler.Deps{
		Store:          store,
		Hub:            hub,
		Sessions:       session.New(cfg.JWTSecret, sessionTTL, log),
		MaxUploadCount: cfg.MaxUploadCount,
		Logger:         log,
	}
	if cfg.S3.Enabled() {
		s3, err := blobstore.NewS3(ctx, cfg.S3)
		if err != nil {
			log.Error("Failed to set up S3", "error", err)
			os.Exit(1)
		}
		deps.Blobs = s3
		log.Info("Presigning against S3", "bucket", cfg.S3.Bucket, "endpoint", cfg.S3.Endpoint)
	} else {
		mem := blobstore.NewMemory(cfg.PublicURL)
		deps.Blobs = mem
		deps.Memory = mem
	}

	// a session for local CLI runs, the client never logs in on its own
	if token, err := deps.Sessions.Token(devUser); err == nil {
		log.Info("Dev session", "user", devUser, "token", token)
	}

	processor.New(store, hub, deps.Blobs, cfg.ProcessDelay, cfg.OutdatedAfter, log).Start(ctx)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: handler.NewRouter(deps)}
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
		close(done)
	}()

	slog.Info("Server starting", "port", cfg.Port, "public_url", cfg.PublicURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("Server exited")
}
