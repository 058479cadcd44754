package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"robotics-catalog/internal/config"
	"robotics-catalog/internal/database"
	handler "robotics-catalog/internal/handler/http"
	"robotics-catalog/internal/logger"
	"robotics-catalog/internal/media"
	"robotics-catalog/internal/repository"
	"robotics-catalog/internal/service"
	"robotics-catalog/internal/tracer"
	"robotics-catalog/internal/version"
)

func main() {
	if err := run(); err != nil {
		logger.Instance().Error("Server failed", logger.Err(err))
		os.Exit(1)
	}
}

// run owns every resource so its deferred cleanups complete before main
// decides the exit code.
func run() error {
	globalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Instance()
	cfg := config.Instance()

	log.Info(cfg.AppName,
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.String("buildTime", version.BuildTime),
	)

	// Initialize telemetry (OpenTelemetry + Pyroscope)
	shutdownTracer, err := tracer.Instance(globalCtx, cfg)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer shutdownTracer()

	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		return fmt.Errorf("create upload directory %s: %w", cfg.UploadDir, err)
	}

	// Connect to MongoDB
	db, err := database.Instance(globalCtx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			log.Error("Failed to disconnect MongoDB", logger.Err(err))
		}
	}()

	store, err := media.New(globalCtx, cfg)
	if err != nil {
		return fmt.Errorf("initialize media store %s: %w", cfg.MediaDriver, err)
	}

	// Wiring
	productRepo := repository.NewProductRepository(db.Database)
	if err := productRepo.EnsureIndexes(globalCtx); err != nil {
		log.Warn("Failed to ensure indexes", logger.Err(err))
	}
	productService := service.NewProductService(productRepo, store, service.WithUploadConcurrency(cfg.UploadConcurrency))
	productHandler := handler.NewProductHandler(productService, handler.Options{
		UploadDir:      cfg.UploadDir,
		MaxUploadFiles: cfg.MaxUploadFiles,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Development:    cfg.IsDevelopment(),
	})

	// Wiring health service
	healthService := service.NewHealthService(db.Client)
	healthHandler := handler.NewHealthHandler(healthService)

	// HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           handler.NewRouter(cfg.AppName, cfg.IsDevelopment(), productHandler, healthHandler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
	}

	log.Info("HTTP server running",
		slog.String("addr", server.Addr),
		slog.String("api", "http://localhost:"+cfg.AppPort+"/api/products"),
		slog.String("upload_dir", cfg.UploadDir),
	)
	return serve(globalCtx, server, cfg.ShutdownTimeout)
}

// serve blocks until the server fails or ctx is done, then drains
// in-flight requests for at most shutdownTimeout.
func serve(ctx context.Context, server *http.Server, shutdownTimeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", server.Addr, err)
		}
		return nil
	case <-ctx.Done():
		logger.Info(ctx, "Shutting down", slog.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Graceful shutdown failed", logger.Err(err))
		}
		return nil
	}
}
