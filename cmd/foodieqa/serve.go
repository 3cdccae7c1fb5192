package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"foodieqa/internal/cache"
	"foodieqa/internal/config"
	"foodieqa/internal/dataset"
	"foodieqa/internal/prompt"
	"foodieqa/internal/repository"
	"foodieqa/internal/service"
	"foodieqa/internal/transport/rest"
	"foodieqa/internal/transport/ws"
)

const shutdownTimeout = 30 * time.Second

var servePort string

// serveCmd runs the report API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run and report API",
	Long: `Starts the HTTP API. Reviewers log in, start runs over the loaded question
set, browse past runs and follow a running evaluation on a WebSocket.

Runs are stored in MongoDB and live progress in Redis when they are
reachable; otherwise both are kept in memory for the life of the process.

Endpoints:
  POST   /v1/auth/login
  GET    /v1/variants
  GET    /v1/runs
  POST   /v1/runs
  GET    /v1/runs/{runId}
  DELETE /v1/runs/{runId}
  GET    /v1/runs/{runId}/answers
  GET    /v1/runs/{runId}/progress
  WS     /v1/ws/runs/{runId}?token=`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Listen port (default: server.port or PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(func(cfg *config.Config) {
		if servePort != "" {
			cfg.Server.Port = servePort
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.Config

	var runs repository.RunRepo
	if err := a.ConnectMongo(ctx); err != nil {
		logger.Warn("MongoDB unavailable; keeping runs in memory", zap.Error(err))
		runs = repository.NewMemoryRunRepo()
	} else {
		runs = repository.NewRunRepo(a.DB)
		if err := runs.EnsureIndexes(ctx); err != nil {
			logger.Warn("Failed to create run indexes", zap.Error(err))
		}
	}

	var progress cache.ProgressCache
	if err := a.ConnectRedis(ctx); err != nil {
		logger.Warn("Redis unavailable; keeping progress in memory", zap.Error(err))
	}
	if a.Redis != nil {
		progress = cache.NewProgressCache(a.Redis)
	} else {
		progress = cache.NewMemoryProgressCache()
	}

	questions, categories, err := a.LoadQuestions()
	if err != nil {
		return err
	}
	res, err := a.Resolver(ctx)
	if err != nil {
		return err
	}
	svc, err := service.NewModelService(ctx, &cfg.AI, cfg.AI.Models.Answer)
	if err != nil {
		return err
	}
	if !cfg.AI.IsEnabled() {
		logger.Warn("GEMINI_API_KEY not set; runs use the mock model")
	}

	wsHub := ws.NewHub(logger)
	defer wsHub.Stop()

	evaluator := service.NewEvaluatorService(svc, prompt.Default(), res, dataset.ImageDir(cfg.Data.DataDir), logger,
		service.WithRunRepo(runs),
		service.WithProgressCache(progress),
		service.WithBroadcaster(wsHub))
	manager := service.NewRunManager(evaluator, runs, questions, categories, cfg.Run, cfg.Data.OutputDir, logger)
	defer manager.Shutdown()

	if cfg.Server.JWTSecret == "" {
		cfg.Server.JWTSecret = uuid.New().String()
		logger.Warn("JWT_SECRET not set; tokens will not survive a restart")
	}
	authSvc := service.NewAuthService(cfg.Server)

	router := rest.NewRouter(&rest.Container{
		AuthService: authSvc,
		RunManager:  manager,
		Progress:    progress,
		WSHub:       wsHub,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("addr", srv.Addr),
			zap.Int("questions", len(questions)),
			zap.String("model", svc.Name()),
			zap.String("reviewer", cfg.Server.Username))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server exited")
	return nil
}
