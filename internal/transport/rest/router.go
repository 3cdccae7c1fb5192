package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"foodieqa/internal/cache"
	"foodieqa/internal/service"
	"foodieqa/internal/transport/rest/handler"
	"foodieqa/internal/transport/rest/middleware"
	"foodieqa/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService *service.AuthService
	RunManager  *service.RunManager
	Progress    cache.ProgressCache
	WSHub       *ws.Hub
	Logger      *zap.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	runHandler := handler.NewRunHandler(c.RunManager, c.Progress)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.Logger)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/runs/{runId}", wsHandler.RunWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Reviewer routes (require auth)
	reviewerRoutes := v1.NewRoute().Subrouter()
	reviewerRoutes.Use(authMW.RequireReviewer)

	reviewerRoutes.HandleFunc("/variants", runHandler.Variants).Methods("GET", "OPTIONS")
	reviewerRoutes.HandleFunc("/runs", runHandler.List).Methods("GET", "OPTIONS")
	reviewerRoutes.HandleFunc("/runs", runHandler.Start).Methods("POST", "OPTIONS")
	reviewerRoutes.HandleFunc("/runs/{runId}", runHandler.Get).Methods("GET", "OPTIONS")
	reviewerRoutes.HandleFunc("/runs/{runId}", runHandler.Cancel).Methods("DELETE", "OPTIONS")
	reviewerRoutes.HandleFunc("/runs/{runId}/answers", runHandler.Answers).Methods("GET", "OPTIONS")
	reviewerRoutes.HandleFunc("/runs/{runId}/progress", runHandler.Progress).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, DELETE, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
