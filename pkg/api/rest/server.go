package rest

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/arvelius/recoengine/pkg/api/rest/middleware"
	"github.com/arvelius/recoengine/pkg/dataset"
	"github.com/arvelius/recoengine/pkg/engine"
	"github.com/arvelius/recoengine/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the REST server configuration.
type Config struct {
	Host        string
	Port        int
	CORSEnabled bool
	CORSOrigins []string
	Auth        middleware.AuthConfig
	RateLimit   middleware.RateLimitConfig
	Cache       CacheConfig
	ScoreMin    float64
	ScoreMax    float64
}

// Server represents the REST API server.
type Server struct {
	config     Config
	handler    *Handler
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new REST API server wired directly to the dataset
// manager (no intermediary RPC hop). Each request builds its own Engine
// scoped to the dataset it names, so no shared Engine is threaded through
// here. logger and metrics may both be nil.
func NewServer(config Config, manager *dataset.Manager, logger engine.Logger, metrics *observability.Metrics) (*Server, error) {
	handler := NewHandler(manager, logger, metrics, config.Cache, config.ScoreMin, config.ScoreMax)

	server := &Server{
		config:  config,
		handler: handler,
		mux:     http.NewServeMux(),
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      server.withMiddleware(server.mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/v1/health", s.handler.HealthCheck)

	s.mux.HandleFunc("/v1/datasets", s.routeDatasets)
	s.mux.HandleFunc("/v1/datasets/", s.routeDatasetsWithPath)

	s.mux.HandleFunc("/docs", ServeSwaggerUI)
	s.mux.HandleFunc("/docs/openapi.yaml", ServeDocs)

	s.mux.Handle("/metrics", promhttp.Handler())
}

// routeDatasets handles /v1/datasets (list/create).
func (s *Server) routeDatasets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handler.ListDatasets(w, r)
	case http.MethodPost:
		s.handler.CreateDataset(w, r)
	default:
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// routeDatasetsWithPath dispatches /v1/datasets/{name}[/ratings|/predict/*].
func (s *Server) routeDatasetsWithPath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/datasets/")

	switch {
	case strings.HasSuffix(path, "/ratings"):
		switch r.Method {
		case http.MethodPost:
			s.handler.InsertRating(w, r)
		case http.MethodPut:
			s.handler.UpdateRating(w, r)
		case http.MethodDelete:
			s.handler.RemoveRating(w, r)
		default:
			writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case strings.HasSuffix(path, "/predict/user-based"):
		s.handler.PredictUserBased(w, r)
	case strings.HasSuffix(path, "/predict/item-based"):
		s.handler.PredictItemBased(w, r)
	case strings.HasSuffix(path, "/predict/slope-one"):
		s.handler.PredictSlopeOne(w, r)
	default:
		if r.Method == http.MethodDelete {
			s.handler.DeleteDataset(w, r)
			return
		}
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// withMiddleware wraps the handler with all middleware.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	// Each wrapper applied here encloses the previous ones, so the last
	// one applied is the outermost and runs first on a request.

	// 1. Logging middleware (innermost)
	handler = loggingMiddleware(handler)

	// 2. CORS middleware
	if s.config.CORSEnabled {
		handler = corsMiddleware(s.config.CORSOrigins)(handler)
	}

	// 3. Rate limiting
	rateLimiter := middleware.NewRateLimiter(s.config.RateLimit)
	handler = middleware.RateLimitMiddleware(rateLimiter)(handler)

	// 4. Authentication (outermost, runs first)
	handler = middleware.AuthMiddleware(s.config.Auth)(handler)

	return handler
}

// Start starts the REST API server.
func (s *Server) Start() error {
	log.Printf("Starting REST API server on %s:%d", s.config.Host, s.config.Port)
	log.Printf("API Documentation available at http://%s:%d/docs", s.config.Host, s.config.Port)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Println("Shutting down REST API server...")
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs all HTTP requests.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, wrapped.statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				allowed = true
				origin = "*"
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
