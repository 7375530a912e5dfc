// Package api exposes redbiom's command surface over HTTP: a gorilla/mux
// router mirroring the cobra command groups in internal/cli, grounded on
// the teacher's internal/api/server.go (mux.Router, CORS/logging/json
// middleware, graceful Shutdown).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nishad/redbiom/internal/app"
	"github.com/nishad/redbiom/internal/config"
	"github.com/nishad/redbiom/internal/xlog"
)

// Server is the HTTP API server. Unlike a CLI invocation, which opens
// and closes an App once per process, the Server holds its App open for
// its entire lifetime.
type Server struct {
	router *mux.Router
	server *http.Server
	app    *app.App
	log    *xlog.Logger
}

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	ConfigPath string
	EnableCORS bool
}

// NewServer creates a new API server instance, opening its own App on
// top of cfg.ConfigPath, the way the teacher's NewServer opened its own
// *database.DB rather than reusing a caller-supplied connection.
func NewServer(cfg *Config, log *xlog.Logger) (*Server, error) {
	if log == nil {
		log = xlog.Default()
	}

	path := cfg.ConfigPath
	if path == "" {
		path = config.GetConfigPath()
	}
	appCfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a, err := app.NewApp(appCfg, log)
	if err != nil {
		return nil, fmt.Errorf("open app: %w", err)
	}

	s := &Server{
		router: mux.NewRouter(),
		app:    a,
		log:    log,
	}
	s.setupRoutes()

	if cfg.EnableCORS {
		s.router.Use(corsMiddleware)
	}
	s.router.Use(s.loggingMiddleware)
	s.router.Use(jsonMiddleware)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes registers the REST surface: read-only endpoints mirror
// the search-*/fetch-*/summarize-* command groups; mutating endpoints
// mirror create-context/load-sample-*, gated by requireConfirmation (the
// X-Redbiom-Confirm header). The CLI registers a --yes flag, but no CLI
// command reads it.
func (s *Server) setupRoutes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/contexts", s.handleListContexts).Methods("GET")
	v1.HandleFunc("/contexts", s.handleCreateContext).Methods("POST")

	v1.HandleFunc("/search/features", s.handleSearchFeatures).Methods("GET")
	v1.HandleFunc("/search/samples", s.handleSearchSamples).Methods("GET")
	v1.HandleFunc("/search/metadata", s.handleSearchMetadata).Methods("GET")

	v1.HandleFunc("/fetch/samples", s.handleFetchSamples).Methods("POST")
	v1.HandleFunc("/fetch/features", s.handleFetchFeatures).Methods("POST")

	v1.HandleFunc("/summarize/contexts", s.handleSummarizeContexts).Methods("GET")
	v1.HandleFunc("/summarize/metadata", s.handleSummarizeMetadata).Methods("GET")
	v1.HandleFunc("/summarize/taxonomy", s.handleSummarizeTaxonomy).Methods("GET")

	v1.HandleFunc("/select/samples-from-metadata", s.handleSelectSamplesFromMetadata).Methods("POST")

	v1.HandleFunc("/load/sample-data", s.handleLoadSampleData).Methods("POST")
	v1.HandleFunc("/load/sample-metadata", s.handleLoadSampleMetadata).Methods("POST")

	v1.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Infof("starting API server on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes its App.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infof("shutting down API server")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.app.Close()
}

// Middleware

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Redbiom-Confirm")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Infof("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("encode json response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":  true,
		"message": err.Error(),
		"status": status,
	})
}

// requireConfirmation gates a mutating handler behind the
// X-Redbiom-Confirm: yes header, the HTTP counterpart of the CLI's
// --yes flag. It returns false (and has already written the response)
// when confirmation is missing.
func (s *Server) requireConfirmation(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("X-Redbiom-Confirm") == "yes" {
		return true
	}
	s.writeError(w, http.StatusPreconditionRequired, fmt.Errorf("this operation mutates data; retry with header X-Redbiom-Confirm: yes"))
	return false
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "redbiom",
		"description": "sparse sample/feature count-table index and retrieval engine",
		"endpoints": map[string]string{
			"contexts":  "/api/v1/contexts",
			"search":    "/api/v1/search/{features,samples,metadata}",
			"fetch":     "/api/v1/fetch/{samples,features}",
			"summarize": "/api/v1/summarize/{contexts,metadata,taxonomy}",
			"health":    "/api/v1/health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if _, err := s.app.KV.Exists(r.Context(), "__health__"); err != nil {
		health["status"] = "unhealthy"
		health["kv"] = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}
	s.writeJSON(w, http.StatusOK, health)
}
