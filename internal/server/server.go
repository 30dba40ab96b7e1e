// Package server exposes the provider over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/bryan-buckman/binsearch/internal/config"
	"github.com/bryan-buckman/binsearch/internal/httpx"
	"github.com/bryan-buckman/binsearch/internal/model"
	"github.com/bryan-buckman/binsearch/internal/opml"
	"github.com/bryan-buckman/binsearch/internal/rss"
)

// DefaultCacheLimit caps /api/cache when no limit is given.
const DefaultCacheLimit = 100

type Searcher interface {
	Search(ctx context.Context, modes []model.ModeQueries) []model.SearchResult
}

type Refresher interface {
	Update(ctx context.Context) rss.RefreshStats
	LastUpdate() time.Time
}

type CacheReader interface {
	GetCacheItems(provider string, limit int) ([]model.CacheItem, error)
	DatabaseType() string
}

// Server is the main HTTP server.
type Server struct {
	provider config.ProviderConfig
	search   Searcher
	updater  Refresher
	store    CacheReader
	log      logrus.FieldLogger
	router   chi.Router
	http     *http.Server
}

// New creates a new server.
func New(provider config.ProviderConfig, search Searcher, updater Refresher, store CacheReader, log logrus.FieldLogger) *Server {
	s := &Server{
		provider: provider,
		search:   search,
		updater:  updater,
		store:    store,
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/cache", s.handleCache)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/export-opml", s.handleExportOPML)
	})

	s.router = r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.WithField("addr", addr).Info("Server starting")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// --- API Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":   "ok",
		"database": s.store.DatabaseType(),
	}
	if last := s.updater.LastUpdate(); !last.IsZero() {
		resp["last_update"] = last.UTC()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseMode(raw string) (model.Mode, error) {
	switch strings.ToLower(raw) {
	case "", "episode":
		return model.ModeEpisode, nil
	case "season":
		return model.ModeSeason, nil
	case "rss":
		return model.ModeRSS, nil
	}
	return "", fmt.Errorf("unknown mode %q", raw)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var queries []string
	for _, q := range query["q"] {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		http.Error(w, "Missing q parameter", http.StatusBadRequest)
		return
	}
	mode, err := parseMode(query.Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := s.search.Search(r.Context(), []model.ModeQueries{{Mode: mode, Queries: queries}})
	if results == nil {
		results = []model.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mode":    mode,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	limit := DefaultCacheLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	items, err := s.store.GetCacheItems(s.provider.Name, limit)
	if err != nil {
		s.log.WithError(err).Error("Unable to read cache")
		http.Error(w, "Failed to read cache", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []model.CacheItem{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider": s.provider.Name,
		"count":    len(items),
		"items":    items,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	stats := s.updater.Update(ctx)
	if stats.Err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status": "error",
			"error":  stats.Err.Error(),
			"stats":  stats,
		})
		return
	}

	status := "ok"
	if stats.Skipped {
		status = "skipped"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      status,
		"stats":       stats,
		"last_update": s.updater.LastUpdate().UTC(),
	})
}

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	feeds := make([]opml.Feed, 0, len(s.provider.Categories))
	for _, category := range s.provider.Categories {
		link, err := httpx.BuildURL(s.provider.RSSURL(), url.Values{
			"max": {strconv.Itoa(s.provider.RSSMaxResults)},
			"g":   {category},
		})
		if err != nil {
			http.Error(w, "Failed to build feed URL", http.StatusInternalServerError)
			return
		}
		feeds = append(feeds, opml.Feed{Title: category, URL: link})
	}

	data, err := opml.Export(s.provider.Name+" feeds", s.provider.Name, feeds, time.Now())
	if err != nil {
		http.Error(w, "Failed to export", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", "attachment; filename="+s.provider.Name+"-feeds.opml")
	w.Write(data)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("HTTP request")
		}()
		next.ServeHTTP(ww, r)
	})
}
