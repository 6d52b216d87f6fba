// Package api exposes the inventory scrape as an HTTP function.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"sjsage522/inventoryscraper/config"
	"sjsage522/inventoryscraper/internal/inventory"
	"sjsage522/inventoryscraper/logger"
	"sjsage522/inventoryscraper/services/cache"
)

// ScrapeFunc runs one scrape
type ScrapeFunc func(ctx context.Context) (*inventory.Result, error)

// Response is the success envelope
type Response struct {
	OK         bool                `json:"ok"`
	Success    bool                `json:"success"`
	Count      int                 `json:"count"`
	Vehicles   []inventory.Vehicle `json:"vehicles"`
	Timestamp  string              `json:"timestamp"`
	Pages      int                 `json:"pages"`
	Duplicates int                 `json:"duplicates"`
}

// ErrorResponse is the failure envelope
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

type handler struct {
	scrape ScrapeFunc
	log    *logger.Logger
}

// NewHandler returns an http.Handler that scrapes on GET and POST
func NewHandler(scrape ScrapeFunc) http.Handler {
	return &handler{scrape: scrape, log: logger.ForHandler()}
}

// Handler is the function entry point. It scrapes the dealer named by the
// environment configuration.
func Handler(w http.ResponseWriter, r *http.Request) {
	NewHandler(scrapeFromEnv).ServeHTTP(w, r)
}

func scrapeFromEnv(ctx context.Context) (*inventory.Result, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var cacheSvc cache.CacheService
	if cfg.MemcacheAddr != "" {
		cacheSvc = cache.NewMemcacheService(cfg.MemcacheAddr)
	}

	s, err := inventory.NewFromConfig(cfg, cacheSvc)
	if err != nil {
		return nil, err
	}
	return s.Scrape(ctx)
}

func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Content-Type", "application/json")
}

func (h *handler) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to write response")
	}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet, http.MethodPost:
	default:
		h.jsonResponse(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			stack := string(debug.Stack())
			h.log.Error().Interface("panic", rec).Str("stack", stack).Msg("Scrape panicked")
			h.jsonResponse(w, http.StatusInternalServerError, ErrorResponse{
				Error:     "Scraper crashed",
				Details:   fmt.Sprint(rec),
				Traceback: stack,
			})
		}
	}()

	res, err := h.scrape(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Scrape failed")
		h.jsonResponse(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Scrape failed",
			Details: err.Error(),
		})
		return
	}

	vehicles := res.Vehicles
	if vehicles == nil {
		vehicles = []inventory.Vehicle{}
	}

	h.log.Info().Int("vehicles", len(vehicles)).Str("method", r.Method).Msg("Scrape served")
	h.jsonResponse(w, http.StatusOK, Response{
		OK:         true,
		Success:    true,
		Count:      len(vehicles),
		Vehicles:   vehicles,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Pages:      res.Pages,
		Duplicates: res.Duplicates,
	})
}
