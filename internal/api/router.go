// Package api exposes the targeting service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-targeted-ads/ads"
	"github.com/goliatone/go-targeted-ads/internal/config"
	"github.com/goliatone/go-targeted-ads/internal/targeting"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	maxBodyBytes  = 1 << 20
	healthTimeout = 2 * time.Second
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the router. Gatherer may be nil to disable /metrics.
type Options struct {
	Querier  targeting.Querier
	Health   Pinger
	Gatherer prometheus.Gatherer
	MaxLimit int
	Logger   zerolog.Logger
}

type handlers struct {
	querier  targeting.Querier
	health   Pinger
	maxLimit int
}

// NewRouter builds the HTTP surface: GET /health, POST /ads, POST /ad and
// GET /metrics.
func NewRouter(opts Options) http.Handler {
	h := &handlers{
		querier:  opts.Querier,
		health:   opts.Health,
		maxLimit: opts.MaxLimit,
	}
	if h.maxLimit <= 0 {
		h.maxLimit = config.DefaultMaxLimit
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger(opts.Logger.With().Str("component", "http").Logger()))

	r.Get("/health", h.handleHealth)
	r.Post("/ads", h.handleRead)
	r.Post("/ad", h.handleInsert)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// NewServer returns an http.Server for cfg serving handler.
func NewServer(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *handlers) handleRead(w http.ResponseWriter, r *http.Request) {
	var req ReadRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validate.Var(req.Limit, fmt.Sprintf("max=%d", h.maxLimit)); err != nil {
		RespondError(w, http.StatusBadRequest, fmt.Sprintf("limit must not exceed %d", h.maxLimit))
		return
	}
	if req.Limit == 0 {
		RespondJSON(w, http.StatusOK, ItemsResponse{Items: []ads.PartialAdvertisement{}})
		return
	}

	cond, page, err := req.toQuery()
	if err != nil {
		respondErr(w, r, err)
		return
	}
	items, err := h.querier.QueryPartial(r.Context(), cond, page)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, ItemsResponse{Items: items})
}

func (h *handlers) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req InsertRequest
	if !decode(w, r, &req) {
		return
	}
	ad, err := req.toAdvertisement()
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := h.querier.Insert(r.Context(), ad); err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, StatusResponse{Status: "created"})
}

// decode reads and validates a JSON body, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		RespondError(w, http.StatusBadRequest, errors.Wrap(err, "decode request").Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
