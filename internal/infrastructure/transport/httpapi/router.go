package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/domain/cacheitem"
	"cacheview/internal/errs"
	"cacheview/internal/usecase/cachesvc"
)

const maxTTLSeconds = int64(math.MaxInt64 / int64(time.Second))

// PutRequest mirrors the body accepted by POST /cache. Duration is in seconds.
type PutRequest struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Duration int64  `json:"duration"`
}

type ItemResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
	Expiry    string    `json:"expiry"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	svc *cachesvc.Service
	hub *Hub
	now func() time.Time
}

// NewRouter exposes the cache API and the /ws snapshot stream. base carries
// the logger and attributes every request log inherits.
func NewRouter(base context.Context, svc *cachesvc.Service, hub *Hub) http.Handler {
	h := &handler{svc: svc, hub: hub, now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(withLogging(base))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/schema", h.schema)
	r.Get("/ws", h.stream)
	r.Route("/cache", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.put)
		r.Get("/{key}", h.get)
		r.Delete("/{key}", h.delete)
	})
	return r
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	current, err := h.svc.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.itemResponse(item))
}

func (h *handler) put(w http.ResponseWriter, r *http.Request) {
	var req PutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	// Seconds beyond maxTTLSeconds would overflow time.Duration.
	if req.Duration <= 0 || req.Duration > maxTTLSeconds {
		h.fail(w, r, fmt.Errorf("%w: duration must be between 1 and %d seconds", cacheitem.ErrInvalidTTL, maxTTLSeconds))
		return
	}

	item, err := h.svc.Put(r.Context(), cachesvc.PutInput{
		Key:   req.Key,
		Value: req.Value,
		TTL:   time.Duration(req.Duration) * time.Second,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.itemResponse(item))
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) stream(w http.ResponseWriter, r *http.Request) {
	initial, err := h.svc.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.hub.Serve(r.Context(), w, r, initial); err != nil {
		logging.Warn(r.Context(), "snapshot stream rejected", slog.Any("err", errs.Loggable(err)))
	}
}

func (h *handler) schema(w http.ResponseWriter, r *http.Request) {
	payload, err := SnapshotSchema()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(payload)
}

func (h *handler) itemResponse(item cacheitem.Item) ItemResponse {
	entry := item.Entry(h.now())
	return ItemResponse{
		Key:       item.Key,
		Value:     item.Value,
		ExpiresAt: item.ExpiresAt,
		Expiry:    entry.Expiry,
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cacheitem.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "key not found"})
	case errors.Is(err, cacheitem.ErrKeyRequired), errors.Is(err, cacheitem.ErrInvalidTTL):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// withLogging moves the base logger and attributes onto each request
// context and logs the outcome of every request.
func withLogging(base context.Context) func(http.Handler) http.Handler {
	logger := logging.Logger(base)
	attrs := logging.Attrs(base)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.WithLogger(r.Context(), logger)
			ctx = logging.WithAttrs(ctx, attrs...)
			ctx = logging.WithAttrs(ctx,
				slog.String("component", "transport.http"),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			logging.Debug(ctx, "request served",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
