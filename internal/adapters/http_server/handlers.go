package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"capcorn_sync/internal/app"
	"capcorn_sync/internal/domain"
)

// Runner is the slice of the sync engine the operator surface needs.
type Runner interface {
	RunFull(ctx context.Context) (domain.SyncRunSummary, error)
	RunSingle(ctx context.Context, kind domain.ResourceKind) (int, error)
}

type Handlers struct {
	Q      *app.QueryService
	Runner Runner
	Bridge domain.BridgeClient
	Logs   *RingLog

	// ReadTimeout bounds the read endpoints only; zero means 30s.
	ReadTimeout time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc // non-nil while a full run is active
	probeSF singleflight.Group
}

func (h *Handlers) readTimeout() time.Duration {
	if h.ReadTimeout > 0 {
		return h.ReadTimeout
	}
	return 30 * time.Second
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(h.readTimeout()))
		r.Get("/v1/bridge/health", h.bridgeHealth)
		r.Get("/v1/bridge/stats", h.bridgeStats)
		r.Get("/v1/status", h.status)
		r.Get("/v1/collections/{kind}", h.collection)
		r.Get("/v1/log", h.logLines)
	})

	// No timeout wrapper here: /v1/sync answers 202 immediately, and a
	// synchronous single-kind run holds the request for as long as the
	// sync takes (guest pagination can run for minutes).
	s.mux.Post("/v1/sync", h.startFullSync)
	s.mux.Delete("/v1/sync", h.cancelFullSync)
	s.mux.Post("/v1/sync/{kind}", h.syncOne)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// bridgeHealth probes the bridge. Concurrent dashboard polls collapse
// into one upstream probe.
func (h *Handlers) bridgeHealth(w http.ResponseWriter, r *http.Request) {
	ok, _, _ := h.probeSF.Do("health", func() (any, error) {
		return h.Bridge.Health(r.Context()), nil
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok.(bool)})
}

func (h *Handlers) bridgeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Bridge.Stats(r.Context())
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Bridge Unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// startFullSync launches one full run in the background and answers
// immediately. A second POST while a run is active gets 409.
func (h *Handlers) startFullSync(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		writeProblem(w, http.StatusConflict, "Sync Running", "a full sync is already in progress")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			h.cancel = nil
			h.mu.Unlock()
			cancel()
		}()
		if _, err := h.Runner.RunFull(ctx); err != nil {
			log.Error().Err(err).Msg("full sync failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"state": "started"})
}

func (h *Handlers) cancelFullSync(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel == nil {
		writeProblem(w, http.StatusConflict, "No Sync Running", "there is no active full sync")
		return
	}
	cancel()
	writeJSON(w, http.StatusOK, map[string]string{"state": "cancelling"})
}

func (h *Handlers) syncOne(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Unknown Kind", err.Error())
		return
	}

	count, err := h.Runner.RunSingle(r.Context(), kind)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "count": count})
	case errors.Is(err, domain.ErrSyncInProgress):
		writeProblem(w, http.StatusConflict, "Sync Running", err.Error())
	default:
		writeProblem(w, http.StatusBadGateway, "Sync Failed", err.Error())
	}
}

func (h *Handlers) status(w http.ResponseWriter, r *http.Request) {
	ov, err := h.Q.Overview(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Status Unavailable", err.Error())
		return
	}
	h.mu.Lock()
	running := h.cancel != nil
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, struct {
		app.StatusOverview
		Running bool `json:"running"`
	}{ov, running})
}

func (h *Handlers) collection(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Unknown Kind", err.Error())
		return
	}
	limit := app.DefaultCollectionLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 1000 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 1000")
			return
		}
		limit = l
	}
	docs, err := h.Q.Collection(r.Context(), kind, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Read Failed", err.Error())
		return
	}
	if docs == nil {
		docs = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "count": len(docs), "items": docs})
}

func (h *Handlers) logLines(w http.ResponseWriter, r *http.Request) {
	lines := []string{}
	if h.Logs != nil {
		lines = h.Logs.Lines()
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}
