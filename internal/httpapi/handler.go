package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"nzyme_console/console-go/internal/db"
	"nzyme_console/console-go/internal/metrics"
	"nzyme_console/console-go/internal/routes"
	"nzyme_console/console-go/internal/session"
	"nzyme_console/console-go/internal/sweeper"
	"nzyme_console/console-go/internal/tapselect"
	"nzyme_console/console-go/internal/upstream"
	"nzyme_console/console-go/internal/viewstore"
)

type Options struct {
	// Pool is only used for readiness; sessions go through Sessions.
	Pool           *db.Pool
	Sessions       session.Store
	Upstream       session.API
	Routes         routes.Registry
	Metrics        *metrics.Metrics
	CookieName     string
	SecureCookie   bool
	RequestTimeout time.Duration
	Now            func() time.Time
}

type Handler struct {
	log      zerolog.Logger
	pool     *db.Pool
	sessions session.Store
	api      session.API
	auth     *session.Service
	routes   routes.Registry
	metrics  *metrics.Metrics

	cookieName     string
	secureCookie   bool
	requestTimeout time.Duration
	now            func() time.Time

	taps    *viewstore.Store[*tapselect.Selector]
	viewers *viewstore.Store[*trilaterationView]
}

func NewHandler(log zerolog.Logger, opts Options) *Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}
	cookie := opts.CookieName
	if cookie == "" {
		cookie = "console_session"
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	h := &Handler{
		log:            log,
		pool:           opts.Pool,
		sessions:       sessions,
		api:            opts.Upstream,
		routes:         opts.Routes,
		metrics:        opts.Metrics,
		cookieName:     cookie,
		secureCookie:   opts.SecureCookie,
		requestTimeout: timeout,
		now:            now,
		taps:           viewstore.New[*tapselect.Selector](now),
		viewers:        viewstore.New[*trilaterationView](now),
	}
	if opts.Upstream != nil {
		h.auth = session.NewService(opts.Upstream, log)
	}
	return h
}

// ViewState returns the in-memory per-session state for the sweeper.
func (h *Handler) ViewState() []sweeper.Views {
	return []sweeper.Views{h.taps, h.viewers}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.requestTimeout))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/session", func(r chi.Router) {
				r.Post("/", h.handleCreateSession)

				r.Group(func(r chi.Router) {
					r.Use(h.requireSession(true))
					r.Get("/", h.handleGetSession)
					r.Delete("/", h.handleDeleteSession)
					r.Route("/mfa", func(r chi.Router) {
						r.Get("/setup", h.handleInitializeMFASetup)
						r.Post("/setup/complete", h.handleFinishMFASetup)
						r.Post("/verify", h.handleVerifyMFA)
						r.Post("/recovery", h.handleMFARecovery)
					})
				})
			})

			r.Get("/routes/resolve", h.handleResolveRoute)

			r.Group(func(r chi.Router) {
				r.Use(h.requireSession(false))

				r.Route("/taps", func(r chi.Router) {
					r.Get("/", h.handleGetTaps)
					r.Put("/", h.handlePutTaps)
				})

				r.Route("/dns", func(r chi.Router) {
					r.Get("/logs", h.handleDNSLogs)
					r.Get("/entropy", h.handleDNSEntropy)
					r.Get("/transactions/{transactionId}/responses", h.handleDNSResponses)
				})

				r.Route("/trilateration/views", func(r chi.Router) {
					r.Post("/", h.handleCreateTrilaterationView)
					r.Route("/{viewId}", func(r chi.Router) {
						r.Get("/", h.handleGetTrilaterationView)
						r.Post("/selector/toggle", h.handleToggleFloorSelector)
						r.Put("/selector/page", h.handleSetFloorPage)
						r.Post("/floors/{floorId}/select", h.handleSelectFloor)
					})
				})
			})
		})
	})

	return r
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

// writeUpstreamError maps a failed platform call to a console response.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error, what string) {
	var se *upstream.StatusError
	switch {
	case errors.As(err, &se) && se.Status == http.StatusUnauthorized:
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "upstream session is no longer valid", nil)
	case errors.As(err, &se) && se.Status == http.StatusForbidden:
		h.writeError(w, http.StatusForbidden, "forbidden", "not allowed to "+what, nil)
	case errors.As(err, &se) && se.Status == http.StatusNotFound:
		h.writeError(w, http.StatusNotFound, "not_found", what+": not found", nil)
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusGatewayTimeout, "upstream_timeout", "upstream did not answer in time", nil)
	default:
		h.requestLog(r).Error().Err(err).Msg(what + " failed")
		h.writeError(w, http.StatusBadGateway, "upstream_error", "failed to "+what, nil)
	}
}

func (h *Handler) ensureUpstream(w http.ResponseWriter) bool {
	if h.api == nil {
		h.writeError(w, http.StatusServiceUnavailable, "upstream_unavailable", "upstream API not configured", nil)
		return false
	}
	return true
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.api == nil {
		h.writeError(w, http.StatusServiceUnavailable, "upstream_unavailable", "upstream API not configured", nil)
		return
	}

	if h.pool == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "session_store": "memory"})
		return
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "session_store": "postgres"})
}
