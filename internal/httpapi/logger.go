package httpapi

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func NewLogger(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(parseLevel(level))

	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "console-go").Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// accessFields is filled in by inner middleware and read back by accessLog once the
// request is done.
type accessFields struct {
	sessionID string
}

type accessFieldsKey struct{}

func noteSession(ctx context.Context, id string) {
	if f, ok := ctx.Value(accessFieldsKey{}).(*accessFields); ok {
		f.sessionID = id
	}
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		fields := &accessFields{}

		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), accessFieldsKey{}, fields)))

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				pattern = p
			}
		}
		elapsed := time.Since(start)
		h.metrics.ObserveHTTPRequest(r.Method, pattern, ww.Status(), elapsed)

		ev := h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", pattern).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", elapsed.Milliseconds())
		if fields.sessionID != "" {
			ev = ev.Str("session_id", fields.sessionID)
		}
		ev.Msg("http_request")
	})
}

// requestLog tags log lines with the request id and, behind requireSession, the
// console session id.
func (h *Handler) requestLog(r *http.Request) *zerolog.Logger {
	lc := h.log.With().Str("request_id", middleware.GetReqID(r.Context()))
	if rec, ok := sessionFrom(r.Context()); ok {
		lc = lc.Str("session_id", rec.ID)
	}
	l := lc.Logger()
	return &l
}
