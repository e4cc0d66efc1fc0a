package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"nzyme_console/console-go/internal/session"
	"nzyme_console/console-go/internal/upstream"
)

type sessionKey struct{}

func withSession(ctx context.Context, rec session.Record) context.Context {
	return context.WithValue(ctx, sessionKey{}, rec)
}

func sessionFrom(ctx context.Context) (session.Record, bool) {
	rec, ok := ctx.Value(sessionKey{}).(session.Record)
	return rec, ok
}

// requireSession resolves the console session cookie and attaches the upstream token to
// the request context. Sessions still waiting for their second factor only pass when
// allowMFAPending is set.
func (h *Handler) requireSession(allowMFAPending bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(h.cookieName)
			if err != nil || strings.TrimSpace(c.Value) == "" {
				h.writeError(w, http.StatusUnauthorized, "unauthenticated", "no console session", nil)
				return
			}

			if _, err := uuid.Parse(c.Value); err != nil {
				h.clearCookie(w)
				h.writeError(w, http.StatusUnauthorized, "unauthenticated", "console session expired", nil)
				return
			}

			rec, err := h.sessions.Get(r.Context(), c.Value)
			if err != nil {
				if errors.Is(err, session.ErrNotFound) {
					h.clearCookie(w)
					h.writeError(w, http.StatusUnauthorized, "unauthenticated", "console session expired", nil)
					return
				}
				h.requestLog(r).Error().Err(err).Msg("load console session failed")
				h.writeError(w, http.StatusInternalServerError, "session_store_error", "failed to load session", nil)
				return
			}

			if rec.MFAPending && !allowMFAPending {
				h.writeError(w, http.StatusForbidden, "mfa_required", "second factor required", nil)
				return
			}

			noteSession(r.Context(), rec.ID)
			now := h.now()
			if err := h.sessions.Touch(r.Context(), rec.ID, now); err != nil {
				h.requestLog(r).Warn().Err(err).Msg("touch console session failed")
			} else {
				rec.LastSeenAt = now
			}

			ctx := upstream.WithToken(withSession(r.Context(), rec), rec.Token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *Handler) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Username string        `json:"username"`
	Info     *session.Info `json:"info,omitempty"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if !h.ensureUpstream(w) {
		return
	}

	var req loginRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "username and password are required", nil)
		return
	}

	token, err := h.auth.CreateSession(r.Context(), req.Username, req.Password)
	if err != nil {
		if session.WrongCredentials(err) {
			h.writeError(w, http.StatusUnauthorized, "wrong_credentials", session.MessageWrongCredentials, nil)
			return
		}
		h.writeError(w, http.StatusBadGateway, "login_failed", session.MessageLoginFailed, nil)
		return
	}

	now := h.now()
	rec := session.Record{
		ID:         uuid.NewString(),
		Token:      token,
		Username:   req.Username,
		MFAPending: true,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	resp := sessionResponse{Username: req.Username}
	info, err := h.auth.FetchSessionInfo(upstream.WithToken(r.Context(), token))
	if err != nil {
		h.requestLog(r).Warn().Err(err).Msg("fetch session info after login failed")
	} else {
		rec.MFAPending = !info.MFAValid
		resp.Info = &info
	}

	if err := h.sessions.Put(r.Context(), rec); err != nil {
		h.requestLog(r).Error().Err(err).Msg("store console session failed")
		h.writeError(w, http.StatusInternalServerError, "session_store_error", "failed to store session", nil)
		return
	}

	h.setCookie(w, rec.ID)
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if !h.ensureUpstream(w) {
		return
	}
	rec, _ := sessionFrom(r.Context())

	info, err := h.auth.FetchSessionInfo(r.Context())
	if err != nil {
		if upstream.IsStatus(err, http.StatusUnauthorized) {
			h.dropSession(r.Context(), rec.ID)
			h.clearCookie(w)
		}
		h.writeUpstreamError(w, r, err, "fetch session info")
		return
	}

	if pending := !info.MFAValid; pending != rec.MFAPending {
		if err := h.sessions.SetMFAPending(r.Context(), rec.ID, pending); err != nil {
			h.requestLog(r).Warn().Err(err).Msg("update console session failed")
		}
	}

	h.writeJSON(w, http.StatusOK, sessionResponse{Username: rec.Username, Info: &info})
}

// handleDeleteSession always succeeds: the console session is dropped whether or not
// the platform acknowledges the logout.
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	rec, _ := sessionFrom(r.Context())
	if h.auth != nil {
		h.auth.DeleteSession(r.Context())
	}
	h.dropSession(r.Context(), rec.ID)
	h.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dropSession(ctx context.Context, id string) {
	if err := h.sessions.Delete(ctx, id); err != nil {
		h.log.Warn().Err(err).Msg("delete console session failed")
	}
	h.taps.DropSession(id)
	h.viewers.DropSession(id)
}

func (h *Handler) handleInitializeMFASetup(w http.ResponseWriter, r *http.Request) {
	if !h.ensureUpstream(w) {
		return
	}
	setup, err := h.auth.InitializeMFASetup(r.Context())
	if err != nil {
		h.writeUpstreamError(w, r, err, "initialize MFA setup")
		return
	}
	h.writeJSON(w, http.StatusOK, setup)
}

func (h *Handler) handleFinishMFASetup(w http.ResponseWriter, r *http.Request) {
	if !h.ensureUpstream(w) {
		return
	}
	if err := h.auth.FinishMFASetup(r.Context()); err != nil {
		h.writeUpstreamError(w, r, err, "finish MFA setup")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleVerifyMFA(w http.ResponseWriter, r *http.Request) {
	h.completeMFA(w, r, h.auth.VerifyMFA)
}

func (h *Handler) handleMFARecovery(w http.ResponseWriter, r *http.Request) {
	h.completeMFA(w, r, h.auth.UseMFARecoveryCode)
}

// completeMFA submits a TOTP or recovery code and clears the pending flag on success.
func (h *Handler) completeMFA(w http.ResponseWriter, r *http.Request, submit func(context.Context, string) error) {
	if !h.ensureUpstream(w) {
		return
	}
	var req mfaCodeRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "code is required", nil)
		return
	}

	if err := submit(r.Context(), code); err != nil {
		if upstream.IsStatus(err, http.StatusUnauthorized) || upstream.IsStatus(err, http.StatusForbidden) {
			h.writeError(w, http.StatusUnauthorized, "invalid_code", "invalid code", nil)
			return
		}
		h.writeUpstreamError(w, r, err, "verify second factor")
		return
	}

	rec, _ := sessionFrom(r.Context())
	if err := h.sessions.SetMFAPending(r.Context(), rec.ID, false); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			h.clearCookie(w)
			h.writeError(w, http.StatusUnauthorized, "unauthenticated", "console session expired", nil)
			return
		}
		h.requestLog(r).Error().Err(err).Msg("update console session failed")
		h.writeError(w, http.StatusInternalServerError, "session_store_error", "failed to update session", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
