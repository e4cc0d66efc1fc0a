package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"nzyme_console/console-go/internal/upstream"
)

func newService(t *testing.T, h http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return newServiceAt(t, srv.URL)
}

func newServiceAt(t *testing.T, baseURL string) *Service {
	t.Helper()
	c, err := upstream.New(upstream.Options{BaseURL: baseURL, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new upstream client: %v", err)
	}
	return NewService(c, zerolog.Nop())
}

func TestCreateSession_OK(t *testing.T) {
	s := newService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/system/authentication/session" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "admin" || body["password"] != "secret" {
			t.Errorf("unexpected credentials %v", body)
		}
		_, _ = w.Write([]byte(`{"token":"abc123"}`))
	})

	tok, err := s.CreateSession(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "abc123" {
		t.Fatalf("expected token abc123, got %q", tok)
	}
}

func TestCreateSession_WrongCredentials(t *testing.T) {
	s := newService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := s.CreateSession(context.Background(), "admin", "wrong")
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.Error() != "Wrong credentials. Please try again." {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !WrongCredentials(err) {
		t.Fatalf("expected WrongCredentials to match")
	}
}

func TestCreateSession_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	s := newServiceAt(t, base)
	_, err := s.CreateSession(context.Background(), "admin", "secret")
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.Error() != "Login failed. Please try again." {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if WrongCredentials(err) {
		t.Fatalf("transport failure must not look like wrong credentials")
	}
}

func TestCreateSession_ServerErrorIsGenericFailure(t *testing.T) {
	s := newService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := s.CreateSession(context.Background(), "admin", "secret")
	if err == nil || err.Error() != MessageLoginFailed {
		t.Fatalf("expected generic login failure, got %v", err)
	}
}

func TestDeleteSession_CompletesOnTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	s := newServiceAt(t, base)
	var completions int
	func() {
		defer func() { completions++ }()
		s.DeleteSession(upstream.WithToken(context.Background(), "tok"))
	}()
	if completions != 1 {
		t.Fatalf("expected exactly one completion, got %d", completions)
	}
}

func TestDeleteSession_SendsDelete(t *testing.T) {
	var hits atomic.Int32
	s := newService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.Header.Get("Authorization") == "Bearer tok" {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	s.DeleteSession(upstream.WithToken(context.Background(), "tok"))
	if hits.Load() != 1 {
		t.Fatalf("expected one authenticated DELETE, got %d", hits.Load())
	}
}

func TestMFAFlow(t *testing.T) {
	var verified, recovered, completed string
	s := newService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/system/authentication/mfa/setup/initialize":
			_, _ = w.Write([]byte(`{"user_secret":"JBSWY3DPEHPK3PXP","user_email":"admin@example.org","recovery_codes":["a1","b2"]}`))
		case "/system/authentication/mfa/setup/complete":
			completed = r.Method
		case "/system/authentication/mfa/verify":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			verified = body["code"]
			if verified != "123456" {
				w.WriteHeader(http.StatusUnauthorized)
			}
		case "/system/authentication/mfa/recovery":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			recovered = body["code"]
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := upstream.WithToken(context.Background(), "tok")

	setup, err := s.InitializeMFASetup(ctx)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if setup.UserSecret != "JBSWY3DPEHPK3PXP" || setup.UserEmail != "admin@example.org" || len(setup.RecoveryCodes) != 2 {
		t.Fatalf("unexpected setup %+v", setup)
	}
	if err := s.FinishMFASetup(ctx); err != nil || completed != http.MethodPost {
		t.Fatalf("finish: err=%v method=%q", err, completed)
	}
	if err := s.VerifyMFA(ctx, "000000"); !upstream.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 for bad code, got %v", err)
	}
	if err := s.VerifyMFA(ctx, "123456"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := s.UseMFARecoveryCode(ctx, "a1"); err != nil || recovered != "a1" {
		t.Fatalf("recovery: err=%v code=%q", err, recovered)
	}
}

func TestFetchSessionInfo(t *testing.T) {
	s := newService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		_, _ = w.Write([]byte(`{"user":{"id":"u1","email":"admin@example.org","name":"Admin","is_superadmin":true},"mfa_valid":true,"mfa_setup":true}`))
	})
	info, err := s.FetchSessionInfo(upstream.WithToken(context.Background(), "tok"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.User.Email != "admin@example.org" || !info.User.IsSuperAdmin || !info.MFAValid {
		t.Fatalf("unexpected info %+v", info)
	}
}
