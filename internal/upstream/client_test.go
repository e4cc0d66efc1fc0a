package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL + "/api", Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestDo_SendsTokenQueryAndBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/things" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if r.URL.Query().Get("limit") != "10" {
			t.Errorf("expected limit=10, got %q", r.URL.RawQuery)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["name"] != "x" {
			t.Errorf("unexpected body %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	var out struct {
		OK bool `json:"ok"`
	}
	ctx := WithToken(context.Background(), "tok-1")
	err := c.Do(ctx, http.MethodPost, "/things", url.Values{"limit": {"10"}}, map[string]string{"name": "x"}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected decoded response")
	}
}

func TestDo_NonSuccessIsStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("expected no Authorization header without token")
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("nope"))
	})

	err := c.Get(context.Background(), "/x", nil, nil)
	if !IsStatus(err, http.StatusForbidden) {
		t.Fatalf("expected 403 StatusError, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Body != "nope" {
		t.Fatalf("expected body to be captured, got %+v", se)
	}
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: base, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = c.Delete(context.Background(), "/x")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if IsStatus(err, 0) {
		t.Fatalf("transport errors must not look like status errors")
	}
}

func TestNew_RejectsNonHTTPURL(t *testing.T) {
	if _, err := New(Options{BaseURL: "unix:///tmp/sock"}); err == nil {
		t.Fatalf("expected error for non-http url")
	}
}

func TestDo_KeepsEscapedSegments(t *testing.T) {
	seg := url.PathEscape("ab/cd 50%")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got, want := r.URL.EscapedPath(), "/api/things/"+seg+"/show"; got != want {
			t.Errorf("expected escaped path %q, got %q", want, got)
		}
		if got := r.URL.Path; got != "/api/things/ab/cd 50%/show" {
			t.Errorf("unexpected decoded path %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.Do(context.Background(), http.MethodGet, "/things/"+seg+"/show", nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDo_RejectsMalformedEscape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("request must not be sent")
	})

	if err := c.Do(context.Background(), http.MethodGet, "/things/%zz", nil, nil, nil); err == nil {
		t.Fatalf("expected error for malformed escape")
	}
}
