package floorplan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nzyme_console/console-go/internal/upstream"
)

func TestUpstream_TrilaterateEscapesTargetOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/api/dot11/clients/show/odd%2Fmac%20%25/trilateration"
		if got := r.URL.EscapedPath(); got != want {
			t.Errorf("expected path %q, got %q", want, got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	api, err := upstream.New(upstream.Options{BaseURL: srv.URL + "/api", Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	req := Request{TargetType: TargetClient, Target: "odd/mac %", Taps: []uuid.UUID{uuid.New()}}
	if _, err := NewUpstream(api).Trilaterate(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
