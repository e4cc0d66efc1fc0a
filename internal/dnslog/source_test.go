package dnslog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nzyme_console/console-go/internal/filters"
	"nzyme_console/console-go/internal/upstream"
)

func newTestSource(t *testing.T, h http.HandlerFunc) *UpstreamSource {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := upstream.New(upstream.Options{BaseURL: srv.URL + "/api", Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return NewUpstreamSource(c)
}

func TestUpstreamSource_LogsSendsQuery(t *testing.T) {
	tap := uuid.MustParse("6f1b7c2e-0000-4000-8000-000000000001")
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ethernet/dns/transactions/log" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "25" || q.Get("offset") != "50" {
			t.Errorf("unexpected paging %q", r.URL.RawQuery)
		}
		if q.Get("taps") != tap.String() {
			t.Errorf("unexpected taps %q", q.Get("taps"))
		}
		if q.Get("time_range") != `{"type":"relative","minutes":1440}` {
			t.Errorf("unexpected time range %q", q.Get("time_range"))
		}
		if q.Get("filters") == "" {
			t.Errorf("expected filters parameter")
		}
		_, _ = w.Write([]byte(`{"total":1,"logs":[{"query":{"transaction_id":7,"data_value":"example.org","timestamp":"2024-03-01T12:00:00Z"}}]}`))
	})

	fs := filters.Set{"query_type": {{Field: "query_type", Operator: "equals", Value: "A"}}}
	page, err := src.Logs(context.Background(), Query{TimeRange: RelativeHours24, Filters: fs, Taps: []uuid.UUID{tap}}, 25, 50)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if page.Total != 1 || len(page.Logs) != 1 || page.Logs[0].Query.TransactionID != 7 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestUpstreamSource_HistogramSortsBuckets(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"2024-03-01T12:01:00Z":4,"2024-03-01T12:00:00Z":9}`))
	})

	buckets, err := src.Histogram(context.Background(), Query{TimeRange: RelativeHours24})
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	if len(buckets) != 2 || buckets[0].Count != 9 || buckets[1].Count != 4 {
		t.Fatalf("unexpected buckets %+v", buckets)
	}
}

func TestUpstreamSource_ResponsesByTransaction(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ethernet/dns/transactions/show/42/responses" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("transaction_timestamp"); got != "2024-03-01T12:00:00Z" {
			t.Errorf("unexpected timestamp %q", got)
		}
		_, _ = w.Write([]byte(`{"responses":[{"transaction_id":42,"data_value":"93.184.216.34","data_type":"A"}]}`))
	})

	out, err := src.Responses(context.Background(), TransactionKey{TransactionID: 42, Timestamp: ts}, nil)
	if err != nil {
		t.Fatalf("Responses: %v", err)
	}
	if len(out) != 1 || out[0].DataValue != "93.184.216.34" {
		t.Fatalf("unexpected responses %+v", out)
	}
}

func TestUpstreamSource_StatusErrorsPropagate(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := src.Entropy(context.Background(), Query{TimeRange: RelativeHours24}, 10, 0)
	if !upstream.IsStatus(err, http.StatusForbidden) {
		t.Fatalf("expected 403 status error, got %v", err)
	}
}
