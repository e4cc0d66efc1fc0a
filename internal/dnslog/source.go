package dnslog

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"nzyme_console/console-go/internal/filters"
	"nzyme_console/console-go/internal/upstream"
)

// Query is what the chart and the table of a page share.
type Query struct {
	TimeRange TimeRange
	Filters   filters.Set
	Taps      []uuid.UUID
	Revision  time.Time
}

func (q Query) values() url.Values {
	v := url.Values{}
	v.Set("time_range", q.TimeRange.Encode())
	if enc := q.Filters.Encode(); enc != "" {
		v.Set("filters", enc)
	}
	v.Set("taps", joinTaps(q.Taps))
	return v
}

func joinTaps(taps []uuid.UUID) string {
	parts := make([]string, 0, len(taps))
	for _, t := range taps {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, ",")
}

type Bucket struct {
	Time  time.Time `json:"time"`
	Count int64     `json:"count"`
}

type LogPage struct {
	Total int64   `json:"total"`
	Logs  []Entry `json:"logs"`
}

// Source feeds the widgets of a transaction log page.
type Source interface {
	ResponseFetcher
	Histogram(ctx context.Context, q Query) ([]Bucket, error)
	Logs(ctx context.Context, q Query, limit, offset int) (LogPage, error)
}

// Getter is the part of the upstream client the sources need.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// UpstreamSource reads DNS data from the platform API.
type UpstreamSource struct {
	api Getter
}

func NewUpstreamSource(api Getter) *UpstreamSource {
	return &UpstreamSource{api: api}
}

func (s *UpstreamSource) Histogram(ctx context.Context, q Query) ([]Bucket, error) {
	var raw map[string]int64
	if err := s.api.Get(ctx, "/ethernet/dns/transactions/histogram", q.values(), &raw); err != nil {
		return nil, fmt.Errorf("transaction histogram: %w", err)
	}

	out := make([]Bucket, 0, len(raw))
	for k, n := range raw {
		ts, err := time.Parse(time.RFC3339Nano, k)
		if err != nil {
			return nil, fmt.Errorf("transaction histogram: bad bucket %q: %w", k, err)
		}
		out = append(out, Bucket{Time: ts, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (s *UpstreamSource) Logs(ctx context.Context, q Query, limit, offset int) (LogPage, error) {
	return s.logPage(ctx, "/ethernet/dns/transactions/log", q, limit, offset)
}

// Entropy lists queries whose names scored as anomalous.
func (s *UpstreamSource) Entropy(ctx context.Context, q Query, limit, offset int) (LogPage, error) {
	return s.logPage(ctx, "/ethernet/dns/entropy/log", q, limit, offset)
}

func (s *UpstreamSource) logPage(ctx context.Context, path string, q Query, limit, offset int) (LogPage, error) {
	v := q.values()
	v.Set("limit", strconv.Itoa(limit))
	v.Set("offset", strconv.Itoa(offset))

	var page LogPage
	if err := s.api.Get(ctx, path, v, &page); err != nil {
		return LogPage{}, fmt.Errorf("dns log %s: %w", path, err)
	}
	if page.Logs == nil {
		page.Logs = []Entry{}
	}
	return page, nil
}

func (s *UpstreamSource) Responses(ctx context.Context, key TransactionKey, taps []uuid.UUID) ([]LogData, error) {
	v := url.Values{}
	v.Set("transaction_timestamp", key.Timestamp.UTC().Format(time.RFC3339Nano))
	v.Set("taps", joinTaps(taps))

	ctx = upstream.Endpoint(ctx, "/ethernet/dns/transactions/show/{id}/responses")
	path := "/ethernet/dns/transactions/show/" + strconv.Itoa(key.TransactionID) + "/responses"

	var out struct {
		Responses []LogData `json:"responses"`
	}
	if err := s.api.Get(ctx, path, v, &out); err != nil {
		return nil, fmt.Errorf("transaction %d responses: %w", key.TransactionID, err)
	}
	return out.Responses, nil
}
