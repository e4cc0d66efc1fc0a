package dnslog

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"nzyme_console/console-go/internal/routes"
)

func ptr[T any](v T) *T { return &v }

func sampleEntry() Entry {
	return Entry{
		Query: LogData{
			TransactionID: 4711,
			DataValue:     "Example.ORG.",
			DataValueETLD: ptr("example.org"),
			DataType:      "A",
			Timestamp:     time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
			Client:        L4Address{Address: "10.0.0.5", Port: 53124},
			Server:        L4Address{Address: "2001:db8::53", Port: 53},
		},
		Entropy:     ptr(3.14159),
		EntropyMean: ptr(1234.5),
		ZScore:      ptr(2.26),
	}
}

func TestRow_ToggleTwiceRestoresCollapsedRendering(t *testing.T) {
	r := NewRow(sampleEntry(), routes.New(""))
	before := r.View()
	if before.ShowResponses {
		t.Fatalf("new rows must be collapsed")
	}

	r.Toggle()
	if !r.View().ShowResponses {
		t.Fatalf("expected row to be expanded after one toggle")
	}
	r.Toggle()

	if after := r.View(); !reflect.DeepEqual(before, after) {
		t.Fatalf("rendering changed after two toggles:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestRow_FormatsScoresAndLinks(t *testing.T) {
	reg := routes.New("")
	v := NewRow(sampleEntry(), reg).View()

	if len(v.Cells) != len(Columns) {
		t.Fatalf("expected %d cells, got %d", len(Columns), len(v.Cells))
	}
	if got := v.Cells[0].Text; got != "example.org" {
		t.Fatalf("unexpected value cell %q", got)
	}
	if v.Cells[0].Href == "" {
		t.Fatalf("expected value cell to link to the hostname page")
	}
	if got := v.Cells[2].Text; got != "2024-03-01T12:30:00+00:00" {
		t.Fatalf("unexpected timestamp %q", got)
	}
	if got := v.Cells[4].Text; got != "10.0.0.5" {
		t.Fatalf("client must hide its port, got %q", got)
	}
	if got := v.Cells[5].Text; got != "[2001:db8::53]:53" {
		t.Fatalf("unexpected server cell %q", got)
	}
	if got := v.Cells[6].Text; got != "3.14 / 1,234.50" {
		t.Fatalf("unexpected entropy cell %q", got)
	}
	if got := v.Cells[7].Text; got != "2.3" {
		t.Fatalf("unexpected zscore cell %q", got)
	}
	if v.Cells[4].Href == "" {
		t.Fatalf("expected client address link")
	}
}

func TestRow_UnscoredEntryHasNoScoreColumns(t *testing.T) {
	e := sampleEntry()
	e.ZScore = nil
	if got := len(NewRow(e, routes.New("")).View().Cells); got != 6 {
		t.Fatalf("expected 6 cells, got %d", got)
	}
}

type fakeFetcher struct {
	responsesFn func(ctx context.Context, key TransactionKey, taps []uuid.UUID) ([]LogData, error)
}

func (f fakeFetcher) Responses(ctx context.Context, key TransactionKey, taps []uuid.UUID) ([]LogData, error) {
	return f.responsesFn(ctx, key, taps)
}

func TestLoadResponses(t *testing.T) {
	tap := uuid.New()
	e := sampleEntry()

	var gotKey TransactionKey
	f := fakeFetcher{responsesFn: func(_ context.Context, key TransactionKey, taps []uuid.UUID) ([]LogData, error) {
		gotKey = key
		if len(taps) != 1 || taps[0] != tap {
			t.Errorf("unexpected taps %v", taps)
		}
		resp := e.Query
		resp.DataValue = "93.184.216.34"
		resp.DataType = "A"
		return []LogData{resp}, nil
	}}

	v := LoadResponses(context.Background(), f, e.Key(), []uuid.UUID{tap}, routes.New(""))
	if gotKey != e.Key() {
		t.Fatalf("unexpected key %+v", gotKey)
	}
	if v.Error != "" || len(v.Rows) != 1 {
		t.Fatalf("unexpected response table %+v", v)
	}

	failing := fakeFetcher{responsesFn: func(context.Context, TransactionKey, []uuid.UUID) ([]LogData, error) {
		return nil, errors.New("boom")
	}}
	v = LoadResponses(context.Background(), failing, e.Key(), nil, routes.New(""))
	if v.Error == "" || v.Rows == nil {
		t.Fatalf("expected rendered error, got %+v", v)
	}
}
