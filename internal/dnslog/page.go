package dnslog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"nzyme_console/console-go/internal/filters"
	"nzyme_console/console-go/internal/routes"
	"nzyme_console/console-go/internal/tapselect"
)

const (
	Headline = "DNS Transaction Logs"

	DefaultLimit = 25
	MaxLimit     = 250

	// parallel response sub-table fetches for expanded rows
	responseFetchLimit = 4
)

// Page holds the state of the transaction log page: time range, filters and revision.
// It keeps the tap selector enabled from OpenPage until Close.
type Page struct {
	log    zerolog.Logger
	routes routes.Registry
	taps   *tapselect.Selector
	now    func() time.Time

	release   func()
	timeRange TimeRange
	filters   filters.Set
	revision  time.Time
}

// OpenPage initializes a page from the raw "filters" URL parameter. A value that does not
// parse leaves the page without filters and logs one diagnostic.
func OpenPage(log zerolog.Logger, reg routes.Registry, taps *tapselect.Selector, rawFilters string, now func() time.Time) *Page {
	if now == nil {
		now = time.Now
	}
	p := &Page{
		log:       log,
		routes:    reg,
		taps:      taps,
		now:       now,
		timeRange: RelativeHours24,
		revision:  now(),
	}

	fs, err := filters.Parse(rawFilters)
	if err != nil {
		log.Error().Err(err).Msg("failed to parse filter URL parameter JSON")
		fs = nil
	}
	p.filters = fs
	p.release = taps.Enable()
	return p
}

// Close releases the tap selector. Safe to call more than once.
func (p *Page) Close() {
	p.release()
}

func (p *Page) Filters() filters.Set { return p.filters }

func (p *Page) TimeRange() TimeRange { return p.timeRange }

func (p *Page) Revision() time.Time { return p.revision }

func (p *Page) SetTimeRange(tr TimeRange) error {
	if err := tr.Validate(); err != nil {
		return err
	}
	p.timeRange = tr
	return nil
}

// SetFilters replaces the filter set after validating it against the DNS taxonomy.
// Unlike the URL parameter, invalid filters are reported to the caller.
func (p *Page) SetFilters(fs filters.Set) error {
	norm, err := fs.Normalize(filters.DNS)
	if err != nil {
		return err
	}
	p.filters = norm
	return nil
}

// Refresh bumps the revision so the widgets re-fetch.
func (p *Page) Refresh() time.Time {
	p.revision = p.now()
	return p.revision
}

func (p *Page) Query() Query {
	return Query{
		TimeRange: p.timeRange,
		Filters:   p.filters,
		Taps:      p.taps.Selected(),
		Revision:  p.revision,
	}
}

type ChartView struct {
	Title   string   `json:"title"`
	Buckets []Bucket `json:"buckets"`
	Error   string   `json:"error,omitempty"`
}

type TableView struct {
	Title   string    `json:"title"`
	Columns []string  `json:"columns"`
	Total   int64     `json:"total"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
	Rows    []RowView `json:"rows"`
	Error   string    `json:"error,omitempty"`
}

type View struct {
	Breadcrumbs []routes.Breadcrumb `json:"breadcrumbs"`
	Headline    string              `json:"headline"`
	TimeRange   TimeRange           `json:"time_range"`
	Filters     filters.Set         `json:"filters"`
	Revision    time.Time           `json:"revision"`
	Chart       ChartView           `json:"chart"`
	Table       TableView           `json:"table"`
}

// LoadOptions pages the table. Zero values select the defaults.
type LoadOptions struct {
	Limit  int
	Offset int
	// Expanded lists the rows whose response sub-tables are shown.
	Expanded map[TransactionKey]bool
}

func (o LoadOptions) Normalized() LoadOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Load renders the page. Chart and table fetch independently; a failure in one is shown
// in that widget only.
func (p *Page) Load(ctx context.Context, src Source, opts LoadOptions) View {
	opts = opts.Normalized()
	q := p.Query()

	view := View{
		Breadcrumbs: p.routes.DNSTransactionLogsBreadcrumbs(),
		Headline:    Headline,
		TimeRange:   q.TimeRange,
		Filters:     q.Filters,
		Revision:    q.Revision,
		Chart:       ChartView{Title: "Transaction Count", Buckets: []Bucket{}},
		Table: TableView{
			Title:   "Transactions",
			Columns: Columns[:6],
			Limit:   opts.Limit,
			Offset:  opts.Offset,
			Rows:    []RowView{},
		},
	}

	var g errgroup.Group
	g.Go(func() error {
		buckets, err := src.Histogram(ctx, q)
		if err != nil {
			p.log.Warn().Err(err).Msg("dns transaction chart failed")
			view.Chart.Error = "Could not load transaction count."
			return nil
		}
		view.Chart.Buckets = buckets
		return nil
	})
	g.Go(func() error {
		page, err := src.Logs(ctx, q, opts.Limit, opts.Offset)
		if err != nil {
			p.log.Warn().Err(err).Msg("dns transaction table failed")
			view.Table.Error = "Could not load transactions."
			return nil
		}
		view.Table.Total = page.Total
		view.Table.Rows = RenderRows(ctx, src, p.routes, q.Taps, page.Logs, opts.Expanded)
		return nil
	})
	_ = g.Wait()

	return view
}

// RenderRows renders log entries, loading the response sub-tables of the expanded ones.
func RenderRows(ctx context.Context, f ResponseFetcher, reg routes.Registry, taps []uuid.UUID, logs []Entry, expanded map[TransactionKey]bool) []RowView {
	rows := make([]RowView, len(logs))
	var g errgroup.Group
	g.SetLimit(responseFetchLimit)

	for i, e := range logs {
		r := NewRow(e, reg)
		if expanded[e.Key()] {
			r.Toggle()
		}
		rows[i] = r.View()
		if !r.ShowResponses() {
			continue
		}
		g.Go(func() error {
			rows[i].Responses = LoadResponses(ctx, f, e.Key(), taps, reg)
			return nil
		})
	}
	_ = g.Wait()
	return rows
}
