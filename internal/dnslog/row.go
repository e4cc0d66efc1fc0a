package dnslog

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"nzyme_console/console-go/internal/dnsname"
	"nzyme_console/console-go/internal/format"
	"nzyme_console/console-go/internal/routes"
)

type Cell struct {
	Text  string `json:"text"`
	Title string `json:"title,omitempty"`
	Href  string `json:"href,omitempty"`
}

// Columns of a scored row, in render order. Unscored rows stop after "Server".
var Columns = []string{"Value", "Type", "Timestamp", "eTLD", "Client", "Server", "Entropy / Mean", "Z-Score"}

type RowView struct {
	// Key is what clients send back in "expanded" to open this row.
	Key           string             `json:"key"`
	TransactionID int                `json:"transaction_id"`
	Timestamp     time.Time          `json:"timestamp"`
	Cells         []Cell             `json:"cells"`
	ShowResponses bool               `json:"show_responses"`
	Responses     *ResponseTableView `json:"responses,omitempty"`
}

// Row renders one log entry. Its only state is whether the response sub-table is shown.
type Row struct {
	entry         Entry
	routes        routes.Registry
	showResponses bool
}

func NewRow(e Entry, reg routes.Registry) *Row {
	return &Row{entry: e, routes: reg}
}

func (r *Row) Entry() Entry { return r.entry }

func (r *Row) Toggle() { r.showResponses = !r.showResponses }

func (r *Row) ShowResponses() bool { return r.showResponses }

// View renders the row without responses; callers attach them with LoadResponses when
// ShowResponses is set.
func (r *Row) View() RowView {
	q := r.entry.Query
	cells := []Cell{
		r.valueCell(q),
		{Text: q.DataType},
		{Text: format.Time(q.Timestamp), Title: q.Timestamp.Format(time.RFC3339Nano)},
		{Text: dnsname.ETLD(q.ETLD()), Title: q.ETLD()},
		r.addressCell(q.Client, true),
		r.addressCell(q.Server, false),
	}

	if r.entry.Scored() {
		e := r.entry
		cells = append(cells,
			Cell{
				Text:  format.Number(*e.Entropy, 2) + " / " + format.Number(*e.EntropyMean, 2),
				Title: strconv.FormatFloat(*e.Entropy, 'f', -1, 64) + " / " + strconv.FormatFloat(*e.EntropyMean, 'f', -1, 64),
			},
			Cell{
				Text:  format.Number(*e.ZScore, 1),
				Title: strconv.FormatFloat(*e.ZScore, 'f', -1, 64),
			},
		)
	}

	return RowView{
		Key:           r.entry.Key().String(),
		TransactionID: q.TransactionID,
		Timestamp:     q.Timestamp,
		Cells:         cells,
		ShowResponses: r.showResponses,
	}
}

func (r *Row) valueCell(q LogData) Cell {
	display, ok := dnsname.Normalize(q.DataValue)
	if !ok {
		return Cell{Text: q.DataValue}
	}
	c := Cell{Text: display, Title: q.DataValue}
	if !dnsname.IsReverseLookup(display) {
		c.Href = r.routes.Hostname(display)
	}
	return c
}

func (r *Row) addressCell(a L4Address, hidePort bool) Cell {
	c := Cell{Text: a.String(hidePort)}
	if ip, ok := a.Addr(); ok {
		c.Href = r.routes.L4IP(ip)
	}
	if a.Context != nil && a.Context.Hostname != nil {
		c.Title = *a.Context.Hostname
	}
	return c
}

// ResponseFetcher loads the responses to one query.
type ResponseFetcher interface {
	Responses(ctx context.Context, key TransactionKey, taps []uuid.UUID) ([]LogData, error)
}

type ResponseTableView struct {
	Rows  [][]Cell `json:"rows"`
	Error string   `json:"error,omitempty"`
}

// LoadResponses fetches and renders the response sub-table of a row. Fetch failures are
// rendered into the view instead of failing the surrounding table.
func LoadResponses(ctx context.Context, f ResponseFetcher, key TransactionKey, taps []uuid.UUID, reg routes.Registry) *ResponseTableView {
	logs, err := f.Responses(ctx, key, taps)
	if err != nil {
		return &ResponseTableView{Rows: [][]Cell{}, Error: "Could not load responses."}
	}
	rows := make([][]Cell, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, NewRow(Entry{Query: l}, reg).View().Cells)
	}
	return &ResponseTableView{Rows: rows}
}
