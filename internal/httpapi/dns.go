package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"nzyme_console/console-go/internal/dnslog"
	"nzyme_console/console-go/internal/filters"
)

// parseExpanded reads the comma separated "<id>@<timestamp>" keys of the "expanded"
// parameter.
func parseExpanded(raw string) (map[dnslog.TransactionKey]bool, error) {
	out := map[dnslog.TransactionKey]bool{}
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		key, err := dnslog.ParseTransactionKey(part)
		if err != nil {
			return nil, err
		}
		out[key] = true
	}
	return out, nil
}

func (h *Handler) loadOptions(w http.ResponseWriter, r *http.Request) (dnslog.LoadOptions, bool) {
	limit, err := intParam(r, "limit", dnslog.DefaultLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "limit must be an integer", nil)
		return dnslog.LoadOptions{}, false
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "offset must be an integer", nil)
		return dnslog.LoadOptions{}, false
	}
	expanded, err := parseExpanded(r.URL.Query().Get("expanded"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "expanded must list <transaction id>@<timestamp> keys", map[string]any{"error": err.Error()})
		return dnslog.LoadOptions{}, false
	}
	return dnslog.LoadOptions{Limit: limit, Offset: offset, Expanded: expanded}.Normalized(), true
}

func (h *Handler) timeRange(w http.ResponseWriter, r *http.Request) (dnslog.TimeRange, bool) {
	tr, err := dnslog.ParseTimeRange(r.URL.Query().Get("time_range"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid time_range", map[string]any{"error": err.Error()})
		return dnslog.TimeRange{}, false
	}
	return tr, true
}

// handleDNSLogs renders the transaction log page. A malformed "filters" parameter is
// not an error: the page opens without filters.
func (h *Handler) handleDNSLogs(w http.ResponseWriter, r *http.Request) {
	if !h.ensureUpstream(w) {
		return
	}
	opts, ok := h.loadOptions(w, r)
	if !ok {
		return
	}
	tr, ok := h.timeRange(w, r)
	if !ok {
		return
	}

	rec, _ := sessionFrom(r.Context())
	page := dnslog.OpenPage(*h.requestLog(r), h.routes, h.selector(rec.ID), r.URL.Query().Get("filters"), h.now)
	defer page.Close()

	if err := page.SetTimeRange(tr); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid time_range", map[string]any{"error": err.Error()})
		return
	}
	if fs := page.Filters(); fs != nil {
		if err := page.SetFilters(fs); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_filters", "invalid filters", map[string]any{"error": err.Error()})
			return
		}
	}

	view := page.Load(r.Context(), dnslog.NewUpstreamSource(h.api), opts)
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDNSEntropy(w http.ResponseWriter, r *http.Request) {
	if !h.ensureUpstream(w) {
		return
	}
	opts, ok := h.loadOptions(w, r)
	if !ok {
		return
	}
	tr, ok := h.timeRange(w, r)
	if !ok {
		return
	}
	fs, err := filters.Parse(r.URL.Query().Get("filters"))
	if err == nil {
		fs, err = fs.Normalize(filters.DNS)
	}
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_filters", "invalid filters", map[string]any{"error": err.Error()})
		return
	}

	rec, _ := sessionFrom(r.Context())
	sel := h.selector(rec.ID)
	release := sel.Enable()
	defer release()

	src := dnslog.NewUpstreamSource(h.api)
	q := dnslog.Query{TimeRange: tr, Filters: fs, Taps: sel.Selected(), Revision: h.now()}
	page, err := src.Entropy(r.Context(), q, opts.Limit, opts.Offset)
	if err != nil {
		h.writeUpstreamError(w, r, err, "load DNS entropy log")
		return
	}

	h.writeJSON(w, http.StatusOK, dnslog.TableView{
		Title:   "Entropy Anomalies",
		Columns: dnslog.Columns,
		Total:   page.Total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		Rows:    dnslog.RenderRows(r.Context(), src, h.routes, q.Taps, page.Logs, opts.Expanded),
	})
}

func (h *Handler) handleDNSResponses(w http.ResponseWriter, r *http.Request) {
	if !h.ensureUpstream(w) {
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "transactionId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "transactionId must be an integer", nil)
		return
	}
	ts, err := time.Parse(time.RFC3339Nano, r.URL.Query().Get("transaction_timestamp"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "transaction_timestamp must be an RFC 3339 timestamp", nil)
		return
	}

	rec, _ := sessionFrom(r.Context())
	key := dnslog.TransactionKey{TransactionID: id, Timestamp: ts}
	logs, err := dnslog.NewUpstreamSource(h.api).Responses(r.Context(), key, h.selector(rec.ID).Selected())
	if err != nil {
		h.writeUpstreamError(w, r, err, "load DNS responses")
		return
	}

	rows := make([][]dnslog.Cell, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, dnslog.NewRow(dnslog.Entry{Query: l}, h.routes).View().Cells)
	}
	h.writeJSON(w, http.StatusOK, dnslog.ResponseTableView{Rows: rows})
}
