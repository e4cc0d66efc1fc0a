// Package output renders console views for a terminal.
package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"nzyme_console/console-go/internal/dnslog"
	"nzyme_console/console-go/internal/floorplan"
	"nzyme_console/console-go/internal/session"
)

const chartWidth = 40

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
)

// Table aligns rows under columns. Short rows are padded with empty cells.
func Table(columns []string, rows [][]string) string {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = lipgloss.Width(c)
	}
	for _, r := range rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			if w := lipgloss.Width(r[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string, style *lipgloss.Style) string {
		parts := make([]string, len(widths))
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			padded := cell + strings.Repeat(" ", w-lipgloss.Width(cell))
			if style != nil {
				padded = style.Render(padded)
			}
			parts[i] = padded
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	lines := []string{line(columns, &headerStyle)}
	for _, r := range rows {
		lines = append(lines, line(r, nil))
	}
	return strings.Join(lines, "\n")
}

func cellTexts(cells []dnslog.Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.Text
	}
	return out
}

// RenderDNSPage renders the transaction log page: headline, histogram and table.
func RenderDNSPage(v dnslog.View) string {
	crumbs := make([]string, 0, len(v.Breadcrumbs))
	for _, b := range v.Breadcrumbs {
		crumbs = append(crumbs, b.Label)
	}

	lines := []string{
		mutedStyle.Render(strings.Join(crumbs, " / ")),
		titleStyle.Render(v.Headline),
		mutedStyle.Render(fmt.Sprintf("time range %s, %d filters, revision %s",
			v.TimeRange.Encode(), v.Filters.Count(), v.Revision.UTC().Format("15:04:05"))),
		"",
		headerStyle.Render(v.Chart.Title),
	}
	lines = append(lines, renderChart(v.Chart)...)
	lines = append(lines, "", RenderDNSTable(v.Table))
	return strings.Join(lines, "\n")
}

func renderChart(c dnslog.ChartView) []string {
	if c.Error != "" {
		return []string{failureStyle.Render(c.Error)}
	}
	if len(c.Buckets) == 0 {
		return []string{mutedStyle.Render("No data.")}
	}
	var peak int64
	for _, b := range c.Buckets {
		if b.Count > peak {
			peak = b.Count
		}
	}
	out := make([]string, 0, len(c.Buckets))
	for _, b := range c.Buckets {
		n := 0
		if peak > 0 {
			n = int(b.Count * chartWidth / peak)
		}
		out = append(out, fmt.Sprintf("%s %s %d", b.Time.UTC().Format("2006-01-02 15:04"), barStyle.Render(strings.Repeat("#", n)), b.Count))
	}
	return out
}

// RenderDNSTable renders a log table. Expanded rows are followed by their responses,
// indented.
func RenderDNSTable(t dnslog.TableView) string {
	head := headerStyle.Render(t.Title)
	if t.Error != "" {
		return head + "\n" + failureStyle.Render(t.Error)
	}
	if len(t.Rows) == 0 {
		return head + "\n" + mutedStyle.Render("No transactions found.")
	}

	columns := t.Columns
	if len(t.Rows[0].Cells) < len(columns) {
		columns = columns[:len(t.Rows[0].Cells)]
	}
	var rows [][]string
	for _, r := range t.Rows {
		rows = append(rows, cellTexts(r.Cells))
	}
	lines := []string{head, Table(columns, rows)}

	for _, r := range t.Rows {
		if !r.ShowResponses || r.Responses == nil {
			continue
		}
		lines = append(lines, "", mutedStyle.Render(fmt.Sprintf("Responses of transaction %d", r.TransactionID)))
		if r.Responses.Error != "" {
			lines = append(lines, "  "+failureStyle.Render(r.Responses.Error))
			continue
		}
		for _, resp := range r.Responses.Rows {
			lines = append(lines, "  "+strings.Join(cellTexts(resp), "  "))
		}
	}

	last := t.Offset + len(t.Rows)
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("%d-%d of %d", t.Offset+1, last, t.Total)))
	return strings.Join(lines, "\n")
}

// RenderTrilateration renders a floor viewer. The floor plan image itself is not
// drawn; positions are listed in plan pixels.
func RenderTrilateration(v floorplan.View) string {
	switch v.State {
	case "no_taps_selected":
		return failureStyle.Render(v.Message)
	case "error":
		return failureStyle.Render("Error: " + v.Message)
	case "awaiting_result":
		return mutedStyle.Render("Waiting for trilateration result.")
	}
	if v.Result == nil {
		return ""
	}

	r := v.Result
	lines := []string{titleStyle.Render(r.Headline)}
	for _, c := range r.Context {
		lines = append(lines, mutedStyle.Render(c))
	}
	lines = append(lines, "", headerStyle.Render("Positions"))
	if len(r.Positions) == 0 {
		lines = append(lines, mutedStyle.Render("No positions."))
	}
	for _, p := range r.Positions {
		lines = append(lines, fmt.Sprintf("  x=%.1f y=%.1f at %s", p.X, p.Y, p.Timestamp.UTC().Format("15:04:05")))
	}
	if r.Selector != nil {
		lines = append(lines, "", RenderFloorSelector(*r.Selector))
	}
	return strings.Join(lines, "\n")
}

func RenderFloorSelector(s floorplan.SelectorView) string {
	head := headerStyle.Render(fmt.Sprintf("Floors (page %d of %d)", s.Page, s.Pages))
	if s.Error != "" {
		return head + "\n" + failureStyle.Render(s.Error)
	}
	if s.State == "loading" {
		return head + "\n" + mutedStyle.Render("Loading floors.")
	}

	rows := make([][]string, 0, len(s.Floors))
	for _, f := range s.Floors {
		status := successStyle.Render("selectable")
		if !f.Selectable {
			status = mutedStyle.Render(f.Hint)
		}
		plan := "no"
		if f.HasFloorPlan {
			plan = "yes"
		}
		rows = append(rows, []string{fmt.Sprint(f.Number), f.Name, plan, f.TapCount, status, f.ID.String()})
	}
	return head + "\n" + Table([]string{"Number", "Name", "Plan", "Taps", "Status", "ID"}, rows)
}

func RenderSession(username string, info session.Info) string {
	mfa := successStyle.Render("passed")
	if !info.MFAValid {
		mfa = failureStyle.Render("pending")
	}
	lines := []string{
		titleStyle.Render(username),
		fmt.Sprintf("name   %s", info.User.Name),
		fmt.Sprintf("email  %s", info.User.Email),
		fmt.Sprintf("mfa    %s", mfa),
	}
	if info.User.IsSuperAdmin {
		lines = append(lines, mutedStyle.Render("super administrator"))
	} else if info.User.IsOrgAdmin {
		lines = append(lines, mutedStyle.Render("organization administrator"))
	}
	return strings.Join(lines, "\n")
}

func RenderMFASetup(s session.MFASetup) string {
	lines := []string{
		titleStyle.Render("Second factor setup"),
		fmt.Sprintf("account  %s", s.UserEmail),
		fmt.Sprintf("secret   %s", s.UserSecret),
		"",
		headerStyle.Render("Recovery codes"),
	}
	for _, c := range s.RecoveryCodes {
		lines = append(lines, "  "+c)
	}
	return strings.Join(lines, "\n")
}

func Failure(msg string) string { return failureStyle.Render(msg) }

func Success(msg string) string { return successStyle.Render(msg) }
