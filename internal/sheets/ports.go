// Package sheets publishes computed dashboards to spreadsheets.
package sheets

import (
	"context"

	"hisaab/internal/core"
	"hisaab/internal/log"
)

// DashboardWriter stores one owner's dashboard, replacing what was written
// for that owner before.
type DashboardWriter interface {
	WriteDashboard(ctx context.Context, d core.Dashboard) error
}

// Rows lays a dashboard out as a header block of category totals, a block of
// per hisaab totals and a closing summary.
func Rows(d core.Dashboard) [][]any {
	rows := make([][]any, 0, len(d.ExpensesByCategory)+len(d.HisaabTotals)+6)
	rows = append(rows, []any{"Category", "Total"})
	for _, c := range d.ExpensesByCategory {
		rows = append(rows, []any{c.Label, c.Total.String()})
	}
	rows = append(rows, []any{}, []any{"Hisaab", "Total"})
	for _, h := range d.HisaabTotals {
		rows = append(rows, []any{h.Title, h.Total.String()})
	}
	rows = append(rows,
		[]any{},
		[]any{"Grand total", d.GrandTotal.String()},
		[]any{"Hisaabs", d.HisaabCount},
	)
	return rows
}

// LogWriter logs dashboards instead of exporting them. It stands in when no
// spreadsheet is configured.
type LogWriter struct {
	logger *log.Logger
}

func NewLogWriter(logger *log.Logger) *LogWriter {
	return &LogWriter{logger: logger.WithComponent(log.ComponentSheets)}
}

func (w *LogWriter) WriteDashboard(ctx context.Context, d core.Dashboard) error {
	w.logger.InfoContext(ctx, "Dashboard recomputed",
		log.FieldOwnerID, d.OwnerID,
		"categories", len(d.ExpensesByCategory),
		"hisaab_count", d.HisaabCount,
		"grand_total", d.GrandTotal.String())
	return nil
}

var _ DashboardWriter = (*LogWriter)(nil)
