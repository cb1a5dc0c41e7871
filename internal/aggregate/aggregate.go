// Package aggregate builds the dashboard rollups from a user's hisaabs.
//
// Only hisaabs that are open (not encrypted) and owned by the caller are
// counted. Locked hisaabs are skipped entirely, never partially summed.
package aggregate

import (
	"sort"

	"hisaab/internal/core"
)

func counted(h core.Hisaab, callerID string) bool {
	return !h.Encrypted && h.OwnerID == callerID
}

// RecordTotal sums the line item values of h. Values that do not parse as a
// decimal count as zero.
func RecordTotal(h core.Hisaab) core.Money {
	total := core.Zero
	for _, item := range h.Content {
		total = total.Add(core.AmountOrZero(item.Value))
	}
	return total
}

// CategoryTotals returns the spend per label.
func CategoryTotals(records []core.Hisaab, callerID string) map[string]core.Money {
	out := make(map[string]core.Money)
	for _, h := range records {
		if !counted(h, callerID) {
			continue
		}
		out[h.Label] = out[h.Label].Add(RecordTotal(h))
	}
	return out
}

// RecordTotals returns one entry per counted hisaab, in input order.
func RecordTotals(records []core.Hisaab, callerID string) []core.RecordTotal {
	out := make([]core.RecordTotal, 0, len(records))
	for _, h := range records {
		if !counted(h, callerID) {
			continue
		}
		out = append(out, core.RecordTotal{ID: h.ID, Title: h.Title, Total: RecordTotal(h)})
	}
	return out
}

// SortedCategories orders a CategoryTotals result by label.
func SortedCategories(totals map[string]core.Money) []core.CategoryTotal {
	out := make([]core.CategoryTotal, 0, len(totals))
	for label, total := range totals {
		out = append(out, core.CategoryTotal{Label: label, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Build assembles the full dashboard for callerID.
func Build(records []core.Hisaab, callerID string) core.Dashboard {
	categories := SortedCategories(CategoryTotals(records, callerID))
	totals := RecordTotals(records, callerID)

	grand := core.Zero
	for _, c := range categories {
		grand = grand.Add(c.Total)
	}
	return core.Dashboard{
		OwnerID:            callerID,
		ExpensesByCategory: categories,
		HisaabTotals:       totals,
		GrandTotal:         grand,
		HisaabCount:        len(totals),
	}
}
