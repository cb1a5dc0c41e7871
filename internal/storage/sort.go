package storage

import (
	"sort"
	"strings"

	"hisaab/internal/core"
)

// SortHisaabs orders hs in place. Ties keep their relative order.
func SortHisaabs(hs []core.Hisaab, order string) {
	var less func(a, b core.Hisaab) bool
	switch order {
	case SortDateAsc:
		less = func(a, b core.Hisaab) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortTitleAsc:
		less = func(a, b core.Hisaab) bool { return a.Title < b.Title }
	case SortTitleDesc:
		less = func(a, b core.Hisaab) bool { return a.Title > b.Title }
	default:
		less = func(a, b core.Hisaab) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(hs, func(i, j int) bool { return less(hs[i], hs[j]) })
}

// Matches reports whether h passes f.
func (f Filter) Matches(h core.Hisaab) bool {
	if h.OwnerID != f.OwnerID {
		return false
	}
	if f.TitleContains != "" && !strings.Contains(strings.ToLower(h.Title), strings.ToLower(f.TitleContains)) {
		return false
	}
	if f.CreatedOn != nil {
		start, end := DayRange(*f.CreatedOn)
		if h.CreatedAt.Before(start) || !h.CreatedAt.Before(end) {
			return false
		}
	}
	return true
}
