package view

// maxVisiblePages is the page count above which the pager collapses runs of
// page numbers into ellipses.
const maxVisiblePages = 15

// PageItem is one entry of the pager: a page link or an ellipsis.
type PageItem struct {
	Number   int  `json:"number,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
	Active   bool `json:"active,omitempty"`
}

// PageWindow lists the pager entries for current out of total pages: the
// first page, the neighbours of current, the last page, and ellipses where
// pages are skipped on long lists. No pager is shown for a single page.
func PageWindow(current, total int) []PageItem {
	if total <= 1 {
		return nil
	}

	items := []PageItem{{Number: 1, Active: current == 1}}

	if current > 3 && total > maxVisiblePages {
		items = append(items, PageItem{Ellipsis: true})
	}

	start := max(2, current-1)
	end := min(total-1, current+1)
	for p := start; p <= end; p++ {
		items = append(items, PageItem{Number: p, Active: current == p})
	}

	if current < total-2 && total > maxVisiblePages {
		items = append(items, PageItem{Ellipsis: true})
	}

	return append(items, PageItem{Number: total, Active: current == total})
}

// HasPrevious reports whether a previous-page control is enabled.
func HasPrevious(current int) bool {
	return current > 1
}

// HasNext reports whether a next-page control is enabled.
func HasNext(current, total int) bool {
	return current < total
}
