package history

// Display and transport page sizes.
const (
	DefaultPageSize         = 20
	DefaultReplayFetchLimit = 200
)

// Page is one fixed-size slice of the filtered history.
type Page struct {
	Items       []ActionHistoryItem
	CurrentPage int
	PageCount   int
	PageSize    int
	// Total is the number of filtered items materialized so far.
	Total int
}

// Paginate slices items into the requested page. Requests past the end clamp
// to the last page and requests below 1 clamp to the first; neither is an
// error.
func Paginate(items []ActionHistoryItem, requested, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pageCount := max(1, (len(items)+pageSize-1)/pageSize)
	current := min(max(requested, 1), pageCount)

	start := min((current-1)*pageSize, len(items))
	end := min(current*pageSize, len(items))
	return Page{
		Items:       items[start:end:end],
		CurrentPage: current,
		PageCount:   pageCount,
		PageSize:    pageSize,
		Total:       len(items),
	}
}

// CanGoPrev reports whether a previous page exists.
func (p Page) CanGoPrev() bool {
	return p.CurrentPage > 1
}

// CanGoNext reports whether the user may advance: either a later page is
// already materialized or the transport still has older events to fetch.
func (p Page) CanGoNext(hasMore bool) bool {
	return p.CurrentPage < p.PageCount || hasMore
}

// LookaheadInput is everything the lookahead rule looks at.
type LookaheadInput struct {
	FilteredCount int
	CurrentPage   int
	PageSize      int
	// HasMore is true while the transport reports older pages.
	HasMore bool
	// InFlight is true while a history page fetch is outstanding.
	InFlight bool
}

// NeedsLookahead reports whether exactly one more history page must be
// fetched to fill the current display page. It never looks past the current
// page, and it is meant to be re-evaluated after every change: a filter can
// leave a full transport page short of a full display page.
func NeedsLookahead(in LookaheadInput) bool {
	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if in.FilteredCount >= max(in.CurrentPage, 1)*pageSize {
		return false
	}
	return in.HasMore && !in.InFlight
}
