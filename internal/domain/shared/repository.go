package shared

// DefaultPageSize applies when a caller leaves PageSize unset
const DefaultPageSize = 20

// Filter carries paging, sorting and a free-text search for list queries.
// OrderBy is checked against a per-table whitelist by the repository.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

// DefaultFilter returns page one, newest first
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: DefaultPageSize,
		OrderBy:  "updated_at",
		OrderDir: "desc",
	}
}

// Normalize clamps paging to [1, maxPageSize]; maxPageSize <= 0 means no cap
func (f Filter) Normalize(maxPageSize int) Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if maxPageSize > 0 && f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return f
}

// Offset is the row offset of the first item on the page
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
