package persistence

import "strings"

// sortColumns whitelists the columns a listing may be ordered by. Anything
// else, including injection attempts, falls back to the default.
type sortColumns struct {
	allowed  map[string]struct{}
	fallback string
}

func newSortColumns(fallback string, cols ...string) sortColumns {
	allowed := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		allowed[c] = struct{}{}
	}
	return sortColumns{allowed: allowed, fallback: fallback}
}

// clause renders "<column> ASC|DESC". Direction defaults to DESC.
func (s sortColumns) clause(field, dir string) string {
	col := strings.TrimSpace(field)
	if _, ok := s.allowed[col]; !ok {
		col = s.fallback
	}
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		return col + " ASC"
	}
	return col + " DESC"
}

var popularProductOrder = newSortColumns("updated_at",
	"created_at", "updated_at", "title", "price", "sold_quantity", "sold_value")
