package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/catalog"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/normalizer"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// ErrNoSourceMatch is returned when no candidate shares enough of the title
var ErrNoSourceMatch = errors.New("no matching source product")

const (
	defaultMatchCandidates = 20
	defaultMinMatchScore   = 0.3
	maxQueryTokens         = 8
)

// SourceMatcherConfig tunes candidate selection
type SourceMatcherConfig struct {
	Candidates int
	MinScore   float64
}

// SourceMatcher searches the sourcing marketplace for the product behind a
// catalog listing. Among candidates whose folded title overlaps enough with
// the listing's, the cheapest wins.
type SourceMatcher struct {
	client marketplace.Client
	config SourceMatcherConfig
}

// NewSourceMatcher creates a matcher over the given sourcing client
func NewSourceMatcher(client marketplace.Client, config SourceMatcherConfig) *SourceMatcher {
	if config.Candidates <= 0 {
		config.Candidates = defaultMatchCandidates
	}
	if config.MinScore <= 0 {
		config.MinScore = defaultMinMatchScore
	}
	return &SourceMatcher{client: client, config: config}
}

// Match implements SourceFinder
func (m *SourceMatcher) Match(ctx context.Context, product marketplace.Product) (*catalog.SourceReference, error) {
	tokens := m.tokens(product.Title)
	if len(tokens) == 0 {
		return nil, ErrNoSourceMatch
	}
	query := tokens
	if len(query) > maxQueryTokens {
		query = query[:maxQueryTokens]
	}

	page, err := m.client.Search(ctx, marketplace.SearchQuery{
		Keyword:  strings.Join(query, " "),
		Page:     1,
		PageSize: m.config.Candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("search source candidates: %w", err)
	}
	if page == nil {
		return nil, ErrNoSourceMatch
	}

	candidates, _ := normalizer.NormalizeBatchAs(m.client.Provider(), page.Items)

	var (
		best      *marketplace.Product
		bestScore float64
	)
	for i := range candidates {
		c := &candidates[i]
		if !c.Price.IsPositive() {
			continue
		}
		score := overlap(tokens, m.tokens(c.Title))
		if score < m.config.MinScore {
			continue
		}
		if best == nil || c.Price.LessThan(best.Price) || (c.Price.Equal(best.Price) && score > bestScore) {
			best, bestScore = c, score
		}
	}
	if best == nil {
		return nil, ErrNoSourceMatch
	}

	return &catalog.SourceReference{
		SourceID:    best.ID,
		Price:       best.Price,
		Score:       bestScore,
		Title:       best.Title,
		MinQuantity: best.MinimumOrder,
	}, nil
}

// FoldTitle normalizes a title for comparison. Accents are stripped,
// full-width forms narrowed and case folded.
func FoldTitle(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), width.Fold, norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	// casers and transform chains keep state, so neither is shared
	return cases.Fold().String(folded)
}

func (m *SourceMatcher) tokens(title string) []string {
	fields := strings.FieldsFunc(FoldTitle(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// overlap is the share of want tokens present in got
func overlap(want, got []string) float64 {
	if len(want) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(got))
	for _, g := range got {
		set[g] = struct{}{}
	}
	hits := 0
	for _, w := range want {
		if _, ok := set[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}
