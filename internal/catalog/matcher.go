package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CatalogIndex is the read surface the matcher queries. Lookups are by
// candidate key, never a full catalog scan.
type CatalogIndex interface {
	ProductByGTIN(ctx context.Context, gtin string) (Product, error)
	SupplierItemBySKU(ctx context.Context, supplierID uuid.UUID, sku string) (SupplierItem, error)
	ProductsByNameTokens(ctx context.Context, tokens []string, limit int) ([]Product, error)
}

// MatcherConfig tunes the fuzzy tier.
type MatcherConfig struct {
	// FuzzyFloor is the minimum similarity for a fuzzy match; defaults
	// to 0.5.
	FuzzyFloor float64
	// CandidateLimit caps candidates fetched per row; defaults to 25.
	CandidateLimit int
}

// Matcher reconciles one import row against the canonical catalog.
// Tiers are evaluated in order, first success wins:
// GTIN exact (1.0) → supplier SKU exact (0.95) → fuzzy name+brand.
type Matcher struct {
	index CatalogIndex
	cfg   MatcherConfig
}

// NewMatcher constructs a Matcher.
func NewMatcher(index CatalogIndex, cfg MatcherConfig) *Matcher {
	if cfg.FuzzyFloor <= 0 {
		cfg.FuzzyFloor = 0.5
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 25
	}
	return &Matcher{index: index, cfg: cfg}
}

const (
	confidenceGTIN = 1.0
	confidenceSKU  = 0.95
)

// Match returns the best match for the row, or a zero result with
// MatchNone when nothing clears the fuzzy floor.
func (m *Matcher) Match(ctx context.Context, supplierID uuid.UUID, row ImportRow) (MatchResult, error) {
	if gtin := NormalizeGTIN(row.GTIN); gtin != "" && ValidGTIN(gtin) {
		product, err := m.index.ProductByGTIN(ctx, gtin)
		switch {
		case err == nil:
			return MatchResult{ProductID: product.ID, Method: MatchGTINExact, Confidence: confidenceGTIN}, nil
		case !errors.Is(err, ErrNotFound):
			return MatchResult{}, fmt.Errorf("catalog: gtin lookup: %w", err)
		}
	}

	if sku := strings.TrimSpace(row.SKU); sku != "" {
		item, err := m.index.SupplierItemBySKU(ctx, supplierID, sku)
		switch {
		case err == nil:
			return MatchResult{ProductID: item.ProductID, Method: MatchSKUExact, Confidence: confidenceSKU}, nil
		case !errors.Is(err, ErrNotFound):
			return MatchResult{}, fmt.Errorf("catalog: sku lookup: %w", err)
		}
	}

	return m.fuzzyMatch(ctx, row)
}

func (m *Matcher) fuzzyMatch(ctx context.Context, row ImportRow) (MatchResult, error) {
	target := NormalizeName(row.Name, row.Brand)
	tokens := strings.Fields(target)
	if len(tokens) == 0 {
		return MatchResult{Method: MatchNone}, nil
	}

	candidates, err := m.index.ProductsByNameTokens(ctx, tokens, m.cfg.CandidateLimit)
	if err != nil {
		return MatchResult{}, fmt.Errorf("catalog: candidate lookup: %w", err)
	}

	var best Product
	bestScore := 0.0
	for _, candidate := range candidates {
		score := Similarity(target, NormalizeName(candidate.Name, candidate.Brand))
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if bestScore < m.cfg.FuzzyFloor {
		return MatchResult{Method: MatchNone}, nil
	}
	return MatchResult{ProductID: best.ID, Method: MatchFuzzyName, Confidence: bestScore}, nil
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName lowercases, folds diacritics, strips punctuation and
// collapses whitespace over the concatenated name and brand.
func NormalizeName(name, brand string) string {
	joined := strings.TrimSpace(name + " " + brand)
	if folded, _, err := transform.String(foldTransformer, joined); err == nil {
		joined = folded
	}
	var b strings.Builder
	b.Grow(len(joined))
	lastSpace := true
	for _, r := range strings.ToLower(joined) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Similarity scores two normalized strings in [0,1]. It takes the better
// of Dice token overlap and a length-scaled Levenshtein score, so both
// reordered tokens and small typos rank high.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	dice := diceOverlap(strings.Fields(a), strings.Fields(b))
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	lev := 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if lev < 0 {
		lev = 0
	}
	if dice > lev {
		return dice
	}
	return lev
}

func diceOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]int, len(a))
	for _, t := range a {
		set[t]++
	}
	matches := 0
	for _, t := range b {
		if set[t] > 0 {
			set[t]--
			matches++
		}
	}
	return float64(2*matches) / float64(len(a)+len(b))
}
