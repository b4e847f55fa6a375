// Package catalog classifies products into named categories using
// inclusion/exclusion tag rules. Rules are data, not code; new categories
// are added by extending the rule table
package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"ordercast/internal/adapters/shopify"
)

// Rule defines one category: every tag in Requires must be present and no
// tag in Excludes may be present. Matching is case-insensitive
type Rule struct {
	Name     string
	Requires []string
	Excludes []string
}

// DefaultRules returns the built-in category table. The two built-ins are
// mutually exclusive: single-origin excludes the blend-defining tag
func DefaultRules() []Rule {
	return []Rule{
		{Name: "single-origin", Requires: []string{"coffee"}, Excludes: []string{"blend"}},
		{Name: "blend", Requires: []string{"coffee", "blend"}},
	}
}

// Membership maps a product id to the sorted set of category names it
// belongs to; products matching no rule are absent
type Membership map[int64][]string

// Categories returns the category names for a product, nil when unmapped
func (m Membership) Categories(productID int64) []string { return m[productID] }

// Has reports whether a product belongs to the named category
func (m Membership) Has(productID int64, category string) bool {
	for _, c := range m[productID] {
		if c == category {
			return true
		}
	}
	return false
}

// Categorizer applies a fixed rule table to product tag lists
type Categorizer struct {
	rules []Rule
}

// New builds a Categorizer; with no rules the default table is used
func New(rules ...Rule) *Categorizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Categorizer{rules: rules}
}

// Categorize computes category membership for every product. Pure: same
// input always yields the same map, and the input is never mutated. When a
// product satisfies several rules its category set is the union of all of
// them, deduplicated and sorted
func (c *Categorizer) Categorize(products []shopify.Product) Membership {
	fold := cases.Fold()
	out := make(Membership, len(products))
	for _, p := range products {
		tags := foldTagSet(fold, p.Tags)
		var cats []string
		for _, r := range c.rules {
			if ruleMatches(fold, r, tags) {
				cats = mergeCategory(cats, r.Name)
			}
		}
		if len(cats) > 0 {
			sort.Strings(cats)
			out[p.ID] = cats
		}
	}
	return out
}

// SplitTags splits a comma-separated free-text tag list, trimming whitespace
// and dropping empties; case is preserved for display
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func foldTagSet(fold cases.Caser, raw string) map[string]struct{} {
	tags := SplitTags(raw)
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[fold.String(t)] = struct{}{}
	}
	return set
}

func ruleMatches(fold cases.Caser, r Rule, tags map[string]struct{}) bool {
	for _, req := range r.Requires {
		if _, ok := tags[fold.String(req)]; !ok {
			return false
		}
	}
	for _, exc := range r.Excludes {
		if _, ok := tags[fold.String(exc)]; ok {
			return false
		}
	}
	return true
}

// mergeCategory is a set-union append: a category already present is not
// duplicated (merge semantics over last-write-wins when a product shows up
// under several rules)
func mergeCategory(cats []string, name string) []string {
	for _, c := range cats {
		if c == name {
			return cats
		}
	}
	return append(cats, name)
}
