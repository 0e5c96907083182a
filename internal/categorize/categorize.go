package categorize

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/insightdelivered/finance-categorizer/internal/models"
)

// Categorizer matches transaction details against a vendor map in three
// tiers of decreasing strictness. Within a tier the first mapping in
// insertion order wins, so a broad substring registered early shadows a
// more specific one registered later.
type Categorizer struct {
	vendors *VendorMap
}

func New(vendors *VendorMap) *Categorizer {
	if vendors == nil {
		vendors = NewVendorMap()
	}
	return &Categorizer{vendors: vendors}
}

// Vendors exposes the underlying mapping for mutation through the API.
func (c *Categorizer) Vendors() *VendorMap { return c.vendors }

// Categorize resolves a category for the given transaction details.
//
// Tier 1: the normalized details equal a vendor key.
// Tier 2: a vendor key occurs as a substring of the normalized details.
// Tier 3: every word of a vendor key occurs among the details' words,
// regardless of order or adjacency.
//
// A later tier only runs when every earlier tier produced no match. Details
// that match nothing get models.DefaultCategory.
func (c *Categorizer) Categorize(details string) string {
	norm := Normalize(details)
	if norm == "" {
		return models.DefaultCategory
	}

	if cat, ok := c.vendors.Get(norm); ok {
		return cat
	}

	for _, e := range c.vendors.Entries() {
		if strings.Contains(norm, e.Vendor) {
			return e.Category
		}
	}

	words := wordSet(norm)
	for _, e := range c.vendors.Entries() {
		if wordsSubset(strings.Fields(e.Vendor), words) {
			return e.Category
		}
	}

	return models.DefaultCategory
}

// Apply categorizes every transaction in place and reports how many ended
// up with a real category.
func (c *Categorizer) Apply(txns []models.TransactionRecord) (matched int) {
	for i := range txns {
		txns[i].Category = c.Categorize(txns[i].Details)
		if txns[i].Category != models.DefaultCategory {
			matched++
		}
	}
	return matched
}

// snippetLen bounds the details prefix recorded when a manual category
// assignment is promoted to a vendor mapping. Long details lines carry
// reference numbers and card suffixes that would never match again.
const snippetLen = 25

// AutoApply records a manual categorization as a new vendor mapping keyed
// on a prefix of the details, then recategorizes the given transactions so
// sibling lines from the same vendor pick the category up immediately.
// It returns the vendor key that was recorded.
func (c *Categorizer) AutoApply(details, category string, txns []models.TransactionRecord) string {
	vendor := Normalize(details)
	if len(vendor) > snippetLen {
		vendor = strings.TrimSpace(vendor[:snippetLen])
	}
	if vendor == "" {
		return ""
	}
	c.vendors.Upsert(vendor, category)
	c.Apply(txns)
	return vendor
}

// Suggestion is a near-miss vendor key offered when a lookup fails.
type Suggestion struct {
	Vendor   string `json:"vendor"`
	Category string `json:"category"`
	Distance int    `json:"distance"`
}

// maxSuggestDistance caps how dissimilar a vendor key may be and still be
// offered as a likely typo.
const maxSuggestDistance = 3

// Suggest returns vendor keys within a small edit distance of the query,
// closest first, for typo correction in the mapping API.
func (c *Categorizer) Suggest(query string, limit int) []Suggestion {
	query = Normalize(query)
	if query == "" || limit <= 0 {
		return nil
	}
	var out []Suggestion
	for _, e := range c.vendors.Entries() {
		d := levenshtein.ComputeDistance(query, e.Vendor)
		if d > 0 && d <= maxSuggestDistance {
			out = append(out, Suggestion{Vendor: e.Vendor, Category: e.Category, Distance: d})
		}
	}
	// Insertion sort keeps ties in insertion order.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Distance < out[j-1].Distance; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func wordsSubset(words []string, set map[string]struct{}) bool {
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
