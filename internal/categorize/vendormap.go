// Package categorize assigns spending categories to transaction details via
// a tiered vendor-substring match against an insertion-ordered mapping.
package categorize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// SentinelCustomCategories is a reserved vendor-map key whose value is a
// side-list of user-defined category names, not a real vendor mapping. The
// matcher must always skip it.
const SentinelCustomCategories = "__custom_categories__"

// Entry is one vendor-substring → category mapping.
type Entry struct {
	Vendor   string `json:"vendor"`
	Category string `json:"category"`
}

// VendorMap is an insertion-ordered vendor-substring → category table. Tier
// matching depends on iteration order being stable ("first match in
// insertion order wins"), so a plain Go map cannot back it.
type VendorMap struct {
	entries []Entry
	index   map[string]int
	custom  []string
}

// NewVendorMap returns an empty mapping.
func NewVendorMap() *VendorMap {
	return &VendorMap{index: make(map[string]int)}
}

// Normalize lowercases a vendor or details string and collapses internal
// whitespace to single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Upsert adds a mapping or updates the category of an existing one. The
// vendor key is normalized; updating never changes insertion order.
func (m *VendorMap) Upsert(vendor, category string) {
	vendor = Normalize(vendor)
	if vendor == "" || vendor == SentinelCustomCategories {
		return
	}
	if i, ok := m.index[vendor]; ok {
		m.entries[i].Category = category
		return
	}
	m.index[vendor] = len(m.entries)
	m.entries = append(m.entries, Entry{Vendor: vendor, Category: category})
}

// Get returns the category mapped to a normalized vendor substring.
func (m *VendorMap) Get(vendor string) (string, bool) {
	i, ok := m.index[Normalize(vendor)]
	if !ok {
		return "", false
	}
	return m.entries[i].Category, true
}

// Entries returns the mappings in insertion order. The slice is shared;
// callers must not mutate it.
func (m *VendorMap) Entries() []Entry { return m.entries }

// Len reports the number of real mappings (the sentinel is not counted).
func (m *VendorMap) Len() int { return len(m.entries) }

// CustomCategories returns the user-defined category names carried by the
// sentinel key.
func (m *VendorMap) CustomCategories() []string { return m.custom }

// AddCustomCategory appends a user-defined category name if not present.
func (m *VendorMap) AddCustomCategory(name string) {
	for _, c := range m.custom {
		if c == name {
			return
		}
	}
	m.custom = append(m.custom, name)
}

// UnmarshalJSON decodes the conventional flat JSON object. Decoding walks
// the token stream so that insertion order survives; entries with
// non-string values are counted and skipped, matching the import rules.
func (m *VendorMap) UnmarshalJSON(data []byte) error {
	skipped, err := m.decode(data, zerolog.Nop())
	_ = skipped
	return err
}

func (m *VendorMap) decode(data []byte, log zerolog.Logger) (skipped int, err error) {
	if m.index == nil {
		m.index = make(map[string]int)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("read vendor map: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return 0, fmt.Errorf("vendor map must be a JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return skipped, fmt.Errorf("read vendor map key: %w", err)
		}
		key := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return skipped, fmt.Errorf("read value for %q: %w", key, err)
		}

		if key == SentinelCustomCategories {
			var names []string
			if err := json.Unmarshal(raw, &names); err != nil {
				skipped++
				log.Warn().Str("key", key).Msg("vendor map sentinel has unexpected value shape")
				continue
			}
			m.custom = names
			continue
		}

		var category string
		if err := json.Unmarshal(raw, &category); err != nil {
			skipped++
			log.Warn().Str("vendor", key).Msg("skipping vendor mapping with non-string category")
			continue
		}
		m.Upsert(key, category)
	}

	if _, err := dec.Token(); err != nil {
		return skipped, fmt.Errorf("read vendor map end: %w", err)
	}
	return skipped, nil
}

// MarshalJSON writes the flat object form, mappings in insertion order with
// the sentinel key last when custom categories exist.
func (m *VendorMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(e.Vendor)
		v, _ := json.Marshal(e.Category)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	if len(m.custom) > 0 {
		if len(m.entries) > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(SentinelCustomCategories)
		v, err := json.Marshal(m.custom)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// LoadFile reads a vendor map from a JSON file, logging how many entries
// were imported and how many were rejected.
func LoadFile(path string, log zerolog.Logger) (*VendorMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vendor map %q: %w", path, err)
	}
	m := NewVendorMap()
	skipped, err := m.decode(data, log)
	if err != nil {
		return nil, fmt.Errorf("parse vendor map %q: %w", path, err)
	}
	log.Info().Int("imported", m.Len()).Int("skipped", skipped).Str("path", path).Msg("vendor map loaded")
	return m, nil
}

// SaveFile writes the mapping back to disk in its flat JSON form.
func (m *VendorMap) SaveFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vendor map: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write vendor map %q: %w", path, err)
	}
	return nil
}
