// Package tags maps free-form theme strings onto the canonical Starbound
// vocabulary and serves display metadata (name, emoji, color, subdomain)
// for canonical keys.
//
// A Registry is built once at start-up and passed to every consumer. It is
// read-only after construction and safe for concurrent use without locking.
package tags

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// FallbackKey is the canonical key returned when nothing resolves.
const FallbackKey = "balanced"

// Category is the choice/chance/outcome axis of a canonical tag.
type Category string

const (
	CategoryChoice  Category = "choice"
	CategoryChance  Category = "chance"
	CategoryOutcome Category = "outcome"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryChoice, CategoryChance, CategoryOutcome:
		return true
	}
	return false
}

// CanonicalTag is one entry of the vocabulary.
type CanonicalTag struct {
	Key         string   `yaml:"key" json:"key"`
	DisplayName string   `yaml:"display_name" json:"display_name"`
	Emoji       string   `yaml:"emoji" json:"emoji"`
	Color       string   `yaml:"color" json:"color"`
	Subdomain   string   `yaml:"subdomain,omitempty" json:"subdomain,omitempty"`
	Category    Category `yaml:"category" json:"category"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// placeholder is served for unknown keys.
var placeholder = CanonicalTag{
	Key:         FallbackKey,
	DisplayName: "Balanced",
	Emoji:       "🙂",
	Color:       "gray",
	Category:    CategoryOutcome,
}

type vocabularyFile struct {
	Version  int            `yaml:"version"`
	Fallback string         `yaml:"fallback"`
	Tags     []CanonicalTag `yaml:"tags"`
}

// Registry is the read-only canonical vocabulary.
type Registry struct {
	tags     map[string]CanonicalTag
	index    map[string]string // literal key or alias -> canonical key
	order    []string
	fallback CanonicalTag
}

// NewRegistry builds a registry from an explicit tag list. Keys must be
// unique and every alias must point at exactly one key.
func NewRegistry(list []CanonicalTag) (*Registry, error) {
	r := &Registry{
		tags:     make(map[string]CanonicalTag, len(list)),
		index:    make(map[string]string, len(list)*4),
		fallback: placeholder,
	}
	for _, t := range list {
		key := Normalize(t.Key)
		if key == "" {
			return nil, fmt.Errorf("tag with empty key (display name %q)", t.DisplayName)
		}
		if _, dup := r.tags[key]; dup {
			return nil, fmt.Errorf("duplicate tag key %q", key)
		}
		if t.Category == "" {
			t.Category = CategoryOutcome
		}
		if !t.Category.Valid() {
			return nil, fmt.Errorf("tag %q: unknown category %q", key, t.Category)
		}
		t.Key = key
		if t.DisplayName == "" {
			t.DisplayName = humanize(key)
		}
		r.tags[key] = t
		r.order = append(r.order, key)
		r.index[key] = key
	}
	for _, key := range r.order {
		for _, alias := range r.tags[key].Aliases {
			a := Normalize(alias)
			if a == "" {
				continue
			}
			if owner, taken := r.index[a]; taken && owner != key {
				return nil, fmt.Errorf("alias %q of %q already maps to %q", alias, key, owner)
			}
			r.index[a] = key
		}
	}
	if fb, ok := r.tags[FallbackKey]; ok {
		r.fallback = fb
	}
	return r, nil
}

// Load parses a YAML vocabulary document.
func Load(rd io.Reader) (*Registry, error) {
	var vf vocabularyFile
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&vf); err != nil {
		return nil, fmt.Errorf("parsing vocabulary: %w", err)
	}
	if len(vf.Tags) == 0 {
		return nil, fmt.Errorf("vocabulary has no tags")
	}
	r, err := NewRegistry(vf.Tags)
	if err != nil {
		return nil, err
	}
	if vf.Fallback != "" {
		fb, ok := r.tags[Normalize(vf.Fallback)]
		if !ok {
			return nil, fmt.Errorf("fallback tag %q is not in the vocabulary", vf.Fallback)
		}
		r.fallback = fb
	}
	return r, nil
}

// LoadFile loads a vocabulary from path. An empty path loads the embedded
// default vocabulary.
func LoadFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary %s: %w", path, err)
	}
	return Load(bytes.NewReader(b))
}

// Default returns a fresh registry built from the embedded vocabulary.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultVocabulary))
}

// MustDefault is Default for process start-up and tests.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize lowercases s and collapses every run of non-alphanumerics into a
// single underscore, trimming underscores at both ends.
func Normalize(s string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

// Resolve maps raw onto a canonical key. It tries the literal string, its
// lowercase form and its normalized form, returning the first hit.
func (r *Registry) Resolve(raw string) (string, bool) {
	if r == nil || raw == "" {
		return "", false
	}
	for _, candidate := range []string{raw, strings.ToLower(raw), Normalize(raw)} {
		if key, ok := r.index[candidate]; ok {
			return key, true
		}
	}
	return "", false
}

// ResolveTag resolves raw and returns its tag, or the fallback tag.
func (r *Registry) ResolveTag(raw string) CanonicalTag {
	if key, ok := r.Resolve(raw); ok {
		return r.tags[key]
	}
	return r.Fallback()
}

// ResolveAll resolves every value, dropping duplicates and keeping first-seen
// order. When nothing resolves the fallback tag is returned on its own.
func (r *Registry) ResolveAll(values ...string) []CanonicalTag {
	seen := make(map[string]bool, len(values))
	var out []CanonicalTag
	for _, v := range values {
		key, ok := r.Resolve(v)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r.tags[key])
	}
	if len(out) == 0 {
		return []CanonicalTag{r.Fallback()}
	}
	return out
}

// Fallback is the neutral placeholder tag.
func (r *Registry) Fallback() CanonicalTag {
	if r == nil {
		return placeholder
	}
	return r.fallback
}

// Lookup returns the tag for a canonical key, or the fallback tag.
func (r *Registry) Lookup(key string) CanonicalTag {
	if r != nil {
		if t, ok := r.tags[key]; ok {
			return t
		}
	}
	return r.Fallback()
}

// Has reports whether key is a canonical key (aliases do not count).
func (r *Registry) Has(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.tags[key]
	return ok
}

func (r *Registry) DisplayName(key string) string { return r.Lookup(key).DisplayName }
func (r *Registry) Emoji(key string) string       { return r.Lookup(key).Emoji }
func (r *Registry) Color(key string) string       { return r.Lookup(key).Color }
func (r *Registry) Subdomain(key string) string   { return r.Lookup(key).Subdomain }

// Keys returns canonical keys in vocabulary order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.order...)
}

// Tags returns all tags in vocabulary order.
func (r *Registry) Tags() []CanonicalTag {
	out := make([]CanonicalTag, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.tags[k])
	}
	return out
}

// VocabularyError reports a value outside the approved vocabulary.
type VocabularyError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *VocabularyError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("missing value for %s", e.Field)
	}
	return fmt.Sprintf("unexpected %s %q; allowed values: %s", e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

// Validate checks that key is a canonical key of the given category.
func (r *Registry) Validate(category Category, key string) error {
	field := string(category) + " tag"
	allowed := r.Summary()[category]
	if key == "" {
		return &VocabularyError{Field: field, Allowed: allowed}
	}
	t, ok := r.tags[key]
	if !ok || t.Category != category {
		return &VocabularyError{Field: field, Value: key, Allowed: allowed}
	}
	return nil
}

// Summary lists canonical keys per category, sorted.
func (r *Registry) Summary() map[Category][]string {
	out := map[Category][]string{}
	for _, k := range r.order {
		c := r.tags[k].Category
		out[c] = append(out[c], k)
	}
	for c := range out {
		sort.Strings(out[c])
	}
	return out
}

func humanize(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
