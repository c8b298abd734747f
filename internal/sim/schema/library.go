package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Definition is the immutable metadata of one attribute name within a
// (kind, category) pair: its type, what it means, and the calibration
// reference the oracle anchors values against.
type Definition struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Reference   string   `json:"reference"`
	Values      []string `json:"values,omitempty"`
}

// Library is the per-category registry of known attribute definitions.
// It grows at runtime as the oracle introduces attributes; definitions are
// append-only and never edited or removed.
type Library struct {
	kinds map[string]map[string]map[string]Definition
}

func NewLibrary() *Library {
	return &Library{kinds: map[string]map[string]map[string]Definition{}}
}

// Define registers a definition if the (kind, category, name) slot is still
// empty and reports whether it did. First writer wins: a later Define with
// different metadata is a no-op, so semantics can never be silently
// redefined.
func (l *Library) Define(kind, category, name string, def Definition) bool {
	cats, ok := l.kinds[kind]
	if !ok {
		cats = map[string]map[string]Definition{}
		l.kinds[kind] = cats
	}
	defs, ok := cats[category]
	if !ok {
		defs = map[string]Definition{}
		cats[category] = defs
	}
	if _, exists := defs[name]; exists {
		return false
	}
	if def.Values != nil {
		def.Values = append([]string(nil), def.Values...)
	}
	defs[name] = def
	return true
}

func (l *Library) Resolve(kind, category, name string) (Definition, bool) {
	def, ok := l.kinds[kind][category][name]
	return def, ok
}

// CategoriesFor enumerates the known categories of a kind, sorted. A
// category exists from the moment the first attribute was defined under it.
func (l *Library) CategoriesFor(kind string) []string {
	cats := l.kinds[kind]
	out := make([]string, 0, len(cats))
	for c := range cats {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// AttributesFor returns the attribute names of one category, sorted.
func (l *Library) AttributesFor(kind, category string) []string {
	defs := l.kinds[kind][category]
	out := make([]string, 0, len(defs))
	for name := range defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (l *Library) kindNames() []string {
	out := make([]string, 0, len(l.kinds))
	for k := range l.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Digest is a sha256 over the canonical JSON of all definitions, so
// collaborators can cheaply tell whether the library changed.
func (l *Library) Digest() string {
	type row struct {
		Kind     string     `json:"kind"`
		Category string     `json:"category"`
		Name     string     `json:"name"`
		Def      Definition `json:"def"`
	}
	var rows []row
	for _, kind := range l.kindNames() {
		for _, cat := range l.CategoriesFor(kind) {
			for _, name := range l.AttributesFor(kind, cat) {
				rows = append(rows, row{kind, cat, name, l.kinds[kind][cat][name]})
			}
		}
	}
	b, _ := json.Marshal(rows)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Format renders the library for the oracle's context: one line per
// definition, grouped by kind and category.
func (l *Library) Format() string {
	var b strings.Builder
	for _, kind := range l.kindNames() {
		for _, cat := range l.CategoriesFor(kind) {
			fmt.Fprintf(&b, "%s/%s:\n", kind, cat)
			for _, name := range l.AttributesFor(kind, cat) {
				def := l.kinds[kind][cat][name]
				fmt.Fprintf(&b, "  %s (%s): %s [%s]", name, def.Type, def.Description, def.Reference)
				if len(def.Values) > 0 {
					fmt.Fprintf(&b, " values=%s", strings.Join(def.Values, "|"))
				}
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}
