package entities

import (
	"fmt"
	"strings"
)

// Kind discriminates the entity variants held by the store.
type Kind string

const (
	KindItem     Kind = "item"
	KindNPC      Kind = "npc"
	KindLocation Kind = "location"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindItem, KindNPC, KindLocation:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// Attribute couples a mutable value with immutable metadata. The metadata
// half is shared by every entity of the same category using this attribute
// name; see the schema library.
type Attribute struct {
	Value       any      `json:"value"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Reference   string   `json:"reference"`
	Values      []string `json:"values,omitempty"`
}

// Entity is an item, NPC or location placed on the sparse per-region grid.
type Entity struct {
	ID                    string               `json:"id"`
	Name                  string               `json:"name"`
	VisualDescription     string               `json:"visual_description"`
	FunctionalDescription string               `json:"functional_description"`
	Category              string               `json:"category"`
	Rarity                string               `json:"rarity,omitempty"`
	Region                string               `json:"region"`
	X                     int                  `json:"x"`
	Y                     int                  `json:"y"`
	OwnAttributes         map[string]Attribute `json:"own_attributes"`
}

// Region is the lighter structural variant: no attributes, no image, just a
// named grid namespace.
type Region struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Clone deep-copies an entity so store internals never leak to callers.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	if e.OwnAttributes != nil {
		c.OwnAttributes = make(map[string]Attribute, len(e.OwnAttributes))
		for name, attr := range e.OwnAttributes {
			if attr.Values != nil {
				attr.Values = append([]string(nil), attr.Values...)
			}
			c.OwnAttributes[name] = attr
		}
	}
	return &c
}

// Slug normalizes a display name into the middle segment of an entity id.
func Slug(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
