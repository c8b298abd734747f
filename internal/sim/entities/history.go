package entities

import (
	"reflect"
	"sort"
	"time"
)

// ChangeRecord pairs a mutation with its before/after snapshots. Previous is
// nil for creation. Used for audit and debugging, never for gameplay logic.
type ChangeRecord struct {
	EntityID     string    `json:"entity_id"`
	EntityType   Kind      `json:"entity_type"`
	Timestamp    time.Time `json:"timestamp"`
	Previous     *Entity   `json:"previous,omitempty"`
	New          *Entity   `json:"new"`
	ChangeSource string    `json:"change_source"`
	Reason       string    `json:"reason,omitempty"`
	Changed      []string  `json:"changed,omitempty"`
}

// ChangeSink receives every change record, e.g. for compressed JSONL
// persistence. May be nil on the store.
type ChangeSink interface {
	WriteChange(ChangeRecord) error
}

// diffFields names the top-level fields that differ between two snapshots,
// including per-attribute value changes as "attr:<name>".
func diffFields(prev, next *Entity) []string {
	if prev == nil {
		return []string{"created"}
	}
	var out []string
	if prev.Name != next.Name {
		out = append(out, "name")
	}
	if prev.VisualDescription != next.VisualDescription {
		out = append(out, "visual_description")
	}
	if prev.FunctionalDescription != next.FunctionalDescription {
		out = append(out, "functional_description")
	}
	if prev.Category != next.Category {
		out = append(out, "category")
	}
	if prev.Rarity != next.Rarity {
		out = append(out, "rarity")
	}
	if prev.Region != next.Region || prev.X != next.X || prev.Y != next.Y {
		out = append(out, "position")
	}
	var attrs []string
	for name, attr := range next.OwnAttributes {
		// reflect.DeepEqual: attribute values may hold slices (array type).
		if old, ok := prev.OwnAttributes[name]; !ok || !reflect.DeepEqual(old.Value, attr.Value) {
			attrs = append(attrs, "attr:"+name)
		}
	}
	for name := range prev.OwnAttributes {
		if _, ok := next.OwnAttributes[name]; !ok {
			attrs = append(attrs, "attr:"+name)
		}
	}
	sort.Strings(attrs)
	return append(out, attrs...)
}
