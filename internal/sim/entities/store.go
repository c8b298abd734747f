package entities

import (
	"fmt"
	"log"
	"sort"
	"time"
)

// DefaultHistoryLimit bounds per-entity change history.
const DefaultHistoryLimit = 100

// Occupants is the content of one grid cell, split by variant. Slices are
// always non-nil so callers can range without nil checks.
type Occupants struct {
	Locations []*Entity `json:"locations"`
	NPCs      []*Entity `json:"npcs"`
	Items     []*Entity `json:"items"`
}

type cell struct {
	locations []string
	npcs      []string
	items     []string
}

// Store is the authoritative registry of world entities plus the spatial
// index. Single-threaded by design: the turn engine owns it during
// execution, and between turns there is no concurrent writer.
type Store struct {
	byKind  map[Kind]map[string]*Entity
	grid    map[string]*cell
	regions map[string]*Region

	history      map[string][]ChangeRecord
	historyLimit int

	nextSeq map[string]uint64

	logger *log.Logger // may be nil
	sink   ChangeSink  // may be nil
}

func NewStore() *Store {
	return &Store{
		byKind: map[Kind]map[string]*Entity{
			KindItem:     {},
			KindNPC:      {},
			KindLocation: {},
		},
		grid:         map[string]*cell{},
		regions:      map[string]*Region{},
		history:      map[string][]ChangeRecord{},
		historyLimit: DefaultHistoryLimit,
		nextSeq:      map[string]uint64{},
	}
}

func (s *Store) SetLogger(l *log.Logger)    { s.logger = l }
func (s *Store) SetChangeSink(c ChangeSink) { s.sink = c }

// SetHistoryLimit overrides the per-entity history bound. Zero or negative
// restores the default.
func (s *Store) SetHistoryLimit(n int) {
	if n <= 0 {
		n = DefaultHistoryLimit
	}
	s.historyLimit = n
}

func posKey(region string, x, y int) string {
	return fmt.Sprintf("%s:%d:%d", region, x, y)
}

// NewID mints a category-prefixed, sequentially numbered id, e.g.
// "item_sword_001". Sequences run per kind+slug so names stay legible.
func (s *Store) NewID(kind Kind, name string) string {
	slug := Slug(name)
	if slug == "" {
		slug = "unnamed"
	}
	key := string(kind) + "_" + slug
	s.nextSeq[key]++
	return fmt.Sprintf("%s_%03d", key, s.nextSeq[key])
}

// At is the O(1) spatial lookup. Unoccupied cells yield empty, non-nil
// collections.
func (s *Store) At(region string, x, y int) Occupants {
	occ := Occupants{Locations: []*Entity{}, NPCs: []*Entity{}, Items: []*Entity{}}
	c := s.grid[posKey(region, x, y)]
	if c == nil {
		return occ
	}
	for _, id := range c.locations {
		if e := s.byKind[KindLocation][id]; e != nil {
			occ.Locations = append(occ.Locations, e.Clone())
		}
	}
	for _, id := range c.npcs {
		if e := s.byKind[KindNPC][id]; e != nil {
			occ.NPCs = append(occ.NPCs, e.Clone())
		}
	}
	for _, id := range c.items {
		if e := s.byKind[KindItem][id]; e != nil {
			occ.Items = append(occ.Items, e.Clone())
		}
	}
	return occ
}

// ByID returns a snapshot copy. Mutations only take effect when handed back
// through Update; that invariant is what keeps history complete.
func (s *Store) ByID(kind Kind, id string) (*Entity, bool) {
	e, ok := s.byKind[kind][id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// All returns snapshot copies of every entity of a kind, sorted by id.
func (s *Store) All(kind Kind) []*Entity {
	m := s.byKind[kind]
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id].Clone())
	}
	return out
}

func (s *Store) Count(kind Kind) int { return len(s.byKind[kind]) }

// Add inserts into the flat registry and the spatial index. The id must be
// fresh; creation produces a history record with a nil previous state.
func (s *Store) Add(e *Entity, kind Kind, source string) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("add %s: missing id", kind)
	}
	if _, ok := s.byKind[kind]; !ok {
		return fmt.Errorf("add %s: unknown kind", kind)
	}
	if _, exists := s.byKind[kind][e.ID]; exists {
		return fmt.Errorf("add %s: id %q already exists", kind, e.ID)
	}
	stored := e.Clone()
	s.byKind[kind][e.ID] = stored
	s.indexAdd(stored, kind)
	s.record(ChangeRecord{
		EntityID:     e.ID,
		EntityType:   kind,
		Timestamp:    time.Now().UTC(),
		New:          stored.Clone(),
		ChangeSource: source,
		Changed:      []string{"created"},
	})
	return nil
}

// Update is the only legal mutation path. It records the before/after diff
// before swapping state in, and re-indexes spatially when coordinates
// changed (remove from the old cell, insert keyed by the new coordinates).
func (s *Store) Update(e *Entity, kind Kind, reason, source string) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("update %s: missing id", kind)
	}
	prev, ok := s.byKind[kind][e.ID]
	if !ok {
		// Non-fatal by contract: the caller logs and skips.
		return fmt.Errorf("update %s: id %q not found", kind, e.ID)
	}
	next := e.Clone()
	s.record(ChangeRecord{
		EntityID:     e.ID,
		EntityType:   kind,
		Timestamp:    time.Now().UTC(),
		Previous:     prev.Clone(),
		New:          next.Clone(),
		ChangeSource: source,
		Reason:       reason,
		Changed:      diffFields(prev, next),
	})
	if prev.Region != next.Region || prev.X != next.X || prev.Y != next.Y {
		s.indexRemove(prev, kind)
		s.indexAdd(next, kind)
	}
	s.byKind[kind][e.ID] = next
	return nil
}

// Remove deletes from the registry and from every cell referencing the id.
// The linear scan is fine at this entity count.
func (s *Store) Remove(id string, kind Kind) error {
	if _, ok := s.byKind[kind][id]; !ok {
		return fmt.Errorf("remove %s: id %q not found", kind, id)
	}
	delete(s.byKind[kind], id)
	for key, c := range s.grid {
		c.locations = without(c.locations, id)
		c.npcs = without(c.npcs, id)
		c.items = without(c.items, id)
		if len(c.locations)+len(c.npcs)+len(c.items) == 0 {
			delete(s.grid, key)
		}
	}
	return nil
}

// History returns the bounded change history, oldest first.
func (s *Store) History(id string) []ChangeRecord {
	return append([]ChangeRecord(nil), s.history[id]...)
}

func (s *Store) AddRegion(r *Region) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("add region: missing id")
	}
	if _, exists := s.regions[r.ID]; exists {
		return fmt.Errorf("add region: id %q already exists", r.ID)
	}
	cp := *r
	s.regions[r.ID] = &cp
	return nil
}

func (s *Store) RegionByID(id string) (*Region, bool) {
	r, ok := s.regions[id]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

func (s *Store) Regions() []*Region {
	ids := make([]string, 0, len(s.regions))
	for id := range s.regions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Region, 0, len(ids))
	for _, id := range ids {
		cp := *s.regions[id]
		out = append(out, &cp)
	}
	return out
}

func (s *Store) record(rec ChangeRecord) {
	h := append(s.history[rec.EntityID], rec)
	if over := len(h) - s.historyLimit; over > 0 {
		h = h[over:]
	}
	s.history[rec.EntityID] = h
	if s.sink != nil {
		if err := s.sink.WriteChange(rec); err != nil && s.logger != nil {
			s.logger.Printf("history sink: %s: %v", rec.EntityID, err)
		}
	}
}

func (s *Store) indexAdd(e *Entity, kind Kind) {
	key := posKey(e.Region, e.X, e.Y)
	c := s.grid[key]
	if c == nil {
		c = &cell{}
		s.grid[key] = c
	}
	switch kind {
	case KindLocation:
		c.locations = append(c.locations, e.ID)
	case KindNPC:
		c.npcs = append(c.npcs, e.ID)
	case KindItem:
		c.items = append(c.items, e.ID)
	}
}

func (s *Store) indexRemove(e *Entity, kind Kind) {
	key := posKey(e.Region, e.X, e.Y)
	c := s.grid[key]
	if c == nil {
		return
	}
	switch kind {
	case KindLocation:
		c.locations = without(c.locations, e.ID)
	case KindNPC:
		c.npcs = without(c.npcs, e.ID)
	case KindItem:
		c.items = without(c.items, e.ID)
	}
	if len(c.locations)+len(c.npcs)+len(c.items) == 0 {
		delete(s.grid, key)
	}
}

func without(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
