package engine

import (
	"talecraft.ai/internal/sim/entities"
	"talecraft.ai/internal/sim/player"
	"talecraft.ai/internal/sim/timeline"
)

// Snapshot is the bounded view of world state handed to the oracle:
// entity summaries carry id/name/position/attribute values only, so prompt
// size stays proportional to the world, not to the metadata catalog.
type Snapshot struct {
	Turn             uint64           `json:"turn"`
	Rules            string           `json:"rules"`
	Regions          []RegionSummary  `json:"regions"`
	Entities         []EntitySummary  `json:"entities"`
	Player           PlayerSummary    `json:"player"`
	AttributeCatalog string           `json:"attribute_catalog"`
	CurrentTurn      []TimelineSlice  `json:"current_turn_events"`
	RecentTurns      []TimelineSlice  `json:"recent_events"`
}

type RegionSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type EntitySummary struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Kind       entities.Kind  `json:"kind"`
	Category   string         `json:"category"`
	Region     string         `json:"region"`
	X          int            `json:"x"`
	Y          int            `json:"y"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type PlayerSummary struct {
	Status player.Status `json:"status"`
	Stats  []StatSummary `json:"stats"`
}

type StatSummary struct {
	Name     string `json:"name"`
	Value    int    `json:"value"`
	Tier     int    `json:"tier"`
	TierName string `json:"tier_name"`
}

type TimelineSlice struct {
	Turn uint64 `json:"turn"`
	Text string `json:"text"`
}

// BuildSnapshot assembles the oracle context. Pure read-only: no store or
// timeline mutation may happen here.
func (e *Engine) BuildSnapshot() *Snapshot {
	snap := &Snapshot{
		Turn:             e.turn,
		Rules:            e.rules,
		AttributeCatalog: e.library.Format(),
	}

	for _, r := range e.store.Regions() {
		snap.Regions = append(snap.Regions, RegionSummary{ID: r.ID, Name: r.Name})
	}

	for _, kind := range []entities.Kind{entities.KindLocation, entities.KindNPC, entities.KindItem} {
		for _, ent := range e.store.All(kind) {
			s := EntitySummary{
				ID:       ent.ID,
				Name:     ent.Name,
				Kind:     kind,
				Category: ent.Category,
				Region:   ent.Region,
				X:        ent.X,
				Y:        ent.Y,
			}
			if len(ent.OwnAttributes) > 0 {
				s.Attributes = make(map[string]any, len(ent.OwnAttributes))
				for name, attr := range ent.OwnAttributes {
					s.Attributes[name] = attr.Value
				}
			}
			snap.Entities = append(snap.Entities, s)
		}
	}

	st := e.playerState.Status()
	summary := PlayerSummary{Status: st}
	for _, name := range e.playerState.StatNames() {
		s, _ := e.playerState.Stat(name)
		summary.Stats = append(summary.Stats, StatSummary{
			Name: name, Value: s.Value, Tier: s.Tier, TierName: s.TierName(),
		})
	}
	snap.Player = summary

	// Current turn entries, then the lookback window. The current turn is
	// excluded from the window so the oracle never reasons about its own
	// not-yet-applied decision.
	for _, entry := range e.timeline.Query(timeline.Query{Window: timeline.TurnOnly(e.turn)}) {
		snap.CurrentTurn = append(snap.CurrentTurn, TimelineSlice{Turn: entry.Turn, Text: entry.Text})
	}
	for _, entry := range e.timeline.Query(timeline.Query{Window: timeline.WorldWindow(e.turn, e.cfg.ContextWindowTurns)}) {
		snap.RecentTurns = append(snap.RecentTurns, TimelineSlice{Turn: entry.Turn, Text: entry.Text})
	}
	return snap
}
