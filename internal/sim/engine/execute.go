package engine

import (
	"context"
	"fmt"

	"talecraft.ai/internal/protocol"
	"talecraft.ai/internal/sim/entities"
	"talecraft.ai/internal/sim/schema"
	"talecraft.ai/internal/sim/timeline"
)

// TurnResult summarizes one executed turn for callers, the dashboard and
// the save index.
type TurnResult struct {
	Turn        uint64 `json:"turn"`
	NextTurn    uint64 `json:"next_turn"`
	Progression string `json:"progression"`
	Goal        string `json:"goal"`

	SpawnedIDs        []string        `json:"spawned_ids,omitempty"`
	Moved             int             `json:"moved"`
	AttributesChanged int             `json:"attributes_changed"`
	Skipped           []SkippedEffect `json:"skipped,omitempty"`
}

// SkippedEffect records one locally-recovered per-effect failure.
type SkippedEffect struct {
	Step   string `json:"step"`
	Ref    string `json:"ref"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// execute applies a validated decision in fixed order: summary, spawns,
// moves, attribute changes, status delta, stat deltas, next-turn goal.
// Per-effect failures are logged and skipped; they never abort the turn.
func (e *Engine) execute(ctx context.Context, turn uint64, d protocol.Decision) *TurnResult {
	res := &TurnResult{Turn: turn, Progression: d.TurnProgression, Goal: d.TurnGoal.Text}
	origin := timeline.Origin(e.cfg.Origin)

	// (1) Narrative summary.
	e.world.AppendTimeline(
		timeline.NewTagSet(timeline.Event("turn_summary"), origin, timeline.Actor("player")),
		d.TurnProgression, turn)

	// (2) Entity generation.
	for i, sp := range d.EntityGeneration {
		ref := fmt.Sprintf("entity_generation[%d]", i)
		kind, err := entities.ParseKind(sp.Type)
		if err != nil {
			e.skip(res, "spawn", ref, protocol.ErrSpawnFailed, err)
			continue
		}
		if e.spawner == nil {
			e.skip(res, "spawn", ref, protocol.ErrSpawnFailed, fmt.Errorf("no spawner configured"))
			continue
		}
		ent, err := e.spawner.Generate(ctx, SpawnRequest{
			Kind: kind, Prompt: sp.Prompt, Region: sp.Region, X: sp.X, Y: sp.Y,
		})
		if err != nil {
			e.skip(res, "spawn", ref, protocol.ErrSpawnFailed, err)
			continue
		}
		if err := e.world.AddEntity(ent, kind, e.cfg.Origin); err != nil {
			e.skip(res, "spawn", ref, protocol.ErrSpawnFailed, err)
			continue
		}
		res.SpawnedIDs = append(res.SpawnedIDs, ent.ID)
		e.world.AppendTimeline(
			timeline.NewTagSet(timeline.Event("entity_spawned"), origin, timeline.Location(sp.Region), timeline.Actor(ent.ID)),
			fmt.Sprintf("%s appeared in %s at (%d,%d): %s", ent.Name, sp.Region, sp.X, sp.Y, sp.ChangeReason),
			turn)
	}

	// (3) Entity moves.
	for i, mv := range d.EntityMoves {
		ref := fmt.Sprintf("entity_moves[%d]", i)
		kind := entities.Kind(mv.EntityType)
		ent, ok := e.world.EntityByID(kind, mv.EntityID)
		if !ok {
			e.skip(res, "move", ref, protocol.ErrStaleEntity, fmt.Errorf("%s %q not found", kind, mv.EntityID))
			continue
		}
		ent.Region, ent.X, ent.Y = mv.NewRegion, mv.NewX, mv.NewY
		if err := e.world.UpdateEntity(ent, kind, mv.ChangeReason, e.cfg.Origin); err != nil {
			e.skip(res, "move", ref, protocol.ErrStaleEntity, err)
			continue
		}
		res.Moved++
		e.world.AppendTimeline(
			timeline.NewTagSet(timeline.Event("entity_change"), origin, timeline.Location(mv.NewRegion), timeline.Actor(mv.EntityID)),
			fmt.Sprintf("%s moved to %s (%d,%d): %s", ent.Name, mv.NewRegion, mv.NewX, mv.NewY, mv.ChangeReason),
			turn)
	}

	// (4) Attribute changes.
	for i, ac := range d.AttributeChanges {
		ref := fmt.Sprintf("attribute_changes[%d]", i)
		if err := e.applyAttributeChange(turn, ac); err != nil {
			e.skip(res, "attribute", ref, protocol.ErrStaleEntity, err)
			continue
		}
		res.AttributesChanged++
	}

	// (5) Player status delta.
	if d.StatusChange != nil {
		e.world.UpdatePlayerStatus(d.StatusChange.Health, d.StatusChange.Energy, d.StatusChange.ChangeReason)
	}

	// (6) Player stat deltas.
	for i, sc := range d.StatChanges {
		if err := e.world.UpdatePlayerStat(sc.StatName, sc.Delta, sc.ChangeReason); err != nil {
			e.skip(res, "stat", fmt.Sprintf("stat_changes[%d]", i), protocol.ErrUnknownStat, err)
		}
	}

	// (7) Closing move: the goal belongs to the turn being set up, not the
	// one just executed.
	e.world.AppendTimeline(
		timeline.NewTagSet(timeline.Event("turn_goal"), origin),
		d.TurnGoal.Text, turn+1)

	return res
}

// applyAttributeChange branches on the explicit op tag: DEFINE registers
// metadata (first writer wins) and seeds a value; UPDATE rewrites the value
// of an attribute whose definition is already known.
func (e *Engine) applyAttributeChange(turn uint64, ac protocol.AttributeEffect) error {
	kind := entities.Kind(ac.EntityType)
	ent, ok := e.world.EntityByID(kind, ac.EntityID)
	if !ok {
		return fmt.Errorf("%s %q not found", kind, ac.EntityID)
	}
	if ent.OwnAttributes == nil {
		ent.OwnAttributes = map[string]entities.Attribute{}
	}

	var value any
	switch ac.Op {
	case protocol.OpDefineAttribute:
		e.library.Define(string(kind), ent.Category, ac.AttributeName, libraryDef(ac.Definition))
		value = ac.NewValue
		if value == nil {
			value = ac.Definition.Default
		}
	case protocol.OpUpdateAttribute:
		if _, exists := ent.OwnAttributes[ac.AttributeName]; !exists {
			// The entity may lag behind its category: attach the known
			// definition. With no definition at all the effect is stale.
			if _, known := e.library.Resolve(string(kind), ent.Category, ac.AttributeName); !known {
				return fmt.Errorf("attribute %q undefined for %s/%s", ac.AttributeName, kind, ent.Category)
			}
		}
		value = ac.NewValue
	default:
		return fmt.Errorf("unknown attribute op %q", ac.Op)
	}

	// The authoritative metadata comes from the library, not the effect:
	// first writer wins even when a later DEFINE disagrees.
	def, _ := e.library.Resolve(string(kind), ent.Category, ac.AttributeName)
	ent.OwnAttributes[ac.AttributeName] = entities.Attribute{
		Value:       value,
		Type:        def.Type,
		Description: def.Description,
		Reference:   def.Reference,
		Values:      def.Values,
	}
	if err := e.world.UpdateEntity(ent, kind, ac.ChangeReason, e.cfg.Origin); err != nil {
		return err
	}
	e.world.AppendTimeline(
		timeline.NewTagSet(timeline.Event("attribute_change"), timeline.Origin(e.cfg.Origin), timeline.Location(ent.Region), timeline.Actor(ac.EntityID)),
		fmt.Sprintf("%s: %s is now %v (%s)", ent.Name, ac.AttributeName, value, ac.ChangeReason),
		turn)
	return nil
}

func libraryDef(d *protocol.AttributeDef) schema.Definition {
	return schema.Definition{
		Type:        d.Type,
		Description: d.Description,
		Reference:   d.Reference,
		Values:      d.Values,
	}
}

func (e *Engine) skip(res *TurnResult, step, ref, code string, cause error) {
	res.Skipped = append(res.Skipped, SkippedEffect{Step: step, Ref: ref, Code: code, Reason: cause.Error()})
	if e.logger != nil {
		e.logger.Printf("turn %d: skipped %s %s (%s): %v", res.Turn, step, ref, code, cause)
	}
}
