package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"talecraft.ai/internal/protocol"
	"talecraft.ai/internal/sim/entities"
	"talecraft.ai/internal/sim/player"
	"talecraft.ai/internal/sim/schema"
	"talecraft.ai/internal/sim/timeline"
)

type scriptedOracle struct {
	decision protocol.Decision
	err      error
	calls    int
}

func (o *scriptedOracle) Decide(_ context.Context, _ *Snapshot) (protocol.Decision, error) {
	o.calls++
	if o.err != nil {
		return protocol.Decision{}, o.err
	}
	return o.decision, nil
}

type fakeSpawner struct {
	fail bool
	seq  int
}

func (f *fakeSpawner) Generate(_ context.Context, req SpawnRequest) (*entities.Entity, error) {
	if f.fail {
		return nil, fmt.Errorf("image backend unavailable")
	}
	f.seq++
	return &entities.Entity{
		ID:       fmt.Sprintf("%s_spawned_%03d", req.Kind, f.seq),
		Name:     req.Prompt,
		Category: "misc",
		Region:   req.Region,
		X:        req.X,
		Y:        req.Y,
	}, nil
}

type fixture struct {
	engine  *Engine
	tl      *timeline.Log
	store   *entities.Store
	lib     *schema.Library
	pl      *player.State
	oracle  *scriptedOracle
	spawner *fakeSpawner
}

func newFixture(t *testing.T, oracle *scriptedOracle) *fixture {
	t.Helper()
	tl := timeline.NewLog()
	store := entities.NewStore()
	lib := schema.NewLibrary()
	pl := player.New(player.Status{Health: 80, MaxHealth: 100, Energy: 50, MaxEnergy: 60})
	if err := pl.DefineStat("perception", [5]string{"dull", "alert", "keen", "sharp", "uncanny"}, 50, 1); err != nil {
		t.Fatalf("define stat: %v", err)
	}

	if err := store.AddRegion(&entities.Region{ID: "region_a", Name: "The Lowlands"}); err != nil {
		t.Fatalf("region: %v", err)
	}
	if err := store.Add(&entities.Entity{
		ID: "item_sword_001", Name: "Rusted Sword", Category: "weapon",
		Region: "region_a", X: 2, Y: 3,
	}, entities.KindItem, "worldgen"); err != nil {
		t.Fatalf("add sword: %v", err)
	}
	if err := store.Add(&entities.Entity{
		ID: "npc_hans_001", Name: "Hans", Category: "merchant",
		Region: "region_a", X: 1, Y: 1,
	}, entities.KindNPC, "worldgen"); err != nil {
		t.Fatalf("add hans: %v", err)
	}

	spawner := &fakeSpawner{}
	eng, err := New(Config{}, Deps{
		Timeline: tl,
		Store:    store,
		Library:  lib,
		Player:   pl,
		World:    &Binding{Store: store, Player: pl, Timeline: tl},
		Spawner:  spawner,
		Oracle:   oracle,
		Rules:    "no resurrection without cost",
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return &fixture{engine: eng, tl: tl, store: store, lib: lib, pl: pl, oracle: oracle, spawner: spawner}
}

func baseDecision() protocol.Decision {
	return protocol.Decision{
		TurnGoal:        protocol.TurnGoal{Text: "reach the vault", ChangeReason: "the map points there"},
		TurnProgression: "Dusk settles over the lowlands.",
	}
}

func TestRunTurn_MoveScenario(t *testing.T) {
	d := baseDecision()
	d.EntityMoves = []protocol.MoveEffect{{
		EntityID: "item_sword_001", EntityType: "item",
		NewRegion: "region_a", NewX: 5, NewY: 5, ChangeReason: "fled the battle",
	}}
	f := newFixture(t, &scriptedOracle{decision: d})

	res, err := f.engine.RunTurn(context.Background())
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	if res.Moved != 1 || len(res.Skipped) != 0 {
		t.Fatalf("result = %+v", res)
	}

	if got := f.store.At("region_a", 2, 3); len(got.Items) != 0 {
		t.Fatalf("sword still at stale coords")
	}
	got := f.store.At("region_a", 5, 5)
	if len(got.Items) != 1 || got.Items[0].ID != "item_sword_001" {
		t.Fatalf("sword not at new coords: %+v", got.Items)
	}

	h := f.store.History("item_sword_001")
	if len(h) != 2 {
		t.Fatalf("history records = %d, want 2 (create + move)", len(h))
	}
	if h[1].Reason != "fled the battle" {
		t.Fatalf("move reason = %q", h[1].Reason)
	}

	moves := f.tl.Query(timeline.Query{All: []timeline.Tag{
		timeline.Event("entity_change"), timeline.Actor("item_sword_001"),
	}})
	if len(moves) != 1 {
		t.Fatalf("entity_change entries = %d, want 1", len(moves))
	}
}

func TestRunTurn_DefineAttributeScenario(t *testing.T) {
	d := baseDecision()
	d.AttributeChanges = []protocol.AttributeEffect{{
		Op: protocol.OpDefineAttribute, EntityID: "npc_hans_001", EntityType: "npc",
		AttributeName: "morale", NewValue: float64(40), ChangeReason: "shaken by the raid",
		Definition: &protocol.AttributeDef{
			Type: "integer", Description: "willingness to keep trading",
			Reference: "0 broken, 100 fearless", Default: float64(50),
		},
	}}
	f := newFixture(t, &scriptedOracle{decision: d})

	if _, err := f.engine.RunTurn(context.Background()); err != nil {
		t.Fatalf("run turn: %v", err)
	}

	def, ok := f.lib.Resolve("npc", "merchant", "morale")
	if !ok || def.Type != "integer" {
		t.Fatalf("library definition missing: %+v %v", def, ok)
	}
	if attrs := f.lib.AttributesFor("npc", "merchant"); len(attrs) != 1 {
		t.Fatalf("library grew wrong: %v", attrs)
	}

	hans, _ := f.store.ByID(entities.KindNPC, "npc_hans_001")
	if got := hans.OwnAttributes["morale"].Value; got != float64(40) {
		t.Fatalf("morale value = %v, want 40", got)
	}
	if hans.OwnAttributes["morale"].Reference != "0 broken, 100 fearless" {
		t.Fatalf("attribute metadata not attached: %+v", hans.OwnAttributes["morale"])
	}
}

func TestRunTurn_DefineSeedsDefaultWhenNoValue(t *testing.T) {
	d := baseDecision()
	d.AttributeChanges = []protocol.AttributeEffect{{
		Op: protocol.OpDefineAttribute, EntityID: "npc_hans_001", EntityType: "npc",
		AttributeName: "morale", ChangeReason: "first assessment",
		Definition: &protocol.AttributeDef{
			Type: "integer", Description: "d", Reference: "r", Default: float64(50),
		},
	}}
	f := newFixture(t, &scriptedOracle{decision: d})
	if _, err := f.engine.RunTurn(context.Background()); err != nil {
		t.Fatalf("run turn: %v", err)
	}
	hans, _ := f.store.ByID(entities.KindNPC, "npc_hans_001")
	if got := hans.OwnAttributes["morale"].Value; got != float64(50) {
		t.Fatalf("seeded value = %v, want default 50", got)
	}
}

func TestRunTurn_UpdateAttributeValue(t *testing.T) {
	d := baseDecision()
	d.AttributeChanges = []protocol.AttributeEffect{{
		Op: protocol.OpUpdateAttribute, EntityID: "npc_hans_001", EntityType: "npc",
		AttributeName: "morale", NewValue: float64(70), ChangeReason: "good sales",
	}}
	f := newFixture(t, &scriptedOracle{decision: d})
	f.lib.Define("npc", "merchant", "morale", schema.Definition{Type: "integer", Description: "d", Reference: "r"})

	if _, err := f.engine.RunTurn(context.Background()); err != nil {
		t.Fatalf("run turn: %v", err)
	}
	hans, _ := f.store.ByID(entities.KindNPC, "npc_hans_001")
	if got := hans.OwnAttributes["morale"].Value; got != float64(70) {
		t.Fatalf("morale = %v, want 70", got)
	}

	// One attribute_change timeline entry.
	entries := f.tl.Query(timeline.Query{All: []timeline.Tag{timeline.Event("attribute_change")}})
	if len(entries) != 1 {
		t.Fatalf("attribute_change entries = %d", len(entries))
	}
}

func TestRunTurn_TransportFailureLeavesTurnUntouched(t *testing.T) {
	f := newFixture(t, &scriptedOracle{err: fmt.Errorf("connection refused")})
	before := f.engine.CurrentTurn()

	_, err := f.engine.RunTurn(context.Background())
	if err == nil {
		t.Fatalf("transport failure swallowed")
	}
	var derr *protocol.DecisionError
	if !errors.As(err, &derr) || derr.Code != protocol.ErrTransport {
		t.Fatalf("error = %v", err)
	}
	if f.engine.CurrentTurn() != before {
		t.Fatalf("turn advanced on transport failure")
	}
	failed := f.tl.Query(timeline.Query{All: []timeline.Tag{timeline.Event("turn_failed")}})
	if len(failed) != 1 {
		t.Fatalf("turn_failed entries = %d, want 1", len(failed))
	}
	if f.engine.CurrentPhase() != PhaseIdle {
		t.Fatalf("phase = %v after failure", f.engine.CurrentPhase())
	}
}

func TestRunTurn_ValidationFailureTouchesNoStore(t *testing.T) {
	d := baseDecision()
	d.TurnGoal.ChangeReason = ""
	d.EntityMoves = []protocol.MoveEffect{{
		EntityID: "item_sword_001", EntityType: "item",
		NewRegion: "region_a", NewX: 5, NewY: 5, ChangeReason: "fled",
	}}
	f := newFixture(t, &scriptedOracle{decision: d})

	entitiesBefore := marshal(t, f.store.All(entities.KindItem))
	npcsBefore := marshal(t, f.store.All(entities.KindNPC))
	libBefore := f.lib.Digest()
	turnBefore := f.engine.CurrentTurn()

	_, err := f.engine.RunTurn(context.Background())
	if err == nil {
		t.Fatalf("invalid decision executed")
	}

	if got := marshal(t, f.store.All(entities.KindItem)); got != entitiesBefore {
		t.Fatalf("item store changed:\n%s\nvs\n%s", got, entitiesBefore)
	}
	if got := marshal(t, f.store.All(entities.KindNPC)); got != npcsBefore {
		t.Fatalf("npc store changed")
	}
	if f.lib.Digest() != libBefore {
		t.Fatalf("schema library changed")
	}
	if f.engine.CurrentTurn() != turnBefore {
		t.Fatalf("turn advanced on validation failure")
	}
	// The only timeline trace is the failure record itself.
	if effects := f.tl.Query(timeline.Query{All: []timeline.Tag{timeline.Event("entity_change")}}); len(effects) != 0 {
		t.Fatalf("effects applied before validation verdict")
	}
}

func TestRunTurn_StaleEntitySkippedRestProceeds(t *testing.T) {
	d := baseDecision()
	d.EntityMoves = []protocol.MoveEffect{
		{EntityID: "item_ghost_999", EntityType: "item", NewRegion: "region_a", NewX: 1, NewY: 1, ChangeReason: "haunting"},
		{EntityID: "item_sword_001", EntityType: "item", NewRegion: "region_a", NewX: 7, NewY: 7, ChangeReason: "carried off"},
	}
	f := newFixture(t, &scriptedOracle{decision: d})

	res, err := f.engine.RunTurn(context.Background())
	if err != nil {
		t.Fatalf("per-effect failure aborted the turn: %v", err)
	}
	if res.Moved != 1 || len(res.Skipped) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Skipped[0].Code != protocol.ErrStaleEntity {
		t.Fatalf("skip code = %q", res.Skipped[0].Code)
	}
	if f.engine.CurrentTurn() != 2 {
		t.Fatalf("turn did not advance past recoverable failure")
	}
}

func TestRunTurn_SpawnFailureIsLocal(t *testing.T) {
	d := baseDecision()
	d.EntityGeneration = []protocol.SpawnEffect{
		{Type: "item", Prompt: "a dented lantern", Region: "region_a", X: 0, Y: 0, ChangeReason: "scattered loot"},
	}
	d.StatChanges = []protocol.StatEffect{{StatName: "perception", Delta: 3, ChangeReason: "noticed the ambush"}}
	f := newFixture(t, &scriptedOracle{decision: d})
	f.spawner.fail = true

	res, err := f.engine.RunTurn(context.Background())
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	if len(res.SpawnedIDs) != 0 || len(res.Skipped) != 1 || res.Skipped[0].Code != protocol.ErrSpawnFailed {
		t.Fatalf("result = %+v", res)
	}
	// The rest of the decision still executed.
	s, _ := f.pl.Stat("perception")
	if s.Value != 53 {
		t.Fatalf("stat delta not applied: %+v", s)
	}
}

func TestRunTurn_GoalTaggedForNextTurn(t *testing.T) {
	f := newFixture(t, &scriptedOracle{decision: baseDecision()})
	if _, err := f.engine.RunTurn(context.Background()); err != nil {
		t.Fatalf("run turn: %v", err)
	}
	goals := f.tl.Query(timeline.Query{All: []timeline.Tag{timeline.Event("turn_goal")}})
	if len(goals) != 1 {
		t.Fatalf("turn_goal entries = %d", len(goals))
	}
	if goals[0].Turn != 2 {
		t.Fatalf("goal tagged turn %d, want 2", goals[0].Turn)
	}
	// Summary stays on the executed turn.
	summaries := f.tl.Query(timeline.Query{All: []timeline.Tag{timeline.Event("turn_summary")}})
	if len(summaries) != 1 || summaries[0].Turn != 1 {
		t.Fatalf("summary entries = %+v", summaries)
	}
}

func TestRunTurn_StatusAndStatDeltas(t *testing.T) {
	d := baseDecision()
	d.StatusChange = &protocol.StatusEffect{Health: -30, Energy: 20, ChangeReason: "ambushed at dusk"}
	d.StatChanges = []protocol.StatEffect{
		{StatName: "perception", Delta: 60, ChangeReason: "survived"},
		{StatName: "charisma", Delta: 5, ChangeReason: "unknown stat"},
	}
	f := newFixture(t, &scriptedOracle{decision: d})

	res, err := f.engine.RunTurn(context.Background())
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	st := f.pl.Status()
	if st.Health != 50 || st.Energy != 60 {
		t.Fatalf("status = %+v", st)
	}
	s, _ := f.pl.Stat("perception")
	if s.Tier != 2 || s.Value != 10 {
		t.Fatalf("perception rolled to %d/%d, want tier 2 value 10", s.Tier, s.Value)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Code != protocol.ErrUnknownStat {
		t.Fatalf("unknown stat not skipped: %+v", res.Skipped)
	}
}

func TestRunTurn_RejectsReentrancy(t *testing.T) {
	f := newFixture(t, &scriptedOracle{decision: baseDecision()})
	var nested error
	f.engine.OnTurnExecuted(func(TurnResult) {
		_, nested = f.engine.RunTurn(context.Background())
	})
	if _, err := f.engine.RunTurn(context.Background()); err != nil {
		t.Fatalf("outer turn: %v", err)
	}
	if nested == nil {
		t.Fatalf("nested turn accepted while one was in flight")
	}
	var derr *protocol.DecisionError
	if !errors.As(nested, &derr) || derr.Code != protocol.ErrTurnInFlight {
		t.Fatalf("nested error = %v", nested)
	}
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}
