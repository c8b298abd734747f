package engine

import (
	"context"
	"testing"

	"talecraft.ai/internal/sim/entities"
	"talecraft.ai/internal/sim/schema"
)

func TestBuildSnapshot_SummariesCarryValuesOnly(t *testing.T) {
	f := newFixture(t, &scriptedOracle{decision: baseDecision()})
	e, _ := f.store.ByID(entities.KindNPC, "npc_hans_001")
	e.OwnAttributes = map[string]entities.Attribute{
		"morale": {Value: 40, Type: "integer", Description: "long metadata", Reference: "long reference"},
	}
	if err := f.store.Update(e, entities.KindNPC, "seed", "test"); err != nil {
		t.Fatalf("update: %v", err)
	}

	snap := f.engine.BuildSnapshot()
	if snap.Turn != 1 || snap.Rules == "" {
		t.Fatalf("snapshot header = %+v", snap)
	}
	if len(snap.Entities) != 2 {
		t.Fatalf("entities = %d", len(snap.Entities))
	}
	var hans *EntitySummary
	for i := range snap.Entities {
		if snap.Entities[i].ID == "npc_hans_001" {
			hans = &snap.Entities[i]
		}
	}
	if hans == nil {
		t.Fatalf("hans missing from snapshot")
	}
	// Values only; the metadata lives in the attribute catalog text.
	if hans.Attributes["morale"] != 40 {
		t.Fatalf("morale = %v", hans.Attributes["morale"])
	}
	if len(snap.Regions) != 1 || snap.Regions[0].ID != "region_a" {
		t.Fatalf("regions = %+v", snap.Regions)
	}
	if len(snap.Player.Stats) != 1 || snap.Player.Stats[0].TierName != "dull" {
		t.Fatalf("player = %+v", snap.Player)
	}
}

func TestBuildSnapshot_WindowsSplitCurrentAndRecent(t *testing.T) {
	f := newFixture(t, &scriptedOracle{decision: baseDecision()})
	// Drive three turns so turn 4 has real lookback.
	for i := 0; i < 3; i++ {
		if _, err := f.engine.RunTurn(context.Background()); err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
	}
	snap := f.engine.BuildSnapshot()
	if snap.Turn != 4 {
		t.Fatalf("turn = %d", snap.Turn)
	}
	// The goal for turn 4 was written during turn 3's execution.
	if len(snap.CurrentTurn) != 1 {
		t.Fatalf("current turn slice = %+v", snap.CurrentTurn)
	}
	for _, s := range snap.RecentTurns {
		if s.Turn >= 4 {
			t.Fatalf("recent window leaked current turn: %+v", s)
		}
	}
	if len(snap.RecentTurns) == 0 {
		t.Fatalf("no lookback context")
	}
}

func TestBuildSnapshot_IsReadOnly(t *testing.T) {
	f := newFixture(t, &scriptedOracle{decision: baseDecision()})
	f.lib.Define("npc", "merchant", "morale", schema.Definition{Type: "integer", Description: "d", Reference: "r"})
	tlBefore := f.tl.Len()
	libBefore := f.lib.Digest()

	snap := f.engine.BuildSnapshot()
	// Mutating the snapshot must not reach the stores.
	if len(snap.Entities) > 0 {
		snap.Entities[0].Name = "defaced"
	}
	snap.Regions = append(snap.Regions, RegionSummary{ID: "region_fake"})

	if f.tl.Len() != tlBefore {
		t.Fatalf("snapshot building wrote to the timeline")
	}
	if f.lib.Digest() != libBefore {
		t.Fatalf("snapshot building changed the library")
	}
	e, _ := f.store.ByID(entities.KindItem, "item_sword_001")
	if e.Name != "Rusted Sword" {
		t.Fatalf("snapshot mutation leaked: %q", e.Name)
	}
	if _, ok := f.store.RegionByID("region_fake"); ok {
		t.Fatalf("snapshot mutation created a region")
	}
}