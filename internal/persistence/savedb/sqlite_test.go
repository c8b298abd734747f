package savedb

import (
	"path/filepath"
	"testing"
	"time"

	"talecraft.ai/internal/sim/engine"
	"talecraft.ai/internal/sim/timeline"
)

func TestSaveDB_RecordTurnAndEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "save.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if db.SessionID() == "" {
		t.Fatalf("empty session id")
	}

	db.RecordTurn(engine.TurnResult{
		Turn:        1,
		NextTurn:    2,
		Progression: "the caravan reaches the ford",
		Goal:        "cross before nightfall",
		SpawnedIDs:  []string{"npc_ferryman_001"},
		Moved:       2,
	})
	if err := db.WriteEntry(timeline.Entry{
		ID: 1, Turn: 1, TagList: []string{"event:turn_summary", "origin:gamemaster"},
		Text: "the caravan reaches the ford", Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	db.Flush()

	turns, err := db.RecentTurns(10)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("turns = %+v", turns)
	}
	got := turns[0]
	if got.Turn != 1 || got.Goal != "cross before nightfall" || got.Spawned != 1 || got.Moved != 2 {
		t.Fatalf("row mismatch: %+v", got)
	}

	texts, err := db.EntriesForTurn(1)
	if err != nil {
		t.Fatalf("EntriesForTurn: %v", err)
	}
	if len(texts) != 1 || texts[0] != "the caravan reaches the ford" {
		t.Fatalf("entries = %v", texts)
	}
}

func TestSaveDB_NewestFirstAndSessionScoped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "save.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for turn := uint64(1); turn <= 3; turn++ {
		db.RecordTurn(engine.TurnResult{Turn: turn, Progression: "p", Goal: "g"})
	}
	db.Flush()
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A second open of the same file is a new session and sees none of the
	// old rows through the session-scoped reads.
	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	if db2.SessionID() == db.SessionID() {
		t.Fatalf("session id reused")
	}
	turns, err := db2.RecentTurns(10)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("leaked rows across sessions: %+v", turns)
	}

	db2.RecordTurn(engine.TurnResult{Turn: 1, Progression: "p", Goal: "g"})
	db2.RecordTurn(engine.TurnResult{Turn: 2, Progression: "p", Goal: "g"})
	db2.Flush()
	turns, err = db2.RecentTurns(1)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 1 || turns[0].Turn != 2 {
		t.Fatalf("expected newest turn first, got %+v", turns)
	}
}

func TestSaveDB_WritesAfterCloseAreNoOps(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "save.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	db.RecordTurn(engine.TurnResult{Turn: 9})
	if err := db.WriteEntry(timeline.Entry{ID: 9}); err != nil {
		t.Fatalf("WriteEntry after close: %v", err)
	}
}
