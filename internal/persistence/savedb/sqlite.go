// Package savedb keeps a queryable SQLite index of the running game:
// session metadata, one row per executed turn, and the timeline entries.
// The JSONL logs remain the source of truth; this index exists for the
// dashboard and for offline inspection.
package savedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"talecraft.ai/internal/sim/engine"
	"talecraft.ai/internal/sim/timeline"
)

type SaveDB struct {
	db      *sql.DB
	session string

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTurn reqKind = iota + 1
	reqEntry
	reqFlush
)

type req struct {
	kind reqKind

	turn  engine.TurnResult
	entry timeline.Entry
	ack   chan struct{}
}

func Open(path string) (*SaveDB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	session := uuid.NewString()
	if _, err := db.Exec(
		`INSERT INTO sessions(id, started_at) VALUES(?, ?)`,
		session, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SaveDB{
		db:      db,
		session: session,
		// A turn produces a handful of rows; this covers many turns of burst.
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			session TEXT NOT NULL,
			turn INTEGER NOT NULL,
			progression TEXT NOT NULL,
			goal TEXT NOT NULL,
			spawned INTEGER NOT NULL,
			moved INTEGER NOT NULL,
			attributes_changed INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (session, turn)
		);`,
		`CREATE TABLE IF NOT EXISTS entries (
			session TEXT NOT NULL,
			id INTEGER NOT NULL,
			turn INTEGER NOT NULL,
			tags TEXT NOT NULL,
			text TEXT NOT NULL,
			at TEXT NOT NULL,
			PRIMARY KEY (session, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entries_turn ON entries(session, turn);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (s *SaveDB) SessionID() string { return s.session }

func (s *SaveDB) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordTurn indexes one executed turn. Non-blocking: if the writer falls
// behind the row is dropped; the JSONL logs keep the full record.
func (s *SaveDB) RecordTurn(res engine.TurnResult) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqTurn, turn: res}:
	default:
	}
}

// WriteEntry indexes one timeline entry. Implements the timeline sink.
func (s *SaveDB) WriteEntry(e timeline.Entry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEntry, entry: e}:
	default:
	}
	return nil
}

// Flush blocks until everything queued before the call is committed.
func (s *SaveDB) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	ack := make(chan struct{})
	s.ch <- req{kind: reqFlush, ack: ack}
	<-ack
}

// TurnRow is one indexed turn as read back from the database.
type TurnRow struct {
	Turn        uint64
	Progression string
	Goal        string
	Spawned     int
	Moved       int
}

// RecentTurns returns up to limit indexed turns of this session, newest
// first.
func (s *SaveDB) RecentTurns(limit int) ([]TurnRow, error) {
	rows, err := s.db.Query(
		`SELECT turn, progression, goal, spawned, moved FROM turns
		 WHERE session = ? ORDER BY turn DESC LIMIT ?`, s.session, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TurnRow
	for rows.Next() {
		var r TurnRow
		if err := rows.Scan(&r.Turn, &r.Progression, &r.Goal, &r.Spawned, &r.Moved); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// EntriesForTurn returns the indexed timeline texts of one turn, in append
// order.
func (s *SaveDB) EntriesForTurn(turn uint64) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT text FROM entries WHERE session = ? AND turn = ? ORDER BY id`,
		s.session, turn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SaveDB) loop() {
	ctx := context.Background()

	insertTurn, _ := s.db.Prepare(`INSERT OR REPLACE INTO turns(session,turn,progression,goal,spawned,moved,attributes_changed,skipped,raw_json,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertEntry, _ := s.db.Prepare(`INSERT OR REPLACE INTO entries(session,id,turn,tags,text,at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertTurn != nil {
			_ = insertTurn.Close()
		}
		if insertEntry != nil {
			_ = insertEntry.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 64
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.ack)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTurn:
			raw, _ := json.Marshal(r.turn)
			if insertTurn != nil {
				if _, err := tx.Stmt(insertTurn).Exec(
					s.session,
					int64(r.turn.Turn),
					r.turn.Progression,
					r.turn.Goal,
					len(r.turn.SpawnedIDs),
					r.turn.Moved,
					r.turn.AttributesChanged,
					len(r.turn.Skipped),
					string(raw),
					time.Now().UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqEntry:
			e := r.entry
			if insertEntry != nil {
				if _, err := tx.Stmt(insertEntry).Exec(
					s.session,
					int64(e.ID),
					int64(e.Turn),
					strings.Join(e.TagList, " "),
					e.Text,
					e.Timestamp.UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
