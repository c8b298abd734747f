package timeline

import "time"

// Entry is one immutable record of the causal log.
type Entry struct {
	ID        uint64    `json:"id"`
	Tags      TagSet    `json:"-"`
	TagList   []string  `json:"tags"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Turn      uint64    `json:"turn"`
}

// EntrySink receives every appended entry, e.g. for compressed JSONL
// persistence. May be nil.
type EntrySink interface {
	WriteEntry(Entry) error
}

// Log is the append-only, tag-indexed event history. Entries are never
// mutated or removed; insertion order is the only ordering.
type Log struct {
	entries []Entry
	nextID  uint64
	sink    EntrySink
}

func NewLog() *Log { return &Log{nextID: 1} }

func (l *Log) SetSink(s EntrySink) { l.sink = s }

// Append records an entry and returns it. It always succeeds; a failing
// sink is a persistence concern, not a simulation one.
func (l *Log) Append(tags TagSet, text string, turn uint64) Entry {
	e := Entry{
		ID:        l.nextID,
		Tags:      tags.Clone(),
		Text:      text,
		Timestamp: time.Now().UTC(),
		Turn:      turn,
	}
	e.TagList = e.Tags.Strings()
	l.nextID++
	l.entries = append(l.entries, e)
	if l.sink != nil {
		_ = l.sink.WriteEntry(e)
	}
	return e
}

func (l *Log) Len() int { return len(l.entries) }

// Window bounds lookback to turns in [From, To). A nil *Window on a query
// means unlimited lookback.
type Window struct {
	From uint64
	To   uint64
}

// WorldWindow selects the last lookback turns strictly before currentTurn,
// so context building never sees the turn whose decision is still pending.
func WorldWindow(currentTurn, lookback uint64) *Window {
	from := uint64(0)
	if currentTurn > lookback {
		from = currentTurn - lookback
	}
	return &Window{From: from, To: currentTurn}
}

// TurnOnly selects exactly one turn.
func TurnOnly(turn uint64) *Window {
	return &Window{From: turn, To: turn + 1}
}

// Query is a predicate over tags and turn window. All listed tags must be
// present, at least one of Any (when non-empty), and none of None.
type Query struct {
	All    []Tag
	Any    []Tag
	None   []Tag
	Window *Window
}

func (q Query) matches(e Entry) bool {
	if q.Window != nil && (e.Turn < q.Window.From || e.Turn >= q.Window.To) {
		return false
	}
	for _, t := range q.All {
		if !e.Tags.Has(t) {
			return false
		}
	}
	if len(q.Any) > 0 {
		hit := false
		for _, t := range q.Any {
			if e.Tags.Has(t) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, t := range q.None {
		if e.Tags.Has(t) {
			return false
		}
	}
	return true
}

// Query returns matching entries in insertion order. The result is a copy;
// callers cannot reach back into the log through it.
func (l *Log) Query(q Query) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if q.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// DialogueFor selects the history one oracle wrote about one actor: entries
// carrying both the oracle's own origin tag and the actor tag, unlimited
// lookback.
func DialogueFor(origin, actor Tag) Query {
	return Query{All: []Tag{origin, actor}}
}

// WorldContext selects surrounding-world entries for an oracle: anything
// matching the allow-listed event tags that the oracle did not write itself,
// within the given window.
func WorldContext(selfOrigin Tag, allowed []Tag, w *Window) Query {
	return Query{Any: allowed, None: []Tag{selfOrigin}, Window: w}
}
