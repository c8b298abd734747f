package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"talecraft.ai/internal/protocol"
	"talecraft.ai/internal/sim/entities"
	"talecraft.ai/internal/sim/player"
	"talecraft.ai/internal/sim/schema"
	"talecraft.ai/internal/sim/timeline"
)

// Phase is the turn state machine position. A turn either runs to Executing
// and completes, or ends in Failed with the turn counter untouched; both
// paths settle back to Idle before the next turn may start.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBuildingContext
	PhaseAwaitingDecision
	PhaseValidating
	PhaseExecuting
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseBuildingContext:
		return "BUILDING_CONTEXT"
	case PhaseAwaitingDecision:
		return "AWAITING_DECISION"
	case PhaseValidating:
		return "VALIDATING"
	case PhaseExecuting:
		return "EXECUTING"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	// Origin name stamped on every timeline entry this engine writes.
	Origin string
	// Lookback turns for world context in the snapshot.
	ContextWindowTurns uint64
}

func (c *Config) applyDefaults() {
	if c.Origin == "" {
		c.Origin = "gamemaster"
	}
	if c.ContextWindowTurns == 0 {
		c.ContextWindowTurns = 3
	}
}

// Engine orchestrates one turn at a time: snapshot, oracle call, structural
// validation, fixed-order execution, turn advance. Reads go straight to the
// stores; every write goes through the Collaborator seam.
type Engine struct {
	cfg Config

	timeline    *timeline.Log
	store       *entities.Store
	library     *schema.Library
	playerState *player.State

	world   Collaborator
	spawner Spawner
	oracle  Oracle

	rules string

	turn  uint64
	phase Phase

	logger *log.Logger // may be nil

	// Invoked after each fully executed turn, e.g. for dashboard broadcast.
	onTurn func(TurnResult)
}

type Deps struct {
	Timeline *timeline.Log
	Store    *entities.Store
	Library  *schema.Library
	Player   *player.State
	World    Collaborator
	Spawner  Spawner
	Oracle   Oracle
	Rules    string
	Logger   *log.Logger
}

func New(cfg Config, d Deps) (*Engine, error) {
	cfg.applyDefaults()
	if d.Timeline == nil || d.Store == nil || d.Library == nil || d.Player == nil {
		return nil, fmt.Errorf("engine: missing store dependency")
	}
	if d.World == nil || d.Oracle == nil {
		return nil, fmt.Errorf("engine: missing collaborator or oracle")
	}
	e := &Engine{
		cfg:         cfg,
		timeline:    d.Timeline,
		store:       d.Store,
		library:     d.Library,
		playerState: d.Player,
		world:       d.World,
		spawner:     d.Spawner,
		oracle:      d.Oracle,
		rules:       d.Rules,
		turn:        1,
		phase:       PhaseIdle,
		logger:      d.Logger,
	}
	return e, nil
}

func (e *Engine) CurrentTurn() uint64 { return e.turn }
func (e *Engine) CurrentPhase() Phase { return e.phase }

// OnTurnExecuted registers a hook called after each completed turn.
func (e *Engine) OnTurnExecuted(fn func(TurnResult)) { e.onTurn = fn }

// RunTurn drives one full turn. Transport and validation failures are fatal
// to the turn: one timeline entry is written, no effect is applied, and the
// turn counter stays put so the caller may retry the same turn. The
// single-turn-in-flight invariant is the caller's job; the phase guard here
// only defends against misuse.
func (e *Engine) RunTurn(ctx context.Context) (*TurnResult, error) {
	if e.phase != PhaseIdle {
		return nil, &protocol.DecisionError{Code: protocol.ErrTurnInFlight, Msg: "turn already in phase " + e.phase.String()}
	}
	defer func() { e.phase = PhaseIdle }()
	turn := e.turn

	e.phase = PhaseBuildingContext
	snap := e.BuildSnapshot()

	e.phase = PhaseAwaitingDecision
	decision, err := e.oracle.Decide(ctx, snap)
	if err != nil {
		return nil, e.failTurn(turn, protocol.ErrTransport, err)
	}

	e.phase = PhaseValidating
	if verr := protocol.Validate(decision); verr != nil {
		return nil, e.failTurn(turn, verr.Code, verr)
	}

	e.phase = PhaseExecuting
	res := e.execute(ctx, turn, decision)

	// Only a fully executed turn advances the counter.
	e.turn++
	res.NextTurn = e.turn

	if e.onTurn != nil {
		e.onTurn(*res)
	}
	return res, nil
}

// failTurn transitions to Failed, records exactly one timeline entry, and
// wraps the cause with its code. The turn counter is never touched here.
func (e *Engine) failTurn(turn uint64, code string, cause error) error {
	e.phase = PhaseFailed
	var derr *protocol.DecisionError
	if errors.As(cause, &derr) {
		code = derr.Code
	}
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
	}
	tags := timeline.NewTagSet(
		timeline.Event("turn_failed"),
		timeline.Origin(e.cfg.Origin),
		timeline.Extra(code),
	)
	e.world.AppendTimeline(tags, fmt.Sprintf("turn %d failed: %v", turn, cause), turn)
	if e.logger != nil {
		e.logger.Printf("turn %d failed (%s): %v", turn, code, cause)
	}
	if derr != nil {
		return derr
	}
	return &protocol.DecisionError{Code: code, Msg: cause.Error()}
}
