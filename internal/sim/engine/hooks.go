package engine

import (
	"context"
	"log"

	"talecraft.ai/internal/protocol"
	"talecraft.ai/internal/sim/entities"
	"talecraft.ai/internal/sim/player"
	"talecraft.ai/internal/sim/timeline"
)

// Collaborator is the callback seam the controller applies every effect
// through. Storage, player state and the timeline stay behind it so the
// core never touches presentation or persistence concerns directly.
type Collaborator interface {
	UpdateEntity(e *entities.Entity, kind entities.Kind, reason, source string) error
	AddEntity(e *entities.Entity, kind entities.Kind, source string) error
	EntityByID(kind entities.Kind, id string) (*entities.Entity, bool)
	UpdatePlayerStatus(healthDelta, energyDelta int, reason string)
	UpdatePlayerStat(name string, delta int, reason string) error
	AppendTimeline(tags timeline.TagSet, text string, turn uint64)
}

// Spawner turns one spawn effect into a concrete entity. Each spawn is
// independently fallible; a failed one is skipped, the rest proceed.
type Spawner interface {
	Generate(ctx context.Context, req SpawnRequest) (*entities.Entity, error)
}

type SpawnRequest struct {
	Kind   entities.Kind
	Prompt string
	Region string
	X      int
	Y      int
}

// Oracle is the single-shot decision port. Implementations own transport
// and timeout; retry policy stays with the engine's caller.
type Oracle interface {
	Decide(ctx context.Context, snap *Snapshot) (protocol.Decision, error)
}

// Binding is the default Collaborator over the in-process stores.
type Binding struct {
	Store    *entities.Store
	Player   *player.State
	Timeline *timeline.Log
	Logger   *log.Logger // may be nil
}

func (b *Binding) UpdateEntity(e *entities.Entity, kind entities.Kind, reason, source string) error {
	return b.Store.Update(e, kind, reason, source)
}

func (b *Binding) AddEntity(e *entities.Entity, kind entities.Kind, source string) error {
	return b.Store.Add(e, kind, source)
}

func (b *Binding) EntityByID(kind entities.Kind, id string) (*entities.Entity, bool) {
	return b.Store.ByID(kind, id)
}

func (b *Binding) UpdatePlayerStatus(healthDelta, energyDelta int, reason string) {
	st := b.Player.ApplyStatusDelta(healthDelta, energyDelta)
	if b.Logger != nil {
		b.Logger.Printf("status %+d hp %+d en -> %d/%d hp %d/%d en (%s)",
			healthDelta, energyDelta, st.Health, st.MaxHealth, st.Energy, st.MaxEnergy, reason)
	}
}

func (b *Binding) UpdatePlayerStat(name string, delta int, reason string) error {
	s, err := b.Player.ApplyStatDelta(name, delta)
	if err != nil {
		return err
	}
	if b.Logger != nil {
		b.Logger.Printf("stat %s %+d -> %d (tier %d, %s)", name, delta, s.Value, s.Tier, reason)
	}
	return nil
}

func (b *Binding) AppendTimeline(tags timeline.TagSet, text string, turn uint64) {
	b.Timeline.Append(tags, text, turn)
}
