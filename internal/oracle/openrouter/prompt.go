package openrouter

import (
	"fmt"
	"strings"

	"talecraft.ai/internal/protocol"
	"talecraft.ai/internal/sim/engine"
)

func systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are the gamemaster of a persistent turn-based narrative world. ")
	b.WriteString("Each turn you receive the world state and must reply with exactly one JSON object ")
	b.WriteString("describing the turn's outcome. Reply with JSON only, no prose, no markdown.\n\n")
	b.WriteString("The reply must conform to this JSON schema:\n")
	b.WriteString(protocol.DecisionSchema())
	b.WriteString("\n\nRules for the reply:\n")
	b.WriteString("- turn_progression narrates what happened this turn.\n")
	b.WriteString("- turn_goal sets up the next turn.\n")
	b.WriteString("- every effect carries a change_reason explaining it in-world.\n")
	b.WriteString(fmt.Sprintf("- at most %d entries in entity_generation.\n", protocol.MaxSpawnsPerTurn))
	b.WriteString("- attribute changes tag op DEFINE when introducing a new attribute ")
	b.WriteString("(with a full definition) and op UPDATE when changing a known one.\n")
	b.WriteString("- only move entities listed in the world state; never invent ids.\n")
	return b.String()
}

func userPrompt(snap *engine.Snapshot, worldJSON []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Turn %d.\n\n", snap.Turn)
	if snap.Rules != "" {
		b.WriteString("World rules:\n")
		b.WriteString(snap.Rules)
		b.WriteString("\n\n")
	}
	if snap.AttributeCatalog != "" {
		b.WriteString("Known attributes:\n")
		b.WriteString(snap.AttributeCatalog)
		b.WriteString("\n\n")
	}
	b.WriteString("World state:\n")
	b.Write(worldJSON)
	b.WriteString("\n\nDecide this turn. Reply with the JSON object only.")
	return b.String()
}
