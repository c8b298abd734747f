package protocol

import "encoding/json"

const Version = "1.0"

// Entity kinds the oracle may reference in effects.
const (
	EntityItem     = "item"
	EntityNPC      = "npc"
	EntityLocation = "location"
)

// Attribute change variants. The op tag is explicit so validation never has
// to infer intent from which optional fields happen to be present.
const (
	OpDefineAttribute = "DEFINE"
	OpUpdateAttribute = "UPDATE"
)

// Attribute value types.
const (
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeEnum    = "enum"
	TypeArray   = "array"
)

// MaxSpawnsPerTurn caps entity_generation per decision.
const MaxSpawnsPerTurn = 10

func DecodeDecision(b []byte) (Decision, error) {
	var d Decision
	err := json.Unmarshal(b, &d)
	return d, err
}
