package protocol

// Decision is the structured output of the oracle for one turn: a narrative
// summary, a goal for the next turn, and the full batch of world effects.
type Decision struct {
	TurnGoal        TurnGoal `json:"turn_goal"`
	TurnProgression string   `json:"turn_progression"`

	EntityGeneration []SpawnEffect     `json:"entity_generation,omitempty"`
	EntityMoves      []MoveEffect      `json:"entity_moves,omitempty"`
	AttributeChanges []AttributeEffect `json:"attribute_changes,omitempty"`
	StatusChange     *StatusEffect     `json:"status_change,omitempty"`
	StatChanges      []StatEffect      `json:"stat_changes,omitempty"`
}

type TurnGoal struct {
	Text         string `json:"text"`
	ChangeReason string `json:"change_reason"`
}

// SpawnEffect asks for a new entity at a position. Type is one of
// EntityItem, EntityNPC, EntityLocation.
type SpawnEffect struct {
	Type         string `json:"type"`
	Prompt       string `json:"prompt"`
	Region       string `json:"region"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
	ChangeReason string `json:"change_reason"`
}

// MoveEffect repositions an existing item or NPC.
type MoveEffect struct {
	EntityID     string `json:"entity_id"`
	EntityType   string `json:"entity_type"`
	NewRegion    string `json:"new_region"`
	NewX         int    `json:"new_x"`
	NewY         int    `json:"new_y"`
	ChangeReason string `json:"change_reason"`
}

// AttributeEffect either defines a new attribute (op DEFINE, definition
// required, value seeded from NewValue or the definition default) or updates
// the value of an existing one (op UPDATE, definition must be absent).
type AttributeEffect struct {
	Op            string        `json:"op"`
	EntityID      string        `json:"entity_id"`
	EntityType    string        `json:"entity_type"`
	AttributeName string        `json:"attribute_name"`
	NewValue      any           `json:"new_value,omitempty"`
	Definition    *AttributeDef `json:"definition,omitempty"`
	ChangeReason  string        `json:"change_reason"`
}

// AttributeDef is the immutable metadata side of an attribute: shared by all
// entities of the same category that carry the attribute name.
type AttributeDef struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Reference   string   `json:"reference"`
	Values      []string `json:"values,omitempty"` // enum only
	Default     any      `json:"default,omitempty"`
}

// StatusEffect is a delta against player health/energy.
type StatusEffect struct {
	Health       int    `json:"health"`
	Energy       int    `json:"energy"`
	ChangeReason string `json:"change_reason"`
}

// StatEffect is a delta against one named player stat.
type StatEffect struct {
	StatName     string `json:"stat_name"`
	Delta        int    `json:"delta"`
	ChangeReason string `json:"change_reason"`
}
