package protocol

import "fmt"

// DecisionError is a coded failure at the oracle boundary: transport,
// malformed wire response, or structural validation.
type DecisionError struct {
	Code string
	Msg  string
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func decisionErrf(code, format string, args ...any) *DecisionError {
	if !IsKnownCode(code) {
		code = ErrInternal
	}
	return &DecisionError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

var validTypes = map[string]struct{}{
	TypeInteger: {},
	TypeNumber:  {},
	TypeString:  {},
	TypeBoolean: {},
	TypeEnum:    {},
	TypeArray:   {},
}

// Validate checks a decision structurally, independent of game state.
// It is pure: validating the same decision twice gives the same verdict, and
// nothing is mutated. Any missing required field rejects the whole decision;
// there are no partial turns.
func Validate(d Decision) *DecisionError {
	if d.TurnGoal.Text == "" {
		return decisionErrf(ErrInvalidDecision, "turn_goal.text is required")
	}
	if d.TurnGoal.ChangeReason == "" {
		return decisionErrf(ErrMissingReason, "turn_goal.change_reason is required")
	}
	if d.TurnProgression == "" {
		return decisionErrf(ErrInvalidDecision, "turn_progression is required")
	}

	if len(d.EntityGeneration) > MaxSpawnsPerTurn {
		return decisionErrf(ErrTooManySpawns, "entity_generation has %d effects, max %d", len(d.EntityGeneration), MaxSpawnsPerTurn)
	}
	for i, sp := range d.EntityGeneration {
		if sp.ChangeReason == "" {
			return decisionErrf(ErrMissingReason, "entity_generation[%d]: change_reason is required", i)
		}
		switch sp.Type {
		case EntityItem, EntityNPC, EntityLocation:
		default:
			return decisionErrf(ErrInvalidDecision, "entity_generation[%d]: unknown type %q", i, sp.Type)
		}
		if sp.Prompt == "" {
			return decisionErrf(ErrInvalidDecision, "entity_generation[%d]: prompt is required", i)
		}
		if sp.Region == "" {
			return decisionErrf(ErrInvalidDecision, "entity_generation[%d]: region is required", i)
		}
	}

	for i, mv := range d.EntityMoves {
		if mv.ChangeReason == "" {
			return decisionErrf(ErrMissingReason, "entity_moves[%d]: change_reason is required", i)
		}
		if mv.EntityID == "" {
			return decisionErrf(ErrInvalidDecision, "entity_moves[%d]: entity_id is required", i)
		}
		// Locations and regions are fixed geography; only items and NPCs move.
		switch mv.EntityType {
		case EntityItem, EntityNPC:
		default:
			return decisionErrf(ErrInvalidDecision, "entity_moves[%d]: unmovable entity type %q", i, mv.EntityType)
		}
		if mv.NewRegion == "" {
			return decisionErrf(ErrInvalidDecision, "entity_moves[%d]: new_region is required", i)
		}
	}

	for i, ac := range d.AttributeChanges {
		if err := validateAttributeEffect(i, ac); err != nil {
			return err
		}
	}

	if d.StatusChange != nil && d.StatusChange.ChangeReason == "" {
		return decisionErrf(ErrMissingReason, "status_change: change_reason is required")
	}
	for i, sc := range d.StatChanges {
		if sc.ChangeReason == "" {
			return decisionErrf(ErrMissingReason, "stat_changes[%d]: change_reason is required", i)
		}
		if sc.StatName == "" {
			return decisionErrf(ErrInvalidDecision, "stat_changes[%d]: stat_name is required", i)
		}
	}
	return nil
}

func validateAttributeEffect(i int, ac AttributeEffect) *DecisionError {
	if ac.ChangeReason == "" {
		return decisionErrf(ErrMissingReason, "attribute_changes[%d]: change_reason is required", i)
	}
	if ac.EntityID == "" || ac.AttributeName == "" {
		return decisionErrf(ErrInvalidDecision, "attribute_changes[%d]: entity_id and attribute_name are required", i)
	}
	switch ac.EntityType {
	case EntityItem, EntityNPC, EntityLocation:
	default:
		return decisionErrf(ErrInvalidDecision, "attribute_changes[%d]: unknown entity type %q", i, ac.EntityType)
	}

	switch ac.Op {
	case OpDefineAttribute:
		def := ac.Definition
		if def == nil {
			return decisionErrf(ErrBadDefinition, "attribute_changes[%d]: DEFINE requires a definition", i)
		}
		if def.Type == "" || def.Description == "" || def.Reference == "" {
			return decisionErrf(ErrBadDefinition, "attribute_changes[%d]: definition needs type, description and reference", i)
		}
		if _, ok := validTypes[def.Type]; !ok {
			return decisionErrf(ErrBadDefinition, "attribute_changes[%d]: unknown attribute type %q", i, def.Type)
		}
		if def.Type == TypeEnum && len(def.Values) == 0 {
			return decisionErrf(ErrBadDefinition, "attribute_changes[%d]: enum definition needs values", i)
		}
		if def.Type == TypeInteger || def.Type == TypeNumber {
			if !isNumeric(def.Default) {
				return decisionErrf(ErrBadDefinition, "attribute_changes[%d]: numeric definition needs a numeric default", i)
			}
			if ac.NewValue != nil && !isNumeric(ac.NewValue) {
				return decisionErrf(ErrBadDefinition, "attribute_changes[%d]: numeric attribute seeded with non-numeric value", i)
			}
		}
	case OpUpdateAttribute:
		if ac.Definition != nil {
			return decisionErrf(ErrBadDefinition, "attribute_changes[%d]: UPDATE must not carry a definition", i)
		}
		if ac.NewValue == nil {
			return decisionErrf(ErrInvalidDecision, "attribute_changes[%d]: UPDATE requires new_value", i)
		}
	default:
		return decisionErrf(ErrInvalidDecision, "attribute_changes[%d]: unknown op %q", i, ac.Op)
	}
	return nil
}

// isNumeric reports whether a decoded JSON value is a number. json.Unmarshal
// yields float64 for all numbers; int covers values built in-process.
func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}
