package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// decisionSchema is the wire contract sent to the oracle as the response
// shape constraint and enforced on the way back in, before decoding.
const decisionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["turn_goal", "turn_progression"],
  "properties": {
    "turn_goal": {
      "type": "object",
      "required": ["text", "change_reason"],
      "properties": {
        "text": {"type": "string", "minLength": 1},
        "change_reason": {"type": "string", "minLength": 1}
      }
    },
    "turn_progression": {"type": "string", "minLength": 1},
    "entity_generation": {
      "type": "array",
      "maxItems": 10,
      "items": {
        "type": "object",
        "required": ["type", "prompt", "region", "x", "y", "change_reason"],
        "properties": {
          "type": {"enum": ["item", "npc", "location"]},
          "prompt": {"type": "string", "minLength": 1},
          "region": {"type": "string", "minLength": 1},
          "x": {"type": "integer"},
          "y": {"type": "integer"},
          "change_reason": {"type": "string", "minLength": 1}
        }
      }
    },
    "entity_moves": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["entity_id", "entity_type", "new_region", "new_x", "new_y", "change_reason"],
        "properties": {
          "entity_id": {"type": "string", "minLength": 1},
          "entity_type": {"enum": ["item", "npc"]},
          "new_region": {"type": "string", "minLength": 1},
          "new_x": {"type": "integer"},
          "new_y": {"type": "integer"},
          "change_reason": {"type": "string", "minLength": 1}
        }
      }
    },
    "attribute_changes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["op", "entity_id", "entity_type", "attribute_name", "change_reason"],
        "properties": {
          "op": {"enum": ["DEFINE", "UPDATE"]},
          "entity_id": {"type": "string", "minLength": 1},
          "entity_type": {"enum": ["item", "npc", "location"]},
          "attribute_name": {"type": "string", "minLength": 1},
          "change_reason": {"type": "string", "minLength": 1},
          "definition": {
            "type": "object",
            "required": ["type", "description", "reference"],
            "properties": {
              "type": {"enum": ["integer", "number", "string", "boolean", "enum", "array"]},
              "description": {"type": "string", "minLength": 1},
              "reference": {"type": "string", "minLength": 1},
              "values": {"type": "array", "items": {"type": "string"}}
            }
          }
        }
      }
    },
    "status_change": {
      "type": "object",
      "required": ["health", "energy", "change_reason"],
      "properties": {
        "health": {"type": "integer"},
        "energy": {"type": "integer"},
        "change_reason": {"type": "string", "minLength": 1}
      }
    },
    "stat_changes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["stat_name", "delta", "change_reason"],
        "properties": {
          "stat_name": {"type": "string", "minLength": 1},
          "delta": {"type": "integer"},
          "change_reason": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var compiledDecisionSchema = jsonschema.MustCompileString("decision.schema.json", decisionSchema)

// DecisionSchema returns the response shape constraint as a JSON string,
// for embedding into the oracle request.
func DecisionSchema() string { return decisionSchema }

// ValidateWire checks raw oracle output against the decision schema.
// Structural rules beyond the schema's reach (op/definition pairing, numeric
// defaults) live in Validate.
func ValidateWire(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decision is not valid JSON: %w", err)
	}
	if err := compiledDecisionSchema.Validate(v); err != nil {
		return fmt.Errorf("decision schema: %w", err)
	}
	return nil
}
