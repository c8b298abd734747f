package protocol

const (
	// Oracle boundary.
	ErrTransport   = "E_TRANSPORT"
	ErrBadResponse = "E_BAD_RESPONSE"

	// Decision validation.
	ErrInvalidDecision = "E_INVALID_DECISION"
	ErrMissingReason   = "E_MISSING_REASON"
	ErrBadDefinition   = "E_BAD_DEFINITION"
	ErrTooManySpawns   = "E_TOO_MANY_SPAWNS"

	// Execution layer.
	ErrStaleEntity   = "E_STALE_ENTITY"
	ErrSpawnFailed   = "E_SPAWN_FAILED"
	ErrTurnInFlight  = "E_TURN_IN_FLIGHT"
	ErrUnknownStat   = "E_UNKNOWN_STAT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrTransport:       {},
	ErrBadResponse:     {},
	ErrInvalidDecision: {},
	ErrMissingReason:   {},
	ErrBadDefinition:   {},
	ErrTooManySpawns:   {},
	ErrStaleEntity:     {},
	ErrSpawnFailed:     {},
	ErrTurnInFlight:    {},
	ErrUnknownStat:     {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
