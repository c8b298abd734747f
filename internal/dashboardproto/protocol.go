// Package dashboardproto defines the wire types of the dashboard feed
// (separate from the oracle decision contract).
package dashboardproto

// Version is the dashboard protocol version.
const Version = "0.1"

// Client -> Server. First message on the dashboard WS connection, and can
// be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// How many past turns of timeline text to include per turn message.
	TimelineLookback int `json:"timeline_lookback"`
}

// HTTP response for GET /dashboard/v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Turn            uint64         `json:"turn"`
	Phase           string         `json:"phase"`
	LibraryDigest   string         `json:"library_digest"`
	EntityCounts    map[string]int `json:"entity_counts"`
	Player          PlayerInfo     `json:"player"`
}

type PlayerInfo struct {
	Health    int        `json:"health"`
	MaxHealth int        `json:"max_health"`
	Energy    int        `json:"energy"`
	MaxEnergy int        `json:"max_energy"`
	Stats     []StatInfo `json:"stats"`
}

type StatInfo struct {
	Name     string `json:"name"`
	Value    int    `json:"value"`
	Tier     int    `json:"tier"`
	TierName string `json:"tier_name"`
}

// Server -> Client. Sent after every executed turn.
type TurnMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Turn        uint64 `json:"turn"`
	NextTurn    uint64 `json:"next_turn"`
	Progression string `json:"progression"`
	Goal        string `json:"goal"`

	SpawnedIDs        []string `json:"spawned_ids,omitempty"`
	Moved             int      `json:"moved"`
	AttributesChanged int      `json:"attributes_changed"`
	Skipped           int      `json:"skipped"`

	Events []string `json:"events,omitempty"`
}
