package player

import (
	"fmt"
	"sort"
)

// Stat is one named progression track. Value lives in 0..100 within the
// current tier; Tier runs 1..5 with one label per tier.
type Stat struct {
	Value     int       `json:"value"`
	Tier      int       `json:"tier"`
	TierNames [5]string `json:"tier_names"`
}

// TierName is the label of the current tier.
func (s Stat) TierName() string { return s.TierNames[s.Tier-1] }

// Status is the vital pair. Values are clamped to 0..max on every delta.
type Status struct {
	Health    int `json:"health"`
	MaxHealth int `json:"max_health"`
	Energy    int `json:"energy"`
	MaxEnergy int `json:"max_energy"`
}

// State holds the externally-owned player data the turn engine issues
// deltas against.
type State struct {
	stats  map[string]Stat
	status Status
}

func New(status Status) *State {
	return &State{stats: map[string]Stat{}, status: status}
}

func (p *State) DefineStat(name string, tierNames [5]string, value, tier int) error {
	if name == "" {
		return fmt.Errorf("define stat: empty name")
	}
	if _, exists := p.stats[name]; exists {
		return fmt.Errorf("define stat: %q already exists", name)
	}
	if value < 0 || value > 100 || tier < 1 || tier > 5 {
		return fmt.Errorf("define stat %q: value %d tier %d out of range", name, value, tier)
	}
	p.stats[name] = Stat{Value: value, Tier: tier, TierNames: tierNames}
	return nil
}

func (p *State) Stat(name string) (Stat, bool) {
	s, ok := p.stats[name]
	return s, ok
}

func (p *State) StatNames() []string {
	out := make([]string, 0, len(p.stats))
	for name := range p.stats {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (p *State) Status() Status { return p.status }

// ApplyStatDelta moves a stat by delta. Crossing 100 wraps the remainder
// into the next tier; crossing 0 wraps backwards into the previous one.
// At tier 5 the value clamps at 100, at tier 1 it clamps at 0. Large deltas
// may cross several tiers.
func (p *State) ApplyStatDelta(name string, delta int) (Stat, error) {
	s, ok := p.stats[name]
	if !ok {
		return Stat{}, fmt.Errorf("stat %q not found", name)
	}
	v := s.Value + delta
	for v > 100 && s.Tier < 5 {
		v -= 100
		s.Tier++
	}
	for v < 0 && s.Tier > 1 {
		v += 100
		s.Tier--
	}
	if v > 100 {
		v = 100
	}
	if v < 0 {
		v = 0
	}
	s.Value = v
	p.stats[name] = s
	return s, nil
}

// ApplyStatusDelta moves health and energy, clamped into 0..max.
func (p *State) ApplyStatusDelta(healthDelta, energyDelta int) Status {
	p.status.Health = clamp(p.status.Health+healthDelta, 0, p.status.MaxHealth)
	p.status.Energy = clamp(p.status.Energy+energyDelta, 0, p.status.MaxEnergy)
	return p.status
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
