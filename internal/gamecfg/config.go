// Package gamecfg loads the server configuration from YAML.
package gamecfg

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Oracle OracleSpec `yaml:"oracle"`
	Sim    SimSpec    `yaml:"sim"`
	Data   DataSpec   `yaml:"data"`
	Player PlayerSpec `yaml:"player"`
	Listen string     `yaml:"listen"`
}

type OracleSpec struct {
	BaseURL               string `yaml:"base_url"`
	Model                 string `yaml:"model"`
	APIKeyEnv             string `yaml:"api_key_env"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

type SimSpec struct {
	Origin             string `yaml:"origin"`
	ContextWindowTurns uint64 `yaml:"context_window_turns"`
	HistoryLimit       int    `yaml:"history_limit"`
	RulesPath          string `yaml:"rules_path"`
	AttributeSeedPath  string `yaml:"attribute_seed_path"`
}

type DataSpec struct {
	Dir        string `yaml:"dir"`
	EnableLogs bool   `yaml:"enable_logs"`
	EnableSave bool   `yaml:"enable_save"`
}

type PlayerSpec struct {
	MaxHealth int        `yaml:"max_health"`
	MaxEnergy int        `yaml:"max_energy"`
	Stats     []StatSpec `yaml:"stats"`
}

type StatSpec struct {
	Name      string    `yaml:"name"`
	Value     int       `yaml:"value"`
	Tier      int       `yaml:"tier"`
	TierNames [5]string `yaml:"tier_names"`
}

// RequestTimeout returns the oracle timeout as a duration.
func (o OracleSpec) RequestTimeout() time.Duration {
	return time.Duration(o.RequestTimeoutSeconds) * time.Second
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Oracle: OracleSpec{
			BaseURL:               "https://openrouter.ai/api/v1",
			Model:                 "z-ai/glm-4.6",
			APIKeyEnv:             "OPENROUTER_API_KEY",
			RequestTimeoutSeconds: 90,
		},
		Sim: SimSpec{
			Origin:             "gamemaster",
			ContextWindowTurns: 3,
			HistoryLimit:       100,
		},
		Data: DataSpec{
			Dir:        "data",
			EnableLogs: true,
			EnableSave: true,
		},
		Player: PlayerSpec{
			MaxHealth: 100,
			MaxEnergy: 100,
		},
		Listen: "127.0.0.1:8780",
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.Oracle.BaseURL) == "" {
		c.Oracle.BaseURL = defaults().Oracle.BaseURL
	}
	if strings.TrimSpace(c.Oracle.Model) == "" {
		c.Oracle.Model = defaults().Oracle.Model
	}
	if strings.TrimSpace(c.Oracle.APIKeyEnv) == "" {
		c.Oracle.APIKeyEnv = defaults().Oracle.APIKeyEnv
	}
	if c.Oracle.RequestTimeoutSeconds <= 0 {
		c.Oracle.RequestTimeoutSeconds = defaults().Oracle.RequestTimeoutSeconds
	}
	if strings.TrimSpace(c.Sim.Origin) == "" {
		c.Sim.Origin = defaults().Sim.Origin
	}
	if c.Sim.ContextWindowTurns == 0 {
		c.Sim.ContextWindowTurns = defaults().Sim.ContextWindowTurns
	}
	if c.Sim.HistoryLimit <= 0 {
		c.Sim.HistoryLimit = defaults().Sim.HistoryLimit
	}
	if strings.TrimSpace(c.Data.Dir) == "" {
		c.Data.Dir = defaults().Data.Dir
	}
	if c.Player.MaxHealth <= 0 {
		c.Player.MaxHealth = defaults().Player.MaxHealth
	}
	if c.Player.MaxEnergy <= 0 {
		c.Player.MaxEnergy = defaults().Player.MaxEnergy
	}
	for i := range c.Player.Stats {
		if c.Player.Stats[i].Tier == 0 {
			c.Player.Stats[i].Tier = 1
		}
	}
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = defaults().Listen
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if c.Sim.ContextWindowTurns > 50 {
		return fmt.Errorf("sim.context_window_turns must be <= 50")
	}
	seen := map[string]bool{}
	for _, s := range c.Player.Stats {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("player stat name must not be empty")
		}
		if seen[name] {
			return fmt.Errorf("duplicate player stat: %s", name)
		}
		seen[name] = true
		if s.Value < 0 || s.Value > 100 {
			return fmt.Errorf("player stat %s value must be in [0, 100]", name)
		}
		if s.Tier < 1 || s.Tier > 5 {
			return fmt.Errorf("player stat %s tier must be in [1, 5]", name)
		}
		for i, tn := range s.TierNames {
			if strings.TrimSpace(tn) == "" {
				return fmt.Errorf("player stat %s tier_names[%d] must not be empty", name, i)
			}
		}
	}
	return nil
}
