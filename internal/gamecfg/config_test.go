package gamecfg

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Oracle.Model == "" || cfg.Oracle.APIKeyEnv != "OPENROUTER_API_KEY" {
		t.Fatalf("oracle defaults = %+v", cfg.Oracle)
	}
	if cfg.Sim.ContextWindowTurns != 3 || cfg.Sim.HistoryLimit != 100 {
		t.Fatalf("sim defaults = %+v", cfg.Sim)
	}
	if cfg.Listen != "127.0.0.1:8780" {
		t.Fatalf("listen = %q", cfg.Listen)
	}
}

func TestLoad_OverridesAndFillsGaps(t *testing.T) {
	path := writeConfig(t, `
oracle:
  model: test/model
  request_timeout_seconds: 30
sim:
  context_window_turns: 5
player:
  stats:
    - name: perception
      value: 50
      tier_names: [dull, keen, sharp, eagle-eyed, preternatural]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Oracle.Model != "test/model" {
		t.Fatalf("model = %q", cfg.Oracle.Model)
	}
	if got := cfg.Oracle.RequestTimeout().Seconds(); got != 30 {
		t.Fatalf("timeout = %v", got)
	}
	if cfg.Sim.ContextWindowTurns != 5 {
		t.Fatalf("window = %d", cfg.Sim.ContextWindowTurns)
	}
	// Unset fields keep their defaults.
	if cfg.Oracle.BaseURL == "" || cfg.Data.Dir != "data" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	// Tier defaults to 1 when omitted.
	if cfg.Player.Stats[0].Tier != 1 {
		t.Fatalf("stat tier = %d", cfg.Player.Stats[0].Tier)
	}
}

func TestValidate_RejectsBadStats(t *testing.T) {
	cases := []string{
		`
player:
  stats:
    - name: ""
      value: 10
      tier_names: [a, b, c, d, e]
`,
		`
player:
  stats:
    - name: luck
      value: 120
      tier_names: [a, b, c, d, e]
`,
		`
player:
  stats:
    - name: luck
      value: 10
      tier: 7
      tier_names: [a, b, c, d, e]
`,
		`
player:
  stats:
    - name: luck
      value: 10
      tier_names: [a, b, c, d, e]
    - name: luck
      value: 20
      tier_names: [a, b, c, d, e]
`,
		`
player:
  stats:
    - name: luck
      value: 10
      tier_names: [a, b, "", d, e]
`,
	}
	for i, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
