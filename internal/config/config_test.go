package config

import (
	"testing"
	"time"
)

func TestValidate_AcceptsDefaults(t *testing.T) {
	t.Parallel()

	if err := Validate(Default()); err != nil {
		t.Fatalf("Validate(Default()) returned error: %v", err)
	}
}

func TestValidate_RejectsOutOfRange(t *testing.T) {
	t.Parallel()

	tests := map[string]func(*Config){
		"zero samples":     func(c *Config) { c.Loop.Samples = 0 },
		"tiny pane":        func(c *Config) { c.Pane.Cols = 3 },
		"bad policy":       func(c *Config) { c.Pane.UnknownKeys = "guess" },
		"bad endpoint":     func(c *Config) { c.LLM.Endpoint = "localhost:8081" },
		"negative delay":   func(c *Config) { c.Loop.SettleDelay = -time.Second },
		"zero history":     func(c *Config) { c.History.Limit = 0 },
		"high temperature": func(c *Config) { c.LLM.Temperature = 3 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("Validate returned nil, want error")
			}
		})
	}
}

func TestDefaults_CoversEveryKey(t *testing.T) {
	t.Parallel()

	d := Defaults()
	for _, key := range []string{"llm.endpoint", "pane.cols", "loop.samples", "history.limit", "review.timeout"} {
		if _, ok := d[key]; !ok {
			t.Fatalf("Defaults() missing %q", key)
		}
	}
	if d["history.limit"] != 5 {
		t.Fatalf("history.limit default = %v, want 5", d["history.limit"])
	}
}
