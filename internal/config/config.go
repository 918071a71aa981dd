// Package config provides configuration loading and management for pllm.
package config

import "time"

// Config is the root configuration.
type Config struct {
	StateDir string        `json:"state_dir"  mapstructure:"state_dir"`
	LLM      LLMConfig     `json:"llm"        mapstructure:"llm"`
	Pane     PaneConfig    `json:"pane"       mapstructure:"pane"`
	Loop     LoopConfig    `json:"loop"       mapstructure:"loop"`
	History  HistoryConfig `json:"history"    mapstructure:"history"`
	Review   ReviewConfig  `json:"review"     mapstructure:"review"`
	Log      LogConfig     `json:"log"        mapstructure:"log"`
	Retain   RetainPolicy  `json:"retention"  mapstructure:"retention"`
}

// LLMConfig describes the completion service.
type LLMConfig struct {
	Endpoint    string        `json:"endpoint"              mapstructure:"endpoint"`
	APIKey      string        `json:"api_key,omitempty"     mapstructure:"api_key"`
	APIKeyEnv   string        `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
	Timeout     time.Duration `json:"timeout"               mapstructure:"timeout"`
	MaxTokens   int           `json:"max_tokens"            mapstructure:"max_tokens"`
	Temperature float64       `json:"temperature"           mapstructure:"temperature"`
	TopK        int           `json:"top_k,omitempty"       mapstructure:"top_k"`
	TopP        float64       `json:"top_p,omitempty"       mapstructure:"top_p"`
	MinP        float64       `json:"min_p,omitempty"       mapstructure:"min_p"`
	Echo        bool          `json:"echo"                  mapstructure:"echo"`
}

// PaneConfig describes the terminal pane.
type PaneConfig struct {
	Cols         int           `json:"cols"          mapstructure:"cols"`
	Rows         int           `json:"rows"          mapstructure:"rows"`
	Socket       string        `json:"socket"        mapstructure:"socket"`
	KeyDelay     time.Duration `json:"key_delay"     mapstructure:"key_delay"`
	StartupDelay time.Duration `json:"startup_delay" mapstructure:"startup_delay"`
	UnknownKeys  string        `json:"unknown_keys"  mapstructure:"unknown_keys"`
}

// LoopConfig controls the iteration protocol.
type LoopConfig struct {
	Samples       int           `json:"samples"        mapstructure:"samples"`
	SelectRetries int           `json:"select_retries" mapstructure:"select_retries"`
	Critic        bool          `json:"critic"         mapstructure:"critic"`
	ApplyCritic   bool          `json:"apply_critic"   mapstructure:"apply_critic"`
	SeeChoices    bool          `json:"see_choices"    mapstructure:"see_choices"`
	CritiqueLimit int           `json:"critique_limit" mapstructure:"critique_limit"`
	SettleDelay   time.Duration `json:"settle_delay"   mapstructure:"settle_delay"`
	MaxIterations int           `json:"max_iterations" mapstructure:"max_iterations"`
}

// HistoryConfig controls history compaction.
type HistoryConfig struct {
	Limit         int  `json:"limit"          mapstructure:"limit"`
	SummaryLimit  int  `json:"summary_limit"  mapstructure:"summary_limit"`
	IncludeScreen bool `json:"include_screen" mapstructure:"include_screen"`
}

// ReviewConfig controls the operator edit hook.
type ReviewConfig struct {
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	Editor  string        `json:"editor"  mapstructure:"editor"`
}

// LogConfig controls the audit log.
type LogConfig struct {
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// RetainPolicy defines how many old runs to keep.
type RetainPolicy struct {
	KeepLast int `json:"keep_last,omitempty" mapstructure:"keep_last"`
	KeepDays int `json:"keep_days,omitempty" mapstructure:"keep_days"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		StateDir: ".pllm",
		LLM: LLMConfig{
			Endpoint:    "http://localhost:8081/completion",
			APIKeyEnv:   "PLLM_API_KEY",
			MaxTokens:   384,
			Temperature: 0.6,
			Echo:        true,
		},
		Pane: PaneConfig{
			Cols:         80,
			Rows:         24,
			KeyDelay:     50 * time.Millisecond,
			StartupDelay: time.Second,
			UnknownKeys:  "literal",
		},
		Loop: LoopConfig{
			Samples:       1,
			SelectRetries: 1,
			CritiqueLimit: 390,
			SettleDelay:   2 * time.Second,
		},
		History: HistoryConfig{
			Limit:        5,
			SummaryLimit: 390,
		},
		Review: ReviewConfig{
			Timeout: 5 * time.Second,
		},
		Log: LogConfig{
			AuditFile: "pllm.log",
		},
		Retain: RetainPolicy{
			KeepLast: 50,
		},
	}
}

// Defaults returns Default as a flat key map for viper.SetDefault.
func Defaults() map[string]any {
	d := Default()
	return map[string]any{
		"state_dir":              d.StateDir,
		"llm.endpoint":           d.LLM.Endpoint,
		"llm.api_key":            d.LLM.APIKey,
		"llm.api_key_env":        d.LLM.APIKeyEnv,
		"llm.timeout":            d.LLM.Timeout,
		"llm.max_tokens":         d.LLM.MaxTokens,
		"llm.temperature":        d.LLM.Temperature,
		"llm.top_k":              d.LLM.TopK,
		"llm.top_p":              d.LLM.TopP,
		"llm.min_p":              d.LLM.MinP,
		"llm.echo":               d.LLM.Echo,
		"pane.cols":              d.Pane.Cols,
		"pane.rows":              d.Pane.Rows,
		"pane.socket":            d.Pane.Socket,
		"pane.key_delay":         d.Pane.KeyDelay,
		"pane.startup_delay":     d.Pane.StartupDelay,
		"pane.unknown_keys":      d.Pane.UnknownKeys,
		"loop.samples":           d.Loop.Samples,
		"loop.select_retries":    d.Loop.SelectRetries,
		"loop.critic":            d.Loop.Critic,
		"loop.apply_critic":      d.Loop.ApplyCritic,
		"loop.see_choices":       d.Loop.SeeChoices,
		"loop.critique_limit":    d.Loop.CritiqueLimit,
		"loop.settle_delay":      d.Loop.SettleDelay,
		"loop.max_iterations":    d.Loop.MaxIterations,
		"history.limit":          d.History.Limit,
		"history.summary_limit":  d.History.SummaryLimit,
		"history.include_screen": d.History.IncludeScreen,
		"review.enabled":         d.Review.Enabled,
		"review.timeout":         d.Review.Timeout,
		"review.editor":          d.Review.Editor,
		"log.audit_file":         d.Log.AuditFile,
		"retention.keep_last":    d.Retain.KeepLast,
		"retention.keep_days":    d.Retain.KeepDays,
	}
}
