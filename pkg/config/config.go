// Package config loads steward runtime configuration from
// .steward/config.yaml. The escalation ladders and lock timeouts are
// empirically chosen policy, not invariants, so every one of them is
// overridable here.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"steward/pkg/protocol"
)

// Duration wraps time.Duration so config values can be written in the
// human form ("2h", "30m").
type Duration time.Duration

// MarshalYAML emits the human-readable duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML parses "2h" style duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"2h\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the runtime configuration for a steward instance.
type Config struct {
	// MaxSlots bounds the number of logically concurrent worker slots.
	MaxSlots int `yaml:"max_slots"`

	// LockExpiry is how long a plan lock is honored after acquisition.
	LockExpiry Duration `yaml:"lock_expiry"`

	// StaleHeartbeat is how long a lock heartbeat may be silent before
	// the lock is considered reclaimable.
	StaleHeartbeat Duration `yaml:"stale_heartbeat"`

	// Ladders maps each tier to its ordered model ladder across attempts.
	Ladders map[protocol.Tier][]string `yaml:"ladders"`

	// BaselineKeep is the default retention count for baseline pruning.
	BaselineKeep int `yaml:"baseline_keep"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxSlots:       3,
		LockExpiry:     Duration(2 * time.Hour),
		StaleHeartbeat: Duration(30 * time.Minute),
		Ladders: map[protocol.Tier][]string{
			protocol.TierSimple:   {protocol.ModelHaiku, protocol.ModelHaiku, protocol.ModelSonnet, protocol.ModelSonnet, protocol.ModelOpus},
			protocol.TierModerate: {protocol.ModelSonnet, protocol.ModelSonnet, protocol.ModelOpus, protocol.ModelOpus},
			protocol.TierComplex:  {protocol.ModelOpus, protocol.ModelOpus, protocol.ModelOpus},
		},
		BaselineKeep: 10,
	}
}

// Load reads config.yaml at path and overlays it on the defaults.
// A missing file is not an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if overlay.MaxSlots > 0 {
		cfg.MaxSlots = overlay.MaxSlots
	}
	if overlay.LockExpiry > 0 {
		cfg.LockExpiry = overlay.LockExpiry
	}
	if overlay.StaleHeartbeat > 0 {
		cfg.StaleHeartbeat = overlay.StaleHeartbeat
	}
	if overlay.BaselineKeep > 0 {
		cfg.BaselineKeep = overlay.BaselineKeep
	}
	for tier, ladder := range overlay.Ladders {
		if len(ladder) > 0 {
			cfg.Ladders[tier] = ladder
		}
	}

	return cfg, nil
}

// Write serializes cfg to path, creating parent directories as needed.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
