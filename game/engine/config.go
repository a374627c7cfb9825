package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidConfig = errors.New("invalid board configuration")
	ErrOutOfRange    = errors.New("coordinates out of range")
	ErrNegativeDelta = errors.New("negative tick delta")
)

// ConfigError describes the first configuration field that failed validation
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config validation: %s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfig
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// Config represents a board configuration, usually loaded from a JSON or
// YAML file by the config manager.
type Config struct {
	Name              string        `json:"name" mapstructure:"name"`
	Description       string        `json:"description" mapstructure:"description"`
	GridX             int           `json:"grid_x" mapstructure:"grid_x"`
	GridY             int           `json:"grid_y" mapstructure:"grid_y"`
	MatchSize         int           `json:"match_size" mapstructure:"match_size"`
	TokenTypes        int           `json:"token_types" mapstructure:"token_types"`
	FallMillisPerCell int           `json:"fall_ms_per_cell" mapstructure:"fall_ms_per_cell"`
	ShrinkMillis      int           `json:"shrink_ms" mapstructure:"shrink_ms"`
	SwapMillisPerCell int           `json:"swap_ms_per_cell" mapstructure:"swap_ms_per_cell"`
	Mode              Mode          `json:"mode" mapstructure:"mode"`
	NoMatchPolicy     NoMatchPolicy `json:"no_match_policy" mapstructure:"no_match_policy"`
	StrictBounds      bool          `json:"strict_bounds" mapstructure:"strict_bounds"`
	ChainReactions    bool          `json:"chain_reactions" mapstructure:"chain_reactions"`
}

// DefaultConfig returns an 8x8 tap board with five token types
func DefaultConfig() *Config {
	return &Config{
		Name:              "default",
		Description:       "Default 8x8 tap board",
		GridX:             DefaultGridX,
		GridY:             DefaultGridY,
		MatchSize:         DefaultMatchSize,
		TokenTypes:        DefaultTokenTypes,
		FallMillisPerCell: DefaultFallMillisPerCell,
		ShrinkMillis:      DefaultShrinkMillis,
		SwapMillisPerCell: DefaultSwapMillisPerCell,
		Mode:              ModeTap,
		NoMatchPolicy:     PolicyRevert,
	}
}

// ApplyDefaults fills zero-valued optional fields. Grid dimensions are never
// defaulted so a missing size is reported by validation.
func (c *Config) ApplyDefaults() {
	if c.MatchSize == 0 {
		c.MatchSize = DefaultMatchSize
	}
	if c.Mode == "" {
		c.Mode = ModeTap
	}
	if c.NoMatchPolicy == "" {
		c.NoMatchPolicy = PolicyRevert
	}
}

// Timing converts the millisecond settings into token durations
func (c *Config) Timing() Timing {
	return Timing{
		FallPerCell: time.Duration(c.FallMillisPerCell) * time.Millisecond,
		Shrink:      time.Duration(c.ShrinkMillis) * time.Millisecond,
		SwapPerCell: time.Duration(c.SwapMillisPerCell) * time.Millisecond,
	}
}

// ValidateConfig checks that a board can be built from config
func ValidateConfig(config *Config) error {
	if config == nil {
		return &ConfigError{Field: "config", Reason: "is required"}
	}
	if config.GridX <= 0 || config.GridX > MaxGridSize {
		return &ConfigError{Field: "grid_x", Reason: fmt.Sprintf("must be between 1 and %d, got %d", MaxGridSize, config.GridX)}
	}
	if config.GridY <= 0 || config.GridY > MaxGridSize {
		return &ConfigError{Field: "grid_y", Reason: fmt.Sprintf("must be between 1 and %d, got %d", MaxGridSize, config.GridY)}
	}
	if config.MatchSize < MinMatchSize {
		return &ConfigError{Field: "match_size", Reason: fmt.Sprintf("must be at least %d, got %d", MinMatchSize, config.MatchSize)}
	}
	if config.TokenTypes < config.MatchSize {
		return &ConfigError{Field: "token_types", Reason: fmt.Sprintf("must be at least match_size (%d), got %d", config.MatchSize, config.TokenTypes)}
	}
	if config.FallMillisPerCell < 0 {
		return &ConfigError{Field: "fall_ms_per_cell", Reason: "must not be negative"}
	}
	if config.ShrinkMillis < 0 {
		return &ConfigError{Field: "shrink_ms", Reason: "must not be negative"}
	}
	if config.SwapMillisPerCell < 0 {
		return &ConfigError{Field: "swap_ms_per_cell", Reason: "must not be negative"}
	}
	switch config.Mode {
	case ModeTap, ModeSwap:
	default:
		return &ConfigError{Field: "mode", Reason: fmt.Sprintf("must be %q or %q, got %q", ModeTap, ModeSwap, config.Mode)}
	}
	switch config.NoMatchPolicy {
	case PolicyRevert, PolicyKeep:
	default:
		return &ConfigError{Field: "no_match_policy", Reason: fmt.Sprintf("must be %q or %q, got %q", PolicyRevert, PolicyKeep, config.NoMatchPolicy)}
	}
	return nil
}
