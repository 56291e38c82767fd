package domain

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
)

// Config is the decompiler configuration file.
type Config struct {
	Semantics SemanticsConfig `toml:"semantics"`
	Passes    PassesConfig    `toml:"passes"`
	Log       LogConfig       `toml:"log"`
}

// SemanticsConfig selects the dialect and debug-info handling.
type SemanticsConfig struct {
	// DebugInfo is a pointer so that an absent key keeps the default.
	DebugInfo *bool  `toml:"debug_info"`
	Language  string `toml:"language"`
}

// PassesConfig lists postprocessing passes to skip by name.
type PassesConfig struct {
	Disable []string `toml:"disable"`
}

// LogConfig configures the zap logger built by the CLI.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// DefaultConfig returns csharp semantics with debug info, every pass
// enabled and info logging.
func DefaultConfig() *Config {
	on := true
	return &Config{
		Semantics: SemanticsConfig{Language: "csharp", DebugInfo: &on},
		Log:       LogConfig{Level: "info"},
	}
}

// LoadConfig reads a TOML configuration file. Missing keys keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, fmt.Sprintf("cannot read %s", path))
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, fmt.Sprintf("parse error in %s", path))
	}
	return cfg, nil
}

// ParseConfig decodes TOML text on top of DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, err
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("unknown key %q", undec[0].String())
	}
	if cfg.Semantics.DebugInfo == nil {
		on := true
		cfg.Semantics.DebugInfo = &on
	}
	if _, err := cfg.ToSemantics(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToSemantics converts the semantics section.
func (c *Config) ToSemantics() (Semantics, error) {
	lang, ok := hir.ParseLanguage(c.Semantics.Language)
	if !ok {
		return Semantics{}, errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("unknown language %q", c.Semantics.Language))
	}
	debug := c.Semantics.DebugInfo == nil || *c.Semantics.DebugInfo
	return Semantics{Language: lang, LoadDebugInfo: debug}, nil
}

// PassEnabled reports whether the named pass is not disabled.
func (c *Config) PassEnabled(name string) bool {
	for _, d := range c.Passes.Disable {
		if d == name {
			return false
		}
	}
	return true
}
