package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed engine.yaml
var defaultEngineYAML []byte

const maxEngineFileSize = 1024 * 1024

// profileFields are the tunable per-module keys, longest first so env names
// split unambiguously.
var profileFields = []string{"min_exchanges_for_extraction", "max_exchanges"}

// EngineConfig 控制对话引擎的超时、历史窗口与模块阈值。
type EngineConfig struct {
	GenerationTimeout time.Duration `koanf:"generation_timeout"`
	ExtractionTimeout time.Duration `koanf:"extraction_timeout"`
	PersistTimeout    time.Duration `koanf:"persist_timeout"`
	HistoryLimit      int           `koanf:"history_limit"`
	MaxTokens         int           `koanf:"max_tokens"`

	Profiles map[string]ProfileConfig `koanf:"-"`
}

// ProfileConfig overrides one module's thresholds. Zero keeps the built-in
// value.
type ProfileConfig struct {
	MinExchangesForExtraction int `koanf:"min_exchanges_for_extraction"`
	MaxExchanges              int `koanf:"max_exchanges"`
}

// LoadEngine layers the embedded defaults, the optional YAML file at path and
// ENGINE_* environment variables, in that order.
//
//	ENGINE_GENERATION_TIMEOUT                     -> engine.generation_timeout
//	ENGINE_PROFILES_LIFE_THEMES_MAX_EXCHANGES     -> profiles.life-themes.max_exchanges
func LoadEngine(path string) (EngineConfig, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultEngineYAML), yaml.Parser()); err != nil {
		return EngineConfig{}, fmt.Errorf("failed to load engine defaults: %w", err)
	}

	if path != "" {
		content, err := readEngineFile(path)
		if err != nil {
			return EngineConfig{}, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return EngineConfig{}, fmt.Errorf("failed to load engine config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("ENGINE_", ".", engineEnvKey), nil); err != nil {
		return EngineConfig{}, fmt.Errorf("failed to load engine environment: %w", err)
	}

	var cfg EngineConfig
	if err := k.Unmarshal("engine", &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("failed to unmarshal engine config: %w", err)
	}
	cfg.Profiles = make(map[string]ProfileConfig)
	if k.Exists("profiles") {
		if err := k.Unmarshal("profiles", &cfg.Profiles); err != nil {
			return EngineConfig{}, fmt.Errorf("failed to unmarshal module profiles: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, fmt.Errorf("engine config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects non-positive timeouts and history windows.
func (c EngineConfig) Validate() error {
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("engine.generation_timeout must be positive")
	}
	if c.ExtractionTimeout <= 0 {
		return fmt.Errorf("engine.extraction_timeout must be positive")
	}
	if c.PersistTimeout <= 0 {
		return fmt.Errorf("engine.persist_timeout must be positive")
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("engine.history_limit must be at least 1")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("engine.max_tokens must not be negative")
	}
	for id, p := range c.Profiles {
		if p.MinExchangesForExtraction < 0 || p.MaxExchanges < 0 {
			return fmt.Errorf("profiles.%s: thresholds must not be negative", id)
		}
	}
	return nil
}

func readEngineFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat engine config: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("engine config %s is a directory", path)
	}
	if info.Size() > maxEngineFileSize {
		return nil, fmt.Errorf("engine config %s exceeds %d bytes", path, maxEngineFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine config: %w", err)
	}
	return content, nil
}

// engineEnvKey maps ENGINE_* names onto koanf keys. Module ids use dashes,
// which env names cannot carry, so underscores in the module part become
// dashes. ENGINE_CONFIG_FILE is the file pointer itself and is skipped.
func engineEnvKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, "ENGINE_"))
	if key == "config_file" {
		return ""
	}
	if rest, ok := strings.CutPrefix(key, "profiles_"); ok {
		for _, field := range profileFields {
			if module, ok := strings.CutSuffix(rest, "_"+field); ok && module != "" {
				return "profiles." + strings.ReplaceAll(module, "_", "-") + "." + field
			}
		}
		return ""
	}
	return "engine." + key
}
