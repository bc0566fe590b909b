// Package config provides the configuration schema and loader for voicehac.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to the matching [slog.Level]. Unknown values map to
// info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultLogLevel           = LogInfo
	DefaultHomeAssistantURL   = "http://homeassistant.local:8123"
	DefaultTimeout            = 10 * time.Second
	DefaultMaxFailures        = 5
	DefaultResetTimeout       = 30 * time.Second
	DefaultPhoneticThreshold  = 0.85
	DefaultBrightnessStep     = 25
	DefaultReloadPollInterval = 5 * time.Second
)

// Config is the root configuration structure for voicehac.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Recognizer    RecognizerConfig    `yaml:"recognizer"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Skills        SkillsConfig        `yaml:"skills"`
}

// ServerConfig holds logging and the optional HTTP listener.
type ServerConfig struct {
	// LogLevel controls verbosity. It can be changed without a restart.
	LogLevel LogLevel `yaml:"log_level"`

	// ListenAddr is the TCP address for /metrics, /healthz and /readyz
	// (e.g. ":9090"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`
}

// HomeAssistantConfig configures the backend REST client.
type HomeAssistantConfig struct {
	// URL is the base URL of the Home Assistant instance.
	URL string `yaml:"url"`

	// Token is a long-lived access token. Prefer VOICEHAC_HA_TOKEN.
	Token string `yaml:"token"`

	// Timeout bounds every HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of the backend.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive connectivity failures that
	// open the circuit.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the circuit stays open before a probe call
	// is let through.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// RecognizerConfig configures the vocabulary recogniser.
type RecognizerConfig struct {
	// Vocabulary is a YAML file or a directory in <label>/<canonical>.voc
	// layout. Empty selects the embedded default vocabulary.
	Vocabulary string `yaml:"vocabulary"`

	// Phonetic enables the sound-alike fallback. Nil means enabled.
	Phonetic *bool `yaml:"phonetic"`

	// PhoneticThreshold is the minimum Jaro-Winkler similarity, in (0, 1].
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`
}

// PhoneticEnabled reports whether the phonetic fallback is on.
func (r RecognizerConfig) PhoneticEnabled() bool {
	return r.Phonetic == nil || *r.Phonetic
}

// DispatchConfig tunes the dispatcher.
type DispatchConfig struct {
	// ParallelScoring scores skills concurrently.
	ParallelScoring bool `yaml:"parallel_scoring"`

	// SilentFailures suppresses the dialog for recognition and
	// skill-selection failures.
	SilentFailures bool `yaml:"silent_failures"`
}

// SkillsConfig holds per-skill settings.
type SkillsConfig struct {
	Lights LightsConfig `yaml:"lights"`
}

// LightsConfig configures the lights skill.
type LightsConfig struct {
	// Enabled registers the skill. Nil means enabled.
	Enabled *bool `yaml:"enabled"`

	// BrightnessStep is the increase/decrease step in percentage points.
	BrightnessStep int `yaml:"brightness_step"`
}

// IsEnabled reports whether the lights skill should be registered.
func (l LightsConfig) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

// ApplyDefaults fills every zero-valued field that has a default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.HomeAssistant.URL == "" {
		cfg.HomeAssistant.URL = DefaultHomeAssistantURL
	}
	if cfg.HomeAssistant.Timeout == 0 {
		cfg.HomeAssistant.Timeout = DefaultTimeout
	}
	if cfg.HomeAssistant.Breaker.MaxFailures == 0 {
		cfg.HomeAssistant.Breaker.MaxFailures = DefaultMaxFailures
	}
	if cfg.HomeAssistant.Breaker.ResetTimeout == 0 {
		cfg.HomeAssistant.Breaker.ResetTimeout = DefaultResetTimeout
	}
	if cfg.Recognizer.PhoneticThreshold == 0 {
		cfg.Recognizer.PhoneticThreshold = DefaultPhoneticThreshold
	}
	if cfg.Skills.Lights.BrightnessStep == 0 {
		cfg.Skills.Lights.BrightnessStep = DefaultBrightnessStep
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
