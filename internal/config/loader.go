package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error returned from [Validate].
var ErrInvalid = errors.New("config: invalid")

// Environment variables that override the file.
const (
	EnvHomeAssistantURL   = "VOICEHAC_HA_URL"
	EnvHomeAssistantToken = "VOICEHAC_HA_TOKEN"
	EnvLogLevel           = "VOICEHAC_LOG_LEVEL"
)

// LookupFunc resolves an environment variable. [os.LookupEnv] satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads the YAML configuration file at path, applies defaults and
// environment overrides, and returns a validated [Config]. An empty path
// yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return load(strings.NewReader(""), os.LookupEnv)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := load(f, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	return load(r, nil)
}

func load(r io.Reader, lookup LookupFunc) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if lookup != nil {
		ApplyEnv(cfg, lookup)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and the log level from the environment.
// Empty variables are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	if v, ok := lookup(EnvHomeAssistantURL); ok && v != "" {
		cfg.HomeAssistant.URL = v
	}
	if v, ok := lookup(EnvHomeAssistantToken); ok && v != "" {
		cfg.HomeAssistant.Token = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Server.LogLevel = LogLevel(strings.ToLower(v))
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found; each
// wraps [ErrInvalid]. Soft problems are logged as warnings.
func Validate(cfg *Config) error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		invalid("server.log_level %q; valid values: debug, info, warn, error", cfg.Server.LogLevel)
	}
	if addr := cfg.Server.ListenAddr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			invalid("server.listen_addr %q: %v", addr, err)
		}
	}

	// Home Assistant
	ha := cfg.HomeAssistant
	if ha.URL == "" {
		invalid("homeassistant.url is required")
	} else if u, err := url.Parse(ha.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		invalid("homeassistant.url %q must be an absolute http(s) URL", ha.URL)
	}
	if ha.Token == "" {
		slog.Warn("config: homeassistant.token is empty; the backend will reject requests",
			"env", EnvHomeAssistantToken)
	}
	if ha.Timeout < 0 {
		invalid("homeassistant.timeout %s must be positive", ha.Timeout)
	}
	if ha.Breaker.MaxFailures < 0 {
		invalid("homeassistant.breaker.max_failures %d must be positive", ha.Breaker.MaxFailures)
	}
	if ha.Breaker.ResetTimeout < 0 {
		invalid("homeassistant.breaker.reset_timeout %s must be positive", ha.Breaker.ResetTimeout)
	}

	// Recognizer
	if th := cfg.Recognizer.PhoneticThreshold; th < 0 || th > 1 {
		invalid("recognizer.phonetic_threshold %.2f is out of range (0, 1]", th)
	}
	if v := cfg.Recognizer.Vocabulary; v != "" {
		if _, err := os.Stat(v); err != nil {
			invalid("recognizer.vocabulary: %v", err)
		}
	}
	if !cfg.Recognizer.PhoneticEnabled() && cfg.Recognizer.PhoneticThreshold != 0 && cfg.Recognizer.PhoneticThreshold != DefaultPhoneticThreshold {
		slog.Warn("config: recognizer.phonetic_threshold has no effect while phonetic matching is disabled")
	}

	// Skills
	if step := cfg.Skills.Lights.BrightnessStep; step < 0 || step > 100 {
		invalid("skills.lights.brightness_step %d is out of range [1, 100]", step)
	}
	if !cfg.Skills.Lights.IsEnabled() {
		slog.Warn("config: no skill is enabled; every utterance will fail skill selection")
	}

	return errors.Join(errs...)
}
