package config

// Changes describes what differs between two configs.
type Changes struct {
	// LogLevelChanged is set when server.log_level differs; the new level
	// can be applied at runtime.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired lists the dotted keys of changed settings that only
	// take effect after a restart, in schema order.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return !c.LogLevelChanged && len(c.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) Changes {
	var c Changes

	if old.Server.LogLevel != new.Server.LogLevel {
		c.LogLevelChanged = true
		c.NewLogLevel = new.Server.LogLevel
	}

	restart := func(key string, changed bool) {
		if changed {
			c.RestartRequired = append(c.RestartRequired, key)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("homeassistant.url", old.HomeAssistant.URL != new.HomeAssistant.URL)
	restart("homeassistant.token", old.HomeAssistant.Token != new.HomeAssistant.Token)
	restart("homeassistant.timeout", old.HomeAssistant.Timeout != new.HomeAssistant.Timeout)
	restart("homeassistant.breaker", old.HomeAssistant.Breaker != new.HomeAssistant.Breaker)
	restart("recognizer.vocabulary", old.Recognizer.Vocabulary != new.Recognizer.Vocabulary)
	restart("recognizer.phonetic", old.Recognizer.PhoneticEnabled() != new.Recognizer.PhoneticEnabled())
	restart("recognizer.phonetic_threshold", old.Recognizer.PhoneticThreshold != new.Recognizer.PhoneticThreshold)
	restart("dispatch", old.Dispatch != new.Dispatch)
	restart("skills.lights.enabled", old.Skills.Lights.IsEnabled() != new.Skills.Lights.IsEnabled())
	restart("skills.lights.brightness_step", old.Skills.Lights.BrightnessStep != new.Skills.Lights.BrightnessStep)

	return c
}
