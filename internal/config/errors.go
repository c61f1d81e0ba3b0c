package config

import "fmt"

// PlaceholderLauncherID is the value shipped in the sample config file.
// It is treated the same as an unset launcher id.
const PlaceholderLauncherID = "your-launcher-id"

// ConfigError reports a missing or invalid configuration value
type ConfigError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
