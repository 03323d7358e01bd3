package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks the configuration for problems that would prevent the
// console from operating.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	servers := cfg.GetServers()
	if len(servers) == 0 {
		result.AddWarning("servers", "no servers configured; add entries to the servers list")
	}

	seen := make(map[string]bool, len(servers))
	for i, s := range servers {
		field := fmt.Sprintf("servers[%d]", i)

		if s.Name == "" {
			result.AddError(field+".name", "server name is required")
		} else if seen[s.Name] {
			result.AddError(field+".name", fmt.Sprintf("duplicate server name %q", s.Name))
		}
		seen[s.Name] = true

		if s.Address == "" {
			result.AddError(field+".address", "server address is required")
		} else if _, _, err := net.SplitHostPort(s.Address); err != nil {
			result.AddError(field+".address", fmt.Sprintf("invalid address %q: must be host:port", s.Address))
		}

		if s.Password == "" && s.PasswordEnv == "" {
			result.AddWarning(field, "no rcon_password or rcon_password_env set; connect will fail until one is configured")
		}
	}

	app := cfg.GetApplication()

	if app.APIPort < 0 || app.APIPort > 65535 {
		result.AddError("application_data.api_port", fmt.Sprintf("invalid port %d", app.APIPort))
	}

	if app.Monitor.Enabled && app.Monitor.IntervalSec < 1 {
		result.AddError("application_data.monitor.interval_sec", "interval must be at least 1 second")
	}

	if app.History.Enabled && app.History.Path == "" {
		result.AddError("application_data.history.path", "history is enabled but no database path is set")
	}

	if app.MQTT.Enabled {
		if app.MQTT.BrokerURL == "" {
			result.AddError("application_data.mqtt.broker_url", "mqtt is enabled but no broker is set")
		}
		if app.MQTT.Port < 1 || app.MQTT.Port > 65535 {
			result.AddError("application_data.mqtt.port", fmt.Sprintf("invalid port %d", app.MQTT.Port))
		}
	}

	switch strings.ToLower(app.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		result.AddWarning("application_data.logging.level", fmt.Sprintf("unknown log level %q, falling back to info", app.Logging.Level))
	}

	return result
}
