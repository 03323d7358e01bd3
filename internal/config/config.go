// Package config handles configuration loading, validation, and persistence
// for the rconsole fleet console.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultAPIPort    = 5800
	DefaultRconPort   = 25575
)

// Config is the root configuration structure for rconsole.
type Config struct {
	mu   sync.RWMutex
	path string

	Servers     []ServerConfig  `json:"servers"`
	Application ApplicationData `json:"application_data"`
}

// ServerConfig describes one game server endpoint.
type ServerConfig struct {
	// Identity
	Name    string `json:"name"`
	Address string `json:"address"` // host:port of the RCON listener

	// Credentials. Password wins when both are set; PasswordEnv names an
	// environment variable so the password can stay out of the file.
	Password    string `json:"rcon_password,omitempty"`
	PasswordEnv string `json:"rcon_password_env,omitempty"`

	// Per-server timeout overrides, seconds. Zero means use defaults.
	DialTimeoutSec  int `json:"dial_timeout_sec,omitempty"`
	ReadTimeoutSec  int `json:"read_timeout_sec,omitempty"`
	WriteTimeoutSec int `json:"write_timeout_sec,omitempty"`
}

// ResolvePassword returns the RCON password for this server, consulting the
// named environment variable when the literal password is not set.
func (s ServerConfig) ResolvePassword() (string, error) {
	if s.Password != "" {
		return s.Password, nil
	}
	if s.PasswordEnv != "" {
		if v, ok := os.LookupEnv(s.PasswordEnv); ok {
			return v, nil
		}
		return "", fmt.Errorf("environment variable %s for server %s is not set", s.PasswordEnv, s.Name)
	}
	return "", fmt.Errorf("no rcon password configured for server %s", s.Name)
}

// ApplicationData contains console application configuration.
type ApplicationData struct {
	Monitor  MonitorConfig  `json:"monitor"`
	History  HistoryConfig  `json:"history"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
	APIPort  int            `json:"api_port"`
}

// MonitorConfig holds keepalive polling settings.
type MonitorConfig struct {
	Enabled          bool   `json:"enabled"`
	IntervalSec      int    `json:"interval_sec"`
	KeepAliveCommand string `json:"keepalive_command"`
}

// HistoryConfig holds command audit log settings.
type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
	ClientID  string `json:"client_id"`
}

// SecurityConfig holds API security settings.
type SecurityConfig struct {
	APIToken       string   `json:"api_token"`
	AllowedOrigins []string `json:"allowed_origins"`
	AuthDisabled   bool     `json:"auth_disabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults and a single
// placeholder entry pointing at a local Minecraft server.
func DefaultConfig() *Config {
	return &Config{
		Servers: []ServerConfig{
			{
				Name:        "local",
				Address:     fmt.Sprintf("127.0.0.1:%d", DefaultRconPort),
				PasswordEnv: "RCON_PASSWORD",
			},
		},
		Application: ApplicationData{
			Monitor: MonitorConfig{
				Enabled:          true,
				IntervalSec:      60,
				KeepAliveCommand: "list",
			},
			History: HistoryConfig{
				Enabled: true,
				Path:    "config/history.db",
			},
			MQTT: MQTTConfig{
				Port: 8883,
			},
			Security: SecurityConfig{
				AuthDisabled: true,
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxBackups: 5,
			},
			APIPort: DefaultAPIPort,
		},
	}
}

// Load reads configuration from a JSON file, creating the default when the
// file does not exist yet.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Int("servers", len(cfg.Servers)).Msg("configuration loaded")

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetServers returns a copy of the configured server list.
func (c *Config) GetServers() []ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	servers := make([]ServerConfig, len(c.Servers))
	copy(servers, c.Servers)
	return servers
}

// GetServer returns the configuration for a named server.
func (c *Config) GetServer(name string) (ServerConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return ServerConfig{}, false
}

// AddServer appends a new server entry. The name must be unique.
func (c *Config) AddServer(srv ServerConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.Servers {
		if s.Name == srv.Name {
			return fmt.Errorf("server %s already configured", srv.Name)
		}
	}
	c.Servers = append(c.Servers, srv)
	return nil
}

// RemoveServer deletes a server entry by name. It reports whether an entry
// was removed.
func (c *Config) RemoveServer(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.Servers {
		if s.Name == name {
			c.Servers = append(c.Servers[:i], c.Servers[i+1:]...)
			return true
		}
	}
	return false
}

// GetApplication returns a copy of the application configuration.
func (c *Config) GetApplication() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Application
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
