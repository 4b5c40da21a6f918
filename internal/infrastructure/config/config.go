package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic sequencer.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Sequencer SequencerConfig `yaml:"sequencer"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// PanelDir serves the booth panel from disk instead of the embedded copy.
	PanelDir string `yaml:"panel_dir"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`

	// Users may log in through POST /api/v1/auth/login. Tokens for
	// automation can also be issued with the token command.
	Users []UserConfig `yaml:"users"`
}

// UserConfig declares an API user. PasswordHash is an Argon2id PHC string
// produced by the hash-password command.
type UserConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"` // viewer, operator, admin
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// SequencerConfig contains the presentation sequencer settings.
type SequencerConfig struct {
	// TickInterval is how often running sequencers are advanced.
	// Default: 20ms
	TickInterval time.Duration `yaml:"tick_interval"`

	// ShowfileDir is scanned by the import command when no path is given.
	ShowfileDir string `yaml:"showfile_dir"`

	// Autoload lists definition IDs or slugs loaded at startup.
	Autoload []string `yaml:"autoload"`

	// Defaults are applied to definitions that do not set the flags.
	Defaults SequencerDefaults `yaml:"defaults"`

	// Targets are the MQTT-backed devices steps may reference.
	Targets []TargetConfig `yaml:"targets"`

	// Transitions are named custom transitions steps may reference.
	Transitions []TransitionConfig `yaml:"transitions"`

	// PublishEvents publishes lifecycle events on MQTT.
	// Default: true
	PublishEvents bool `yaml:"publish_events"`

	// HistoryLimit caps the executions returned by the API.
	// Default: 50
	HistoryLimit int `yaml:"history_limit"`
}

// SequencerDefaults are the global flags used for new definitions.
type SequencerDefaults struct {
	Skippable             bool `yaml:"skippable"`
	RemoveEmptyReferences bool `yaml:"remove_empty_references"`
}

// Target kinds.
const (
	TargetSurface  = "surface"
	TargetAnimator = "animator"
	TargetMedia    = "media"
)

// TargetConfig declares one MQTT-backed target.
type TargetConfig struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"` // surface, animator, media
	Name string `yaml:"name,omitempty"`
}

// Transition types.
const (
	TransitionPublish = "publish"
	TransitionScene   = "scene"
)

// TransitionConfig declares a named custom transition.
type TransitionConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // publish, scene

	// Topic and payloads are used by publish transitions.
	Topic      string `yaml:"topic,omitempty"`
	InPayload  string `yaml:"in_payload,omitempty"`
	OutPayload string `yaml:"out_payload,omitempty"`

	// InScene and OutScene are scene IDs used by scene transitions.
	InScene  string `yaml:"in_scene,omitempty"`
	OutScene string `yaml:"out_scene,omitempty"`

	// Hold keeps the transition running for this long after publishing.
	Hold time.Duration `yaml:"hold,omitempty"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			Path:        "./data/sequencer.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-sequencer",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
		Sequencer: SequencerConfig{
			TickInterval: 20 * time.Millisecond,
			ShowfileDir:  "./showfiles",
			Defaults: SequencerDefaults{
				Skippable:             true,
				RemoveEmptyReferences: true,
			},
			PublishEvents: true,
			HistoryLimit:  50,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("GRAYLOGIC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// Sequencer
	if v := os.Getenv("GRAYLOGIC_SEQUENCER_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sequencer.TickInterval = d
		}
	}
	if v := os.Getenv("GRAYLOGIC_SEQUENCER_SHOWFILE_DIR"); v != "" {
		cfg.Sequencer.ShowfileDir = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Control endpoints drive physical displays and lighting, so tokens must
	// not be forgeable.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set GRAYLOGIC_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	for i, u := range c.Security.Users {
		if u.Username == "" || u.PasswordHash == "" {
			errs = append(errs, fmt.Sprintf("security.users[%d] needs username and password_hash", i))
		}
		switch u.Role {
		case "viewer", "operator", "admin":
		default:
			errs = append(errs, fmt.Sprintf("security.users[%d].role %q is not viewer, operator or admin", i, u.Role))
		}
	}

	errs = append(errs, c.Sequencer.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (s *SequencerConfig) validate() []string {
	var errs []string

	if s.TickInterval < time.Millisecond || s.TickInterval > time.Second {
		errs = append(errs, "sequencer.tick_interval must be between 1ms and 1s")
	}

	seen := make(map[string]bool, len(s.Targets))
	for i, t := range s.Targets {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("sequencer.targets[%d].id is required", i))
			continue
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Sprintf("sequencer.targets[%d].id %q is duplicated", i, t.ID))
		}
		seen[t.ID] = true
		switch t.Kind {
		case TargetSurface, TargetAnimator, TargetMedia:
		default:
			errs = append(errs, fmt.Sprintf("sequencer.targets[%d].kind %q is not surface, animator or media", i, t.Kind))
		}
	}

	names := make(map[string]bool, len(s.Transitions))
	for i, tr := range s.Transitions {
		if tr.Name == "" {
			errs = append(errs, fmt.Sprintf("sequencer.transitions[%d].name is required", i))
			continue
		}
		if names[tr.Name] {
			errs = append(errs, fmt.Sprintf("sequencer.transitions[%d].name %q is duplicated", i, tr.Name))
		}
		names[tr.Name] = true
		switch tr.Type {
		case TransitionPublish:
			if tr.Topic == "" {
				errs = append(errs, fmt.Sprintf("sequencer.transitions[%d].topic is required for publish", i))
			}
		case TransitionScene:
			if tr.InScene == "" && tr.OutScene == "" {
				errs = append(errs, fmt.Sprintf("sequencer.transitions[%d] needs in_scene or out_scene", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("sequencer.transitions[%d].type %q is not publish or scene", i, tr.Type))
		}
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetAccessTokenTTL returns the API token lifetime as a Duration.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}
