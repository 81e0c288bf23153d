package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Dealer Desk Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Hub      HubConfig      `yaml:"hub"`
	Relay    RelayConfig    `yaml:"relay"`
	API      APIConfig      `yaml:"api"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// StorageConfig locates the application data directory holding the
// credential cache, key file, stored token and per-tenant queue files.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// QueueDir returns the directory holding per-tenant queue files.
func (s StorageConfig) QueueDir() string {
	return filepath.Join(s.DataDir, "message_queue")
}

// TokenPath returns the file holding the last hub bearer token.
func (s StorageConfig) TokenPath() string {
	return filepath.Join(s.DataDir, "token.json")
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HubConfig describes the remote multi-tenant hub.
type HubConfig struct {
	Host               string `yaml:"host"`
	TLS                bool   `yaml:"tls"`
	Port               int    `yaml:"port"`
	AppKey             string `yaml:"app_key"`
	ChannelPrefix      string `yaml:"channel_prefix"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	RequestTimeout     int    `yaml:"request_timeout"`
	HealthTimeout      int    `yaml:"health_timeout"`
}

// HTTPBaseURL returns the scheme://host[:port] used for REST calls.
// An empty host yields an empty URL, meaning the hub is not configured.
func (h HubConfig) HTTPBaseURL() string {
	if h.Host == "" {
		return ""
	}
	if h.TLS {
		return "https://" + h.Host
	}
	return fmt.Sprintf("http://%s:%d", h.Host, h.Port)
}

// SocketURL returns the WebSocket endpoint for the configured app key.
func (h HubConfig) SocketURL() string {
	if h.Host == "" {
		return ""
	}
	if h.TLS {
		return fmt.Sprintf("wss://%s/app/%s", h.Host, h.AppKey)
	}
	return fmt.Sprintf("ws://%s:%d/app/%s", h.Host, h.Port, h.AppKey)
}

// RelayConfig tunes the relay connection lifecycle.
type RelayConfig struct {
	EventName            string `yaml:"event_name"`
	SubscribeTimeout     int    `yaml:"subscribe_timeout"`
	MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"`
	BackoffUnitMS        int    `yaml:"backoff_unit_ms"`
	MaxBackoff           int    `yaml:"max_backoff"`
	WriteTimeout         int    `yaml:"write_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
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
}

// MQTTConfig contains settings for the optional local event mirror.
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	TopicPrefix string           `yaml:"topic_prefix"`
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

// InfluxDBConfig contains InfluxDB connection settings for relay telemetry.
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path string `yaml:"path"`
}

// SecurityConfig contains security settings for the local REST surface.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// RateLimitConfig limits login attempts against the local REST surface.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//  4. Path resolution (~ expansion, database path under the data directory)
//
// Environment variables follow the pattern: DEALERDESK_SECTION_KEY
// For example: DEALERDESK_DATA_DIR, DEALERDESK_HUB_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("resolving paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir: "~/.dealer_desk",
		},
		Database: DatabaseConfig{
			WALMode:     true,
			BusyTimeout: 5,
		},
		Hub: HubConfig{
			TLS:            true,
			Port:           8000,
			ChannelPrefix:  "private-admin_penal_",
			RequestTimeout: 10,
			HealthTimeout:  3,
		},
		Relay: RelayConfig{
			EventName:            `App\Events\WebSocketMessageListener`,
			SubscribeTimeout:     30,
			MaxReconnectAttempts: 5,
			BackoffUnitMS:        1000,
			MaxBackoff:           60,
			WriteTimeout:         10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dealerdesk-core",
			},
			QoS:         1,
			TopicPrefix: "dealerdesk",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 720,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 20,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DEALERDESK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEALERDESK_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("DEALERDESK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Hub
	if v := os.Getenv("DEALERDESK_HUB_HOST"); v != "" {
		cfg.Hub.Host = v
	}
	if v := os.Getenv("DEALERDESK_HUB_APP_KEY"); v != "" {
		cfg.Hub.AppKey = v
	}
	if v := os.Getenv("DEALERDESK_HUB_TLS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Hub.TLS = b
		}
	}

	// MQTT
	if v := os.Getenv("DEALERDESK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DEALERDESK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DEALERDESK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("DEALERDESK_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("DEALERDESK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("DEALERDESK_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// resolvePaths expands a leading ~ in the data directory and places the
// database inside it when no explicit path is configured.
func (c *Config) resolvePaths() error {
	dir, err := expandHome(c.Storage.DataDir)
	if err != nil {
		return err
	}
	c.Storage.DataDir = dir

	if c.Database.Path == "" && dir != "" {
		c.Database.Path = filepath.Join(dir, "dealerdesk.db")
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Storage.DataDir == "" {
		errs = append(errs, "storage.data_dir is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Hub validation; an empty host is allowed and means offline-only operation
	if c.Hub.Host != "" {
		if c.Hub.AppKey == "" {
			errs = append(errs, "hub.app_key is required when hub.host is set")
		}
		if !c.Hub.TLS && (c.Hub.Port < 1 || c.Hub.Port > 65535) {
			errs = append(errs, "hub.port must be between 1 and 65535")
		}
	}
	if c.Hub.ChannelPrefix == "" {
		errs = append(errs, "hub.channel_prefix is required")
	}

	// Relay validation
	if c.Relay.EventName == "" {
		errs = append(errs, "relay.event_name is required")
	}
	if c.Relay.MaxReconnectAttempts < 1 {
		errs = append(errs, "relay.max_reconnect_attempts must be at least 1")
	}
	if c.Relay.SubscribeTimeout < 1 {
		errs = append(errs, "relay.subscribe_timeout must be at least 1 second")
	}
	if c.Relay.BackoffUnitMS < 1 || c.Relay.MaxBackoff < 1 {
		errs = append(errs, "relay.backoff_unit_ms and relay.max_backoff must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if strings.EqualFold(c.Logging.Output, "file") && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is file")
	}

	// Security validation - JWT secret is REQUIRED.
	// Operator tokens gate access to the hub relay and cached credentials.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set DEALERDESK_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// GetHubRequestTimeout returns the timeout for hub REST calls.
func (c *Config) GetHubRequestTimeout() time.Duration {
	return time.Duration(c.Hub.RequestTimeout) * time.Second
}

// GetHubHealthTimeout returns the timeout for the hub liveness probe.
func (c *Config) GetHubHealthTimeout() time.Duration {
	return time.Duration(c.Hub.HealthTimeout) * time.Second
}

// GetSubscribeTimeout returns the bounded wait for the subscription handshake.
func (c *Config) GetSubscribeTimeout() time.Duration {
	return time.Duration(c.Relay.SubscribeTimeout) * time.Second
}

// GetBackoffUnit returns the base unit of the reconnect backoff.
func (c *Config) GetBackoffUnit() time.Duration {
	return time.Duration(c.Relay.BackoffUnitMS) * time.Millisecond
}

// GetMaxBackoff returns the reconnect delay cap.
func (c *Config) GetMaxBackoff() time.Duration {
	return time.Duration(c.Relay.MaxBackoff) * time.Second
}

// GetRelayWriteTimeout returns the per-frame socket write deadline.
func (c *Config) GetRelayWriteTimeout() time.Duration {
	return time.Duration(c.Relay.WriteTimeout) * time.Second
}

// GetAccessTokenTTL returns the lifetime of operator access tokens.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}
