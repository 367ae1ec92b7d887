package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/borderwatch/alert-dashboard/server/backend"
	"github.com/borderwatch/alert-dashboard/server/dashboard"
	"github.com/borderwatch/alert-dashboard/server/kvstore"
	"github.com/borderwatch/alert-dashboard/server/notify"
)

const (
	configPathEnv     = "ALERTDASH_CONFIG"
	defaultConfigPath = "alertdash.toml"
	defaultHTTPAddr   = ":8080"
	defaultTimezone   = "Asia/Kolkata"
	defaultAWSRegion  = "ap-south-1"
	defaultRedisAddr  = "localhost:6379"
)

// awsConfig holds the region and optional static key pair. When the key pair is empty the
// SDK default credential chain applies.
type awsConfig struct {
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Endpoint        string `toml:"endpoint"`
}

// cognitoConfig names the user pool app client. The pool itself is implied by the client.
type cognitoConfig struct {
	ClientID string `toml:"client_id"`
}

// mattermostConfig enables new-alert posts when URL and Token are set.
type mattermostConfig struct {
	URL       string `toml:"url"`
	Token     string `toml:"token"`
	BotUserID string `toml:"bot_user_id"`
}

func (c mattermostConfig) Enabled() bool {
	return c.URL != "" && c.Token != ""
}

// configuration captures the service configuration as read from the TOML file and the
// environment.
//
// The configuration can change at any time through a reload, so access to it must be
// synchronized. The strategy used is to guard a pointer to the configuration, and clone the
// entire struct whenever it changes.
type configuration struct {
	HTTPAddr          string   `toml:"http_addr"`
	LogLevel          string   `toml:"log_level"`
	LogFormat         string   `toml:"log_format"`
	Timezone          string   `toml:"timezone"`
	SessionTTLMinutes int      `toml:"session_ttl_minutes"`
	CookieSecure      bool     `toml:"cookie_secure"`
	AllowedOrigins    []string `toml:"allowed_origins"`

	AWS        awsConfig           `toml:"aws"`
	Cognito    cognitoConfig       `toml:"cognito"`
	Redis      kvstore.Config      `toml:"redis"`
	MQTT       notify.Config       `toml:"mqtt"`
	Mattermost mattermostConfig    `toml:"mattermost"`
	Map        dashboard.MapConfig `toml:"map"`

	// Backends is an array of backend configurations.
	// Each backend defines a separate alert table to poll and display.
	Backends []backend.Config `toml:"backends"`
}

func defaultConfiguration() *configuration {
	return &configuration{
		HTTPAddr:          defaultHTTPAddr,
		LogLevel:          "info",
		LogFormat:         "json",
		Timezone:          defaultTimezone,
		SessionTTLMinutes: int(24 * time.Hour / time.Minute),
		AWS:               awsConfig{Region: defaultAWSRegion},
		Redis:             kvstore.Config{Addr: defaultRedisAddr, KeyPrefix: "alertdash:"},
		MQTT:              notify.Config{ClientID: "alert-dashboard", QoS: 1},
		Map:               dashboard.DefaultMapConfig(),
	}
}

// Clone creates a deep copy of the configuration.
// This ensures that slice modifications don't affect the original.
func (c *configuration) Clone() *configuration {
	clone := *c

	if c.Backends != nil {
		clone.Backends = make([]backend.Config, len(c.Backends))
		for i, b := range c.Backends {
			b.NotifyTopics = append([]string(nil), b.NotifyTopics...)
			clone.Backends[i] = b
		}
	}
	if c.AllowedOrigins != nil {
		clone.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	}

	return &clone
}

// SessionTTL returns the session lifetime.
func (c *configuration) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Location returns the display time zone.
func (c *configuration) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timezone %q", c.Timezone)
	}
	return loc, nil
}

// IsValid checks the configuration and the backend list.
func (c *configuration) IsValid() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr must not be empty")
	}
	if c.SessionTTLMinutes <= 0 {
		return errors.Errorf("session_ttl_minutes must be positive (got %d)", c.SessionTTLMinutes)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Mattermost.Enabled() && c.Mattermost.BotUserID == "" {
		return errors.New("mattermost.bot_user_id is required when mattermost posting is enabled")
	}
	if err := backend.ValidateBackends(c.Backends); err != nil {
		return errors.Wrap(err, "invalid backend configuration")
	}
	return nil
}

// configPath returns the configuration file location.
func configPath() string {
	if v := strings.TrimSpace(os.Getenv(configPathEnv)); v != "" {
		return v
	}
	return defaultConfigPath
}

// loadConfiguration reads .env, then the TOML file at path, then the environment.
// Precedence is env > file > default. A missing file leaves the defaults in place.
func loadConfiguration(path string) (*configuration, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	cfg := defaultConfiguration()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	backend.ApplyDefaults(cfg.Backends)

	if err := cfg.IsValid(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *configuration) error {
	setString(&cfg.HTTPAddr, "ALERTDASH_HTTP_ADDR")
	setString(&cfg.LogLevel, "ALERTDASH_LOG_LEVEL")
	setString(&cfg.LogFormat, "ALERTDASH_LOG_FORMAT")
	setString(&cfg.Timezone, "ALERTDASH_TIMEZONE")

	if err := setInt(&cfg.SessionTTLMinutes, "ALERTDASH_SESSION_TTL_MINUTES"); err != nil {
		return err
	}
	if err := setBool(&cfg.CookieSecure, "ALERTDASH_COOKIE_SECURE"); err != nil {
		return err
	}
	if raw := strings.TrimSpace(os.Getenv("ALERTDASH_ALLOWED_ORIGINS")); raw != "" {
		cfg.AllowedOrigins = splitCSV(raw)
	}

	setString(&cfg.AWS.Region, "AWS_REGION")
	setString(&cfg.AWS.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&cfg.AWS.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&cfg.AWS.Endpoint, "AWS_ENDPOINT_URL")

	setString(&cfg.Cognito.ClientID, "COGNITO_CLIENT_ID")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if err := setInt(&cfg.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}

	setString(&cfg.MQTT.Broker, "MQTT_BROKER")
	setString(&cfg.MQTT.ClientID, "MQTT_CLIENT_ID")
	setString(&cfg.MQTT.Username, "MQTT_USERNAME")
	setString(&cfg.MQTT.Password, "MQTT_PASSWORD")

	setString(&cfg.Mattermost.URL, "MATTERMOST_URL")
	setString(&cfg.Mattermost.Token, "MATTERMOST_TOKEN")
	setString(&cfg.Mattermost.BotUserID, "MATTERMOST_BOT_USER_ID")

	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return errors.Wrapf(err, "invalid %s", key)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return errors.Wrapf(err, "invalid %s", key)
	}
	*dst = b
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// getConfiguration retrieves the active configuration under lock, making it safe to use
// concurrently. The struct returned is considered immutable.
func (s *Server) getConfiguration() *configuration {
	s.configurationLock.RLock()
	defer s.configurationLock.RUnlock()

	if s.configuration == nil {
		return defaultConfiguration()
	}

	return s.configuration
}

// setConfiguration replaces the active configuration under lock.
//
// This method panics if called with the existing configuration, which almost certainly
// means that the configuration was modified without being cloned.
func (s *Server) setConfiguration(configuration *configuration) {
	s.configurationLock.Lock()
	defer s.configurationLock.Unlock()

	if configuration != nil && s.configuration == configuration {
		panic("setConfiguration called with the existing configuration")
	}

	s.configuration = configuration
}

// findBackendConfigByID finds a backend configuration by ID in a slice of configs.
// Returns the config and true if found, or an empty config and false if not found.
func findBackendConfigByID(configs []backend.Config, id string) (backend.Config, bool) {
	for _, cfg := range configs {
		if cfg.ID == id {
			return cfg, true
		}
	}
	return backend.Config{}, false
}

// unregisterBackend unregisters a backend from the registry and logs the result.
func (s *Server) unregisterBackend(id string, reason string) {
	if err := s.registry.Unregister(id); err != nil {
		s.logger.Warnw("Failed to unregister backend", "id", id, "reason", reason, "error", err.Error())
	} else {
		s.logger.Infow("Unregistered backend", "id", id, "reason", reason)
	}
	s.deduplicator.Forget(id)
}

// OnConfigurationChange applies a reloaded configuration. Only backends whose
// configuration changed are restarted. Connection settings (HTTP address, redis, AWS,
// MQTT broker) need a process restart.
func (s *Server) OnConfigurationChange(newConfig *configuration) error {
	if err := newConfig.IsValid(); err != nil {
		return err
	}

	oldConfig := s.getConfiguration()

	toAdd, toUpdate, toRemove := backend.DiffBackendConfigs(oldConfig.Backends, newConfig.Backends)

	s.setConfiguration(newConfig)

	if s.registry != nil {
		for _, id := range toRemove {
			s.unregisterBackend(id, "backend removed from configuration")
		}

		for _, id := range toUpdate {
			s.unregisterBackend(id, "backend configuration changed")
			if cfg, found := findBackendConfigByID(newConfig.Backends, id); found {
				s.createAndStartBackend(cfg)
			}
		}

		for _, id := range toAdd {
			if cfg, found := findBackendConfigByID(newConfig.Backends, id); found {
				s.createAndStartBackend(cfg)
			}
		}
	}

	s.updateNotifyRoutes()

	s.logger.Infow("Configuration applied",
		"added", len(toAdd), "updated", len(toUpdate), "removed", len(toRemove))
	return nil
}
