package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borderwatch/alert-dashboard/server/backend"
	"github.com/borderwatch/alert-dashboard/server/dashboard"
)

var configEnvKeys = []string{
	"ALERTDASH_HTTP_ADDR", "ALERTDASH_LOG_LEVEL", "ALERTDASH_LOG_FORMAT", "ALERTDASH_TIMEZONE",
	"ALERTDASH_SESSION_TTL_MINUTES", "ALERTDASH_COOKIE_SECURE", "ALERTDASH_ALLOWED_ORIGINS",
	"AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_ENDPOINT_URL",
	"COGNITO_CLIENT_ID",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD",
	"MATTERMOST_URL", "MATTERMOST_TOKEN", "MATTERMOST_BOT_USER_ID",
}

// clearConfigEnv blanks every override so the host environment cannot leak into a test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alertdash.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const sampleConfig = `
http_addr = ":9090"
timezone = "UTC"
session_ttl_minutes = 60
allowed_origins = ["https://dash.example"]

[aws]
region = "eu-west-1"

[cognito]
client_id = "client"

[redis]
addr = "redis:6379"
key_prefix = "test:"

[mqtt]
broker = "ssl://iot.example:8883"
qos = 0

[map]
center = [12.5, 77.25]
zoom = 6

[[backends]]
id = "6ba7b810-9dad-41d1-80b4-00c04fd430c8"
name = "Detector 1"
type = "dynamodb"
enabled = true
table = "Detector1_alerts_table"
bucket = "detector1-bucket"
notify_topics = ["Detector1_alerts"]

[[backends]]
id = "550e8400-e29b-41d4-a716-446655440000"
name = "Detector 2"
type = "dynamodb"
enabled = false
table = "Detector2_alerts_table"
bucket = "detector2-bucket"
image_prefix = "images/"
poll_interval_seconds = 120
`

func TestLoadConfiguration_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := loadConfiguration(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "Asia/Kolkata", cfg.Timezone)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, "ap-south-1", cfg.AWS.Region)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "alertdash:", cfg.Redis.KeyPrefix)
	assert.False(t, cfg.MQTT.Enabled())
	assert.False(t, cfg.Mattermost.Enabled())
	assert.Equal(t, dashboard.DefaultMapConfig(), cfg.Map)
	assert.Empty(t, cfg.Backends)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoadConfiguration_File(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := loadConfiguration(writeConfigFile(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, time.Hour, cfg.SessionTTL())
	assert.Equal(t, []string{"https://dash.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "client", cfg.Cognito.ClientID)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "test:", cfg.Redis.KeyPrefix)
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, byte(0), cfg.MQTT.QoS)
	assert.Equal(t, "alert-dashboard", cfg.MQTT.ClientID, "unset keys keep their defaults")
	assert.Equal(t, dashboard.MapConfig{Center: [2]float64{12.5, 77.25}, Zoom: 6}, cfg.Map)

	require.Len(t, cfg.Backends, 2)
	first, second := cfg.Backends[0], cfg.Backends[1]
	assert.Equal(t, "Detector 1", first.Name)
	assert.True(t, first.Enabled)
	assert.Equal(t, []string{"Detector1_alerts"}, first.NotifyTopics)
	assert.Equal(t, backend.DefaultPollIntervalSeconds, first.PollIntervalSeconds)
	assert.Equal(t, backend.DefaultImagePrefix, first.ImagePrefix)
	assert.False(t, second.Enabled)
	assert.Equal(t, "images/", second.ImagePrefix)
	assert.Equal(t, 120, second.PollIntervalSeconds)
}

func TestLoadConfiguration_EnvOverridesFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ALERTDASH_HTTP_ADDR", ":7000")
	t.Setenv("ALERTDASH_SESSION_TTL_MINUTES", "15")
	t.Setenv("ALERTDASH_COOKIE_SECURE", "true")
	t.Setenv("ALERTDASH_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("AWS_REGION", "ap-south-1")
	t.Setenv("AWS_ENDPOINT_URL", "http://localstack:4566")
	t.Setenv("COGNITO_CLIENT_ID", "env-client")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MQTT_USERNAME", "device")
	t.Setenv("MATTERMOST_URL", "https://chat.example")
	t.Setenv("MATTERMOST_TOKEN", "token")
	t.Setenv("MATTERMOST_BOT_USER_ID", "bot")

	cfg, err := loadConfiguration(writeConfigFile(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL())
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "ap-south-1", cfg.AWS.Region)
	assert.Equal(t, "http://localstack:4566", cfg.AWS.Endpoint)
	assert.Equal(t, "env-client", cfg.Cognito.ClientID)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "device", cfg.MQTT.Username)
	assert.True(t, cfg.Mattermost.Enabled())
	assert.Equal(t, "bot", cfg.Mattermost.BotUserID)
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		env      map[string]string
		errMsg   string
	}{
		{
			name:     "malformed toml",
			contents: "http_addr = ",
			errMsg:   "failed to parse",
		},
		{
			name:     "bad timezone",
			contents: `timezone = "Mars/Olympus"`,
			errMsg:   "invalid timezone",
		},
		{
			name:     "non-positive session ttl",
			contents: `session_ttl_minutes = -5`,
			errMsg:   "session_ttl_minutes must be positive",
		},
		{
			name:     "bad integer override",
			contents: ``,
			env:      map[string]string{"REDIS_DB": "zero"},
			errMsg:   "invalid REDIS_DB",
		},
		{
			name:     "bad bool override",
			contents: ``,
			env:      map[string]string{"ALERTDASH_COOKIE_SECURE": "maybe"},
			errMsg:   "invalid ALERTDASH_COOKIE_SECURE",
		},
		{
			name:     "mattermost without bot user",
			contents: ``,
			env:      map[string]string{"MATTERMOST_URL": "https://chat.example", "MATTERMOST_TOKEN": "t"},
			errMsg:   "bot_user_id is required",
		},
		{
			name: "invalid backend",
			contents: `
[[backends]]
id = "not-a-uuid"
name = "Detector 1"
type = "dynamodb"
table = "t"
bucket = "b"
`,
			errMsg: "invalid backend configuration",
		},
		{
			name: "unsupported backend type",
			contents: `
[[backends]]
id = "6ba7b810-9dad-41d1-80b4-00c04fd430c8"
name = "Detector 1"
type = "postgres"
table = "t"
bucket = "b"
`,
			errMsg: "unsupported type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := loadConfiguration(writeConfigFile(t, tt.contents))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv(configPathEnv, "")
	assert.Equal(t, "alertdash.toml", configPath())

	t.Setenv(configPathEnv, "/etc/alertdash/config.toml")
	assert.Equal(t, "/etc/alertdash/config.toml", configPath())
}

func TestConfiguration_Clone(t *testing.T) {
	original := defaultConfiguration()
	original.AllowedOrigins = []string{"https://a.example"}
	original.Backends = []backend.Config{
		{ID: "id-1", Name: "Detector 1", NotifyTopics: []string{"Detector1_alerts"}},
	}

	clone := original.Clone()
	require.NotSame(t, original, clone)
	assert.Equal(t, original, clone)

	clone.AllowedOrigins[0] = "https://changed.example"
	clone.Backends[0].Name = "Changed"
	clone.Backends[0].NotifyTopics[0] = "changed"

	assert.Equal(t, "https://a.example", original.AllowedOrigins[0])
	assert.Equal(t, "Detector 1", original.Backends[0].Name)
	assert.Equal(t, "Detector1_alerts", original.Backends[0].NotifyTopics[0])
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(" , "))
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b,"))
}
