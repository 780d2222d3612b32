package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.EngineTimeout)
	assert.Equal(t, string(domain.AdminPolicyMulti), cfg.AdminPolicy)
	assert.Equal(t, domain.DefaultDisplayName, cfg.DefaultName)
	assert.Equal(t, uint16(40000), cfg.RTC.MinPort)
	assert.Equal(t, uint16(49999), cfg.RTC.MaxPort)
	assert.Equal(t, SlowPeerKick, cfg.SlowPeerPolicy)
	assert.Equal(t, domain.DefaultMediaCodecs(), cfg.Codecs())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
mode: debug
port: 8080
admin_policy: first
engine_timeout: 3s
join_rate:
  limit: 2
  interval: 30s
rtc:
  announced_ip: 203.0.113.7
  ice_servers:
    - stun:stun.l.google.com:19302
media_codecs:
  - kind: audio
    mime_type: audio/opus
    clock_rate: 48000
    channels: 2
`)
	t.Setenv("PORT", "9090")
	t.Setenv("RTC_MIN_PORT", "50000")
	t.Setenv("RTC_MAX_PORT", "50100")
	t.Setenv("LISTEN_IP", "127.0.0.1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9090, cfg.Port, "env wins over file")
	assert.Equal(t, "first", cfg.AdminPolicy)
	assert.Equal(t, 3*time.Second, cfg.EngineTimeout)
	assert.Equal(t, JoinRateConfig{Limit: 2, Interval: 30 * time.Second}, cfg.JoinRate)
	assert.Equal(t, "127.0.0.1", cfg.RTC.ListenIP)
	assert.Equal(t, "203.0.113.7", cfg.RTC.AnnouncedIP)
	assert.Equal(t, uint16(50000), cfg.RTC.MinPort)
	assert.Equal(t, uint16(50100), cfg.RTC.MaxPort)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.RTC.ICEServers)

	codecs := cfg.Codecs()
	require.Len(t, codecs, 1)
	assert.Equal(t, "audio/opus", codecs[0].MimeType)
	assert.Equal(t, uint16(2), codecs[0].Channels)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:           3000,
			AdminPolicy:    "multi",
			SlowPeerPolicy: SlowPeerDrop,
			EngineTimeout:  time.Second,
			LogLevel:       "debug",
			RTC:            RTCConfig{MinPort: 40000, MaxPort: 40010},
		}
	}
	base := valid()
	require.NoError(t, base.Validate())

	tests := map[string]func(c *Config){
		"port":           func(c *Config) { c.Port = 0 },
		"admin policy":   func(c *Config) { c.AdminPolicy = "everyone" },
		"slow peer":      func(c *Config) { c.SlowPeerPolicy = "ignore" },
		"port range":     func(c *Config) { c.RTC.MaxPort = 100 },
		"engine timeout": func(c *Config) { c.EngineTimeout = 0 },
		"log level":      func(c *Config) { c.LogLevel = "loud" },
		"codec":          func(c *Config) { c.MediaCodecs = []domain.RtpCodecCapability{{MimeType: "audio/opus"}} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
