package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type RTCConfig struct {
	ListenIP    string   `mapstructure:"listen_ip"`
	AnnouncedIP string   `mapstructure:"announced_ip"`
	MinPort     uint16   `mapstructure:"min_port"`
	MaxPort     uint16   `mapstructure:"max_port"`
	ICEServers  []string `mapstructure:"ice_servers"`
}

type JoinRateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	CORSOrigin string `mapstructure:"cors_origin"`
	Secret     string `mapstructure:"secret"`
	LogLevel   string `mapstructure:"log_level"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendQueue  int           `mapstructure:"send_queue"`

	EngineTimeout  time.Duration  `mapstructure:"engine_timeout"`
	AdminPolicy    string         `mapstructure:"admin_policy"`
	DefaultName    string         `mapstructure:"default_name"`
	SlowPeerPolicy string         `mapstructure:"slow_peer_policy"`
	JoinRate       JoinRateConfig `mapstructure:"join_rate"`

	RTC         RTCConfig                   `mapstructure:"rtc"`
	MediaCodecs []domain.RtpCodecCapability `mapstructure:"media_codecs"`
}

const (
	SlowPeerKick = "kick"
	SlowPeerDrop = "drop"
)

// envBindings are the variables the deployment scripts already set.
var envBindings = map[string]string{
	"port":             "PORT",
	"cors_origin":      "CORS_ORIGIN",
	"log_level":        "LOG_LEVEL",
	"rtc.min_port":     "RTC_MIN_PORT",
	"rtc.max_port":     "RTC_MAX_PORT",
	"rtc.listen_ip":    "LISTEN_IP",
	"rtc.announced_ip": "ANNOUNCED_IP",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	v.SetDefault("static_path", "")
	v.SetDefault("cors_origin", "*")
	v.SetDefault("secret", "huddle-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_queue", 64)
	v.SetDefault("engine_timeout", "10s")
	v.SetDefault("admin_policy", string(domain.AdminPolicyMulti))
	v.SetDefault("default_name", domain.DefaultDisplayName)
	v.SetDefault("slow_peer_policy", SlowPeerKick)
	v.SetDefault("join_rate.limit", 10)
	v.SetDefault("join_rate.interval", "1m")
	v.SetDefault("rtc.listen_ip", "0.0.0.0")
	v.SetDefault("rtc.announced_ip", "")
	v.SetDefault("rtc.min_port", 40000)
	v.SetDefault("rtc.max_port", 49999)
	v.SetDefault("rtc.ice_servers", []string{})
}

// Load reads .env, then the config file, then the environment. An empty path
// selects config/config.<CONFIG_ENV>.yaml.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("failed to read .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		path = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(path)

	setDefaults(v)
	v.SetEnvPrefix("HUDDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "HUDDLE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", path).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", path).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("admin_policy", cfg.AdminPolicy).
		Uint16("rtc_min_port", cfg.RTC.MinPort).
		Uint16("rtc_max_port", cfg.RTC.MaxPort).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if _, err := domain.ParseAdminPolicy(c.AdminPolicy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.SlowPeerPolicy {
	case SlowPeerKick, SlowPeerDrop:
	default:
		return fmt.Errorf("config: unknown slow_peer_policy %q", c.SlowPeerPolicy)
	}
	if c.RTC.MinPort == 0 || c.RTC.MaxPort < c.RTC.MinPort {
		return fmt.Errorf("config: invalid rtc port range %d-%d", c.RTC.MinPort, c.RTC.MaxPort)
	}
	if c.EngineTimeout <= 0 {
		return fmt.Errorf("config: engine_timeout must be positive")
	}
	if len([]rune(c.DefaultName)) > domain.MaxDisplayNameLen {
		return fmt.Errorf("config: default_name longer than %d", domain.MaxDisplayNameLen)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for i, codec := range c.MediaCodecs {
		if codec.MimeType == "" || codec.ClockRate == 0 {
			return fmt.Errorf("config: media_codecs[%d] needs mime_type and clock_rate", i)
		}
	}
	return nil
}

// Codecs returns the router codec set.
func (c *Config) Codecs() []domain.RtpCodecCapability {
	if len(c.MediaCodecs) == 0 {
		return domain.DefaultMediaCodecs()
	}
	return c.MediaCodecs
}

// Level returns the configured log level.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
