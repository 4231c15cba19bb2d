package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when --config is not given.
const DefaultPath = "/etc/geotrack/config.yaml"

// Config holds the complete client configuration.
type Config struct {
	Client   ClientConfig   `mapstructure:"client" yaml:"client"`
	Endpoint EndpointConfig `mapstructure:"endpoint" yaml:"endpoint"`
	Tracking TrackingConfig `mapstructure:"tracking" yaml:"tracking"`
	GPS      GPSConfig      `mapstructure:"gps" yaml:"gps"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// ClientConfig describes where the client runs.
type ClientConfig struct {
	// Host is the host name the client is reached under. It selects the
	// endpoint resolution branch (local development, static hosting).
	Host string `mapstructure:"host" yaml:"host"`
}

// EndpointConfig defines the tracking server endpoint defaults.
type EndpointConfig struct {
	DefaultURL  string   `mapstructure:"default_url" yaml:"default_url" validate:"required,url"`
	StaticHosts []string `mapstructure:"static_hosts" yaml:"static_hosts"`
}

// TrackingConfig defines polling and request timing.
type TrackingConfig struct {
	Interval       time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`
	CaptureTimeout time.Duration `mapstructure:"capture_timeout" yaml:"capture_timeout" validate:"gt=0"`
	SendTimeout    time.Duration `mapstructure:"send_timeout" yaml:"send_timeout" validate:"gt=0"`
}

// GPSConfig selects the location provider.
type GPSConfig struct {
	Type     string `mapstructure:"type" yaml:"type" validate:"oneof=nmea demo disabled"`
	PortPath string `mapstructure:"port_path" yaml:"port_path" validate:"required_if=Type nmea"`
	BaudRate int    `mapstructure:"baud_rate" yaml:"baud_rate" validate:"gte=0"`
}

// StorageConfig defines the persistent key-value backend.
type StorageConfig struct {
	Type  string      `mapstructure:"type" yaml:"type" validate:"oneof=bolt redis"`
	Path  string      `mapstructure:"path" yaml:"path" validate:"required_if=Type bolt"`
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig defines Redis connection settings.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr" yaml:"addr"`
	Password    string        `mapstructure:"password" yaml:"password,omitempty"`
	DB          int           `mapstructure:"db" yaml:"db" validate:"gte=0"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

// ServerConfig defines the local web panel. An empty ListenAddr disables it.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json text"`
}

// Load loads configuration from file and environment variables.
// A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("GEOTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("client.host", "localhost")

	v.SetDefault("endpoint.default_url", "http://localhost:8000/location")
	v.SetDefault("endpoint.static_hosts", []string{"github.io", "netlify.app", "vercel.app", "pages.dev"})

	v.SetDefault("tracking.interval", 5*time.Second)
	v.SetDefault("tracking.capture_timeout", 10*time.Second)
	v.SetDefault("tracking.send_timeout", 10*time.Second)

	v.SetDefault("gps.type", "demo")
	v.SetDefault("gps.port_path", "/dev/ttyGPS")
	v.SetDefault("gps.baud_rate", 9600)

	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/geotrack/geotrack.bolt")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.dial_timeout", 5*time.Second)

	v.SetDefault("server.listen_addr", ":8080")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

var validate = validator.New()

// ErrInvalidURL is returned for endpoint URLs that are not absolute
// http or https URLs.
var ErrInvalidURL = errors.New("invalid endpoint URL")

// Validate checks struct constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.Storage.Type == "redis" && cfg.Storage.Redis.Addr == "" {
		return fmt.Errorf("storage.redis.addr is required for redis storage")
	}
	return nil
}

// ValidateURL reports whether raw is an absolute URL usable as an endpoint.
func ValidateURL(raw string) error {
	if err := validate.Var(raw, "required,http_url"); err != nil {
		return fmt.Errorf("%w %q", ErrInvalidURL, raw)
	}
	return nil
}

// Write writes cfg to path as YAML, creating the directory if needed.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
