package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr     string `mapstructure:"addr"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"server"`

	Storage struct {
		Driver   string `mapstructure:"driver"` // memory | postgres | redis
		RedisURL string `mapstructure:"redis_url"`
	} `mapstructure:"storage"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	RemoteConfig struct {
		DatabaseURL string        `mapstructure:"database_url"`
		AuthToken   string        `mapstructure:"auth_token"`
		HostKey     string        `mapstructure:"host_key"`
		PathKey     string        `mapstructure:"path_key"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"remote_config"`

	Backend struct {
		Timeout   time.Duration `mapstructure:"timeout"`
		UserAgent string        `mapstructure:"user_agent"`
	} `mapstructure:"backend"`

	Gate struct {
		PushTokenTimeout time.Duration `mapstructure:"push_token_timeout"`
	} `mapstructure:"gate"`

	App struct {
		BundleID    string `mapstructure:"bundle_id"`
		OSVersion   string `mapstructure:"os_version"`
		DeviceModel string `mapstructure:"device_model"`
	} `mapstructure:"app"`

	Attribution struct {
		TokenFile string `mapstructure:"token_file"`
		NetworkID string `mapstructure:"network_id"`
	} `mapstructure:"attribution"`

	Events struct {
		Sink   string `mapstructure:"sink"` // log | postgres | redis
		Buffer int    `mapstructure:"buffer"`
	} `mapstructure:"events"`

	Listener struct {
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`
}

// Load reads configs/application.yaml (or the given file) and applies
// STARTGATE_* environment overrides, e.g. STARTGATE_BACKEND_TIMEOUT=10s.
func Load(path string) Config {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("application")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
	}
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("STARTGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.db_name", "startgate")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 2)
	v.SetDefault("remote_config.database_url", "")
	v.SetDefault("remote_config.auth_token", "")
	v.SetDefault("remote_config.host_key", "small")
	v.SetDefault("remote_config.path_key", "stick")
	v.SetDefault("remote_config.timeout", "10s")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.user_agent", "")
	v.SetDefault("gate.push_token_timeout", "5s")
	v.SetDefault("app.bundle_id", "")
	v.SetDefault("app.os_version", "")
	v.SetDefault("app.device_model", "")
	v.SetDefault("attribution.token_file", "")
	v.SetDefault("attribution.network_id", "")
	v.SetDefault("events.sink", "log")
	v.SetDefault("events.buffer", 64)
	v.SetDefault("listener.channel", "push_token")
	v.SetDefault("listener.reconnect_seconds", 5)
}

func validate(c *Config) {
	if c.Server.Addr == "" { c.Server.Addr = ":8080" }
	if c.Storage.Driver == "" { c.Storage.Driver = "memory" }
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Postgres.Port == 0 { c.Postgres.Port = 5432 }
	if c.Postgres.SSLMode == "" { c.Postgres.SSLMode = "disable" }
	if c.Postgres.MaxOpenConns == 0 { c.Postgres.MaxOpenConns = 10 }
	if c.Postgres.MaxIdleConns == 0 { c.Postgres.MaxIdleConns = 2 }
	if c.RemoteConfig.HostKey == "" { c.RemoteConfig.HostKey = "small" }
	if c.RemoteConfig.PathKey == "" { c.RemoteConfig.PathKey = "stick" }
	if c.RemoteConfig.Timeout <= 0 { c.RemoteConfig.Timeout = 10 * time.Second }
	if c.Backend.Timeout <= 0 { c.Backend.Timeout = 15 * time.Second }
	if c.Gate.PushTokenTimeout <= 0 { c.Gate.PushTokenTimeout = 5 * time.Second }
	if c.Events.Sink == "" { c.Events.Sink = "log" }
	c.Events.Sink = strings.ToLower(c.Events.Sink)
	if c.Events.Buffer <= 0 { c.Events.Buffer = 64 }
	if c.Listener.Channel == "" { c.Listener.Channel = "push_token" }
	if c.Listener.ReconnectSeconds <= 0 { c.Listener.ReconnectSeconds = 5 }
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) Backoff() time.Duration { return time.Duration(c.Listener.ReconnectSeconds) * time.Second }
