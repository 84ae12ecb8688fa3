package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	StaticDir         string        `mapstructure:"static_dir" yaml:"static_dir"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMin   int           `mapstructure:"rate_limit_per_min" yaml:"rate_limit_per_min"`
	MaxChatLength     int           `mapstructure:"max_chat_length" yaml:"max_chat_length"`
	RoomIdleTTL       time.Duration `mapstructure:"room_idle_ttl" yaml:"room_idle_ttl"`
	Store             StoreConfig   `mapstructure:"store" yaml:"store"`
}

// StoreConfig selects and configures the durable store.
type StoreConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver"`
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
}

const (
	StoreDriverSQLite = "sqlite"
	StoreDriverRedis  = "redis"
)

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":3000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		StaticDir:         "public",
		MaxMessageBytes:   64 << 10,
		RateLimitPerMin:   6000,
		MaxChatLength:     2000,
		RoomIdleTTL:       0,
		Store: StoreConfig{
			Driver:      StoreDriverSQLite,
			SQLitePath:  "wiredraw.db",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "wiredraw",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.StaticDir != "" {
		c.StaticDir = other.StaticDir
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.SQLitePath != "" {
		c.Store.SQLitePath = other.Store.SQLitePath
	}
	if other.Store.RedisAddr != "" {
		c.Store.RedisAddr = other.Store.RedisAddr
	}
}
