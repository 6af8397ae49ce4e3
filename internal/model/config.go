package model

import "time"

// Config is the complete fratlas configuration. Field tags serve both viper
// (mapstructure) and the YAML written by `fratlas config init`.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Uploads     UploadsConfig     `mapstructure:"uploads" yaml:"uploads"`
	Recognition RecognitionConfig `mapstructure:"recognition" yaml:"recognition"`
	Boundary    BoundaryConfig    `mapstructure:"boundary" yaml:"boundary"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit" yaml:"rate_limit"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Telegram    TelegramConfig    `mapstructure:"telegram" yaml:"telegram"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	MaxConns       int           `mapstructure:"max_conns" yaml:"max_conns"` // Concurrent connections accepted
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// DatabaseConfig selects the relational store
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // pgx or sqlite
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// UploadsConfig configures scanned-form storage
type UploadsConfig struct {
	Dir          string   `mapstructure:"dir" yaml:"dir"`
	AllowedTypes []string `mapstructure:"allowed_types" yaml:"allowed_types"`
}

// RecognitionConfig tunes the simulated recognition latency
type RecognitionConfig struct {
	MinDelay     time.Duration `mapstructure:"min_delay" yaml:"min_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	ExtractDelay time.Duration `mapstructure:"extract_delay" yaml:"extract_delay"`
	Seed         uint64        `mapstructure:"seed" yaml:"seed"` // 0 draws a random seed
}

// BoundaryConfig configures the boundary synthesizer
type BoundaryConfig struct {
	Seed uint64 `mapstructure:"seed" yaml:"seed"`
}

// RateLimitConfig limits upload requests per client
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
	// TrustedClients are remote IPs exempt from the limit, e.g. a reverse
	// proxy in front of the review dashboard
	TrustedClients []string `mapstructure:"trusted_clients" yaml:"trusted_clients"`
}

// CacheConfig configures the dashboard cache
type CacheConfig struct {
	StatsTTL time.Duration `mapstructure:"stats_ttl" yaml:"stats_ttl"`
}

// TelegramConfig configures the optional Telegram intake bot
type TelegramConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Token       string        `mapstructure:"token" yaml:"token"`
	HTTPProxy   string        `mapstructure:"http_proxy" yaml:"http_proxy"`
	HTTPSProxy  string        `mapstructure:"https_proxy" yaml:"https_proxy"`
	NoProxy     string        `mapstructure:"no_proxy" yaml:"no_proxy"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // json or console
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			MaxConns:       256,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			MaxUploadBytes: 10 << 20,
		},
		Database: DatabaseConfig{
			Driver:          "pgx",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
		},
		Uploads: UploadsConfig{
			Dir: "./uploads",
			AllowedTypes: []string{
				"application/pdf",
				"image/jpeg",
				"image/png",
				"image/tiff",
			},
		},
		Recognition: RecognitionConfig{
			MinDelay:     1500 * time.Millisecond,
			MaxDelay:     3500 * time.Millisecond,
			ExtractDelay: 500 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
			TrustedClients:    []string{},
		},
		Cache: CacheConfig{
			StatsTTL: 30 * time.Second,
		},
		Telegram: TelegramConfig{
			PollTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
