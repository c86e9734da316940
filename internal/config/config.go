package config

import "time"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Session   SessionConfig   `yaml:"session"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Limits    LimitsConfig    `yaml:"limits"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
	MetricsPort   int    `yaml:"metrics_port"`
}

type SessionConfig struct {
	// Backend is "memory" or "redis". Windows are always session-scoped;
	// the backend only decides where they live.
	Backend   string        `yaml:"backend"`
	TTL       time.Duration `yaml:"ttl"`
	WindowCap int           `yaml:"window_cap"`
}

type ArchiveConfig struct {
	Path string `yaml:"path"`
}

type LimitsConfig struct {
	RequestsPerMinute     int           `yaml:"requests_per_minute"`
	DailySpendLimitUSD    float64       `yaml:"daily_spend_limit_usd"`
	FailureThreshold      int           `yaml:"failure_threshold"`
	RecoveryProbeInterval time.Duration `yaml:"recovery_probe_interval"`
	UploadMaxBytes        int64         `yaml:"upload_max_bytes"`
	SummarizeMaxPages     int           `yaml:"summarize_max_pages"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:      "info",
			LogFormat:     "json",
			LogMaxSizeMB:  100,
			LogMaxBackups: 5,
			LogMaxAgeDays: 14,
			MetricsPort:   9090,
		},
		Session: SessionConfig{
			Backend:   "memory",
			TTL:       2 * time.Hour,
			WindowCap: 10,
		},
		Archive: ArchiveConfig{
			Path: "data/posts.json",
		},
		Limits: LimitsConfig{
			RequestsPerMinute:     60,
			DailySpendLimitUSD:    0, // 0 disables the spend gate
			FailureThreshold:      5,
			RecoveryProbeInterval: 15 * time.Second,
			UploadMaxBytes:        32 << 20,
			SummarizeMaxPages:     20,
		},
	}
}
