package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	DatabasePath    string        `mapstructure:"database_path" yaml:"database_path"`
	LogDir          string        `mapstructure:"log_dir" yaml:"log_dir"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	MaxLineBytes    int           `mapstructure:"max_line_bytes" yaml:"max_line_bytes"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
// IdleTimeout of zero disables the per-read deadline.
func Default() Config {
	return Config{
		Addr:            "127.0.0.1:9090",
		DatabasePath:    "linechat.db",
		LogDir:          "server_logs",
		LogLevel:        "info",
		MaxLineBytes:    1024,
		IdleTimeout:     0,
		ShutdownTimeout: 5 * time.Second,
	}
}
