package config

import "time"

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// StoreConfig selects the persistence driver backing tenant tables.
type StoreConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `mapstructure:"driver"`

	// HistoryLimit bounds the per-user location/device/login history
	// sequences. Older entries are discarded first.
	HistoryLimit int `mapstructure:"history_limit"`
}

type GateConfig struct {
	// MaxAttempts forces MFA once a user has accumulated this many failed
	// attempts since the last successful login. 0 disables the cap.
	MaxAttempts int `mapstructure:"max_attempts"`

	SessionTokenEnabled bool          `mapstructure:"session_token_enabled"`
	JWTSecret           string        `mapstructure:"jwt_secret"`
	TokenExpiration     time.Duration `mapstructure:"token_expiration"`
}

type RiskConfig struct {
	// ModelPath points at a JSON ensemble model file. Empty selects the
	// embedded default model.
	ModelPath string `mapstructure:"model_path"`

	// Threshold maps probability-unsafe to the binary label.
	Threshold float64 `mapstructure:"threshold"`
}

type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Store    StoreConfig    `mapstructure:"store"`
	Gate     GateConfig     `mapstructure:"gate"`
	Risk     RiskConfig     `mapstructure:"risk"`
}
