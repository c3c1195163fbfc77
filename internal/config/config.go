package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"tradeclock/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradeclock service.
type Config struct {
	Storage Storage       `yaml:"storage"`
	Server  Server        `yaml:"server"`
	Clock   ClockConfig   `yaml:"clock"`
	Alpaca  Alpaca        `yaml:"alpaca"`
	Logging Logging       `yaml:"logging"`
	Archive ArchiveConfig `yaml:"archive"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ClockConfig defines the reference timezone, the configured trading
// sessions, and the window within which an event counts as "now".
type ClockConfig struct {
	Timezone         string          `yaml:"timezone"`
	NowWindowMinutes int             `yaml:"now_window_minutes"`
	Sessions         []SessionConfig `yaml:"sessions"`
}

// SessionConfig declares one recurring daily trading session. Start and End
// are "HH:MM" strings in the clock timezone; End <= Start spans midnight.
type SessionConfig struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// DomainSessions converts the configured session list to domain values.
func (c ClockConfig) DomainSessions() []domain.Session {
	out := make([]domain.Session, 0, len(c.Sessions))
	for _, s := range c.Sessions {
		out = append(out, domain.Session{
			Name:       s.Name,
			ColorToken: s.Color,
			Start:      s.Start,
			End:        s.End,
		})
	}
	return out
}

// Alpaca holds credentials for the exchange trading-calendar API. Optional:
// empty credentials disable holiday awareness.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ArchiveConfig controls the daily job moving past events from SQLite to the
// Parquet archive.
type ArchiveConfig struct {
	CronSpec string `yaml:"cron_spec"`
	KeepDays int    `yaml:"keep_days"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-valued fields that have a sensible default.
func applyDefaults(cfg *Config) {
	if cfg.Clock.Timezone == "" {
		cfg.Clock.Timezone = "America/New_York"
	}
	if cfg.Clock.NowWindowMinutes <= 0 {
		cfg.Clock.NowWindowMinutes = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Archive.CronSpec == "" {
		// Shortly after local midnight so the finished day is complete.
		cfg.Archive.CronSpec = "5 0 * * *"
	}
	if cfg.Archive.KeepDays <= 0 {
		cfg.Archive.KeepDays = 7
	}
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("CLOCK_TZ"); v != "" {
		cfg.Clock.Timezone = v
	}
	if v := os.Getenv("CLOCK_NOW_WINDOW_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Clock.NowWindowMinutes = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
