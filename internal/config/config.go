package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. EQUOTEMANAGER_DB_DSN.
const EnvPrefix = "EQUOTEMANAGER"

type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	DB     DBConfig     `yaml:"db" mapstructure:"db"`
	Rates  RatesConfig  `yaml:"rates" mapstructure:"rates"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Notify NotifyConfig `yaml:"notify" mapstructure:"notify"`
	Alert  AlertConfig  `yaml:"alert" mapstructure:"alert"`
	Worker WorkerConfig `yaml:"worker" mapstructure:"worker"`
}

type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	SubmitRPS      float64  `yaml:"submit_rps" mapstructure:"submit_rps"`
	SubmitBurst    int      `yaml:"submit_burst" mapstructure:"submit_burst"`
}

type DBConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DSN         string `yaml:"dsn" mapstructure:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate" mapstructure:"auto_migrate"`
}

type RatesConfig struct {
	// File is a YAML or JSON rate document. Empty means built-in defaults.
	File string `yaml:"file" mapstructure:"file"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type NotifyConfig struct {
	// To receives new-lead emails and digests. Empty disables both.
	To string `yaml:"to" mapstructure:"to"`
}

type AlertConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	WebhookType string `yaml:"webhook_type" mapstructure:"webhook_type"`
}

type WorkerConfig struct {
	Interval   string        `yaml:"interval" mapstructure:"interval"`
	StaleAfter time.Duration `yaml:"stale_after" mapstructure:"stale_after"`
}

// Load reads configuration from file (or ./config.yaml when file is empty),
// then applies EQUOTEMANAGER_* environment overrides on top of defaults.
// A missing default config file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.submit_rps", 1.0)
	v.SetDefault("server.submit_burst", 5)
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "equotemanager.db")
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("rates.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("notify.to", "")
	v.SetDefault("alert.webhook_url", "")
	v.SetDefault("alert.webhook_type", "auto")
	v.SetDefault("worker.interval", "3600")
	v.SetDefault("worker.stale_after", "48h")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown db.driver %q (want memory, sqlite or postgres)", c.DB.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.SubmitRPS <= 0 || c.Server.SubmitBurst <= 0 {
		return eris.New("config: server.submit_rps and server.submit_burst must be positive")
	}
	if c.Worker.StaleAfter <= 0 {
		return eris.New("config: worker.stale_after must be positive")
	}
	return nil
}
