package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	Probe     ProbeConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver string // postgres, sqlite or memory
	URL    string
}

type SchedulerConfig struct {
	Hour          int
	Minute        int
	Timezone      string
	RetentionDays int
}

type ProbeConfig struct {
	UserAgent string
	RPS       float64
}

type LogConfig struct {
	Dir   string // empty means stdout only
	Level string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("SITEMONITOR")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("scheduler.hour", 3)
	viper.SetDefault("scheduler.minute", 0)
	viper.SetDefault("scheduler.timezone", "Asia/Shanghai")
	viper.SetDefault("scheduler.retentiondays", 30)
	viper.SetDefault("probe.useragent", "")
	viper.SetDefault("probe.rps", 0)
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.level", "info")

	var cfg Config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}

	if cfg.Database.Driver == "postgres" && cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}

	return &cfg, nil
}

// Location resolves the scheduler timezone, falling back to UTC when the
// name is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
