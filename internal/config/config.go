// Package config loads the engine's resource budgets and file
// locations via Viper: a mapstructure-tagged struct, defaults set
// before the file is read, environment overrides on top.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the full set of construction-time parameters for the
// engine.
type Config struct {
	Engine struct {
		ArenaCapacity    int `mapstructure:"arena_capacity"`
		RingCapacity     int `mapstructure:"ring_capacity"`
		SnapshotInterval int `mapstructure:"snapshot_interval"`
	} `mapstructure:"engine"`

	Wal struct {
		Path        string `mapstructure:"path"`
		InitialSize int64  `mapstructure:"initial_size"`
	} `mapstructure:"wal"`

	Snapshot struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"snapshot"`

	Publisher struct {
		Transport   string `mapstructure:"transport"` // "udp" or "nats"
		UDPAddr     string `mapstructure:"udp_addr"`
		NATSURL     string `mapstructure:"nats_url"`
		NATSSubject string `mapstructure:"nats_subject"`
	} `mapstructure:"publisher"`

	API struct {
		ListenAddr string `mapstructure:"listen_addr"`
	} `mapstructure:"api"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Load reads configuration from configPath (a directory to search, or
// "" for the defaults below), applying VELOCITY_MATCH_-prefixed
// environment overrides on top.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/velocity-match")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("VELOCITY_MATCH")
	// Bind every key so env values reach Unmarshal, e.g.
	// VELOCITY_MATCH_ENGINE_ARENA_CAPACITY for engine.arena_capacity.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{
		"engine.arena_capacity", "engine.ring_capacity", "engine.snapshot_interval",
		"wal.path", "wal.initial_size", "snapshot.dir",
		"publisher.transport", "publisher.udp_addr", "publisher.nats_url", "publisher.nats_subject",
		"api.listen_addr", "log.level",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Engine.ArenaCapacity = 1_000_000
	cfg.Engine.RingCapacity = 65_536
	cfg.Engine.SnapshotInterval = 10_000

	cfg.Wal.Path = "data/velocity-match.wal"
	cfg.Wal.InitialSize = 64 << 20

	cfg.Snapshot.Dir = "data/snapshots"

	cfg.Publisher.Transport = "udp"
	cfg.Publisher.UDPAddr = "239.0.0.1:9999"
	cfg.Publisher.NATSURL = "nats://127.0.0.1:4222"
	cfg.Publisher.NATSSubject = "velocity-match.executions"

	cfg.API.ListenAddr = ":8080"

	cfg.Log.Level = "info"
}

// NewLogger builds a zap logger from the configured level, matching the
// level-switch idiom used throughout the example pack's config
// packages: "debug" selects zap's development logger, and every other
// level selects the production logger (info level).
func NewLogger(cfg *Config) (*zap.Logger, error) {
	switch cfg.Log.Level {
	case "debug":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
