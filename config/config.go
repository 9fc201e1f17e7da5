// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"github.com/caarlos0/env/v11"
	"github.com/fuad-daoud/discord-mirror/sharding"
	"github.com/joho/godotenv"
	"log/slog"
	"os"
	"path/filepath"
)

type Config struct {
	Token string `env:"TOKEN"`
	// ShardIDs are the shards this process connects; empty means all of them.
	ShardIDs    []uint32   `env:"SHARD_IDS" envSeparator:","`
	ShardCount  uint32     `env:"SHARD_COUNT" envDefault:"1"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogDir      string     `env:"LOG_DIR"`
	ArchiveCron string     `env:"ARCHIVE_CRON" envDefault:"@midnight"`
	CensusCron  string     `env:"CENSUS_CRON" envDefault:"@every 1m"`
	HTTPAddr    string     `env:"HTTP_ADDR" envDefault:":8080"`
	ErrorBuffer int        `env:"ERROR_BUFFER" envDefault:"64"`
}

// Load reads dir/.env when it exists, without overriding variables that are
// already set, then parses the environment.
func Load(dir string) (Config, error) {
	envPath := filepath.Join(dir, ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envPath, err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ShardCount == 0 {
		return fmt.Errorf("SHARD_COUNT: %w: must be positive", sharding.ErrInvalidPartition)
	}
	seen := make(map[uint32]bool, len(c.ShardIDs))
	for _, id := range c.ShardIDs {
		if err := (sharding.Partition{ShardID: id, ShardCount: c.ShardCount}).Validate(); err != nil {
			return fmt.Errorf("SHARD_IDS: %w", err)
		}
		if seen[id] {
			return fmt.Errorf("SHARD_IDS: shard %d listed twice", id)
		}
		seen[id] = true
	}
	if c.ErrorBuffer < 0 {
		return fmt.Errorf("ERROR_BUFFER: must not be negative, got %d", c.ErrorBuffer)
	}
	return nil
}

// Partitions returns the shards this process owns.
func (c Config) Partitions() []sharding.Partition {
	if len(c.ShardIDs) == 0 {
		return sharding.All(c.ShardCount)
	}
	partitions := make([]sharding.Partition, 0, len(c.ShardIDs))
	for _, id := range c.ShardIDs {
		partitions = append(partitions, sharding.Partition{ShardID: id, ShardCount: c.ShardCount})
	}
	return partitions
}
