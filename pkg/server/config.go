package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/geobr-tools/munimerge/pkg/cache"
	"github.com/geobr-tools/munimerge/pkg/pipeline"
)

// Config is the server configuration, loaded from a TOML file.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string `toml:"addr"`

	// Threshold and PopulationYear are the default run parameters; request
	// query parameters override them.
	Threshold      int `toml:"threshold"`
	PopulationYear int `toml:"population_year"`

	Cache CacheConfig `toml:"cache"`
}

// CacheConfig selects and configures the result cache backend.
type CacheConfig struct {
	// Backend is one of "file", "redis", "mongo", "null".
	Backend string `toml:"backend"`

	// Dir is the cache directory for the file backend. Empty means the
	// user cache directory.
	Dir string `toml:"dir"`

	// Redis backend settings.
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	// Mongo backend settings.
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`

	// TTL overrides the default result freshness window. Accepts Go
	// duration syntax, e.g. "24h".
	TTL duration `toml:"ttl"`

	// KeyPrefix scopes result keys so several deployments (a staging and
	// a production server, say) can share one Redis or MongoDB instance.
	// Empty means no scoping.
	KeyPrefix string `toml:"key_prefix"`
}

// duration wraps time.Duration with TOML text unmarshaling.
type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// DefaultConfig returns the configuration used when no file is given:
// local listener, file-backed cache, stock run parameters.
func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:8080",
		Threshold:      pipeline.DefaultThreshold,
		PopulationYear: pipeline.DefaultPopulationYear,
		Cache:          CacheConfig{Backend: "file"},
	}
}

// LoadConfig reads a TOML configuration file, filling unset fields with
// defaults. An empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Keyer returns the result key builder, scoped by KeyPrefix when one is
// configured.
func (c CacheConfig) Keyer() cache.Keyer {
	if c.KeyPrefix == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(nil, c.KeyPrefix)
}

// OpenCache constructs the configured cache backend. The context bounds
// connection setup for the networked backends.
func (c CacheConfig) OpenCache(ctx context.Context) (cache.Cache, error) {
	switch c.Backend {
	case "", "file":
		return cache.NewFileCache(c.Dir)
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
	case "mongo":
		return cache.NewMongoCache(ctx, cache.MongoConfig{
			URI:        c.MongoURI,
			Database:   c.MongoDatabase,
			Collection: c.MongoCollection,
		})
	case "null":
		return cache.NewNullCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", c.Backend)
	}
}
