// Package config loads gpadmin settings from gpadmin.yaml and GPADMIN_*
// environment variables
package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/lemmego/gpadmin"
	"github.com/lemmego/gpadmin/gparedis"
	"github.com/lemmego/gpadmin/gpas3"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes environment overrides, e.g. GPADMIN_ADMIN_PER_PAGE
const EnvPrefix = "GPADMIN"

// Config represents the gpadmin configuration
type Config struct {
	Admin    AdminConfig    `mapstructure:"admin"`
	Database gpadmin.Config `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
}

// AdminConfig holds resource and translation defaults
type AdminConfig struct {
	PerPage           int    `mapstructure:"per_page"`
	Locale            string `mapstructure:"locale"`
	TranslationsDir   string `mapstructure:"translations_dir"`
	TranslationPrefix string `mapstructure:"translation_prefix"`
	HumanizeMissing   bool   `mapstructure:"humanize_missing"`
	AtomicDelete      bool   `mapstructure:"atomic_delete"`
}

// RedisConfig enables the Redis order sequence when Enabled is set
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	KeyPrefix string `mapstructure:"key_prefix"`

	gpadmin.Config `mapstructure:",squash"`
}

// StorageConfig selects where uploaded files are pruned from
type StorageConfig struct {
	// Driver is "local" or "s3"
	Driver string       `mapstructure:"driver"`
	Root   string       `mapstructure:"root"`
	S3     gpas3.Config `mapstructure:"s3"`
}

// Load reads gpadmin.yaml from the given directories (the working directory
// when none are given). A missing file leaves the defaults in place.
func Load(paths ...string) (*Config, error) {
	v := newViper()
	v.SetConfigName("gpadmin")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConfiguration, "failed to read config file", err)
		}
	}
	return decode(v)
}

// LoadFile reads the configuration from file, whose extension picks the format
func LoadFile(file string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConfiguration,
			fmt.Sprintf("failed to read config file %s", file), err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("admin.per_page", gpadmin.DefaultPerPage)
	v.SetDefault("admin.locale", "en")
	v.SetDefault("admin.translations_dir", "")
	v.SetDefault("admin.translation_prefix", "admin.")
	v.SetDefault("admin.humanize_missing", true)
	v.SetDefault("admin.atomic_delete", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.database", "gpadmin.db")
	v.SetDefault("database.connection_url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.log_level", "silent")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.key_prefix", gparedis.DefaultKeyPrefix)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.connection_url", "")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.root", "storage")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.prefix", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.development", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConfiguration, "failed to unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	if c.Admin.PerPage <= 0 {
		return gpadmin.NewError(gpadmin.ErrorTypeConfiguration, fmt.Sprintf("admin.per_page must be positive, got %d", c.Admin.PerPage))
	}
	switch c.Storage.Driver {
	case "local", "s3":
	default:
		return gpadmin.NewError(gpadmin.ErrorTypeConfiguration, fmt.Sprintf("unknown storage driver %q", c.Storage.Driver))
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	return nil
}

// Catalog loads the translation catalog of the configured locale
func (a AdminConfig) Catalog() (*gpadmin.Catalog, error) {
	var catalog *gpadmin.Catalog
	if a.TranslationsDir == "" {
		catalog = gpadmin.NewCatalog(a.Locale, a.TranslationPrefix, nil)
	} else {
		var err error
		catalog, err = gpadmin.LoadCatalog(a.TranslationsDir, a.Locale, a.TranslationPrefix)
		if err != nil {
			return nil, err
		}
	}
	catalog.HumanizeMissing = a.HumanizeMissing
	return catalog, nil
}

// FileStorage builds the storage uploads are pruned from
func (s StorageConfig) FileStorage() (gpadmin.FileStorage, error) {
	if s.Driver == "s3" {
		storage, err := gpas3.NewFromConfig(s.S3)
		if err != nil {
			return nil, err
		}
		return storage, nil
	}
	return gpadmin.NewLocalStorage(s.Root), nil
}

// OrderAllocator returns the Redis sequence allocator when Redis is enabled,
// otherwise the count allocator. The returned client is nil for the latter.
func (c *Config) OrderAllocator(ctx context.Context) (gpadmin.OrderAllocator, *redis.Client, error) {
	if !c.Redis.Enabled {
		return gpadmin.CountAllocator{}, nil, nil
	}
	client, err := gparedis.Open(ctx, c.Redis.Config)
	if err != nil {
		return nil, nil, err
	}
	return gparedis.NewSequenceAllocator(client, c.Redis.KeyPrefix), client, nil
}

// ResourceOptions returns the resource options every resource shares
func (c *Config) ResourceOptions(logger *zap.Logger, allocator gpadmin.OrderAllocator) []gpadmin.ResourceOption {
	opts := []gpadmin.ResourceOption{gpadmin.WithPerPage(c.Admin.PerPage)}
	if logger != nil {
		opts = append(opts, gpadmin.WithLogger(logger))
	}
	if allocator != nil {
		opts = append(opts, gpadmin.WithOrderAllocator(allocator))
	}
	if c.Admin.AtomicDelete {
		opts = append(opts, gpadmin.WithAtomicDelete())
	}
	return opts
}
