package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// EnvBlobEndpoint names the object storage account endpoint.
	EnvBlobEndpoint = "STORAGE_ACCOUNT_BLOB_URL"

	// EnvCosmosEndpoint names the document database endpoint.
	EnvCosmosEndpoint = "COSMOS_URI_ENDPOINT"

	// EnvPrefix is prepended to every other setting when read from the environment.
	EnvPrefix = "INDEXSEED"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultDatabaseName is the document database holding the registry collections.
	DefaultDatabaseName = "graphrag"

	// DefaultS3Region is used when no region is configured for S3 storage.
	DefaultS3Region = "us-east-1"
)

// Storage drivers.
const (
	StorageDriverAzure = "azure"
	StorageDriverS3    = "s3"
	StorageDriverLocal = "local"
)

// Database drivers.
const (
	DatabaseDriverCosmos   = "cosmos"
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

// Credential types.
const (
	CredentialAzureCLI = "cli"
	CredentialDefault  = "default"
)

// Config is the root configuration for indexseed.
type Config struct {
	Global     GlobalConfig     `yaml:"global" mapstructure:"global"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Credential CredentialConfig `yaml:"credential" mapstructure:"credential"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// StorageConfig selects the object storage backend containers are created in.
type StorageConfig struct {
	Driver string             `yaml:"driver" mapstructure:"driver"`
	Azure  AzureBlobConfig    `yaml:"azure,omitempty" mapstructure:"azure"`
	S3     S3Config           `yaml:"s3,omitempty" mapstructure:"s3"`
	Local  LocalStorageConfig `yaml:"local,omitempty" mapstructure:"local"`
}

// AzureBlobConfig contains Azure Blob Storage settings.
type AzureBlobConfig struct {
	BlobEndpoint string `yaml:"blob_endpoint" mapstructure:"blob_endpoint"`
}

// S3Config contains settings for S3-compatible storage. Each container
// maps to one bucket.
type S3Config struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// LocalStorageConfig stores containers as directories under Root.
type LocalStorageConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// DatabaseConfig selects the document database the registry is written to.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	Cosmos   CosmosConfig   `yaml:"cosmos,omitempty" mapstructure:"cosmos"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// CosmosConfig contains Azure Cosmos DB settings.
type CosmosConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Database string `yaml:"database" mapstructure:"database"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// CredentialConfig selects how the ambient Azure identity is obtained.
type CredentialConfig struct {
	Type string `yaml:"type" mapstructure:"type"`
}

// Load reads configuration from the optional file at path and the
// environment. Environment values win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("storage.azure.blob_endpoint", EnvBlobEndpoint); err != nil {
		return nil, fmt.Errorf("binding %s: %w", EnvBlobEndpoint, err)
	}

	if err := v.BindEnv("database.cosmos.endpoint", EnvCosmosEndpoint); err != nil {
		return nil, fmt.Errorf("binding %s: %w", EnvCosmosEndpoint, err)
	}

	var cfg Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating config decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)

	v.SetDefault("storage.driver", StorageDriverAzure)
	v.SetDefault("storage.azure.blob_endpoint", "")
	v.SetDefault("storage.s3.endpoint_url", "")
	v.SetDefault("storage.s3.region", DefaultS3Region)
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.force_path_style", false)
	v.SetDefault("storage.local.root", "")

	v.SetDefault("database.driver", DatabaseDriverCosmos)
	v.SetDefault("database.cosmos.endpoint", "")
	v.SetDefault("database.cosmos.database", DefaultDatabaseName)
	v.SetDefault("database.sqlite.path", "indexseed.db")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "indexseed")
	v.SetDefault("database.postgres.ssl_mode", "disable")

	v.SetDefault("credential.type", CredentialAzureCLI)
}

// applyDefaults fills values a config file may have explicitly blanked.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverAzure
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DatabaseDriverCosmos
	}

	if c.Database.Cosmos.Database == "" {
		c.Database.Cosmos.Database = DefaultDatabaseName
	}

	if c.Storage.S3.Region == "" {
		c.Storage.S3.Region = DefaultS3Region
	}

	if c.Credential.Type == "" {
		c.Credential.Type = CredentialAzureCLI
	}
}

// Validate checks the configuration for errors. It performs no network
// activity, so a missing endpoint is reported before any client exists.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverAzure:
		if err := validateEndpoint("storage.azure.blob_endpoint", EnvBlobEndpoint,
			c.Storage.Azure.BlobEndpoint); err != nil {
			return err
		}
	case StorageDriverS3:
		if c.Storage.S3.EndpointURL != "" {
			if _, err := parseHTTPURL(c.Storage.S3.EndpointURL); err != nil {
				return fmt.Errorf("storage.s3.endpoint_url: %w", err)
			}
		}
	case StorageDriverLocal:
		if c.Storage.Local.Root == "" {
			return fmt.Errorf("storage.local.root is required for the local storage driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	switch c.Database.Driver {
	case DatabaseDriverCosmos:
		if err := validateEndpoint("database.cosmos.endpoint", EnvCosmosEndpoint,
			c.Database.Cosmos.Endpoint); err != nil {
			return err
		}
	case DatabaseDriverSQLite:
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required for the sqlite driver")
		}
	case DatabaseDriverPostgres:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.host and database.postgres.database are required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.NeedsAzureCredential() {
		switch c.Credential.Type {
		case CredentialAzureCLI, CredentialDefault:
		default:
			return fmt.Errorf("unsupported credential type %q", c.Credential.Type)
		}
	}

	return nil
}

// NeedsAzureCredential reports whether any configured backend authenticates
// with the ambient Azure identity.
func (c *Config) NeedsAzureCredential() bool {
	return c.Storage.Driver == StorageDriverAzure ||
		c.Database.Driver == DatabaseDriverCosmos
}

func validateEndpoint(key, env, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required (set %s)", key, env)
	}

	if _, err := parseHTTPURL(value); err != nil {
		return fmt.Errorf("%s (%s): %w", key, env, err)
	}

	return nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", raw, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("url %q must use http or https", raw)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", raw)
	}

	return u, nil
}
