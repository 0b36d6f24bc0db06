package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/straye-as/sheet-ledger/internal/secrets"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Store          StoreConfig
	Storage        StorageConfig
	Secrets        SecretsConfig
	Logging        LoggingConfig
	Reconciliation ReconciliationConfig
	Preferences    Preferences
}

type AppConfig struct {
	Name        string
	Environment string
}

// StoreConfig selects and configures the table store backend.
// Driver is one of "workbook", "sqlite", "postgres" or "memory".
type StoreConfig struct {
	Driver          string
	Path            string
	AutoMigrate     bool
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

type StorageConfig struct {
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

// ReconciliationConfig tunes the laser event matcher
type ReconciliationConfig struct {
	// OrderTokenPattern extracts the job code from the event order field.
	// The first capture group is the token.
	OrderTokenPattern string
	// DimensionTolerance is the allowed width/length difference in mm
	DimensionTolerance float64
	// CSVSeparator is used when a CSV file has no sep= hint line
	CSVSeparator string
}

// Preferences are presentation-only toggles. They never influence ledger state.
type Preferences struct {
	HideZeroBalance     bool
	HideCompletedOrders bool
}

// ConnectionString builds PostgreSQL connection string
func (s *StoreConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.Name, s.SSLMode,
	)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (s *StoreConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(s.ConnMaxLifetime) * time.Second
}

// Separator returns the configured CSV separator rune, defaulting to ';'.
func (r *ReconciliationConfig) Separator() rune {
	if r.CSVSeparator == "" {
		return ';'
	}
	return []rune(r.CSVSeparator)[0]
}

// Load loads configuration from file and environment variables
// Use LoadWithSecrets to resolve store and storage credentials
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves the postgres password and
// the blob storage connection string from the configured secret source.
// Secrets are only looked up when the backend that needs them is selected.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	needsDB := cfg.Store.Driver == "postgres"
	needsBlob := cfg.Storage.Mode == "azure" || cfg.Storage.Mode == "cloud"
	if !needsDB && !needsBlob {
		return cfg, nil
	}

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SecretSource(cfg.Secrets.Source),
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	if needsDB {
		if host, err := provider.GetSecretOrEnv(ctx, "LEDGER-DB-HOST", "STORE_HOST"); err == nil && host != "" {
			cfg.Store.Host = host
		}
		if user, err := provider.GetSecretOrEnv(ctx, "LEDGER-DB-USER", "STORE_USER"); err == nil && user != "" {
			cfg.Store.User = user
		}
		if password, err := provider.GetSecretOrEnv(ctx, "LEDGER-DB-PASSWORD", "STORE_PASSWORD"); err == nil && password != "" {
			cfg.Store.Password = password
		}
		if sslMode := os.Getenv("STORE_SSLMODE"); sslMode != "" {
			cfg.Store.SSLMode = sslMode
		}
	}

	if needsBlob {
		connStr, err := provider.GetSecretOrEnv(ctx, "storage-connection-string", "STORAGE_CLOUDCONNECTIONSTRING")
		if err != nil {
			logger.Warn("Blob storage connection string not resolved", zap.Error(err))
		} else {
			cfg.Storage.CloudConnectionString = connStr
		}
	}

	logger.Info("Secrets resolved",
		zap.String("source", string(provider.Source())),
		zap.Bool("store", needsDB),
		zap.Bool("storage", needsBlob),
	)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Sheet Ledger")
	v.SetDefault("app.environment", "development")

	// Store defaults: a single workbook next to the binary, like the shop floor file
	v.SetDefault("store.driver", "workbook")
	v.SetDefault("store.path", "./production.xlsx")
	v.SetDefault("store.autoMigrate", true)
	v.SetDefault("store.host", "localhost")
	v.SetDefault("store.port", 5432)
	v.SetDefault("store.name", "ledger")
	v.SetDefault("store.user", "ledger_user")
	v.SetDefault("store.password", "ledger_password")
	v.SetDefault("store.sslMode", "disable")
	v.SetDefault("store.maxOpenConns", 5)
	v.SetDefault("store.maxIdleConns", 2)
	v.SetDefault("store.connMaxLifetime", 300)

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./exports")
	v.SetDefault("storage.cloudContainer", "ledger-exports")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("reconciliation.orderTokenPattern", `УП-(\d+)`)
	v.SetDefault("reconciliation.dimensionTolerance", 0.01)
	v.SetDefault("reconciliation.csvSeparator", ";")

	v.SetDefault("preferences.hideZeroBalance", false)
	v.SetDefault("preferences.hideCompletedOrders", false)
}
