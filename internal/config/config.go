// Package config defines the application configuration and loads it with
// viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/validation"
)

// EnvPrefix prefixes environment variables that override config keys, e.g.
// LEDGER_STORAGE_BACKEND.
const EnvPrefix = "LEDGER"

// Configuration holds all configuration for installment-ledger.
type Configuration struct {
	Storage   StorageConfig   `yaml:"storage,omitempty"`
	Messaging MessagingConfig `yaml:"messaging,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Output    OutputConfig    `yaml:"output,omitempty"`
}

// StorageConfig selects where the ledger snapshots are kept.
type StorageConfig struct {
	Backend   string `yaml:"backend,omitempty"`   // file, sqlite, redis
	Path      string `yaml:"path,omitempty"`      // directory (file) or database file (sqlite)
	RedisAddr string `yaml:"redisAddr,omitempty"` // host:port
	RedisDB   int    `yaml:"redisDB,omitempty"`
}

// MessagingConfig holds the settings of outbound collection messages.
type MessagingConfig struct {
	CountryCode string `yaml:"countryCode,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("storage.backend", constants.StorageBackendFile)
	v.SetDefault("storage.path", constants.DefaultDataPath)
	v.SetDefault("storage.redisAddr", "")
	v.SetDefault("storage.redisDB", 0)
	v.SetDefault("messaging.countryCode", constants.DefaultCountryCode)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. An empty path loads the defaults and environment only.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// Validate checks the configuration values.
func (conf *Configuration) Validate() error {
	if err := validation.ValidateStorage(conf.Storage.Backend, conf.Storage.Path, conf.Storage.RedisAddr); err != nil {
		return fmt.Errorf("invalid storage configuration: %w", err)
	}
	if conf.Storage.RedisDB < 0 {
		return fmt.Errorf("invalid storage configuration: redisDB must be non-negative, got %d", conf.Storage.RedisDB)
	}
	if err := validation.ValidateOutputFormat(conf.Output.Format); err != nil {
		return fmt.Errorf("invalid output configuration: %w", err)
	}
	for _, r := range conf.Messaging.CountryCode {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid messaging configuration: countryCode must contain only digits, got %q", conf.Messaging.CountryCode)
		}
	}
	return nil
}
