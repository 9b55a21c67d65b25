package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	S3       S3Config       `mapstructure:"s3"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// JWTConfig defines JWT specific configuration.
// Expiration must be a duration string in the config file ("1h", "60m").
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// RewardsConfig carries the operational knobs of the reward engine. The XP
// computation constants themselves are a versioned table owned by the
// engine package and are deliberately NOT configurable here.
type RewardsConfig struct {
	DefaultTimezone string `mapstructure:"default_timezone"`
}

// CatalogConfig selects where the achievement catalog is loaded from.
// Source is "file" or "s3".
type CatalogConfig struct {
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"` // file source
	Bucket string `mapstructure:"bucket"`
	Key    string `mapstructure:"key"` // s3 source
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment variable handling, e.g. database.uri -> DATABASE_URI,
	// catalog.source -> CATALOG_SOURCE.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	// Defaults
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "gymquest_default")
	viper.SetDefault("jwt.expiration", "1h")
	viper.SetDefault("rewards.default_timezone", "UTC")
	viper.SetDefault("catalog.source", "file")
	viper.SetDefault("catalog.path", "achievements.json")
	viper.SetDefault("s3.use_ssl", true)

	err = viper.ReadInConfig()
	// If the config file is missing we continue on defaults/env vars.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
