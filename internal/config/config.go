// Package config defines the data structures related to configuration and
// includes functions for loading and parsing the config.
package config

import (
	"fmt"
	"time"

	"github.com/finbook/loan-engine/pkg/constants"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for the loan-engine binaries.
type Configuration struct {
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Server  ServerConfig  `yaml:"server,omitempty"`
	Worker  WorkerConfig  `yaml:"worker,omitempty"`
	Cache   CacheConfig   `yaml:"cache,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// ServerConfig holds the preview API configuration.
type ServerConfig struct {
	Address      string `yaml:"address,omitempty"`
	MaxBodyBytes int64  `yaml:"maxBodyBytes,omitempty"`
}

// WorkerConfig holds the recurring-bill worker configuration.
type WorkerConfig struct {
	DatabasePath string `yaml:"databasePath,omitempty"`
	Schedule     string `yaml:"schedule,omitempty"` // cron expression
	Concurrency  int    `yaml:"concurrency,omitempty"`
}

// CacheConfig holds the payment memoization cache configuration. An empty
// RedisAddress selects the in-memory cache.
type CacheConfig struct {
	RedisAddress string        `yaml:"redisAddress,omitempty"`
	TTL          time.Duration `yaml:"ttl,omitempty"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()

	viper.SetConfigType("yml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	var configuration Configuration
	err := viper.Unmarshal(&configuration)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	configuration.ApplyDefaults()
	return &configuration, nil
}

// ApplyDefaults fills unset fields with the package defaults.
func (c *Configuration) ApplyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = constants.DefaultServerAddress
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = constants.DefaultMaxBodyBytes
	}
	if c.Worker.Schedule == "" {
		c.Worker.Schedule = constants.DefaultWorkerSchedule
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = constants.DefaultWorkerConcurrency
	}
}

// ValidateConfiguration performs general validation of the configuration and
// returns warnings.
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if c.Worker.Schedule != "" {
		if _, err := cron.ParseStandard(c.Worker.Schedule); err != nil {
			warnings = append(warnings, fmt.Sprintf("Worker schedule %q is not a valid cron expression: %v", c.Worker.Schedule, err))
		}
	}
	if c.Worker.DatabasePath == "" {
		warnings = append(warnings, "Worker database path is not set; the recurring-bill worker cannot run without one")
	}
	if c.Cache.TTL < 0 {
		warnings = append(warnings, "Cache TTL is negative; entries would expire immediately")
	}

	return warnings
}
