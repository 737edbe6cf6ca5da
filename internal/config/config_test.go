package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/finbook/loan-engine/pkg/constants"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfiguration(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: console
server:
  address: ":9090"
worker:
  databasePath: /tmp/bills.db
  schedule: "30 1 * * *"
  concurrency: 8
cache:
  redisAddress: "localhost:6379"
`)

	conf, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() returned error: %v", err)
	}

	if conf.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, expected debug", conf.Logging.Level)
	}
	if conf.Server.Address != ":9090" {
		t.Errorf("Server.Address = %q, expected :9090", conf.Server.Address)
	}
	if conf.Worker.Concurrency != 8 {
		t.Errorf("Worker.Concurrency = %d, expected 8", conf.Worker.Concurrency)
	}
	if conf.Cache.RedisAddress != "localhost:6379" {
		t.Errorf("Cache.RedisAddress = %q, expected localhost:6379", conf.Cache.RedisAddress)
	}
}

func TestLoadConfigurationDefaults(t *testing.T) {
	path := writeConfig(t, `
worker:
  databasePath: /tmp/bills.db
`)

	conf, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() returned error: %v", err)
	}

	if conf.Server.Address != constants.DefaultServerAddress {
		t.Errorf("Server.Address = %q, expected default %q", conf.Server.Address, constants.DefaultServerAddress)
	}
	if conf.Server.MaxBodyBytes != constants.DefaultMaxBodyBytes {
		t.Errorf("Server.MaxBodyBytes = %d, expected default %d", conf.Server.MaxBodyBytes, constants.DefaultMaxBodyBytes)
	}
	if conf.Worker.Schedule != constants.DefaultWorkerSchedule {
		t.Errorf("Worker.Schedule = %q, expected default %q", conf.Worker.Schedule, constants.DefaultWorkerSchedule)
	}
	if conf.Worker.Concurrency != constants.DefaultWorkerConcurrency {
		t.Errorf("Worker.Concurrency = %d, expected default %d", conf.Worker.Concurrency, constants.DefaultWorkerConcurrency)
	}
}

func TestLoadConfigurationMissingFile(t *testing.T) {
	if _, err := LoadConfiguration("/nonexistent/config.yaml"); err == nil {
		t.Errorf("LoadConfiguration() did not return an error for a missing file")
	}
}

func TestValidateConfiguration(t *testing.T) {
	conf := &Configuration{}
	conf.ApplyDefaults()
	conf.Worker.DatabasePath = "/tmp/bills.db"
	if warnings := conf.ValidateConfiguration(); len(warnings) != 0 {
		t.Errorf("ValidateConfiguration() = %v, expected no warnings", warnings)
	}

	conf.Worker.Schedule = "not a cron expression"
	conf.Worker.DatabasePath = ""
	warnings := conf.ValidateConfiguration()
	if len(warnings) != 2 {
		t.Errorf("ValidateConfiguration() returned %d warnings, expected 2: %v", len(warnings), warnings)
	}
}
