package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithDefaultsMissingFile(t *testing.T) {
	// 默认驱动 mysql 要求 DSN
	t.Setenv("APP_DATABASE_DRIVER", "sqlite")
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadWithDefaults() error = %v", err)
	}
	if cfg.ServiceName != "cartera" || cfg.Ledger.BatchSize != 100 || cfg.Database.Driver != "sqlite" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Ledger.LateFeeCron != "0 1 * * *" || cfg.Ledger.SettlementCron != "0 3 * * *" {
		t.Errorf("cron defaults = %q / %q", cfg.Ledger.LateFeeCron, cfg.Ledger.SettlementCron)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
service_name = "cartera-test"

[database]
driver = "sqlite"

[ledger]
timezone = "America/Guatemala"
batch_size = 25
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APP_HTTP_PORT", "9191")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServiceName != "cartera-test" || cfg.Ledger.BatchSize != 25 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.HTTP.Port != 9191 {
		t.Errorf("http.port = %d, want env override 9191", cfg.HTTP.Port)
	}
	loc, err := cfg.Ledger.Location()
	if err != nil || loc.String() != "America/Guatemala" {
		t.Errorf("Location() = %v, %v", loc, err)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			ServiceName: "cartera",
			HTTP:        HTTPConfig{Port: 8080},
			GRPC:        GRPCConfig{Port: 50051},
			Database:    DatabaseConfig{Driver: "sqlite"},
			Ledger:      LedgerConfig{Timezone: "UTC", BatchSize: 10},
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing service", func(c *Config) { c.ServiceName = "" }, true},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }, true},
		{"mysql without dsn", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"unknown timezone", func(c *Config) { c.Ledger.Timezone = "Mars/Olympus" }, true},
		{"zero batch", func(c *Config) { c.Ledger.BatchSize = 0 }, true},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
