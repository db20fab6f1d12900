// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package config

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soothill/kasa-data-logger/kasa"
)

func validConfig() Config {
	return Config{
		InfluxDB: InfluxDBConfig{
			URL:          "http://localhost:8086",
			Token:        "test-token",
			Organization: "test-org",
			Bucket:       "test-bucket",
		},
		Kasa: KasaConfig{
			BroadcastAddress:     "255.255.255.255",
			Port:                 9999,
			DiscoveryInterval:    5 * time.Minute,
			DiscoveryQuietPeriod: 3 * time.Second,
			PollInterval:         30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing influxdb url",
			mutate:  func(c *Config) { c.InfluxDB.URL = "" },
			wantErr: true,
		},
		{
			name:    "missing influxdb token",
			mutate:  func(c *Config) { c.InfluxDB.Token = "" },
			wantErr: true,
		},
		{
			name:    "token too short",
			mutate:  func(c *Config) { c.InfluxDB.Token = "short" },
			wantErr: true,
		},
		{
			name:    "missing organization",
			mutate:  func(c *Config) { c.InfluxDB.Organization = "" },
			wantErr: true,
		},
		{
			name:    "http to remote host rejected",
			mutate:  func(c *Config) { c.InfluxDB.URL = "http://influx.example.com:8086" },
			wantErr: true,
		},
		{
			name:    "https to remote host accepted",
			mutate:  func(c *Config) { c.InfluxDB.URL = "https://influx.example.com:8086" },
			wantErr: false,
		},
		{
			name:    "http to private network accepted",
			mutate:  func(c *Config) { c.InfluxDB.URL = "http://192.168.1.5:8086" },
			wantErr: false,
		},
		{
			name:    "invalid broadcast address",
			mutate:  func(c *Config) { c.Kasa.BroadcastAddress = "not-an-ip" },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Kasa.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "poll interval too short",
			mutate:  func(c *Config) { c.Kasa.PollInterval = 500 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "poll interval too long",
			mutate:  func(c *Config) { c.Kasa.PollInterval = 2 * time.Hour },
			wantErr: true,
		},
		{
			name:    "discovery interval too long",
			mutate:  func(c *Config) { c.Kasa.DiscoveryInterval = 25 * time.Hour },
			wantErr: true,
		},
		{
			name: "discovery interval shorter than poll interval",
			mutate: func(c *Config) {
				c.Kasa.DiscoveryInterval = 10 * time.Second
				c.Kasa.PollInterval = 30 * time.Second
			},
			wantErr: true,
		},
		{
			name:    "negative cache ttl",
			mutate:  func(c *Config) { c.Kasa.CacheTTL = -time.Second },
			wantErr: true,
		},
		{
			name:    "negative read timeout",
			mutate:  func(c *Config) { c.Kasa.ReadTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid slack webhook url",
			mutate:  func(c *Config) { c.Notifications.SlackWebhookURL = "not a url" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, `
influxdb:
  url: http://localhost:8086
  token: test-token
  organization: test-org
  bucket: power

kasa:
  broadcast_address: 192.168.1.255
  poll_interval: 15s

logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InfluxDB.Bucket != "power" {
		t.Errorf("Bucket = %q, want power", cfg.InfluxDB.Bucket)
	}
	if cfg.Kasa.BroadcastAddress != "192.168.1.255" {
		t.Errorf("BroadcastAddress = %q", cfg.Kasa.BroadcastAddress)
	}
	if cfg.Kasa.PollInterval != 15*time.Second {
		t.Errorf("PollInterval = %v, want 15s", cfg.Kasa.PollInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}

	// Unspecified fields get protocol defaults
	if cfg.Kasa.Port != kasa.DefaultPort {
		t.Errorf("Port = %d, want default %d", cfg.Kasa.Port, kasa.DefaultPort)
	}
	if cfg.Kasa.BufferSize != kasa.DefaultBufferSize {
		t.Errorf("BufferSize = %d, want default %d", cfg.Kasa.BufferSize, kasa.DefaultBufferSize)
	}
	if cfg.Kasa.CacheTTL != kasa.DefaultCacheTTL {
		t.Errorf("CacheTTL = %v, want default %v", cfg.Kasa.CacheTTL, kasa.DefaultCacheTTL)
	}
	if cfg.Kasa.DiscoveryInterval != 5*time.Minute {
		t.Errorf("DiscoveryInterval = %v, want 5m", cfg.Kasa.DiscoveryInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing file should return error")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "influxdb: [not: valid")
	if _, err := Load(path); err == nil {
		t.Error("Load() of invalid YAML should return error")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	// Parseable but incomplete: no token
	path := writeConfigFile(t, `
influxdb:
  url: http://localhost:8086
  organization: test-org
  bucket: power
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() without influxdb token should return error")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfigFile(t, `
influxdb:
  url: http://localhost:8086
  token: file-token-value
  organization: file-org
  bucket: file-bucket
`)

	t.Setenv("INFLUXDB_TOKEN", "env-token-value")
	t.Setenv("INFLUXDB_ORG", "env-org")
	t.Setenv("KASA_POLL_INTERVAL", "45s")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InfluxDB.Token != "env-token-value" {
		t.Errorf("Token = %q, want env override", cfg.InfluxDB.Token)
	}
	if cfg.InfluxDB.Organization != "env-org" {
		t.Errorf("Organization = %q, want env override", cfg.InfluxDB.Organization)
	}
	if cfg.InfluxDB.Bucket != "file-bucket" {
		t.Errorf("Bucket = %q, file value should survive", cfg.InfluxDB.Bucket)
	}
	if cfg.Kasa.PollInterval != 45*time.Second {
		t.Errorf("PollInterval = %v, want env override 45s", cfg.Kasa.PollInterval)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want env override warn", cfg.Logging.Level)
	}
}

func TestLoad_UnparseableEnvDurationIgnored(t *testing.T) {
	path := writeConfigFile(t, `
influxdb:
  url: http://localhost:8086
  token: test-token
  organization: test-org
  bucket: power
`)

	t.Setenv("KASA_POLL_INTERVAL", "not-a-duration")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Kasa.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want default 30s when env is unparseable", cfg.Kasa.PollInterval)
	}
}

func TestBroadcastIP(t *testing.T) {
	cfg := validConfig()
	if ip := cfg.BroadcastIP(); !ip.Equal(net.IPv4bcast) {
		t.Errorf("BroadcastIP() = %v, want 255.255.255.255", ip)
	}

	cfg.Kasa.BroadcastAddress = "192.168.1.255"
	if ip := cfg.BroadcastIP(); !ip.Equal(net.IPv4(192, 168, 1, 255)) {
		t.Errorf("BroadcastIP() = %v, want 192.168.1.255", ip)
	}
}

func TestTransportConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Kasa.Port = 9998
	cfg.Kasa.BufferSize = 8192
	cfg.Kasa.ReadTimeout = 2 * time.Second
	cfg.Kasa.ResendCount = 5

	tc := cfg.TransportConfig()
	if tc.Host != nil {
		t.Errorf("Host = %v, want nil (set per device)", tc.Host)
	}
	if tc.Port != 9998 {
		t.Errorf("Port = %d, want 9998", tc.Port)
	}
	if tc.BufferSize != 8192 {
		t.Errorf("BufferSize = %d, want 8192", tc.BufferSize)
	}
	if tc.ReadTimeout != 2*time.Second {
		t.Errorf("ReadTimeout = %v, want 2s", tc.ReadTimeout)
	}
	if tc.ResendCount != 5 {
		t.Errorf("ResendCount = %d, want 5", tc.ResendCount)
	}
	if tc.Broadcast {
		t.Error("Broadcast = true for a device transport")
	}
}

func TestScannerConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Kasa.DiscoveryQuietPeriod = 7 * time.Second

	sc := cfg.ScannerConfig()
	if !sc.Host.Equal(net.IPv4bcast) {
		t.Errorf("Host = %v, want broadcast address", sc.Host)
	}
	if !sc.Broadcast {
		t.Error("Broadcast = false for a scanner config")
	}
	if sc.ReadTimeout != 7*time.Second {
		t.Errorf("ReadTimeout = %v, want quiet period 7s", sc.ReadTimeout)
	}
}
