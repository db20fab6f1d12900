// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package config provides configuration management for the Kasa data logger.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/soothill/kasa-data-logger/kasa"
	"github.com/soothill/kasa-data-logger/pkg/util"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Kasa          KasaConfig          `yaml:"kasa"`
	Cache         CacheConfig         `yaml:"cache"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// InfluxDBConfig holds InfluxDB connection settings
type InfluxDBConfig struct {
	URL          string `yaml:"url" validate:"required,url"`
	Token        string `yaml:"token" validate:"required,min=8"`
	Organization string `yaml:"organization" validate:"required"`
	Bucket       string `yaml:"bucket" validate:"required"`
}

// KasaConfig holds device discovery and polling settings
type KasaConfig struct {
	BroadcastAddress     string        `yaml:"broadcast_address" validate:"omitempty,ip4_addr"`
	Port                 int           `yaml:"port" validate:"gte=0,lte=65535"`
	BufferSize           int           `yaml:"buffer_size" validate:"gte=0"`
	ReadTimeout          time.Duration `yaml:"read_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	ResendCount          int           `yaml:"resend_count" validate:"gte=0,lte=10"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
	DiscoveryInterval    time.Duration `yaml:"discovery_interval"`
	DiscoveryQuietPeriod time.Duration `yaml:"discovery_quiet_period"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	ReadingsChannelSize  int           `yaml:"readings_channel_size" validate:"gte=0"`
}

// CacheConfig holds local disk cache settings for InfluxDB outages
type CacheConfig struct {
	Directory string        `yaml:"directory"`
	MaxSize   int64         `yaml:"max_size" validate:"gte=0"`
	MaxAge    time.Duration `yaml:"max_age"`
}

// NotificationsConfig holds alerting settings
type NotificationsConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url" validate:"omitempty,url"`
	SlackChannel    string `yaml:"slack_channel"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	data, err := util.ReadFileSafely(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides and defaults
	cfg.applyEnvironmentOverrides()
	cfg.setDefaults()

	// Validate configuration
	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the configuration
func (c *Config) applyEnvironmentOverrides() {
	if url := os.Getenv("INFLUXDB_URL"); url != "" {
		c.InfluxDB.URL = url
	}
	if token := os.Getenv("INFLUXDB_TOKEN"); token != "" {
		c.InfluxDB.Token = token
	}
	if org := os.Getenv("INFLUXDB_ORG"); org != "" {
		c.InfluxDB.Organization = org
	}
	if bucket := os.Getenv("INFLUXDB_BUCKET"); bucket != "" {
		c.InfluxDB.Bucket = bucket
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("KASA_BROADCAST_ADDRESS"); addr != "" {
		c.Kasa.BroadcastAddress = addr
	}
	if webhook := os.Getenv("SLACK_WEBHOOK_URL"); webhook != "" {
		c.Notifications.SlackWebhookURL = webhook
	}
	if interval := os.Getenv("KASA_DISCOVERY_INTERVAL"); interval != "" {
		duration, parseErr := time.ParseDuration(interval)
		if parseErr == nil {
			c.Kasa.DiscoveryInterval = duration
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse KASA_DISCOVERY_INTERVAL '%s': %v\n", interval, parseErr)
		}
	}
	if interval := os.Getenv("KASA_POLL_INTERVAL"); interval != "" {
		duration, parseErr := time.ParseDuration(interval)
		if parseErr == nil {
			c.Kasa.PollInterval = duration
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse KASA_POLL_INTERVAL '%s': %v\n", interval, parseErr)
		}
	}
}

// setDefaults sets default values for configuration fields if not provided
func (c *Config) setDefaults() {
	if c.Kasa.BroadcastAddress == "" {
		c.Kasa.BroadcastAddress = "255.255.255.255"
	}
	if c.Kasa.Port == 0 {
		c.Kasa.Port = kasa.DefaultPort
	}
	if c.Kasa.BufferSize == 0 {
		c.Kasa.BufferSize = kasa.DefaultBufferSize
	}
	if c.Kasa.ReadTimeout == 0 {
		c.Kasa.ReadTimeout = kasa.DefaultTimeout
	}
	if c.Kasa.WriteTimeout == 0 {
		c.Kasa.WriteTimeout = kasa.DefaultTimeout
	}
	if c.Kasa.ResendCount == 0 {
		c.Kasa.ResendCount = kasa.DefaultResendCount
	}
	if c.Kasa.CacheTTL == 0 {
		c.Kasa.CacheTTL = kasa.DefaultCacheTTL
	}
	if c.Kasa.DiscoveryInterval == 0 {
		c.Kasa.DiscoveryInterval = 5 * time.Minute
	}
	if c.Kasa.DiscoveryQuietPeriod == 0 {
		c.Kasa.DiscoveryQuietPeriod = kasa.DefaultTimeout
	}
	if c.Kasa.PollInterval == 0 {
		c.Kasa.PollInterval = 30 * time.Second
	}
	if c.Kasa.ReadingsChannelSize == 0 {
		c.Kasa.ReadingsChannelSize = 100
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks if the configuration is valid. Struct tags cover shapes
// and ranges; the cross-field interval relations and the URL security
// policy need hand-written checks.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%s failed validation on '%s'", strings.ToLower(fe.Namespace()), fe.Tag())
		}
		return err
	}

	if validateErr := c.validateInfluxDB(); validateErr != nil {
		return validateErr
	}

	if validateErr := c.validateKasa(); validateErr != nil {
		return validateErr
	}

	return nil
}

// validateInfluxDB validates the InfluxDB configuration
func (c *Config) validateInfluxDB() error {
	parsedURL, parseErr := url.Parse(c.InfluxDB.URL)
	if parseErr != nil {
		return fmt.Errorf("influxdb.url is not a valid URL: %w", parseErr)
	}

	// Check for HTTPS in production-like URLs (not localhost/127.0.0.1)
	if securityErr := validateURLSecurity(parsedURL); securityErr != nil {
		return securityErr
	}

	return nil
}

// validateURLSecurity checks if the URL uses HTTPS for non-local connections
func validateURLSecurity(parsedURL *url.URL) error {
	if parsedURL.Scheme != "http" {
		return nil
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	isLocal := hostname == "localhost" ||
		hostname == "127.0.0.1" ||
		hostname == "::1" ||
		strings.HasPrefix(hostname, "192.168.") ||
		strings.HasPrefix(hostname, "10.") ||
		strings.HasPrefix(hostname, "172.")

	if !isLocal {
		return fmt.Errorf("influxdb.url must use HTTPS for non-local connections (got %s). Using HTTP transmits credentials in plaintext and is a security risk", parsedURL.Scheme)
	}

	return nil
}

// validateKasa validates the device discovery and polling configuration
func (c *Config) validateKasa() error {
	if c.Kasa.DiscoveryInterval < time.Second {
		return fmt.Errorf("kasa.discovery_interval must be at least 1 second")
	}
	if c.Kasa.DiscoveryInterval > 24*time.Hour {
		return fmt.Errorf("kasa.discovery_interval must not exceed 24 hours")
	}
	if c.Kasa.PollInterval < time.Second {
		return fmt.Errorf("kasa.poll_interval must be at least 1 second")
	}
	if c.Kasa.PollInterval > 1*time.Hour {
		return fmt.Errorf("kasa.poll_interval must not exceed 1 hour")
	}
	if c.Kasa.DiscoveryInterval < c.Kasa.PollInterval {
		return fmt.Errorf("kasa.discovery_interval should be greater than or equal to kasa.poll_interval")
	}
	if c.Kasa.ReadTimeout < 0 || c.Kasa.WriteTimeout < 0 {
		return fmt.Errorf("kasa timeouts must not be negative")
	}
	if c.Kasa.CacheTTL < 0 {
		return fmt.Errorf("kasa.cache_ttl must not be negative")
	}

	return nil
}

// BroadcastIP returns the configured broadcast address as a net.IP.
// Validation has already checked the format, so a nil return only
// happens on an unvalidated Config.
func (c *Config) BroadcastIP() net.IP {
	return net.ParseIP(c.Kasa.BroadcastAddress)
}

// TransportConfig converts the Kasa section into socket parameters for
// device handles. The host is left unset; callers fill in the target
// device's address.
func (c *Config) TransportConfig() kasa.Config {
	return kasa.Config{
		Port:         c.Kasa.Port,
		BufferSize:   c.Kasa.BufferSize,
		ReadTimeout:  c.Kasa.ReadTimeout,
		WriteTimeout: c.Kasa.WriteTimeout,
		ResendCount:  c.Kasa.ResendCount,
	}
}

// ScannerConfig converts the Kasa section into socket parameters for
// broadcast discovery.
func (c *Config) ScannerConfig() kasa.Config {
	cfg := c.TransportConfig()
	cfg.Host = c.BroadcastIP()
	cfg.Broadcast = true
	// Discovery reads until a quiet period elapses rather than per-reply
	cfg.ReadTimeout = c.Kasa.DiscoveryQuietPeriod
	return cfg
}
