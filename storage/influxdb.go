// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package storage provides InfluxDB storage for power consumption data,
// with a local disk cache and circuit breaker for outages.
package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/soothill/kasa-data-logger/pkg/interfaces"
	"github.com/soothill/kasa-data-logger/pkg/logger"
	"github.com/soothill/kasa-data-logger/pkg/metrics"
)

const measurementName = "power_consumption"

// maxFluxStringLength bounds interpolated values before escaping.
const maxFluxStringLength = 1000

// InfluxDBStorage handles writing power data to InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string
	org      string

	// Writes are asynchronous, so failures surface on the Errors()
	// channel rather than from WritePoint. The last one is held here
	// until the next write attempt collects it.
	asyncErrMu   sync.Mutex
	lastAsyncErr error
}

// NewInfluxDBStorage creates a new InfluxDB storage client
func NewInfluxDBStorage(url, token, org, bucket string) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(url, token)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	if health.Status != "pass" {
		client.Close()
		message := "unknown error"
		if health.Message != nil {
			message = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", message)
	}

	logger.Info().Str("url", url).Str("status", string(health.Status)).Msg("Connected to InfluxDB")

	writeAPI := client.WriteAPI(org, bucket)

	s := &InfluxDBStorage{
		client:   client,
		writeAPI: writeAPI,
		bucket:   bucket,
		org:      org,
	}

	// Handle async write errors
	go func() {
		for err := range writeAPI.Errors() {
			logger.Error().Err(err).Msg("InfluxDB write error")
			metrics.InfluxDBWriteErrors.Inc()
			s.asyncErrMu.Lock()
			s.lastAsyncErr = err
			s.asyncErrMu.Unlock()
		}
	}()

	return s, nil
}

// takeAsyncError returns and clears the most recent asynchronous write
// failure, or nil if none has occurred since the last call.
func (s *InfluxDBStorage) takeAsyncError() error {
	s.asyncErrMu.Lock()
	defer s.asyncErrMu.Unlock()
	err := s.lastAsyncErr
	s.lastAsyncErr = nil
	return err
}

// Client returns the underlying InfluxDB client.
func (s *InfluxDBStorage) Client() influxdb2.Client {
	return s.client
}

// WriteReading writes a power reading to InfluxDB
func (s *InfluxDBStorage) WriteReading(ctx context.Context, reading *interfaces.PowerReading) error {
	if err := validateReading(reading); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p := influxdb2.NewPoint(
		measurementName,
		map[string]string{
			"device_id":   reading.DeviceID,
			"device_name": reading.DeviceName,
		},
		map[string]interface{}{
			"power":   reading.Power,
			"voltage": reading.Voltage,
			"current": reading.Current,
			"energy":  reading.Energy,
		},
		reading.Timestamp,
	)

	s.writeAPI.WritePoint(p)
	metrics.InfluxDBWritesTotal.Inc()
	return nil
}

// WriteBatch writes multiple readings efficiently
func (s *InfluxDBStorage) WriteBatch(ctx context.Context, readings []*interfaces.PowerReading) error {
	if readings == nil {
		return fmt.Errorf("readings slice cannot be nil")
	}

	for i, reading := range readings {
		if err := s.WriteReading(ctx, reading); err != nil {
			return fmt.Errorf("failed to write reading at index %d: %w", i, err)
		}
	}
	return nil
}

// Flush forces all pending writes to complete
func (s *InfluxDBStorage) Flush() {
	s.writeAPI.Flush()
}

// Close closes the InfluxDB client and flushes pending writes
func (s *InfluxDBStorage) Close() {
	logger.Info().Msg("Closing InfluxDB connection")
	s.writeAPI.Flush()
	s.client.Close()
}

// Health checks whether the InfluxDB instance is reachable and passing
// its own health check.
func (s *InfluxDBStorage) Health(ctx context.Context) error {
	health, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("InfluxDB health check failed: %w", err)
	}
	if health.Status != "pass" {
		message := "unknown error"
		if health.Message != nil {
			message = *health.Message
		}
		return fmt.Errorf("InfluxDB unhealthy: %s", message)
	}
	return nil
}

// QueryLatestReading retrieves the most recent power reading for a device
func (s *InfluxDBStorage) QueryLatestReading(ctx context.Context, deviceID string) (*interfaces.PowerReading, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device ID cannot be empty")
	}

	queryAPI := s.client.QueryAPI(s.org)

	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -1h)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.device_id == "%s")
			|> last()
	`, sanitizeFluxString(s.bucket), measurementName, sanitizeFluxString(deviceID))

	result, err := queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = result.Close()
	}()

	reading := &interfaces.PowerReading{
		DeviceID: deviceID,
	}

	for result.Next() {
		record := result.Record()

		if name, ok := record.ValueByKey("device_name").(string); ok {
			reading.DeviceName = name
		}

		reading.Timestamp = record.Time()

		switch record.Field() {
		case "power":
			if val, ok := record.Value().(float64); ok {
				reading.Power = val
			}
		case "voltage":
			if val, ok := record.Value().(float64); ok {
				reading.Voltage = val
			}
		case "current":
			if val, ok := record.Value().(float64); ok {
				reading.Current = val
			}
		case "energy":
			if val, ok := record.Value().(float64); ok {
				reading.Energy = val
			}
		}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("query parsing failed: %w", result.Err())
	}

	return reading, nil
}

// sanitizeFluxString escapes a value for interpolation into a Flux
// string literal. Device IDs come off the wire from sysinfo payloads,
// so they get the same treatment as any untrusted input: truncate,
// strip null bytes, escape backslashes before quotes.
func sanitizeFluxString(s string) string {
	if len(s) > maxFluxStringLength {
		s = s[:maxFluxStringLength]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	return s
}

func validateReading(reading *interfaces.PowerReading) error {
	if reading == nil {
		return fmt.Errorf("reading cannot be nil")
	}
	if reading.DeviceID == "" {
		return fmt.Errorf("device ID cannot be empty")
	}
	if reading.Timestamp.IsZero() {
		return fmt.Errorf("timestamp cannot be zero")
	}
	// Negative figures indicate a measurement error upstream
	if reading.Power < 0 || reading.Voltage < 0 || reading.Current < 0 || reading.Energy < 0 {
		return fmt.Errorf("reading values cannot be negative")
	}
	return nil
}
