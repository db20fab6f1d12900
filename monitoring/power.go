// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package monitoring polls discovered Kasa devices for energy readings.
package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/soothill/kasa-data-logger/discovery"
	"github.com/soothill/kasa-data-logger/kasa"
	"github.com/soothill/kasa-data-logger/pkg/interfaces"
	"github.com/soothill/kasa-data-logger/pkg/logger"
	"github.com/soothill/kasa-data-logger/pkg/metrics"
)

const defaultReadingsChannelSize = 100

// PowerReading is a single energy measurement from one device.
type PowerReading = interfaces.PowerReading

// PowerMonitor polls each monitored device on its own goroutine and fans
// readings into a single buffered channel. Every poller owns its device
// handle exclusively, so the transport's single-flight constraint holds
// without extra locking.
type PowerMonitor struct {
	pollInterval     time.Duration
	kasaConfig       kasa.Config
	cacheTTL         time.Duration
	readings         chan *PowerReading
	monitoredDevices map[string]context.CancelFunc
	deviceMutex      sync.RWMutex
	wg               sync.WaitGroup
	stopped          bool

	// newReader is swapped out in tests.
	newReader func(*discovery.Device) MeterReader
}

// NewPowerMonitor creates a power monitor with protocol defaults for the
// per-device handles.
func NewPowerMonitor(pollInterval time.Duration, channelSize int) *PowerMonitor {
	return NewPowerMonitorWithConfig(pollInterval, channelSize, kasa.Config{}, kasa.DefaultCacheTTL)
}

// NewPowerMonitorWithConfig creates a power monitor whose per-device
// handles use the given socket parameters and response-cache TTL. The
// config's host is ignored; each poller targets its device's discovered
// address.
func NewPowerMonitorWithConfig(pollInterval time.Duration, channelSize int, cfg kasa.Config, ttl time.Duration) *PowerMonitor {
	if channelSize <= 0 {
		channelSize = defaultReadingsChannelSize
	}
	pm := &PowerMonitor{
		pollInterval:     pollInterval,
		kasaConfig:       cfg,
		cacheTTL:         ttl,
		readings:         make(chan *PowerReading, channelSize),
		monitoredDevices: make(map[string]context.CancelFunc),
	}
	pm.newReader = func(device *discovery.Device) MeterReader {
		return NewKasaClientWithConfig(device, pm.kasaConfig, pm.cacheTTL)
	}
	return pm
}

// Start begins monitoring the given devices
func (pm *PowerMonitor) Start(ctx context.Context, devices []*discovery.Device) {
	logger.Info().Msgf("Starting power monitoring for %d devices", len(devices))

	for _, device := range devices {
		pm.StartMonitoringDevice(ctx, device)
	}
}

// StartMonitoringDevice starts monitoring a single device if not already monitored
func (pm *PowerMonitor) StartMonitoringDevice(ctx context.Context, device *discovery.Device) bool {
	deviceID := device.GetDeviceID()

	pm.deviceMutex.Lock()
	defer pm.deviceMutex.Unlock()

	if pm.stopped {
		return false
	}

	if _, exists := pm.monitoredDevices[deviceID]; exists {
		logger.Debug().Str("device_id", deviceID).Str("device_name", device.Name()).
			Msg("Device already being monitored, skipping")
		return false
	}

	// Create a cancelable context for this device
	deviceCtx, cancel := context.WithCancel(ctx)
	pm.monitoredDevices[deviceID] = cancel

	logger.Info().Str("device_id", deviceID).Str("device_name", device.Name()).
		Str("address", device.Address.String()).Stringer("kind", device.Kind).
		Msg("Starting monitoring for new device")

	pm.wg.Add(1)
	go pm.monitorDevice(deviceCtx, device)
	return true
}

// StopMonitoringDevice stops monitoring a specific device
func (pm *PowerMonitor) StopMonitoringDevice(deviceID string) {
	pm.deviceMutex.Lock()
	defer pm.deviceMutex.Unlock()

	if cancel, exists := pm.monitoredDevices[deviceID]; exists {
		cancel()
		delete(pm.monitoredDevices, deviceID)
		logger.Info().Str("device_id", deviceID).Msg("Stopped monitoring device")
	}
}

// IsMonitoring checks if a device is currently being monitored
func (pm *PowerMonitor) IsMonitoring(deviceID string) bool {
	pm.deviceMutex.RLock()
	defer pm.deviceMutex.RUnlock()
	_, exists := pm.monitoredDevices[deviceID]
	return exists
}

// UpdatePollInterval changes the poll interval for subsequently started
// device pollers. Running pollers keep their current ticker.
func (pm *PowerMonitor) UpdatePollInterval(interval time.Duration) {
	pm.deviceMutex.Lock()
	defer pm.deviceMutex.Unlock()
	pm.pollInterval = interval
}

func (pm *PowerMonitor) currentPollInterval() time.Duration {
	pm.deviceMutex.RLock()
	defer pm.deviceMutex.RUnlock()
	return pm.pollInterval
}

// GetMonitoredDeviceCount returns the number of devices being monitored
func (pm *PowerMonitor) GetMonitoredDeviceCount() int {
	pm.deviceMutex.RLock()
	defer pm.deviceMutex.RUnlock()
	return len(pm.monitoredDevices)
}

// monitorDevice continuously polls a single device for energy data. The
// device handle lives for the goroutine's lifetime so its response cache
// carries across polls.
func (pm *PowerMonitor) monitorDevice(ctx context.Context, device *discovery.Device) {
	defer pm.wg.Done()

	ticker := time.NewTicker(pm.currentPollInterval())
	defer ticker.Stop()

	deviceID := device.GetDeviceID()
	reader := pm.newReader(device)
	logger.Info().Str("device_id", deviceID).Str("device_name", device.Name()).
		Msg("Monitoring device")

	// Clean up when done
	defer func() {
		pm.deviceMutex.Lock()
		delete(pm.monitoredDevices, deviceID)
		pm.deviceMutex.Unlock()
		logger.Info().Str("device_id", deviceID).Msg("Stopped monitoring device")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Check context before the network exchange
			if ctx.Err() != nil {
				return
			}
			start := time.Now()
			reading, err := pm.readPower(ctx, reader, deviceID)
			metrics.PowerReadingDuration.Observe(time.Since(start).Seconds())

			if err != nil {
				logger.Error().Err(err).Str("device_id", deviceID).Str("device_name", device.Name()).
					Msg("Error reading power from device")
				metrics.PowerReadingErrors.Inc()
				continue
			}

			metrics.PowerReadingsTotal.Inc()

			select {
			case pm.readings <- reading:
			default:
				logger.Warn().Str("device_id", deviceID).Str("device_name", device.Name()).
					Msg("Readings channel full, dropping reading")
			}
		}
	}
}

// readPower performs one emeter exchange and converts the sample into a
// reading. The device name comes from the handle's cached sysinfo so
// renames show up without a second round trip per poll.
func (pm *PowerMonitor) readPower(ctx context.Context, reader MeterReader, deviceID string) (*PowerReading, error) {
	sample, err := reader.ReadRealtime(ctx)
	if err != nil {
		return nil, err
	}

	deviceName := reader.DeviceName(ctx)

	hits, misses := reader.CacheStats()
	metrics.ResponseCacheHits.WithLabelValues(deviceID).Set(float64(hits))
	metrics.ResponseCacheMisses.WithLabelValues(deviceID).Set(float64(misses))

	reading := &PowerReading{
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Timestamp:  time.Now(),
		Power:      sample.PowerW,
		Voltage:    sample.VoltageV,
		Current:    sample.CurrentA,
		Energy:     sample.TotalKWh,
	}

	logger.Debug().
		Str("device_id", reading.DeviceID).
		Str("device_name", reading.DeviceName).
		Float64("power_w", reading.Power).
		Float64("voltage_v", reading.Voltage).
		Float64("current_a", reading.Current).
		Float64("total_kwh", reading.Energy).
		Msg("Power reading")

	return reading, nil
}

// Readings returns the channel for receiving power readings
func (pm *PowerMonitor) Readings() <-chan *PowerReading {
	return pm.readings
}

// Stop stops all device monitoring and closes the readings channel
func (pm *PowerMonitor) Stop() {
	pm.deviceMutex.Lock()
	if pm.stopped {
		pm.deviceMutex.Unlock()
		return
	}
	pm.stopped = true

	// Cancel all device monitoring goroutines
	for deviceID, cancel := range pm.monitoredDevices {
		logger.Info().Str("device_id", deviceID).Msg("Stopping device monitoring")
		cancel()
	}
	pm.deviceMutex.Unlock()

	// Wait for all monitoring goroutines to finish
	pm.wg.Wait()

	// Close the readings channel
	close(pm.readings)
	logger.Info().Msg("Power monitor stopped, readings channel closed")
}
