// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package slacknotifier

import (
	"context"
	"fmt"
)

// StorageAdapter adapts Notifier to the storage.Notifier interface.
type StorageAdapter struct {
	notifier *Notifier
}

// NewStorageAdapter creates a new adapter.
func NewStorageAdapter(notifier *Notifier) *StorageAdapter {
	return &StorageAdapter{notifier: notifier}
}

// SendInfluxDBFailure sends an alert when InfluxDB connection fails
func (a *StorageAdapter) SendInfluxDBFailure(ctx context.Context, err error) error {
	return a.notifier.SendAlert(ctx, "danger", "⚠️ InfluxDB Connection Failure",
		fmt.Sprintf("Failed to connect to InfluxDB: %v\nData will be cached locally until connection is restored.", err))
}

// SendInfluxDBRecovery sends an alert when InfluxDB connection recovers
func (a *StorageAdapter) SendInfluxDBRecovery(ctx context.Context) error {
	return a.notifier.SendAlert(ctx, "good", "✅ InfluxDB Connection Restored",
		"Connection to InfluxDB has been restored. Cached data will be replayed.")
}

// SendCacheWarning sends an alert when cache usage is high
func (a *StorageAdapter) SendCacheWarning(ctx context.Context, cacheSize int64, maxSize int64) error {
	percentage := float64(cacheSize) / float64(maxSize) * 100
	return a.notifier.SendAlert(ctx, "warning", "⚠️ Local Cache Usage High",
		fmt.Sprintf("Cache size: %d bytes (%.1f%% of max %d bytes)\nInfluxDB may be unavailable for an extended period.",
			cacheSize, percentage, maxSize))
}

// SendDeviceOffline sends an alert when a monitored device stops answering polls
func (a *StorageAdapter) SendDeviceOffline(ctx context.Context, deviceName, deviceID string, missedPolls int) error {
	return a.notifier.SendAlert(ctx, "warning", "⚠️ Device Unreachable",
		fmt.Sprintf("%s (%s) has missed %d consecutive polls.", deviceName, deviceID, missedPolls))
}

// IsEnabled returns whether Slack notifications are enabled
func (a *StorageAdapter) IsEnabled() bool {
	return a.notifier.IsEnabled()
}
