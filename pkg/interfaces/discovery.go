// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package interfaces

import (
	"context"
	"time"

	"github.com/soothill/kasa-data-logger/discovery"
)

// DeviceScanner defines the interface for Kasa device discovery.
// Implementations perform broadcast probe sweeps on the local network.
type DeviceScanner interface {
	// Discover performs one broadcast-and-collect sweep. quiet bounds how
	// long the scanner waits after the last reply; zero uses the
	// configured read timeout.
	Discover(ctx context.Context, quiet time.Duration) ([]*discovery.Device, error)

	// GetDevices returns every device seen across sweeps
	GetDevices() []*discovery.Device

	// GetMeteredDevices returns only devices with an energy meter
	GetMeteredDevices() []*discovery.Device

	// GetDeviceByID returns a device by its ID, or nil if not seen
	GetDeviceByID(deviceID string) *discovery.Device
}
