// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package monitoring

import (
	"context"
	"time"

	"github.com/soothill/kasa-data-logger/discovery"
	"github.com/soothill/kasa-data-logger/kasa"
)

// MeterReader reads realtime energy samples from one device.
type MeterReader interface {
	// ReadRealtime performs one uncached emeter exchange.
	ReadRealtime(ctx context.Context) (*kasa.EmeterRealtime, error)

	// DeviceName returns the device's current alias, served from the
	// handle's response cache when fresh.
	DeviceName(ctx context.Context) string

	// CacheStats returns the handle's response-cache counters.
	CacheStats() (hits, misses uint64)
}

// KasaClient handles communication with one discovered device. It owns a
// device handle (and with it a transport and response cache) exclusively,
// per the one-handle-per-poller concurrency model.
type KasaClient struct {
	device *discovery.Device
	plug   *kasa.Plug
	bulb   *kasa.Bulb
}

// NewKasaClient creates a client for a discovered device with protocol
// defaults.
func NewKasaClient(device *discovery.Device) *KasaClient {
	return NewKasaClientWithConfig(device, kasa.NewConfig(device.Address), kasa.DefaultCacheTTL)
}

// NewKasaClientWithConfig creates a client with explicit socket parameters,
// picking the plug or bulb command surface from the device's classified
// kind. Power strips answer plug commands at the strip level. The config's
// host is overridden with the device's discovered address.
func NewKasaClientWithConfig(device *discovery.Device, cfg kasa.Config, ttl time.Duration) *KasaClient {
	cfg.Host = device.Address
	client := &KasaClient{device: device}
	if device.Kind == discovery.Bulb {
		client.bulb = kasa.NewBulbWithConfig(cfg, ttl)
	} else {
		client.plug = kasa.NewPlugWithConfig(cfg, ttl)
	}
	return client
}

// ReadRealtime performs one uncached emeter exchange.
func (c *KasaClient) ReadRealtime(ctx context.Context) (*kasa.EmeterRealtime, error) {
	if c.bulb != nil {
		return c.bulb.EmeterRealtime(ctx)
	}
	return c.plug.EmeterRealtime(ctx)
}

// DeviceName returns the device's current alias so renames show up in
// readings. The sysinfo exchange behind it is cached, so this costs a
// network round trip at most once per cache TTL. On error it falls back
// to the name captured at discovery time.
func (c *KasaClient) DeviceName(ctx context.Context) string {
	alias, err := c.handle().Alias(ctx)
	if err != nil || alias == "" {
		return c.device.Name()
	}
	return alias
}

// CacheStats returns the handle's response-cache counters.
func (c *KasaClient) CacheStats() (hits, misses uint64) {
	cache := c.handle().Transport().Cache()
	if cache == nil {
		return 0, 0
	}
	return cache.Hits(), cache.Misses()
}

func (c *KasaClient) handle() *kasa.Device {
	if c.bulb != nil {
		return &c.bulb.Device
	}
	return &c.plug.Device
}
