// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package kasa

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/soothill/kasa-data-logger/pkg/errors"
)

// DefaultCacheTTL is the response-cache TTL device handles use unless the
// caller picks another.
const DefaultCacheTTL = 3 * time.Second

// SysInfo is a device's self-reported identity and capability payload,
// returned by the "system" / "get_sysinfo" command. Plugs and bulbs use
// different field names for the same concepts (type vs mic_type, mac vs
// mic_mac), so both are mapped and the accessor methods pick whichever is
// set.
type SysInfo struct {
	Alias           string `json:"alias"`
	DeviceID        string `json:"deviceId"`
	Model           string `json:"model"`
	SoftwareVersion string `json:"sw_ver"`
	HardwareVersion string `json:"hw_ver"`
	DeviceType      string `json:"type"`
	MicType         string `json:"mic_type"`
	MAC             string `json:"mac"`
	MicMAC          string `json:"mic_mac"`
	HardwareID      string `json:"hwId"`
	OEMID           string `json:"oemId"`
	RSSI            int    `json:"rssi"`
	Feature         string `json:"feature"`
	Latitude        int    `json:"latitude_i"`
	Longitude       int    `json:"longitude_i"`

	// Plug fields
	RelayState int   `json:"relay_state"`
	LEDOff     int   `json:"led_off"`
	OnTime     int64 `json:"on_time"`

	// Bulb capability flags, 0 or 1
	IsDimmable          int `json:"is_dimmable"`
	IsColor             int `json:"is_color"`
	IsVariableColorTemp int `json:"is_variable_color_temp"`

	// Present on power strips only, one entry per socket
	Children []json.RawMessage `json:"children,omitempty"`

	ErrCode int `json:"err_code"`
}

// Type returns whichever of type/mic_type the device reported.
func (s *SysInfo) Type() string {
	if s.DeviceType != "" {
		return s.DeviceType
	}
	return s.MicType
}

// MACAddress returns whichever of mac/mic_mac the device reported.
func (s *SysInfo) MACAddress() string {
	if s.MAC != "" {
		return s.MAC
	}
	return s.MicMAC
}

// Device is the base handle shared by plugs and bulbs: a cached transport
// plus the system commands every Kasa device answers. Each handle owns its
// Transport and ResponseCache exclusively; handles are not meant to be
// shared across concurrent callers.
type Device struct {
	transport *Transport
}

// NewDevice creates a handle for host with protocol defaults and the
// default cache TTL.
func NewDevice(host net.IP) *Device {
	return NewDeviceWithConfig(NewConfig(host), DefaultCacheTTL)
}

// NewDeviceWithConfig creates a handle with explicit socket parameters.
// A zero ttl disables the response cache.
func NewDeviceWithConfig(cfg Config, ttl time.Duration) *Device {
	if ttl <= 0 {
		return &Device{transport: NewTransport(cfg)}
	}
	return &Device{transport: NewCachedTransport(cfg, ttl)}
}

// Transport returns the device's transport.
func (d *Device) Transport() *Transport {
	return d.transport
}

// Addr returns the device's remote address.
func (d *Device) Addr() *net.UDPAddr {
	return d.transport.Config().RemoteAddr()
}

// SysInfo fetches the device's system information, served from the
// response cache when fresh.
func (d *Device) SysInfo(ctx context.Context) (*SysInfo, error) {
	result, err := d.transport.Execute(ctx, "system", "get_sysinfo", nil, PolicyCached)
	if err != nil {
		return nil, err
	}
	var info SysInfo
	if err := decodeResult(result, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Alias returns the device's user-assigned name.
func (d *Device) Alias(ctx context.Context) (string, error) {
	info, err := d.SysInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.Alias, nil
}

// SetAlias renames the device. The system namespace is invalidated so the
// next SysInfo read reflects the new name.
func (d *Device) SetAlias(ctx context.Context, alias string) error {
	result, err := d.transport.Execute(ctx, "system", "set_dev_alias",
		map[string]any{"alias": alias}, PolicyInvalidate)
	if err != nil {
		return err
	}
	return commandError(result)
}

// Model returns the device's hardware model string.
func (d *Device) Model(ctx context.Context) (string, error) {
	info, err := d.SysInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.Model, nil
}

// RSSI returns the device's reported Wi-Fi signal strength.
func (d *Device) RSSI(ctx context.Context) (int, error) {
	info, err := d.SysInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.RSSI, nil
}

// WifiScan asks the device to scan for access points in range. The result
// is the device's raw scan list, passed through opaquely.
func (d *Device) WifiScan(ctx context.Context) (any, error) {
	return d.transport.Execute(ctx, "netif", "get_scaninfo",
		map[string]any{"refresh": 1}, PolicyNone)
}

// rebootWith issues a delayed reboot or factory reset on the given system
// namespace. Destructive, so the whole cache is cleared first.
func (d *Device) rebootWith(ctx context.Context, namespace, command string, delay time.Duration) error {
	delaySecs := int64(1)
	if delay > 0 {
		delaySecs = int64(delay / time.Second)
	}
	_, err := d.transport.Execute(ctx, namespace, command,
		map[string]any{"delay": delaySecs}, PolicyInvalidateAll)
	return err
}

// decodeResult re-decodes a generic command result into a typed struct.
func decodeResult(result any, dst any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return errors.NewSerializationError("encode result", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.NewSerializationError("decode result", err)
	}
	return nil
}

// commandError inspects a command result for a non-zero err_code.
func commandError(result any) error {
	section, ok := result.(map[string]any)
	if !ok {
		return nil
	}
	code, ok := section["err_code"].(float64)
	if !ok || code == 0 {
		return nil
	}
	msg, _ := section["err_msg"].(string)
	return errors.NewDeviceError(int(code), msg)
}
