// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package kasa

import (
	"context"
	"time"
)

// Time namespaces. Plugs answer under "time"; bulbs under the
// smartlife.iot tree.
const (
	timeNamespace     = "time"
	bulbTimeNamespace = "smartlife.iot.common.timesetting"
)

// DeviceTime is the device's wall clock as it reports it, broken into
// calendar fields. The device has no timezone notion on the wire; the
// fields are its local time.
type DeviceTime struct {
	Year    int `json:"year"`
	Month   int `json:"month"`
	Day     int `json:"mday"`
	Hour    int `json:"hour"`
	Minute  int `json:"min"`
	Second  int `json:"sec"`
	ErrCode int `json:"err_code"`
}

// Time assembles the calendar fields into a time.Time in the given
// location, the host's local zone when nil.
func (d *DeviceTime) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, loc)
}

// DeviceTimeZone is the device's timezone as an index into TP-Link's
// internal zone table.
type DeviceTimeZone struct {
	Index   int `json:"index"`
	ErrCode int `json:"err_code"`
}

// readDeviceTime fetches the device clock. Always uncached: a cached
// clock is a wrong clock.
func readDeviceTime(ctx context.Context, t *Transport, namespace string) (*DeviceTime, error) {
	result, err := t.Execute(ctx, namespace, "get_time", nil, PolicyNone)
	if err != nil {
		return nil, err
	}
	if err := commandError(result); err != nil {
		return nil, err
	}
	var dt DeviceTime
	if err := decodeResult(result, &dt); err != nil {
		return nil, err
	}
	return &dt, nil
}

// readDeviceTimezone fetches the device's zone index, served from the
// response cache when fresh.
func readDeviceTimezone(ctx context.Context, t *Transport, namespace string) (*DeviceTimeZone, error) {
	result, err := t.Execute(ctx, namespace, "get_timezone", nil, PolicyCached)
	if err != nil {
		return nil, err
	}
	if err := commandError(result); err != nil {
		return nil, err
	}
	var tz DeviceTimeZone
	if err := decodeResult(result, &tz); err != nil {
		return nil, err
	}
	return &tz, nil
}

// Time returns the plug's wall clock.
func (p *Plug) Time(ctx context.Context) (*DeviceTime, error) {
	return readDeviceTime(ctx, p.transport, timeNamespace)
}

// Timezone returns the plug's timezone index.
func (p *Plug) Timezone(ctx context.Context) (*DeviceTimeZone, error) {
	return readDeviceTimezone(ctx, p.transport, timeNamespace)
}

// Time returns the bulb's wall clock.
func (b *Bulb) Time(ctx context.Context) (*DeviceTime, error) {
	return readDeviceTime(ctx, b.transport, bulbTimeNamespace)
}

// Timezone returns the bulb's timezone index.
func (b *Bulb) Timezone(ctx context.Context) (*DeviceTimeZone, error) {
	return readDeviceTimezone(ctx, b.transport, bulbTimeNamespace)
}
