// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package kasa

import (
	"context"
	"net"
	"time"
)

// Plug is a handle for an HS100-class smart plug: a relay, a status LED,
// and on metered models (HS110) an energy meter under the "emeter"
// namespace.
type Plug struct {
	Device
}

// NewPlug creates a plug handle with protocol defaults and the default
// cache TTL.
func NewPlug(host net.IP) *Plug {
	return NewPlugWithConfig(NewConfig(host), DefaultCacheTTL)
}

// NewPlugWithConfig creates a plug handle with explicit socket parameters.
// A zero ttl disables the response cache.
func NewPlugWithConfig(cfg Config, ttl time.Duration) *Plug {
	return &Plug{Device: *NewDeviceWithConfig(cfg, ttl)}
}

// IsOn reports whether the relay is closed.
func (p *Plug) IsOn(ctx context.Context) (bool, error) {
	info, err := p.SysInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.RelayState == 1, nil
}

// TurnOn closes the relay.
func (p *Plug) TurnOn(ctx context.Context) error {
	return p.setRelayState(ctx, 1)
}

// TurnOff opens the relay.
func (p *Plug) TurnOff(ctx context.Context) error {
	return p.setRelayState(ctx, 0)
}

// setRelayState is a mutating command: the system namespace is
// invalidated before the exchange so a cached sysinfo from before the
// switch can never be served afterwards.
func (p *Plug) setRelayState(ctx context.Context, state int) error {
	result, err := p.transport.Execute(ctx, "system", "set_relay_state",
		map[string]any{"state": state}, PolicyInvalidate)
	if err != nil {
		return err
	}
	return commandError(result)
}

// OnSince returns how long the relay has been closed, zero when off.
func (p *Plug) OnSince(ctx context.Context) (time.Duration, error) {
	info, err := p.SysInfo(ctx)
	if err != nil {
		return 0, err
	}
	if info.RelayState != 1 {
		return 0, nil
	}
	return time.Duration(info.OnTime) * time.Second, nil
}

// IsLEDOn reports whether the status LED is lit. The device models the
// LED inversely, as led_off.
func (p *Plug) IsLEDOn(ctx context.Context) (bool, error) {
	info, err := p.SysInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.LEDOff == 0, nil
}

// SetLED switches the status LED.
func (p *Plug) SetLED(ctx context.Context, on bool) error {
	off := 1
	if on {
		off = 0
	}
	result, err := p.transport.Execute(ctx, "system", "set_led_off",
		map[string]any{"off": off}, PolicyInvalidate)
	if err != nil {
		return err
	}
	return commandError(result)
}

// EmeterRealtime reads the plug's instantaneous power figures. Always
// uncached: polling wants live numbers.
func (p *Plug) EmeterRealtime(ctx context.Context) (*EmeterRealtime, error) {
	return readEmeterRealtime(ctx, p.transport, "emeter")
}

// EmeterDayStats returns per-day consumption for the given month.
func (p *Plug) EmeterDayStats(ctx context.Context, year int, month time.Month) ([]EmeterDayStat, error) {
	return readEmeterDayStats(ctx, p.transport, "emeter", year, month)
}

// EmeterMonthStats returns per-month consumption for the given year.
func (p *Plug) EmeterMonthStats(ctx context.Context, year int) ([]EmeterMonthStat, error) {
	return readEmeterMonthStats(ctx, p.transport, "emeter", year)
}

// EraseEmeterStats wipes the plug's accumulated consumption history.
func (p *Plug) EraseEmeterStats(ctx context.Context) error {
	return eraseEmeterStats(ctx, p.transport, "emeter")
}

// Reboot restarts the plug after delay (default 1s). Clears the whole
// response cache.
func (p *Plug) Reboot(ctx context.Context, delay time.Duration) error {
	return p.rebootWith(ctx, "system", "reboot", delay)
}

// FactoryReset wipes the plug's settings after delay (default 1s). Clears
// the whole response cache.
func (p *Plug) FactoryReset(ctx context.Context, delay time.Duration) error {
	return p.rebootWith(ctx, "system", "reset", delay)
}
