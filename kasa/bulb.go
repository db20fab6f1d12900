// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package kasa

import (
	"context"
	"net"
	"time"

	"github.com/soothill/kasa-data-logger/pkg/errors"
)

// Bulb namespaces. Bulbs expose their essential services under the
// smartlife.iot tree rather than the plain namespaces plugs use.
const (
	lightingNamespace   = "smartlife.iot.smartbulb.lightingservice"
	bulbSystemNamespace = "smartlife.iot.common.system"
	bulbEmeterNamespace = "smartlife.iot.common.emeter"
)

// LightState is the bulb's lighting condition: on/off plus the HSV tuple.
// While the bulb is off, the device reports the state it will resume with
// under dft_on_state.
type LightState struct {
	OnOff      int  `json:"on_off"`
	Hue        int  `json:"hue"`
	Saturation int  `json:"saturation"`
	Brightness int  `json:"brightness"`
	ColorTemp  int  `json:"color_temp"`
	DftOnState *HSV `json:"dft_on_state,omitempty"`
	ErrCode    int  `json:"err_code"`
}

// HSV is the hue/saturation/brightness (value) tuple, with the color
// temperature the bulb applies in white mode.
type HSV struct {
	Hue        int `json:"hue"`        // 0..360 degrees
	Saturation int `json:"saturation"` // 0..100 percent
	Brightness int `json:"brightness"` // 0..100 percent
	ColorTemp  int `json:"color_temp"` // kelvin, 0 in color mode
}

// IsOn reports whether the bulb is emitting light.
func (s *LightState) IsOn() bool {
	return s.OnOff == 1
}

// HSV returns the active tuple, falling back to the default-on state
// while the bulb is off.
func (s *LightState) HSV() HSV {
	if s.OnOff != 1 && s.DftOnState != nil {
		return *s.DftOnState
	}
	return HSV{Hue: s.Hue, Saturation: s.Saturation, Brightness: s.Brightness, ColorTemp: s.ColorTemp}
}

// Bulb is a handle for an LB110-class smart bulb. Capability flags in
// sysinfo gate the lighting commands: a non-dimmable bulb rejects
// brightness changes locally rather than on the wire.
type Bulb struct {
	Device
}

// NewBulb creates a bulb handle with protocol defaults and the default
// cache TTL.
func NewBulb(host net.IP) *Bulb {
	return NewBulbWithConfig(NewConfig(host), DefaultCacheTTL)
}

// NewBulbWithConfig creates a bulb handle with explicit socket parameters.
// A zero ttl disables the response cache.
func NewBulbWithConfig(cfg Config, ttl time.Duration) *Bulb {
	return &Bulb{Device: *NewDeviceWithConfig(cfg, ttl)}
}

// LightState fetches the bulb's lighting state, served from the response
// cache when fresh.
func (b *Bulb) LightState(ctx context.Context) (*LightState, error) {
	result, err := b.transport.Execute(ctx, lightingNamespace, "get_light_state", nil, PolicyCached)
	if err != nil {
		return nil, err
	}
	var state LightState
	if err := decodeResult(result, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// IsOn reports whether the bulb is emitting light.
func (b *Bulb) IsOn(ctx context.Context) (bool, error) {
	state, err := b.LightState(ctx)
	if err != nil {
		return false, err
	}
	return state.IsOn(), nil
}

// TurnOn switches the bulb on.
func (b *Bulb) TurnOn(ctx context.Context) error {
	return b.transition(ctx, map[string]any{"on_off": 1})
}

// TurnOff switches the bulb off.
func (b *Bulb) TurnOff(ctx context.Context) error {
	return b.transition(ctx, map[string]any{"on_off": 0})
}

// IsDimmable reports whether the bulb supports brightness changes.
func (b *Bulb) IsDimmable(ctx context.Context) (bool, error) {
	info, err := b.SysInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.IsDimmable == 1, nil
}

// IsColor reports whether the bulb supports hue/saturation changes.
func (b *Bulb) IsColor(ctx context.Context) (bool, error) {
	info, err := b.SysInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.IsColor == 1, nil
}

// IsVariableColorTemp reports whether the bulb supports color-temperature
// changes.
func (b *Bulb) IsVariableColorTemp(ctx context.Context) (bool, error) {
	info, err := b.SysInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.IsVariableColorTemp == 1, nil
}

// Brightness returns the active brightness in percent.
func (b *Bulb) Brightness(ctx context.Context) (int, error) {
	state, err := b.LightState(ctx)
	if err != nil {
		return 0, err
	}
	return state.HSV().Brightness, nil
}

// SetBrightness sets the brightness in percent on a dimmable bulb.
func (b *Bulb) SetBrightness(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return errors.NewInvalidParameterError("brightness", percent, "must be between 0 and 100")
	}
	dimmable, err := b.IsDimmable(ctx)
	if err != nil {
		return err
	}
	if !dimmable {
		return errors.NewUnsupportedOperationError("set_brightness")
	}
	return b.transition(ctx, map[string]any{"brightness": percent})
}

// SetColorTemp sets the white color temperature in kelvin.
func (b *Bulb) SetColorTemp(ctx context.Context, kelvin int) error {
	if kelvin < 2500 || kelvin > 9000 {
		return errors.NewInvalidParameterError("color_temp", kelvin, "must be between 2500 and 9000")
	}
	variable, err := b.IsVariableColorTemp(ctx)
	if err != nil {
		return err
	}
	if !variable {
		return errors.NewUnsupportedOperationError("set_color_temp")
	}
	return b.transition(ctx, map[string]any{"color_temp": kelvin})
}

// SetHSV sets hue, saturation, and brightness on a color bulb.
func (b *Bulb) SetHSV(ctx context.Context, hue, saturation, brightness int) error {
	if hue < 0 || hue > 360 {
		return errors.NewInvalidParameterError("hue", hue, "must be between 0 and 360")
	}
	if saturation < 0 || saturation > 100 {
		return errors.NewInvalidParameterError("saturation", saturation, "must be between 0 and 100")
	}
	if brightness < 0 || brightness > 100 {
		return errors.NewInvalidParameterError("brightness", brightness, "must be between 0 and 100")
	}
	color, err := b.IsColor(ctx)
	if err != nil {
		return err
	}
	if !color {
		return errors.NewUnsupportedOperationError("set_hsv")
	}
	return b.transition(ctx, map[string]any{
		"hue":        hue,
		"saturation": saturation,
		"brightness": brightness,
		"color_temp": 0,
	})
}

// transition issues a transition_light_state command. Mutating, so the
// lighting namespace is invalidated first.
func (b *Bulb) transition(ctx context.Context, arg map[string]any) error {
	result, err := b.transport.Execute(ctx, lightingNamespace, "transition_light_state",
		arg, PolicyInvalidate)
	if err != nil {
		return err
	}
	return commandError(result)
}

// EmeterRealtime reads the bulb's instantaneous power figures. Always
// uncached: polling wants live numbers.
func (b *Bulb) EmeterRealtime(ctx context.Context) (*EmeterRealtime, error) {
	return readEmeterRealtime(ctx, b.transport, bulbEmeterNamespace)
}

// EmeterDayStats returns per-day consumption for the given month.
func (b *Bulb) EmeterDayStats(ctx context.Context, year int, month time.Month) ([]EmeterDayStat, error) {
	return readEmeterDayStats(ctx, b.transport, bulbEmeterNamespace, year, month)
}

// EmeterMonthStats returns per-month consumption for the given year.
func (b *Bulb) EmeterMonthStats(ctx context.Context, year int) ([]EmeterMonthStat, error) {
	return readEmeterMonthStats(ctx, b.transport, bulbEmeterNamespace, year)
}

// EraseEmeterStats wipes the bulb's accumulated consumption history.
func (b *Bulb) EraseEmeterStats(ctx context.Context) error {
	return eraseEmeterStats(ctx, b.transport, bulbEmeterNamespace)
}

// Reboot restarts the bulb after delay (default 1s). Clears the whole
// response cache.
func (b *Bulb) Reboot(ctx context.Context, delay time.Duration) error {
	return b.rebootWith(ctx, bulbSystemNamespace, "reboot", delay)
}

// FactoryReset wipes the bulb's settings after delay (default 1s). Clears
// the whole response cache.
func (b *Bulb) FactoryReset(ctx context.Context, delay time.Duration) error {
	return b.rebootWith(ctx, bulbSystemNamespace, "reset", delay)
}
