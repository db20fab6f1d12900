// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package kasa

import (
	"context"
	"encoding/json"
	"time"

	"github.com/soothill/kasa-data-logger/pkg/errors"
)

// EmeterRealtime is one instantaneous energy-meter sample, normalized to
// SI units. Older firmware reports floats in W/V/A/kWh; newer hardware
// revisions report integers in mW/mV/mA/Wh. Both decode into the same
// struct.
type EmeterRealtime struct {
	PowerW   float64
	VoltageV float64
	CurrentA float64
	TotalKWh float64
	ErrCode  int
}

// emeterWire carries both field generations of the get_realtime reply.
type emeterWire struct {
	Power   *float64 `json:"power"`
	Voltage *float64 `json:"voltage"`
	Current *float64 `json:"current"`
	Total   *float64 `json:"total"`

	PowerMW   *float64 `json:"power_mw"`
	VoltageMV *float64 `json:"voltage_mv"`
	CurrentMA *float64 `json:"current_ma"`
	TotalWH   *float64 `json:"total_wh"`

	ErrCode int `json:"err_code"`
}

// UnmarshalJSON decodes either field generation, preferring the direct SI
// fields when a reply carries both.
func (e *EmeterRealtime) UnmarshalJSON(data []byte) error {
	var wire emeterWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	e.ErrCode = wire.ErrCode
	e.PowerW = scaled(wire.Power, wire.PowerMW, 1000)
	e.VoltageV = scaled(wire.Voltage, wire.VoltageMV, 1000)
	e.CurrentA = scaled(wire.Current, wire.CurrentMA, 1000)
	e.TotalKWh = scaled(wire.Total, wire.TotalWH, 1000)
	return nil
}

func scaled(direct, milli *float64, divisor float64) float64 {
	if direct != nil {
		return *direct
	}
	if milli != nil {
		return *milli / divisor
	}
	return 0
}

// readEmeterRealtime performs the get_realtime exchange on the given
// emeter namespace. Always uncached: a meter sample from the cache is a
// stale sample.
func readEmeterRealtime(ctx context.Context, t *Transport, namespace string) (*EmeterRealtime, error) {
	result, err := t.Execute(ctx, namespace, "get_realtime", nil, PolicyNone)
	if err != nil {
		return nil, err
	}
	if err := commandError(result); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, errors.NewSerializationError("encode result", err)
	}
	var sample EmeterRealtime
	if err := json.Unmarshal(raw, &sample); err != nil {
		return nil, errors.NewSerializationError("decode emeter sample", err)
	}
	return &sample, nil
}

// EmeterDayStat is one day's accumulated consumption, normalized to kWh.
// As with realtime samples, older firmware reports "energy" in kWh and
// newer reports "energy_wh" in Wh.
type EmeterDayStat struct {
	Year      int
	Month     int
	Day       int
	EnergyKWh float64
}

// EmeterMonthStat is one month's accumulated consumption, normalized to
// kWh.
type EmeterMonthStat struct {
	Year      int
	Month     int
	EnergyKWh float64
}

type dayStatWire struct {
	Year     int      `json:"year"`
	Month    int      `json:"month"`
	Day      int      `json:"day"`
	Energy   *float64 `json:"energy"`
	EnergyWh *float64 `json:"energy_wh"`
}

type monthStatWire struct {
	Year     int      `json:"year"`
	Month    int      `json:"month"`
	Energy   *float64 `json:"energy"`
	EnergyWh *float64 `json:"energy_wh"`
}

// readEmeterDayStats performs the get_daystat exchange: one entry per day
// of the given month with recorded consumption. Served from the response
// cache when fresh; history only moves at midnight.
func readEmeterDayStats(ctx context.Context, t *Transport, namespace string, year int, month time.Month) ([]EmeterDayStat, error) {
	result, err := t.Execute(ctx, namespace, "get_daystat",
		map[string]any{"month": int(month), "year": year}, PolicyCached)
	if err != nil {
		return nil, err
	}
	if err := commandError(result); err != nil {
		return nil, err
	}
	var wire struct {
		DayList []dayStatWire `json:"day_list"`
	}
	if err := decodeResult(result, &wire); err != nil {
		return nil, err
	}
	stats := make([]EmeterDayStat, 0, len(wire.DayList))
	for _, day := range wire.DayList {
		stats = append(stats, EmeterDayStat{
			Year:      day.Year,
			Month:     day.Month,
			Day:       day.Day,
			EnergyKWh: scaled(day.Energy, day.EnergyWh, 1000),
		})
	}
	return stats, nil
}

// readEmeterMonthStats performs the get_monthstat exchange: one entry per
// month of the given year with recorded consumption.
func readEmeterMonthStats(ctx context.Context, t *Transport, namespace string, year int) ([]EmeterMonthStat, error) {
	result, err := t.Execute(ctx, namespace, "get_monthstat",
		map[string]any{"year": year}, PolicyCached)
	if err != nil {
		return nil, err
	}
	if err := commandError(result); err != nil {
		return nil, err
	}
	var wire struct {
		MonthList []monthStatWire `json:"month_list"`
	}
	if err := decodeResult(result, &wire); err != nil {
		return nil, err
	}
	stats := make([]EmeterMonthStat, 0, len(wire.MonthList))
	for _, month := range wire.MonthList {
		stats = append(stats, EmeterMonthStat{
			Year:      month.Year,
			Month:     month.Month,
			EnergyKWh: scaled(month.Energy, month.EnergyWh, 1000),
		})
	}
	return stats, nil
}

// eraseEmeterStats wipes the device's accumulated history. Mutating, so
// the emeter namespace is invalidated first.
func eraseEmeterStats(ctx context.Context, t *Transport, namespace string) error {
	result, err := t.Execute(ctx, namespace, "erase_emeter_stat", nil, PolicyInvalidate)
	if err != nil {
		return err
	}
	return commandError(result)
}
