// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package kasa

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func newFakeClockDevice(t *testing.T, namespace string) *fakeDevice {
	t.Helper()
	return newScriptedDevice(t, script{
		namespace + ".get_time": func(json.RawMessage) any {
			return map[string]any{
				"year": 2026, "month": 8, "mday": 31,
				"hour": 14, "min": 5, "sec": 30,
				"err_code": 0,
			}
		},
		namespace + ".get_timezone": func(json.RawMessage) any {
			return map[string]any{"index": 39, "err_code": 0}
		},
	})
}

func TestPlugTime(t *testing.T) {
	fd := newFakeClockDevice(t, "time")
	plug := NewPlugWithConfig(fd.config(), time.Minute)

	dt, err := plug.Time(context.Background())
	if err != nil {
		t.Fatalf("Time() error = %v", err)
	}
	if dt.Year != 2026 || dt.Month != 8 || dt.Day != 31 {
		t.Errorf("date = %d-%d-%d", dt.Year, dt.Month, dt.Day)
	}
	if dt.Hour != 14 || dt.Minute != 5 || dt.Second != 30 {
		t.Errorf("clock = %d:%d:%d", dt.Hour, dt.Minute, dt.Second)
	}

	got := dt.Time(time.UTC)
	want := time.Date(2026, time.August, 31, 14, 5, 30, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Time(UTC) = %v, want %v", got, want)
	}
	if loc := dt.Time(nil).Location(); loc != time.Local {
		t.Errorf("Time(nil) location = %v, want Local", loc)
	}
}

func TestPlugTimeNeverCached(t *testing.T) {
	fd := newFakeClockDevice(t, "time")
	plug := NewPlugWithConfig(fd.config(), time.Minute)
	ctx := context.Background()

	if _, err := plug.Time(ctx); err != nil {
		t.Fatalf("Time() error = %v", err)
	}
	if _, err := plug.Time(ctx); err != nil {
		t.Fatalf("Time() error = %v", err)
	}
	if n := fd.exchanges.Load(); n != 2 {
		t.Errorf("exchanges = %d, want 2 for live clock reads", n)
	}
}

func TestPlugTimezone(t *testing.T) {
	fd := newFakeClockDevice(t, "time")
	plug := NewPlugWithConfig(fd.config(), time.Minute)
	ctx := context.Background()

	tz, err := plug.Timezone(ctx)
	if err != nil {
		t.Fatalf("Timezone() error = %v", err)
	}
	if tz.Index != 39 {
		t.Errorf("Index = %d, want 39", tz.Index)
	}

	// The zone table index is static, so a second read is a cache hit.
	if _, err := plug.Timezone(ctx); err != nil {
		t.Fatalf("Timezone() error = %v", err)
	}
	if n := fd.exchanges.Load(); n != 1 {
		t.Errorf("exchanges = %d after two timezone reads, want 1", n)
	}
}

func TestBulbTimeNamespace(t *testing.T) {
	fd := newFakeClockDevice(t, "smartlife.iot.common.timesetting")
	bulb := NewBulbWithConfig(fd.config(), 0)
	ctx := context.Background()

	dt, err := bulb.Time(ctx)
	if err != nil {
		t.Fatalf("Time() error = %v", err)
	}
	if dt.Year != 2026 {
		t.Errorf("Year = %d", dt.Year)
	}
	tz, err := bulb.Timezone(ctx)
	if err != nil {
		t.Fatalf("Timezone() error = %v", err)
	}
	if tz.Index != 39 {
		t.Errorf("Index = %d", tz.Index)
	}
}
