// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package metrics provides Prometheus metrics for the Kasa data logger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DevicesDiscovered tracks the total number of Kasa devices discovered
	DevicesDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kasa_devices_discovered_total",
		Help: "Total number of Kasa devices discovered",
	})

	// MeteredDevicesDiscovered tracks the number of devices with an energy meter
	MeteredDevicesDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kasa_metered_devices_discovered_total",
		Help: "Total number of Kasa devices with an energy meter",
	})

	// DevicesMonitored tracks the number of devices currently being monitored
	DevicesMonitored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kasa_devices_monitored",
		Help: "Number of devices currently being monitored for power consumption",
	})

	// PowerReadingsTotal tracks the total number of power readings collected
	PowerReadingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kasa_power_readings_total",
		Help: "Total number of power readings collected",
	})

	// PowerReadingErrors tracks the number of failed power readings
	PowerReadingErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kasa_power_reading_errors_total",
		Help: "Total number of failed power readings",
	})

	// InfluxDBWritesTotal tracks the total number of writes to InfluxDB
	InfluxDBWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kasa_influxdb_writes_total",
		Help: "Total number of writes to InfluxDB",
	})

	// InfluxDBWriteErrors tracks the number of failed writes to InfluxDB
	InfluxDBWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kasa_influxdb_write_errors_total",
		Help: "Total number of failed writes to InfluxDB",
	})

	// DiscoveryDuration tracks how long a broadcast discovery sweep takes
	DiscoveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kasa_discovery_duration_seconds",
		Help:    "Duration of a broadcast discovery sweep in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// PowerReadingDuration tracks how long one emeter exchange takes
	PowerReadingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kasa_power_reading_duration_seconds",
		Help:    "Duration of one emeter realtime exchange in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// ResponseCacheHits tracks per-device response cache hits
	ResponseCacheHits = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kasa_response_cache_hits",
		Help: "Response cache hits per monitored device",
	}, []string{"device_id"})

	// ResponseCacheMisses tracks per-device response cache misses
	ResponseCacheMisses = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kasa_response_cache_misses",
		Help: "Response cache misses per monitored device",
	}, []string{"device_id"})

	// CurrentPower tracks the current power consumption per device
	CurrentPower = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kasa_current_power_watts",
		Help: "Current power consumption in watts",
	}, []string{"device_id", "device_name"})

	// CurrentVoltage tracks the current voltage per device
	CurrentVoltage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kasa_current_voltage_volts",
		Help: "Current voltage in volts",
	}, []string{"device_id", "device_name"})

	// CurrentCurrent tracks the current current (amperage) per device
	CurrentCurrent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kasa_current_amperage_amps",
		Help: "Current amperage in amps",
	}, []string{"device_id", "device_name"})
)
