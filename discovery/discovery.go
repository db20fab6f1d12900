// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package discovery enumerates Kasa devices on the local broadcast domain.
//
// Kasa devices do not advertise themselves; discovery is a probe sweep. A
// single multi-namespace query is broadcast to 255.255.255.255:9999 and
// every device answers unicast with the namespaces it understands,
// ignoring the rest. There is no acknowledgment, so the probe is resent a
// fixed number of times up front to tolerate UDP loss, and the sweep is
// over once the read timeout elapses with no further replies.
//
// Each reply's sysinfo payload is classified into a device kind (plug,
// bulb, power strip) from its type/mic_type field. A malformed reply is
// logged and skipped; it never aborts the sweep.
package discovery

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/soothill/kasa-data-logger/kasa"
	"github.com/soothill/kasa-data-logger/pkg/errors"
	"github.com/soothill/kasa-data-logger/pkg/logger"
)

// BroadcastAddr is the default sweep destination.
var BroadcastAddr = net.IPv4bcast

// DeviceKind classifies a discovered device from its sysinfo payload.
type DeviceKind int

const (
	// Unknown is any Kasa device the classifier does not recognise.
	Unknown DeviceKind = iota
	// Plug is a single-socket smart plug.
	Plug
	// Bulb is a smart bulb.
	Bulb
	// PowerStrip is a multi-socket plug reporting per-socket children.
	PowerStrip
)

func (k DeviceKind) String() string {
	switch k {
	case Plug:
		return "plug"
	case Bulb:
		return "bulb"
	case PowerStrip:
		return "power_strip"
	default:
		return "unknown"
	}
}

// Device represents one discovered Kasa device: where it answered from,
// what kind it is, and the sysinfo it reported. Produced once per sweep,
// not persisted.
type Device struct {
	Address net.IP
	Kind    DeviceKind
	SysInfo *kasa.SysInfo
	// RawSysInfo is the unmodified get_sysinfo subtree for callers that
	// need fields the typed view does not map.
	RawSysInfo map[string]any
}

// GetDeviceID returns the device's stable identifier, falling back to the
// address for firmware that omits deviceId.
func (d *Device) GetDeviceID() string {
	if d.SysInfo != nil && d.SysInfo.DeviceID != "" {
		return d.SysInfo.DeviceID
	}
	return d.Address.String()
}

// Name returns the user-assigned alias, or the model for unnamed devices.
func (d *Device) Name() string {
	if d.SysInfo == nil {
		return d.Address.String()
	}
	if d.SysInfo.Alias != "" {
		return d.SysInfo.Alias
	}
	return d.SysInfo.Model
}

// HasEnergyMeter reports whether the device can answer emeter realtime
// queries. Bulbs always can; plugs and strips advertise it in the
// feature list.
func (d *Device) HasEnergyMeter() bool {
	if d.Kind == Bulb {
		return true
	}
	return d.SysInfo != nil && strings.Contains(d.SysInfo.Feature, "ENE")
}

// Scanner performs broadcast discovery sweeps and remembers every device
// seen across sweeps.
type Scanner struct {
	config  kasa.Config
	devices map[string]*Device
	mu      sync.RWMutex // Protects devices map
}

// NewScanner creates a scanner sweeping the given broadcast address, or
// BroadcastAddr when nil. The scanner's socket parameters follow protocol
// defaults: port 9999, 3s timeouts, probe resent 3 times.
func NewScanner(broadcast net.IP) *Scanner {
	cfg := kasa.NewConfig(broadcast)
	cfg.Broadcast = true
	return NewScannerWithConfig(cfg)
}

// NewScannerWithConfig creates a scanner with explicit socket parameters.
// Zero-valued fields are filled with protocol defaults, and a nil Host
// falls back to BroadcastAddr.
func NewScannerWithConfig(cfg kasa.Config) *Scanner {
	cfg = cfg.WithDefaults()
	if cfg.Host == nil {
		cfg.Host = BroadcastAddr
	}
	return &Scanner{
		config:  cfg,
		devices: make(map[string]*Device),
	}
}

// Config returns the scanner's socket parameters.
func (s *Scanner) Config() kasa.Config {
	return s.config
}

// probePayload builds the static multi-namespace discovery query. Each
// namespace is independently ignored by devices that don't support it, so
// one packet interrogates every device generation at once.
func probePayload() []byte {
	namespaces := map[string]string{
		"system":               "get_sysinfo",
		"emeter":               "get_realtime",
		"smartlife.iot.dimmer": "get_dimmer_parameters",
		"smartlife.iot.common.emeter":             "get_realtime",
		"smartlife.iot.smartbulb.lightingservice": "get_light_state",
	}
	probe := make(map[string]map[string]any, len(namespaces))
	for namespace, command := range namespaces {
		probe[namespace] = map[string]any{command: map[string]any{}}
	}
	payload, err := json.Marshal(probe)
	if err != nil {
		// Static input, cannot fail.
		panic(err)
	}
	return payload
}

// Discover performs one broadcast-and-collect sweep. quiet bounds how
// long the scanner waits after the last reply before declaring the sweep
// done; zero means the configured read timeout. The returned slice holds
// every device that answered this sweep.
func (s *Scanner) Discover(ctx context.Context, quiet time.Duration) ([]*Device, error) {
	if quiet <= 0 {
		quiet = s.config.ReadTimeout
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, errors.NewDiscoveryError("bind", err)
	}
	defer func() { _ = conn.Close() }()

	remote := s.config.RemoteAddr()
	probe := kasa.Encrypt(probePayload())

	if err := conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
		return nil, errors.NewDiscoveryError("set write deadline", err)
	}
	// UDP gives no acknowledgment; resending up front is the only loss
	// mitigation available.
	for i := 0; i < s.config.ResendCount; i++ {
		if _, err := conn.WriteToUDP(probe, remote); err != nil {
			return nil, errors.NewDiscoveryError("send probe", err)
		}
	}

	responses, err := collectResponses(ctx, conn, s.config.BufferSize, quiet)
	if err != nil {
		return nil, err
	}

	discovered := make([]*Device, 0, len(responses))
	for addr, payload := range responses {
		device, err := classify(net.ParseIP(addr), payload)
		if err != nil {
			logger.Warn().Err(err).Str("addr", addr).
				Msg("Skipping malformed discovery response")
			continue
		}

		s.mu.Lock()
		s.devices[device.GetDeviceID()] = device
		s.mu.Unlock()
		discovered = append(discovered, device)

		logger.Debug().
			Str("addr", addr).
			Str("kind", device.Kind.String()).
			Str("alias", device.Name()).
			Msg("Discovered device")
	}

	logger.Info().Int("devices", len(discovered)).Msg("Discovery sweep complete")
	return discovered, nil
}

// collectResponses reads replies until the quiet timeout elapses with no
// further packets. Only the first response per source address is kept;
// later duplicates are discarded silently.
func collectResponses(ctx context.Context, conn *net.UDPConn, bufferSize int, quiet time.Duration) (map[string][]byte, error) {
	responses := make(map[string][]byte)
	buf := make([]byte, bufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewDiscoveryError("collect", err)
		}
		deadline := time.Now().Add(quiet)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, errors.NewDiscoveryError("set read deadline", err)
		}

		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			// The elapsed read timeout is the sweep's "done" signal, not
			// a failure.
			var ne net.Error
			if stderrors.As(err, &ne) && ne.Timeout() {
				return responses, nil
			}
			return nil, errors.NewDiscoveryError("receive", err)
		}

		addr := from.IP.String()
		if _, seen := responses[addr]; seen {
			continue
		}
		responses[addr] = kasa.Decrypt(buf[:n])
	}
}

// classify parses one decrypted reply and assigns a device kind from the
// sysinfo type heuristics.
func classify(addr net.IP, payload []byte) (*Device, error) {
	var reply map[string]map[string]json.RawMessage
	if err := json.Unmarshal(payload, &reply); err != nil {
		return nil, errors.NewSerializationError("parse discovery reply", err)
	}

	system, ok := reply["system"]
	if !ok {
		return nil, errors.NewSerializationError("parse discovery reply", errors.ErrMalformedReply)
	}
	rawInfo, ok := system["get_sysinfo"]
	if !ok {
		return nil, errors.NewSerializationError("parse discovery reply", errors.ErrMalformedReply)
	}

	var info kasa.SysInfo
	if err := json.Unmarshal(rawInfo, &info); err != nil {
		return nil, errors.NewSerializationError("decode sysinfo", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(rawInfo, &raw); err != nil {
		return nil, errors.NewSerializationError("decode sysinfo", err)
	}

	return &Device{
		Address:    addr,
		Kind:       classifyKind(&info),
		SysInfo:    &info,
		RawSysInfo: raw,
	}, nil
}

// classifyKind applies the type/mic_type heuristics: a plug reporting a
// children field is a power strip. Presence is the signal, not length; a
// strip with every socket removed still reports "children": [].
func classifyKind(info *kasa.SysInfo) DeviceKind {
	deviceType := strings.ToLower(info.Type())
	switch {
	case strings.Contains(deviceType, "plug") && info.Children != nil:
		return PowerStrip
	case strings.Contains(deviceType, "plug"):
		return Plug
	case strings.Contains(deviceType, "bulb"):
		return Bulb
	default:
		return Unknown
	}
}

// GetDevices returns every device seen across sweeps.
func (s *Scanner) GetDevices() []*Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	devices := make([]*Device, 0, len(s.devices))
	for _, device := range s.devices {
		devices = append(devices, device)
	}
	return devices
}

// GetMeteredDevices returns only devices with an energy meter.
func (s *Scanner) GetMeteredDevices() []*Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	devices := make([]*Device, 0, len(s.devices))
	for _, device := range s.devices {
		if device.HasEnergyMeter() {
			devices = append(devices, device)
		}
	}
	return devices
}

// GetDeviceByID returns a device by its ID, or nil if not seen.
func (s *Scanner) GetDeviceByID(deviceID string) *Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.devices[deviceID]
}
