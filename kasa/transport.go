// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package kasa

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/soothill/kasa-data-logger/pkg/errors"
	"github.com/soothill/kasa-data-logger/pkg/logger"
)

const (
	// DefaultPort is the UDP port Kasa devices listen on.
	DefaultPort = 9999
	// DefaultBufferSize is the receive buffer size for a single reply.
	DefaultBufferSize = 4096
	// DefaultTimeout bounds both the send and the receive of one exchange.
	DefaultTimeout = 3 * time.Second
	// DefaultResendCount is how many times the discovery probe is resent
	// to tolerate UDP packet loss.
	DefaultResendCount = 3
)

// Config holds the socket parameters for one Transport. It is immutable
// after construction; a Transport never mutates its Config, so a Config
// value may be shared across device handles.
type Config struct {
	Host         net.IP
	Port         int
	BufferSize   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Broadcast marks a config destined for a discovery sweep rather
	// than a single device. Informational: UDP sockets can send to the
	// broadcast address without any extra socket option.
	Broadcast   bool
	ResendCount int // discovery only
}

// NewConfig returns a Config for host with protocol defaults applied.
func NewConfig(host net.IP) Config {
	return Config{
		Host:         host,
		Port:         DefaultPort,
		BufferSize:   DefaultBufferSize,
		ReadTimeout:  DefaultTimeout,
		WriteTimeout: DefaultTimeout,
		ResendCount:  DefaultResendCount,
	}
}

// RemoteAddr returns the destination address of the exchange.
func (c Config) RemoteAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: c.Host, Port: c.Port}
}

// WithDefaults returns a copy with zero-valued fields filled with
// protocol defaults. Every consumer of a hand-built Config applies it,
// so a zero BufferSize can never mean zero-length reads.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultTimeout
	}
	if c.ResendCount == 0 {
		c.ResendCount = DefaultResendCount
	}
	return c
}

// CachePolicy selects how one Execute call interacts with the response
// cache. Because the cache key ignores the command argument, mutating
// commands must use PolicyInvalidate (or PolicyInvalidateAll for
// destructive commands such as reboot and factory reset) so a later read
// never sees a value from before the write.
type CachePolicy int

const (
	// PolicyNone bypasses the cache entirely.
	PolicyNone CachePolicy = iota
	// PolicyCached reads through the cache: a fresh entry is returned
	// without touching the network, a miss populates the cache.
	PolicyCached
	// PolicyInvalidate drops every cache entry under the request's
	// namespace, then executes uncached.
	PolicyInvalidate
	// PolicyInvalidateAll clears the whole cache, then executes uncached.
	PolicyInvalidateAll
)

// Transport performs single encrypted request/response exchanges with one
// device. Each call binds its own ephemeral UDP socket and closes it
// before returning; no socket state survives across calls. A Transport is
// not designed to be shared across concurrent callers.
type Transport struct {
	config Config
	cache  *ResponseCache
}

// NewTransport creates an uncached Transport.
func NewTransport(cfg Config) *Transport {
	return &Transport{config: cfg.WithDefaults()}
}

// NewCachedTransport creates a Transport with a response cache of the
// given TTL in front of the wire.
func NewCachedTransport(cfg Config, ttl time.Duration) *Transport {
	return &Transport{config: cfg.WithDefaults(), cache: NewResponseCache(ttl)}
}

// Config returns the transport's socket parameters.
func (t *Transport) Config() Config {
	return t.config
}

// Cache returns the response cache, or nil for an uncached transport.
func (t *Transport) Cache() *ResponseCache {
	return t.cache
}

// Execute performs one named command against a namespace, routing through
// the cache according to policy, and returns the decoded value located at
// reply[namespace][command].
func (t *Transport) Execute(ctx context.Context, namespace, command string, arg any, policy CachePolicy) (any, error) {
	key := Request{Namespace: namespace, Command: command}

	if t.cache != nil {
		switch policy {
		case PolicyCached:
			return t.cache.GetOrInsert(key, func(Request) (any, error) {
				return t.exchange(ctx, namespace, command, arg)
			})
		case PolicyInvalidate:
			t.cache.InvalidateNamespace(namespace)
		case PolicyInvalidateAll:
			t.cache.Clear()
		}
	}

	return t.exchange(ctx, namespace, command, arg)
}

// exchange serializes {namespace:{command:arg}}, encrypts it, performs the
// UDP round trip, and extracts the command result from the reply.
func (t *Transport) exchange(ctx context.Context, namespace, command string, arg any) (any, error) {
	request := map[string]map[string]any{namespace: {command: arg}}
	plaintext, err := json.Marshal(request)
	if err != nil {
		return nil, errors.NewSerializationError("encode request", err)
	}

	replyBytes, err := t.RoundTrip(ctx, Encrypt(plaintext))
	if err != nil {
		return nil, err
	}

	var reply map[string]map[string]any
	if err := json.Unmarshal(Decrypt(replyBytes), &reply); err != nil {
		return nil, errors.NewSerializationError("parse reply", err)
	}

	section, ok := reply[namespace]
	if !ok {
		return nil, errors.NewSerializationError(
			fmt.Sprintf("extract %s.%s", namespace, command), errors.ErrMalformedReply)
	}
	result, ok := section[command]
	if !ok {
		return nil, errors.NewSerializationError(
			fmt.Sprintf("extract %s.%s", namespace, command), errors.ErrMalformedReply)
	}

	logger.Debug().
		Str("namespace", namespace).
		Str("command", command).
		Str("addr", t.config.RemoteAddr().String()).
		Msg("Command exchange complete")

	return result, nil
}

// RoundTrip sends already-encrypted bytes to the device and returns the
// raw encrypted reply. The socket is bound to an ephemeral local port and
// closed on every exit path, so one exchange can never be affected by a
// prior exchange's state.
func (t *Transport) RoundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewTransportError("send", t.config.RemoteAddr().String(), err)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, errors.NewTransportError("bind", "", err)
	}
	defer func() { _ = conn.Close() }()

	remote := t.config.RemoteAddr()

	if err := conn.SetWriteDeadline(t.deadline(ctx, t.config.WriteTimeout)); err != nil {
		return nil, errors.NewTransportError("set write deadline", remote.String(), err)
	}
	if _, err := conn.WriteToUDP(payload, remote); err != nil {
		return nil, errors.NewTransportError("send", remote.String(), err)
	}

	if err := conn.SetReadDeadline(t.deadline(ctx, t.config.ReadTimeout)); err != nil {
		return nil, errors.NewTransportError("set read deadline", remote.String(), err)
	}
	buf := make([]byte, t.config.BufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, errors.NewTransportError("receive", remote.String(), err)
	}
	return buf[:n], nil
}

// deadline returns now+timeout, capped by the context deadline when one
// is set and earlier.
func (t *Transport) deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}
