package rtp

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Defaults for an Endpoint not otherwise configured. The protocol is
// deliberately free of congestion control or RTT estimation: the
// retransmission timeout and window sizes below are fixed constants,
// not adapted at runtime.
const (
	DefaultMTU              = 1000
	DefaultPacketTimeout    = 1 * time.Second
	DefaultSendWindowSize   = 10
	DefaultReceiveWindow    = 10
	DefaultTeardownGrace    = 5 * time.Second
	DefaultSocketPollPeriod = 10 * time.Millisecond
)

// MaxPayload returns the largest payload an Endpoint configured with
// mtu can carry in a single packet.
func MaxPayload(mtu int) int {
	return mtu - HeaderSize
}

// Config holds the fixed, non-adaptive parameters of an Endpoint.
// Construct one with defaults and Options via Open.
type Config struct {
	MTU              int
	PacketTimeout    time.Duration
	SendWindowSize   uint32
	ReceiveWindow    uint32
	TeardownGrace    time.Duration
	SocketPollPeriod time.Duration

	Logger   *slog.Logger
	Registry *prometheus.Registry
}

func defaultConfig() Config {
	return Config{
		MTU:              DefaultMTU,
		PacketTimeout:    DefaultPacketTimeout,
		SendWindowSize:   DefaultSendWindowSize,
		ReceiveWindow:    DefaultReceiveWindow,
		TeardownGrace:    DefaultTeardownGrace,
		SocketPollPeriod: DefaultSocketPollPeriod,
	}
}

// Option configures a Config passed to Open.
type Option func(*Config)

// WithMTU sets the maximum datagram size (header+payload) emitted by
// the endpoint.
func WithMTU(mtu int) Option {
	return func(c *Config) { c.MTU = mtu }
}

// WithPacketTimeout sets the fixed retransmission timeout applied to
// every in-flight packet.
func WithPacketTimeout(d time.Duration) Option {
	return func(c *Config) { c.PacketTimeout = d }
}

// WithSendWindow sets the number of unacknowledged packets the sender
// may have outstanding at once.
func WithSendWindow(n uint32) Option {
	return func(c *Config) { c.SendWindowSize = n }
}

// WithReceiveWindow sets the local receive window advertised to the
// peer on every outbound packet.
func WithReceiveWindow(n uint32) Option {
	return func(c *Config) { c.ReceiveWindow = n }
}

// WithTeardownGrace sets how long a FIN-initiated teardown waits for a
// FIN-ACK before declaring the peer gone.
func WithTeardownGrace(d time.Duration) Option {
	return func(c *Config) { c.TeardownGrace = d }
}

// WithLogger attaches structured logging to the endpoint. A nil logger
// (the default) disables logging entirely.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetricsRegistry registers the endpoint's counters and gauges
// against reg instead of leaving them unregistered.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(c *Config) { c.Registry = reg }
}
