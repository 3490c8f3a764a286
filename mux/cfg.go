package mux

import (
	"fmt"
)

// SocketCfg configures a client or server socket. Loadable through
// config.ConfigManager under the name "socket"; MaxClients and the
// receive limits support hot reload.
type SocketCfg struct {
	Tag  string `mapstructure:"tag"`
	Addr string `mapstructure:"addr"`

	// MaxClients bounds concurrent server connections. Ignored by client
	// sockets.
	MaxClients int `mapstructure:"maxClients"`

	// MaxMessageSize caps one inbound application message.
	MaxMessageSize int `mapstructure:"maxMessageSize"`

	// DisconnectTimeoutMS is how long unsent data may sit queued before
	// the link would be declared dead; together with the expected
	// throughput it sizes the send queues.
	DisconnectTimeoutMS int `mapstructure:"disconnectTimeoutMS"`

	// ExpectedBytesPerSecond is the anticipated per-connection outgoing
	// throughput used to derive the send queue ceiling.
	ExpectedBytesPerSecond int `mapstructure:"expectedBytesPerSecond"`

	// RecvRateLimit and RecvBurst bound driver event draining per second.
	// Zero disables the limiter.
	RecvRateLimit int `mapstructure:"recvRateLimit"`
	RecvBurst     int `mapstructure:"recvBurst"`
}

// GetName implements config.Config.
func (c *SocketCfg) GetName() string {
	return "socket"
}

// Validate implements config.Config.
func (c *SocketCfg) Validate() error {
	if c.MaxClients < 0 {
		return fmt.Errorf("MaxClients cannot be negative")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("MaxMessageSize must be positive")
	}
	if c.DisconnectTimeoutMS <= 0 {
		return fmt.Errorf("DisconnectTimeoutMS must be positive")
	}
	if c.ExpectedBytesPerSecond <= 0 {
		return fmt.Errorf("ExpectedBytesPerSecond must be positive")
	}
	if c.RecvRateLimit < 0 || c.RecvBurst < 0 {
		return fmt.Errorf("receive limits cannot be negative")
	}
	return nil
}

// sendQueueCapacity derives the per-queue ceiling from expected
// throughput across the disconnect window.
func (c *SocketCfg) sendQueueCapacity() int {
	capacity := c.ExpectedBytesPerSecond / 1000 * c.DisconnectTimeoutMS
	if capacity < sendQueueFloor {
		capacity = sendQueueFloor
	}
	return capacity
}

func defaultSocketCfg() *SocketCfg {
	return &SocketCfg{
		Tag:                    "default",
		MaxClients:             64,
		MaxMessageSize:         16 * 1024,
		DisconnectTimeoutMS:    30_000,
		ExpectedBytesPerSecond: 64 * 1024,
	}
}
