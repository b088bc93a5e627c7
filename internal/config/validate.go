// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/luxfi/ipc"
	"github.com/luxfi/ipc/internal/logging"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if !ipc.HasTransport(c.Server.Transport) {
		return fmt.Errorf("server.transport %q is not available (have %v)", c.Server.Transport, ipc.AvailableTransports())
	}
	if c.Server.Transport != ipc.TransportMemory && c.Server.Address == "" {
		return errors.New("server.address must be set")
	}
	if _, err := ipc.CodecByName(c.Server.Codec); err != nil {
		return fmt.Errorf("server.codec: %w", err)
	}
	if c.Server.CallTimeoutSeconds < 0 {
		return errors.New("server.call_timeout_seconds must be >= 0")
	}
	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.RPS <= 0 {
			return errors.New("server.rate_limit.rps must be positive when rate_limit.enabled is true")
		}
		if c.Server.RateLimit.Burst < 1 {
			return errors.New("server.rate_limit.burst must be at least 1 when rate_limit.enabled is true")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not one of trace, debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if !c.Metrics.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
		return fmt.Errorf("metrics.address: %w", err)
	}
	return nil
}
