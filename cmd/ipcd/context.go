// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/luxfi/ipc"
	"github.com/luxfi/ipc/internal/config"
	"github.com/luxfi/ipc/internal/logging"
)

type rootFlags struct {
	config    string
	address   string
	transport string
	logLevel  string
}

type commandContext struct {
	flags *rootFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if v := strings.TrimSpace(c.flags.address); v != "" {
			cfg.Server.Address = v
		}
		if v := strings.TrimSpace(c.flags.transport); v != "" {
			cfg.Server.Transport = strings.ToLower(v)
		}
		if v := strings.TrimSpace(c.flags.logLevel); v != "" {
			cfg.Logging.Level = strings.ToLower(v)
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cmd *cobra.Command) zerolog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return zerolog.Nop()
	}
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Output: cmd.ErrOrStderr(),
		Pretty: cfg.Logging.Pretty,
	})
}

func (c *commandContext) codec() (ipc.Codec, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return ipc.CodecByName(cfg.Server.Codec)
}

func (c *commandContext) dialOptions(cmd *cobra.Command) ([]ipc.DialOption, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	codec, err := c.codec()
	if err != nil {
		return nil, err
	}
	return []ipc.DialOption{
		ipc.WithTransport(cfg.Server.Transport),
		ipc.WithCodec(codec),
		ipc.WithLogger(c.logger(cmd)),
		ipc.WithCallTimeout(cfg.CallTimeout()),
	}, nil
}

func (c *commandContext) withClient(cmd *cobra.Command, fn func(ipc.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	opts, err := c.dialOptions(cmd)
	if err != nil {
		return err
	}
	client, err := ipc.Dial(cmd.Context(), cfg.Server.Address, opts...)
	if err != nil {
		return wrapDialError(err, cfg.Server.Address)
	}
	defer client.Close()
	return fn(client)
}

func wrapDialError(err error, addr string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to server: socket %s not found; start it with `ipcd serve`", addr)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to server: %s refused the connection; verify the server is running", addr)
	default:
		return fmt.Errorf("connect to server: %w", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
