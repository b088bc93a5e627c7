// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/luxfi/ipc"
	"github.com/luxfi/ipc/internal/config"
	"github.com/luxfi/ipc/windows"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the windows channel until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServer(signalCtx, cfg, ctx.logger(cmd), func(addr string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s (%s)\n", windows.ChannelName, addr, cfg.Server.Transport)
			})
		},
	}
}

// hostedWindows is a listening server with the windows channel registered.
type hostedWindows struct {
	server  ipc.Server
	service *windows.MemoryService
	channel *windows.Channel
	metrics *http.Server
}

func startServer(cfg *config.Config, logger zerolog.Logger) (*hostedWindows, error) {
	codec, err := ipc.CodecByName(cfg.Server.Codec)
	if err != nil {
		return nil, err
	}
	opts := []ipc.ServerOption{
		ipc.WithServerTransport(cfg.Server.Transport),
		ipc.WithServerCodec(codec),
		ipc.WithServerLogger(logger),
	}
	if rl := cfg.Server.RateLimit; rl.Enabled {
		opts = append(opts, ipc.WithRateLimit(rl.RPS, rl.Burst))
	}

	h := &hostedWindows{}
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		metrics, err := ipc.NewMetrics(registry)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, ipc.WithMetrics(metrics))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		h.metrics = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	server, err := ipc.Listen(cfg.Server.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Server.Address, err)
	}
	h.server = server
	h.service = windows.NewMemoryService(logger)
	h.channel = windows.NewChannel(h.service)
	if err := server.RegisterChannel(windows.ChannelName, h.channel); err != nil {
		h.close()
		return nil, err
	}
	return h, nil
}

func (h *hostedWindows) close() {
	if h.metrics != nil {
		h.metrics.Close()
	}
	h.server.Close()
	if h.channel != nil {
		h.channel.Dispose()
	}
	if h.service != nil {
		h.service.Dispose()
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger, ready func(addr string)) error {
	h, err := startServer(cfg, logger)
	if err != nil {
		return err
	}
	defer h.close()

	if h.metrics != nil {
		go func() {
			if err := h.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", cfg.Metrics.Address).Msg("metrics server stopped")
			}
		}()
	}

	logger.Info().
		Str("transport", cfg.Server.Transport).
		Str("addr", h.server.Addr()).
		Str("codec", cfg.Server.Codec).
		Msg("serving")
	if ready != nil {
		ready(h.server.Addr())
	}

	if err := h.server.Serve(ctx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
