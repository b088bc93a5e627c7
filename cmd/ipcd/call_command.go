// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luxfi/ipc"
)

func newCallCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "call <channel> <command> [json-arg]",
		Short: "Invoke a command on a remote channel and print the result as JSON",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg any
			if len(args) == 3 {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				if arg, err = parseArgument(cfg.Server.Codec, args[2]); err != nil {
					return fmt.Errorf("parse argument: %w", err)
				}
			}
			return ctx.withClient(cmd, func(client ipc.Client) error {
				var reply any
				if err := client.Call(cmd.Context(), args[0], args[1], arg, &reply); err != nil {
					return err
				}
				return printJSON(cmd, reply)
			})
		},
	}
}

func newListenCommand(ctx *commandContext) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "listen <channel> <event>",
		Short: "Print event values from a remote channel, one JSON value per line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client ipc.Client) error {
				stream, err := ipc.Subscribe[any](cmd.Context(), ipc.NewChannelClient(client, args[0]), args[1])
				if err != nil {
					return err
				}
				defer stream.Close()

				seen := 0
				for {
					select {
					case v, ok := <-stream.Values():
						if !ok {
							return stream.Err()
						}
						if err := printJSON(cmd, v); err != nil {
							return err
						}
						seen++
						if count > 0 && seen >= count {
							return nil
						}
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					}
				}
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many values (0 waits until interrupted)")
	return cmd
}

// parseArgument turns a JSON command line argument into a call argument.
// The JSON codec forwards it verbatim; other codecs get whole numbers as
// integers so they decode into integer parameters.
func parseArgument(codec, raw string) (any, error) {
	if !json.Valid([]byte(raw)) {
		var v any
		return nil, json.Unmarshal([]byte(raw), &v)
	}
	if codec == ipc.CodecJSON {
		return json.RawMessage(raw), nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v)
}

func normalizeNumbers(v any) (any, error) {
	switch v := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return i, nil
		}
		return v.Float64()
	case []any:
		for i, item := range v {
			n, err := normalizeNumbers(item)
			if err != nil {
				return nil, err
			}
			v[i] = n
		}
		return v, nil
	case map[string]any:
		for k, item := range v {
			n, err := normalizeNumbers(item)
			if err != nil {
				return nil, err
			}
			v[k] = n
		}
		return v, nil
	default:
		return v, nil
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
